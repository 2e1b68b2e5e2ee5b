package status_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luminapay-payment-monitor/internal/status_api/handler"
	"github.com/luminapay-payment-monitor/internal/status_api/middleware"
)

// setupRouter configures API routes and middleware for the status API
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	paymentHandler *handler.PaymentHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Payment operations; status is the endpoint the checkout page polls
		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.Create)
			payments.GET("/:id", paymentHandler.GetByID)
			payments.GET("/:id/status", paymentHandler.GetStatus)
			payments.GET("/:id/settlement", paymentHandler.GetSettlement)
			payments.POST("/:id/cancel", paymentHandler.Cancel)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
