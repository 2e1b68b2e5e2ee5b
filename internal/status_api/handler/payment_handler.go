package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luminapay-payment-monitor/internal/domain/journal"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
	"github.com/luminapay-payment-monitor/internal/status_api/service"
)

// PaymentHandler handles HTTP requests for payment operations
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create registers a new pending payment for monitoring
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	expectedAmount, err := decimal.NewFromString(req.ExpectedAmount)
	if err != nil {
		h.logger.Error("Invalid expected amount", "expected_amount", req.ExpectedAmount, "error", err)
		RespondBadRequest(c, "Invalid expected amount")
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		h.logger.Error("Invalid expiration timestamp", "expires_at", req.ExpiresAt, "error", err)
		RespondBadRequest(c, "Invalid expiration timestamp, expected RFC3339")
		return
	}

	p, err := h.paymentService.CreatePayment(
		c.Request.Context(),
		req.DepositAddress,
		expectedAmount,
		req.AssetCode,
		req.AssetIssuer,
		req.Description,
		expiresAt,
	)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) ||
			errors.Is(err, payment.ErrEmptyAssetCode) ||
			errors.Is(err, payment.ErrEmptyDepositAddress) ||
			errors.Is(err, payment.ErrExpirationInPast) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create payment", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapPaymentToResponse(p))
}

// GetByID retrieves payment detail by its ID, returns 404 if not found
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	p, err := h.paymentService.GetPaymentByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if p == nil {
		RespondNotFound(c, "Payment not found")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

// GetStatus projects the payment state for the polling checkout page.
// Read-only and safe to poll frequently.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	projection, err := h.paymentService.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get payment status", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if projection == nil {
		RespondNotFound(c, "Payment not found")
		return
	}

	RespondOK(c, PaymentStatusResponse{
		Status:    string(projection.Status),
		UpdatedAt: projection.UpdatedAt.Format(time.RFC3339),
	})
}

// GetSettlement returns the ledger transaction that settled the payment,
// 404 until the monitor has journaled one
func (h *PaymentHandler) GetSettlement(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	record, err := h.paymentService.GetSettlement(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get settlement", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if record == nil {
		RespondNotFound(c, "Settlement not found")
		return
	}

	RespondOK(c, mapSettlementToResponse(record))
}

// Cancel marks a pending payment as failed so the monitor stops watching it.
// Cancelling a payment that already settled or expired is rejected with 409.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	p, err := h.paymentService.CancelPayment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, payment.ErrConcurrentModification{}) {
			RespondConflict(c, "Payment is no longer pending")
			return
		}
		h.logger.Error("Failed to cancel payment", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if p == nil {
		RespondNotFound(c, "Payment not found")
		return
	}

	RespondOK(c, mapPaymentToResponse(p))
}

func (h *PaymentHandler) parsePaymentID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payment ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payment ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapPaymentToResponse maps a payment to a payment response DTO
func mapPaymentToResponse(p *payment.PendingPayment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID.String(),
		DepositAddress: p.DepositAddress,
		ExpectedAmount: p.ExpectedAmount.String(),
		AssetCode:      p.AssetCode,
		AssetIssuer:    p.AssetIssuer,
		Description:    p.Description,
		Status:         string(p.Status),
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

// mapSettlementToResponse maps a journal record to a settlement response DTO
func mapSettlementToResponse(record *journal.SettlementRecord) SettlementResponse {
	return SettlementResponse{
		PaymentID:       record.PaymentID.String(),
		PagingToken:     record.PagingToken,
		TransactionHash: record.TransactionHash,
		AssetCode:       record.AssetCode,
		AssetIssuer:     record.AssetIssuer,
		Amount:          record.Amount,
		From:            record.From,
		To:              record.To,
		ObservedAt:      record.ObservedAt.Format(time.RFC3339),
	}
}
