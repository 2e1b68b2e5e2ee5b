package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/luminapay-payment-monitor/internal/config"
	"github.com/luminapay-payment-monitor/internal/data/mongo"
	"github.com/luminapay-payment-monitor/internal/data/postgres"
	"github.com/luminapay-payment-monitor/internal/logger"
	"github.com/luminapay-payment-monitor/internal/monitor/reconciler"
	"github.com/luminapay-payment-monitor/internal/monitor/scheduler"
	"github.com/luminapay-payment-monitor/internal/platform/horizon"
	"github.com/luminapay-payment-monitor/internal/platform/messaging/producers"
	"github.com/luminapay-payment-monitor/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("payment_monitor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Payment Monitor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"horizon", cfg.Horizon.BaseURL,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	journalRepo := mongo.NewJournalRepository(log, mongoDB.Database())

	// Initialize ledger client
	ledgerClient := horizon.NewClient(log, &cfg.Horizon)

	// Initialize settlement event producer.
	// settlementProducer is nil when no topic is configured; the reconciler is nil-safe.
	settlementProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event producer", "error", err)
		os.Exit(1)
	}

	// Initialize reconciliation engine
	var events producers.MessagePublisher
	if settlementProducer != nil {
		events = settlementProducer
	}
	engine := reconciler.NewReconciler(log, paymentRepo, ledgerClient, journalRepo, events)

	// Initialize monitor scheduler
	monitorScheduler, err := scheduler.NewScheduler(
		&cfg.Monitor,
		&cfg.WorkerPool,
		paymentRepo,
		engine,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start scheduler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Monitor Scheduler",
			"interval", cfg.Monitor.PollingInterval.String(),
			"batch_size", cfg.Monitor.BatchSize,
		)
		monitorScheduler.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal
	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the reconciliation worker pool
	log.Info("Shutting down worker pool", "running_workers", monitorScheduler.Running())
	monitorScheduler.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close settlement event producer
	if settlementProducer != nil {
		if err = settlementProducer.Close(); err != nil {
			log.Error("Error closing settlement event producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Payment Monitor shutdown completed")
}
