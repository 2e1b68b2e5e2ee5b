// Package scheduler drives the payment monitor: a ticker that periodically
// snapshots eligible pending payments and dispatches each one to the
// reconciliation engine on a worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/luminapay-payment-monitor/internal/config"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
)

// PaymentReconciler reconciles a single pending payment against the ledger
type PaymentReconciler interface {
	Reconcile(ctx context.Context, p *payment.PendingPayment) error
}

// Scheduler polls the payment store on a fixed interval and fans eligible
// payments out to the reconciler. Errors are isolated per payment; a tick
// never aborts because one payment failed, and the loop runs until the
// context is canceled.
type Scheduler struct {
	paymentRepo      payment.Repository
	reconciler       PaymentReconciler
	pool             *ants.Pool
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	reconcileTimeout time.Duration
	now              func() time.Time

	// inFlight guards against overlapping ticks reconciling the same
	// payment concurrently, which could race on the cursor update.
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewScheduler creates a monitor scheduler with its own worker pool
func NewScheduler(
	cfg *config.MonitorConfig,
	poolCfg *config.WorkerPoolConfig,
	paymentRepo payment.Repository,
	rec PaymentReconciler,
	logger *slog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(poolCfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation worker pool: %w", err)
	}

	return &Scheduler{
		paymentRepo:      paymentRepo,
		reconciler:       rec,
		pool:             pool,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		reconcileTimeout: cfg.ReconcileTimeout,
		now:              time.Now,
		inFlight:         make(map[uuid.UUID]struct{}),
	}, nil
}

// Start begins polling until context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting Payment Monitor Scheduler",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
		"worker_pool_size", s.pool.Cap(),
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Payment Monitor Scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.logger.Debug("Scheduler tick: scanning eligible payments")
			if err := s.processEligiblePayments(ctx); err != nil {
				s.logger.Error("Error during scheduling tick", "error", err)
			}
		}
	}
}

// Shutdown releases the worker pool after in-flight reconciliations finish
func (s *Scheduler) Shutdown() {
	s.logger.Info("Shutting down reconciliation worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of reconciliations currently executing
func (s *Scheduler) Running() int {
	return s.pool.Running()
}

// processEligiblePayments runs one tick: expire overdue rows, snapshot the
// eligible set, and dispatch each payment to the pool. The snapshot is
// point-in-time; payments created afterwards wait for the next tick.
func (s *Scheduler) processEligiblePayments(ctx context.Context) error {
	expired, err := s.paymentRepo.MarkExpired(ctx, s.now())
	if err != nil {
		// The sweep is independent of scanning; scanning still proceeds
		s.logger.Error("Failed to expire overdue payments", "error", err)
	} else if expired > 0 {
		s.logger.Info("Expired overdue payments", "count", expired)
	}

	payments, err := s.paymentRepo.FindEligible(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to find eligible payments: %w", err)
	}

	if len(payments) == 0 {
		s.logger.Debug("No eligible payments found.")
		return nil
	}

	s.logger.Info("Fetched eligible payments", "count", len(payments))

	for _, p := range payments {
		if !s.claim(p.ID) {
			s.logger.Debug("Payment already being reconciled, skipping", "payment_id", p.ID.String())
			continue
		}

		pmt := p
		err := s.pool.Submit(func() {
			defer s.release(pmt.ID)

			scanCtx, cancel := context.WithTimeout(ctx, s.reconcileTimeout)
			defer cancel()

			if err := s.reconciler.Reconcile(scanCtx, pmt); err != nil {
				s.logger.Error("Failed to reconcile payment",
					"payment_id", pmt.ID.String(),
					"deposit_address", pmt.DepositAddress,
					"error", err,
				)
			}
		})
		if err != nil {
			s.release(pmt.ID)
			s.logger.Error("Failed to submit payment to worker pool", "payment_id", pmt.ID.String(), "error", err)
		}
	}

	return nil
}

// claim marks a payment as in flight, returning false when it already is
func (s *Scheduler) claim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
