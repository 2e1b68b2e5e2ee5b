// Package reconciler implements the reconciliation engine: it matches a
// pending payment against new ledger records for its deposit address,
// decides settlement, and advances the resumption cursor.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminapay-payment-monitor/internal/domain/journal"
	"github.com/luminapay-payment-monitor/internal/domain/ledger"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
	"github.com/luminapay-payment-monitor/internal/platform/messaging/producers"
)

// SettlementEvent is published when a payment reaches PAID
type SettlementEvent struct {
	PaymentID       string    `json:"payment_id"`
	Status          string    `json:"status"`
	AssetCode       string    `json:"asset_code"`
	Amount          string    `json:"amount"`
	PagingToken     string    `json:"paging_token"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	SettledAt       time.Time `json:"settled_at"`
}

// Reconciler walks ledger history for pending payments and commits the
// resulting state transitions. The journal repository and event publisher
// are optional; settlement itself never depends on them.
type Reconciler struct {
	payments payment.Repository
	ledger   ledger.Client
	journal  journal.Repository
	events   producers.MessagePublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciliation engine. journalRepo and events may
// be nil to run without the settlement journal or event publishing.
func NewReconciler(
	logger *slog.Logger,
	payments payment.Repository,
	ledgerClient ledger.Client,
	journalRepo journal.Repository,
	events producers.MessagePublisher,
) *Reconciler {
	return &Reconciler{
		payments: payments,
		ledger:   ledgerClient,
		journal:  journalRepo,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile scans one page of new ledger records for the payment and
// persists the outcome: PAID plus cursor on a sufficient matching record,
// cursor-only advance otherwise, nothing at all when the ledger call fails.
//
// The whole page is walked for the maximum paging token before the
// settlement decision is committed, so a match partway through a
// newest-first page can never understate the resumption cursor.
func (r *Reconciler) Reconcile(ctx context.Context, p *payment.PendingPayment) error {
	logger := r.logger.With("payment_id", p.ID.String())

	// The scheduler's selection query filters these already; re-validate in
	// case the snapshot aged while the payment waited in the pool.
	if !p.Eligible(r.now()) {
		logger.Debug("Payment no longer eligible, skipping scan", "status", string(p.Status), "expires_at", p.ExpiresAt)
		return nil
	}

	records, err := r.ledger.FetchRecentPayments(ctx, p.DepositAddress, p.LastPagingToken)
	if err != nil {
		// Fail closed: no payment state is mutated on a ledger failure, the
		// same cursor is retried on the next tick.
		return fmt.Errorf("ledger scan for payment %s: %w", p.ID, err)
	}
	if len(records) == 0 {
		return nil
	}

	latestToken := p.Cursor()
	var matched *ledger.TransactionRecord

	for i := range records {
		rec := &records[i]

		if rec.PagingToken != "" {
			latestToken = ledger.MaxToken(latestToken, rec.PagingToken)
		}
		if matched != nil {
			continue // already decided, still collecting the max token
		}

		if !rec.MatchesAsset(p.AssetCode, p.AssetIssuer) {
			continue
		}

		amount, err := rec.ParsedAmount()
		if err != nil {
			logger.Warn("Skipping malformed ledger record",
				"paging_token", rec.PagingToken,
				"amount", rec.Amount,
				"error", err,
			)
			continue
		}

		// Overpayment settles, underpayment does not
		if amount.GreaterThanOrEqual(p.ExpectedAmount) {
			matched = rec
		}
	}

	if matched == nil {
		return r.advanceCursor(ctx, logger, p, latestToken)
	}

	if err := r.payments.Settle(ctx, p.ID, latestToken); err != nil {
		if errors.Is(err, payment.ErrConcurrentModification{}) {
			logger.Info("Settlement abandoned, payment left PENDING concurrently")
			return nil
		}
		if errors.Is(err, payment.ErrPaymentNotFound{}) {
			logger.Info("Payment disappeared before settlement, treating as no-op")
			return nil
		}
		// Settlement is idempotent under retry: the next tick re-scans from
		// the unadvanced cursor and reaches the same decision.
		return fmt.Errorf("settle payment %s: %w", p.ID, err)
	}

	logger.Info("Payment settled",
		"amount", matched.Amount,
		"expected_amount", p.ExpectedAmount.String(),
		"asset_code", p.AssetCode,
		"paging_token", matched.PagingToken,
		"last_paging_token", latestToken,
	)

	r.journalSettlement(ctx, logger, p, matched)
	r.publishSettlement(ctx, logger, p, matched)

	return nil
}

// advanceCursor persists the page's max token when no record settled the
// payment, keeping re-scans cheap without touching status.
func (r *Reconciler) advanceCursor(ctx context.Context, logger *slog.Logger, p *payment.PendingPayment, latestToken string) error {
	if latestToken == p.Cursor() {
		return nil
	}

	if err := r.payments.AdvanceCursor(ctx, p.ID, latestToken); err != nil {
		if errors.Is(err, payment.ErrConcurrentModification{}) {
			// Another writer finished the payment or moved the cursor further
			logger.Debug("Cursor advance abandoned, row changed concurrently")
			return nil
		}
		if errors.Is(err, payment.ErrPaymentNotFound{}) {
			logger.Info("Payment disappeared before cursor advance, treating as no-op")
			return nil
		}
		return fmt.Errorf("advance cursor for payment %s: %w", p.ID, err)
	}

	logger.Debug("Advanced resumption cursor", "last_paging_token", latestToken)
	return nil
}

// journalSettlement records the settling ledger transaction. Best effort:
// the settlement is already committed, a journal failure is only logged.
func (r *Reconciler) journalSettlement(ctx context.Context, logger *slog.Logger, p *payment.PendingPayment, rec *ledger.TransactionRecord) {
	if r.journal == nil {
		return
	}

	record := journal.NewSettlementRecord(p.ID, rec)
	if err := r.journal.Create(ctx, record); err != nil {
		if errors.Is(err, journal.ErrDuplicateRecord{}) {
			logger.Debug("Settlement already journaled")
			return
		}
		logger.Error("Failed to journal settlement", "paging_token", rec.PagingToken, "error", err)
	}
}

// publishSettlement emits the settlement event, keyed by payment id so all
// events for one payment land on the same partition. Best effort.
func (r *Reconciler) publishSettlement(ctx context.Context, logger *slog.Logger, p *payment.PendingPayment, rec *ledger.TransactionRecord) {
	if r.events == nil {
		return
	}

	event := &SettlementEvent{
		PaymentID:       p.ID.String(),
		Status:          string(payment.StatusPaid),
		AssetCode:       p.AssetCode,
		Amount:          rec.Amount,
		PagingToken:     rec.PagingToken,
		TransactionHash: rec.TransactionHash,
		SettledAt:       r.now().UTC(),
	}

	if err := r.events.Publish(ctx, event.PaymentID, event); err != nil {
		logger.Error("Failed to publish settlement event", "error", err)
	}
}
