// Package postgres provides the PostgreSQL implementation of the payment
// record store. It owns every status and cursor mutation for pending
// payments, using conditional updates so that terminal states never revert
// and the resumption cursor never rewinds.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/luminapay-payment-monitor/internal/domain/payment"
	"github.com/luminapay-payment-monitor/internal/platform/persistence"
)

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier // *pgxpool.Pool in production, a mock in tests
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

const paymentColumns = `id, deposit_address, expected_amount, asset_code, asset_issuer, description, status, last_paging_token, expires_at, created_at, updated_at`

// Create stores a new pending payment record
func (r *PaymentRepository) Create(ctx context.Context, p *payment.PendingPayment) error {
	query := `
		INSERT INTO payments (id, deposit_address, expected_amount, asset_code, asset_issuer, description, status, last_paging_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.DepositAddress,
		p.ExpectedAmount,
		p.AssetCode,
		p.AssetIssuer,
		p.Description,
		p.Status,
		p.LastPagingToken,
		p.ExpiresAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment", "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = $1
	`

	p, err := r.scanPayment(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

// FindEligible returns the current scanning snapshot: PENDING payments that
// have not expired and carry a deposit address. Oldest first so long-waiting
// invoices are never starved by the batch limit.
func (r *PaymentRepository) FindEligible(ctx context.Context, limit int) ([]*payment.PendingPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND expires_at > NOW() AND deposit_address IS NOT NULL AND deposit_address <> ''
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, payment.StatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to query eligible payments", "error", err)
		return nil, fmt.Errorf("failed to query eligible payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.PendingPayment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment row", "error", err)
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eligible payments: %w", err)
	}

	return payments, nil
}

// Settle marks a payment PAID and stores the paging token of the page that
// contained the matching record. Status and cursor move in one conditional
// statement keyed on PENDING, which makes settlement at-most-once: a second
// writer (or a repeated scan of an overlapping page) finds zero rows.
func (r *PaymentRepository) Settle(ctx context.Context, id uuid.UUID, pagingToken string) error {
	query := `
		UPDATE payments
		SET status = $1, last_paging_token = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, payment.StatusPaid, pagingToken, id, payment.StatusPending)
	if err != nil {
		r.logger.Error("Failed to settle payment", "id", id.String(), "error", err)
		return fmt.Errorf("failed to settle payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrConcurrentModification{PaymentID: id}
	}

	return nil
}

// AdvanceCursor moves the resumption cursor forward on a still-PENDING row.
// Paging tokens are decimal digit strings, so the rewind guard compares by
// length before text, matching the engine's ordering.
func (r *PaymentRepository) AdvanceCursor(ctx context.Context, id uuid.UUID, pagingToken string) error {
	query := `
		UPDATE payments
		SET last_paging_token = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		  AND (last_paging_token IS NULL
		       OR (length(last_paging_token), last_paging_token) < (length($1::text), $1::text))
	`

	result, err := r.querier.Exec(ctx, query, pagingToken, id, payment.StatusPending)
	if err != nil {
		r.logger.Error("Failed to advance payment cursor", "id", id.String(), "error", err)
		return fmt.Errorf("failed to advance payment cursor: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrConcurrentModification{PaymentID: id}
	}

	return nil
}

// MarkExpired sweeps overdue PENDING rows into the EXPIRED terminal state
func (r *PaymentRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at <= $3
	`

	result, err := r.querier.Exec(ctx, query, payment.StatusExpired, payment.StatusPending, now)
	if err != nil {
		r.logger.Error("Failed to expire overdue payments", "error", err)
		return 0, fmt.Errorf("failed to expire overdue payments: %w", err)
	}

	return result.RowsAffected(), nil
}

// UpdateStatus performs a conditional PENDING -> status transition
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payment.Status) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, status, id, payment.StatusPending)
	if err != nil {
		r.logger.Error("Failed to update payment status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrConcurrentModification{PaymentID: id}
	}

	return nil
}

// scanPayment reads one payment row from either a pgx.Row or pgx.Rows.
// deposit_address is nullable: rows awaiting address assignment still exist
// and poll as pending, they are just never scanned by the monitor.
func (r *PaymentRepository) scanPayment(row pgx.Row) (*payment.PendingPayment, error) {
	var p payment.PendingPayment
	var depositAddress *string
	err := row.Scan(
		&p.ID,
		&depositAddress,
		&p.ExpectedAmount,
		&p.AssetCode,
		&p.AssetIssuer,
		&p.Description,
		&p.Status,
		&p.LastPagingToken,
		&p.ExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if depositAddress != nil {
		p.DepositAddress = *depositAddress
	}
	return &p, nil
}
