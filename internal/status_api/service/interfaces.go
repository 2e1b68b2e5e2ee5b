package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luminapay-payment-monitor/internal/domain/journal"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
)

// PublicStatus is the status enum exposed to polling checkout clients.
// Internal PAID is surfaced as "confirmed".
type PublicStatus string

const (
	PublicStatusPending   PublicStatus = "pending"
	PublicStatusConfirmed PublicStatus = "confirmed"
	PublicStatusExpired   PublicStatus = "expired"
	PublicStatusFailed    PublicStatus = "failed"
)

// StatusProjection is the read model polled by the checkout page. It always
// reflects the most recently committed payment state.
type StatusProjection struct {
	Status    PublicStatus
	UpdatedAt time.Time
}

// PaymentService defines the interface for payment read and create operations
type PaymentService interface {
	// CreatePayment stores a new pending payment record for monitoring
	CreatePayment(ctx context.Context, depositAddress string, expectedAmount decimal.Decimal, assetCode, assetIssuer, description string, expiresAt time.Time) (*payment.PendingPayment, error)

	// GetPaymentByID retrieves payment detail by its ID
	// Returns nil if the payment is not found
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error)

	// GetPaymentStatus projects the payment's internal state to the public
	// status enum. Returns nil if the payment is not found
	GetPaymentStatus(ctx context.Context, id uuid.UUID) (*StatusProjection, error)

	// GetSettlement retrieves the journal record of the transaction that
	// settled the payment. Returns nil until the payment is settled
	GetSettlement(ctx context.Context, id uuid.UUID) (*journal.SettlementRecord, error)

	// CancelPayment marks a pending payment as FAILED so the monitor stops
	// watching it. Returns nil if the payment is not found and
	// ErrConcurrentModification if it already reached a terminal state
	CancelPayment(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error)
}
