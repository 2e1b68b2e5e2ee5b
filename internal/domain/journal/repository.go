package journal

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages settlement journal persistence
type Repository interface {
	// Create stores a settlement record. Returns ErrDuplicateRecord when a
	// record already exists for the payment, keeping the journal idempotent
	// under reconciliation retries.
	Create(ctx context.Context, record *SettlementRecord) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*SettlementRecord, error)
}

// ErrRecordNotFound indicates the payment has no settlement record yet
type ErrRecordNotFound struct {
	PaymentID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "settlement record not found for payment: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrDuplicateRecord indicates the payment is already journaled
type ErrDuplicateRecord struct {
	PaymentID uuid.UUID
}

func (e ErrDuplicateRecord) Error() string {
	return "duplicate settlement record for payment: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrDuplicateRecord
func (e ErrDuplicateRecord) Is(target error) bool {
	t, ok := target.(ErrDuplicateRecord)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}
