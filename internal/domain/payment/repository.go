package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines pending payment persistence operations
type Repository interface {
	Create(ctx context.Context, p *PendingPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*PendingPayment, error)

	// FindEligible returns up to limit payments that are PENDING, not yet
	// expired and carry a deposit address. The result is a point-in-time
	// snapshot; rows created afterwards are picked up on the next call.
	FindEligible(ctx context.Context, limit int) ([]*PendingPayment, error)

	// Settle marks the payment PAID and records the paging token in a single
	// conditional update. Returns ErrConcurrentModification if the row is no
	// longer PENDING.
	Settle(ctx context.Context, id uuid.UUID, pagingToken string) error

	// AdvanceCursor moves the resumption cursor forward without changing
	// status. The update refuses to rewind an already greater token.
	AdvanceCursor(ctx context.Context, id uuid.UUID, pagingToken string) error

	// MarkExpired transitions overdue PENDING rows to EXPIRED and returns
	// the number of rows affected.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)

	// UpdateStatus performs a conditional PENDING -> status transition.
	// Returns ErrConcurrentModification when the row is missing or already
	// terminal.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// ErrPaymentNotFound indicates missing payment
type ErrPaymentNotFound struct {
	PaymentID uuid.UUID
}

func (e ErrPaymentNotFound) Error() string {
	return "payment not found: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrPaymentNotFound
func (e ErrPaymentNotFound) Is(target error) bool {
	t, ok := target.(ErrPaymentNotFound)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrConcurrentModification indicates the row left PENDING state between
// read and update, so the attempted transition was abandoned.
type ErrConcurrentModification struct {
	PaymentID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for payment: " + e.PaymentID.String()
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}
