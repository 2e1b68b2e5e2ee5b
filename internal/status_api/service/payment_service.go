package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luminapay-payment-monitor/internal/domain/journal"
	"github.com/luminapay-payment-monitor/internal/domain/payment"
)

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	paymentRepo payment.Repository
	journalRepo journal.Repository
	logger      *slog.Logger
}

// NewPaymentService creates a new payment service. journalRepo may be nil
// when the deployment runs without the settlement journal.
func NewPaymentService(logger *slog.Logger, paymentRepo payment.Repository, journalRepo journal.Repository) PaymentService {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		journalRepo: journalRepo,
		logger:      logger,
	}
}

// CreatePayment stores a new pending payment record for monitoring
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, depositAddress string, expectedAmount decimal.Decimal, assetCode, assetIssuer, description string, expiresAt time.Time) (*payment.PendingPayment, error) {
	p, err := payment.NewPendingPayment(depositAddress, expectedAmount, assetCode, assetIssuer, description, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create payment", "deposit_address", depositAddress, "error", err)
		return nil, err
	}

	s.logger.Info("Payment created",
		"payment_id", p.ID.String(),
		"deposit_address", p.DepositAddress,
		"expected_amount", p.ExpectedAmount.String(),
		"asset_code", p.AssetCode,
		"expires_at", p.ExpiresAt,
	)

	return p, nil
}

// GetPaymentByID retrieves payment detail by its ID. Returns nil if not found
func (s *PaymentServiceImpl) GetPaymentByID(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error) {
	p, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound{}) {
			s.logger.Info("Payment not found", "payment_id", id.String())
			return nil, nil
		}
		s.logger.Error("Failed to get payment by ID", "payment_id", id.String(), "error", err)
		return nil, err
	}
	return p, nil
}

// GetPaymentStatus projects the payment's internal state to the public
// status enum. Returns nil if the payment is not found
func (s *PaymentServiceImpl) GetPaymentStatus(ctx context.Context, id uuid.UUID) (*StatusProjection, error) {
	p, err := s.GetPaymentByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}

	return &StatusProjection{
		Status:    projectStatus(p.Status),
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// GetSettlement retrieves the settlement journal record for a paid payment.
// Returns nil until the payment is settled or when no journal is configured
func (s *PaymentServiceImpl) GetSettlement(ctx context.Context, id uuid.UUID) (*journal.SettlementRecord, error) {
	if s.journalRepo == nil {
		return nil, nil
	}

	record, err := s.journalRepo.GetByPaymentID(ctx, id)
	if err != nil {
		if errors.Is(err, journal.ErrRecordNotFound{}) {
			return nil, nil
		}
		s.logger.Error("Failed to get settlement record", "payment_id", id.String(), "error", err)
		return nil, err
	}
	return record, nil
}

// CancelPayment marks a pending payment as FAILED. The transition is
// conditional on the row still being PENDING, so a payment that settled or
// expired between the merchant's read and the cancel request is left intact
func (s *PaymentServiceImpl) CancelPayment(ctx context.Context, id uuid.UUID) (*payment.PendingPayment, error) {
	if err := s.paymentRepo.UpdateStatus(ctx, id, payment.StatusFailed); err != nil {
		if errors.Is(err, payment.ErrConcurrentModification{}) {
			p, getErr := s.GetPaymentByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			if p == nil {
				return nil, nil
			}
			s.logger.Info("Cancel refused, payment already terminal",
				"payment_id", id.String(), "status", string(p.Status))
			return nil, payment.ErrConcurrentModification{PaymentID: id}
		}
		s.logger.Error("Failed to cancel payment", "payment_id", id.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Payment cancelled", "payment_id", id.String())
	return s.GetPaymentByID(ctx, id)
}

// projectStatus maps internal payment states to the public polling enum
func projectStatus(status payment.Status) PublicStatus {
	switch status {
	case payment.StatusPaid:
		return PublicStatusConfirmed
	case payment.StatusExpired:
		return PublicStatusExpired
	case payment.StatusFailed:
		return PublicStatusFailed
	default:
		return PublicStatusPending
	}
}
