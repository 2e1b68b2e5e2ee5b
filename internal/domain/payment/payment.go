package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidAmount       = errors.New("expected amount must be positive")
	ErrEmptyAssetCode      = errors.New("asset code cannot be empty")
	ErrEmptyDepositAddress = errors.New("deposit address cannot be empty")
	ErrExpirationInPast    = errors.New("expiration must be in the future")
)

// Status defines payment lifecycle states
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusExpired Status = "EXPIRED"
	StatusFailed  Status = "FAILED"
)

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusFailed
}

// AssetCodeNative is the asset code used for lumens, which carry no issuer
// on the ledger.
const AssetCodeNative = "XLM"

// PendingPayment is an invoice awaiting funds on the ledger. It is created
// by the checkout flow in PENDING state and mutated only by the
// reconciliation engine until it reaches a terminal state.
type PendingPayment struct {
	ID              uuid.UUID       `json:"id"`
	DepositAddress  string          `json:"deposit_address"`
	ExpectedAmount  decimal.Decimal `json:"expected_amount"`
	AssetCode       string          `json:"asset_code"`
	AssetIssuer     string          `json:"asset_issuer,omitempty"`
	Description     string          `json:"description,omitempty"`
	Status          Status          `json:"status"`
	LastPagingToken *string         `json:"last_paging_token,omitempty"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPendingPayment creates a new payment in PENDING state
func NewPendingPayment(depositAddress string, expectedAmount decimal.Decimal, assetCode, assetIssuer, description string, expiresAt time.Time) (*PendingPayment, error) {
	if depositAddress == "" {
		return nil, ErrEmptyDepositAddress
	}
	if assetCode == "" {
		return nil, ErrEmptyAssetCode
	}
	if !expectedAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !expiresAt.After(time.Now()) {
		return nil, ErrExpirationInPast
	}

	now := time.Now()
	return &PendingPayment{
		ID:             uuid.New(),
		DepositAddress: depositAddress,
		ExpectedAmount: expectedAmount,
		AssetCode:      assetCode,
		AssetIssuer:    assetIssuer,
		Description:    description,
		Status:         StatusPending,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Eligible reports whether the payment may still be reconciled at the given
// instant. Expired or terminal payments are never scanned, nor are payments
// without a deposit address.
func (p *PendingPayment) Eligible(now time.Time) bool {
	return p.Status == StatusPending &&
		p.DepositAddress != "" &&
		p.ExpiresAt.After(now)
}

// Cursor returns the last seen paging token, or "" when the payment has
// never been scanned.
func (p *PendingPayment) Cursor() string {
	if p.LastPagingToken == nil {
		return ""
	}
	return *p.LastPagingToken
}
