// Package ledger defines the read-only view of the external distributed
// ledger (Stellar, queried through Horizon). The system never mutates ledger
// state; it only observes payment records and orders them by paging token.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/luminapay-payment-monitor/internal/domain/payment"
)

// Asset types as reported by Horizon
const (
	AssetTypeNative = "native"
)

// TransactionRecord is a single payment operation from the ledger's history
// for an account. All fields are owned by the ledger and treated as opaque
// except where comparison is required.
type TransactionRecord struct {
	PagingToken     string `json:"paging_token"`
	Type            string `json:"type"`
	TransactionHash string `json:"transaction_hash"`
	AssetType       string `json:"asset_type"`
	AssetCode       string `json:"asset_code"`
	AssetIssuer     string `json:"asset_issuer"`
	Amount          string `json:"amount"`
	From            string `json:"from"`
	To              string `json:"to"`
}

// ParsedAmount returns the record amount as a decimal. Horizon reports
// amounts as strings; binary floating point is never used for money.
func (r *TransactionRecord) ParsedAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Amount)
}

// MatchesAsset reports whether the record moves the asset a payment expects.
// Lumens are reported with asset_type "native" and no code or issuer; issued
// assets match on code, plus issuer when the payment pins one.
func (r *TransactionRecord) MatchesAsset(assetCode, assetIssuer string) bool {
	if assetCode == payment.AssetCodeNative {
		return r.AssetType == AssetTypeNative
	}
	if r.AssetCode != assetCode {
		return false
	}
	if assetIssuer != "" && r.AssetIssuer != assetIssuer {
		return false
	}
	return true
}

// TokenLess reports whether paging token a orders strictly before b. Tokens
// are decimal digit strings without leading zeros, so a shorter token is
// always older and equal-length tokens compare lexicographically. An empty
// token orders before any non-empty one.
func TokenLess(a, b string) bool {
	if a == b {
		return false
	}
	if a == "" {
		return true
	}
	if b == "" {
		return false
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// MaxToken returns the greater of two paging tokens under TokenLess ordering
func MaxToken(a, b string) string {
	if TokenLess(a, b) {
		return b
	}
	return a
}
