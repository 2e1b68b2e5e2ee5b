// Package journal holds the immutable settlement journal: for every payment
// that reached PAID, one record of the ledger transaction that settled it.
package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/luminapay-payment-monitor/internal/domain/ledger"
)

// SettlementRecord captures the ledger transaction observed to settle a
// payment. Written once by the reconciliation engine, read by the status API.
type SettlementRecord struct {
	PaymentID       uuid.UUID `json:"payment_id" bson:"payment_id"`
	PagingToken     string    `json:"paging_token" bson:"paging_token"`
	TransactionHash string    `json:"transaction_hash,omitempty" bson:"transaction_hash,omitempty"`
	AssetCode       string    `json:"asset_code" bson:"asset_code"`
	AssetIssuer     string    `json:"asset_issuer,omitempty" bson:"asset_issuer,omitempty"`
	Amount          string    `json:"amount" bson:"amount"`
	From            string    `json:"from,omitempty" bson:"from,omitempty"`
	To              string    `json:"to,omitempty" bson:"to,omitempty"`
	ObservedAt      time.Time `json:"observed_at" bson:"observed_at"`
}

// NewSettlementRecord builds a journal record from the matched ledger record
func NewSettlementRecord(paymentID uuid.UUID, rec *ledger.TransactionRecord) *SettlementRecord {
	return &SettlementRecord{
		PaymentID:       paymentID,
		PagingToken:     rec.PagingToken,
		TransactionHash: rec.TransactionHash,
		AssetCode:       rec.AssetCode,
		AssetIssuer:     rec.AssetIssuer,
		Amount:          rec.Amount,
		From:            rec.From,
		To:              rec.To,
		ObservedAt:      time.Now().UTC(),
	}
}
