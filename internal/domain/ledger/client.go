package ledger

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the ledger service could not be reached or did
// not answer in time. Payment state must never be mutated on this failure;
// the scan is simply retried on the next tick.
var ErrUnavailable = errors.New("ledger service unavailable")

// Client queries an account's payment history on the ledger.
type Client interface {
	// FetchRecentPayments returns a single page of payment records for the
	// address, most recent first. A nil cursor means no lower bound; a
	// non-nil cursor scopes the query to records after that token. An empty
	// page means no new records.
	FetchRecentPayments(ctx context.Context, address string, cursor *string) ([]TransactionRecord, error)
}
