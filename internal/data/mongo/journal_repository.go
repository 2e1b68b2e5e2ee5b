package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/luminapay-payment-monitor/internal/domain/journal"
)

const (
	// JournalCollectionName is the name of the settlement journal collection in MongoDB
	JournalCollectionName = "settlement_journal"
)

// JournalRepository implements the journal.Repository interface for MongoDB
type JournalRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewJournalRepository creates a new MongoDB settlement journal repository
func NewJournalRepository(logger *slog.Logger, db *mongo.Database) journal.Repository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a settlement record after checking for duplicates.
// Returns ErrDuplicateRecord if the payment is already journaled, keeping
// the journal idempotent when a settlement is retried.
func (r *JournalRepository) Create(ctx context.Context, record *journal.SettlementRecord) error {
	collection := r.db.Collection(JournalCollectionName)

	existing, err := r.GetByPaymentID(ctx, record.PaymentID)
	if err != nil && !errors.Is(err, journal.ErrRecordNotFound{}) {
		r.logger.Error("Failed to check for existing settlement record",
			"payment_id", record.PaymentID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing settlement record: %w", err)
	}

	if existing != nil {
		return journal.ErrDuplicateRecord{PaymentID: record.PaymentID}
	}

	_, err = collection.InsertOne(ctx, record)
	if err != nil {
		r.logger.Error("Failed to create settlement record",
			"payment_id", record.PaymentID.String(),
			"error", err)
		return fmt.Errorf("failed to create settlement record: %w", err)
	}

	return nil
}

// GetByPaymentID retrieves the settlement record for a payment.
// Returns ErrRecordNotFound if the payment has not settled yet.
func (r *JournalRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*journal.SettlementRecord, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"payment_id": paymentID}
	var record journal.SettlementRecord
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, journal.ErrRecordNotFound{PaymentID: paymentID}
		}
		r.logger.Error("Failed to get settlement record",
			"payment_id", paymentID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement record: %w", err)
	}

	return &record, nil
}
