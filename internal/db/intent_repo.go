package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/google/uuid"

	"paybridge/internal/types"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// IntentRecord is a payment intent as persisted, with the bookkeeping
// columns the wire-level types.PaymentIntent does not carry.
type IntentRecord struct {
	PaymentID  string
	CustomerID string
	Provider   types.Provider
	Amount     int64
	Currency   string
	ItemName   string
	Data       string
	Status     *types.PaymentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IntentRepository provides data access for the payment_intents and
// payment_events tables. Intents are insert-only except for the status
// column, which advances when a verified event is recorded against them.
type IntentRepository struct {
	db DBTX
}

// NewIntentRepository creates an IntentRepository backed by the given
// database connection (pool or transaction).
func NewIntentRepository(db DBTX) *IntentRepository {
	return &IntentRepository{db: db}
}

const intentColumns = `payment_id, customer_id, provider, amount, currency,
	item_name, data, status, created_at, updated_at`

// Create persists a freshly created intent. A duplicate payment id is a
// conflict: payment ids are generated once per checkout attempt and never
// reused.
func (r *IntentRepository) Create(ctx context.Context, provider types.Provider, intent types.PaymentIntent, itemName string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO payment_intents
			(payment_id, customer_id, provider, amount, currency, item_name, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		intent.PaymentID, intent.CustomerID, string(provider),
		intent.Amount, intent.Currency, itemName, intent.Data, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return types.NewAppError(
				types.ErrCodeConflictIntentExists,
				"an intent with this payment id already exists",
				err,
			)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert payment intent", err)
	}
	return nil
}

// GetByPaymentID retrieves a stored intent by its correlation key.
func (r *IntentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*IntentRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE payment_id = $1`,
		paymentID,
	)

	var rec IntentRecord
	var provider string
	var status *string
	err := row.Scan(
		&rec.PaymentID, &rec.CustomerID, &provider, &rec.Amount, &rec.Currency,
		&rec.ItemName, &rec.Data, &status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(
				types.ErrCodeNotFoundIntent,
				"no intent found for payment id "+paymentID,
				nil,
			)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query payment intent", err)
	}

	rec.Provider = types.Provider(provider)
	if status != nil {
		rec.Status = types.StatusPtr(types.PaymentStatus(*status))
	}
	return &rec, nil
}

// RecordEvent stores a verified payment event and, when the event carries a
// canonical status, advances the matching intent. An event for an unknown
// payment id still gets stored; reconciliation is easier with the orphan on
// record.
func (r *IntentRepository) RecordEvent(ctx context.Context, provider types.Provider, event types.PaymentEvent, deliveryID string) error {
	var status *string
	if event.Status != nil {
		s := string(*event.Status)
		status = &s
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO payment_events
			(id, payment_id, provider, event_type, status, data, delivery_id, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), event.PaymentID, string(provider),
		event.Type, status, event.Data, deliveryID, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert payment event", err)
	}

	if event.Status == nil {
		return nil
	}

	_, err = r.db.Exec(ctx,
		`UPDATE payment_intents SET status = $1, updated_at = $2 WHERE payment_id = $3`,
		string(*event.Status), time.Now().UTC(), event.PaymentID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update intent status", err)
	}
	return nil
}
