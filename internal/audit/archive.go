// Package audit archives raw webhook deliveries. Payloads are stored
// byte-exact and compressed, so any delivery can later be replayed through
// its provider's verifier: signature schemes bind to the exact wire bytes,
// and a lossy archive would make disputes unresolvable.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"

	"paybridge/internal/types"
)

// Store is the subset of database operations the archive needs. Satisfied
// by *pgxpool.Pool and pgx.Tx.
type Store interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Archive persists raw webhook deliveries to the webhook_deliveries table,
// zstd-compressed. Encoder and decoder are concurrency-safe via EncodeAll
// and DecodeAll.
type Archive struct {
	db  Store
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewArchive creates an Archive over the given store.
func NewArchive(db Store) (*Archive, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Archive{db: db, enc: enc, dec: dec}, nil
}

// Close releases the compressor resources.
func (a *Archive) Close() {
	a.enc.Close()
	a.dec.Close()
}

// Save archives one delivery under its id. Headers are stored alongside the
// body because re-verification needs the signature header, not just the
// payload.
func (a *Archive) Save(ctx context.Context, deliveryID string, provider types.Provider, delivery types.WebhookDelivery) error {
	headerJSON, err := json.Marshal(delivery.Headers)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize delivery headers", err)
	}

	compressed := a.enc.EncodeAll(delivery.RawBody, nil)

	_, err = a.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, provider, body, headers, received_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		deliveryID, string(provider), compressed, string(headerJSON), time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to archive webhook delivery", err)
	}
	return nil
}

// Load retrieves an archived delivery with its original raw bytes restored.
func (a *Archive) Load(ctx context.Context, deliveryID string) (types.WebhookDelivery, error) {
	row := a.db.QueryRow(ctx,
		`SELECT body, headers FROM webhook_deliveries WHERE delivery_id = $1`,
		deliveryID,
	)

	var compressed []byte
	var headerJSON string
	if err := row.Scan(&compressed, &headerJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.WebhookDelivery{}, types.NewAppError(
				types.ErrCodeNotFoundIntent,
				"no archived delivery for id "+deliveryID,
				nil,
			)
		}
		return types.WebhookDelivery{}, types.NewAppError(types.ErrCodeInternalDB, "failed to load archived delivery", err)
	}

	raw, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return types.WebhookDelivery{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decompress archived delivery", err)
	}

	headers := http.Header{}
	if err := json.Unmarshal([]byte(headerJSON), &headers); err != nil {
		return types.WebhookDelivery{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to parse archived headers", err)
	}

	return types.WebhookDelivery{RawBody: raw, Headers: headers}, nil
}
