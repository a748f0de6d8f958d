package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ledger is the idempotency ledger: one record per caller-supplied key.
// The unique constraint on the key is the tie-breaker between
// concurrent confirmations.
type Ledger interface {
	// Get returns the record for the key, or nil when absent.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Claim inserts a PROCESSING record bound to (key, orderID). It
	// reports false when the key already exists, without touching the
	// existing record.
	Claim(ctx context.Context, key string, orderID int64, expiresAt time.Time) (bool, error)
	// Complete flips the record to COMPLETED with the cached response
	// body, inside the same atomic unit as the order mutation.
	Complete(ctx context.Context, tx Tx, key string, body []byte) error
	// Fail flips the record to FAILED so the key never stays PROCESSING
	// after an error.
	Fail(ctx context.Context, key string) error
}

// PostgresLedger implements Ledger on the idempotency_keys table.
type PostgresLedger struct {
	db DB
}

// NewPostgresLedger constructs a PostgresLedger.
func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Get returns the record for the key, or nil when absent.
func (l *PostgresLedger) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := l.db.QueryRow(ctx, `
		SELECT key, target_type, target_id, status, response_body, expires_at
		FROM idempotency_keys
		WHERE key = $1`,
		key,
	).Scan(&rec.Key, &rec.TargetType, &rec.TargetID, &rec.Status, &rec.ResponseBody, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

// Claim inserts a PROCESSING record; ON CONFLICT DO NOTHING makes the
// loser of a same-key race observe the existing record instead.
func (l *PostgresLedger) Claim(ctx context.Context, key string, orderID int64, expiresAt time.Time) (bool, error) {
	tag, err := l.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, target_type, target_id, status, response_body, expires_at)
		VALUES ($1, $2, $3, $4, NULL, $5)
		ON CONFLICT (key) DO NOTHING`,
		key, TargetTypeOrderConfirmation, orderID, IdempotencyProcessing, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete marks the record COMPLETED with the serialized response.
func (l *PostgresLedger) Complete(ctx context.Context, tx Tx, key string, body []byte) error {
	if _, err := pgtx(tx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response_body = $3
		WHERE key = $1`,
		key, IdempotencyCompleted, body,
	); err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	return nil
}

// Fail marks the record FAILED. Runs outside any transaction so the flip
// survives the rollback of the failed unit.
func (l *PostgresLedger) Fail(ctx context.Context, key string) error {
	if _, err := l.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2
		WHERE key = $1`,
		key, IdempotencyFailed,
	); err != nil {
		return fmt.Errorf("fail idempotency record: %w", err)
	}
	return nil
}
