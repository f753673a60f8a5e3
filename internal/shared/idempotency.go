package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore persists processed request keys. Keys are scoped per
// tenant and operation, so the same client key can safely recur across
// tenants or across unrelated quote actions.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// ErrIdempotencyConflict indicates the key was already processed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert claims a key for an operation. A unique violation means a
// previous request with the same key already ran.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, tenantID, key, operation string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if operation == "" {
		return errors.New("idempotency operation required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (tenant_id, key, operation, created_at) VALUES ($1, $2, $3, $4)`,
		tenantID, key, operation, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Release frees a claimed key so the client may retry, typically after the
// guarded operation failed before committing.
func (s *IdempotencyStore) Release(ctx context.Context, tenantID, key, operation string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE tenant_id=$1 AND key=$2 AND operation=$3`,
		tenantID, key, operation)
	return err
}
