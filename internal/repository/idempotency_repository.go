package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository maps client idempotency keys to booking ids so a
// resubmitted request returns the original booking instead of creating a
// duplicate.
type IdempotencyRepository interface {
	FindBookingID(ctx context.Context, key string) (int64, bool, error)
	Record(ctx context.Context, key string, bookingID int64, ttl time.Duration) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r *idempotencyRepository) FindBookingID(ctx context.Context, key string) (int64, bool, error) {
	const q = `SELECT booking_id FROM booking_idempotency
		WHERE key_hash = $1 AND expires_at > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var bookingID int64
	err := r.pool.QueryRow(ctx, q, hashKey(key)).Scan(&bookingID)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return bookingID, true, nil
}

func (r *idempotencyRepository) Record(ctx context.Context, key string, bookingID int64, ttl time.Duration) error {
	const q = `INSERT INTO booking_idempotency (key_hash, booking_id, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (key_hash) DO NOTHING`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, hashKey(key), bookingID, ttl)
	return err
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM booking_idempotency WHERE expires_at <= now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
