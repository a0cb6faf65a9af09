package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"atlas/internal/adapters/redis"
	"atlas/pkg/errors"
)

const lockKeyPrefix = "ingest:lock:account:"

// AccountLock serializes ingestion cycles per account across all application
// instances. At most one cycle per account may be in flight; a second cycle
// arriving while the lock is held is skipped, not queued.
//
// The lock is a plain SET NX with a TTL. The TTL is a liveness bound for
// crashed holders, not a correctness mechanism: cycle writes are transactional
// regardless.
type AccountLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAccountLock creates a per-account ingestion lock backed by Redis
func NewAccountLock(client *redis.Client, ttl time.Duration) *AccountLock {
	return &AccountLock{client: client, ttl: ttl}
}

// Acquire takes the lock for an account. Returns false when another cycle
// already holds it.
func (l *AccountLock) Acquire(ctx context.Context, accountID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(accountID), time.Now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, errors.Wrap(err, "acquire account lock")
	}
	return ok, nil
}

// Release frees the lock after the cycle commits or rolls back
func (l *AccountLock) Release(ctx context.Context, accountID uuid.UUID) error {
	if err := l.client.Del(ctx, l.key(accountID)); err != nil {
		return errors.Wrap(err, "release account lock")
	}
	return nil
}

func (l *AccountLock) key(accountID uuid.UUID) string {
	return fmt.Sprintf("%s%s", lockKeyPrefix, accountID)
}
