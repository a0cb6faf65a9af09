package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lifecycle data access
type Repository interface {
	Create(ctx context.Context, lc *Lifecycle) error

	// GetOpen returns the open lifecycle for a state-machine key, or
	// errors.ErrNotFound. At most one lifecycle per key is ever open.
	GetOpen(ctx context.Context, accountID uuid.UUID, symbol string, side Side) (*Lifecycle, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Lifecycle, error)

	ListOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*Lifecycle, error)

	// ListBySymbol returns all lifecycles for a symbol ordered by opened_at
	ListBySymbol(ctx context.Context, accountID uuid.UUID, symbol string) ([]*Lifecycle, error)

	// Close stamps closed_at on an open lifecycle, making it terminal
	Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error
}

// SnapshotRepository defines the interface for position snapshot data access
type SnapshotRepository interface {
	// Insert appends a snapshot. Returns false without error when a
	// snapshot with the same (account_id, symbol, side, observed_at)
	// already exists.
	Insert(ctx context.Context, snap *Snapshot) (bool, error)

	// GetByKey fetches a snapshot by its idempotency key, or errors.ErrNotFound
	GetByKey(ctx context.Context, accountID uuid.UUID, symbol string, side Side, observedAt time.Time) (*Snapshot, error)

	// LatestBefore returns the most recent snapshot for a symbol with
	// observed_at <= at, or errors.ErrNotFound
	LatestBefore(ctx context.Context, accountID uuid.UUID, symbol string, at time.Time) (*Snapshot, error)

	ListByLifecycle(ctx context.Context, lifecycleID uuid.UUID) ([]*Snapshot, error)

	// LatestByAccount returns the newest snapshot of every open lifecycle
	LatestByAccount(ctx context.Context, accountID uuid.UUID) ([]*Snapshot, error)
}
