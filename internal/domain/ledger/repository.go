package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for ledger data access
type Repository interface {
	// Insert appends an entry. Returns false without error when an entry
	// with the same (account_id, observed_at) already exists.
	Insert(ctx context.Context, entry *Entry) (bool, error)

	// LatestBefore returns the most recent entry with observed_at strictly
	// before the given time, or errors.ErrNotFound.
	LatestBefore(ctx context.Context, accountID uuid.UUID, before time.Time) (*Entry, error)

	// Latest returns the newest entry for an account, or errors.ErrNotFound.
	Latest(ctx context.Context, accountID uuid.UUID) (*Entry, error)

	// ListRange returns entries within [from, to) ordered by observed_at.
	ListRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*Entry, error)
}
