package fill

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for fill data access
type Repository interface {
	// Insert appends a fill. Returns false without error when a fill with
	// the same (account_id, symbol, side, size, observed_at) already exists.
	Insert(ctx context.Context, f *Fill) (bool, error)

	// ListSince returns fills for a symbol ordered by observed_at,
	// insertion order breaking ties
	ListSince(ctx context.Context, accountID uuid.UUID, symbol string, since time.Time) ([]*Fill, error)

	// SymbolsSince returns the distinct symbols with fills recorded after
	// the given time, used by the aggregation worker
	SymbolsSince(ctx context.Context, accountID uuid.UUID, since time.Time) ([]string, error)

	// AccountsSince returns the distinct accounts with fills recorded
	// after the given time
	AccountsSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}
