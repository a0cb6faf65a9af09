package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for aggregated trade data access
type Repository interface {
	// Upsert inserts or replaces a trade keyed on
	// (account_id, symbol, representative_timestamp)
	Upsert(ctx context.Context, t *AggregatedTrade) error

	// ListSince returns trades closed at or after the given time ordered
	// by representative_timestamp descending
	ListSince(ctx context.Context, accountID uuid.UUID, since time.Time) ([]*AggregatedTrade, error)

	// CountForAssignment counts trades attributed to a strategy on one
	// (account, symbol) pair inside a time span. A nil `to` means open-ended.
	CountForAssignment(ctx context.Context, accountID uuid.UUID, symbol string, strategyID uuid.UUID, from time.Time, to *time.Time) (int64, error)
}
