package fill

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is one raw venue execution record, append-only and never mutated.
// Aggregated trades are derived from fills and are always rebuildable.
type Fill struct {
	ID        uuid.UUID `db:"id"`
	AccountID uuid.UUID `db:"account_id"`

	Symbol string `db:"symbol"`
	Side   string `db:"side"`

	Size       decimal.Decimal `db:"size"`
	EntryPrice decimal.Decimal `db:"entry_price"`
	ExitPrice  decimal.Decimal `db:"exit_price"`

	RealizedPnL decimal.Decimal `db:"realized_pnl"`
	Fees        decimal.Decimal `db:"fees"`

	// IsReducing marks a fill that closes (part of) an existing position.
	// Venues that do not report it leave it nil; grouping then falls back
	// to the open-interest tie-break.
	IsReducing *bool `db:"is_reducing"`

	ObservedAt time.Time `db:"observed_at"`
	CreatedAt  time.Time `db:"created_at"`
}
