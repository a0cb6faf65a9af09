package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregatedTrade is one complete round-trip trade reconstructed from raw
// fills. Rows are derived and rebuildable: re-running aggregation over the
// same fills upserts the same trades. Leverage and collateral come from the
// position snapshot covering the opening leg and are never recomputed here.
type AggregatedTrade struct {
	ID        uuid.UUID `db:"id"`
	AccountID uuid.UUID `db:"account_id"`

	Symbol string `db:"symbol"`
	Side   string `db:"side"`

	TotalSize     decimal.Decimal `db:"total_size"`
	AvgEntryPrice decimal.Decimal `db:"avg_entry_price"`
	AvgExitPrice  decimal.Decimal `db:"avg_exit_price"`

	TotalPnL  decimal.Decimal `db:"total_pnl"`
	TotalFees decimal.Decimal `db:"total_fees"`

	Leverage       *decimal.Decimal `db:"leverage"`
	CollateralUsed *decimal.Decimal `db:"collateral_used"`

	StrategyID *uuid.UUID `db:"strategy_id"`

	// FillCount records how many fills were collapsed into this trade
	FillCount int `db:"fill_count"`

	// RepresentativeTimestamp is the close of the round trip and, together
	// with account and symbol, the upsert key
	RepresentativeTimestamp time.Time `db:"representative_timestamp"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
