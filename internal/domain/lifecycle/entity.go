package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atlas/internal/domain/leverage"
)

// Side defines long or short
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid checks if side is valid
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// String returns string representation
func (s Side) String() string {
	return string(s)
}

// Lifecycle is one complete open-to-close span of a position on a given
// (account, symbol, side) key. Reopening after close always creates a new
// lifecycle; a closed lifecycle is terminal and immutable.
//
// Leverage, CollateralUsed and Method are written once when the lifecycle is
// created and copied verbatim onto every snapshot. They are fields on the
// lifecycle itself, not re-read from the first snapshot, so immutability does
// not depend on query order.
type Lifecycle struct {
	ID        uuid.UUID `db:"id"`
	AccountID uuid.UUID `db:"account_id"`

	Symbol string `db:"symbol"`
	Side   Side   `db:"side"`

	Leverage       *decimal.Decimal `db:"leverage"`
	CollateralUsed *decimal.Decimal `db:"collateral_used"`
	Method         leverage.Method  `db:"calculation_method"`

	OpenedAt time.Time  `db:"opened_at"`
	ClosedAt *time.Time `db:"closed_at"`

	CreatedAt time.Time `db:"created_at"`
}

// IsOpen returns true while the lifecycle has no close timestamp
func (l *Lifecycle) IsOpen() bool {
	return l.ClosedAt == nil
}

// Snapshot is one stored observation of an open position. The leverage
// fields repeat the owning lifecycle's write-once values; RawPayload keeps
// the venue's original position record for audit only and is never consulted
// by core logic.
type Snapshot struct {
	ID        uuid.UUID `db:"id"`
	AccountID uuid.UUID `db:"account_id"`

	Symbol string `db:"symbol"`
	Side   Side   `db:"side"`

	Size        decimal.Decimal `db:"size"`
	NotionalUSD decimal.Decimal `db:"notional_usd"`
	EntryPrice  decimal.Decimal `db:"entry_price"`

	Leverage          *decimal.Decimal `db:"leverage"`
	CollateralUsed    *decimal.Decimal `db:"collateral_used"`
	CalculationMethod leverage.Method  `db:"calculation_method"`

	LifecycleID uuid.UUID  `db:"lifecycle_id"`
	StrategyID  *uuid.UUID `db:"strategy_id"`

	ObservedAt time.Time `db:"observed_at"`
	OpenedAt   time.Time `db:"opened_at"`

	RawPayload json.RawMessage `db:"raw_payload"`

	CreatedAt time.Time `db:"created_at"`
}

// Key identifies the state-machine slot a lifecycle occupies within an account
type Key struct {
	Symbol string
	Side   Side
}

// Observation is one ephemeral venue position reading. Zero size means the
// position is no longer open; such observations close the lifecycle and are
// never stored as snapshots.
type Observation struct {
	AccountID uuid.UUID

	Symbol string
	Side   Side

	Size        decimal.Decimal
	NotionalUSD decimal.Decimal
	EntryPrice  decimal.Decimal

	// CurrentMarginUsed is the account-level total margin in use reported
	// alongside this observation, input to margin-delta inference
	CurrentMarginUsed decimal.Decimal

	// MarginRate is the optional venue-supplied per-position rate
	MarginRate *decimal.Decimal

	ObservedAt time.Time
	RawPayload json.RawMessage
}

// Key returns the state-machine key of the observation
func (o Observation) Key() Key {
	return Key{Symbol: o.Symbol, Side: o.Side}
}
