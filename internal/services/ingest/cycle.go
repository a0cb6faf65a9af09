package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cycle is the normalized per-account snapshot payload produced by a venue
// adapter (or decoded off the snapshot-cycles topic). One cycle carries the
// account ledger totals, every currently open position, and the fills seen
// since the previous poll.
type Cycle struct {
	AccountID  uuid.UUID `json:"account_id"`
	Venue      string    `json:"venue"`
	ObservedAt time.Time `json:"observed_at"`

	Ledger    LedgerTotals `json:"ledger"`
	Positions []Position   `json:"positions"`
	Fills     []FillRecord `json:"fills"`
}

// LedgerTotals is the account-level balance section of a cycle
type LedgerTotals struct {
	TotalEquity     decimal.Decimal `json:"total_equity"`
	TotalMarginUsed decimal.Decimal `json:"total_margin_used"`
}

// Position is one open position as normalized by a venue adapter. MarginRate
// is venue-dependent and may be absent; Raw keeps the venue's original record
// for audit.
type Position struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`

	Size        decimal.Decimal `json:"size"`
	NotionalUSD decimal.Decimal `json:"notional_usd"`
	EntryPrice  decimal.Decimal `json:"entry_price"`

	MarginRate *decimal.Decimal `json:"margin_rate,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// FillRecord is one execution record as normalized by a venue adapter.
// IsReducing is venue-dependent and may be absent.
type FillRecord struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`

	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`

	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fees        decimal.Decimal `json:"fees"`

	IsReducing *bool `json:"is_reducing,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}

// Flags carries the non-fatal data-quality signals of one cycle. They never
// block computation; the caller decides whether to alert on them.
type Flags struct {
	// StaleLedger means the margin baseline predates the cycle by more than
	// one ingestion interval, so margin-delta results may be off
	StaleLedger bool `json:"stale_ledger"`

	// AmbiguousAttribution means more than one lifecycle opened in this
	// cycle, so the shared margin delta could not be split between them
	AmbiguousAttribution bool `json:"ambiguous_attribution"`
}

// CycleResult summarizes what one ingestion cycle wrote
type CycleResult struct {
	AccountID  uuid.UUID `json:"account_id"`
	ObservedAt time.Time `json:"observed_at"`

	SnapshotsStored  int `json:"snapshots_stored"`
	LifecyclesOpened int `json:"lifecycles_opened"`
	LifecyclesClosed int `json:"lifecycles_closed"`
	FillsStored      int `json:"fills_stored"`
	Duplicates       int `json:"duplicates"`

	Flags Flags `json:"flags"`
}
