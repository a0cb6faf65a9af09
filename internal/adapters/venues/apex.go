package venues

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atlas/internal/services/ingest"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Apex Omni account snapshot envelope: get_account_v3 positions plus
// get_account_balance_v3 totals, joined by the poller into one document.
type apexState struct {
	Balance   apexBalance    `json:"balance"`
	Positions []apexPosition `json:"positions"`
}

type apexBalance struct {
	TotalEquityValue decimal.Decimal `json:"totalEquityValue"`
	InitialMargin    decimal.Decimal `json:"initialMargin"`
}

type apexPosition struct {
	Symbol                  string          `json:"symbol"`
	Side                    string          `json:"side"`
	Size                    decimal.Decimal `json:"size"`
	EntryPrice              decimal.Decimal `json:"entryPrice"`
	CustomInitialMarginRate decimal.Decimal `json:"customInitialMarginRate"`
}

// Apex historical-pnl record. Each row is one closed trade leg with both
// prices on it.
type apexFill struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	TotalPnl   decimal.Decimal `json:"totalPnl"`
	Fee        decimal.Decimal `json:"fee"`
	ExitType   string          `json:"exitType"`
	CreatedAt  int64           `json:"createdAt"`
}

// Apex normalizes Apex Omni account and historical-pnl documents. The venue
// supplies a per-position customInitialMarginRate, kept as margin_rate for
// the 1/rate leverage fallback, and only close-side fill records.
type Apex struct {
	log *logger.Logger
}

// NewApex creates the Apex Omni adapter
func NewApex() *Apex {
	return &Apex{log: logger.Get().With("component", "apex_adapter")}
}

// Venue returns the venue identifier
func (a *Apex) Venue() string {
	return VenueApex
}

// ParseCycle builds the normalized cycle from one account snapshot envelope
// and a historical-pnl slice
func (a *Apex) ParseCycle(accountID uuid.UUID, observedAt time.Time, state, fills json.RawMessage) (ingest.Cycle, error) {
	var st apexState
	if err := json.Unmarshal(state, &st); err != nil {
		return ingest.Cycle{}, errors.Wrap(err, "decode account state")
	}

	cycle := ingest.Cycle{
		AccountID:  accountID,
		Venue:      VenueApex,
		ObservedAt: observedAt,
		Ledger: ingest.LedgerTotals{
			TotalEquity:     st.Balance.TotalEquityValue,
			TotalMarginUsed: st.Balance.InitialMargin,
		},
	}

	for _, pos := range st.Positions {
		size := pos.Size.Abs()
		if size.IsZero() {
			continue
		}

		raw, err := json.Marshal(pos)
		if err != nil {
			return ingest.Cycle{}, errors.Wrapf(err, "marshal raw position %s", pos.Symbol)
		}

		p := ingest.Position{
			Symbol:      pos.Symbol,
			Side:        strings.ToUpper(pos.Side),
			Size:        size,
			NotionalUSD: pos.EntryPrice.Mul(size),
			EntryPrice:  pos.EntryPrice,
			Raw:         raw,
		}
		// Zero rate means the venue did not report one
		if pos.CustomInitialMarginRate.IsPositive() {
			rate := pos.CustomInitialMarginRate
			p.MarginRate = &rate
		}

		cycle.Positions = append(cycle.Positions, p)
	}

	if len(fills) > 0 {
		parsed, err := a.parseFills(fills)
		if err != nil {
			return ingest.Cycle{}, err
		}
		cycle.Fills = parsed
	}

	return cycle, nil
}

func (a *Apex) parseFills(raw json.RawMessage) ([]ingest.FillRecord, error) {
	var fills []apexFill
	if err := json.Unmarshal(raw, &fills); err != nil {
		return nil, errors.Wrap(err, "decode historical pnl")
	}

	reducing := true
	out := make([]ingest.FillRecord, 0, len(fills))
	for _, f := range fills {
		if f.ExitType == "LIQUIDATE" {
			a.log.Warnw("Liquidation fill recorded",
				"symbol", f.Symbol, "size", f.Size, "pnl", f.TotalPnl)
		}

		out = append(out, ingest.FillRecord{
			Symbol:      f.Symbol,
			Side:        strings.ToUpper(f.Side),
			Size:        f.Size.Abs(),
			EntryPrice:  f.EntryPrice,
			ExitPrice:   f.ExitPrice,
			RealizedPnL: f.TotalPnl,
			Fees:        f.Fee.Abs(),
			IsReducing:  &reducing,
			ObservedAt:  time.UnixMilli(f.CreatedAt).UTC(),
		})
	}
	return out, nil
}
