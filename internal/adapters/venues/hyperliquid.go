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

// Hyperliquid clearinghouseState document. All numbers arrive as JSON
// strings; decimal unmarshals both forms.
type hlClearinghouseState struct {
	MarginSummary  hlMarginSummary   `json:"marginSummary"`
	AssetPositions []hlAssetPosition `json:"assetPositions"`
}

type hlMarginSummary struct {
	AccountValue    decimal.Decimal `json:"accountValue"`
	TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
}

type hlAssetPosition struct {
	Position hlPosition `json:"position"`
}

type hlPosition struct {
	Coin          string          `json:"coin"`
	Szi           decimal.Decimal `json:"szi"`
	PositionValue decimal.Decimal `json:"positionValue"`
	EntryPx       decimal.Decimal `json:"entryPx"`
}

// Hyperliquid userFills record. Dir carries the position effect
// ("Open Long", "Close Short", ...).
type hlFill struct {
	Coin      string          `json:"coin"`
	Px        decimal.Decimal `json:"px"`
	Sz        decimal.Decimal `json:"sz"`
	Side      string          `json:"side"`
	Dir       string          `json:"dir"`
	ClosedPnl decimal.Decimal `json:"closedPnl"`
	Fee       decimal.Decimal `json:"fee"`
	Time      int64           `json:"time"`
}

// Hyperliquid normalizes clearinghouseState and userFills documents.
// The venue reports no per-position margin rate, so margin_rate stays absent
// and leverage inference must come from the margin delta.
type Hyperliquid struct {
	log *logger.Logger
}

// NewHyperliquid creates the Hyperliquid adapter
func NewHyperliquid() *Hyperliquid {
	return &Hyperliquid{log: logger.Get().With("component", "hyperliquid_adapter")}
}

// Venue returns the venue identifier
func (h *Hyperliquid) Venue() string {
	return VenueHyperliquid
}

// ParseCycle builds the normalized cycle from one clearinghouseState document
// and a userFills slice
func (h *Hyperliquid) ParseCycle(accountID uuid.UUID, observedAt time.Time, state, fills json.RawMessage) (ingest.Cycle, error) {
	var chs hlClearinghouseState
	if err := json.Unmarshal(state, &chs); err != nil {
		return ingest.Cycle{}, errors.Wrap(err, "decode clearinghouse state")
	}

	cycle := ingest.Cycle{
		AccountID:  accountID,
		Venue:      VenueHyperliquid,
		ObservedAt: observedAt,
		Ledger: ingest.LedgerTotals{
			TotalEquity:     chs.MarginSummary.AccountValue,
			TotalMarginUsed: chs.MarginSummary.TotalMarginUsed,
		},
	}

	for _, ap := range chs.AssetPositions {
		pos := ap.Position
		if pos.Szi.IsZero() {
			continue
		}

		side := "LONG"
		if pos.Szi.IsNegative() {
			side = "SHORT"
		}

		raw, err := json.Marshal(pos)
		if err != nil {
			return ingest.Cycle{}, errors.Wrapf(err, "marshal raw position %s", pos.Coin)
		}

		cycle.Positions = append(cycle.Positions, ingest.Position{
			Symbol:      pos.Coin,
			Side:        side,
			Size:        pos.Szi.Abs(),
			NotionalUSD: pos.PositionValue.Abs(),
			EntryPrice:  pos.EntryPx,
			Raw:         raw,
		})
	}

	if len(fills) > 0 {
		parsed, err := h.parseFills(fills)
		if err != nil {
			return ingest.Cycle{}, err
		}
		cycle.Fills = parsed
	}

	return cycle, nil
}

func (h *Hyperliquid) parseFills(raw json.RawMessage) ([]ingest.FillRecord, error) {
	var fills []hlFill
	if err := json.Unmarshal(raw, &fills); err != nil {
		return nil, errors.Wrap(err, "decode user fills")
	}

	out := make([]ingest.FillRecord, 0, len(fills))
	for _, f := range fills {
		rec := ingest.FillRecord{
			Symbol:      f.Coin,
			Side:        sideFromDir(f.Dir),
			Size:        f.Sz,
			RealizedPnL: f.ClosedPnl,
			Fees:        f.Fee.Abs(),
			IsReducing:  reducingFromDir(f.Dir),
			ObservedAt:  time.UnixMilli(f.Time).UTC(),
		}

		// One price per fill; the dir tells which leg it is
		if rec.IsReducing != nil && *rec.IsReducing {
			rec.ExitPrice = f.Px
		} else {
			rec.EntryPrice = f.Px
		}

		out = append(out, rec)
	}
	return out, nil
}

// sideFromDir maps fill direction to position side
func sideFromDir(dir string) string {
	if strings.Contains(dir, "Short") {
		return "SHORT"
	}
	return "LONG"
}

// reducingFromDir derives is_reducing from the dir prefix, nil when the
// direction is unrecognized
func reducingFromDir(dir string) *bool {
	switch {
	case strings.HasPrefix(dir, "Close"):
		v := true
		return &v
	case strings.HasPrefix(dir, "Open"):
		v := false
		return &v
	default:
		return nil
	}
}
