package leverage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atlas/internal/domain/ledger"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Method records how a lifecycle's leverage was derived
type Method string

const (
	// MethodMarginDelta derives collateral from the increase in total
	// margin-in-use between two consecutive ledger entries
	MethodMarginDelta Method = "margin_delta"

	// MethodMarginRate derives leverage from a venue-supplied per-position
	// margin rate (leverage = 1 / rate)
	MethodMarginRate Method = "margin_rate"

	// MethodUnknown means no usable source was available
	MethodUnknown Method = "unknown"
)

// String returns string representation
func (m Method) String() string {
	return string(m)
}

// Result is the outcome of one leverage inference. Leverage and
// CollateralUsed are nil when Method is MethodUnknown; the method field
// itself is the error-reporting channel, inference never fails a cycle.
type Result struct {
	Leverage       *decimal.Decimal
	CollateralUsed *decimal.Decimal
	Method         Method

	// StaleBaseline is set when the prior ledger entry predates the
	// opening by more than one ingestion interval. The value is still
	// computed, the flag is a data-quality signal for the caller.
	StaleBaseline bool
}

// Input carries everything the calculator needs for one new lifecycle.
// MarginRate is the optional venue-supplied per-position rate used as a
// fallback when no margin delta can be isolated.
type Input struct {
	AccountID         uuid.UUID
	Symbol            string
	NotionalUSD       decimal.Decimal
	CurrentMarginUsed decimal.Decimal
	MarginRate        *decimal.Decimal
	OpenedAt          time.Time
}

// Calculator infers the leverage multiplier and collateral backing a newly
// opened position from the account ledger history. It runs exactly once per
// lifecycle, on the first observation; results are copied onto every later
// snapshot and never recomputed.
type Calculator struct {
	ledger      ledger.Repository
	maxLeverage decimal.Decimal
	staleAfter  time.Duration
	log         *logger.Logger
}

// NewCalculator constructs a calculator. staleAfter should match the
// expected polling interval; maxLeverage caps implausible multipliers
// produced by tiny margin deltas.
func NewCalculator(ledgerRepo ledger.Repository, maxLeverage int, staleAfter time.Duration) *Calculator {
	return &Calculator{
		ledger:      ledgerRepo,
		maxLeverage: decimal.NewFromInt(int64(maxLeverage)),
		staleAfter:  staleAfter,
		log:         logger.Get().With("component", "leverage_calculator"),
	}
}

// Infer derives (leverage, collateral, method) for a new lifecycle.
//
// Primary path: the most recent ledger entry strictly before OpenedAt gives
// the margin baseline; collateral = CurrentMarginUsed - baseline. A positive
// delta yields leverage = notional / collateral, clamped and rounded to one
// decimal. A missing baseline or non-positive delta falls back to the venue
// margin rate, then to MethodUnknown. Infra errors (storage failures)
// propagate; algorithmic dead ends never do.
func (c *Calculator) Infer(ctx context.Context, in Input) (Result, error) {
	log := c.log.With("account_id", in.AccountID, "symbol", in.Symbol)

	prev, err := c.ledger.LatestBefore(ctx, in.AccountID, in.OpenedAt)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			log.Infow("No ledger baseline, trying margin-rate fallback",
				"opened_at", in.OpenedAt)
			return c.fromMarginRate(in, false), nil
		}
		return Result{Method: MethodUnknown}, errors.Wrap(err, "fetch ledger baseline")
	}

	stale := in.OpenedAt.Sub(prev.ObservedAt) > c.staleAfter
	if stale {
		log.Warnw("Ledger baseline is stale",
			"baseline_at", prev.ObservedAt, "opened_at", in.OpenedAt)
	}

	delta := in.CurrentMarginUsed.Sub(prev.TotalMarginUsed)
	if delta.LessThanOrEqual(decimal.Zero) {
		log.Warnw("Non-positive margin delta, trying margin-rate fallback",
			"previous_margin", prev.TotalMarginUsed,
			"current_margin", in.CurrentMarginUsed)
		return c.fromMarginRate(in, stale), nil
	}

	if delta.GreaterThan(in.NotionalUSD) {
		// More margin appeared than this position's notional; usually
		// several positions opened in the same polling window. Computed
		// anyway, the caller flags the ambiguity.
		log.Warnw("Margin delta exceeds position notional",
			"delta", delta, "notional_usd", in.NotionalUSD)
	}

	lev := c.clamp(in.NotionalUSD.Div(delta))

	log.Infow("Leverage inferred from margin delta",
		"collateral_used", delta, "leverage", lev)

	return Result{
		Leverage:       &lev,
		CollateralUsed: &delta,
		Method:         MethodMarginDelta,
		StaleBaseline:  stale,
	}, nil
}

// fromMarginRate is the fallback chain: venue-supplied rate, else unknown.
func (c *Calculator) fromMarginRate(in Input, stale bool) Result {
	if in.MarginRate == nil || in.MarginRate.LessThanOrEqual(decimal.Zero) {
		return Result{Method: MethodUnknown, StaleBaseline: stale}
	}

	lev := c.clamp(decimal.NewFromInt(1).Div(*in.MarginRate))
	collateral := in.NotionalUSD.Mul(*in.MarginRate)

	c.log.Infow("Leverage derived from venue margin rate",
		"account_id", in.AccountID, "symbol", in.Symbol,
		"margin_rate", *in.MarginRate, "leverage", lev)

	return Result{
		Leverage:       &lev,
		CollateralUsed: &collateral,
		Method:         MethodMarginRate,
		StaleBaseline:  stale,
	}
}

// clamp bounds leverage to [0, max] and rounds to one decimal
func (c *Calculator) clamp(lev decimal.Decimal) decimal.Decimal {
	if lev.IsNegative() {
		return decimal.Zero
	}
	if lev.GreaterThan(c.maxLeverage) {
		return c.maxLeverage
	}
	return lev.Round(1)
}
