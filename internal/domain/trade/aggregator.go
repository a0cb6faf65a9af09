package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atlas/internal/domain/fill"
	"atlas/internal/domain/lifecycle"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// minTradePnL filters out dust: round trips whose absolute total PnL falls
// below one cent are not materialized as trades.
var minTradePnL = decimal.RequireFromString("0.01")

// Aggregator collapses raw fills into complete round-trip trades. It is a
// pure batch recomputation: it only reads committed fills and snapshots and
// may run concurrently with ingestion.
type Aggregator struct {
	fills     fill.Repository
	snapshots lifecycle.SnapshotRepository
	trades    Repository
	resolver  lifecycle.StrategyResolver
	window    time.Duration
	log       *logger.Logger
}

// NewAggregator constructs a fill aggregator. The window bounds how far
// apart close-only fills may sit and still belong to the same trade.
func NewAggregator(fills fill.Repository, snapshots lifecycle.SnapshotRepository, trades Repository, resolver lifecycle.StrategyResolver, window time.Duration) *Aggregator {
	if window <= 0 {
		window = time.Second
	}
	return &Aggregator{
		fills:     fills,
		snapshots: snapshots,
		trades:    trades,
		resolver:  resolver,
		window:    window,
		log:       logger.Get().With("component", "fill_aggregator"),
	}
}

// Aggregate rebuilds aggregated trades for one (account, symbol) pair from
// fills observed since the given time. Idempotent: results are upserted on
// (account, symbol, representative_timestamp).
func (a *Aggregator) Aggregate(ctx context.Context, accountID uuid.UUID, symbol string, since time.Time) ([]*AggregatedTrade, error) {
	if accountID == uuid.Nil || symbol == "" {
		return nil, errors.ErrInvalidInput
	}

	fills, err := a.fills.ListSince(ctx, accountID, symbol, since)
	if err != nil {
		return nil, errors.Wrap(err, "list fills")
	}
	if len(fills) == 0 {
		return nil, nil
	}

	var trades []*AggregatedTrade
	for _, g := range a.group(fills) {
		t, err := a.build(ctx, accountID, symbol, g)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		if err := a.trades.Upsert(ctx, t); err != nil {
			return nil, errors.Wrap(err, "upsert trade")
		}
		trades = append(trades, t)
	}

	a.log.Infow("Aggregation complete",
		"account_id", accountID, "symbol", symbol,
		"fills", len(fills), "trades", len(trades))

	return trades, nil
}

// AggregateAccount re-aggregates every symbol of an account with fill
// activity since the given time. Returns the number of trades written.
func (a *Aggregator) AggregateAccount(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	symbols, err := a.fills.SymbolsSince(ctx, accountID, since)
	if err != nil {
		return 0, errors.Wrap(err, "list symbols")
	}

	total := 0
	for _, symbol := range symbols {
		trades, err := a.Aggregate(ctx, accountID, symbol, since)
		if err != nil {
			return total, errors.Wrapf(err, "aggregate %s", symbol)
		}
		total += len(trades)
	}
	return total, nil
}

// fillGroup accumulates one round trip while scanning fills in time order
type fillGroup struct {
	fills  []*fill.Fill
	opens  []*fill.Fill
	closes []*fill.Fill

	openSize  decimal.Decimal
	closeSize decimal.Decimal
}

// complete reports whether the group is a finished round trip: a fully
// closed open leg, or a run of close-only records (venues that report each
// execution as an already-matched round trip).
func (g *fillGroup) complete() bool {
	if len(g.fills) == 0 {
		return false
	}
	if g.openSize.IsPositive() {
		return g.closeSize.GreaterThanOrEqual(g.openSize)
	}
	return g.closeSize.IsPositive()
}

func (g *fillGroup) add(f *fill.Fill, reducing bool) {
	g.fills = append(g.fills, f)
	if reducing {
		g.closes = append(g.closes, f)
		g.closeSize = g.closeSize.Add(f.Size)
	} else {
		g.opens = append(g.opens, f)
		g.openSize = g.openSize.Add(f.Size)
	}
}

func (g *fillGroup) last() *fill.Fill {
	return g.fills[len(g.fills)-1]
}

// group partitions time-ordered fills into round trips. A fill with unknown
// is_reducing closes when an unmatched open leg exists and opens otherwise.
// A complete group is sealed by the next fill; close-only groups are also
// sealed when the proximity window between fills is exceeded.
func (a *Aggregator) group(fills []*fill.Fill) []*fillGroup {
	var groups []*fillGroup
	cur := &fillGroup{}

	for _, f := range fills {
		if cur.complete() {
			sealed := cur.openSize.IsPositive() ||
				f.ObservedAt.Sub(cur.last().ObservedAt) > a.window
			if sealed {
				groups = append(groups, cur)
				cur = &fillGroup{}
			}
		}

		reducing := cur.openSize.GreaterThan(cur.closeSize)
		if f.IsReducing != nil {
			reducing = *f.IsReducing
		}
		cur.add(f, reducing)
	}

	if cur.complete() {
		groups = append(groups, cur)
	}
	return groups
}

// build turns one complete group into an aggregated trade, pulling leverage
// from the snapshot covering the opening leg and resolving the strategy
// active at that instant. Returns nil for dust groups.
func (a *Aggregator) build(ctx context.Context, accountID uuid.UUID, symbol string, g *fillGroup) (*AggregatedTrade, error) {
	totalPnL := decimal.Zero
	totalFees := decimal.Zero
	for _, f := range g.fills {
		totalPnL = totalPnL.Add(f.RealizedPnL)
		totalFees = totalFees.Add(f.Fees)
	}

	if totalPnL.Abs().LessThan(minTradePnL) {
		return nil, nil
	}

	avgEntry := weightedEntry(g)
	avgExit := weightedAvg(g.closes, func(f *fill.Fill) decimal.Decimal { return f.ExitPrice })

	openedAt := g.fills[0].ObservedAt
	closedAt := g.closes[len(g.closes)-1].ObservedAt

	t := &AggregatedTrade{
		ID:                      uuid.New(),
		AccountID:               accountID,
		Symbol:                  symbol,
		Side:                    g.fills[0].Side,
		TotalSize:               g.closeSize,
		AvgEntryPrice:           avgEntry,
		AvgExitPrice:            avgExit,
		TotalPnL:                totalPnL,
		TotalFees:               totalFees,
		FillCount:               len(g.fills),
		RepresentativeTimestamp: closedAt,
	}

	snap, err := a.snapshots.LatestBefore(ctx, accountID, symbol, openedAt)
	if err == nil {
		t.Leverage = snap.Leverage
		t.CollateralUsed = snap.CollateralUsed
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup covering snapshot")
	}

	if a.resolver != nil {
		strategyID, err := a.resolver.Resolve(ctx, accountID, symbol, openedAt)
		if err != nil {
			a.log.Warnw("Strategy resolution failed",
				"account_id", accountID, "symbol", symbol, "error", err)
		} else {
			t.StrategyID = strategyID
		}
	}

	return t, nil
}

// weightedEntry averages entry price over the open leg, or over the close
// leg for close-only round trips
func weightedEntry(g *fillGroup) decimal.Decimal {
	if len(g.opens) > 0 {
		return weightedAvg(g.opens, func(f *fill.Fill) decimal.Decimal { return f.EntryPrice })
	}
	return weightedAvg(g.closes, func(f *fill.Fill) decimal.Decimal { return f.EntryPrice })
}

// weightedAvg computes a size-weighted price average
func weightedAvg(fills []*fill.Fill, price func(*fill.Fill) decimal.Decimal) decimal.Decimal {
	totalSize := decimal.Zero
	totalValue := decimal.Zero
	for _, f := range fills {
		totalSize = totalSize.Add(f.Size)
		totalValue = totalValue.Add(price(f).Mul(f.Size))
	}
	if totalSize.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalSize)
}
