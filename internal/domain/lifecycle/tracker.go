package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atlas/internal/domain/leverage"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// StrategyResolver maps (account, symbol, instant) to the strategy label
// active at that moment. A nil id means no attribution, never an error.
type StrategyResolver interface {
	Resolve(ctx context.Context, accountID uuid.UUID, symbol string, at time.Time) (*uuid.UUID, error)
}

// Outcome reports what one observation did to the state machine
type Outcome struct {
	// Opened is true when the observation created a new lifecycle
	Opened bool

	// Duplicate is true when the observation hit the idempotency key and
	// was absorbed without writing
	Duplicate bool

	// StaleBaseline propagates the calculator's data-quality flag
	StaleBaseline bool
}

// Tracker is the position lifecycle state machine. For each
// (account, symbol, side) key it detects open, close and reopen transitions,
// assigns durable lifecycle ids and invokes the leverage calculator exactly
// once per lifecycle, on its first observation.
//
// The tracker is constructed per ingestion cycle over transaction-scoped
// repositories, so every write it performs commits or rolls back with the
// cycle's ledger entry.
type Tracker struct {
	lifecycles Repository
	snapshots  SnapshotRepository
	calc       *leverage.Calculator
	resolver   StrategyResolver
	log        *logger.Logger
}

// NewTracker constructs a tracker bound to cycle-scoped repositories.
func NewTracker(lifecycles Repository, snapshots SnapshotRepository, calc *leverage.Calculator, resolver StrategyResolver) *Tracker {
	return &Tracker{
		lifecycles: lifecycles,
		snapshots:  snapshots,
		calc:       calc,
		resolver:   resolver,
		log:        logger.Get().With("component", "lifecycle_tracker"),
	}
}

// Observe applies one position observation.
//
// Size > 0 on a closed key opens a new lifecycle and computes leverage.
// Size > 0 on an open key appends a snapshot carrying the lifecycle's
// write-once leverage fields verbatim. Size == 0 closes the open lifecycle,
// if any, and stores nothing. Exact duplicates no-op and return the stored
// snapshot.
func (t *Tracker) Observe(ctx context.Context, obs Observation) (*Snapshot, Outcome, error) {
	if obs.AccountID == uuid.Nil || obs.Symbol == "" {
		return nil, Outcome{}, errors.ErrInvalidInput
	}
	if !obs.Side.Valid() {
		return nil, Outcome{}, errors.Wrapf(errors.ErrInvalidInput, "side %q", obs.Side)
	}

	if obs.Size.LessThanOrEqual(decimal.Zero) {
		if err := t.closeOpen(ctx, obs.AccountID, obs.Key(), obs.ObservedAt); err != nil {
			return nil, Outcome{}, err
		}
		return nil, Outcome{}, nil
	}

	// Idempotency check up front: a retried cycle must not create a second
	// snapshot or, worse, a second lifecycle after the original one closed.
	existing, err := t.snapshots.GetByKey(ctx, obs.AccountID, obs.Symbol, obs.Side, obs.ObservedAt)
	if err == nil {
		t.log.Debugw("Duplicate observation absorbed",
			"account_id", obs.AccountID, "symbol", obs.Symbol,
			"side", obs.Side, "observed_at", obs.ObservedAt)
		return existing, Outcome{Duplicate: true}, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, Outcome{}, errors.Wrap(err, "check duplicate observation")
	}

	lc, outcome, err := t.openLifecycle(ctx, obs)
	if err != nil {
		return nil, Outcome{}, err
	}

	strategyID := t.resolveStrategy(ctx, obs)

	snap := &Snapshot{
		ID:                uuid.New(),
		AccountID:         obs.AccountID,
		Symbol:            obs.Symbol,
		Side:              obs.Side,
		Size:              obs.Size,
		NotionalUSD:       obs.NotionalUSD,
		EntryPrice:        obs.EntryPrice,
		Leverage:          lc.Leverage,
		CollateralUsed:    lc.CollateralUsed,
		CalculationMethod: lc.Method,
		LifecycleID:       lc.ID,
		StrategyID:        strategyID,
		ObservedAt:        obs.ObservedAt,
		OpenedAt:          lc.OpenedAt,
		RawPayload:        obs.RawPayload,
	}

	inserted, err := t.snapshots.Insert(ctx, snap)
	if err != nil {
		return nil, Outcome{}, errors.Wrap(err, "insert snapshot")
	}
	if !inserted {
		// Raced with a concurrent writer on the idempotency key
		outcome.Duplicate = true
	}

	return snap, outcome, nil
}

// CloseAbsent closes every open lifecycle of the account whose key was not
// observed in the current cycle. A position missing from the venue payload
// means it is no longer open.
func (t *Tracker) CloseAbsent(ctx context.Context, accountID uuid.UUID, seen map[Key]struct{}, closedAt time.Time) ([]*Lifecycle, error) {
	open, err := t.lifecycles.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list open lifecycles")
	}

	var closed []*Lifecycle
	for _, lc := range open {
		if _, ok := seen[Key{Symbol: lc.Symbol, Side: lc.Side}]; ok {
			continue
		}
		if err := t.lifecycles.Close(ctx, lc.ID, closedAt); err != nil {
			return nil, errors.Wrapf(err, "close lifecycle %s", lc.ID)
		}
		t.log.Infow("Lifecycle closed",
			"lifecycle_id", lc.ID, "symbol", lc.Symbol, "side", lc.Side,
			"opened_at", lc.OpenedAt, "closed_at", closedAt)
		closed = append(closed, lc)
	}
	return closed, nil
}

// openLifecycle returns the open lifecycle for the observation's key,
// creating one (and inferring leverage) when the key is in the closed state.
func (t *Tracker) openLifecycle(ctx context.Context, obs Observation) (*Lifecycle, Outcome, error) {
	lc, err := t.lifecycles.GetOpen(ctx, obs.AccountID, obs.Symbol, obs.Side)
	if err == nil {
		return lc, Outcome{}, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, Outcome{}, errors.Wrap(err, "get open lifecycle")
	}

	res, err := t.calc.Infer(ctx, leverage.Input{
		AccountID:         obs.AccountID,
		Symbol:            obs.Symbol,
		NotionalUSD:       obs.NotionalUSD,
		CurrentMarginUsed: obs.CurrentMarginUsed,
		MarginRate:        obs.MarginRate,
		OpenedAt:          obs.ObservedAt,
	})
	if err != nil {
		return nil, Outcome{}, errors.Wrap(err, "infer leverage")
	}

	lc = &Lifecycle{
		ID:             uuid.New(),
		AccountID:      obs.AccountID,
		Symbol:         obs.Symbol,
		Side:           obs.Side,
		Leverage:       res.Leverage,
		CollateralUsed: res.CollateralUsed,
		Method:         res.Method,
		OpenedAt:       obs.ObservedAt,
	}
	if err := t.lifecycles.Create(ctx, lc); err != nil {
		return nil, Outcome{}, errors.Wrap(err, "create lifecycle")
	}

	t.log.Infow("Lifecycle opened",
		"lifecycle_id", lc.ID, "symbol", lc.Symbol, "side", lc.Side,
		"method", lc.Method, "opened_at", lc.OpenedAt)

	return lc, Outcome{Opened: true, StaleBaseline: res.StaleBaseline}, nil
}

// closeOpen closes the open lifecycle for a key, no-op when already closed
func (t *Tracker) closeOpen(ctx context.Context, accountID uuid.UUID, key Key, closedAt time.Time) error {
	lc, err := t.lifecycles.GetOpen(ctx, accountID, key.Symbol, key.Side)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "get open lifecycle")
	}

	if err := t.lifecycles.Close(ctx, lc.ID, closedAt); err != nil {
		return errors.Wrapf(err, "close lifecycle %s", lc.ID)
	}

	t.log.Infow("Lifecycle closed",
		"lifecycle_id", lc.ID, "symbol", key.Symbol, "side", key.Side,
		"opened_at", lc.OpenedAt, "closed_at", closedAt)
	return nil
}

// resolveStrategy looks up the active strategy label. Resolver failures are
// logged and degrade to no attribution, they never fail the observation.
func (t *Tracker) resolveStrategy(ctx context.Context, obs Observation) *uuid.UUID {
	if t.resolver == nil {
		return nil
	}
	strategyID, err := t.resolver.Resolve(ctx, obs.AccountID, obs.Symbol, obs.ObservedAt)
	if err != nil {
		t.log.Warnw("Strategy resolution failed",
			"account_id", obs.AccountID, "symbol", obs.Symbol, "error", err)
		return nil
	}
	return strategyID
}
