package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"atlas/internal/adapters/kafka"
	"atlas/internal/domain/fill"
	"atlas/internal/domain/ledger"
	"atlas/internal/domain/leverage"
	"atlas/internal/domain/lifecycle"
	"atlas/internal/domain/strategy"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Repos bundles the repositories one cycle writes through. The store hands a
// transaction-scoped instance to the cycle callback, so every repository in
// the bundle commits or rolls back together.
type Repos struct {
	Ledger     ledger.Repository
	Lifecycles lifecycle.Repository
	Snapshots  lifecycle.SnapshotRepository
	Fills      fill.Repository
	Strategies strategy.Repository
}

// Store runs a cycle's writes inside one database transaction
type Store interface {
	WithinCycle(ctx context.Context, fn func(Repos) error) error
}

// Locker serializes cycles per account across application instances
type Locker interface {
	Acquire(ctx context.Context, accountID uuid.UUID) (bool, error)
	Release(ctx context.Context, accountID uuid.UUID) error
}

// Publisher emits post-commit events. The kafka producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Options tunes cycle processing
type Options struct {
	// MaxLeverage caps inferred multipliers
	MaxLeverage int

	// StaleAfter is the expected polling interval; older ledger baselines
	// get the StaleLedger flag
	StaleAfter time.Duration
}

// Service orchestrates one ingestion cycle: ledger entry, position lifecycle
// transitions, snapshots and fills, all in a single transaction, serialized
// per account by the lock.
//
// Nothing a cycle computes is fatal: algorithmic dead ends degrade to
// calculation_method = unknown or strategy_id = nil, and only infrastructure
// failures roll the cycle back.
type Service struct {
	store     Store
	locker    Locker
	publisher Publisher
	opts      Options
	log       *logger.Logger
}

// NewService constructs the ingestion service. publisher may be nil when no
// event bus is configured.
func NewService(store Store, locker Locker, publisher Publisher, opts Options) *Service {
	if opts.MaxLeverage <= 0 {
		opts.MaxLeverage = 50
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		opts:      opts,
		log:       logger.Get().With("component", "ingest"),
	}
}

// IngestCycle applies one normalized snapshot cycle.
//
// Returns ErrCycleInFlight when another cycle for the same account holds the
// lock; the caller should skip, not retry in place. All writes commit
// atomically: either the cycle's ledger entry and every snapshot land
// together or none do.
func (s *Service) IngestCycle(ctx context.Context, c Cycle) (*CycleResult, error) {
	if c.AccountID == uuid.Nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "missing account id")
	}
	if c.ObservedAt.IsZero() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "missing observed_at")
	}

	acquired, err := s.locker.Acquire(ctx, c.AccountID)
	if err != nil {
		return nil, errors.Wrap(err, "acquire cycle lock")
	}
	if !acquired {
		s.log.Warnw("Cycle already in flight, skipping",
			"account_id", c.AccountID, "observed_at", c.ObservedAt)
		return nil, errors.ErrCycleInFlight
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), c.AccountID); err != nil {
			s.log.Errorf("Failed to release cycle lock for %s: %v", c.AccountID, err)
		}
	}()

	result := &CycleResult{AccountID: c.AccountID, ObservedAt: c.ObservedAt}
	var (
		opened []*lifecycle.Snapshot
		closed []*lifecycle.Lifecycle
	)

	err = s.store.WithinCycle(ctx, func(r Repos) error {
		opened, closed = nil, nil
		*result = CycleResult{AccountID: c.AccountID, ObservedAt: c.ObservedAt}

		ledgerSvc := ledger.NewService(r.Ledger)
		calc := leverage.NewCalculator(r.Ledger, s.opts.MaxLeverage, s.opts.StaleAfter)
		resolver := strategy.NewResolver(r.Strategies)
		tracker := lifecycle.NewTracker(r.Lifecycles, r.Snapshots, calc, resolver)

		if _, err := ledgerSvc.Record(ctx, &ledger.Entry{
			AccountID:       c.AccountID,
			ObservedAt:      c.ObservedAt,
			TotalEquity:     c.Ledger.TotalEquity,
			TotalMarginUsed: c.Ledger.TotalMarginUsed,
		}); err != nil {
			return errors.Wrap(err, "record ledger entry")
		}

		seen := make(map[lifecycle.Key]struct{}, len(c.Positions))
		for _, p := range c.Positions {
			obs := lifecycle.Observation{
				AccountID:         c.AccountID,
				Symbol:            p.Symbol,
				Side:              lifecycle.Side(p.Side),
				Size:              p.Size,
				NotionalUSD:       p.NotionalUSD,
				EntryPrice:        p.EntryPrice,
				CurrentMarginUsed: c.Ledger.TotalMarginUsed,
				MarginRate:        p.MarginRate,
				ObservedAt:        c.ObservedAt,
				RawPayload:        p.Raw,
			}

			snap, outcome, err := tracker.Observe(ctx, obs)
			if err != nil {
				return errors.Wrapf(err, "observe %s %s", p.Symbol, p.Side)
			}

			if snap != nil && !snap.Size.IsZero() {
				seen[obs.Key()] = struct{}{}
			}
			if snap != nil && !outcome.Duplicate {
				result.SnapshotsStored++
			}
			if outcome.Opened {
				result.LifecyclesOpened++
				opened = append(opened, snap)
			}
			if outcome.Duplicate {
				result.Duplicates++
			}
			if outcome.StaleBaseline {
				result.Flags.StaleLedger = true
			}
		}

		// Two or more opens in one polling window share a single margin
		// delta; each gets the full delta attributed, which overstates
		// collateral. Computed anyway, surfaced as a flag.
		if result.LifecyclesOpened > 1 {
			result.Flags.AmbiguousAttribution = true
			s.log.Warnw("Multiple lifecycles opened in one cycle",
				"account_id", c.AccountID, "opened", result.LifecyclesOpened)
		}

		var err error
		closed, err = tracker.CloseAbsent(ctx, c.AccountID, seen, c.ObservedAt)
		if err != nil {
			return errors.Wrap(err, "close absent lifecycles")
		}
		result.LifecyclesClosed = len(closed)

		for _, f := range c.Fills {
			if inserted, err := r.Fills.Insert(ctx, &fill.Fill{
				ID:          uuid.New(),
				AccountID:   c.AccountID,
				Symbol:      f.Symbol,
				Side:        f.Side,
				Size:        f.Size,
				EntryPrice:  f.EntryPrice,
				ExitPrice:   f.ExitPrice,
				RealizedPnL: f.RealizedPnL,
				Fees:        f.Fees,
				IsReducing:  f.IsReducing,
				ObservedAt:  f.ObservedAt,
			}); err != nil {
				return errors.Wrapf(err, "insert fill %s", f.Symbol)
			} else if inserted {
				result.FillsStored++
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ingest cycle")
	}

	s.log.Infow("Cycle ingested",
		"account_id", c.AccountID, "observed_at", c.ObservedAt,
		"snapshots", result.SnapshotsStored, "opened", result.LifecyclesOpened,
		"closed", result.LifecyclesClosed, "fills", result.FillsStored,
		"duplicates", result.Duplicates)

	s.publishCycleEvents(ctx, result, opened, closed)

	return result, nil
}

// publishCycleEvents emits post-commit notifications. Publish failures are
// logged only; the cycle is already durable.
func (s *Service) publishCycleEvents(ctx context.Context, result *CycleResult, opened []*lifecycle.Snapshot, closed []*lifecycle.Lifecycle) {
	if s.publisher == nil {
		return
	}

	key := result.AccountID.String()

	for _, snap := range opened {
		event := map[string]interface{}{
			"lifecycle_id":       snap.LifecycleID,
			"account_id":         snap.AccountID,
			"symbol":             snap.Symbol,
			"side":               snap.Side,
			"leverage":           snap.Leverage,
			"calculation_method": snap.CalculationMethod,
			"opened_at":          snap.OpenedAt,
		}
		if err := s.publisher.Publish(ctx, kafka.TopicLifecyclesOpened, key, event); err != nil {
			s.log.Errorf("Failed to publish lifecycle open event: %v", err)
		}
	}

	for _, lc := range closed {
		event := map[string]interface{}{
			"lifecycle_id": lc.ID,
			"account_id":   lc.AccountID,
			"symbol":       lc.Symbol,
			"side":         lc.Side,
			"opened_at":    lc.OpenedAt,
			"closed_at":    result.ObservedAt,
		}
		if err := s.publisher.Publish(ctx, kafka.TopicLifecyclesClosed, key, event); err != nil {
			s.log.Errorf("Failed to publish lifecycle close event: %v", err)
		}
	}

	if result.Flags.StaleLedger || result.Flags.AmbiguousAttribution {
		if err := s.publisher.Publish(ctx, kafka.TopicIngestionFlags, key, result); err != nil {
			s.log.Errorf("Failed to publish ingestion flags: %v", err)
		}
	}
}
