package workers

import (
	"context"
	"time"

	"atlas/internal/adapters/kafka"
	"atlas/internal/domain/fill"
	"atlas/internal/domain/trade"
	"atlas/pkg/errors"
)

// Publisher emits aggregation events, the kafka producer satisfies it
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// AggregationWorker periodically rebuilds aggregated trades from raw fills.
// Aggregation is a pure recomputation over committed rows, so running
// alongside ingestion is safe.
type AggregationWorker struct {
	*BaseWorker

	aggregator *trade.Aggregator
	fills      fill.Repository
	publisher  Publisher
	lookback   time.Duration
}

// NewAggregationWorker creates the aggregation worker. publisher may be nil.
func NewAggregationWorker(
	aggregator *trade.Aggregator,
	fills fill.Repository,
	publisher Publisher,
	interval time.Duration,
	lookback time.Duration,
	enabled bool,
) *AggregationWorker {
	return &AggregationWorker{
		BaseWorker: NewBaseWorker("trade_aggregation", interval, enabled),
		aggregator: aggregator,
		fills:      fills,
		publisher:  publisher,
		lookback:   lookback,
	}
}

// Run re-aggregates every account with fill activity inside the lookback
// window. Per-account failures are logged and do not stop the pass.
func (w *AggregationWorker) Run(ctx context.Context) error {
	since := time.Now().Add(-w.lookback)

	accounts, err := w.fills.AccountsSince(ctx, since)
	if err != nil {
		w.RecordError(err)
		return errors.Wrap(err, "list accounts with fills")
	}
	if len(accounts) == 0 {
		w.RecordRun()
		return nil
	}

	var failures int
	total := 0
	for _, accountID := range accounts {
		written, err := w.aggregator.AggregateAccount(ctx, accountID, since)
		if err != nil {
			failures++
			w.Log().Errorw("Account aggregation failed",
				"account_id", accountID, "error", err)
			continue
		}
		total += written

		if written > 0 && w.publisher != nil {
			event := map[string]interface{}{
				"account_id":     accountID,
				"trades_written": written,
				"since":          since,
			}
			if err := w.publisher.Publish(ctx, kafka.TopicTradesAggregated, accountID.String(), event); err != nil {
				w.Log().Errorf("Failed to publish aggregation event: %v", err)
			}
		}
	}

	w.Log().Infow("Aggregation pass complete",
		"accounts", len(accounts), "trades_written", total, "failures", failures)

	if failures == len(accounts) {
		err := errors.Wrapf(errors.ErrInternal, "all %d accounts failed to aggregate", failures)
		w.RecordError(err)
		return err
	}

	w.RecordRun()
	return nil
}
