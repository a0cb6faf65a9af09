package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"atlas/internal/adapters/kafka"
	"atlas/internal/adapters/venues"
	"atlas/internal/services/ingest"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// CycleIngester applies one normalized snapshot cycle
type CycleIngester interface {
	IngestCycle(ctx context.Context, c ingest.Cycle) (*ingest.CycleResult, error)
}

// cycleEnvelope is the wire shape of a snapshot-cycles message. Pollers either
// publish an already normalized cycle, or attach the venue's raw state and
// fill payloads for the matching adapter to normalize here.
type cycleEnvelope struct {
	ingest.Cycle

	State    json.RawMessage `json:"state,omitempty"`
	RawFills json.RawMessage `json:"raw_fills,omitempty"`
}

// SnapshotConsumer reads snapshot-cycle payloads off the bus and feeds them
// to the ingestion service. Venue pollers publish one message per account per
// cycle; ordering within an account is preserved by keying messages on
// account_id.
type SnapshotConsumer struct {
	consumer *kafka.Consumer
	service  CycleIngester
	registry *venues.Registry
	log      *logger.Logger
}

// NewSnapshotConsumer creates a consumer over the snapshot-cycles topic
func NewSnapshotConsumer(consumer *kafka.Consumer, service CycleIngester, registry *venues.Registry) *SnapshotConsumer {
	return &SnapshotConsumer{
		consumer: consumer,
		service:  service,
		registry: registry,
		log:      logger.Get().With("component", "snapshot_consumer"),
	}
}

// Run consumes until the context is cancelled
func (c *SnapshotConsumer) Run(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handle)
}

func (c *SnapshotConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	var env cycleEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// Poison message, log and move on
		c.log.Errorf("Failed to decode cycle payload (key=%s): %v", string(msg.Key), err)
		return nil
	}

	cycle := env.Cycle
	if len(env.State) > 0 {
		adapter, err := c.registry.Get(env.Venue)
		if err != nil {
			c.log.Errorf("No adapter for venue %q (key=%s): %v", env.Venue, string(msg.Key), err)
			return nil
		}
		cycle, err = adapter.ParseCycle(env.AccountID, env.ObservedAt, env.State, env.RawFills)
		if err != nil {
			// Malformed venue payloads are not retryable
			c.log.Errorf("Failed to normalize %s payload for %s: %v", env.Venue, env.AccountID, err)
			return nil
		}
	}

	result, err := c.service.IngestCycle(ctx, cycle)
	if err != nil {
		if errors.Is(err, errors.ErrCycleInFlight) {
			// Another instance is already processing this account
			c.log.Warnw("Skipped cycle, account busy",
				"account_id", cycle.AccountID, "observed_at", cycle.ObservedAt)
			return nil
		}
		return errors.Wrapf(err, "ingest cycle for %s", cycle.AccountID)
	}

	c.log.Debugw("Cycle processed",
		"account_id", result.AccountID,
		"snapshots", result.SnapshotsStored,
		"fills", result.FillsStored)
	return nil
}

// Close shuts down the underlying reader
func (c *SnapshotConsumer) Close() error {
	return c.consumer.Close()
}
