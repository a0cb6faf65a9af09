package kafka

// Topic definitions for event streaming
const (
	// Ingestion: normalized account snapshot cycles produced by venue clients
	TopicSnapshotCycles = "accounts.snapshot_cycles"

	// Reconciliation results
	TopicTradesAggregated = "trades.aggregated"
	TopicLifecyclesOpened = "lifecycles.opened"
	TopicLifecyclesClosed = "lifecycles.closed"
	TopicIngestionFlags   = "ingestion.flags"
)
