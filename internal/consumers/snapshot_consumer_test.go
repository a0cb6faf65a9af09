package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/adapters/venues"
	"atlas/internal/services/ingest"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.Get().With("component", "snapshot_consumer_test")
}

// fakeIngester records calls and returns a canned response
type fakeIngester struct {
	calls  []ingest.Cycle
	result *ingest.CycleResult
	err    error
}

func (f *fakeIngester) IngestCycle(ctx context.Context, c ingest.Cycle) (*ingest.CycleResult, error) {
	f.calls = append(f.calls, c)
	return f.result, f.err
}

func cyclePayload(t *testing.T, accountID uuid.UUID) []byte {
	t.Helper()

	cycle := ingest.Cycle{
		AccountID:  accountID,
		Venue:      "hyperliquid",
		ObservedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Ledger: ingest.LedgerTotals{
			TotalEquity:     decimal.RequireFromString("1000"),
			TotalMarginUsed: decimal.RequireFromString("162.22"),
		},
		Positions: []ingest.Position{{
			Symbol:      "BTCUSDT",
			Side:        "LONG",
			Size:        decimal.RequireFromString("0.0125"),
			NotionalUSD: decimal.RequireFromString("810.27"),
			EntryPrice:  decimal.RequireFromString("64821.6"),
		}},
	}

	data, err := json.Marshal(cycle)
	require.NoError(t, err)
	return data
}

func TestHandle_DecodesAndIngests(t *testing.T) {
	accountID := uuid.New()
	ingester := &fakeIngester{result: &ingest.CycleResult{AccountID: accountID, SnapshotsStored: 1}}
	consumer := &SnapshotConsumer{service: ingester, log: testLogger()}

	err := consumer.handle(context.Background(), kafkago.Message{
		Key:   []byte(accountID.String()),
		Value: cyclePayload(t, accountID),
	})
	require.NoError(t, err)

	require.Len(t, ingester.calls, 1)
	got := ingester.calls[0]
	assert.Equal(t, accountID, got.AccountID)
	require.Len(t, got.Positions, 1)
	assert.True(t, got.Positions[0].Size.Equal(decimal.RequireFromString("0.0125")))
}

func TestHandle_MalformedPayloadIsDropped(t *testing.T) {
	ingester := &fakeIngester{}
	consumer := &SnapshotConsumer{service: ingester, log: testLogger()}

	err := consumer.handle(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.NoError(t, err, "poison messages must not stall the partition")
	assert.Empty(t, ingester.calls)
}

func TestHandle_CycleInFlightIsSkipped(t *testing.T) {
	ingester := &fakeIngester{err: errors.ErrCycleInFlight}
	consumer := &SnapshotConsumer{service: ingester, log: testLogger()}

	err := consumer.handle(context.Background(), kafkago.Message{Value: cyclePayload(t, uuid.New())})
	assert.NoError(t, err, "busy account is a skip, not a failure")
}

func TestHandle_IngestErrorPropagates(t *testing.T) {
	ingester := &fakeIngester{err: errors.ErrUnavailable}
	consumer := &SnapshotConsumer{service: ingester, log: testLogger()}

	err := consumer.handle(context.Background(), kafkago.Message{Value: cyclePayload(t, uuid.New())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func rawEnvelope(t *testing.T, accountID uuid.UUID, venue string) []byte {
	t.Helper()

	env := map[string]interface{}{
		"account_id":  accountID,
		"venue":       venue,
		"observed_at": time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		"state": json.RawMessage(`{
			"marginSummary": {"accountValue": "1000", "totalMarginUsed": "162.22"},
			"assetPositions": [{"position": {"coin": "BTC", "szi": "0.0125", "positionValue": "810.27", "entryPx": "64821.6"}}]
		}`),
		"raw_fills": json.RawMessage(`[]`),
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestHandle_RawVenuePayloadIsNormalized(t *testing.T) {
	accountID := uuid.New()
	ingester := &fakeIngester{result: &ingest.CycleResult{AccountID: accountID}}
	consumer := &SnapshotConsumer{
		service:  ingester,
		registry: venues.NewRegistry(venues.NewHyperliquid()),
		log:      testLogger(),
	}

	err := consumer.handle(context.Background(), kafkago.Message{
		Key:   []byte(accountID.String()),
		Value: rawEnvelope(t, accountID, "hyperliquid"),
	})
	require.NoError(t, err)

	require.Len(t, ingester.calls, 1)
	got := ingester.calls[0]
	assert.Equal(t, accountID, got.AccountID)
	assert.True(t, got.Ledger.TotalMarginUsed.Equal(decimal.RequireFromString("162.22")))
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "BTC", got.Positions[0].Symbol)
	assert.Equal(t, "LONG", got.Positions[0].Side)
}

func TestHandle_UnknownVenueIsDropped(t *testing.T) {
	ingester := &fakeIngester{}
	consumer := &SnapshotConsumer{
		service:  ingester,
		registry: venues.NewRegistry(venues.NewHyperliquid()),
		log:      testLogger(),
	}

	err := consumer.handle(context.Background(), kafkago.Message{
		Value: rawEnvelope(t, uuid.New(), "binance"),
	})
	assert.NoError(t, err, "unknown venues are logged and skipped")
	assert.Empty(t, ingester.calls)
}
