package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain/lifecycle"
	"atlas/internal/testsupport"
	"atlas/pkg/errors"
)

func newSnapshot(lc *lifecycle.Lifecycle, observedAt time.Time, size string) *lifecycle.Snapshot {
	return &lifecycle.Snapshot{
		ID:                uuid.New(),
		AccountID:         lc.AccountID,
		Symbol:            lc.Symbol,
		Side:              lc.Side,
		Size:              decimal.RequireFromString(size),
		NotionalUSD:       decimal.RequireFromString("810.27"),
		EntryPrice:        decimal.RequireFromString("64230.5"),
		Leverage:          lc.Leverage,
		CollateralUsed:    lc.CollateralUsed,
		CalculationMethod: lc.Method,
		LifecycleID:       lc.ID,
		ObservedAt:        observedAt,
		OpenedAt:          lc.OpenedAt,
		RawPayload:        json.RawMessage(`{"coin":"BTC"}`),
	}
}

func TestSnapshotRepository_InsertAbsorbsDuplicates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	lifecycles := NewLifecycleRepository(testDB.Tx())
	snapshots := NewSnapshotRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lc := newLifecycle(accountID, "BTC", lifecycle.SideLong, openedAt)
	require.NoError(t, lifecycles.Create(ctx, lc))

	snap := newSnapshot(lc, openedAt, "0.0126")
	inserted, err := snapshots.Insert(ctx, snap)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Replayed observation on the same key is dropped by the unique index
	replay := newSnapshot(lc, openedAt, "0.0200")
	again, err := snapshots.Insert(ctx, replay)
	require.NoError(t, err)
	assert.False(t, again)

	got, err := snapshots.GetByKey(ctx, accountID, "BTC", lifecycle.SideLong, openedAt)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, got.Size.Equal(decimal.RequireFromString("0.0126")))
	assert.JSONEq(t, `{"coin":"BTC"}`, string(got.RawPayload))
}

func TestSnapshotRepository_LatestBefore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	lifecycles := NewLifecycleRepository(testDB.Tx())
	snapshots := NewSnapshotRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lc := newLifecycle(accountID, "BTC", lifecycle.SideLong, openedAt)
	require.NoError(t, lifecycles.Create(ctx, lc))

	first := newSnapshot(lc, openedAt, "0.0126")
	second := newSnapshot(lc, openedAt.Add(5*time.Minute), "0.0126")
	_, err := snapshots.Insert(ctx, first)
	require.NoError(t, err)
	_, err = snapshots.Insert(ctx, second)
	require.NoError(t, err)

	// Inclusive bound: the snapshot at exactly the cutoff is eligible
	got, err := snapshots.LatestBefore(ctx, accountID, "BTC", second.ObservedAt)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = snapshots.LatestBefore(ctx, accountID, "BTC", openedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = snapshots.LatestBefore(ctx, accountID, "BTC", openedAt.Add(-time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSnapshotRepository_ListByLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	lifecycles := NewLifecycleRepository(testDB.Tx())
	snapshots := NewSnapshotRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	lc := newLifecycle(accountID, "ETH", lifecycle.SideShort, openedAt)
	other := newLifecycle(accountID, "SOL", lifecycle.SideLong, openedAt)
	require.NoError(t, lifecycles.Create(ctx, lc))
	require.NoError(t, lifecycles.Create(ctx, other))

	for i := 0; i < 3; i++ {
		_, err := snapshots.Insert(ctx, newSnapshot(lc, openedAt.Add(time.Duration(i)*time.Minute), "1.5"))
		require.NoError(t, err)
	}
	_, err := snapshots.Insert(ctx, newSnapshot(other, openedAt, "10"))
	require.NoError(t, err)

	list, err := snapshots.ListByLifecycle(ctx, lc.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].ObservedAt.Before(list[i].ObservedAt))
	}
}
