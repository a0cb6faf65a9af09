package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain/ledger"
	"atlas/internal/testsupport"
	"atlas/pkg/errors"
)

func newLedgerEntry(accountID uuid.UUID, at time.Time, marginUsed string) *ledger.Entry {
	return &ledger.Entry{
		ID:              uuid.New(),
		AccountID:       accountID,
		ObservedAt:      at,
		TotalEquity:     decimal.RequireFromString("1000"),
		TotalMarginUsed: decimal.RequireFromString(marginUsed),
	}
}

func TestLedgerRepository_InsertIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewLedgerRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inserted, err := repo.Insert(ctx, newLedgerEntry(accountID, at, "162.22"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same (account, observed_at) is silently absorbed
	again, err := repo.Insert(ctx, newLedgerEntry(accountID, at, "999"))
	require.NoError(t, err)
	assert.False(t, again)

	latest, err := repo.Latest(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, latest.TotalMarginUsed.Equal(decimal.RequireFromString("162.22")))
}

func TestLedgerRepository_LatestBeforeIsStrict(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewLedgerRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	_, err := repo.Insert(ctx, newLedgerEntry(accountID, t1, "0"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newLedgerEntry(accountID, t2, "162.22"))
	require.NoError(t, err)

	// An entry at exactly t2 must not serve as its own baseline
	prev, err := repo.LatestBefore(ctx, accountID, t2)
	require.NoError(t, err)
	assert.True(t, prev.ObservedAt.Equal(t1))
	assert.True(t, prev.TotalMarginUsed.IsZero())

	_, err = repo.LatestBefore(ctx, accountID, t1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLedgerRepository_ListRange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewLedgerRepository(testDB.Tx())
	ctx := context.Background()

	accountID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Insert(ctx, newLedgerEntry(accountID, base.Add(time.Duration(i)*time.Minute), "10"))
		require.NoError(t, err)
	}

	entries, err := repo.ListRange(ctx, accountID, base, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 2, "range end is exclusive")
	assert.True(t, entries[0].ObservedAt.Before(entries[1].ObservedAt))
}
