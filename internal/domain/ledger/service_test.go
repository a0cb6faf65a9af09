package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain/ledger"
	"atlas/pkg/errors"
)

// mockRepository implements ledger.Repository with configurable behavior
type mockRepository struct {
	insertFunc    func(ctx context.Context, entry *ledger.Entry) (bool, error)
	listRangeFunc func(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*ledger.Entry, error)
	latestFunc    func(ctx context.Context, accountID uuid.UUID) (*ledger.Entry, error)
}

func (m *mockRepository) Insert(ctx context.Context, entry *ledger.Entry) (bool, error) {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, entry)
	}
	return true, nil
}

func (m *mockRepository) LatestBefore(ctx context.Context, accountID uuid.UUID, before time.Time) (*ledger.Entry, error) {
	return nil, errors.ErrNotFound
}

func (m *mockRepository) Latest(ctx context.Context, accountID uuid.UUID) (*ledger.Entry, error) {
	if m.latestFunc != nil {
		return m.latestFunc(ctx, accountID)
	}
	return nil, errors.ErrNotFound
}

func (m *mockRepository) ListRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*ledger.Entry, error) {
	if m.listRangeFunc != nil {
		return m.listRangeFunc(ctx, accountID, from, to)
	}
	return nil, nil
}

func validEntry() *ledger.Entry {
	return &ledger.Entry{
		AccountID:       uuid.New(),
		ObservedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalEquity:     decimal.RequireFromString("1000"),
		TotalMarginUsed: decimal.RequireFromString("162.22"),
	}
}

func TestRecord_AssignsIDAndInserts(t *testing.T) {
	var stored *ledger.Entry
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, entry *ledger.Entry) (bool, error) {
			stored = entry
			return true, nil
		},
	}
	svc := ledger.NewService(repo)

	entry := validEntry()
	inserted, err := svc.Record(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NotNil(t, stored)
	assert.NotEqual(t, uuid.Nil, stored.ID)
}

func TestRecord_DuplicateAbsorbed(t *testing.T) {
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, entry *ledger.Entry) (bool, error) {
			return false, nil
		},
	}
	svc := ledger.NewService(repo)

	inserted, err := svc.Record(context.Background(), validEntry())
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestRecord_Validation(t *testing.T) {
	svc := ledger.NewService(&mockRepository{})
	ctx := context.Background()

	_, err := svc.Record(ctx, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	noAccount := validEntry()
	noAccount.AccountID = uuid.Nil
	_, err = svc.Record(ctx, noAccount)
	assert.True(t, errors.Is(err, ledger.ErrMissingAccount))

	noTime := validEntry()
	noTime.ObservedAt = time.Time{}
	_, err = svc.Record(ctx, noTime)
	assert.True(t, errors.Is(err, ledger.ErrMissingTimestamp))

	negative := validEntry()
	negative.TotalMarginUsed = decimal.RequireFromString("-1")
	_, err = svc.Record(ctx, negative)
	assert.True(t, errors.Is(err, ledger.ErrNegativeMargin))
}

func TestEquityHistory(t *testing.T) {
	accountID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	repo := &mockRepository{
		listRangeFunc: func(ctx context.Context, gotAccount uuid.UUID, gotFrom, gotTo time.Time) ([]*ledger.Entry, error) {
			assert.Equal(t, accountID, gotAccount)
			assert.True(t, gotFrom.Equal(from))
			assert.True(t, gotTo.Equal(to))
			return []*ledger.Entry{{AccountID: accountID, ObservedAt: from}}, nil
		},
	}
	svc := ledger.NewService(repo)

	entries, err := svc.EquityHistory(context.Background(), accountID, from, to)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = svc.EquityHistory(context.Background(), uuid.Nil, from, to)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestLatest(t *testing.T) {
	accountID := uuid.New()
	repo := &mockRepository{
		latestFunc: func(ctx context.Context, gotAccount uuid.UUID) (*ledger.Entry, error) {
			return &ledger.Entry{AccountID: gotAccount, TotalEquity: decimal.RequireFromString("1000")}, nil
		},
	}
	svc := ledger.NewService(repo)

	entry, err := svc.Latest(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, accountID, entry.AccountID)

	_, err = svc.Latest(context.Background(), uuid.Nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
