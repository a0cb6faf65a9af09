package strategy_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain/strategy"
	"atlas/pkg/errors"
)

// mockRepository is a mock implementation of strategy.Repository
type mockRepository struct {
	assignments []*strategy.Assignment
}

func (m *mockRepository) GetStrategy(ctx context.Context, id uuid.UUID) (*strategy.Strategy, error) {
	return nil, errors.ErrNotFound
}

func (m *mockRepository) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*strategy.Assignment, error) {
	return m.assignments, nil
}

func (m *mockRepository) ListAssignmentsBySymbol(ctx context.Context, accountID uuid.UUID, symbol string) ([]*strategy.Assignment, error) {
	var out []*strategy.Assignment
	for _, a := range m.assignments {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepository) ActiveAssignments(ctx context.Context, accountID uuid.UUID) ([]*strategy.Assignment, error) {
	var out []*strategy.Assignment
	for _, a := range m.assignments {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func assignment(symbol string, startsAt time.Time, endsAt *time.Time) *strategy.Assignment {
	return &strategy.Assignment{
		ID:         uuid.New(),
		AccountID:  uuid.New(),
		Symbol:     symbol,
		StrategyID: uuid.New(),
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Active:     endsAt == nil,
	}
}

func TestResolve_PicksCoveringAssignment(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	closed := assignment("BTCUSDT", base, timePtr(base.Add(24*time.Hour)))
	current := assignment("BTCUSDT", base.Add(24*time.Hour), nil)
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{closed, current}})

	id, err := resolver.Resolve(ctx, uuid.New(), "BTCUSDT", base.Add(48*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, current.StrategyID, *id)
}

func TestResolve_OverlapLatestStartWins(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Overlapping spans are upstream data-entry errors; resolution must
	// still be deterministic
	older := assignment("BTCUSDT", base, nil)
	newer := assignment("BTCUSDT", base.Add(time.Hour), nil)
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{older, newer}})

	id, err := resolver.Resolve(ctx, uuid.New(), "BTCUSDT", base.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, newer.StrategyID, *id)
}

func TestResolve_BeforeAnyAssignmentIsNil(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := assignment("BTCUSDT", base, nil)
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{a}})

	id, err := resolver.Resolve(ctx, uuid.New(), "BTCUSDT", base.Add(-time.Second))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestResolve_EndedAssignmentDoesNotCover(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := assignment("BTCUSDT", base, timePtr(base.Add(time.Hour)))
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{a}})

	id, err := resolver.Resolve(ctx, uuid.New(), "BTCUSDT", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestResolve_OtherSymbolIgnored(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := assignment("ETHUSDT", base, nil)
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{a}})

	id, err := resolver.Resolve(ctx, uuid.New(), "BTCUSDT", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestActiveMap(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	btc := assignment("BTCUSDT", base, nil)
	eth := assignment("ETHUSDT", base, nil)
	ended := assignment("SOLUSDT", base, timePtr(base.Add(time.Hour)))
	resolver := strategy.NewResolver(&mockRepository{assignments: []*strategy.Assignment{btc, eth, ended}})

	m, err := resolver.ActiveMap(ctx, uuid.New())
	require.NoError(t, err)

	assert.Len(t, m, 2)
	assert.Equal(t, btc.StrategyID, m["BTCUSDT"])
	assert.Equal(t, eth.StrategyID, m["ETHUSDT"])
}
