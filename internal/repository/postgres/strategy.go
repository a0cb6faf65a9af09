package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"atlas/internal/domain/strategy"
	"atlas/pkg/errors"
)

// Compile-time check
var _ strategy.Repository = (*StrategyRepository)(nil)

// StrategyRepository implements strategy.Repository using sqlx.
// Strategies and assignments are written elsewhere; this surface is read-only.
type StrategyRepository struct {
	db DBTX
}

// NewStrategyRepository creates a new strategy repository
func NewStrategyRepository(db DBTX) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// GetStrategy returns a strategy by ID
func (r *StrategyRepository) GetStrategy(ctx context.Context, id uuid.UUID) (*strategy.Strategy, error) {
	var s strategy.Strategy

	query := `SELECT * FROM strategies WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get strategy")
	}

	return &s, nil
}

// ListAssignments returns all assignments for an account
func (r *StrategyRepository) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*strategy.Assignment, error) {
	var assignments []*strategy.Assignment

	query := `
		SELECT * FROM strategy_assignments
		WHERE account_id = $1
		ORDER BY symbol ASC, starts_at DESC`

	err := r.db.SelectContext(ctx, &assignments, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list strategy assignments")
	}

	return assignments, nil
}

// ListAssignmentsBySymbol returns all assignments for one (account, symbol) pair
func (r *StrategyRepository) ListAssignmentsBySymbol(ctx context.Context, accountID uuid.UUID, symbol string) ([]*strategy.Assignment, error) {
	var assignments []*strategy.Assignment

	query := `
		SELECT * FROM strategy_assignments
		WHERE account_id = $1 AND symbol = $2
		ORDER BY starts_at DESC`

	err := r.db.SelectContext(ctx, &assignments, query, accountID, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "list strategy assignments by symbol")
	}

	return assignments, nil
}

// ActiveAssignments returns currently active assignments for an account
func (r *StrategyRepository) ActiveAssignments(ctx context.Context, accountID uuid.UUID) ([]*strategy.Assignment, error) {
	var assignments []*strategy.Assignment

	query := `
		SELECT * FROM strategy_assignments
		WHERE account_id = $1 AND active = true
		ORDER BY symbol ASC, starts_at DESC`

	err := r.db.SelectContext(ctx, &assignments, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list active strategy assignments")
	}

	return assignments, nil
}
