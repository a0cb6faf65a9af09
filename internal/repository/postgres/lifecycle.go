package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"atlas/internal/domain/lifecycle"
	"atlas/pkg/errors"
)

// Compile-time check
var _ lifecycle.Repository = (*LifecycleRepository)(nil)

// LifecycleRepository implements lifecycle.Repository using sqlx
type LifecycleRepository struct {
	db DBTX
}

// NewLifecycleRepository creates a new lifecycle repository
func NewLifecycleRepository(db DBTX) *LifecycleRepository {
	return &LifecycleRepository{db: db}
}

// Create inserts a new lifecycle. A partial unique index on
// (account_id, symbol, side) WHERE closed_at IS NULL guarantees at most one
// open lifecycle per state-machine key.
func (r *LifecycleRepository) Create(ctx context.Context, lc *lifecycle.Lifecycle) error {
	query := `
		INSERT INTO position_lifecycles (
			id, account_id, symbol, side,
			leverage, collateral_used, calculation_method,
			opened_at, closed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		lc.ID, lc.AccountID, lc.Symbol, lc.Side,
		lc.Leverage, lc.CollateralUsed, lc.Method,
		lc.OpenedAt, lc.ClosedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert lifecycle")
	}

	return nil
}

// GetOpen returns the open lifecycle for a state-machine key
func (r *LifecycleRepository) GetOpen(ctx context.Context, accountID uuid.UUID, symbol string, side lifecycle.Side) (*lifecycle.Lifecycle, error) {
	var lc lifecycle.Lifecycle

	query := `
		SELECT * FROM position_lifecycles
		WHERE account_id = $1 AND symbol = $2 AND side = $3 AND closed_at IS NULL`

	err := r.db.GetContext(ctx, &lc, query, accountID, symbol, side)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no open lifecycle")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get open lifecycle")
	}

	return &lc, nil
}

// GetByID retrieves a lifecycle by ID
func (r *LifecycleRepository) GetByID(ctx context.Context, id uuid.UUID) (*lifecycle.Lifecycle, error) {
	var lc lifecycle.Lifecycle

	query := `SELECT * FROM position_lifecycles WHERE id = $1`

	err := r.db.GetContext(ctx, &lc, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrLifecycleNotFound, id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "get lifecycle")
	}

	return &lc, nil
}

// ListOpenByAccount returns all open lifecycles for an account
func (r *LifecycleRepository) ListOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*lifecycle.Lifecycle, error) {
	var lcs []*lifecycle.Lifecycle

	query := `
		SELECT * FROM position_lifecycles
		WHERE account_id = $1 AND closed_at IS NULL
		ORDER BY opened_at ASC`

	err := r.db.SelectContext(ctx, &lcs, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list open lifecycles")
	}

	return lcs, nil
}

// ListBySymbol returns all lifecycles for a symbol ordered by opened_at
func (r *LifecycleRepository) ListBySymbol(ctx context.Context, accountID uuid.UUID, symbol string) ([]*lifecycle.Lifecycle, error) {
	var lcs []*lifecycle.Lifecycle

	query := `
		SELECT * FROM position_lifecycles
		WHERE account_id = $1 AND symbol = $2
		ORDER BY opened_at ASC`

	err := r.db.SelectContext(ctx, &lcs, query, accountID, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "list lifecycles")
	}

	return lcs, nil
}

// Close stamps closed_at on an open lifecycle. Closing an already-closed
// lifecycle is rejected: terminal lifecycles are immutable.
func (r *LifecycleRepository) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	query := `
		UPDATE position_lifecycles SET
			closed_at = $2
		WHERE id = $1 AND closed_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, closedAt)
	if err != nil {
		return errors.Wrap(err, "close lifecycle")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrLifecycleClosed, id.String())
	}

	return nil
}
