package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"atlas/internal/domain/fill"
	"atlas/pkg/errors"
)

// Compile-time check
var _ fill.Repository = (*FillRepository)(nil)

// FillRepository implements fill.Repository using sqlx
type FillRepository struct {
	db DBTX
}

// NewFillRepository creates a new fill repository
func NewFillRepository(db DBTX) *FillRepository {
	return &FillRepository{db: db}
}

// Insert appends a fill; re-ingested venue records hit the unique index on
// (account_id, symbol, side, size, observed_at) and are absorbed
func (r *FillRepository) Insert(ctx context.Context, f *fill.Fill) (bool, error) {
	query := `
		INSERT INTO fills (
			id, account_id, symbol, side,
			size, entry_price, exit_price,
			realized_pnl, fees, is_reducing,
			observed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (account_id, symbol, side, size, observed_at) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		f.ID, f.AccountID, f.Symbol, f.Side,
		f.Size, f.EntryPrice, f.ExitPrice,
		f.RealizedPnL, f.Fees, f.IsReducing,
		f.ObservedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert fill")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return rows > 0, nil
}

// ListSince returns fills for a symbol ordered by observed_at
func (r *FillRepository) ListSince(ctx context.Context, accountID uuid.UUID, symbol string, since time.Time) ([]*fill.Fill, error) {
	var fills []*fill.Fill

	query := `
		SELECT * FROM fills
		WHERE account_id = $1 AND symbol = $2 AND observed_at >= $3
		ORDER BY observed_at ASC, created_at ASC`

	err := r.db.SelectContext(ctx, &fills, query, accountID, symbol, since)
	if err != nil {
		return nil, errors.Wrap(err, "list fills")
	}

	return fills, nil
}

// SymbolsSince returns distinct symbols with fill activity after the given time
func (r *FillRepository) SymbolsSince(ctx context.Context, accountID uuid.UUID, since time.Time) ([]string, error) {
	var symbols []string

	query := `
		SELECT DISTINCT symbol FROM fills
		WHERE account_id = $1 AND observed_at >= $2
		ORDER BY symbol`

	err := r.db.SelectContext(ctx, &symbols, query, accountID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list fill symbols")
	}

	return symbols, nil
}

// AccountsSince returns distinct accounts with fill activity after the given time
func (r *FillRepository) AccountsSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var accounts []uuid.UUID

	query := `
		SELECT DISTINCT account_id FROM fills
		WHERE observed_at >= $1
		ORDER BY account_id`

	err := r.db.SelectContext(ctx, &accounts, query, since)
	if err != nil {
		return nil, errors.Wrap(err, "list fill accounts")
	}

	return accounts, nil
}
