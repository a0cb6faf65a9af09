package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"atlas/internal/domain/ledger"
	"atlas/pkg/errors"
)

// Compile-time check
var _ ledger.Repository = (*LedgerRepository)(nil)

// LedgerRepository implements ledger.Repository using sqlx
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert appends a ledger entry; duplicate (account_id, observed_at) rows
// are absorbed and reported via the bool return
func (r *LedgerRepository) Insert(ctx context.Context, entry *ledger.Entry) (bool, error) {
	query := `
		INSERT INTO ledger_entries (
			id, account_id, observed_at, total_equity, total_margin_used, created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (account_id, observed_at) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.ObservedAt,
		entry.TotalEquity, entry.TotalMarginUsed,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert ledger entry")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return rows > 0, nil
}

// LatestBefore returns the newest entry strictly before the given time
func (r *LedgerRepository) LatestBefore(ctx context.Context, accountID uuid.UUID, before time.Time) (*ledger.Entry, error) {
	var entry ledger.Entry

	query := `
		SELECT * FROM ledger_entries
		WHERE account_id = $1 AND observed_at < $2
		ORDER BY observed_at DESC, created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &entry, query, accountID, before)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no ledger entry before timestamp")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ledger entry")
	}

	return &entry, nil
}

// Latest returns the newest entry for an account
func (r *LedgerRepository) Latest(ctx context.Context, accountID uuid.UUID) (*ledger.Entry, error) {
	var entry ledger.Entry

	query := `
		SELECT * FROM ledger_entries
		WHERE account_id = $1
		ORDER BY observed_at DESC, created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &entry, query, accountID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no ledger entries for account")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ledger entry")
	}

	return &entry, nil
}

// ListRange returns entries within [from, to) ordered by observed_at
func (r *LedgerRepository) ListRange(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry

	query := `
		SELECT * FROM ledger_entries
		WHERE account_id = $1
		  AND observed_at >= $2
		  AND observed_at < $3
		ORDER BY observed_at ASC, created_at ASC`

	err := r.db.SelectContext(ctx, &entries, query, accountID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger entries")
	}

	return entries, nil
}
