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
var _ lifecycle.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository implements lifecycle.SnapshotRepository using sqlx
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert appends a snapshot; the unique index on
// (account_id, symbol, side, observed_at) is the idempotency key
func (r *SnapshotRepository) Insert(ctx context.Context, snap *lifecycle.Snapshot) (bool, error) {
	query := `
		INSERT INTO position_snapshots (
			id, account_id, symbol, side,
			size, notional_usd, entry_price,
			leverage, collateral_used, calculation_method,
			lifecycle_id, strategy_id,
			observed_at, opened_at, raw_payload, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW()
		)
		ON CONFLICT (account_id, symbol, side, observed_at) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		snap.ID, snap.AccountID, snap.Symbol, snap.Side,
		snap.Size, snap.NotionalUSD, snap.EntryPrice,
		snap.Leverage, snap.CollateralUsed, snap.CalculationMethod,
		snap.LifecycleID, snap.StrategyID,
		snap.ObservedAt, snap.OpenedAt, snap.RawPayload,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert snapshot")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return rows > 0, nil
}

// GetByKey fetches a snapshot by its idempotency key
func (r *SnapshotRepository) GetByKey(ctx context.Context, accountID uuid.UUID, symbol string, side lifecycle.Side, observedAt time.Time) (*lifecycle.Snapshot, error) {
	var snap lifecycle.Snapshot

	query := `
		SELECT * FROM position_snapshots
		WHERE account_id = $1 AND symbol = $2 AND side = $3 AND observed_at = $4`

	err := r.db.GetContext(ctx, &snap, query, accountID, symbol, side, observedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no snapshot for key")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get snapshot")
	}

	return &snap, nil
}

// LatestBefore returns the newest snapshot for a symbol with observed_at <= at
func (r *SnapshotRepository) LatestBefore(ctx context.Context, accountID uuid.UUID, symbol string, at time.Time) (*lifecycle.Snapshot, error) {
	var snap lifecycle.Snapshot

	query := `
		SELECT * FROM position_snapshots
		WHERE account_id = $1 AND symbol = $2 AND observed_at <= $3
		ORDER BY observed_at DESC, created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &snap, query, accountID, symbol, at)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no snapshot before timestamp")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get snapshot")
	}

	return &snap, nil
}

// ListByLifecycle returns all snapshots of a lifecycle in observation order
func (r *SnapshotRepository) ListByLifecycle(ctx context.Context, lifecycleID uuid.UUID) ([]*lifecycle.Snapshot, error) {
	var snaps []*lifecycle.Snapshot

	query := `
		SELECT * FROM position_snapshots
		WHERE lifecycle_id = $1
		ORDER BY observed_at ASC, created_at ASC`

	err := r.db.SelectContext(ctx, &snaps, query, lifecycleID)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}

	return snaps, nil
}

// LatestByAccount returns the newest snapshot of every open lifecycle
func (r *SnapshotRepository) LatestByAccount(ctx context.Context, accountID uuid.UUID) ([]*lifecycle.Snapshot, error) {
	var snaps []*lifecycle.Snapshot

	query := `
		SELECT DISTINCT ON (s.lifecycle_id) s.*
		FROM position_snapshots s
		JOIN position_lifecycles l ON l.id = s.lifecycle_id
		WHERE s.account_id = $1 AND l.closed_at IS NULL
		ORDER BY s.lifecycle_id, s.observed_at DESC, s.created_at DESC`

	err := r.db.SelectContext(ctx, &snaps, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "list latest snapshots")
	}

	return snaps, nil
}
