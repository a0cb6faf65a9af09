package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"atlas/internal/domain/trade"
	"atlas/pkg/errors"
)

// Compile-time check
var _ trade.Repository = (*TradeRepository)(nil)

// TradeRepository implements trade.Repository using sqlx
type TradeRepository struct {
	db DBTX
}

// NewTradeRepository creates a new aggregated trade repository
func NewTradeRepository(db DBTX) *TradeRepository {
	return &TradeRepository{db: db}
}

// Upsert inserts or replaces a trade keyed on
// (account_id, symbol, representative_timestamp). Aggregation is a batch
// recomputation, so replaced rows simply reflect the latest derivation.
func (r *TradeRepository) Upsert(ctx context.Context, t *trade.AggregatedTrade) error {
	query := `
		INSERT INTO aggregated_trades (
			id, account_id, symbol, side,
			total_size, avg_entry_price, avg_exit_price,
			total_pnl, total_fees,
			leverage, collateral_used, strategy_id,
			fill_count, representative_timestamp,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()
		)
		ON CONFLICT (account_id, symbol, representative_timestamp) DO UPDATE SET
			side = EXCLUDED.side,
			total_size = EXCLUDED.total_size,
			avg_entry_price = EXCLUDED.avg_entry_price,
			avg_exit_price = EXCLUDED.avg_exit_price,
			total_pnl = EXCLUDED.total_pnl,
			total_fees = EXCLUDED.total_fees,
			leverage = EXCLUDED.leverage,
			collateral_used = EXCLUDED.collateral_used,
			strategy_id = EXCLUDED.strategy_id,
			fill_count = EXCLUDED.fill_count,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.AccountID, t.Symbol, t.Side,
		t.TotalSize, t.AvgEntryPrice, t.AvgExitPrice,
		t.TotalPnL, t.TotalFees,
		t.Leverage, t.CollateralUsed, t.StrategyID,
		t.FillCount, t.RepresentativeTimestamp,
	)
	if err != nil {
		return errors.Wrap(err, "upsert aggregated trade")
	}

	return nil
}

// ListSince returns trades closed at or after the given time
func (r *TradeRepository) ListSince(ctx context.Context, accountID uuid.UUID, since time.Time) ([]*trade.AggregatedTrade, error) {
	var trades []*trade.AggregatedTrade

	query := `
		SELECT * FROM aggregated_trades
		WHERE account_id = $1 AND representative_timestamp >= $2
		ORDER BY representative_timestamp DESC`

	err := r.db.SelectContext(ctx, &trades, query, accountID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list aggregated trades")
	}

	return trades, nil
}

// CountForAssignment counts trades attributed to a strategy within a span
func (r *TradeRepository) CountForAssignment(ctx context.Context, accountID uuid.UUID, symbol string, strategyID uuid.UUID, from time.Time, to *time.Time) (int64, error) {
	var count int64

	query := `
		SELECT COUNT(*) FROM aggregated_trades
		WHERE account_id = $1
		  AND symbol = $2
		  AND strategy_id = $3
		  AND representative_timestamp >= $4
		  AND ($5::timestamptz IS NULL OR representative_timestamp <= $5)`

	err := r.db.GetContext(ctx, &count, query, accountID, symbol, strategyID, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "count trades for assignment")
	}

	return count, nil
}
