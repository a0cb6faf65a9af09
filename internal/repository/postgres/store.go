package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"atlas/internal/services/ingest"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Compile-time check
var _ ingest.Store = (*CycleStore)(nil)

// CycleStore runs ingestion cycles inside one database transaction. The
// ledger entry and every snapshot of a cycle commit together or not at all,
// so a later cycle's margin-delta baseline never reads a half-applied state.
type CycleStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewCycleStore creates a transactional store over the shared pool
func NewCycleStore(db *sqlx.DB) *CycleStore {
	return &CycleStore{db: db, log: logger.Get().With("component", "cycle_store")}
}

// WithinCycle begins a transaction, hands transaction-scoped repositories to
// the callback, and commits on success. Any callback error rolls everything
// back.
func (s *CycleStore) WithinCycle(ctx context.Context, fn func(ingest.Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin cycle transaction")
	}

	repos := ingest.Repos{
		Ledger:     NewLedgerRepository(tx),
		Lifecycles: NewLifecycleRepository(tx),
		Snapshots:  NewSnapshotRepository(tx),
		Fills:      NewFillRepository(tx),
		Strategies: NewStrategyRepository(tx),
	}

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Errorf("Failed to roll back cycle transaction: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit cycle transaction")
	}
	return nil
}
