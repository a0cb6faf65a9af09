package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Service manages account ledger reads and writes.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Get().With("component", "ledger")}
}

// Record appends one ledger entry. Duplicate (account, observed_at) pairs are
// absorbed silently so re-ingested cycles stay idempotent.
func (s *Service) Record(ctx context.Context, entry *Entry) (bool, error) {
	if entry == nil {
		return false, errors.ErrInvalidInput
	}
	if err := entry.Validate(); err != nil {
		return false, errors.Wrap(err, "validate ledger entry")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	inserted, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return false, errors.Wrap(err, "record ledger entry")
	}
	if !inserted {
		s.log.Debugw("Duplicate ledger entry absorbed",
			"account_id", entry.AccountID, "observed_at", entry.ObservedAt)
	}
	return inserted, nil
}

// EquityHistory returns entries within [from, to) for the read-only query surface.
func (s *Service) EquityHistory(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*Entry, error) {
	if accountID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	entries, err := s.repo.ListRange(ctx, accountID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger entries")
	}
	return entries, nil
}

// Latest returns the newest ledger entry for an account.
func (s *Service) Latest(ctx context.Context, accountID uuid.UUID) (*Entry, error) {
	if accountID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	entry, err := s.repo.Latest(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "latest ledger entry")
	}
	return entry, nil
}
