package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"atlas/pkg/errors"
)

// Service is the read-only query surface over lifecycles and snapshots,
// consumed by the presentation layer. All writes go through the Tracker.
type Service struct {
	lifecycles Repository
	snapshots  SnapshotRepository
}

// NewService constructs the lifecycle query service.
func NewService(lifecycles Repository, snapshots SnapshotRepository) *Service {
	return &Service{lifecycles: lifecycles, snapshots: snapshots}
}

// OpenPositions returns the newest snapshot of every open lifecycle.
func (s *Service) OpenPositions(ctx context.Context, accountID uuid.UUID) ([]*Snapshot, error) {
	if accountID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	snaps, err := s.snapshots.LatestByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "latest snapshots")
	}
	return snaps, nil
}

// History returns every lifecycle a symbol has gone through on an account.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, symbol string) ([]*Lifecycle, error) {
	if accountID == uuid.Nil || symbol == "" {
		return nil, errors.ErrInvalidInput
	}
	lcs, err := s.lifecycles.ListBySymbol(ctx, accountID, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "list lifecycles")
	}
	return lcs, nil
}

// SnapshotsFor returns all stored snapshots of one lifecycle in observation order.
func (s *Service) SnapshotsFor(ctx context.Context, lifecycleID uuid.UUID) ([]*Snapshot, error) {
	if lifecycleID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	snaps, err := s.snapshots.ListByLifecycle(ctx, lifecycleID)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	return snaps, nil
}
