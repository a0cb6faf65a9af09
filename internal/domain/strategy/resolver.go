package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

// Resolver answers "which strategy was active for this account and symbol at
// this instant". It is consulted by the lifecycle tracker when a snapshot is
// stored and by the fill aggregator when a trade is attributed.
type Resolver struct {
	repo Repository
	log  *logger.Logger
}

// NewResolver constructs a strategy resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, log: logger.Get().With("component", "strategy_resolver")}
}

// Resolve selects the assignment covering the instant: starts_at <= at and
// (ends_at is null or ends_at >= at). Overlapping assignments are upstream
// data-entry errors; the one with the latest starts_at wins,
// deterministically. Returns nil when nothing covers the instant; callers
// treat that as no attribution, not an error.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID, symbol string, at time.Time) (*uuid.UUID, error) {
	if accountID == uuid.Nil || symbol == "" {
		return nil, errors.ErrInvalidInput
	}

	assignments, err := r.repo.ListAssignmentsBySymbol(ctx, accountID, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}

	var winner *Assignment
	for _, a := range assignments {
		if !a.Covers(at) {
			continue
		}
		if winner == nil || a.StartsAt.After(winner.StartsAt) {
			winner = a
		}
	}

	if winner == nil {
		return nil, nil
	}

	id := winner.StrategyID
	return &id, nil
}

// ActiveMap returns the currently active strategy per symbol for an account.
func (r *Resolver) ActiveMap(ctx context.Context, accountID uuid.UUID) (map[string]uuid.UUID, error) {
	if accountID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}

	assignments, err := r.repo.ActiveAssignments(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "active assignments")
	}

	result := make(map[string]uuid.UUID, len(assignments))
	for _, a := range assignments {
		result[a.Symbol] = a.StrategyID
	}
	return result, nil
}
