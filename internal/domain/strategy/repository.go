package strategy

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines read access to strategies and assignments. The core
// never writes either; CRUD is owned by the external management surface.
type Repository interface {
	GetStrategy(ctx context.Context, id uuid.UUID) (*Strategy, error)

	// ListAssignments returns all assignments for an account ordered by
	// symbol, then starts_at descending
	ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*Assignment, error)

	// ListAssignmentsBySymbol returns all assignments for one
	// (account, symbol) pair ordered by starts_at descending
	ListAssignmentsBySymbol(ctx context.Context, accountID uuid.UUID, symbol string) ([]*Assignment, error)

	// ActiveAssignments returns the currently active assignment per
	// (account, symbol) pair for an account
	ActiveAssignments(ctx context.Context, accountID uuid.UUID) ([]*Assignment, error)
}
