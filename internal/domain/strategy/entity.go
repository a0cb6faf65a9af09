package strategy

import (
	"time"

	"github.com/google/uuid"
)

// Strategy is an externally managed trading-strategy label. The core only
// reads strategies; creation and editing belong to the management surface.
type Strategy struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Assignment binds a strategy to an (account, symbol) pair for a time span.
// Several assignments may exist for the same pair across time; at most one
// is considered current for any instant.
type Assignment struct {
	ID         uuid.UUID `db:"id"`
	AccountID  uuid.UUID `db:"account_id"`
	Symbol     string    `db:"symbol"`
	StrategyID uuid.UUID `db:"strategy_id"`

	StartsAt time.Time  `db:"starts_at"`
	EndsAt   *time.Time `db:"ends_at"`
	Active   bool       `db:"active"`

	Notes string `db:"notes"`

	CreatedAt time.Time `db:"created_at"`
}

// Covers reports whether the assignment's span contains the instant
func (a *Assignment) Covers(at time.Time) bool {
	if at.Before(a.StartsAt) {
		return false
	}
	if a.EndsAt != nil && at.After(*a.EndsAt) {
		return false
	}
	return true
}
