package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one append-only account-level observation: total equity and total
// margin in use at a point in time. The margin-delta leverage inference reads
// consecutive entries to isolate the collateral behind a newly opened
// position, so entries must be strictly increasing in ObservedAt per account.
type Entry struct {
	ID        uuid.UUID `db:"id"`
	AccountID uuid.UUID `db:"account_id"`

	ObservedAt      time.Time       `db:"observed_at"`
	TotalEquity     decimal.Decimal `db:"total_equity"`
	TotalMarginUsed decimal.Decimal `db:"total_margin_used"`

	CreatedAt time.Time `db:"created_at"`
}

// Validate checks entry invariants before insertion
func (e *Entry) Validate() error {
	if e.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if e.ObservedAt.IsZero() {
		return ErrMissingTimestamp
	}
	if e.TotalMarginUsed.IsNegative() {
		return ErrNegativeMargin
	}
	return nil
}

// Errors
var (
	ErrMissingAccount   = &EntryError{Code: "missing_account", Message: "account_id is required"}
	ErrMissingTimestamp = &EntryError{Code: "missing_timestamp", Message: "observed_at is required"}
	ErrNegativeMargin   = &EntryError{Code: "negative_margin", Message: "total_margin_used cannot be negative"}
)

// EntryError represents a ledger validation error
type EntryError struct {
	Code    string
	Message string
}

func (e *EntryError) Error() string {
	return e.Message
}
