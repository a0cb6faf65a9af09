package errors

import (
	"errors"
	"fmt"
)

// Generic errors

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a backing service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Ingestion errors
//
// None of these abort an ingestion cycle: leverage inference degrades to an
// unknown calculation method and duplicate input is absorbed silently.

var (
	// ErrMissingBaseline indicates no prior ledger entry exists for the
	// margin-delta calculation
	ErrMissingBaseline = errors.New("no prior ledger baseline")

	// ErrNonPositiveDelta indicates total margin decreased or stayed flat
	// while a position opened
	ErrNonPositiveDelta = errors.New("non-positive margin delta")

	// ErrStaleLedger indicates the prior ledger entry is older than one full
	// ingestion interval
	ErrStaleLedger = errors.New("stale ledger baseline")

	// ErrAmbiguousAttribution indicates multiple lifecycles opened between
	// two consecutive ledger entries
	ErrAmbiguousAttribution = errors.New("ambiguous margin attribution")

	// ErrDuplicateObservation indicates an idempotency key collision on
	// (account, symbol, side, observed_at)
	ErrDuplicateObservation = errors.New("duplicate observation")

	// ErrCycleInFlight indicates another ingestion cycle for the same
	// account is already running
	ErrCycleInFlight = errors.New("ingestion cycle already in flight")
)

// Lifecycle errors

var (
	// ErrLifecycleClosed indicates a write was attempted on a terminal lifecycle
	ErrLifecycleClosed = errors.New("lifecycle is closed")

	// ErrLifecycleNotFound indicates no lifecycle matches the lookup key
	ErrLifecycleNotFound = errors.New("lifecycle not found")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
