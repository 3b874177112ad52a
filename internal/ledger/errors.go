package ledger

import (
	"errors"
	"fmt"
)

// Common ledger access errors
var (
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrMalformedRow is returned when a row cannot be turned into an invoice record.
	ErrMalformedRow = errors.New("malformed ledger row")

	// ErrUnsupportedDriver is returned for an unknown ledger driver name.
	ErrUnsupportedDriver = errors.New("unsupported ledger driver")

	// ErrInvalidFilter is returned when a filter fails validation.
	ErrInvalidFilter = errors.New("invalid ledger filter")
)

// LedgerError wraps adapter failures with the operation and backend that failed.
type LedgerError struct {
	// Op is the operation that failed (e.g., "FetchInvoices", "ReadRange").
	Op string

	// Backend names the adapter (sqlite, gorm, sheets, memory).
	Backend string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ledger/%s: %s failed: %s: %v", e.Backend, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ledger/%s: %s failed: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *LedgerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps err as a LedgerError unless it already is one.
func WrapError(backend, op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return err
	}

	return &LedgerError{Op: op, Backend: backend, Err: err, Details: details}
}
