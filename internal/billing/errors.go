package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrInvalidScope is returned when report parameters are rejected before any
// ledger query is issued.
var ErrInvalidScope = errors.New("invalid report scope")

// ScopeError describes which parameter was rejected and, for closed vocabularies,
// the closest accepted value.
type ScopeError struct {
	// Op is the operation that rejected the scope (e.g., "AgingGroups").
	Op string

	// Field names the offending parameter.
	Field string

	// Value is the rejected input as given.
	Value string

	// Suggestion is the closest accepted value, if any.
	Suggestion string

	// Err is the underlying error; always wraps ErrInvalidScope.
	Err error
}

// Error implements the error interface.
func (e *ScopeError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s %q: %v", e.Op, e.Field, e.Value, e.Err)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScopeError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ScopeError) Is(target error) bool {
	return target == ErrInvalidScope || errors.Is(e.Err, target)
}

func scopeError(op, field string, value interface{}, reason string) *ScopeError {
	return &ScopeError{
		Op:    op,
		Field: field,
		Value: fmt.Sprint(value),
		Err:   fmt.Errorf("%w: %s", ErrInvalidScope, reason),
	}
}

// suggest returns the candidate closest to input, or "" when nothing is
// reasonably close.
func suggest(input string, candidates []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(input, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > len(input)/2+1 {
		return ""
	}
	return best
}
