package billing

import (
	"strconv"
	"strings"
	"time"

	"billingrecon/internal/ledger"
)

const dateLayout = "2006-01-02"

// RequiredParam reports a missing parameter of op.
func RequiredParam(op, field string) error {
	return scopeError(op, field, "", "value is required")
}

// ParseNumber parses a required integer parameter.
func ParseNumber(field, raw string) (int, error) {
	const op = "ParseNumber"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, scopeError(op, field, raw, "value is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, scopeError(op, field, raw, "expected a whole number")
	}
	return n, nil
}

// ParseOptionalNumber is ParseNumber where a blank value means "not set".
func ParseOptionalNumber(field, raw string) (*int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := ParseNumber(field, raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	const op = "ParseDate"

	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, scopeError(op, field, raw, "expected YYYY-MM-DD")
	}
	return t, nil
}

// ParseCutoff accepts a date, meaning the last instant of that day in loc, or
// an RFC 3339 timestamp.
func ParseCutoff(raw string, loc *time.Location) (time.Time, error) {
	const op = "ParseCutoff"

	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if day, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return EndOfDay(day), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.In(loc), nil
	}
	return time.Time{}, scopeError(op, "cutoff", raw, "expected YYYY-MM-DD or an RFC 3339 timestamp")
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// EndOfYear returns the last instant of year in loc, the default cutoff of a
// yearly report.
func EndOfYear(year int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

// ParsePeriodPredicate builds a period restriction from an operator and a
// month. A blank month means no restriction; a blank operator means "=".
func ParsePeriodPredicate(opRaw, monthRaw string) (*ledger.PeriodPredicate, error) {
	const op = "ParsePeriodPredicate"

	month, err := ParseOptionalNumber("period", monthRaw)
	if err != nil || month == nil {
		return nil, err
	}
	if !validPeriod(*month) {
		return nil, scopeError(op, "period", *month, "period must be between 1 and 12")
	}

	cmp := ledger.Eq
	if strings.TrimSpace(opRaw) != "" {
		if cmp, err = ledger.ParseComparison(opRaw); err != nil {
			return nil, scopeError(op, "period_op", opRaw, "expected one of =, !=, <, <=, >, >=")
		}
	}
	return &ledger.PeriodPredicate{Op: cmp, Month: *month}, nil
}
