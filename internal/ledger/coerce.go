package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount turns a raw ledger cell into a decimal. Empty and nil cells are 0.
// Grouping separators are accepted in both conventions ("1.234.567,5" and
// "1,234,567.5"); a single dot or comma followed by exactly three digits is a
// thousands separator since the ledger currency has no minor unit.
func ParseAmount(raw interface{}) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case []byte:
		return parseAmountString(string(v))
	case string:
		return parseAmountString(v)
	default:
		return parseAmountString(fmt.Sprintf("%v", v))
	}
}

// AmountOrZero is ParseAmount with unparseable input coerced to 0.
func AmountOrZero(raw interface{}) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseAmountString(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountStr)
	if cleaned == "" {
		return decimal.Zero, nil
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	if isNegative {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "-"))
	}

	for _, symbol := range []string{" ", " ", "₫", "VNĐ", "VND", "đ"} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}

	cleaned = normalizeSeparators(cleaned)

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: unable to parse amount %q (cleaned: %q)", ErrMalformedRow, amountStr, cleaned)
	}
	if isNegative {
		amount = amount.Neg()
	}
	return amount, nil
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02",
}

// ParseTimestamp parses a settlement timestamp cell. Empty cells yield nil.
// Layouts without a zone are interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (*time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("%w: unable to parse timestamp %q", ErrMalformedRow, raw)
}

// OptionalString returns nil for blank strings.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
