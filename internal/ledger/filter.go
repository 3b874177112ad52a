package ledger

import (
	"fmt"
	"strings"
	"time"

	"billingrecon/pkg/models"
)

// Comparison is one of the closed set of operators a period predicate may use.
type Comparison string

const (
	Eq Comparison = "="
	Ne Comparison = "!="
	Lt Comparison = "<"
	Le Comparison = "<="
	Gt Comparison = ">"
	Ge Comparison = ">="
)

var comparisonAliases = map[string]Comparison{
	"=": Eq, "==": Eq, "eq": Eq,
	"!=": Ne, "<>": Ne, "ne": Ne,
	"<": Lt, "lt": Lt,
	"<=": Le, "lte": Le, "le": Le,
	">": Gt, "gt": Gt,
	">=": Ge, "gte": Ge, "ge": Ge,
}

// ParseComparison maps user input (symbols or short names) to a Comparison.
func ParseComparison(s string) (Comparison, error) {
	c, ok := comparisonAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
	return c, nil
}

// SQL returns the operator text for query builders. Only whitelisted
// operators are ever emitted.
func (c Comparison) SQL() string {
	switch c {
	case Eq, Lt, Le, Gt, Ge:
		return string(c)
	case Ne:
		return "<>"
	}
	return "="
}

// Apply evaluates "left c right".
func (c Comparison) Apply(left, right int) bool {
	switch c {
	case Eq:
		return left == right
	case Ne:
		return left != right
	case Lt:
		return left < right
	case Le:
		return left <= right
	case Gt:
		return left > right
	case Ge:
		return left >= right
	}
	return false
}

// Valid reports whether c is one of the known operators.
func (c Comparison) Valid() bool {
	switch c {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

// YearRange is an inclusive range of billing years.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether year lies in the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

// Years lists the years of the range in ascending order.
func (r YearRange) Years() []int {
	if r.To < r.From {
		return nil
	}
	out := make([]int, 0, r.To-r.From+1)
	for y := r.From; y <= r.To; y++ {
		out = append(out, y)
	}
	return out
}

// PeriodPredicate restricts the billing month with a comparison, e.g. "month < 6".
type PeriodPredicate struct {
	Op    Comparison `json:"op"`
	Month int        `json:"month"`
}

// SettlementState selects invoices by whether they carry a settlement timestamp.
type SettlementState int

const (
	AnySettlement SettlementState = iota
	OnlySettled
	OnlyUnsettled
)

// Filter is the parameterized scope passed to a Source. Zero values mean
// "no restriction"; adapters must never interpolate its values into query text.
type Filter struct {
	BillingYears *YearRange
	Period       *PeriodPredicate
	Settlement   SettlementState

	// Settlement timestamp window, [SettledFrom, SettledTo). Zero bounds are open.
	SettledFrom time.Time
	SettledTo   time.Time

	TariffCodes        []string
	ExcludeTariffCodes []string
	RouteGroup         string
	SettlingAgent      string
}

// ForYear returns a filter restricted to a single billing year.
func ForYear(year int) Filter {
	return Filter{BillingYears: &YearRange{From: year, To: year}}
}

// Validate rejects malformed scopes before they reach an adapter.
func (f Filter) Validate() error {
	const op = "Filter.Validate"

	if f.BillingYears != nil && f.BillingYears.To < f.BillingYears.From {
		return fmt.Errorf("%s: year range %d..%d is inverted", op, f.BillingYears.From, f.BillingYears.To)
	}
	if f.Period != nil {
		if !f.Period.Op.Valid() {
			return fmt.Errorf("%s: unknown period operator %q", op, f.Period.Op)
		}
		if f.Period.Month < 1 || f.Period.Month > 12 {
			return fmt.Errorf("%s: period %d outside 1..12", op, f.Period.Month)
		}
	}
	if !f.SettledFrom.IsZero() && !f.SettledTo.IsZero() && !f.SettledFrom.Before(f.SettledTo) {
		return fmt.Errorf("%s: settlement window is empty", op)
	}
	if f.Settlement == OnlyUnsettled && (!f.SettledFrom.IsZero() || !f.SettledTo.IsZero() || f.SettlingAgent != "") {
		return fmt.Errorf("%s: settlement constraints on unsettled invoices", op)
	}
	return nil
}

// Matches is the reference semantics of the filter. Adapters that push the
// filter down into a query must select exactly the records Matches accepts.
func (f Filter) Matches(rec models.InvoiceRecord) bool {
	if f.BillingYears != nil && !f.BillingYears.Contains(rec.Period.Year) {
		return false
	}
	if f.Period != nil && !f.Period.Op.Apply(rec.Period.Month, f.Period.Month) {
		return false
	}

	switch f.Settlement {
	case OnlySettled:
		if rec.SettledAt == nil {
			return false
		}
	case OnlyUnsettled:
		if rec.SettledAt != nil {
			return false
		}
	}

	if !f.SettledFrom.IsZero() || !f.SettledTo.IsZero() {
		if rec.SettledAt == nil {
			return false
		}
		if !f.SettledFrom.IsZero() && rec.SettledAt.Before(f.SettledFrom) {
			return false
		}
		if !f.SettledTo.IsZero() && !rec.SettledAt.Before(f.SettledTo) {
			return false
		}
	}

	if len(f.TariffCodes) > 0 && !contains(f.TariffCodes, rec.TariffCode) {
		return false
	}
	if len(f.ExcludeTariffCodes) > 0 && contains(f.ExcludeTariffCodes, rec.TariffCode) {
		return false
	}
	if f.RouteGroup != "" && rec.RouteGroup != f.RouteGroup {
		return false
	}
	if f.SettlingAgent != "" && (rec.SettlingAgent == nil || *rec.SettlingAgent != f.SettlingAgent) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// MonthWindow returns [first instant of the month, first instant of the next month)
// in loc.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
