package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

// GroupBy selects the dimension debt is aged by.
type GroupBy string

const (
	GroupByRoute    GroupBy = "route"
	GroupByTariff   GroupBy = "tariff"
	GroupByCategory GroupBy = "category"
)

var groupByAliases = map[string]GroupBy{
	"route":            GroupByRoute,
	"routegroup":       GroupByRoute,
	"tariff":           GroupByTariff,
	"tariffcode":       GroupByTariff,
	"category":         GroupByCategory,
	"customercategory": GroupByCategory,
}

// ParseGroupBy accepts the selector names and their long aliases
// (routeGroup, tariffCode, customerCategory), case-insensitively.
func ParseGroupBy(s string) (GroupBy, error) {
	const op = "ParseGroupBy"

	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s)))
	if g, ok := groupByAliases[normalized]; ok {
		return g, nil
	}

	err := scopeError(op, "group_by", s, "expected route, tariff or category")
	err.Suggestion = suggest(s, []string{"route", "tariff", "category", "routeGroup", "tariffCode", "customerCategory"})
	return "", err
}

// GroupKey identifies one aging group. Category keys carry the structured
// category; route and tariff keys carry the raw field value.
type GroupKey struct {
	By       GroupBy   `json:"by"`
	Value    string    `json:"value"`
	Category *Category `json:"category,omitempty"`
}

// Label renders the key for display, e.g. "Domestic(11, 21)".
func (k GroupKey) Label() string {
	if k.Category != nil {
		return k.Category.Label()
	}
	return k.Value
}

func (k GroupKey) matches(other GroupKey) bool {
	return k.By == other.By && k.Value == other.Value
}

// KeyFor resolves the group key of an invoice.
func (m *CategoryMapper) KeyFor(rec models.InvoiceRecord, by GroupBy) GroupKey {
	switch by {
	case GroupByCategory:
		c := m.Lookup(rec.TariffCode)
		return GroupKey{By: by, Value: c.Name, Category: &c}
	case GroupByTariff:
		return GroupKey{By: by, Value: rec.TariffCode}
	default:
		return GroupKey{By: GroupByRoute, Value: rec.RouteGroup}
	}
}

// AgingQuery scopes a debt-aging report. Nil Year and Period mean no restriction.
type AgingQuery struct {
	Year    *int                    `json:"year,omitempty"`
	Period  *ledger.PeriodPredicate `json:"period,omitempty"`
	GroupBy GroupBy                 `json:"group_by"`
}

func (q AgingQuery) validate(op string) error {
	if _, err := ParseGroupBy(string(q.GroupBy)); err != nil {
		se := err.(*ScopeError)
		se.Op = op
		return se
	}
	if q.Year != nil && !validYear(*q.Year) {
		return scopeError(op, "year", *q.Year, "year must be between 1 and 9999")
	}
	if q.Period != nil {
		if !q.Period.Op.Valid() {
			return scopeError(op, "period_op", q.Period.Op, "expected one of =, !=, <, <=, >, >=")
		}
		if !validPeriod(q.Period.Month) {
			return scopeError(op, "period", q.Period.Month, "period must be between 1 and 12")
		}
	}
	return nil
}

func (q AgingQuery) filter() ledger.Filter {
	f := ledger.Filter{Settlement: ledger.OnlyUnsettled, Period: q.Period}
	if q.Year != nil {
		f.BillingYears = &ledger.YearRange{From: *q.Year, To: *q.Year}
	}
	return f
}

// AgingGroup is the outstanding debt of one group.
type AgingGroup struct {
	Key           GroupKey        `json:"key"`
	Label         string          `json:"label"`
	CustomerCount int             `json:"customer_count"`
	TotalPeriods  int             `json:"total_periods"`
	TotalDebt     decimal.Decimal `json:"total_debt"`
	Percentage    decimal.Decimal `json:"percentage"`
}

type customerDebt struct {
	periods int
	debt    decimal.Decimal
}

// GroupAging aggregates unsettled invoices first per (customer, group) and
// then per group, so a customer with several open periods counts once.
// Groups are ordered by customer count, descending; ties keep ascending key order.
func GroupAging(invoices []models.InvoiceRecord, by GroupBy, mapper *CategoryMapper) []AgingGroup {
	if mapper == nil {
		mapper = DefaultCategoryMapper()
	}

	type pair struct{ customer, key string }
	perCustomer := make(map[pair]*customerDebt)
	keys := make(map[string]GroupKey)

	for i := range invoices {
		inv := &invoices[i]
		if inv.IsSettled() {
			continue
		}
		key := mapper.KeyFor(*inv, by)
		keys[key.Value] = key

		p := pair{customer: inv.CustomerID, key: key.Value}
		cd, ok := perCustomer[p]
		if !ok {
			cd = &customerDebt{}
			perCustomer[p] = cd
		}
		cd.periods++
		cd.debt = cd.debt.Add(inv.InvoicedAmount)
	}

	groups := make(map[string]*AgingGroup, len(keys))
	grand := decimal.Zero
	for p, cd := range perCustomer {
		g, ok := groups[p.key]
		if !ok {
			key := keys[p.key]
			g = &AgingGroup{Key: key, Label: key.Label(), TotalDebt: decimal.Zero}
			groups[p.key] = g
		}
		g.CustomerCount++
		g.TotalPeriods += cd.periods
		g.TotalDebt = g.TotalDebt.Add(cd.debt)
		grand = grand.Add(cd.debt)
	}

	out := make([]AgingGroup, 0, len(groups))
	for _, g := range groups {
		g.Percentage = percentage(g.TotalDebt, grand)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Value < out[j].Key.Value })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CustomerCount > out[j].CustomerCount })
	return out
}

// AgingGroups reports outstanding debt grouped by q.GroupBy.
func (e *Engine) AgingGroups(ctx context.Context, q AgingQuery) ([]AgingGroup, error) {
	const op = "AgingGroups"

	if err := q.validate(op); err != nil {
		return nil, err
	}
	by, _ := ParseGroupBy(string(q.GroupBy))

	e.logFor(ctx).Debug().Str("group_by", string(by)).Msg("Computing aging groups")

	return GroupAging(e.fetch(ctx, op, q.filter()), by, e.categories), nil
}

// ResolveGroupKey turns a user-supplied group value into a key. Category
// values are category names ("Domestic") or "Other".
func (e *Engine) ResolveGroupKey(by GroupBy, value string) (GroupKey, error) {
	const op = "ResolveGroupKey"

	by, err := ParseGroupBy(string(by))
	if err != nil {
		return GroupKey{}, err
	}
	if by != GroupByCategory {
		return GroupKey{By: by, Value: strings.TrimSpace(value)}, nil
	}

	c, ok := e.categories.Find(value)
	if !ok {
		se := scopeError(op, "key", value, "unknown customer category")
		se.Suggestion = suggest(value, e.categories.Names())
		return GroupKey{}, se
	}
	return GroupKey{By: by, Value: c.Name, Category: &c}, nil
}

// DebtDetail is one outstanding invoice of an aging group.
type DebtDetail struct {
	CustomerID string               `json:"customer_id"`
	Period     models.BillingPeriod `json:"period"`
	Amount     decimal.Decimal      `json:"amount"`
	TariffCode string               `json:"tariff_code"`
	RouteGroup string               `json:"route_group"`
}

// keyFilter narrows f to key so the ledger does the heavy lifting. The
// Other category is everything outside the known codes.
func (e *Engine) keyFilter(f ledger.Filter, key GroupKey) ledger.Filter {
	switch key.By {
	case GroupByRoute:
		f.RouteGroup = key.Value
	case GroupByTariff:
		f.TariffCodes = []string{key.Value}
	case GroupByCategory:
		if c, ok := e.categories.Find(key.Value); ok && !c.IsOther() {
			f.TariffCodes = c.Codes
		} else {
			f.ExcludeTariffCodes = e.categories.KnownCodes()
		}
	}
	return f
}

// AgingDetails lists the outstanding invoices behind one group of q.
func (e *Engine) AgingDetails(ctx context.Context, q AgingQuery, key GroupKey) ([]DebtDetail, error) {
	const op = "AgingDetails"

	if err := q.validate(op); err != nil {
		return nil, err
	}
	by, _ := ParseGroupBy(string(q.GroupBy))
	if key.By == "" {
		key.By = by
	}
	if key.By != by {
		return nil, scopeError(op, "key", key.Label(), fmt.Sprintf("key is a %s key, report groups by %s", key.By, by))
	}

	e.logFor(ctx).Debug().
		Str("group_by", string(by)).
		Str("key", key.Label()).
		Msg("Computing aging details")

	invoices := e.fetch(ctx, op, e.keyFilter(q.filter(), key))

	details := make([]DebtDetail, 0, len(invoices))
	for _, inv := range invoices {
		if inv.IsSettled() || !e.categories.KeyFor(inv, by).matches(key) {
			continue
		}
		details = append(details, DebtDetail{
			CustomerID: inv.CustomerID,
			Period:     inv.Period,
			Amount:     inv.InvoicedAmount,
			TariffCode: inv.TariffCode,
			RouteGroup: inv.RouteGroup,
		})
	}
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].CustomerID != details[j].CustomerID {
			return details[i].CustomerID < details[j].CustomerID
		}
		return details[i].Period.Before(details[j].Period)
	})
	return details, nil
}

// CustomerDebt is a customer's share of an aging group.
type CustomerDebt struct {
	CustomerID  string          `json:"customer_id"`
	PeriodCount int             `json:"period_count"`
	TotalDebt   decimal.Decimal `json:"total_debt"`
	Invoices    []DebtDetail    `json:"invoices"`
}

// GroupDetailsByCustomer folds detail rows per customer, largest debt first.
func GroupDetailsByCustomer(details []DebtDetail) []CustomerDebt {
	index := make(map[string]int)
	var out []CustomerDebt
	for _, d := range details {
		i, ok := index[d.CustomerID]
		if !ok {
			i = len(out)
			index[d.CustomerID] = i
			out = append(out, CustomerDebt{CustomerID: d.CustomerID, TotalDebt: decimal.Zero})
		}
		out[i].PeriodCount++
		out[i].TotalDebt = out[i].TotalDebt.Add(d.Amount)
		out[i].Invoices = append(out[i].Invoices, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalDebt.GreaterThan(out[j].TotalDebt) })
	return out
}
