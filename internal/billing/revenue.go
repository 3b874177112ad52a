package billing

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

// YearlyRow is the accrual-versus-cash reconciliation of one billing year.
type YearlyRow struct {
	Year int `json:"year"`

	// Excluded is the amount billed in Year and written off by the batch
	// agent within the same year.
	Excluded    decimal.Decimal `json:"excluded"`
	BaseAccrual decimal.Decimal `json:"base_accrual"`

	// Adjustment is the unpaid remainder of invoices settled in Year up to
	// the cutoff, batch write-offs included.
	Adjustment      decimal.Decimal `json:"adjustment"`
	AccruedRevenue  decimal.Decimal `json:"accrued_revenue"`
	ActualCollected decimal.Decimal `json:"actual_collected"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	AchievementRate decimal.Decimal `json:"achievement_rate"`

	// PriorYearAccrual is BaseAccrual of the previous year, unadjusted.
	PriorYearAccrual decimal.Decimal `json:"prior_year_accrual"`
	InvoiceCount     int             `json:"invoice_count"`
}

type yearTotals struct {
	billed    decimal.Decimal
	excluded  decimal.Decimal
	adjust    decimal.Decimal
	collected decimal.Decimal
	count     int
}

func (t *yearTotals) base() decimal.Decimal {
	return t.billed.Sub(t.excluded)
}

// ComputeYearly reconciles every year of years that has billed invoices.
// Invoices billed in years.From-1 are only used for PriorYearAccrual. A
// settlement exactly at cutoff counts as settled.
func ComputeYearly(invoices []models.InvoiceRecord, years ledger.YearRange, cutoff time.Time) []YearlyRow {
	totals := make(map[int]*yearTotals)
	for i := range invoices {
		inv := &invoices[i]
		y := inv.Period.Year
		if y < years.From-1 || y > years.To {
			continue
		}

		t, ok := totals[y]
		if !ok {
			t = &yearTotals{}
			totals[y] = t
		}
		t.count++
		t.billed = t.billed.Add(inv.InvoicedAmount)

		if !inv.SettledInYear(y) {
			continue
		}
		// Write-offs settled in-year are removed from the base and still feed the adjustment below.
		if inv.IsBatchWriteOff() {
			t.excluded = t.excluded.Add(inv.InvoicedAmount)
		}
		if inv.SettledAt.After(cutoff) {
			continue
		}
		t.adjust = t.adjust.Add(inv.InvoicedAmount.Sub(inv.SettledAmount))
		if !inv.IsBatchWriteOff() {
			t.collected = t.collected.Add(inv.SettledAmount)
		}
	}

	var rows []YearlyRow
	for _, y := range years.Years() {
		t, ok := totals[y]
		if !ok || t.count == 0 {
			continue
		}

		row := YearlyRow{
			Year:             y,
			Excluded:         t.excluded,
			BaseAccrual:      t.base(),
			Adjustment:       t.adjust,
			ActualCollected:  t.collected,
			PriorYearAccrual: decimal.Zero,
			InvoiceCount:     t.count,
		}
		row.AccruedRevenue = row.BaseAccrual.Sub(row.Adjustment)
		row.Outstanding = row.AccruedRevenue.Sub(row.ActualCollected)
		row.AchievementRate = percentage(row.ActualCollected, row.AccruedRevenue)
		if prior, ok := totals[y-1]; ok {
			row.PriorYearAccrual = prior.base()
		}
		rows = append(rows, row)
	}
	return rows
}

// YearlyRevenue reconciles the billing years in years, counting settlements
// up to and including cutoff.
func (e *Engine) YearlyRevenue(ctx context.Context, years ledger.YearRange, cutoff time.Time) ([]YearlyRow, error) {
	const op = "YearlyRevenue"

	if !validYear(years.From) || !validYear(years.To) {
		return nil, scopeError(op, "years", years, "years must be between 1 and 9999")
	}
	if years.To < years.From {
		return nil, scopeError(op, "years", years, "range is inverted")
	}
	if cutoff.IsZero() {
		return nil, scopeError(op, "cutoff", "", "cutoff date is required")
	}

	e.logFor(ctx).Debug().
		Int("from", years.From).
		Int("to", years.To).
		Time("cutoff", cutoff).
		Msg("Computing yearly revenue")

	invoices := e.fetch(ctx, op, ledger.Filter{
		BillingYears: &ledger.YearRange{From: years.From - 1, To: years.To},
	})
	return ComputeYearly(invoices, years, cutoff), nil
}

// MonthlyRow is the accrual and on-time collection of one billing period.
type MonthlyRow struct {
	Period          int             `json:"period"`
	AccruedRevenue  decimal.Decimal `json:"accrued_revenue"`
	ActualCollected decimal.Decimal `json:"actual_collected"`
	InvoiceCount    int             `json:"invoice_count"`
}

// ComputeMonthly returns one row per period of year present in invoices,
// ordered by period. Collections only count when the invoice was settled in
// the calendar month it bills for.
func ComputeMonthly(invoices []models.InvoiceRecord, year int) []MonthlyRow {
	byPeriod := make(map[int]*MonthlyRow)
	for i := range invoices {
		inv := &invoices[i]
		if inv.Period.Year != year || !validPeriod(inv.Period.Month) {
			continue
		}

		row, ok := byPeriod[inv.Period.Month]
		if !ok {
			row = &MonthlyRow{Period: inv.Period.Month}
			byPeriod[inv.Period.Month] = row
		}
		row.InvoiceCount++
		row.AccruedRevenue = row.AccruedRevenue.Add(inv.InvoicedAmount)
		if inv.SettledOnTime() {
			row.ActualCollected = row.ActualCollected.Add(inv.SettledAmount)
		}
	}

	rows := make([]MonthlyRow, 0, len(byPeriod))
	for _, row := range byPeriod {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period < rows[j].Period })
	return rows
}

// MonthlyRevenue reports every billing period of year.
func (e *Engine) MonthlyRevenue(ctx context.Context, year int) ([]MonthlyRow, error) {
	const op = "MonthlyRevenue"

	if !validYear(year) {
		return nil, scopeError(op, "year", year, "year must be between 1 and 9999")
	}

	e.logFor(ctx).Debug().Int("year", year).Msg("Computing monthly revenue")

	return ComputeMonthly(e.fetch(ctx, op, ledger.ForYear(year)), year), nil
}

// DailyRow is the collection activity of one calendar date.
type DailyRow struct {
	Date time.Time `json:"date"`

	// InvoiceCount counts invoices of the requested period settled that day.
	InvoiceCount int `json:"invoice_count"`

	// Collected sums every settlement of that day, whatever period it bills.
	Collected decimal.Decimal `json:"collected"`
}

// ComputeDaily lists the dates on which invoices of (year, period) were
// settled within that same month. Counts come from periodInvoices; amounts
// are totalled per date over daySettlements, which is not restricted to the
// period, so settlements of other periods on the same date are included.
func ComputeDaily(periodInvoices, daySettlements []models.InvoiceRecord, year, period int) []DailyRow {
	counts := make(map[time.Time]int)
	for i := range periodInvoices {
		inv := &periodInvoices[i]
		if inv.Period.Year != year || inv.Period.Month != period || !inv.SettledIn(year, period) {
			continue
		}
		counts[civilDate(*inv.SettledAt)]++
	}

	amounts := make(map[time.Time]decimal.Decimal)
	for i := range daySettlements {
		inv := &daySettlements[i]
		if inv.SettledAt == nil {
			continue
		}
		day := civilDate(*inv.SettledAt)
		amounts[day] = amounts[day].Add(inv.SettledAmount)
	}

	rows := make([]DailyRow, 0, len(counts))
	for day, n := range counts {
		rows = append(rows, DailyRow{Date: day, InvoiceCount: n, Collected: amounts[day]})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DailyCollections reports settlement dates for billing period (year, period).
// The period's invoices and the month's settlements are fetched concurrently.
func (e *Engine) DailyCollections(ctx context.Context, year, period int) ([]DailyRow, error) {
	const op = "DailyCollections"

	if !validYear(year) {
		return nil, scopeError(op, "year", year, "year must be between 1 and 9999")
	}
	if !validPeriod(period) {
		return nil, scopeError(op, "period", period, "period must be between 1 and 12")
	}

	e.logFor(ctx).Debug().Int("year", year).Int("period", period).Msg("Computing daily collections")

	from, to := ledger.MonthWindow(year, period, e.loc)

	var periodInvoices, daySettlements []models.InvoiceRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filter := ledger.ForYear(year)
		filter.Period = &ledger.PeriodPredicate{Op: ledger.Eq, Month: period}
		filter.SettledFrom, filter.SettledTo = from, to
		periodInvoices = e.fetch(gctx, op, filter)
		return nil
	})
	g.Go(func() error {
		daySettlements = e.fetch(gctx, op, ledger.Filter{SettledFrom: from, SettledTo: to})
		return nil
	})
	_ = g.Wait()

	return ComputeDaily(periodInvoices, daySettlements, year, period), nil
}
