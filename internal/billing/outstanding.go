package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

// OutstandingSnapshot buckets unsettled invoice amounts relative to an as-of
// period. The buckets are independent sums; Total covers every unsettled
// invoice and need not equal the sum of the other three.
type OutstandingSnapshot struct {
	AsOfYear   int `json:"as_of_year"`
	AsOfPeriod int `json:"as_of_period"`

	PriorYears              decimal.Decimal `json:"prior_years"`
	CurrentYearPriorPeriods decimal.Decimal `json:"current_year_prior_periods"`
	CurrentPeriod           decimal.Decimal `json:"current_period"`
	Total                   decimal.Decimal `json:"total"`
	UnsettledCount          int             `json:"unsettled_count"`
}

// ComputeOutstanding sums the unsettled invoices of invoices; settled ones are ignored.
func ComputeOutstanding(invoices []models.InvoiceRecord, asOfYear, asOfPeriod int) OutstandingSnapshot {
	snap := OutstandingSnapshot{
		AsOfYear:                asOfYear,
		AsOfPeriod:              asOfPeriod,
		PriorYears:              decimal.Zero,
		CurrentYearPriorPeriods: decimal.Zero,
		CurrentPeriod:           decimal.Zero,
		Total:                   decimal.Zero,
	}

	for i := range invoices {
		inv := &invoices[i]
		if inv.IsSettled() {
			continue
		}

		snap.UnsettledCount++
		snap.Total = snap.Total.Add(inv.InvoicedAmount)

		switch {
		case inv.Period.Year < asOfYear:
			snap.PriorYears = snap.PriorYears.Add(inv.InvoicedAmount)
		case inv.Period.Year == asOfYear && inv.Period.Month < asOfPeriod:
			snap.CurrentYearPriorPeriods = snap.CurrentYearPriorPeriods.Add(inv.InvoicedAmount)
		case inv.Period.Year == asOfYear && inv.Period.Month == asOfPeriod:
			snap.CurrentPeriod = snap.CurrentPeriod.Add(inv.InvoicedAmount)
		}
	}
	return snap
}

// OutstandingSnapshot reports unsettled balances as of (asOfYear, asOfPeriod).
func (e *Engine) OutstandingSnapshot(ctx context.Context, asOfYear, asOfPeriod int) (OutstandingSnapshot, error) {
	const op = "OutstandingSnapshot"

	if !validYear(asOfYear) {
		return OutstandingSnapshot{}, scopeError(op, "year", asOfYear, "year must be between 1 and 9999")
	}
	if !validPeriod(asOfPeriod) {
		return OutstandingSnapshot{}, scopeError(op, "period", asOfPeriod, "period must be between 1 and 12")
	}

	e.logFor(ctx).Debug().
		Int("year", asOfYear).
		Int("period", asOfPeriod).
		Msg("Computing outstanding snapshot")

	invoices := e.fetch(ctx, op, ledger.Filter{Settlement: ledger.OnlyUnsettled})
	return ComputeOutstanding(invoices, asOfYear, asOfPeriod), nil
}
