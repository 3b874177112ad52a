package billing

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

func strPtr(s string) *string { return &s }

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func at(year int, month time.Month, day, hour int) *time.Time {
	t := time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	return &t
}

// inv builds an unsettled invoice.
func inv(customer string, year, month int, amount int64) models.InvoiceRecord {
	return models.InvoiceRecord{
		CustomerID:     customer,
		Period:         models.BillingPeriod{Month: month, Year: year},
		InvoicedAmount: d(amount),
		SettledAmount:  decimal.Zero,
	}
}

// settle marks rec as settled.
func settle(rec models.InvoiceRecord, amount int64, when *time.Time, agent, receipt string) models.InvoiceRecord {
	rec.SettledAmount = d(amount)
	rec.SettledAt = when
	if agent != "" {
		rec.SettlingAgent = strPtr(agent)
	}
	if receipt != "" {
		rec.ReceiptCode = strPtr(receipt)
	}
	return rec
}

func withTariff(rec models.InvoiceRecord, tariff, route string) models.InvoiceRecord {
	rec.TariffCode = tariff
	rec.RouteGroup = route
	return rec
}

// countingSource records how many queries it served.
type countingSource struct {
	inner ledger.Source
	calls atomic.Int32
}

func (c *countingSource) FetchInvoices(ctx context.Context, f ledger.Filter) ([]models.InvoiceRecord, error) {
	c.calls.Add(1)
	return c.inner.FetchInvoices(ctx, f)
}

var failingSource = ledger.SourceFunc(func(context.Context, ledger.Filter) ([]models.InvoiceRecord, error) {
	return nil, ledger.WrapError("test", "FetchInvoices", ledger.ErrUnavailable, "connection refused")
})

func sumPercentages[T any](rows []T, pct func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(pct(r))
	}
	return total
}
