package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

func ptr(s string) *string { return &s }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, RunMigrations(path))
	// second run is a no-op
	require.NoError(t, RunMigrations(path))

	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixtures() []models.InvoiceRecord {
	paidMarch := time.Date(2024, 3, 20, 9, 15, 0, 0, time.UTC)
	paidApril := time.Date(2024, 4, 2, 16, 0, 0, 0, time.UTC)
	return []models.InvoiceRecord{
		{
			CustomerID: "1", Period: models.BillingPeriod{Month: 3, Year: 2024},
			InvoicedAmount: decimal.NewFromInt(100000), SettledAmount: decimal.NewFromInt(100000),
			SettledAt: &paidMarch, SettlingAgent: ptr("Cashier"), ReceiptCode: ptr("VCB123"),
			TariffCode: "11", RouteGroup: "R01",
		},
		{
			CustomerID: "2", Period: models.BillingPeriod{Month: 3, Year: 2024},
			InvoicedAmount: decimal.NewFromInt(200000), SettledAmount: decimal.Zero,
			TariffCode: "31", RouteGroup: "R02",
		},
		{
			CustomerID: "3", Period: models.BillingPeriod{Month: 2, Year: 2024},
			InvoicedAmount: decimal.NewFromInt(50000), SettledAmount: decimal.NewFromInt(40000),
			SettledAt: &paidApril, SettlingAgent: ptr(models.BatchWriteOffAgent),
			TariffCode: "99", RouteGroup: "R01",
		},
		{
			CustomerID: "4", Period: models.BillingPeriod{Month: 12, Year: 2023},
			InvoicedAmount: decimal.NewFromInt(70000), SettledAmount: decimal.Zero,
			TariffCode: "21", RouteGroup: "R02",
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n, err := store.Insert(ctx, fixtures())
	require.NoError(t, err)
	require.Equal(t, 4, n)

	all, err := store.FetchInvoices(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)

	// ordered by period then customer
	require.Equal(t, "4", all[0].CustomerID)
	require.Equal(t, "3", all[1].CustomerID)

	first := all[2]
	require.Equal(t, "1", first.CustomerID)
	require.True(t, decimal.NewFromInt(100000).Equal(first.InvoicedAmount))
	require.NotNil(t, first.SettledAt)
	require.True(t, first.SettledAt.Equal(time.Date(2024, 3, 20, 9, 15, 0, 0, time.UTC)))
	require.Equal(t, "VCB123", first.Receipt())
	require.Nil(t, all[3].SettlingAgent)
}

func TestStoreKeepsFractionalAmounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	amounts := []string{"1234.567", "0.5", "1000", "-12.345"}
	var recs []models.InvoiceRecord
	for i, a := range amounts {
		recs = append(recs, models.InvoiceRecord{
			CustomerID:     fmt.Sprint(i + 1),
			Period:         models.BillingPeriod{Month: 1, Year: 2024},
			InvoicedAmount: decimal.RequireFromString(a),
			SettledAmount:  decimal.RequireFromString(a),
			TariffCode:     "11",
		})
	}
	_, err := store.Insert(ctx, recs)
	require.NoError(t, err)

	got, err := store.FetchInvoices(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, got, len(amounts))
	for i, rec := range got {
		want := decimal.RequireFromString(amounts[i])
		require.True(t, want.Equal(rec.InvoicedAmount), "invoiced %s read back as %s", amounts[i], rec.InvoicedAmount)
		require.True(t, want.Equal(rec.SettledAmount), "settled %s read back as %s", amounts[i], rec.SettledAmount)
	}
}

// Every filter pushed into SQL must select exactly what Filter.Matches accepts.
func TestFetchInvoicesAgreesWithMatches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Insert(ctx, fixtures())
	require.NoError(t, err)

	marchFrom, marchTo := ledger.MonthWindow(2024, 3, time.UTC)
	filters := map[string]ledger.Filter{
		"year":          ledger.ForYear(2024),
		"years":         {BillingYears: &ledger.YearRange{From: 2023, To: 2024}},
		"period lt":     {Period: &ledger.PeriodPredicate{Op: ledger.Lt, Month: 3}},
		"period ne":     {Period: &ledger.PeriodPredicate{Op: ledger.Ne, Month: 3}},
		"unsettled":     {Settlement: ledger.OnlyUnsettled},
		"settled":       {Settlement: ledger.OnlySettled},
		"window":        {SettledFrom: marchFrom, SettledTo: marchTo},
		"tariff in":     {TariffCodes: []string{"11", "21"}},
		"tariff not in": {Settlement: ledger.OnlyUnsettled, ExcludeTariffCodes: []string{"11", "21", "31"}},
		"route":         {RouteGroup: "R01"},
		"agent":         {SettlingAgent: models.BatchWriteOffAgent},
	}

	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			got, err := store.FetchInvoices(ctx, f)
			require.NoError(t, err)

			want := ledger.Select(fixtures(), f)
			require.ElementsMatch(t, customerIDs(want), customerIDs(got))
		})
	}
}

func TestFetchInvoicesRejectsInvalidFilter(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FetchInvoices(context.Background(), ledger.Filter{Period: &ledger.PeriodPredicate{Op: "LIKE", Month: 1}})
	require.ErrorIs(t, err, ledger.ErrInvalidFilter)
}

func TestBuildQueryIsParameterized(t *testing.T) {
	query, args := buildQuery(ledger.Filter{
		RouteGroup:  "R01' OR 1=1 --",
		TariffCodes: []string{"11", "21"},
		Period:      &ledger.PeriodPredicate{Op: ledger.Ne, Month: 4},
	})
	require.NotContains(t, query, "R01")
	require.Contains(t, query, "period_month <> ?")
	require.Contains(t, query, "tariff_code IN (?,?)")
	require.Equal(t, []interface{}{4, "11", "21", "R01' OR 1=1 --"}, args)
}

func customerIDs(recs []models.InvoiceRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.CustomerID)
	}
	return out
}
