package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

func yearlyLedger() []models.InvoiceRecord {
	return []models.InvoiceRecord{
		settle(inv("A", 2024, 1, 100), 100, at(2024, 1, 15, 9), "", "VCB1"),
		settle(inv("B", 2024, 2, 200), 150, at(2024, 3, 1, 0), "Cashier", ""),
		settle(inv("C", 2024, 3, 300), 0, at(2024, 6, 1, 8), models.BatchWriteOffAgent, ""),
		inv("D", 2024, 4, 400),
		settle(inv("E", 2024, 11, 500), 500, at(2025, 1, 5, 10), "", "MM7"),
		inv("F", 2023, 5, 1000),
		settle(inv("G", 2023, 12, 250), 0, at(2023, 12, 20, 10), models.BatchWriteOffAgent, ""),
	}
}

func endOfYear(y int) time.Time {
	return time.Date(y, 12, 31, 23, 59, 59, 0, time.UTC)
}

func TestComputeYearly(t *testing.T) {
	rows := ComputeYearly(yearlyLedger(), ledger.YearRange{From: 2024, To: 2024}, endOfYear(2024))
	require.Len(t, rows, 1)

	r := rows[0]
	require.Equal(t, 2024, r.Year)
	require.Equal(t, 5, r.InvoiceCount)
	require.True(t, d(300).Equal(r.Excluded), r.Excluded.String())
	require.True(t, d(1200).Equal(r.BaseAccrual), r.BaseAccrual.String())
	require.True(t, d(350).Equal(r.Adjustment), r.Adjustment.String())
	require.True(t, d(850).Equal(r.AccruedRevenue), r.AccruedRevenue.String())
	require.True(t, d(250).Equal(r.ActualCollected), r.ActualCollected.String())
	require.True(t, d(600).Equal(r.Outstanding), r.Outstanding.String())
	require.Equal(t, "29.41", r.AchievementRate.StringFixed(2))
	require.True(t, d(1000).Equal(r.PriorYearAccrual), r.PriorYearAccrual.String())
}

func TestComputeYearlyMultipleYears(t *testing.T) {
	rows := ComputeYearly(yearlyLedger(), ledger.YearRange{From: 2022, To: 2025}, endOfYear(2025))

	// 2022 and 2025 have no billed invoices
	require.Len(t, rows, 2)
	require.Equal(t, 2023, rows[0].Year)
	require.Equal(t, 2024, rows[1].Year)

	r := rows[0]
	require.True(t, d(1000).Equal(r.BaseAccrual))
	require.True(t, d(250).Equal(r.Adjustment))
	require.True(t, d(750).Equal(r.AccruedRevenue))
	require.True(t, r.ActualCollected.IsZero())
	require.True(t, r.AchievementRate.IsZero())
	require.True(t, r.PriorYearAccrual.IsZero())
}

func TestComputeYearlyOutstandingIdentity(t *testing.T) {
	records := yearlyLedger()
	for i := 0; i < 40; i++ {
		rec := inv("X", 2020+i%5, 1+i%12, int64(1000+i*37))
		if i%3 != 0 {
			agent := ""
			if i%4 == 0 {
				agent = models.BatchWriteOffAgent
			}
			rec = settle(rec, int64(900+i*11), at(2020+i%5+i%2, time.Month(1+i%12), 10, 0), agent, "")
		}
		records = append(records, rec)
	}

	for _, r := range ComputeYearly(records, ledger.YearRange{From: 2020, To: 2025}, endOfYear(2025)) {
		require.True(t, r.AccruedRevenue.Sub(r.ActualCollected).Equal(r.Outstanding), "year %d", r.Year)
		require.True(t, r.BaseAccrual.Sub(r.Adjustment).Equal(r.AccruedRevenue), "year %d", r.Year)
	}
}

func TestComputeYearlyCutoffIsInclusive(t *testing.T) {
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // B settles exactly here

	rows := ComputeYearly(yearlyLedger(), ledger.YearRange{From: 2024, To: 2024}, cutoff)
	require.True(t, d(50).Equal(rows[0].Adjustment))
	require.True(t, d(250).Equal(rows[0].ActualCollected))
	// C settled after the cutoff: still excluded from the base, not adjusted
	require.True(t, d(1200).Equal(rows[0].BaseAccrual))
	require.True(t, d(1150).Equal(rows[0].AccruedRevenue))

	rows = ComputeYearly(yearlyLedger(), ledger.YearRange{From: 2024, To: 2024}, cutoff.Add(-time.Nanosecond))
	require.True(t, rows[0].Adjustment.IsZero())
	require.True(t, d(100).Equal(rows[0].ActualCollected))
}

func TestComputeYearlyEmpty(t *testing.T) {
	require.Empty(t, ComputeYearly(nil, ledger.YearRange{From: 2024, To: 2024}, endOfYear(2024)))
}

func TestComputeMonthly(t *testing.T) {
	records := []models.InvoiceRecord{
		inv("A", 2024, 3, 100000),
		settle(inv("B", 2024, 3, 200000), 180000, at(2024, 3, 20, 10), "", ""),
		// paid late: accrued in April, not collected in April
		settle(inv("C", 2024, 4, 50000), 50000, at(2024, 5, 2, 10), "", ""),
		// other year
		settle(inv("D", 2023, 3, 70000), 70000, at(2023, 3, 5, 10), "", ""),
	}

	rows := ComputeMonthly(records, 2024)
	require.Len(t, rows, 2)

	require.Equal(t, 3, rows[0].Period)
	require.True(t, d(300000).Equal(rows[0].AccruedRevenue))
	require.True(t, d(180000).Equal(rows[0].ActualCollected))
	require.Equal(t, 2, rows[0].InvoiceCount)

	require.Equal(t, 4, rows[1].Period)
	require.True(t, d(50000).Equal(rows[1].AccruedRevenue))
	require.True(t, rows[1].ActualCollected.IsZero())
}

func dailyLedger() []models.InvoiceRecord {
	return []models.InvoiceRecord{
		settle(inv("X", 2024, 3, 180), 180, at(2024, 3, 20, 9), "", ""),
		// billed in February, settled on the same day as X
		settle(inv("Y", 2024, 2, 70), 70, at(2024, 3, 20, 15), "", ""),
		settle(inv("Z", 2024, 3, 100), 100, at(2024, 3, 21, 11), "", ""),
		settle(inv("W", 2024, 3, 90), 90, at(2024, 4, 2, 11), "", ""),
		inv("U", 2024, 3, 60),
	}
}

func TestComputeDailyKeepsCrossPeriodAmounts(t *testing.T) {
	records := dailyLedger()
	rows := ComputeDaily(records, records, 2024, 3)
	require.Len(t, rows, 2)

	require.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), rows[0].Date)
	require.Equal(t, 1, rows[0].InvoiceCount)
	require.True(t, d(250).Equal(rows[0].Collected), rows[0].Collected.String())

	require.Equal(t, 21, rows[1].Date.Day())
	require.Equal(t, 1, rows[1].InvoiceCount)
	require.True(t, d(100).Equal(rows[1].Collected))
}

func TestEngineRevenueReports(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{inner: ledger.NewMemorySource(append(yearlyLedger(), dailyLedger()...))}
	e := NewEngine(src, nil, nil, time.UTC)

	yearly, err := e.YearlyRevenue(ctx, ledger.YearRange{From: 2024, To: 2024}, endOfYear(2024))
	require.NoError(t, err)
	require.Len(t, yearly, 1)
	require.Equal(t, int32(1), src.calls.Load())

	monthly, err := e.MonthlyRevenue(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, monthly, 5)

	daily, err := e.DailyCollections(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.True(t, d(250).Equal(daily[0].Collected))
	require.Equal(t, int32(4), src.calls.Load())

	again, err := e.DailyCollections(ctx, 2024, 3)
	require.NoError(t, err)
	require.Equal(t, daily, again)
}

func TestEngineDailyUsesReportLocation(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	// 2024-03-31 20:00 UTC is already April 1st in ICT
	records := []models.InvoiceRecord{
		settle(inv("A", 2024, 3, 100), 100, at(2024, 3, 31, 20), "", ""),
		settle(inv("B", 2024, 4, 100), 100, at(2024, 4, 1, 3), "", ""),
	}
	e := NewEngine(ledger.NewMemorySource(records), nil, nil, ict)

	march, err := e.DailyCollections(context.Background(), 2024, 3)
	require.NoError(t, err)
	require.Empty(t, march)

	april, err := e.DailyCollections(context.Background(), 2024, 4)
	require.NoError(t, err)
	require.Len(t, april, 1)
	require.Equal(t, 1, april[0].InvoiceCount)
	require.True(t, d(200).Equal(april[0].Collected))
}

func TestEngineRevenueScopeErrors(t *testing.T) {
	e := NewEngine(ledger.NewMemorySource(nil), nil, nil, nil)
	ctx := context.Background()

	_, err := e.YearlyRevenue(ctx, ledger.YearRange{From: 2025, To: 2024}, endOfYear(2024))
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = e.YearlyRevenue(ctx, ledger.YearRange{From: 2024, To: 2024}, time.Time{})
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = e.MonthlyRevenue(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = e.DailyCollections(ctx, 2024, 13)
	var se *ScopeError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "period", se.Field)
	require.Equal(t, "DailyCollections", se.Op)
}

func TestEngineSwallowsLedgerFailures(t *testing.T) {
	e := NewEngine(failingSource, nil, nil, nil)
	ctx := context.Background()

	yearly, err := e.YearlyRevenue(ctx, ledger.YearRange{From: 2024, To: 2024}, endOfYear(2024))
	require.NoError(t, err)
	require.Empty(t, yearly)

	monthly, err := e.MonthlyRevenue(ctx, 2024)
	require.NoError(t, err)
	require.Empty(t, monthly)

	daily, err := e.DailyCollections(ctx, 2024, 3)
	require.NoError(t, err)
	require.Empty(t, daily)

	snap, err := e.OutstandingSnapshot(ctx, 2024, 3)
	require.NoError(t, err)
	require.True(t, snap.Total.Equal(decimal.Zero))
}
