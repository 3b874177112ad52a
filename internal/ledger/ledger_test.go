package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"billingrecon/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func record(customer string, month, year int, amount int64) models.InvoiceRecord {
	return models.InvoiceRecord{
		CustomerID:     customer,
		Period:         models.BillingPeriod{Month: month, Year: year},
		InvoicedAmount: decimal.NewFromInt(amount),
		SettledAmount:  decimal.Zero,
	}
}

func TestParseComparison(t *testing.T) {
	for in, want := range map[string]Comparison{
		"=": Eq, "==": Eq, "<>": Ne, "!=": Ne, "<": Lt, "LTE": Le, ">": Gt, " >= ": Ge,
	} {
		got, err := ParseComparison(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseComparison("; DROP TABLE invoices")
	require.Error(t, err)

	require.Equal(t, "<>", Ne.SQL())
	require.Equal(t, "<=", Le.SQL())
	require.True(t, Lt.Apply(2, 3))
	require.False(t, Ge.Apply(2, 3))
}

func TestFilterMatches(t *testing.T) {
	settled := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

	open := record("1", 3, 2024, 100)
	open.TariffCode = "11"
	open.RouteGroup = "R01"

	paid := record("2", 2, 2024, 200)
	paid.TariffCode = "31"
	paid.SettledAt = &settled
	paid.SettlingAgent = ptr(models.BatchWriteOffAgent)

	tests := []struct {
		name   string
		filter Filter
		open   bool
		paid   bool
	}{
		{"empty filter", Filter{}, true, true},
		{"year", ForYear(2024), true, true},
		{"other year", ForYear(2023), false, false},
		{"period lt", Filter{Period: &PeriodPredicate{Op: Lt, Month: 3}}, false, true},
		{"period eq", Filter{Period: &PeriodPredicate{Op: Eq, Month: 3}}, true, false},
		{"unsettled", Filter{Settlement: OnlyUnsettled}, true, false},
		{"settled", Filter{Settlement: OnlySettled}, false, true},
		{"tariff include", Filter{TariffCodes: []string{"11", "21"}}, true, false},
		{"tariff exclude", Filter{ExcludeTariffCodes: []string{"11", "21"}}, false, true},
		{"route", Filter{RouteGroup: "R01"}, true, false},
		{"agent", Filter{SettlingAgent: models.BatchWriteOffAgent}, false, true},
		{"window inclusive start", Filter{SettledFrom: settled}, false, true},
		{"window exclusive end", Filter{SettledTo: settled}, false, false},
		{"window month", Filter{SettledFrom: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), SettledTo: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.open, tt.filter.Matches(open))
			require.Equal(t, tt.paid, tt.filter.Matches(paid))
		})
	}
}

func TestFilterValidate(t *testing.T) {
	require.NoError(t, Filter{}.Validate())
	require.Error(t, Filter{BillingYears: &YearRange{From: 2025, To: 2024}}.Validate())
	require.Error(t, Filter{Period: &PeriodPredicate{Op: Lt, Month: 13}}.Validate())
	require.Error(t, Filter{Period: &PeriodPredicate{Op: "LIKE", Month: 3}}.Validate())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Error(t, Filter{SettledFrom: at, SettledTo: at}.Validate())
	require.Error(t, Filter{Settlement: OnlyUnsettled, SettledFrom: at}.Validate())
}

func TestYearRange(t *testing.T) {
	require.Equal(t, []int{2022, 2023, 2024}, YearRange{From: 2022, To: 2024}.Years())
	require.Nil(t, YearRange{From: 2024, To: 2022}.Years())
	require.True(t, YearRange{From: 2022, To: 2024}.Contains(2024))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "0"},
		{"", "0"},
		{"100000", "100000"},
		{"1.234.567", "1234567"},
		{"1,234,567", "1234567"},
		{"1.234,50", "1234.5"},
		{"1,234.50", "1234.5"},
		{"12,5", "12.5"},
		{"12.5", "12.5"},
		{"180.000 ₫", "180000"},
		{"-2.000", "-2000"},
		{int64(42), "42"},
		{float64(1.5), "1.5"},
		{[]byte("300000"), "300000"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, "%v", tt.in)
		require.True(t, decimal.RequireFromString(tt.want).Equal(got), "%v -> %s", tt.in, got)
	}

	_, err := ParseAmount("n/a")
	require.ErrorIs(t, err, ErrMalformedRow)
	require.True(t, AmountOrZero("n/a").IsZero())
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)

	ts, err := ParseTimestamp("20/03/2024 08:30:00", loc)
	require.NoError(t, err)
	require.True(t, time.Date(2024, 3, 20, 8, 30, 0, 0, loc).Equal(*ts))

	ts, err = ParseTimestamp("2024-03-20", loc)
	require.NoError(t, err)
	require.Equal(t, 20, ts.Day())

	ts, err = ParseTimestamp("   ", loc)
	require.NoError(t, err)
	require.Nil(t, ts)

	_, err = ParseTimestamp("yesterday", loc)
	require.ErrorIs(t, err, ErrMalformedRow)
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource([]models.InvoiceRecord{record("1", 1, 2024, 10), record("2", 1, 2023, 20)})

	got, err := src.FetchInvoices(ctx, ForYear(2024))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "1", got[0].CustomerID)

	_, err = src.FetchInvoices(ctx, Filter{BillingYears: &YearRange{From: 2, To: 1}})
	require.ErrorIs(t, err, ErrInvalidFilter)

	var ledgerErr *LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	require.Equal(t, "memory", ledgerErr.Backend)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.FetchInvoices(canceled, Filter{})
	require.ErrorIs(t, err, context.Canceled)
}
