package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

func TestComputeOutstanding(t *testing.T) {
	records := []models.InvoiceRecord{
		inv("1", 2022, 6, 10),
		inv("2", 2023, 12, 20),
		inv("3", 2024, 1, 100),
		inv("4", 2024, 2, 200),
		inv("5", 2024, 3, 400),
		inv("6", 2024, 4, 800), // after the as-of period: only in Total
		settle(inv("7", 2024, 3, 5000), 5000, at(2024, 3, 9, 9), "", ""),
	}

	snap := ComputeOutstanding(records, 2024, 3)
	require.Equal(t, 2024, snap.AsOfYear)
	require.Equal(t, 3, snap.AsOfPeriod)
	require.True(t, d(30).Equal(snap.PriorYears))
	require.True(t, d(300).Equal(snap.CurrentYearPriorPeriods))
	require.True(t, d(400).Equal(snap.CurrentPeriod))
	require.True(t, d(1530).Equal(snap.Total))
	require.Equal(t, 6, snap.UnsettledCount)

	// buckets are not a partition of Total
	sum := snap.PriorYears.Add(snap.CurrentYearPriorPeriods).Add(snap.CurrentPeriod)
	require.False(t, sum.Equal(snap.Total))
}

func TestEngineOutstandingSnapshot(t *testing.T) {
	records := []models.InvoiceRecord{
		inv("1", 2023, 5, 70),
		inv("2", 2024, 1, 30),
		settle(inv("3", 2023, 1, 1000), 1000, at(2023, 2, 1, 9), "", ""),
	}
	e := NewEngine(ledger.NewMemorySource(records), nil, nil, nil)

	snap, err := e.OutstandingSnapshot(context.Background(), 2024, 1)
	require.NoError(t, err)
	require.True(t, d(70).Equal(snap.PriorYears))
	require.True(t, d(30).Equal(snap.CurrentPeriod))
	require.True(t, d(100).Equal(snap.Total))

	_, err = e.OutstandingSnapshot(context.Background(), 2024, 0)
	require.ErrorIs(t, err, ErrInvalidScope)
}
