package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"billingrecon/internal/ledger"
)

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("year", " 2024 ")
	require.NoError(t, err)
	require.Equal(t, 2024, n)

	for _, raw := range []string{"", "twenty", "20.5"} {
		_, err := ParseNumber("year", raw)
		require.ErrorIs(t, err, ErrInvalidScope, raw)
		var se *ScopeError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "year", se.Field)
	}

	opt, err := ParseOptionalNumber("year", "")
	require.NoError(t, err)
	require.Nil(t, opt)
}

func TestParseCutoff(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)

	cutoff, err := ParseCutoff("2024-12-31", ict)
	require.NoError(t, err)
	require.Equal(t, 2024, cutoff.Year())
	require.Equal(t, 23, cutoff.Hour())
	require.True(t, cutoff.Before(time.Date(2025, 1, 1, 0, 0, 0, 0, ict)))
	require.True(t, cutoff.After(time.Date(2024, 12, 31, 23, 59, 59, 0, ict)))

	cutoff, err = ParseCutoff("2024-06-30T12:00:00Z", ict)
	require.NoError(t, err)
	require.True(t, cutoff.Equal(time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)))
	require.Equal(t, ict, cutoff.Location())

	_, err = ParseCutoff("31/12/2024", ict)
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestParseDate(t *testing.T) {
	day, err := ParseDate("from", "2024-03-01", time.UTC)
	require.NoError(t, err)
	require.True(t, day.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDate("from", "2024-3-1", time.UTC)
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestEndOfYear(t *testing.T) {
	end := EndOfYear(2024, nil)
	require.Equal(t, 2024, end.Year())
	require.True(t, end.Add(time.Nanosecond).Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParsePeriodPredicate(t *testing.T) {
	p, err := ParsePeriodPredicate("", "")
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = ParsePeriodPredicate("", "6")
	require.NoError(t, err)
	require.Equal(t, &ledger.PeriodPredicate{Op: ledger.Eq, Month: 6}, p)

	p, err = ParsePeriodPredicate("lte", "6")
	require.NoError(t, err)
	require.Equal(t, ledger.Le, p.Op)

	_, err = ParsePeriodPredicate("~", "6")
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = ParsePeriodPredicate("<", "13")
	require.ErrorIs(t, err, ErrInvalidScope)
}
