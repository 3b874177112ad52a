package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"0":         "0",
		"999":       "999",
		"1000":      "1,000",
		"1234567":   "1,234,567",
		"-1500":     "-1,500",
		"180000.49": "180,000",
	}
	for in, want := range tests {
		require.Equal(t, want, formatAmount(decimal.RequireFromString(in)), in)
	}
	require.Equal(t, "64.29%", formatPercent(decimal.RequireFromString("64.2857")))
}

func TestRender(t *testing.T) {
	view := tableView{
		title:       "Channels",
		headers:     []string{"Channel", "Amount"},
		rows:        [][]string{{"VNPay", "180,000"}, {"Total", "180,000"}},
		numericFrom: 1,
	}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, nil, view))
	out := buf.String()
	require.Contains(t, out, "Channels")
	require.Contains(t, out, "VNPay")
	require.Equal(t, 2, strings.Count(out, "180,000"))

	buf.Reset()
	require.NoError(t, render(&buf, nil, tableView{title: "Empty"}))
	require.Contains(t, buf.String(), "(no data)")

	jsonOutput = true
	defer func() { jsonOutput = false }()
	buf.Reset()
	require.NoError(t, render(&buf, map[string]int{"count": 2}, view))
	require.JSONEq(t, `{"count": 2}`, buf.String())
}
