package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// tableView is a report rendered as a terminal table. Columns from
// numericFrom on are right-aligned.
type tableView struct {
	title       string
	headers     []string
	rows        [][]string
	numericFrom int
}

func (v tableView) String() string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(v.headers...).
		Rows(v.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cellStyle
			if row == table.HeaderRow {
				style = headerStyle
			} else if row >= 0 && row < len(v.rows) && len(v.rows[row]) > 0 && v.rows[row][0] == "Total" {
				style = style.Bold(true)
			}
			if v.numericFrom > 0 && col >= v.numericFrom {
				style = style.Align(lipgloss.Right)
			}
			return style
		})

	if v.title == "" {
		return t.Render()
	}
	return titleStyle.Render(v.title) + "\n" + t.Render()
}

// render prints data as indented JSON when --json is set, otherwise the tables.
func render(w io.Writer, data interface{}, views ...tableView) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	for _, v := range views {
		if len(v.rows) == 0 {
			fmt.Fprintln(w, titleStyle.Render(v.title))
			fmt.Fprintln(w, "(no data)")
			continue
		}
		fmt.Fprintln(w, v.String())
	}
	return nil
}

// formatAmount renders a whole-currency amount with thousands separators.
func formatAmount(d decimal.Decimal) string {
	s := d.Round(0).Abs().StringFixed(0)
	var b strings.Builder
	if d.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}
