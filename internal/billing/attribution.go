package billing

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

// TotalChannel labels the grand-total row of a channel report.
const TotalChannel = "Total"

// ChannelRow is the settled amount attributed to one payment channel.
type ChannelRow struct {
	Channel    string          `json:"channel"`
	Count      int             `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	IsTotal    bool            `json:"is_total,omitempty"`
}

// AggregateByChannel classifies every settled invoice by receipt code. Rows
// are sorted by channel name and followed by a grand-total row. No settled
// invoices means no rows.
func AggregateByChannel(invoices []models.InvoiceRecord, classifier *Classifier) []ChannelRow {
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	byChannel := make(map[string]*ChannelRow)
	total := ChannelRow{Channel: TotalChannel, Amount: decimal.Zero, IsTotal: true}
	for i := range invoices {
		inv := &invoices[i]
		if !inv.IsSettled() {
			continue
		}
		name := classifier.Classify(inv.ReceiptCode)
		row, ok := byChannel[name]
		if !ok {
			row = &ChannelRow{Channel: name, Amount: decimal.Zero}
			byChannel[name] = row
		}
		row.Count++
		row.Amount = row.Amount.Add(inv.SettledAmount)
		total.Count++
		total.Amount = total.Amount.Add(inv.SettledAmount)
	}
	if len(byChannel) == 0 {
		return nil
	}

	rows := make([]ChannelRow, 0, len(byChannel)+1)
	for _, row := range byChannel {
		row.Percentage = percentage(row.Amount, total.Amount)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Channel < rows[j].Channel })

	total.Percentage = decimal.Zero
	if !total.Amount.IsZero() {
		total.Percentage = hundred
	}
	return append(rows, total)
}

// ChannelAttribution attributes invoices settled in [from, to) to channels.
func (e *Engine) ChannelAttribution(ctx context.Context, from, to time.Time) ([]ChannelRow, error) {
	const op = "ChannelAttribution"

	if from.IsZero() || to.IsZero() {
		return nil, scopeError(op, "window", from.String()+" - "+to.String(), "both bounds are required")
	}
	if !from.Before(to) {
		return nil, scopeError(op, "window", from.Format(time.RFC3339)+" - "+to.Format(time.RFC3339), "from must be before to")
	}

	e.logFor(ctx).Debug().
		Time("from", from).
		Time("to", to).
		Msg("Computing channel attribution")

	invoices := e.fetch(ctx, op, ledger.Filter{SettledFrom: from, SettledTo: to})
	return AggregateByChannel(invoices, e.classifier), nil
}
