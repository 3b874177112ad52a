// Package ledger defines the query port the reporting engine reads invoices
// through, the parameterized Filter every adapter understands, and the
// coercion helpers adapters use to turn raw cells into invoice records.
//
// Concrete adapters live in sub-packages:
//   - sqlstore:   SQLite file (database/sql, embedded migrations)
//   - gormstore:  Postgres (or SQLite) through gorm
//   - sheetstore: a read-only Google Sheets ledger tab
//
// Adapters return records with InvoicedAmount and SettledAmount always set
// (zero when the backing cell is absent or not numeric).
package ledger

import (
	"context"
	"fmt"

	"billingrecon/pkg/models"
)

// Source supplies invoice rows matching a filter. Implementations must be safe
// for concurrent use; the engine issues independent queries in parallel.
type Source interface {
	FetchInvoices(ctx context.Context, filter Filter) ([]models.InvoiceRecord, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, filter Filter) ([]models.InvoiceRecord, error)

// FetchInvoices calls f.
func (f SourceFunc) FetchInvoices(ctx context.Context, filter Filter) ([]models.InvoiceRecord, error) {
	return f(ctx, filter)
}

// MemorySource serves a fixed snapshot, applying Filter.Matches.
type MemorySource struct {
	records []models.InvoiceRecord
}

// NewMemorySource copies records into a new in-memory source.
func NewMemorySource(records []models.InvoiceRecord) *MemorySource {
	cp := make([]models.InvoiceRecord, len(records))
	copy(cp, records)
	return &MemorySource{records: cp}
}

// FetchInvoices returns the records accepted by filter.
func (m *MemorySource) FetchInvoices(ctx context.Context, filter Filter) ([]models.InvoiceRecord, error) {
	const op = "FetchInvoices"

	if err := ctx.Err(); err != nil {
		return nil, WrapError("memory", op, err, "")
	}
	if err := filter.Validate(); err != nil {
		return nil, WrapError("memory", op, fmt.Errorf("%w: %v", ErrInvalidFilter, err), "")
	}
	return Select(m.records, filter), nil
}

// Select returns the records accepted by filter, preserving order.
func Select(records []models.InvoiceRecord, filter Filter) []models.InvoiceRecord {
	out := make([]models.InvoiceRecord, 0, len(records))
	for _, rec := range records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
