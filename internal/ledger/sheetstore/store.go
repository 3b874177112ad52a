// Package sheetstore reads the invoice ledger from a Google Sheets tab.
//
// Expected columns: A=customer, B=period month, C=period year,
// D=invoiced amount, E=settled amount, F=settled at, G=settling agent,
// H=tariff code, I=route group, J=receipt code. The first row is a header.
package sheetstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/internal/logger"
	"billingrecon/pkg/models"
)

const backend = "sheets"

// DefaultRange is read when no range is configured.
const DefaultRange = "Ledger!A:J"

const minColumns = 4

// RangeReader is the part of Client the store needs.
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// Store serves the sheet as a ledger.Source. The whole range is read on every
// call and filtered in memory.
type Store struct {
	reader    RangeReader
	rangeSpec string
	loc       *time.Location
	log       zerolog.Logger
}

// NewStore creates a store over reader. Timestamps without a zone are read in loc.
func NewStore(reader RangeReader, rangeSpec string, loc *time.Location) *Store {
	if rangeSpec == "" {
		rangeSpec = DefaultRange
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		reader:    reader,
		rangeSpec: rangeSpec,
		loc:       loc,
		log:       logger.WithComponent("ledger-sheets"),
	}
}

// FetchInvoices implements ledger.Source.
func (s *Store) FetchInvoices(ctx context.Context, filter ledger.Filter) ([]models.InvoiceRecord, error) {
	const op = "FetchInvoices"

	if err := filter.Validate(); err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrInvalidFilter, err), "")
	}

	values, err := s.reader.ReadRange(ctx, s.rangeSpec)
	if err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), s.rangeSpec)
	}
	if len(values) == 0 {
		s.log.Warn().Str("range", s.rangeSpec).Msg("Ledger sheet is empty")
		return nil, nil
	}

	records := ParseRows(values[1:], s.loc, s.log)

	s.log.Info().
		Int("total_rows", len(values)-1).
		Int("parsed_invoices", len(records)).
		Str("range", s.rangeSpec).
		Msg("Ledger sheet read successfully")

	return ledger.Select(records, filter), nil
}

// ParseRows converts data rows (header already removed) into invoice records.
// Rows without a customer or a valid billing period are skipped; unparseable
// amounts become 0. Each problem is logged with its sheet row number.
func ParseRows(rows [][]interface{}, loc *time.Location, log zerolog.Logger) []models.InvoiceRecord {
	var records []models.InvoiceRecord
	for i, row := range rows {
		rowNum := i + 2 // Account for header and 0-based indexing

		if len(row) < minColumns {
			log.Warn().
				Int("row", rowNum).
				Int("columns", len(row)).
				Msg("Skipping ledger row with insufficient columns")
			continue
		}

		rec, err := parseRow(row, rowNum, loc, log)
		if err != nil {
			log.Warn().
				Err(err).
				Int("row", rowNum).
				Msg("Failed to parse ledger row, skipping")
			continue
		}
		records = append(records, rec)
	}
	return records
}

func parseRow(row []interface{}, rowNum int, loc *time.Location, log zerolog.Logger) (models.InvoiceRecord, error) {
	const op = "parseRow"

	customer := getString(row, 0)
	if customer == "" {
		return models.InvoiceRecord{}, fmt.Errorf("%s: %w: missing customer in row %d", op, ledger.ErrMalformedRow, rowNum)
	}

	month, monthErr := strconv.Atoi(getString(row, 1))
	year, yearErr := strconv.Atoi(getString(row, 2))
	period := models.BillingPeriod{Month: month, Year: year}
	if monthErr != nil || yearErr != nil || !period.Valid() {
		return models.InvoiceRecord{}, fmt.Errorf("%s: %w: invalid period '%s/%s' in row %d",
			op, ledger.ErrMalformedRow, getString(row, 1), getString(row, 2), rowNum)
	}

	settledAt, err := ledger.ParseTimestamp(getString(row, 5), loc)
	if err != nil {
		return models.InvoiceRecord{}, fmt.Errorf("%s: invalid settlement time in row %d: %w", op, rowNum, err)
	}

	return models.InvoiceRecord{
		CustomerID:     customer,
		Period:         period,
		InvoicedAmount: amountCell(row, 3, "invoiced", rowNum, log),
		SettledAmount:  amountCell(row, 4, "settled", rowNum, log),
		SettledAt:      settledAt,
		SettlingAgent:  ledger.OptionalString(getString(row, 6)),
		TariffCode:     getString(row, 7),
		RouteGroup:     getString(row, 8),
		ReceiptCode:    ledger.OptionalString(getString(row, 9)),
	}, nil
}

func amountCell(row []interface{}, index int, name string, rowNum int, log zerolog.Logger) decimal.Decimal {
	var raw interface{}
	if index < len(row) {
		raw = row[index]
	}
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		log.Warn().
			Str(name+"_amount", getString(row, index)).
			Int("row", rowNum).
			Msgf("Invalid %s amount, using 0", name)
		return decimal.Zero
	}
	return amount
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	switch v := row[index].(type) {
	case float64:
		// unformatted numeric cells arrive as float64
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
