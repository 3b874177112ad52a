package sheetstore

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rs/zerolog"

	"billingrecon/internal/ledger"
	"billingrecon/pkg/models"
)

// ReadCSV parses a CSV export of the ledger tab. The layout and the
// skip-and-warn rules are the same as for the sheet itself.
func ReadCSV(r io.Reader, loc *time.Location, log zerolog.Logger) ([]models.InvoiceRecord, error) {
	const op = "ReadCSV"

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, ledger.WrapError("csv", op, ledger.ErrMalformedRow, err.Error())
	}
	if len(lines) <= 1 {
		return nil, nil
	}

	rows := make([][]interface{}, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := make([]interface{}, len(line))
		for i, cell := range line {
			row[i] = cell
		}
		rows = append(rows, row)
	}

	records := ParseRows(rows, loc, log)
	log.Info().
		Int("rows", len(rows)).
		Int("records", len(records)).
		Msg("CSV ledger parsed")
	return records, nil
}
