// Package sqlstore serves the invoice ledger from a local SQLite file.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/internal/logger"
	"billingrecon/pkg/models"
)

const backend = "sqlite"

// timestampLayout is how settled_at is written. All values are UTC so that
// text comparison orders them chronologically.
const timestampLayout = "2006-01-02 15:04:05"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all up migrations to the database file at path.
func RunMigrations(path string) error {
	const op = "RunMigrations"

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%s: failed to open embedded migrations: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return fmt.Errorf("%s: failed to initialise migrator: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Store reads invoices from the invoices table.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens the ledger file with sensible sqlite defaults. The schema must
// already exist (see RunMigrations).
func Open(path string) (*Store, error) {
	const op = "Open"

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), path)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	return &Store{db: db, log: logger.WithComponent("ledger-sqlite")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchInvoices implements ledger.Source.
func (s *Store) FetchInvoices(ctx context.Context, filter ledger.Filter) ([]models.InvoiceRecord, error) {
	const op = "FetchInvoices"

	if err := filter.Validate(); err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrInvalidFilter, err), "")
	}

	query, args := buildQuery(filter)
	s.log.Debug().Str("query", query).Int("args", len(args)).Msg("Querying invoices")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), "")
	}
	defer rows.Close()

	var out []models.InvoiceRecord
	for rows.Next() {
		var (
			id                 int64
			rec                models.InvoiceRecord
			invoiced, settled  sql.NullString
			settledAt          sql.NullTime
			agent, receiptCode sql.NullString
		)
		if err := rows.Scan(&id, &rec.CustomerID, &rec.Period.Month, &rec.Period.Year,
			&invoiced, &settled, &settledAt, &agent, &receiptCode,
			&rec.TariffCode, &rec.RouteGroup); err != nil {
			return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrMalformedRow, err), fmt.Sprintf("row %d", id))
		}

		rec.InvoicedAmount = s.amount(id, "invoiced_amount", invoiced)
		rec.SettledAmount = s.amount(id, "settled_amount", settled)
		if settledAt.Valid {
			ts := settledAt.Time
			rec.SettledAt = &ts
		}
		if agent.Valid {
			rec.SettlingAgent = ledger.OptionalString(agent.String)
		}
		if receiptCode.Valid {
			rec.ReceiptCode = ledger.OptionalString(receiptCode.String)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), "")
	}

	s.log.Debug().Int("rows", len(out)).Msg("Invoices fetched")
	return out, nil
}

// amount parses a stored amount. Insert writes canonical decimal strings, so
// the sheet separator rules do not apply here.
func (s *Store) amount(id int64, column string, raw sql.NullString) decimal.Decimal {
	if !raw.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw.String))
	if err != nil {
		s.log.Warn().
			Err(err).
			Int64("id", id).
			Str("column", column).
			Msg("Invalid amount, using 0")
		return decimal.Zero
	}
	return d
}

// Insert appends records to the ledger in one transaction and returns the
// number of rows written. It backs the fixture loader; the reporting engine
// never writes.
func (s *Store) Insert(ctx context.Context, records []models.InvoiceRecord) (int, error) {
	const op = "Insert"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ledger.WrapError(backend, op, err, "")
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO invoices(customer_id, period_month, period_year, invoiced_amount, settled_amount,
	                     settled_at, settling_agent, receipt_code, tariff_code, route_group)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, ledger.WrapError(backend, op, err, "")
	}
	defer stmt.Close()

	for i, rec := range records {
		var settledAt interface{}
		if rec.SettledAt != nil {
			settledAt = formatTimestamp(*rec.SettledAt)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.CustomerID, rec.Period.Month, rec.Period.Year,
			rec.InvoicedAmount.String(), rec.SettledAmount.String(),
			settledAt, nullable(rec.SettlingAgent), nullable(rec.ReceiptCode),
			rec.TariffCode, rec.RouteGroup,
		); err != nil {
			_ = tx.Rollback()
			return 0, ledger.WrapError(backend, op, err, fmt.Sprintf("record %d", i+1))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, ledger.WrapError(backend, op, err, "")
	}
	s.log.Info().Int("rows", len(records)).Msg("Invoices inserted")
	return len(records), nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// buildQuery translates a validated filter into SQL with positional
// arguments. Only column names and whitelisted operators appear in the text.
func buildQuery(f ledger.Filter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if f.BillingYears != nil {
		where = append(where, "period_year BETWEEN ? AND ?")
		args = append(args, f.BillingYears.From, f.BillingYears.To)
	}
	if f.Period != nil {
		where = append(where, "period_month "+f.Period.Op.SQL()+" ?")
		args = append(args, f.Period.Month)
	}

	switch f.Settlement {
	case ledger.OnlySettled:
		where = append(where, "settled_at IS NOT NULL")
	case ledger.OnlyUnsettled:
		where = append(where, "settled_at IS NULL")
	}
	if !f.SettledFrom.IsZero() {
		where = append(where, "settled_at >= ?")
		args = append(args, formatTimestamp(f.SettledFrom))
	}
	if !f.SettledTo.IsZero() {
		where = append(where, "settled_at < ?")
		args = append(args, formatTimestamp(f.SettledTo))
	}

	if len(f.TariffCodes) > 0 {
		where = append(where, "tariff_code IN ("+placeholders(len(f.TariffCodes))+")")
		for _, c := range f.TariffCodes {
			args = append(args, c)
		}
	}
	if len(f.ExcludeTariffCodes) > 0 {
		where = append(where, "tariff_code NOT IN ("+placeholders(len(f.ExcludeTariffCodes))+")")
		for _, c := range f.ExcludeTariffCodes {
			args = append(args, c)
		}
	}
	if f.RouteGroup != "" {
		where = append(where, "route_group = ?")
		args = append(args, f.RouteGroup)
	}
	if f.SettlingAgent != "" {
		where = append(where, "settling_agent = ?")
		args = append(args, f.SettlingAgent)
	}

	query := `SELECT id, customer_id, period_month, period_year, invoiced_amount, settled_amount,
	settled_at, settling_agent, receipt_code, tariff_code, route_group FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_year, period_month, customer_id, id"
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
