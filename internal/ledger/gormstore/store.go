// Package gormstore serves the invoice ledger from a relational database
// (Postgres in production, SQLite for local runs) through gorm.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" //postgres
	_ "github.com/jinzhu/gorm/dialects/sqlite"   //sqlite3
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"billingrecon/internal/ledger"
	"billingrecon/internal/logger"
	"billingrecon/pkg/models"
)

const backend = "gorm"

// InvoiceRow is the invoices table as mapped by gorm.
type InvoiceRow struct {
	ID             int64               `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CustomerID     string              `gorm:"size:32;not null;index" json:"customer_id"`
	PeriodMonth    int                 `gorm:"not null" json:"period_month"`
	PeriodYear     int                 `gorm:"not null;index" json:"period_year"`
	InvoicedAmount decimal.NullDecimal `gorm:"type:numeric" json:"invoiced_amount"`
	SettledAmount  decimal.NullDecimal `gorm:"type:numeric" json:"settled_amount"`
	SettledAt      *time.Time          `gorm:"index" json:"settled_at"`
	SettlingAgent  *string             `gorm:"size:32" json:"settling_agent"`
	ReceiptCode    *string             `gorm:"size:64" json:"receipt_code"`
	TariffCode     string              `gorm:"size:8" json:"tariff_code"`
	RouteGroup     string              `gorm:"size:32" json:"route_group"`
}

// TableName pins the table name shared with the sqlite schema.
func (InvoiceRow) TableName() string {
	return "invoices"
}

// Record converts the row into the engine's model. NULL amounts become 0.
func (r InvoiceRow) Record() models.InvoiceRecord {
	rec := models.InvoiceRecord{
		CustomerID:     r.CustomerID,
		Period:         models.BillingPeriod{Month: r.PeriodMonth, Year: r.PeriodYear},
		InvoicedAmount: decimal.Zero,
		SettledAmount:  decimal.Zero,
		SettledAt:      r.SettledAt,
		SettlingAgent:  r.SettlingAgent,
		ReceiptCode:    r.ReceiptCode,
		TariffCode:     r.TariffCode,
		RouteGroup:     r.RouteGroup,
	}
	if r.InvoicedAmount.Valid {
		rec.InvoicedAmount = r.InvoicedAmount.Decimal
	}
	if r.SettledAmount.Valid {
		rec.SettledAmount = r.SettledAmount.Decimal
	}
	return rec
}

// FromRecord is the inverse of Record. Settlement timestamps are stored in UTC.
func FromRecord(rec models.InvoiceRecord) InvoiceRow {
	var settledAt *time.Time
	if rec.SettledAt != nil {
		ts := rec.SettledAt.UTC()
		settledAt = &ts
	}
	return InvoiceRow{
		CustomerID:     rec.CustomerID,
		PeriodMonth:    rec.Period.Month,
		PeriodYear:     rec.Period.Year,
		InvoicedAmount: decimal.NewNullDecimal(rec.InvoicedAmount),
		SettledAmount:  decimal.NewNullDecimal(rec.SettledAmount),
		SettledAt:      settledAt,
		SettlingAgent:  rec.SettlingAgent,
		ReceiptCode:    rec.ReceiptCode,
		TariffCode:     rec.TariffCode,
		RouteGroup:     rec.RouteGroup,
	}
}

// Store reads invoices through a gorm connection.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects with the given gorm dialect ("postgres" or "sqlite3").
func Open(dialect, dsn string) (*Store, error) {
	const op = "Open"

	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), dialect)
	}
	return New(db), nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, log: logger.WithComponent("ledger-gorm")}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates or extends the invoices table.
func (s *Store) Migrate() error {
	const op = "Migrate"

	if err := s.db.AutoMigrate(&InvoiceRow{}).Error; err != nil {
		return ledger.WrapError(backend, op, err, "")
	}
	return nil
}

// FetchInvoices implements ledger.Source.
func (s *Store) FetchInvoices(ctx context.Context, filter ledger.Filter) ([]models.InvoiceRecord, error) {
	const op = "FetchInvoices"

	if err := ctx.Err(); err != nil {
		return nil, ledger.WrapError(backend, op, err, "")
	}
	if err := filter.Validate(); err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrInvalidFilter, err), "")
	}

	var rows []InvoiceRow
	if err := scope(s.db.New(), filter).
		Order("period_year ASC, period_month ASC, customer_id ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, ledger.WrapError(backend, op, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err), "")
	}

	out := make([]models.InvoiceRecord, 0, len(rows))
	for _, row := range rows {
		if !row.InvoicedAmount.Valid {
			s.log.Warn().Int64("id", row.ID).Msg("Missing invoiced amount, using 0")
		}
		out = append(out, row.Record())
	}

	s.log.Debug().Int("rows", len(out)).Msg("Invoices fetched")
	return out, nil
}

// Insert writes records in a single transaction.
func (s *Store) Insert(ctx context.Context, records []models.InvoiceRecord) (int, error) {
	const op = "Insert"

	tx := s.db.Begin()
	if tx.Error != nil {
		return 0, ledger.WrapError(backend, op, tx.Error, "")
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			tx.Rollback()
			return 0, ledger.WrapError(backend, op, err, "")
		}
		row := FromRecord(rec)
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return 0, ledger.WrapError(backend, op, err, fmt.Sprintf("record %d", i+1))
		}
	}
	if err := tx.Commit().Error; err != nil {
		return 0, ledger.WrapError(backend, op, err, "")
	}
	return len(records), nil
}

// scope chains one Where per filter field. Values are always bound, and the
// only operator text comes from Comparison.SQL.
func scope(db *gorm.DB, f ledger.Filter) *gorm.DB {
	if f.BillingYears != nil {
		db = db.Where("period_year BETWEEN ? AND ?", f.BillingYears.From, f.BillingYears.To)
	}
	if f.Period != nil {
		db = db.Where("period_month "+f.Period.Op.SQL()+" ?", f.Period.Month)
	}

	switch f.Settlement {
	case ledger.OnlySettled:
		db = db.Where("settled_at IS NOT NULL")
	case ledger.OnlyUnsettled:
		db = db.Where("settled_at IS NULL")
	}
	if !f.SettledFrom.IsZero() {
		db = db.Where("settled_at >= ?", f.SettledFrom.UTC())
	}
	if !f.SettledTo.IsZero() {
		db = db.Where("settled_at < ?", f.SettledTo.UTC())
	}

	if len(f.TariffCodes) > 0 {
		db = db.Where("tariff_code IN (?)", f.TariffCodes)
	}
	if len(f.ExcludeTariffCodes) > 0 {
		db = db.Where("tariff_code NOT IN (?)", f.ExcludeTariffCodes)
	}
	if f.RouteGroup != "" {
		db = db.Where("route_group = ?", f.RouteGroup)
	}
	if f.SettlingAgent != "" {
		db = db.Where("settling_agent = ?", f.SettlingAgent)
	}
	return db
}
