package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BatchWriteOffAgent is the settling agent recorded when an invoice was closed
// by the internal batch/reclassification run instead of an actual collection.
const BatchWriteOffAgent = "NKD"

// customerIDWidth is the fixed width customer identifiers are rendered with.
const customerIDWidth = 11

// BillingPeriod identifies the month an invoice bills for.
type BillingPeriod struct {
	Month int `json:"month"` // 1..12
	Year  int `json:"year"`
}

// String renders the period as MM/YYYY.
func (p BillingPeriod) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// Compare orders periods chronologically (-1, 0, 1).
func (p BillingPeriod) Compare(other BillingPeriod) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than other.
func (p BillingPeriod) Before(other BillingPeriod) bool {
	return p.Compare(other) < 0
}

// Valid reports whether the month is within 1..12 and the year is positive.
func (p BillingPeriod) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year > 0
}

// InvoiceRecord is one row of the invoice ledger as seen by the reporting engine.
type InvoiceRecord struct {
	// Core identifiers
	CustomerID string        `json:"customer_id"`
	Period     BillingPeriod `json:"period"`

	// Amounts
	InvoicedAmount decimal.Decimal `json:"invoiced_amount"` // accrual basis, always present
	SettledAmount  decimal.Decimal `json:"settled_amount"`  // zero until settlement

	// Settlement (nil SettledAt means the invoice is outstanding)
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	SettlingAgent *string    `json:"settling_agent,omitempty"`
	ReceiptCode   *string    `json:"receipt_code,omitempty"`

	// Classification
	TariffCode string `json:"tariff_code"`
	RouteGroup string `json:"route_group"`
}

// IsSettled returns true once the invoice carries a settlement timestamp.
func (r *InvoiceRecord) IsSettled() bool {
	return r.SettledAt != nil
}

// IsBatchWriteOff returns true when the settling agent is the batch sentinel.
func (r *InvoiceRecord) IsBatchWriteOff() bool {
	return r.SettlingAgent != nil && *r.SettlingAgent == BatchWriteOffAgent
}

// SettledInYear reports whether the invoice was settled during the calendar year.
func (r *InvoiceRecord) SettledInYear(year int) bool {
	return r.SettledAt != nil && r.SettledAt.Year() == year
}

// SettledIn reports whether the invoice was settled during the given calendar month.
func (r *InvoiceRecord) SettledIn(year, month int) bool {
	return r.SettledAt != nil && r.SettledAt.Year() == year && int(r.SettledAt.Month()) == month
}

// SettledOnTime reports whether the invoice was settled in the same calendar
// month and year it bills for.
func (r *InvoiceRecord) SettledOnTime() bool {
	return r.SettledIn(r.Period.Year, r.Period.Month)
}

// Receipt returns the receipt code, or "" when there is none or the invoice is unsettled.
func (r *InvoiceRecord) Receipt() string {
	if r.SettledAt == nil || r.ReceiptCode == nil {
		return ""
	}
	return *r.ReceiptCode
}

// FormatCustomerID left-pads numeric customer identifiers with zeros to the
// ledger's fixed width. Longer or non-numeric identifiers are returned trimmed.
func FormatCustomerID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) >= customerIDWidth {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return strings.Repeat("0", customerIDWidth-len(id)) + id
}
