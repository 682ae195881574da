// Package interest computes late-payment interest on customer invoices.
//
// An invoice falls due a whole number of months after issue. Interest runs
// from the due date until payment (or until the as-of date for open
// invoices) at a simple annual rate on an actual/365 basis.
package interest

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a receivable. Number is unique within a Book after trimming.
type Invoice struct {
	Number       string             `json:"invoice_no"`
	Amount       decimal.Decimal    `json:"amount"`
	IssueDate    generic.TimePoint  `json:"issue_date"`
	CreditMonths int                `json:"credit_months"`
	PaidDate     *generic.TimePoint `json:"paid_date,omitempty"`
	AnnualRate   *decimal.Decimal   `json:"annual_rate,omitempty"` // 0.06 = 6%; nil uses the default
	CustomerID   *CustomerID        `json:"customer_id,omitempty"`
}

// Key is the normalized invoice number used for uniqueness.
func (inv Invoice) Key() string {
	return NormalizeNumber(inv.Number)
}

// IsPaid reports whether a settlement date was recorded.
func (inv Invoice) IsPaid() bool { return inv.PaidDate != nil }

// Validate checks the invariants a calculator relies on.
func (inv Invoice) Validate() error {
	if inv.Key() == "" {
		return &generic.FieldError{Field: "invoice_no", Value: inv.Number, Err: generic.ErrMalformedInput}
	}
	if inv.Amount.IsNegative() {
		return &generic.FieldError{Field: "amount", Value: inv.Amount.String(), Err: generic.ErrMalformedInput}
	}
	if inv.CreditMonths < 0 {
		return &generic.FieldError{Field: "credit_months", Value: strconv.Itoa(inv.CreditMonths), Err: generic.ErrMalformedInput}
	}
	if inv.IssueDate.IsZero() {
		return &generic.FieldError{Field: "issue_date", Value: "", Err: generic.ErrMalformedInput}
	}
	if inv.AnnualRate != nil && inv.AnnualRate.IsNegative() {
		return &generic.FieldError{Field: "annual_rate", Value: inv.AnnualRate.String(), Err: generic.ErrMalformedInput}
	}
	return nil
}

// NormalizeNumber trims surrounding whitespace.
func NormalizeNumber(n string) string {
	return strings.TrimSpace(n)
}

// =============================================================================
// CUSTOMER
// =============================================================================

type CustomerID int

func (id CustomerID) String() string { return strconv.Itoa(int(id)) }

// Customer is the optional counterparty of an invoice.
type Customer struct {
	ID    CustomerID `json:"cid"`
	Name  string     `json:"name"`
	TaxID string     `json:"afm,omitempty"`
	Phone string     `json:"phone,omitempty"`
	Notes string     `json:"notes,omitempty"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the book-wide defaults.
type Settings struct {
	DefaultRatePct      decimal.Decimal `json:"default_rate_pct"`
	DefaultCreditMonths int             `json:"default_credit_months"`
}

// DefaultSettings mirror the station's customary terms: 6% a year, 5 months
// of credit.
func DefaultSettings() Settings {
	return Settings{
		DefaultRatePct:      decimal.NewFromInt(6),
		DefaultCreditMonths: 5,
	}
}

// DefaultRate is DefaultRatePct as a fraction.
func (s Settings) DefaultRate() decimal.Decimal {
	return generic.PercentToRate(s.DefaultRatePct)
}
