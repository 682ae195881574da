package interest

import (
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// Data is the persisted content of a Book.
type Data struct {
	Settings       Settings   `json:"settings"`
	Customers      []Customer `json:"customers"`
	Invoices       []Invoice  `json:"invoices"`
	NextCustomerID CustomerID `json:"next_customer_id"`
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	out := Data{Settings: d.Settings, NextCustomerID: d.NextCustomerID}
	out.Customers = append([]Customer(nil), d.Customers...)
	out.Invoices = make([]Invoice, len(d.Invoices))
	for i, inv := range d.Invoices {
		out.Invoices[i] = inv.clone()
	}
	return out
}

// IsEmpty reports whether no invoice or customer was ever recorded.
func (d Data) IsEmpty() bool {
	return len(d.Invoices) == 0 && len(d.Customers) == 0
}

func (inv Invoice) clone() Invoice {
	if inv.PaidDate != nil {
		paid := *inv.PaidDate
		inv.PaidDate = &paid
	}
	if inv.AnnualRate != nil {
		rate := *inv.AnnualRate
		inv.AnnualRate = &rate
	}
	if inv.CustomerID != nil {
		cid := *inv.CustomerID
		inv.CustomerID = &cid
	}
	return inv
}

// =============================================================================
// BOOK - The mutable invoice session
// =============================================================================

// Book guards invoices and customers for concurrent editors. Reads return
// copies; calculations never see a half-applied edit.
type Book struct {
	mu   sync.RWMutex
	data Data
}

// NewBook takes ownership of a copy of data.
func NewBook(data Data) *Book {
	b := &Book{data: data.Clone()}
	b.fixNextCustomerID()
	return b
}

func (b *Book) fixNextCustomerID() {
	if b.data.NextCustomerID < 1 {
		b.data.NextCustomerID = 1
	}
	for _, c := range b.data.Customers {
		if c.ID >= b.data.NextCustomerID {
			b.data.NextCustomerID = c.ID + 1
		}
	}
}

// Replace swaps in whole content.
func (b *Book) Replace(data Data) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data.Clone()
	b.fixNextCustomerID()
}

// Snapshot returns a deep copy of the current content.
func (b *Book) Snapshot() Data {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Clone()
}

// Report runs the interest calculation over a consistent snapshot. A nil
// rate uses the book's default.
func (b *Book) Report(rate *decimal.Decimal, asOf generic.TimePoint) Report {
	data := b.Snapshot()
	r := data.Settings.DefaultRate()
	if rate != nil {
		r = *rate
	}
	return BuildReport(data.Invoices, data.Customers, r, asOf)
}

// =============================================================================
// SETTINGS
// =============================================================================

func (b *Book) Settings() Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Settings
}

func (b *Book) SetSettings(s Settings) error {
	if s.DefaultRatePct.IsNegative() {
		return &generic.FieldError{Field: "default_rate_pct", Value: s.DefaultRatePct.String(), Err: generic.ErrMalformedInput}
	}
	if s.DefaultCreditMonths < 0 {
		return &generic.FieldError{Field: "default_credit_months", Value: strconv.Itoa(s.DefaultCreditMonths), Err: generic.ErrMalformedInput}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Settings = s
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (b *Book) indexOfInvoice(number string) int {
	key := NormalizeNumber(number)
	for i, inv := range b.data.Invoices {
		if inv.Key() == key {
			return i
		}
	}
	return -1
}

// Invoice looks up by trimmed number.
func (b *Book) Invoice(number string) (Invoice, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.indexOfInvoice(number)
	if i < 0 {
		return Invoice{}, &generic.NotFoundError{Kind: "invoice", ID: NormalizeNumber(number)}
	}
	return b.data.Invoices[i].clone(), nil
}

// AddInvoice rejects duplicate numbers (compared trimmed).
func (b *Book) AddInvoice(inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	inv.Number = inv.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOfInvoice(inv.Number) >= 0 {
		return generic.ErrDuplicateInvoice
	}
	b.data.Invoices = append(b.data.Invoices, inv.clone())
	return nil
}

// UpdateInvoice replaces the invoice currently numbered number. The new
// number may differ but must not collide with any other invoice.
func (b *Book) UpdateInvoice(number string, inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	inv.Number = inv.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOfInvoice(number)
	if i < 0 {
		return &generic.NotFoundError{Kind: "invoice", ID: NormalizeNumber(number)}
	}
	if j := b.indexOfInvoice(inv.Number); j >= 0 && j != i {
		return generic.ErrDuplicateInvoice
	}
	b.data.Invoices[i] = inv.clone()
	return nil
}

func (b *Book) DeleteInvoice(number string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOfInvoice(number)
	if i < 0 {
		return &generic.NotFoundError{Kind: "invoice", ID: NormalizeNumber(number)}
	}
	b.data.Invoices = append(b.data.Invoices[:i], b.data.Invoices[i+1:]...)
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// AddCustomer assigns the next id when c.ID is zero.
func (b *Book) AddCustomer(c Customer) (Customer, error) {
	if c.Name == "" {
		return Customer{}, &generic.FieldError{Field: "name", Value: "", Err: generic.ErrMalformedInput}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c.ID == 0 {
		c.ID = b.data.NextCustomerID
	}
	for _, existing := range b.data.Customers {
		if existing.ID == c.ID {
			return Customer{}, &generic.FieldError{Field: "cid", Value: c.ID.String(), Err: generic.ErrMalformedInput}
		}
	}
	b.data.Customers = append(b.data.Customers, c)
	b.fixNextCustomerID()
	return c, nil
}

func (b *Book) UpdateCustomer(c Customer) error {
	if c.Name == "" {
		return &generic.FieldError{Field: "name", Value: "", Err: generic.ErrMalformedInput}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data.Customers {
		if b.data.Customers[i].ID == c.ID {
			b.data.Customers[i] = c
			return nil
		}
	}
	return &generic.NotFoundError{Kind: "customer", ID: c.ID.String()}
}

// DeleteCustomer refuses while any invoice references the customer.
func (b *Book) DeleteCustomer(id CustomerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, c := range b.data.Customers {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &generic.NotFoundError{Kind: "customer", ID: id.String()}
	}

	uses := 0
	for _, inv := range b.data.Invoices {
		if inv.CustomerID != nil && *inv.CustomerID == id {
			uses++
		}
	}
	if uses > 0 {
		return &generic.ReferenceError{Kind: "customer", ID: id.String(), Invoices: uses}
	}

	b.data.Customers = append(b.data.Customers[:idx], b.data.Customers[idx+1:]...)
	return nil
}
