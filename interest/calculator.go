package interest

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// SINGLE INVOICE
// =============================================================================

// Result is the interest position of one invoice as of a date.
type Result struct {
	DueDate        generic.TimePoint
	SettlementDate generic.TimePoint
	DelayDays      int
	Rate           decimal.Decimal // annual, as a fraction
	Interest       decimal.Decimal // unrounded
}

// Calculate is pure: the same inputs always give the same Result and the
// invoice is never modified.
//
//	due        = issue + credit months (clamped to month end)
//	settlement = paid date, else asOf
//	delay      = max(0, settlement - due) days
//	interest   = amount * rate * delay / 365
func Calculate(inv Invoice, defaultRate decimal.Decimal, asOf generic.TimePoint) Result {
	due := inv.IssueDate.AddMonths(inv.CreditMonths)

	settlement := asOf
	if inv.PaidDate != nil {
		settlement = *inv.PaidDate
	}

	delay := generic.DaysBetween(due, settlement)
	if delay < 0 {
		delay = 0
	}

	rate := defaultRate
	if inv.AnnualRate != nil {
		rate = *inv.AnnualRate
	}

	accrued := inv.Amount.Mul(rate).Mul(decimal.NewFromInt(int64(delay))).Div(generic.DaysPerYear)

	return Result{
		DueDate:        due,
		SettlementDate: settlement,
		DelayDays:      delay,
		Rate:           rate,
		Interest:       accrued,
	}
}

// =============================================================================
// REPORT
// =============================================================================

// Row is one invoice in a report.
type Row struct {
	Invoice  Invoice
	Customer string
	Result
}

// Report lists every invoice with its interest plus the grand total.
type Report struct {
	AsOf        generic.TimePoint
	DefaultRate decimal.Decimal
	Rows        []Row
	Total       decimal.Decimal
}

// Customer labels used in reports.
const (
	NoCustomer      = "-"
	UnknownCustomer = "(unknown)"
)

// BuildReport computes every invoice independently. Rows are ordered by
// issue date then number. A dangling customer reference is labelled, not
// an error.
func BuildReport(invoices []Invoice, customers []Customer, defaultRate decimal.Decimal, asOf generic.TimePoint) Report {
	names := make(map[CustomerID]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	rows := make([]Row, 0, len(invoices))
	total := decimal.Zero
	for _, inv := range invoices {
		label := NoCustomer
		if inv.CustomerID != nil {
			if name, ok := names[*inv.CustomerID]; ok {
				label = name
			} else {
				label = UnknownCustomer
			}
		}
		res := Calculate(inv, defaultRate, asOf)
		total = total.Add(res.Interest)
		rows = append(rows, Row{Invoice: inv, Customer: label, Result: res})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Invoice, rows[j].Invoice
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.Before(b.IssueDate)
		}
		return a.Key() < b.Key()
	})

	return Report{AsOf: asOf, DefaultRate: defaultRate, Rows: rows, Total: total}
}
