/*
compensation.go - Time-versioned driver compensation

PURPOSE:
  A driver's pay terms change over time. Each change is recorded as a
  Snapshot keyed by the month it takes effect; the History answers "what
  were the terms in month M?" for any month, past or future.

RESOLUTION RULE:
  1. Drop entries without a month
  2. Sort ascending by month
  3. Pick the last entry whose month <= target
  4. If the target precedes every entry, pick the earliest entry
  5. If nothing is left, use the base terms tagged with the 1900-01 sentinel

  There is no cached "current" value anywhere: the current terms are
  History.Resolve(today's month).

SEE ALSO:
  - fleet/types.go: Driver embeds Base + History
  - fleet/allocate.go, fleet/summary.go: resolve per month
*/
package payroll

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// PAY MODE
// =============================================================================

// PayMode selects how a driver earns.
type PayMode string

const (
	PayMonthly PayMode = "monthly"  // fixed salary, allocated across trips
	PayPerTrip PayMode = "per_trip" // flat amount stored on each trip
)

// ParsePayMode defaults blank input to monthly.
func ParsePayMode(s string) (PayMode, error) {
	switch PayMode(s) {
	case "", PayMonthly:
		return PayMonthly, nil
	case PayPerTrip:
		return PayPerTrip, nil
	default:
		return "", &generic.FieldError{Field: "pay_mode", Value: s, Err: generic.ErrMalformedInput}
	}
}

func (m PayMode) orDefault() PayMode {
	if m == "" {
		return PayMonthly
	}
	return m
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Terms are the pay figures without the month they apply to.
type Terms struct {
	Mode      PayMode         `json:"pay_mode"`
	Salary    decimal.Decimal `json:"salary"`
	StampCost decimal.Decimal `json:"stamp_cost"`
	PerTrip   decimal.Decimal `json:"pay_per_trip"`
}

// Snapshot is the compensation in effect from Month onward.
type Snapshot struct {
	Month generic.YearMonth `json:"month"`
	Terms
}

// MonthlySalary is the salary that counts as a monthly cost: zero for
// per-trip drivers.
func (s Snapshot) MonthlySalary() decimal.Decimal {
	if s.Mode.orDefault() != PayMonthly {
		return decimal.Zero
	}
	return s.Salary
}

// MonthlyCost is what the driver costs for the month regardless of trips:
// stamps always, salary only in monthly mode.
func (s Snapshot) MonthlyCost() decimal.Decimal {
	return s.StampCost.Add(s.MonthlySalary())
}

// IsPerTrip reports whether trips carry the driver's pay directly.
func (s Snapshot) IsPerTrip() bool {
	return s.Mode.orDefault() == PayPerTrip
}

// CopyForward re-dates the snapshot, keeping its figures.
func (s Snapshot) CopyForward(month generic.YearMonth) Snapshot {
	s.Month = month
	return s
}

// Validate rejects negative figures and unknown modes.
func (s Snapshot) Validate() error {
	if _, err := ParsePayMode(string(s.Mode)); err != nil {
		return err
	}
	figures := []struct {
		field string
		value decimal.Decimal
	}{
		{"salary", s.Salary},
		{"stamp_cost", s.StampCost},
		{"pay_per_trip", s.PerTrip},
	}
	for _, f := range figures {
		if f.value.IsNegative() {
			return &generic.FieldError{Field: f.field, Value: f.value.String(), Err: generic.ErrMalformedInput}
		}
	}
	return nil
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s salary=%s stamps=%s per_trip=%s",
		s.Month, s.Mode.orDefault(), s.Salary, s.StampCost, s.PerTrip)
}

// =============================================================================
// HISTORY
// =============================================================================

// History holds at most one snapshot per month.
type History []Snapshot

// normalized drops month-less entries, defaults the mode and sorts.
func (h History) normalized() History {
	out := make(History, 0, len(h))
	for _, s := range h {
		if s.Month.IsZero() {
			continue
		}
		s.Mode = s.Mode.orDefault()
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Resolve returns the snapshot in effect for month. base supplies the
// figures when the history holds no usable entry.
func (h History) Resolve(month generic.YearMonth, base Terms) Snapshot {
	norm := h.normalized()
	if len(norm) == 0 {
		base.Mode = base.Mode.orDefault()
		return Snapshot{Month: generic.SentinelMonth, Terms: base}
	}

	chosen := norm[0]
	for _, s := range norm {
		if s.Month.After(month) {
			break
		}
		chosen = s
	}
	return chosen
}

// Set records s, replacing any entry for the same month, and returns the
// re-sorted history. The receiver is not modified.
func (h History) Set(s Snapshot) History {
	out := make(History, 0, len(h)+1)
	for _, existing := range h {
		if existing.Month == s.Month {
			continue
		}
		out = append(out, existing)
	}
	s.Mode = s.Mode.orDefault()
	out = append(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Remove drops the entry for month, if any.
func (h History) Remove(month generic.YearMonth) History {
	out := make(History, 0, len(h))
	for _, s := range h {
		if s.Month != month {
			out = append(out, s)
		}
	}
	return out
}

// Previous returns the latest entry strictly before month.
func (h History) Previous(month generic.YearMonth) (Snapshot, bool) {
	var (
		found bool
		prev  Snapshot
	)
	for _, s := range h.normalized() {
		if !s.Month.Before(month) {
			break
		}
		prev, found = s, true
	}
	return prev, found
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}
