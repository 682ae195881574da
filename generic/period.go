package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date range every report is computed for
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// Examples:
//   - A month: 2025-03-01 to 2025-03-31
//   - A year: 2025-01-01 to 2025-12-31
//   - An arbitrary window: 2025-01-15 to 2025-02-03 (touches 2 months)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates the bounds.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Months lists the calendar months the period touches.
func (p Period) Months() []YearMonth {
	return MonthRange(p.Start.YearMonth(), p.End.YearMonth())
}

// MonthCount is the whole-month proration factor for fixed monthly costs.
// Partial months count as full months.
func (p Period) MonthCount() int {
	return MonthsInclusive(p.Start.YearMonth(), p.End.YearMonth())
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD SELECTION - Year/month pickers and open-ended ranges
// =============================================================================

// MonthPeriod returns the given month of year, or the whole year when month
// is 0.
func MonthPeriod(year int, month time.Month) Period {
	if month == 0 {
		return Period{Start: StartOfYear(year), End: EndOfYear(year)}
	}
	return YearMonth{Year: year, Month: month}.Period()
}

// Bounds is a possibly open date range as entered by a user.
type Bounds struct {
	From *TimePoint
	To   *TimePoint
}

// Includes applies whichever bounds are set.
func (b Bounds) Includes(t TimePoint) bool {
	if b.From != nil && t.Before(*b.From) {
		return false
	}
	if b.To != nil && t.After(*b.To) {
		return false
	}
	return true
}

// Closed reports whether both bounds are set.
func (b Bounds) Closed() bool { return b.From != nil && b.To != nil }

// Resolve closes the range. Explicit bounds win; otherwise the range spans
// the earliest to latest of the observed dates; with nothing observed it is
// the month containing today collapsed to its first day.
func (b Bounds) Resolve(observed []TimePoint, today TimePoint) Period {
	if b.Closed() {
		return Period{Start: *b.From, End: *b.To}
	}
	if len(observed) == 0 {
		first := today.YearMonth().First()
		return Period{Start: first, End: first}
	}
	lo, hi := observed[0], observed[0]
	for _, t := range observed[1:] {
		lo = MinTime(lo, t)
		hi = MaxTime(hi, t)
	}
	return Period{Start: lo, End: hi}
}
