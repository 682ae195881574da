package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// YEAR MONTH - Month granularity used by payroll history and cost pools
// =============================================================================

// YearMonth identifies a calendar month. Its text form is "YYYY-MM", which
// sorts lexicographically in chronological order.
type YearMonth struct {
	Year  int
	Month time.Month
}

// SentinelMonth tags a compensation snapshot synthesized from a driver's base
// figures. It is older than any real month.
var SentinelMonth = YearMonth{Year: 1900, Month: time.January}

func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: month}
}

// ParseYearMonth accepts exactly "YYYY-MM" (surrounding whitespace ignored).
func ParseYearMonth(s string) (YearMonth, error) {
	raw := strings.TrimSpace(s)
	if len(raw) != 7 || raw[4] != '-' {
		return YearMonth{}, &FieldError{Field: "month", Value: s, Err: ErrMalformedInput}
	}
	y, errY := strconv.Atoi(raw[:4])
	m, errM := strconv.Atoi(raw[5:])
	if errY != nil || errM != nil || m < 1 || m > 12 {
		return YearMonth{}, &FieldError{Field: "month", Value: s, Err: ErrMalformedInput}
	}
	return YearMonth{Year: y, Month: time.Month(m)}, nil
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// index counts months since year zero; used for ordering and distances.
func (ym YearMonth) index() int { return ym.Year*12 + int(ym.Month) - 1 }

// Compare returns -1, 0 or +1.
func (ym YearMonth) Compare(other YearMonth) int {
	switch a, b := ym.index(), other.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }
func (ym YearMonth) After(other YearMonth) bool  { return ym.Compare(other) > 0 }

func (ym YearMonth) AddMonths(n int) YearMonth {
	idx := ym.index() + n
	return YearMonth{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

func (ym YearMonth) Next() YearMonth { return ym.AddMonths(1) }
func (ym YearMonth) Prev() YearMonth { return ym.AddMonths(-1) }

// DaysIn returns the number of days in the month.
func (ym YearMonth) DaysIn() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (ym YearMonth) First() TimePoint { return StartOfMonth(ym.Year, ym.Month) }
func (ym YearMonth) Last() TimePoint  { return EndOfMonth(ym.Year, ym.Month) }

// Period returns the whole month as an inclusive period.
func (ym YearMonth) Period() Period { return Period{Start: ym.First(), End: ym.Last()} }

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// MonthsInclusive counts calendar months touched by [from, to], ignoring the
// day of month: Jan 15 to Feb 3 is 2 months. Returns 0 when to precedes from.
func MonthsInclusive(from, to YearMonth) int {
	n := to.index() - from.index() + 1
	if n < 0 {
		return 0
	}
	return n
}

// MonthRange lists every month from..to inclusive in ascending order.
func MonthRange(from, to YearMonth) []YearMonth {
	n := MonthsInclusive(from, to)
	months := make([]YearMonth, 0, n)
	for i := 0; i < n; i++ {
		months = append(months, from.AddMonths(i))
	}
	return months
}
