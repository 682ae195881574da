package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar-day abstraction (all engine dates are whole days)
// =============================================================================

// TimePoint is a calendar day in UTC. Time of day is always midnight.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// AddMonths shifts by whole calendar months. When the source day does not
// exist in the target month the result is clamped to that month's last day:
// Jan 31 + 1 month = Feb 28 (Feb 29 in leap years).
func (tp TimePoint) AddMonths(n int) TimePoint {
	target := tp.YearMonth().AddMonths(n)
	day := tp.Day()
	if last := target.DaysIn(); day > last {
		day = last
	}
	return NewTimePoint(target.Year, target.Month, day)
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// YearMonth returns the calendar month containing the day.
func (tp TimePoint) YearMonth() YearMonth {
	return YearMonth{Year: tp.Year(), Month: tp.Month()}
}

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// DisplayString renders the day the way operators type it (02/01/2006).
func (tp TimePoint) DisplayString() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format("02/01/2006")
}

// =============================================================================
// TEXT ENCODING - ISO dates on the wire and in storage
// =============================================================================

func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DateLayout is the canonical storage layout for a TimePoint.
const DateLayout = "2006-01-02"

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func StartOfYear(year int) TimePoint                    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, YearMonth{Year: year, Month: month}.DaysIn())
}

// MinTime returns the earlier of two days.
func MinTime(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxTime returns the later of two days.
func MaxTime(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}
