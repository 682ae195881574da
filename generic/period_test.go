package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/generic"
)

func TestPeriod_MonthCountIsWholeMonths(t *testing.T) {
	// GIVEN: A range from Jan 15 to Feb 3
	p, err := generic.NewPeriod(
		generic.NewTimePoint(2025, time.January, 15),
		generic.NewTimePoint(2025, time.February, 3),
	)
	require.NoError(t, err)

	// THEN: It touches two calendar months and both count in full
	assert.Equal(t, 2, p.MonthCount())
	assert.Equal(t, []generic.YearMonth{
		generic.NewYearMonth(2025, time.January),
		generic.NewYearMonth(2025, time.February),
	}, p.Months())
}

func TestPeriod_AcrossYearBoundary(t *testing.T) {
	p := generic.Period{
		Start: generic.NewTimePoint(2024, time.November, 30),
		End:   generic.NewTimePoint(2025, time.February, 1),
	}
	assert.Equal(t, 4, p.MonthCount())
	assert.True(t, p.Contains(generic.NewTimePoint(2025, time.February, 1)))
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.February, 2)))
}

func TestNewPeriod_RejectsReversedBounds(t *testing.T) {
	_, err := generic.NewPeriod(
		generic.NewTimePoint(2025, time.March, 1),
		generic.NewTimePoint(2025, time.February, 1),
	)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.True(t, generic.IsClientError(err))
}

func TestMonthPeriod(t *testing.T) {
	year := generic.MonthPeriod(2024, 0)
	assert.Equal(t, "2024-01-01", year.Start.String())
	assert.Equal(t, "2024-12-31", year.End.String())

	feb := generic.MonthPeriod(2024, time.February)
	assert.Equal(t, "2024-02-29", feb.End.String())
}

// =============================================================================
// OPEN BOUNDS RESOLUTION
// =============================================================================

func TestBounds_Resolve(t *testing.T) {
	today := generic.NewTimePoint(2025, time.June, 17)
	d1 := generic.NewTimePoint(2025, time.March, 9)
	d2 := generic.NewTimePoint(2025, time.January, 20)

	t.Run("explicit bounds win", func(t *testing.T) {
		from, to := generic.NewTimePoint(2025, time.January, 1), generic.NewTimePoint(2025, time.January, 31)
		p := generic.Bounds{From: &from, To: &to}.Resolve([]generic.TimePoint{d1}, today)
		assert.Equal(t, from, p.Start)
		assert.Equal(t, to, p.End)
	})

	t.Run("derived from observed dates", func(t *testing.T) {
		p := generic.Bounds{}.Resolve([]generic.TimePoint{d1, d2}, today)
		assert.Equal(t, d2, p.Start)
		assert.Equal(t, d1, p.End)
		assert.Equal(t, 3, p.MonthCount())
	})

	t.Run("no data falls back to current month", func(t *testing.T) {
		p := generic.Bounds{}.Resolve(nil, today)
		assert.Equal(t, "2025-06-01", p.Start.String())
		assert.Equal(t, 1, p.MonthCount())
	})
}
