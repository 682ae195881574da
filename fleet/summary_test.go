package fleet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/payroll"
)

func TestSummarize_March(t *testing.T) {
	// GIVEN: The March fixture with no vehicle filter
	f := testFleet()

	// WHEN
	s := fleet.Summarize(f, fleet.Query{Bounds: march()})

	// THEN
	assert.Equal(t, 1, s.Months)
	assert.Equal(t, 3, s.TripCount)
	assertDec(t, "500", s.Distance)
	assertDec(t, "1900", s.Revenue)
	assertDec(t, "100", s.Commission)
	assertDec(t, "30", s.Tolls)
	assertDec(t, "70", s.Wear)
	assertDec(t, "150", s.Fuel)
	assertDec(t, "100", s.Liters)
	assertDec(t, "95", s.OtherExpenses, "5% of revenue")
	assertDec(t, "1000", s.Fixed, "inactive V3 excluded")
	assertDec(t, "300", s.Stamps)
	assertDec(t, "1000", s.Salaries, "per-trip driver has no salary")
	assertDec(t, "50", s.PerTripPay)
	assertDec(t, "2795", s.TotalCost)
	assertDec(t, "-895", s.Net)
}

func TestSummarize_Idempotent(t *testing.T) {
	f := testFleet()
	q := fleet.Query{Bounds: march()}

	first := fleet.Summarize(f, q)
	second := fleet.Summarize(f, q)

	assert.Equal(t, first.Period, second.Period)
	assert.Equal(t, first.TripCount, second.TripCount)
	assert.True(t, first.Revenue.Equal(second.Revenue))
	assert.True(t, first.TotalCost.Equal(second.TotalCost))
	assert.True(t, first.Net.Equal(second.Net))
	assertDec(t, "-895", second.Net)
}

func TestSummarize_VehicleFilterChargesPrimaryDriverOnly(t *testing.T) {
	f := testFleet()
	v1 := fleet.VehicleID(1)

	s := fleet.Summarize(f, fleet.Query{Bounds: march(), Vehicle: &v1})

	assert.Equal(t, 1, s.TripCount)
	assertDec(t, "600", s.Fixed)
	assertDec(t, "200", s.Stamps)
	assertDec(t, "1000", s.Salaries)
	assertDec(t, "2150", s.TotalCost)
	assertDec(t, "-1150", s.Net)
}

func TestSummarize_VehicleWithoutPrimaryDriver(t *testing.T) {
	f := testFleet()
	v2 := fleet.VehicleID(2)

	s := fleet.Summarize(f, fleet.Query{Bounds: march(), Vehicle: &v2})

	assert.True(t, s.Stamps.IsZero())
	assert.True(t, s.Salaries.IsZero())
	assert.True(t, s.Fuel.IsZero(), "fuel on V1 is out of scope")
	assertDec(t, "400", s.Fixed)
	assertDec(t, "50", s.PerTripPay)
	assertDec(t, "355", s.Net)
}

func TestSummarize_InactiveVehicleFilterHasNoFixedCost(t *testing.T) {
	f := testFleet()
	v3 := fleet.VehicleID(3)

	s := fleet.Summarize(f, fleet.Query{Bounds: march(), Vehicle: &v3})

	assert.True(t, s.Fixed.IsZero())
	assert.Equal(t, 0, s.TripCount)
}

func TestSummarize_WholeMonthProration(t *testing.T) {
	// GIVEN: A range touching two months with no activity at all
	f := testFleet()
	from, to := day(2025, time.January, 15), day(2025, time.February, 3)

	// WHEN
	s := fleet.Summarize(f, fleet.Query{Bounds: generic.Bounds{From: &from, To: &to}})

	// THEN: Both months are charged in full
	assert.Equal(t, 2, s.Months)
	assertDec(t, "2000", s.Fixed)
	assertDec(t, "600", s.Stamps)
	assertDec(t, "2000", s.Salaries)
	assertDec(t, "-4600", s.Net)
}

func TestSummarize_SalaryResolvedPerMonth(t *testing.T) {
	// GIVEN: D1 is raised from March
	f := testFleet()
	f.Drivers[0].History = f.Drivers[0].History.Set(payroll.Snapshot{
		Month: generic.NewYearMonth(2025, time.March),
		Terms: payroll.Terms{Mode: payroll.PayMonthly, Salary: dec("1500"), StampCost: dec("200")},
	})
	from, to := day(2025, time.February, 1), day(2025, time.March, 31)

	// WHEN
	s := fleet.Summarize(f, fleet.Query{Bounds: generic.Bounds{From: &from, To: &to}})

	// THEN: February at 1000, March at 1500
	assertDec(t, "2500", s.Salaries)
}

func TestSummarize_OpenRangeUsesObservedDates(t *testing.T) {
	f := testFleet()

	s := fleet.Summarize(f, fleet.Query{})

	assert.Equal(t, "2025-03-05", s.Period.Start.String())
	assert.Equal(t, "2025-03-07", s.Period.End.String())
	assert.Equal(t, 1, s.Months)
}

func TestSummarize_EmptyOpenRangeFallsBackToToday(t *testing.T) {
	f := testFleet()
	f.Trips, f.Fuels = nil, nil

	s := fleet.Summarize(f, fleet.Query{Today: day(2026, time.June, 18)})

	assert.Equal(t, "2026-06-01", s.Period.Start.String())
	assert.Equal(t, 1, s.Months)
	assertDec(t, "1000", s.Fixed)
	assert.True(t, s.Revenue.IsZero())
}
