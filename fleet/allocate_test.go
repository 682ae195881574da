package fleet_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/payroll"
)

// =============================================================================
// FLEET TIER
// =============================================================================

func TestAllocateCosts_FleetTierBlendedRate(t *testing.T) {
	// GIVEN: The March fixture (2300 of monthly cost over 500 km)
	f := testFleet()

	// WHEN
	rates := fleet.AllocateCosts(f, f.Trips, nil)

	// THEN: Every vehicle in March sees the same blended rate
	mar := generic.NewYearMonth(2025, time.March)
	assertDec(t, "4.6", rates.Fleet.Rate(fleet.AllocKey{Month: mar, Vehicle: 1}))
	assertDec(t, "4.6", rates.Fleet.Rate(fleet.AllocKey{Month: mar, Vehicle: 2}))
	assertDec(t, "2300", rates.Fleet.Total())
}

func TestAllocateCosts_SingleVehicleSingleDriver(t *testing.T) {
	// GIVEN: 300 fixed + 800 salary + 100 stamps over 2000 km in March
	d := fleet.DriverID(1)
	f := fleet.Fleet{
		Vehicles: []fleet.Vehicle{{ID: 1, Plate: "ABC-1001", Active: true, FixedMonthlyCost: dec("300"), MainDriverID: &d}},
		Drivers: []fleet.Driver{{ID: d, Name: "Nikos", Active: true,
			Base: payroll.Terms{Mode: payroll.PayMonthly, Salary: dec("800"), StampCost: dec("100")}}},
		Trips: []fleet.Trip{
			{ID: 1, VehicleID: 1, DriverID: &d, Date: day(2025, time.March, 3), DistanceKm: dec("500")},
			{ID: 2, VehicleID: 1, DriverID: &d, Date: day(2025, time.March, 20), DistanceKm: dec("1500")},
		},
	}

	// WHEN
	rates := fleet.AllocateCosts(f, f.Trips, nil)

	// THEN: 1200 / 2000 km, so the 500 km trip carries 300
	k := fleet.AllocKey{Month: generic.NewYearMonth(2025, time.March), Vehicle: 1}
	assertDec(t, "0.6", rates.Fleet.Rate(k))
	assert.Equal(t, "300.00", rates.Fleet.Rate(k).Mul(f.Trips[0].DistanceKm).StringFixed(2))
}

func TestAllocateCosts_ConservesMonthlyCost(t *testing.T) {
	f := testFleet()
	rates := fleet.AllocateCosts(f, f.Trips, nil)

	for name, alloc := range map[string]fleet.Allocation{"fleet": rates.Fleet, "vehicle": rates.Vehicle} {
		allocated := decimal.Zero
		for _, trip := range f.Trips {
			k := fleet.AllocKey{Month: trip.Month(), Vehicle: trip.VehicleID}
			allocated = allocated.Add(alloc.Rate(k).Mul(trip.DistanceKm))
		}
		assertDec(t, "2300", allocated, name)
	}
}

func TestAllocateCosts_InactiveVehicleFixedCostExcluded(t *testing.T) {
	f := testFleet()
	f.Vehicles[0].Active = false // V1's 600 drops out

	rates := fleet.AllocateCosts(f, f.Trips, nil)

	assertDec(t, "1700", rates.Fleet.Total())
	v1 := fleet.AllocKey{Month: generic.NewYearMonth(2025, time.March), Vehicle: 1}
	assertDec(t, "3", rates.Vehicle.Rate(v1), "only D1's 900 share over 300 km")
}

func TestAllocateCosts_VehicleFilterUsesOnlyThatVehicleFixedCost(t *testing.T) {
	f := testFleet()
	v2 := fleet.VehicleID(2)
	var trips []fleet.Trip
	for _, tr := range f.Trips {
		if tr.VehicleID == v2 {
			trips = append(trips, tr)
		}
	}

	rates := fleet.AllocateCosts(f, trips, &v2)

	// 400 (V2 fixed) + 1200 (D1) + 100 (D2) over 200 km
	k := fleet.AllocKey{Month: generic.NewYearMonth(2025, time.March), Vehicle: v2}
	assertDec(t, "8.5", rates.Fleet.Rate(k))
}

// =============================================================================
// VEHICLE TIER
// =============================================================================

func TestAllocateCosts_VehicleTierSplitsDriverCostByDistance(t *testing.T) {
	f := testFleet()

	rates := fleet.AllocateCosts(f, f.Trips, nil)

	mar := generic.NewYearMonth(2025, time.March)
	v1 := fleet.AllocKey{Month: mar, Vehicle: 1}
	v2 := fleet.AllocKey{Month: mar, Vehicle: 2}

	// D1's 1200 splits 300:100 => 900 to V1, 300 to V2
	assertDec(t, "1500", rates.Vehicle.Cost(v1))
	assertDec(t, "800", rates.Vehicle.Cost(v2))
	assertDec(t, "5", rates.Vehicle.Rate(v1))
	assertDec(t, "4", rates.Vehicle.Rate(v2))
	assert.Equal(t, []fleet.AllocKey{v1, v2}, rates.Vehicle.Keys())
}

func TestAllocateCosts_UsesCompensationOfEachMonth(t *testing.T) {
	// GIVEN: D1 gets a raise from April
	f := testFleet()
	f.Drivers[0].History = f.Drivers[0].History.Set(payroll.Snapshot{
		Month: generic.NewYearMonth(2025, time.April),
		Terms: payroll.Terms{Mode: payroll.PayMonthly, Salary: dec("2000"), StampCost: dec("200")},
	})
	d1 := fleet.DriverID(1)
	f.Trips = append(f.Trips, fleet.Trip{ID: 4, VehicleID: 1, DriverID: &d1, Date: day(2025, time.April, 2), DistanceKm: dec("100")})

	// WHEN
	rates := fleet.AllocateCosts(f, f.Trips, nil)

	// THEN: March keeps the old terms, April uses the new
	assertDec(t, "4.6", rates.Fleet.Rate(fleet.AllocKey{Month: generic.NewYearMonth(2025, time.March), Vehicle: 1}))
	assertDec(t, "33", rates.Fleet.Rate(fleet.AllocKey{Month: generic.NewYearMonth(2025, time.April), Vehicle: 1}))
}

// =============================================================================
// DEGENERATE CASES
// =============================================================================

func TestAllocate_ZeroDistanceGivesZeroRate(t *testing.T) {
	mar := generic.NewYearMonth(2025, time.March)
	trips := []fleet.Trip{{ID: 1, VehicleID: 1, Date: day(2025, time.March, 3), DistanceKm: decimal.Zero}}
	pools := []fleet.Pool{{Basis: fleet.Basis{Month: mar}, Cost: dec("1000")}}

	alloc := fleet.Allocate(trips, pools)

	k := fleet.AllocKey{Month: mar, Vehicle: 1}
	assert.True(t, alloc.Rate(k).IsZero())
	assert.True(t, alloc.Total().IsZero())
}

func TestAllocate_PoolWithoutCoveredTripsAllocatesNothing(t *testing.T) {
	apr := generic.NewYearMonth(2025, time.April)
	d9 := fleet.DriverID(9)
	trips := []fleet.Trip{{ID: 1, VehicleID: 1, Date: day(2025, time.April, 3), DistanceKm: dec("50")}}

	alloc := fleet.Allocate(trips, []fleet.Pool{{Basis: fleet.Basis{Month: apr, Driver: &d9}, Cost: dec("500")}})

	assert.True(t, alloc.Total().IsZero())
	assertDec(t, "50", alloc.Distance(fleet.AllocKey{Month: apr, Vehicle: 1}))
}

func TestAllocateCosts_DanglingReferencesAreSkipped(t *testing.T) {
	f := testFleet()
	ghost := fleet.DriverID(77)
	f.Trips = append(f.Trips, fleet.Trip{ID: 9, VehicleID: 99, DriverID: &ghost, Date: day(2025, time.March, 9), DistanceKm: dec("100")})

	require.NotPanics(t, func() { fleet.AllocateCosts(f, f.Trips, nil) })

	rates := fleet.AllocateCosts(f, f.Trips, nil)
	k := fleet.AllocKey{Month: generic.NewYearMonth(2025, time.March), Vehicle: 99}
	assert.True(t, rates.Vehicle.Cost(k).IsZero(), "no fixed cost and no known driver")
	assertDec(t, "2300", rates.Fleet.Total())
}
