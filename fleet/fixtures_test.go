package fleet_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/payroll"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================
//
// Vehicles:
//   V1 fixed 600, default wear (0.10), primary driver D1
//   V2 fixed 400, wear 0.20, no primary driver
//   V3 inactive, fixed 999
// Drivers:
//   D1 monthly from 2025-01: salary 1000, stamps 200
//   D2 per trip (base terms only): 50 per trip, stamps 100
// Trips (March 2025):
//   T1 V1/D1 300 km, revenue 1000, 10% commission, tolls 20
//   T2 V2/D1 100 km, revenue 400
//   T3 V2/D2 100 km, revenue 500, tolls 10, driver pay 50
// Fuel:
//   F1 V1 on T1's day, 100 L x 1.5
//
// March fleet pool = 600 + 400 + 1200 + 100 = 2300 over 500 km => 4.6/km.
// March vehicle tier: V1 = (900 + 600) / 300 = 5, V2 = (300 + 100 + 400) / 200 = 4.

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func ptr[T any](v T) *T { return &v }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("expected %s, got %s %v", want, got.String(), msgAndArgs)
	}
}

func march() generic.Bounds {
	from, to := day(2025, time.March, 1), day(2025, time.March, 31)
	return generic.Bounds{From: &from, To: &to}
}

func testFleet() fleet.Fleet {
	d1, d2 := fleet.DriverID(1), fleet.DriverID(2)
	return fleet.Fleet{
		Settings: fleet.DefaultSettings(),
		Vehicles: []fleet.Vehicle{
			{ID: 1, Plate: "ABC-1001", Active: true, FixedMonthlyCost: dec("600"), MainDriverID: &d1},
			{ID: 2, Plate: "ABC-1002", Active: true, FixedMonthlyCost: dec("400"), WearRate: dec("0.20")},
			{ID: 3, Plate: "OLD-0003", Active: false, FixedMonthlyCost: dec("999")},
		},
		Drivers: []fleet.Driver{
			{
				ID: d1, Name: "Nikos", Active: true,
				History: payroll.History{{
					Month: generic.NewYearMonth(2025, time.January),
					Terms: payroll.Terms{Mode: payroll.PayMonthly, Salary: dec("1000"), StampCost: dec("200")},
				}},
			},
			{
				ID: d2, Name: "Maria", Active: true,
				Base: payroll.Terms{Mode: payroll.PayPerTrip, PerTrip: dec("50"), StampCost: dec("100")},
			},
		},
		Trips: []fleet.Trip{
			{ID: 1, VehicleID: 1, DriverID: &d1, Date: day(2025, time.March, 5), DistanceKm: dec("300"), Revenue: dec("1000"), CommissionPercent: dec("10"), Tolls: dec("20")},
			{ID: 2, VehicleID: 2, DriverID: &d1, Date: day(2025, time.March, 6), DistanceKm: dec("100"), Revenue: dec("400")},
			{ID: 3, VehicleID: 2, DriverID: &d2, Date: day(2025, time.March, 7), DistanceKm: dec("100"), Revenue: dec("500"), Tolls: dec("10"), DriverPay: dec("50")},
		},
		Fuels: []fleet.FuelExpense{
			{ID: 1, VehicleID: 1, Date: day(2025, time.March, 5), Liters: dec("100"), CostPerLiter: dec("1.5")},
		},
	}
}

func rowFor(t *testing.T, report fleet.TripReport, id fleet.TripID) fleet.TripProfit {
	t.Helper()
	for _, r := range report.Rows {
		if r.Trip.ID == id {
			return r
		}
	}
	t.Fatalf("trip %d not in report", id)
	return fleet.TripProfit{}
}
