package fleet

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// QUERY
// =============================================================================

// Query scopes a report: an inclusive, possibly open date range and an
// optional vehicle filter. Today is only consulted when an open range has
// no data to derive its bounds from.
type Query struct {
	Bounds  generic.Bounds
	Vehicle *VehicleID
	Today   generic.TimePoint
}

func (q Query) tripInScope(t Trip) bool {
	if q.Vehicle != nil && t.VehicleID != *q.Vehicle {
		return false
	}
	return q.Bounds.Includes(t.Date)
}

func (q Query) fuelInScope(f FuelExpense) bool {
	if q.Vehicle != nil && f.VehicleID != *q.Vehicle {
		return false
	}
	return q.Bounds.Includes(f.Date)
}

// InScope returns the trips and fuel expenses the query selects.
func (q Query) InScope(f Fleet) ([]Trip, []FuelExpense) {
	var trips []Trip
	for _, t := range f.Trips {
		if q.tripInScope(t) {
			trips = append(trips, t)
		}
	}
	var fuels []FuelExpense
	for _, fu := range f.Fuels {
		if q.fuelInScope(fu) {
			fuels = append(fuels, fu)
		}
	}
	return trips, fuels
}

// =============================================================================
// SINGLE TRIP
// =============================================================================

// TripInputs are the per-trip figures the profit formulas need.
type TripInputs struct {
	WearRate    decimal.Decimal // per km
	FuelCost    decimal.Decimal
	DriverPay   decimal.Decimal // direct pay, zero unless the driver is paid per trip
	FleetRate   decimal.Decimal // fleet-tier allocated cost per km
	VehicleRate decimal.Decimal // vehicle-tier allocated cost per km
}

// TripProfit breaks one trip's result down.
type TripProfit struct {
	Trip         Trip
	VehicleLabel string
	DriverLabel  string

	Commission decimal.Decimal
	Tolls      decimal.Decimal
	Wear       decimal.Decimal
	Fuel       decimal.Decimal
	DriverPay  decimal.Decimal
	Gross      decimal.Decimal

	FleetRate    decimal.Decimal
	FleetShare   decimal.Decimal
	NetFleet     decimal.Decimal
	VehicleRate  decimal.Decimal
	VehicleShare decimal.Decimal
	NetVehicle   decimal.Decimal
}

// Profit applies:
//
//	gross       = revenue - commission - tolls - wear - fuel - direct driver pay
//	net_fleet   = gross - distance * fleet rate
//	net_vehicle = gross - distance * vehicle rate
func Profit(t Trip, in TripInputs) TripProfit {
	p := TripProfit{
		Trip:        t,
		Commission:  t.Commission(),
		Tolls:       t.Tolls,
		Wear:        t.DistanceKm.Mul(in.WearRate),
		Fuel:        in.FuelCost,
		DriverPay:   in.DriverPay,
		FleetRate:   in.FleetRate,
		VehicleRate: in.VehicleRate,
	}
	p.Gross = t.Revenue.Sub(generic.Sum(p.Commission, p.Tolls, p.Wear, p.Fuel, p.DriverPay))
	p.FleetShare = t.DistanceKm.Mul(in.FleetRate)
	p.VehicleShare = t.DistanceKm.Mul(in.VehicleRate)
	p.NetFleet = p.Gross.Sub(p.FleetShare)
	p.NetVehicle = p.Gross.Sub(p.VehicleShare)
	return p
}

// =============================================================================
// TRIP REPORT
// =============================================================================

// TripReport lists in-scope trips newest first.
type TripReport struct {
	Rows            []TripProfit
	Rates           Rates
	TotalNetVehicle decimal.Decimal
	TotalNetFleet   decimal.Decimal
	TotalGross      decimal.Decimal
}

// TripProfits computes every in-scope trip against both allocation tiers.
func TripProfits(f Fleet, q Query) TripReport {
	ix := newIndex(f)
	trips, _ := q.InScope(f)
	rates := AllocateCosts(f, trips, q.Vehicle)
	fuel := NewFuelMatcher(f.Settings.FuelMatching, f.Fuels)

	report := TripReport{
		Rows:            make([]TripProfit, 0, len(trips)),
		Rates:           rates,
		TotalNetVehicle: decimal.Zero,
		TotalNetFleet:   decimal.Zero,
		TotalGross:      decimal.Zero,
	}
	for _, t := range trips {
		row := profitFor(ix, rates, fuel, t)
		report.Rows = append(report.Rows, row)
		report.TotalGross = report.TotalGross.Add(row.Gross)
		report.TotalNetFleet = report.TotalNetFleet.Add(row.NetFleet)
		report.TotalNetVehicle = report.TotalNetVehicle.Add(row.NetVehicle)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i].Trip, report.Rows[j].Trip
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
	return report
}

func profitFor(ix index, rates Rates, fuel FuelMatcher, t Trip) TripProfit {
	k := keyOf(t)
	row := Profit(t, TripInputs{
		WearRate:    ix.wearRate(t.VehicleID),
		FuelCost:    fuel.FuelCost(t),
		DriverPay:   ix.directDriverPay(t),
		FleetRate:   rates.Fleet.Rate(k),
		VehicleRate: rates.Vehicle.Rate(k),
	})
	row.VehicleLabel = ix.vehicleLabel(t.VehicleID)
	row.DriverLabel = ix.driverLabel(t.DriverID)
	return row
}

// SuggestedDriverPay is the pay to prefill on a new trip: the driver's
// per-trip rate when paid per trip in that month, else zero.
func (f Fleet) SuggestedDriverPay(driver *DriverID, day generic.TimePoint) decimal.Decimal {
	if driver == nil {
		return decimal.Zero
	}
	for _, d := range f.Drivers {
		if d.ID != *driver {
			continue
		}
		snap := d.Compensation(day.YearMonth())
		if snap.IsPerTrip() {
			return snap.PerTrip
		}
		return decimal.Zero
	}
	return decimal.Zero
}
