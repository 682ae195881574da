package fleet

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// PERIOD SUMMARY
// =============================================================================

// Summary totals a period. Fixed vehicle costs are prorated by whole
// months: a range touching two calendar months pays two months' fixed cost.
type Summary struct {
	Period    generic.Period
	Months    int
	TripCount int

	Distance decimal.Decimal
	Liters   decimal.Decimal
	Revenue  decimal.Decimal

	Fuel          decimal.Decimal
	OtherExpenses decimal.Decimal
	Commission    decimal.Decimal
	Tolls         decimal.Decimal
	Wear          decimal.Decimal
	Fixed         decimal.Decimal
	Stamps        decimal.Decimal
	Salaries      decimal.Decimal
	PerTripPay    decimal.Decimal

	TotalCost decimal.Decimal
	Net       decimal.Decimal
}

// Summarize aggregates the query's scope. It recomputes trip-level figures
// on its own; it does not reuse allocation rates.
func Summarize(f Fleet, q Query) Summary {
	ix := newIndex(f)
	trips, fuels := q.InScope(f)

	observed := make([]generic.TimePoint, 0, len(trips)+len(fuels))
	for _, t := range trips {
		observed = append(observed, t.Date)
	}
	for _, fu := range fuels {
		observed = append(observed, fu.Date)
	}
	period := q.Bounds.Resolve(observed, q.Today)

	s := Summary{
		Period:    period,
		Months:    period.MonthCount(),
		TripCount: len(trips),
	}

	for _, t := range trips {
		s.Distance = s.Distance.Add(t.DistanceKm)
		s.Revenue = s.Revenue.Add(t.Revenue)
		s.Commission = s.Commission.Add(t.Commission())
		s.Tolls = s.Tolls.Add(t.Tolls)
		s.Wear = s.Wear.Add(t.DistanceKm.Mul(ix.wearRate(t.VehicleID)))
		s.PerTripPay = s.PerTripPay.Add(ix.directDriverPay(t))
	}
	for _, fu := range fuels {
		s.Liters = s.Liters.Add(fu.Liters)
		s.Fuel = s.Fuel.Add(fu.Total())
	}
	s.OtherExpenses = s.Revenue.Mul(f.Settings.OtherExpensesRate)

	months := decimal.NewFromInt(int64(s.Months))
	s.Fixed = monthlyFixed(f, ix, q.Vehicle).Mul(months)

	drivers := payrollDrivers(f, ix, q.Vehicle)
	for _, m := range period.Months() {
		for _, d := range drivers {
			snap := d.Compensation(m)
			s.Stamps = s.Stamps.Add(snap.StampCost)
			s.Salaries = s.Salaries.Add(snap.MonthlySalary())
		}
	}

	s.TotalCost = generic.Sum(s.Fuel, s.Commission, s.Tolls, s.Wear, s.Fixed,
		s.OtherExpenses, s.Stamps, s.Salaries, s.PerTripPay)
	s.Net = s.Revenue.Sub(s.TotalCost)
	return s
}

// monthlyFixed is the selected vehicle's fixed cost (zero if inactive or
// missing), or the sum over active vehicles without a filter.
func monthlyFixed(f Fleet, ix index, vehicle *VehicleID) decimal.Decimal {
	if vehicle != nil {
		return ix.activeFixedCost(*vehicle)
	}
	total := decimal.Zero
	for _, v := range f.Vehicles {
		if v.Active {
			total = total.Add(v.FixedMonthlyCost)
		}
	}
	return total
}

// payrollDrivers are the drivers whose stamps and salary the period bears:
// with a vehicle filter only that vehicle's primary driver (if present and
// active), otherwise every active driver.
func payrollDrivers(f Fleet, ix index, vehicle *VehicleID) []Driver {
	if vehicle == nil {
		return f.ActiveDrivers()
	}
	v, ok := ix.vehicles[*vehicle]
	if !ok || v.MainDriverID == nil {
		return nil
	}
	d, ok := ix.drivers[*v.MainDriverID]
	if !ok || !d.Active {
		return nil
	}
	return []Driver{d}
}
