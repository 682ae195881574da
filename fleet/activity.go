package fleet

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// DriverActivity is a driver's trip log over a period.
type DriverActivity struct {
	Driver   Driver
	Period   generic.Period
	Trips    []Trip
	Distance decimal.Decimal
	Salary   decimal.Decimal // monthly salary summed over the period's months

	// SalaryPerKm is nil when either the distance or the salary is zero.
	SalaryPerKm *decimal.Decimal
}

// ActivityFor lists the driver's trips within bounds (newest first) and
// relates the salary paid over the period to the distance driven. Stamps are
// not part of the ratio.
func ActivityFor(f Fleet, id DriverID, bounds generic.Bounds, today generic.TimePoint) (DriverActivity, error) {
	ix := newIndex(f)
	d, ok := ix.drivers[id]
	if !ok {
		return DriverActivity{}, &generic.NotFoundError{Kind: "driver", ID: id.String()}
	}

	act := DriverActivity{Driver: d.clone(), Distance: decimal.Zero, Salary: decimal.Zero}
	var observed []generic.TimePoint
	for _, t := range f.Trips {
		if t.DriverID == nil || *t.DriverID != id || !bounds.Includes(t.Date) {
			continue
		}
		act.Trips = append(act.Trips, t.clone())
		act.Distance = act.Distance.Add(t.DistanceKm)
		observed = append(observed, t.Date)
	}
	sort.SliceStable(act.Trips, func(i, j int) bool { return act.Trips[i].Date.After(act.Trips[j].Date) })

	act.Period = bounds.Resolve(observed, today)
	for _, m := range act.Period.Months() {
		act.Salary = act.Salary.Add(d.Compensation(m).MonthlySalary())
	}

	if act.Distance.IsPositive() && act.Salary.IsPositive() {
		perKm := act.Salary.Div(act.Distance)
		act.SalaryPerKm = &perKm
	}
	return act, nil
}
