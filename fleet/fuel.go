package fleet

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// FuelMatcher attributes fuel cost to a trip.
type FuelMatcher interface {
	FuelCost(t Trip) decimal.Decimal
}

// NewFuelMatcher builds the strategy selected by mode over all fuel
// expenses (not only in-scope ones: a trip's fuel may be recorded under any
// filter).
func NewFuelMatcher(mode FuelMatchMode, fuels []FuelExpense) FuelMatcher {
	if mode == FuelLinked {
		return newLinkedMatcher(fuels)
	}
	return newSameDayMatcher(fuels)
}

// =============================================================================
// SAME DAY
// =============================================================================

type vehicleDay struct {
	vehicle VehicleID
	day     string
}

func dayKey(vehicle VehicleID, day generic.TimePoint) vehicleDay {
	return vehicleDay{vehicle: vehicle, day: day.String()}
}

// sameDayMatcher sums every expense of the trip's vehicle on the trip's day.
// Several trips on one day each receive the full sum.
type sameDayMatcher struct {
	totals map[vehicleDay]decimal.Decimal
}

func newSameDayMatcher(fuels []FuelExpense) sameDayMatcher {
	m := sameDayMatcher{totals: make(map[vehicleDay]decimal.Decimal)}
	for _, f := range fuels {
		k := dayKey(f.VehicleID, f.Date)
		m.totals[k] = m.totals[k].Add(f.Total())
	}
	return m
}

func (m sameDayMatcher) FuelCost(t Trip) decimal.Decimal {
	return m.totals[dayKey(t.VehicleID, t.Date)]
}

// =============================================================================
// LINKED
// =============================================================================

// linkedMatcher sums the expenses the trip lists explicitly. Unknown ids are
// skipped.
type linkedMatcher struct {
	byID map[FuelID]decimal.Decimal
}

func newLinkedMatcher(fuels []FuelExpense) linkedMatcher {
	m := linkedMatcher{byID: make(map[FuelID]decimal.Decimal, len(fuels))}
	for _, f := range fuels {
		m.byID[f.ID] = f.Total()
	}
	return m
}

func (m linkedMatcher) FuelCost(t Trip) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[FuelID]bool, len(t.FuelIDs))
	for _, id := range t.FuelIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		total = total.Add(m.byID[id])
	}
	return total
}
