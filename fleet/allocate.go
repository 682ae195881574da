/*
allocate.go - Distance-weighted allocation of shared monthly costs

PURPOSE:
  Fixed vehicle expenses, driver salaries and payroll stamps accrue per
  month, not per trip. To judge a single trip they are spread over the
  month's trips in proportion to distance, yielding a cost-per-km rate for
  every (month, vehicle).

ONE FUNCTION, TWO TIERS:
  Allocate takes cost pools. Each pool names the trips that share it (its
  Basis: a month, optionally narrowed to one driver or one vehicle) and
  spreads its cost over them by distance. The tiers differ only in the
  pools they build:

    Fleet tier:    one pool per month, basis = every in-scope trip that month.
                   Cost = fixed costs of active vehicles + monthly cost of
                   every active driver. All vehicles get the same blended rate.

    Vehicle tier:  one pool per (month, active driver), basis = that driver's
                   trips that month; plus one pool per (month, vehicle)
                   holding the vehicle's own fixed cost, basis = that
                   vehicle's trips that month.

  Driver costs are resolved per month through the compensation history.

DEGENERATE CASES:
  A pool whose basis has zero distance allocates nothing. A key with zero
  distance has rate zero.

SEE ALSO:
  - profit.go: applies the rates to trips
  - payroll/compensation.go: month-accurate driver cost
*/
package fleet

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// KEYS AND POOLS
// =============================================================================

// AllocKey identifies a (month, vehicle) bucket.
type AllocKey struct {
	Month   generic.YearMonth
	Vehicle VehicleID
}

func keyOf(t Trip) AllocKey { return AllocKey{Month: t.Month(), Vehicle: t.VehicleID} }

// Basis selects the trips that share a pool's cost.
type Basis struct {
	Month   generic.YearMonth
	Driver  *DriverID
	Vehicle *VehicleID
}

func (b Basis) covers(t Trip) bool {
	if t.Month() != b.Month {
		return false
	}
	if b.Driver != nil && (t.DriverID == nil || *t.DriverID != *b.Driver) {
		return false
	}
	if b.Vehicle != nil && t.VehicleID != *b.Vehicle {
		return false
	}
	return true
}

// Pool is a monthly cost to spread over the trips its Basis covers.
type Pool struct {
	Basis Basis
	Cost  decimal.Decimal
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation holds the cost and distance accumulated per key.
type Allocation struct {
	cost     map[AllocKey]decimal.Decimal
	distance map[AllocKey]decimal.Decimal
}

// Cost allocated to key.
func (a Allocation) Cost(k AllocKey) decimal.Decimal { return a.cost[k] }

// Distance driven under key by in-scope trips.
func (a Allocation) Distance(k AllocKey) decimal.Decimal { return a.distance[k] }

// Rate is allocated cost per distance unit; zero when nothing was driven.
func (a Allocation) Rate(k AllocKey) decimal.Decimal {
	return generic.SafeDiv(a.cost[k], a.distance[k])
}

// Keys lists every key with in-scope distance, ordered by month then vehicle.
func (a Allocation) Keys() []AllocKey {
	keys := make([]AllocKey, 0, len(a.distance))
	for k := range a.distance {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := keys[i].Month.Compare(keys[j].Month); c != 0 {
			return c < 0
		}
		return keys[i].Vehicle < keys[j].Vehicle
	})
	return keys
}

// Total is the sum of all allocated cost.
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range a.cost {
		total = total.Add(c)
	}
	return total
}

// Allocate spreads each pool's cost over the trips its basis covers, in
// proportion to distance, and accumulates the shares per (month, vehicle).
func Allocate(trips []Trip, pools []Pool) Allocation {
	a := Allocation{
		cost:     make(map[AllocKey]decimal.Decimal),
		distance: make(map[AllocKey]decimal.Decimal),
	}

	byMonth := make(map[generic.YearMonth][]Trip)
	for _, t := range trips {
		k := keyOf(t)
		a.distance[k] = a.distance[k].Add(t.DistanceKm)
		byMonth[k.Month] = append(byMonth[k.Month], t)
	}

	for _, p := range pools {
		if p.Cost.IsZero() {
			continue
		}

		basisDistance := decimal.Zero
		perKey := make(map[AllocKey]decimal.Decimal)
		for _, t := range byMonth[p.Basis.Month] {
			if !p.Basis.covers(t) {
				continue
			}
			basisDistance = basisDistance.Add(t.DistanceKm)
			k := keyOf(t)
			perKey[k] = perKey[k].Add(t.DistanceKm)
		}
		if !basisDistance.IsPositive() {
			continue
		}

		for k, d := range perKey {
			share := p.Cost.Mul(d).Div(basisDistance)
			a.cost[k] = a.cost[k].Add(share)
		}
	}
	return a
}

// =============================================================================
// TIERS
// =============================================================================

// Rates are both allocation tiers for one set of in-scope trips.
type Rates struct {
	Fleet   Allocation
	Vehicle Allocation
}

// AllocateCosts builds both tiers' pools for the given in-scope trips.
// vehicle is the active vehicle filter, if any: the fleet tier then counts
// only that vehicle's fixed cost.
func AllocateCosts(f Fleet, trips []Trip, vehicle *VehicleID) Rates {
	ix := newIndex(f)
	months := tripMonths(trips)
	active := f.ActiveDrivers()
	return Rates{
		Fleet:   Allocate(trips, fleetPools(f, ix, active, months, vehicle)),
		Vehicle: Allocate(trips, vehiclePools(ix, active, trips, months)),
	}
}

func fleetPools(f Fleet, ix index, active []Driver, months []generic.YearMonth, vehicle *VehicleID) []Pool {
	fixed := decimal.Zero
	if vehicle != nil {
		fixed = ix.activeFixedCost(*vehicle)
	} else {
		for _, v := range f.Vehicles {
			if v.Active {
				fixed = fixed.Add(v.FixedMonthlyCost)
			}
		}
	}

	pools := make([]Pool, 0, len(months))
	for _, m := range months {
		cost := fixed
		for _, d := range active {
			cost = cost.Add(d.Compensation(m).MonthlyCost())
		}
		pools = append(pools, Pool{Basis: Basis{Month: m}, Cost: cost})
	}
	return pools
}

func vehiclePools(ix index, active []Driver, trips []Trip, months []generic.YearMonth) []Pool {
	var pools []Pool
	for _, d := range active {
		id := d.ID
		for _, m := range months {
			cost := d.Compensation(m).MonthlyCost()
			if cost.IsZero() {
				continue
			}
			pools = append(pools, Pool{Basis: Basis{Month: m, Driver: &id}, Cost: cost})
		}
	}

	seen := make(map[AllocKey]bool)
	for _, t := range trips {
		k := keyOf(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		if fixed := ix.activeFixedCost(k.Vehicle); fixed.IsPositive() {
			vid := k.Vehicle
			pools = append(pools, Pool{Basis: Basis{Month: k.Month, Vehicle: &vid}, Cost: fixed})
		}
	}
	return pools
}

// tripMonths lists the distinct months of trips in ascending order.
func tripMonths(trips []Trip) []generic.YearMonth {
	seen := make(map[generic.YearMonth]bool)
	var months []generic.YearMonth
	for _, t := range trips {
		m := t.Month()
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
