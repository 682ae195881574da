/*
types.go - Fleet records

PURPOSE:
  The vehicles, drivers, trips and fuel expenses the profitability
  calculations run over, plus the fleet-wide settings.

KEY CONCEPTS:
  Vehicle:      fixed monthly cost, optional wear-rate override, optional primary driver
  Driver:       base pay terms + month-keyed compensation history
  Trip:         one revenue-generating run on one day by one vehicle
  FuelExpense:  liters x cost per liter on one day for one vehicle

  Odometer readings are informational. Trips never update them.

SEE ALSO:
  - dataset.go: the locked, editable collection of these records
  - payroll/compensation.go: history resolution
*/
package fleet

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/payroll"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	VehicleID int
	DriverID  int
	TripID    int
	FuelID    int
)

func (id VehicleID) String() string { return strconv.Itoa(int(id)) }
func (id DriverID) String() string  { return strconv.Itoa(int(id)) }
func (id TripID) String() string    { return strconv.Itoa(int(id)) }
func (id FuelID) String() string    { return strconv.Itoa(int(id)) }

// =============================================================================
// VEHICLE
// =============================================================================

type Vehicle struct {
	ID               VehicleID       `json:"tid"`
	Plate            string          `json:"plate"`
	OdometerKm       int             `json:"odometer_km"`
	Active           bool            `json:"active"`
	MainDriverID     *DriverID       `json:"main_driver_id"`
	FixedMonthlyCost decimal.Decimal `json:"fixed_monthly_expenses"`
	WearRate         decimal.Decimal `json:"wear_rate_per_km"` // 0 = fleet default
	Notes            string          `json:"notes"`
}

func (v Vehicle) Validate() error {
	if v.FixedMonthlyCost.IsNegative() {
		return &generic.FieldError{Field: "fixed_monthly_expenses", Value: v.FixedMonthlyCost.String(), Err: generic.ErrMalformedInput}
	}
	if v.WearRate.IsNegative() {
		return &generic.FieldError{Field: "wear_rate_per_km", Value: v.WearRate.String(), Err: generic.ErrMalformedInput}
	}
	return nil
}

// Label is the plate, or the id when the plate is blank.
func (v Vehicle) Label() string {
	if v.Plate != "" {
		return v.Plate
	}
	return "#" + v.ID.String()
}

// =============================================================================
// DRIVER
// =============================================================================

// Driver carries no "current pay" fields: current terms are always resolved
// from History, with Base used only when History is empty.
type Driver struct {
	ID      DriverID        `json:"did"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Active  bool            `json:"active"`
	Notes   string          `json:"notes"`
	Base    payroll.Terms   `json:"base"`
	History payroll.History `json:"pay_history"`
}

// Compensation returns the terms in effect for month.
func (d Driver) Compensation(month generic.YearMonth) payroll.Snapshot {
	return d.History.Resolve(month, d.Base)
}

// CurrentCompensation resolves for the month containing today.
func (d Driver) CurrentCompensation(today generic.TimePoint) payroll.Snapshot {
	return d.Compensation(today.YearMonth())
}

func (d Driver) Validate() error {
	if d.Name == "" {
		return &generic.FieldError{Field: "name", Value: "", Err: generic.ErrMalformedInput}
	}
	if err := (payroll.Snapshot{Month: generic.SentinelMonth, Terms: d.Base}).Validate(); err != nil {
		return err
	}
	for _, s := range d.History {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d Driver) clone() Driver {
	d.History = d.History.Clone()
	return d
}

// =============================================================================
// TRIP
// =============================================================================

type Trip struct {
	ID                TripID            `json:"trip_id"`
	VehicleID         VehicleID         `json:"truck_id"`
	Date              generic.TimePoint `json:"trip_date"`
	DriverID          *DriverID         `json:"driver_id"`
	Origin            string            `json:"origin"`
	Destination       string            `json:"destination"`
	DistanceKm        decimal.Decimal   `json:"trip_km"`
	Revenue           decimal.Decimal   `json:"revenue"`
	CommissionPercent decimal.Decimal   `json:"commission_percent"`
	Tolls             decimal.Decimal   `json:"toll_amount"`
	DriverPay         decimal.Decimal   `json:"driver_pay"`
	FuelIDs           []FuelID          `json:"fuel_ids,omitempty"` // used by the linked fuel strategy
	Notes             string            `json:"notes"`
}

// Commission is revenue x percent / 100.
func (t Trip) Commission() decimal.Decimal {
	return generic.PercentOf(t.Revenue, t.CommissionPercent)
}

func (t Trip) Month() generic.YearMonth { return t.Date.YearMonth() }

func (t Trip) Validate() error {
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"trip_km", t.DistanceKm},
		{"revenue", t.Revenue},
		{"toll_amount", t.Tolls},
		{"driver_pay", t.DriverPay},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return &generic.FieldError{Field: c.field, Value: c.value.String(), Err: generic.ErrMalformedInput}
		}
	}
	if t.CommissionPercent.IsNegative() || t.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return &generic.FieldError{Field: "commission_percent", Value: t.CommissionPercent.String(), Err: generic.ErrMalformedInput}
	}
	if t.Date.IsZero() {
		return &generic.FieldError{Field: "trip_date", Value: "", Err: generic.ErrMalformedInput}
	}
	return nil
}

func (t Trip) clone() Trip {
	if t.DriverID != nil {
		id := *t.DriverID
		t.DriverID = &id
	}
	t.FuelIDs = append([]FuelID(nil), t.FuelIDs...)
	return t
}

func (t Trip) String() string {
	return fmt.Sprintf("trip %d (%s, vehicle %d)", t.ID, t.Date, t.VehicleID)
}

// =============================================================================
// FUEL EXPENSE
// =============================================================================

type FuelExpense struct {
	ID           FuelID            `json:"fuel_id"`
	VehicleID    VehicleID         `json:"truck_id"`
	Date         generic.TimePoint `json:"fuel_date"`
	DriverID     *DriverID         `json:"driver_id"`
	Liters       decimal.Decimal   `json:"liters"`
	CostPerLiter decimal.Decimal   `json:"cost_per_liter"`
	OdometerKm   int               `json:"odometer_km"`
	Station      string            `json:"station"`
	Receipt      string            `json:"receipt"`
	Notes        string            `json:"notes"`
}

// Total is liters x cost per liter.
func (f FuelExpense) Total() decimal.Decimal {
	return f.Liters.Mul(f.CostPerLiter)
}

func (f FuelExpense) Validate() error {
	if f.Liters.IsNegative() {
		return &generic.FieldError{Field: "liters", Value: f.Liters.String(), Err: generic.ErrMalformedInput}
	}
	if f.CostPerLiter.IsNegative() {
		return &generic.FieldError{Field: "cost_per_liter", Value: f.CostPerLiter.String(), Err: generic.ErrMalformedInput}
	}
	if f.Date.IsZero() {
		return &generic.FieldError{Field: "fuel_date", Value: "", Err: generic.ErrMalformedInput}
	}
	return nil
}

func (f FuelExpense) clone() FuelExpense {
	if f.DriverID != nil {
		id := *f.DriverID
		f.DriverID = &id
	}
	return f
}

// =============================================================================
// SETTINGS
// =============================================================================

// FuelMatchMode selects how fuel expenses are attributed to trips.
type FuelMatchMode string

const (
	// FuelSameDay charges a trip with every fuel expense of the same vehicle
	// on the same day. Two trips on one day both see the full amount.
	FuelSameDay FuelMatchMode = "same_day"
	// FuelLinked charges a trip with the fuel expenses listed in Trip.FuelIDs.
	FuelLinked FuelMatchMode = "linked"
)

func ParseFuelMatchMode(s string) (FuelMatchMode, error) {
	switch FuelMatchMode(s) {
	case "", FuelSameDay:
		return FuelSameDay, nil
	case FuelLinked:
		return FuelLinked, nil
	default:
		return "", &generic.FieldError{Field: "fuel_matching", Value: s, Err: generic.ErrMalformedInput}
	}
}

// Settings are the fleet-wide defaults.
type Settings struct {
	DefaultWearRate   decimal.Decimal `json:"wear_rate_per_km"`
	OtherExpensesRate decimal.Decimal `json:"other_expenses_rate"`
	FuelMatching      FuelMatchMode   `json:"fuel_matching"`
}

// DefaultSettings: 0.10 per km wear, 5% of revenue for other expenses,
// same-day fuel matching.
func DefaultSettings() Settings {
	return Settings{
		DefaultWearRate:   decimal.RequireFromString("0.10"),
		OtherExpensesRate: decimal.RequireFromString("0.05"),
		FuelMatching:      FuelSameDay,
	}
}

func (s Settings) Validate() error {
	if s.DefaultWearRate.IsNegative() {
		return &generic.FieldError{Field: "wear_rate_per_km", Value: s.DefaultWearRate.String(), Err: generic.ErrMalformedInput}
	}
	if s.OtherExpensesRate.IsNegative() {
		return &generic.FieldError{Field: "other_expenses_rate", Value: s.OtherExpensesRate.String(), Err: generic.ErrMalformedInput}
	}
	_, err := ParseFuelMatchMode(string(s.FuelMatching))
	return err
}

// =============================================================================
// FLEET - The full dataset a calculation reads
// =============================================================================

// Fleet is a plain value. Calculations take it by value and never modify it.
type Fleet struct {
	Settings Settings      `json:"settings"`
	Vehicles []Vehicle     `json:"trucks"`
	Drivers  []Driver      `json:"drivers"`
	Trips    []Trip        `json:"trips"`
	Fuels    []FuelExpense `json:"fuels"`
}

// Clone returns a deep copy.
func (f Fleet) Clone() Fleet {
	out := Fleet{Settings: f.Settings}
	out.Vehicles = make([]Vehicle, len(f.Vehicles))
	for i, v := range f.Vehicles {
		if v.MainDriverID != nil {
			id := *v.MainDriverID
			v.MainDriverID = &id
		}
		out.Vehicles[i] = v
	}
	out.Drivers = make([]Driver, len(f.Drivers))
	for i, d := range f.Drivers {
		out.Drivers[i] = d.clone()
	}
	out.Trips = make([]Trip, len(f.Trips))
	for i, t := range f.Trips {
		out.Trips[i] = t.clone()
	}
	out.Fuels = make([]FuelExpense, len(f.Fuels))
	for i, fu := range f.Fuels {
		out.Fuels[i] = fu.clone()
	}
	return out
}

// IsEmpty reports whether the fleet holds no records at all.
func (f Fleet) IsEmpty() bool {
	return len(f.Vehicles) == 0 && len(f.Drivers) == 0 && len(f.Trips) == 0 && len(f.Fuels) == 0
}

// =============================================================================
// LOOKUP INDEX
// =============================================================================

// index resolves ids for one calculation pass. Missing ids yield ok=false;
// callers skip the dependent component rather than fail.
type index struct {
	settings Settings
	vehicles map[VehicleID]Vehicle
	drivers  map[DriverID]Driver
}

func newIndex(f Fleet) index {
	ix := index{
		settings: f.Settings,
		vehicles: make(map[VehicleID]Vehicle, len(f.Vehicles)),
		drivers:  make(map[DriverID]Driver, len(f.Drivers)),
	}
	for _, v := range f.Vehicles {
		ix.vehicles[v.ID] = v
	}
	for _, d := range f.Drivers {
		ix.drivers[d.ID] = d
	}
	return ix
}

// wearRate is the vehicle override when positive, else the fleet default.
func (ix index) wearRate(id VehicleID) decimal.Decimal {
	if v, ok := ix.vehicles[id]; ok && v.WearRate.IsPositive() {
		return v.WearRate
	}
	return ix.settings.DefaultWearRate
}

// activeFixedCost is the vehicle's fixed monthly cost, zero when inactive or missing.
func (ix index) activeFixedCost(id VehicleID) decimal.Decimal {
	if v, ok := ix.vehicles[id]; ok && v.Active {
		return v.FixedMonthlyCost
	}
	return decimal.Zero
}

func (ix index) vehicleLabel(id VehicleID) string {
	if v, ok := ix.vehicles[id]; ok {
		return v.Label()
	}
	return "#" + id.String()
}

func (ix index) driverLabel(id *DriverID) string {
	if id == nil {
		return ""
	}
	if d, ok := ix.drivers[*id]; ok {
		return d.Name
	}
	return "#" + id.String()
}

// directDriverPay is the trip's stored pay when its driver is paid per trip
// in the trip's month, else zero. The trip's month is used instead of today's
// so a driver switching to a salary later does not lose past per-trip pay,
// and a month is never charged both a salary share and direct pay.
func (ix index) directDriverPay(t Trip) decimal.Decimal {
	if t.DriverID == nil {
		return decimal.Zero
	}
	d, ok := ix.drivers[*t.DriverID]
	if !ok || !d.Compensation(t.Month()).IsPerTrip() {
		return decimal.Zero
	}
	return t.DriverPay
}

// ActiveDrivers in registry order.
func (f Fleet) ActiveDrivers() []Driver {
	var out []Driver
	for _, d := range f.Drivers {
		if d.Active {
			out = append(out, d)
		}
	}
	return out
}
