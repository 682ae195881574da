package fleet

import (
	"sync"

	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/payroll"
)

// =============================================================================
// DATASET - The mutable fleet session
// =============================================================================

// Dataset owns the editable fleet records. Writers take the write lock;
// Snapshot takes the read lock and returns a deep copy so a calculation pass
// never observes a half-applied edit.
//
// Records arriving with a zero id get the next free id of their kind.
type Dataset struct {
	mu   sync.RWMutex
	data Fleet
	next struct {
		vehicle VehicleID
		driver  DriverID
		trip    TripID
		fuel    FuelID
	}
}

// NewDataset takes ownership of a copy of f.
func NewDataset(f Fleet) *Dataset {
	ds := &Dataset{}
	ds.replace(f)
	return ds
}

func (ds *Dataset) replace(f Fleet) {
	ds.data = f.Clone()
	ds.next.vehicle, ds.next.driver, ds.next.trip, ds.next.fuel = 1, 1, 1, 1
	for _, v := range ds.data.Vehicles {
		ds.next.vehicle = max(ds.next.vehicle, v.ID+1)
	}
	for _, d := range ds.data.Drivers {
		ds.next.driver = max(ds.next.driver, d.ID+1)
	}
	for _, t := range ds.data.Trips {
		ds.next.trip = max(ds.next.trip, t.ID+1)
	}
	for _, fu := range ds.data.Fuels {
		ds.next.fuel = max(ds.next.fuel, fu.ID+1)
	}
}

// Replace swaps in a whole dataset (import, rollback).
func (ds *Dataset) Replace(f Fleet) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.replace(f)
}

// Snapshot returns a deep copy of the current records.
func (ds *Dataset) Snapshot() Fleet {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.data.Clone()
}

func (ds *Dataset) Settings() Settings {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.data.Settings
}

func (ds *Dataset) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data.Settings = s
	return nil
}

// =============================================================================
// LOOKUPS (caller holds a lock)
// =============================================================================

func (ds *Dataset) vehicleIndex(id VehicleID) int {
	for i, v := range ds.data.Vehicles {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func (ds *Dataset) driverIndex(id DriverID) int {
	for i, d := range ds.data.Drivers {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (ds *Dataset) tripIndex(id TripID) int {
	for i, t := range ds.data.Trips {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (ds *Dataset) fuelIndex(id FuelID) int {
	for i, f := range ds.data.Fuels {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// checkRefs verifies a record's vehicle and optional driver exist.
func (ds *Dataset) checkRefs(vehicle VehicleID, driver *DriverID) error {
	if ds.vehicleIndex(vehicle) < 0 {
		return &generic.NotFoundError{Kind: "vehicle", ID: vehicle.String()}
	}
	if driver != nil && ds.driverIndex(*driver) < 0 {
		return &generic.NotFoundError{Kind: "driver", ID: driver.String()}
	}
	return nil
}

// =============================================================================
// VEHICLES
// =============================================================================

func (ds *Dataset) Vehicle(id VehicleID) (Vehicle, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	i := ds.vehicleIndex(id)
	if i < 0 {
		return Vehicle{}, &generic.NotFoundError{Kind: "vehicle", ID: id.String()}
	}
	return ds.data.Vehicles[i], nil
}

func (ds *Dataset) AddVehicle(v Vehicle) (Vehicle, error) {
	if err := v.Validate(); err != nil {
		return Vehicle{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if v.ID == 0 {
		v.ID = ds.next.vehicle
	} else if ds.vehicleIndex(v.ID) >= 0 {
		return Vehicle{}, &generic.FieldError{Field: "tid", Value: v.ID.String(), Err: generic.ErrMalformedInput}
	}
	ds.data.Vehicles = append(ds.data.Vehicles, v)
	ds.next.vehicle = max(ds.next.vehicle, v.ID+1)
	return v, nil
}

func (ds *Dataset) UpdateVehicle(v Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.vehicleIndex(v.ID)
	if i < 0 {
		return &generic.NotFoundError{Kind: "vehicle", ID: v.ID.String()}
	}
	ds.data.Vehicles[i] = v
	return nil
}

// DeleteVehicle refuses while trips or fuel expenses reference the vehicle.
func (ds *Dataset) DeleteVehicle(id VehicleID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.vehicleIndex(id)
	if i < 0 {
		return &generic.NotFoundError{Kind: "vehicle", ID: id.String()}
	}

	ref := &generic.ReferenceError{Kind: "vehicle", ID: id.String()}
	for _, t := range ds.data.Trips {
		if t.VehicleID == id {
			ref.Trips++
		}
	}
	for _, f := range ds.data.Fuels {
		if f.VehicleID == id {
			ref.Fuels++
		}
	}
	if ref.Trips > 0 || ref.Fuels > 0 {
		return ref
	}

	ds.data.Vehicles = append(ds.data.Vehicles[:i], ds.data.Vehicles[i+1:]...)
	return nil
}

// =============================================================================
// DRIVERS
// =============================================================================

func (ds *Dataset) Driver(id DriverID) (Driver, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	i := ds.driverIndex(id)
	if i < 0 {
		return Driver{}, &generic.NotFoundError{Kind: "driver", ID: id.String()}
	}
	return ds.data.Drivers[i].clone(), nil
}

func (ds *Dataset) AddDriver(d Driver) (Driver, error) {
	if err := d.Validate(); err != nil {
		return Driver{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if d.ID == 0 {
		d.ID = ds.next.driver
	} else if ds.driverIndex(d.ID) >= 0 {
		return Driver{}, &generic.FieldError{Field: "did", Value: d.ID.String(), Err: generic.ErrMalformedInput}
	}
	d = d.clone()
	ds.data.Drivers = append(ds.data.Drivers, d)
	ds.next.driver = max(ds.next.driver, d.ID+1)
	return d.clone(), nil
}

// UpdateDriver replaces the driver's details. A nil History keeps the
// recorded one.
func (ds *Dataset) UpdateDriver(d Driver) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.driverIndex(d.ID)
	if i < 0 {
		return &generic.NotFoundError{Kind: "driver", ID: d.ID.String()}
	}
	if d.History == nil {
		d.History = ds.data.Drivers[i].History
	}
	ds.data.Drivers[i] = d.clone()
	return nil
}

// DeleteDriver refuses while trips or fuel expenses reference the driver.
func (ds *Dataset) DeleteDriver(id DriverID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.driverIndex(id)
	if i < 0 {
		return &generic.NotFoundError{Kind: "driver", ID: id.String()}
	}

	ref := &generic.ReferenceError{Kind: "driver", ID: id.String()}
	for _, t := range ds.data.Trips {
		if t.DriverID != nil && *t.DriverID == id {
			ref.Trips++
		}
	}
	for _, f := range ds.data.Fuels {
		if f.DriverID != nil && *f.DriverID == id {
			ref.Fuels++
		}
	}
	if ref.Trips > 0 || ref.Fuels > 0 {
		return ref
	}

	ds.data.Drivers = append(ds.data.Drivers[:i], ds.data.Drivers[i+1:]...)
	return nil
}

// SetCompensation records the driver's terms from s.Month onward, replacing
// any entry for the same month.
func (ds *Dataset) SetCompensation(id DriverID, s payroll.Snapshot) (Driver, error) {
	if s.Month.IsZero() {
		return Driver{}, &generic.FieldError{Field: "month", Value: "", Err: generic.ErrMalformedInput}
	}
	if err := s.Validate(); err != nil {
		return Driver{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.driverIndex(id)
	if i < 0 {
		return Driver{}, &generic.NotFoundError{Kind: "driver", ID: id.String()}
	}
	ds.data.Drivers[i].History = ds.data.Drivers[i].History.Set(s)
	return ds.data.Drivers[i].clone(), nil
}

// RemoveCompensation drops the history entry for month.
func (ds *Dataset) RemoveCompensation(id DriverID, month generic.YearMonth) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.driverIndex(id)
	if i < 0 {
		return &generic.NotFoundError{Kind: "driver", ID: id.String()}
	}
	ds.data.Drivers[i].History = ds.data.Drivers[i].History.Remove(month)
	return nil
}

// =============================================================================
// TRIPS
// =============================================================================

func (ds *Dataset) Trip(id TripID) (Trip, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	i := ds.tripIndex(id)
	if i < 0 {
		return Trip{}, &generic.NotFoundError{Kind: "trip", ID: id.String()}
	}
	return ds.data.Trips[i].clone(), nil
}

// AddTrip requires the vehicle and driver (if any) to exist.
func (ds *Dataset) AddTrip(t Trip) (Trip, error) {
	if err := t.Validate(); err != nil {
		return Trip{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := ds.checkRefs(t.VehicleID, t.DriverID); err != nil {
		return Trip{}, err
	}
	if t.ID == 0 {
		t.ID = ds.next.trip
	} else if ds.tripIndex(t.ID) >= 0 {
		return Trip{}, &generic.FieldError{Field: "trip_id", Value: t.ID.String(), Err: generic.ErrMalformedInput}
	}
	t = t.clone()
	ds.data.Trips = append(ds.data.Trips, t)
	ds.next.trip = max(ds.next.trip, t.ID+1)
	return t.clone(), nil
}

func (ds *Dataset) UpdateTrip(t Trip) error {
	if err := t.Validate(); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.tripIndex(t.ID)
	if i < 0 {
		return &generic.NotFoundError{Kind: "trip", ID: t.ID.String()}
	}
	if err := ds.checkRefs(t.VehicleID, t.DriverID); err != nil {
		return err
	}
	ds.data.Trips[i] = t.clone()
	return nil
}

func (ds *Dataset) DeleteTrip(id TripID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.tripIndex(id)
	if i < 0 {
		return &generic.NotFoundError{Kind: "trip", ID: id.String()}
	}
	ds.data.Trips = append(ds.data.Trips[:i], ds.data.Trips[i+1:]...)
	return nil
}

// =============================================================================
// FUEL EXPENSES
// =============================================================================

func (ds *Dataset) AddFuel(f FuelExpense) (FuelExpense, error) {
	if err := f.Validate(); err != nil {
		return FuelExpense{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := ds.checkRefs(f.VehicleID, f.DriverID); err != nil {
		return FuelExpense{}, err
	}
	if f.ID == 0 {
		f.ID = ds.next.fuel
	} else if ds.fuelIndex(f.ID) >= 0 {
		return FuelExpense{}, &generic.FieldError{Field: "fuel_id", Value: f.ID.String(), Err: generic.ErrMalformedInput}
	}
	f = f.clone()
	ds.data.Fuels = append(ds.data.Fuels, f)
	ds.next.fuel = max(ds.next.fuel, f.ID+1)
	return f.clone(), nil
}

func (ds *Dataset) UpdateFuel(f FuelExpense) error {
	if err := f.Validate(); err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.fuelIndex(f.ID)
	if i < 0 {
		return &generic.NotFoundError{Kind: "fuel", ID: f.ID.String()}
	}
	if err := ds.checkRefs(f.VehicleID, f.DriverID); err != nil {
		return err
	}
	ds.data.Fuels[i] = f.clone()
	return nil
}

func (ds *Dataset) DeleteFuel(id FuelID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	i := ds.fuelIndex(id)
	if i < 0 {
		return &generic.NotFoundError{Kind: "fuel", ID: id.String()}
	}
	ds.data.Fuels = append(ds.data.Fuels[:i], ds.data.Fuels[i+1:]...)
	return nil
}
