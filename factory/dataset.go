/*
Package factory converts JSON dataset documents to and from Go values.

PURPOSE:
  The operator's data lives in two JSON documents: the fleet document
  (vehicles, drivers, trips, fuel expenses, settings) and the invoice
  document (invoices, customers, settings). The factory decodes them into
  fleet.Fleet and interest.Data and encodes them back for export.

TOLERANCE:
  Documents written by older versions of the tool are accepted:
  - unknown fields are ignored
  - a record that fails to decode or validate is skipped, logged with the
    reason, and reported in Skipped; the rest of the document still loads
  - vehicles without "active" are active
  - drivers carrying the legacy scalar pay fields (salary, stamp_cost,
    pay_mode, pay_per_trip) get them as their base terms
  - pay history entries with a malformed month are dropped
  - fuel expenses may carry the per-liter price under "cost"
  - "vehicles" is accepted in place of "trucks"

FLEET SCHEMA:
  {
    "settings": {"wear_rate_per_km": 0.10, "other_expenses_rate": 0.05, "fuel_matching": "same_day"},
    "trucks":   [{"tid": 1, "plate": "ABC-1001", "fixed_monthly_expenses": 600, "main_driver_id": 1, "active": true}],
    "drivers":  [{"did": 1, "name": "Nikos", "base": {...}, "pay_history": [{"month": "2025-01", "pay_mode": "monthly", "salary": 1000, "stamp_cost": 200}]}],
    "trips":    [{"trip_id": 1, "truck_id": 1, "trip_date": "2025-03-05", "driver_id": 1, "trip_km": 300, "revenue": 1000}],
    "fuels":    [{"fuel_id": 1, "truck_id": 1, "fuel_date": "2025-03-05", "liters": 100, "cost_per_liter": 1.5}]
  }

USAGE:
  f := factory.NewDatasetFactory(log)
  data, skipped, err := f.ParseFleet(raw)
  out, err := f.EncodeFleet(data)

SEE ALSO:
  - fleet/types.go: record types and their validation
  - interest/types.go: invoice and customer types
  - store/: persistence of the decoded values
*/
package factory

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
	"github.com/warp/fleet-engine/payroll"
)

// =============================================================================
// SKIPPED RECORDS
// =============================================================================

// Skipped describes one record left out of a decoded document.
type Skipped struct {
	Collection string `json:"collection"`
	Index      int    `json:"index"`
	Reason     string `json:"reason"`
}

func (s Skipped) String() string {
	return fmt.Sprintf("%s[%d]: %s", s.Collection, s.Index, s.Reason)
}

// =============================================================================
// DATASET FACTORY
// =============================================================================

// DatasetFactory decodes and encodes dataset documents.
type DatasetFactory struct {
	log *zap.Logger
}

// NewDatasetFactory creates a factory that logs skipped records to log.
// A nil logger discards them.
func NewDatasetFactory(log *zap.Logger) *DatasetFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return &DatasetFactory{log: log.Named("factory")}
}

func (f *DatasetFactory) skip(out *[]Skipped, collection string, index int, reason error) {
	s := Skipped{Collection: collection, Index: index, Reason: reason.Error()}
	f.log.Warn("skipping record",
		zap.String("collection", collection),
		zap.Int("index", index),
		zap.Error(reason),
	)
	*out = append(*out, s)
}

// =============================================================================
// FLEET DOCUMENT
// =============================================================================

type fleetEnvelope struct {
	Settings json.RawMessage   `json:"settings"`
	Trucks   []json.RawMessage `json:"trucks"`
	Vehicles []json.RawMessage `json:"vehicles"`
	Drivers  []json.RawMessage `json:"drivers"`
	Trips    []json.RawMessage `json:"trips"`
	Fuels    []json.RawMessage `json:"fuels"`

	// Oldest documents kept the wear rate at the top level.
	WearRate *decimal.Decimal `json:"wear_rate_per_km"`
}

// driverRecord shadows the fields whose legacy shape differs.
type driverRecord struct {
	fleet.Driver
	Active    *bool             `json:"active"`
	Base      *payroll.Terms    `json:"base"`
	History   []json.RawMessage `json:"pay_history"`
	PayMode   string            `json:"pay_mode"`
	Salary    decimal.Decimal   `json:"salary"`
	StampCost decimal.Decimal   `json:"stamp_cost"`
	PerTrip   decimal.Decimal   `json:"pay_per_trip"`
}

type fuelRecord struct {
	fleet.FuelExpense
	CostPerLiter *decimal.Decimal `json:"cost_per_liter"`
	Cost         *decimal.Decimal `json:"cost"`
}

// ParseFleet decodes a fleet document. Only a document that is not a JSON
// object of the expected shape is an error.
func (f *DatasetFactory) ParseFleet(raw []byte) (fleet.Fleet, []Skipped, error) {
	var env fleetEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fleet.Fleet{}, nil, fmt.Errorf("failed to parse fleet document: %w", err)
	}

	var skipped []Skipped
	out := fleet.Fleet{Settings: f.parseFleetSettings(env, &skipped)}

	trucks := env.Trucks
	if len(trucks) == 0 {
		trucks = env.Vehicles
	}
	for i, r := range trucks {
		v, err := parseVehicle(r)
		if err != nil {
			f.skip(&skipped, "trucks", i, err)
			continue
		}
		out.Vehicles = append(out.Vehicles, v)
	}

	for i, r := range env.Drivers {
		d, err := f.parseDriver(r)
		if err != nil {
			f.skip(&skipped, "drivers", i, err)
			continue
		}
		out.Drivers = append(out.Drivers, d)
	}

	for i, r := range env.Trips {
		var t fleet.Trip
		if err := json.Unmarshal(r, &t); err != nil {
			f.skip(&skipped, "trips", i, err)
			continue
		}
		if t.ID <= 0 {
			f.skip(&skipped, "trips", i, fmt.Errorf("missing trip_id"))
			continue
		}
		if err := t.Validate(); err != nil {
			f.skip(&skipped, "trips", i, err)
			continue
		}
		out.Trips = append(out.Trips, t)
	}

	for i, r := range env.Fuels {
		fu, err := parseFuel(r)
		if err != nil {
			f.skip(&skipped, "fuels", i, err)
			continue
		}
		out.Fuels = append(out.Fuels, fu)
	}

	f.log.Info("fleet document parsed",
		zap.Int("vehicles", len(out.Vehicles)),
		zap.Int("drivers", len(out.Drivers)),
		zap.Int("trips", len(out.Trips)),
		zap.Int("fuels", len(out.Fuels)),
		zap.Int("skipped", len(skipped)),
	)
	return out, skipped, nil
}

func (f *DatasetFactory) parseFleetSettings(env fleetEnvelope, skipped *[]Skipped) fleet.Settings {
	settings := fleet.DefaultSettings()
	if env.WearRate != nil {
		settings.DefaultWearRate = *env.WearRate
	}
	if len(env.Settings) == 0 {
		return settings
	}

	decoded := settings
	if err := json.Unmarshal(env.Settings, &decoded); err != nil {
		f.skip(skipped, "settings", 0, err)
		return settings
	}
	if decoded.FuelMatching == "" {
		decoded.FuelMatching = fleet.FuelSameDay
	}
	if err := decoded.Validate(); err != nil {
		f.skip(skipped, "settings", 0, err)
		return settings
	}
	return decoded
}

func parseVehicle(raw json.RawMessage) (fleet.Vehicle, error) {
	v := fleet.Vehicle{Active: true}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fleet.Vehicle{}, err
	}
	if v.ID <= 0 {
		return fleet.Vehicle{}, fmt.Errorf("missing tid")
	}
	if err := v.Validate(); err != nil {
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (f *DatasetFactory) parseDriver(raw json.RawMessage) (fleet.Driver, error) {
	var rec driverRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fleet.Driver{}, err
	}

	d := rec.Driver
	if d.ID <= 0 {
		return fleet.Driver{}, fmt.Errorf("missing did")
	}
	d.Active = rec.Active == nil || *rec.Active

	if rec.Base != nil {
		d.Base = *rec.Base
	} else {
		mode, err := payroll.ParsePayMode(rec.PayMode)
		if err != nil {
			return fleet.Driver{}, err
		}
		d.Base = payroll.Terms{Mode: mode, Salary: rec.Salary, StampCost: rec.StampCost, PerTrip: rec.PerTrip}
	}

	d.History = nil
	for i, entry := range rec.History {
		var snap payroll.Snapshot
		err := json.Unmarshal(entry, &snap)
		if err == nil {
			err = snap.Validate()
		}
		if err != nil {
			f.log.Warn("dropping pay history entry",
				zap.Int("did", int(d.ID)),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		if snap.Month.IsZero() {
			continue
		}
		d.History = d.History.Set(snap)
	}

	if err := d.Validate(); err != nil {
		return fleet.Driver{}, err
	}
	return d, nil
}

func parseFuel(raw json.RawMessage) (fleet.FuelExpense, error) {
	var rec fuelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fleet.FuelExpense{}, err
	}
	fu := rec.FuelExpense
	switch {
	case rec.CostPerLiter != nil:
		fu.CostPerLiter = *rec.CostPerLiter
	case rec.Cost != nil:
		fu.CostPerLiter = *rec.Cost
	}
	if fu.ID <= 0 {
		return fleet.FuelExpense{}, fmt.Errorf("missing fuel_id")
	}
	if err := fu.Validate(); err != nil {
		return fleet.FuelExpense{}, err
	}
	return fu, nil
}

// EncodeFleet renders the canonical fleet document.
func (f *DatasetFactory) EncodeFleet(data fleet.Fleet) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// =============================================================================
// INVOICE DOCUMENT
// =============================================================================

type invoiceEnvelope struct {
	Settings       json.RawMessage     `json:"settings"`
	Customers      []json.RawMessage   `json:"customers"`
	Invoices       []json.RawMessage   `json:"invoices"`
	NextCustomerID interest.CustomerID `json:"next_customer_id"`
}

// ParseInvoices decodes an invoice document. Invoices repeating an earlier
// number are skipped.
func (f *DatasetFactory) ParseInvoices(raw []byte) (interest.Data, []Skipped, error) {
	var env invoiceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return interest.Data{}, nil, fmt.Errorf("failed to parse invoice document: %w", err)
	}

	var skipped []Skipped
	out := interest.Data{Settings: interest.DefaultSettings(), NextCustomerID: env.NextCustomerID}
	if len(env.Settings) > 0 {
		settings := interest.DefaultSettings()
		if err := json.Unmarshal(env.Settings, &settings); err != nil {
			f.skip(&skipped, "settings", 0, err)
		} else {
			out.Settings = settings
		}
	}

	for i, r := range env.Customers {
		var c interest.Customer
		if err := json.Unmarshal(r, &c); err != nil {
			f.skip(&skipped, "customers", i, err)
			continue
		}
		if c.ID <= 0 || c.Name == "" {
			f.skip(&skipped, "customers", i, fmt.Errorf("customer needs cid and name"))
			continue
		}
		out.Customers = append(out.Customers, c)
	}

	seen := make(map[string]bool, len(env.Invoices))
	for i, r := range env.Invoices {
		var inv interest.Invoice
		if err := json.Unmarshal(r, &inv); err != nil {
			f.skip(&skipped, "invoices", i, err)
			continue
		}
		inv.Number = inv.Key()
		if err := inv.Validate(); err != nil {
			f.skip(&skipped, "invoices", i, err)
			continue
		}
		if seen[inv.Key()] {
			f.skip(&skipped, "invoices", i, fmt.Errorf("invoice %q: %w", inv.Key(), generic.ErrDuplicateInvoice))
			continue
		}
		seen[inv.Key()] = true
		out.Invoices = append(out.Invoices, inv)
	}

	f.log.Info("invoice document parsed",
		zap.Int("invoices", len(out.Invoices)),
		zap.Int("customers", len(out.Customers)),
		zap.Int("skipped", len(skipped)),
	)
	return out, skipped, nil
}

// EncodeInvoices renders the canonical invoice document.
func (f *DatasetFactory) EncodeInvoices(data interest.Data) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
