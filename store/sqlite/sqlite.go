/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists the fleet dataset and the invoice book between sessions. Each
  save replaces the stored dataset inside one SQL transaction, so a reader
  never sees half of an edit.

KEY TABLES:
  vehicles, drivers:      registries
  compensation_history:   one row per (driver, month), cascade on driver
  trips, fuel_expenses:   operational records
  trip_fuel_links:        explicit fuel ids for linked fuel matching
  customers, invoices:    the invoice book (invoices keep entry order)
  settings:               JSON documents keyed by scope

AMOUNTS:
  Decimals are stored as TEXT through decimal.Decimal's Valuer/Scanner, so
  no amount ever passes through a float. Dates are stored as YYYY-MM-DD.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

MIGRATION:
  Schema is versioned with golang-migrate from the embedded migrations/
  directory and applied on New().

USAGE:
  s, err := sqlite.New("./fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer s.Close()

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
	"github.com/warp/fleet-engine/payroll"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	scopeFleet          = "fleet"
	scopeInvoices       = "invoices"
	scopeNextCustomerID = "next_customer_id"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies pending migrations on db. The migrate instance is
// not closed: closing it would close db.
func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) loadSetting(ctx context.Context, scope string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value_json FROM settings WHERE scope = ?", scope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s settings: %w", scope, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s settings: %w", scope, err)
	}
	return true, nil
}

func saveSetting(ctx context.Context, db execer, scope string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s settings: %w", scope, err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO settings (scope, value_json) VALUES (?, ?) ON CONFLICT(scope) DO UPDATE SET value_json = excluded.value_json",
		scope, string(raw))
	return err
}

// =============================================================================
// FLEET STORE
// =============================================================================

// LoadFleet reads the whole fleet dataset.
func (s *Store) LoadFleet(ctx context.Context) (fleet.Fleet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := fleet.Fleet{Settings: fleet.DefaultSettings()}
	if _, err := s.loadSetting(ctx, scopeFleet, &out.Settings); err != nil {
		return fleet.Fleet{}, err
	}

	var err error
	if out.Vehicles, err = s.loadVehicles(ctx); err != nil {
		return fleet.Fleet{}, err
	}
	if out.Drivers, err = s.loadDrivers(ctx); err != nil {
		return fleet.Fleet{}, err
	}
	if out.Trips, err = s.loadTrips(ctx); err != nil {
		return fleet.Fleet{}, err
	}
	if out.Fuels, err = s.loadFuels(ctx); err != nil {
		return fleet.Fleet{}, err
	}
	return out, nil
}

// SaveFleet replaces the stored fleet dataset.
func (s *Store) SaveFleet(ctx context.Context, f fleet.Fleet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"trip_fuel_links", "trips", "fuel_expenses", "compensation_history", "drivers", "vehicles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := saveSetting(ctx, tx, scopeFleet, f.Settings); err != nil {
		return err
	}
	if err := insertVehicles(ctx, tx, f.Vehicles); err != nil {
		return err
	}
	if err := insertDrivers(ctx, tx, f.Drivers); err != nil {
		return err
	}
	if err := insertTrips(ctx, tx, f.Trips); err != nil {
		return err
	}
	if err := insertFuels(ctx, tx, f.Fuels); err != nil {
		return err
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------
// Vehicles
// -----------------------------------------------------------------------------

func insertVehicles(ctx context.Context, tx *sql.Tx, vehicles []fleet.Vehicle) error {
	for _, v := range vehicles {
		var mainDriver sql.NullInt64
		if v.MainDriverID != nil {
			mainDriver = sql.NullInt64{Int64: int64(*v.MainDriverID), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vehicles (id, plate, odometer_km, active, main_driver_id, fixed_monthly_cost, wear_rate, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(v.ID), v.Plate, v.OdometerKm, v.Active, mainDriver, v.FixedMonthlyCost, v.WearRate, v.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert vehicle %d: %w", v.ID, err)
		}
	}
	return nil
}

func (s *Store) loadVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plate, odometer_km, active, main_driver_id, fixed_monthly_cost, wear_rate, notes
		FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var out []fleet.Vehicle
	for rows.Next() {
		var (
			v          fleet.Vehicle
			mainDriver sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.Plate, &v.OdometerKm, &v.Active, &mainDriver, &v.FixedMonthlyCost, &v.WearRate, &v.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		if mainDriver.Valid {
			id := fleet.DriverID(mainDriver.Int64)
			v.MainDriverID = &id
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Drivers and compensation history
// -----------------------------------------------------------------------------

func insertDrivers(ctx context.Context, tx *sql.Tx, drivers []fleet.Driver) error {
	for _, d := range drivers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drivers (id, name, phone, active, notes, base_pay_mode, base_salary, base_stamp_cost, base_per_trip)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(d.ID), d.Name, d.Phone, d.Active, d.Notes,
			string(d.Base.Mode), d.Base.Salary, d.Base.StampCost, d.Base.PerTrip)
		if err != nil {
			return fmt.Errorf("failed to insert driver %d: %w", d.ID, err)
		}
		for _, snap := range d.History {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO compensation_history (driver_id, month, pay_mode, salary, stamp_cost, per_trip)
				VALUES (?, ?, ?, ?, ?, ?)`,
				int64(d.ID), snap.Month.String(), string(snap.Mode), snap.Salary, snap.StampCost, snap.PerTrip)
			if err != nil {
				return fmt.Errorf("failed to insert compensation %s for driver %d: %w", snap.Month, d.ID, err)
			}
		}
	}
	return nil
}

func (s *Store) loadDrivers(ctx context.Context) ([]fleet.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, active, notes, base_pay_mode, base_salary, base_stamp_cost, base_per_trip
		FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var out []fleet.Driver
	for rows.Next() {
		var (
			d    fleet.Driver
			mode string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Active, &d.Notes, &mode, &d.Base.Salary, &d.Base.StampCost, &d.Base.PerTrip); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		d.Base.Mode = payroll.PayMode(mode)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].History = history[out[i].ID]
	}
	return out, nil
}

func (s *Store) loadHistory(ctx context.Context) (map[fleet.DriverID]payroll.History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT driver_id, month, pay_mode, salary, stamp_cost, per_trip
		FROM compensation_history ORDER BY driver_id, month`)
	if err != nil {
		return nil, fmt.Errorf("failed to query compensation history: %w", err)
	}
	defer rows.Close()

	out := make(map[fleet.DriverID]payroll.History)
	for rows.Next() {
		var (
			driver      fleet.DriverID
			month, mode string
			snap        payroll.Snapshot
		)
		if err := rows.Scan(&driver, &month, &mode, &snap.Salary, &snap.StampCost, &snap.PerTrip); err != nil {
			return nil, fmt.Errorf("failed to scan compensation: %w", err)
		}
		if snap.Month, err = generic.ParseYearMonth(month); err != nil {
			return nil, err
		}
		snap.Mode = payroll.PayMode(mode)
		out[driver] = append(out[driver], snap)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Trips
// -----------------------------------------------------------------------------

func insertTrips(ctx context.Context, tx *sql.Tx, trips []fleet.Trip) error {
	for _, t := range trips {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trips (id, vehicle_id, trip_date, driver_id, origin, destination,
			                   distance_km, revenue, commission_percent, tolls, driver_pay, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(t.ID), int64(t.VehicleID), t.Date.String(), nullDriver(t.DriverID), t.Origin, t.Destination,
			t.DistanceKm, t.Revenue, t.CommissionPercent, t.Tolls, t.DriverPay, t.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert trip %d: %w", t.ID, err)
		}
		for pos, fuelID := range t.FuelIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO trip_fuel_links (trip_id, fuel_id, position) VALUES (?, ?, ?)",
				int64(t.ID), int64(fuelID), pos)
			if err != nil {
				return fmt.Errorf("failed to link fuel %d to trip %d: %w", fuelID, t.ID, err)
			}
		}
	}
	return nil
}

func (s *Store) loadTrips(ctx context.Context) ([]fleet.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, trip_date, driver_id, origin, destination,
		       distance_km, revenue, commission_percent, tolls, driver_pay, notes
		FROM trips ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var out []fleet.Trip
	for rows.Next() {
		var (
			t      fleet.Trip
			date   string
			driver sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.VehicleID, &date, &driver, &t.Origin, &t.Destination,
			&t.DistanceKm, &t.Revenue, &t.CommissionPercent, &t.Tolls, &t.DriverPay, &t.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if t.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		t.DriverID = driverFromNull(driver)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.loadFuelLinks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].FuelIDs = links[out[i].ID]
	}
	return out, nil
}

func (s *Store) loadFuelLinks(ctx context.Context) (map[fleet.TripID][]fleet.FuelID, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT trip_id, fuel_id FROM trip_fuel_links ORDER BY trip_id, position")
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel links: %w", err)
	}
	defer rows.Close()

	out := make(map[fleet.TripID][]fleet.FuelID)
	for rows.Next() {
		var (
			trip fleet.TripID
			fuel fleet.FuelID
		)
		if err := rows.Scan(&trip, &fuel); err != nil {
			return nil, fmt.Errorf("failed to scan fuel link: %w", err)
		}
		out[trip] = append(out[trip], fuel)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Fuel expenses
// -----------------------------------------------------------------------------

func insertFuels(ctx context.Context, tx *sql.Tx, fuels []fleet.FuelExpense) error {
	for _, f := range fuels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fuel_expenses (id, vehicle_id, fuel_date, driver_id, liters, cost_per_liter,
			                           odometer_km, station, receipt, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(f.ID), int64(f.VehicleID), f.Date.String(), nullDriver(f.DriverID), f.Liters, f.CostPerLiter,
			f.OdometerKm, f.Station, f.Receipt, f.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert fuel expense %d: %w", f.ID, err)
		}
	}
	return nil
}

func (s *Store) loadFuels(ctx context.Context) ([]fleet.FuelExpense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, fuel_date, driver_id, liters, cost_per_liter, odometer_km, station, receipt, notes
		FROM fuel_expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel expenses: %w", err)
	}
	defer rows.Close()

	var out []fleet.FuelExpense
	for rows.Next() {
		var (
			f      fleet.FuelExpense
			date   string
			driver sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.VehicleID, &date, &driver, &f.Liters, &f.CostPerLiter,
			&f.OdometerKm, &f.Station, &f.Receipt, &f.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan fuel expense: %w", err)
		}
		if f.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		f.DriverID = driverFromNull(driver)
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullDriver(id *fleet.DriverID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func driverFromNull(n sql.NullInt64) *fleet.DriverID {
	if !n.Valid {
		return nil
	}
	id := fleet.DriverID(n.Int64)
	return &id
}

// =============================================================================
// INVOICE STORE
// =============================================================================

// LoadInvoices reads the invoice book.
func (s *Store) LoadInvoices(ctx context.Context) (interest.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := interest.Data{Settings: interest.DefaultSettings(), NextCustomerID: 1}
	if _, err := s.loadSetting(ctx, scopeInvoices, &out.Settings); err != nil {
		return interest.Data{}, err
	}
	if _, err := s.loadSetting(ctx, scopeNextCustomerID, &out.NextCustomerID); err != nil {
		return interest.Data{}, err
	}

	var err error
	if out.Customers, err = s.loadCustomers(ctx); err != nil {
		return interest.Data{}, err
	}
	if out.Invoices, err = s.loadInvoiceRows(ctx); err != nil {
		return interest.Data{}, err
	}
	return out, nil
}

// SaveInvoices replaces the stored invoice book.
func (s *Store) SaveInvoices(ctx context.Context, d interest.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"invoices", "customers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := saveSetting(ctx, tx, scopeInvoices, d.Settings); err != nil {
		return err
	}
	if err := saveSetting(ctx, tx, scopeNextCustomerID, d.NextCustomerID); err != nil {
		return err
	}

	for _, c := range d.Customers {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO customers (id, name, tax_id, phone, notes) VALUES (?, ?, ?, ?, ?)",
			int64(c.ID), c.Name, c.TaxID, c.Phone, c.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert customer %d: %w", c.ID, err)
		}
	}

	for pos, inv := range d.Invoices {
		var (
			paid     sql.NullString
			rate     decimal.NullDecimal
			customer sql.NullInt64
		)
		if inv.PaidDate != nil {
			paid = sql.NullString{String: inv.PaidDate.String(), Valid: true}
		}
		if inv.AnnualRate != nil {
			rate = decimal.NullDecimal{Decimal: *inv.AnnualRate, Valid: true}
		}
		if inv.CustomerID != nil {
			customer = sql.NullInt64{Int64: int64(*inv.CustomerID), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (number, position, amount, issue_date, credit_months, paid_date, annual_rate, customer_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.Key(), pos, inv.Amount, inv.IssueDate.String(), inv.CreditMonths, paid, rate, customer)
		if err != nil {
			return fmt.Errorf("failed to insert invoice %q: %w", inv.Key(), err)
		}
	}
	return tx.Commit()
}

func (s *Store) loadCustomers(ctx context.Context) ([]interest.Customer, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, tax_id, phone, notes FROM customers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []interest.Customer
	for rows.Next() {
		var c interest.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.Phone, &c.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) loadInvoiceRows(ctx context.Context) ([]interest.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, amount, issue_date, credit_months, paid_date, annual_rate, customer_id
		FROM invoices ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []interest.Invoice
	for rows.Next() {
		var (
			inv      interest.Invoice
			issued   string
			paid     sql.NullString
			rate     decimal.NullDecimal
			customer sql.NullInt64
		)
		if err := rows.Scan(&inv.Number, &inv.Amount, &issued, &inv.CreditMonths, &paid, &rate, &customer); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if inv.IssueDate, err = generic.ParseDate(issued); err != nil {
			return nil, err
		}
		if paid.Valid {
			p, err := generic.ParseDate(paid.String)
			if err != nil {
				return nil, err
			}
			inv.PaidDate = &p
		}
		if rate.Valid {
			r := rate.Decimal
			inv.AnnualRate = &r
		}
		if customer.Valid {
			cid := interest.CustomerID(customer.Int64)
			inv.CustomerID = &cid
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
