/*
handlers.go - HTTP API handlers for the fleet and invoice engine

PURPOSE:
  Exposes the allocation engine via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the fleet and interest
  packages.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                 List invoices
    POST   /api/invoices                 Add invoice
    PUT    /api/invoices/{number}        Replace invoice
    DELETE /api/invoices/{number}        Delete invoice
    GET    /api/invoices/interest        Interest report (?as_of=&rate=)
    GET    /api/invoices/settings        Book defaults
    PUT    /api/invoices/settings        Change book defaults

  Customers:
    GET|POST       /api/customers
    PUT|DELETE     /api/customers/{id}

  Fleet records:
    GET|POST       /api/fleet/vehicles, /drivers, /trips, /fuel
    PUT|DELETE     /api/fleet/{kind}/{id}
    GET            /api/fleet/drivers/{id}/compensation?month=
    PUT|DELETE     /api/fleet/drivers/{id}/compensation/{month}
    GET            /api/fleet/drivers/{id}/activity?from=&to=

  Fleet reports:
    GET    /api/fleet/trips/profit       Per-trip profitability (?from=&to=&vehicle_id=)
    GET    /api/fleet/summary            Period totals (?from=&to=&vehicle_id=)
    GET|PUT /api/fleet/settings

ARCHITECTURE:
  Handler holds the in-memory session (fleet.Dataset, interest.Book) and
  the store. Every successful mutation saves the whole dataset it touched.
  When that save fails the dataset rolls back to the last stored state, so
  the session never runs ahead of the store. Reports run over a snapshot and
  never touch the store.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unparseable amounts or dates
  - 404: Unknown id
  - 409: Duplicate invoice number, delete refused by references
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
	"github.com/warp/fleet-engine/payroll"
	"github.com/warp/fleet-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configure a Handler. Zero values are usable.
type Options struct {
	// Settings applied when the store holds no records yet.
	FleetDefaults   *fleet.Settings
	InvoiceDefaults *interest.Settings

	Logger *zap.Logger
	Clock  func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store    store.Store
	fleet    *fleet.Dataset
	book     *interest.Book
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	// serializes snapshot+save so an older snapshot never overwrites a newer one
	persistMu     sync.Mutex
	savedFleet    fleet.Fleet
	savedInvoices interest.Data
}

// NewHandler loads both datasets from st.
func NewHandler(ctx context.Context, st store.Store, opts Options) (*Handler, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	f, err := st.LoadFleet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fleet: %w", err)
	}
	if f.IsEmpty() && opts.FleetDefaults != nil {
		f.Settings = *opts.FleetDefaults
	}

	inv, err := st.LoadInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	if inv.IsEmpty() && opts.InvoiceDefaults != nil {
		inv.Settings = *opts.InvoiceDefaults
	}

	return &Handler{
		store:         st,
		fleet:         fleet.NewDataset(f),
		book:          interest.NewBook(inv),
		log:           log.Named("api"),
		validate:      newValidator(),
		now:           now,
		savedFleet:    f.Clone(),
		savedInvoices: inv.Clone(),
	}, nil
}

func (h *Handler) today() generic.TimePoint {
	return generic.FromTime(h.now())
}

// saveFleet persists the fleet session. A failed save discards every edit
// since the last successful one.
func (h *Handler) saveFleet(ctx context.Context) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()
	snap := h.fleet.Snapshot()
	if err := h.store.SaveFleet(ctx, snap); err != nil {
		h.fleet.Replace(h.savedFleet)
		h.log.Warn("fleet save failed, session rolled back", zap.Error(err))
		return err
	}
	h.savedFleet = snap
	return nil
}

func (h *Handler) saveInvoices(ctx context.Context) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()
	snap := h.book.Snapshot()
	if err := h.store.SaveInvoices(ctx, snap); err != nil {
		h.book.Replace(h.savedInvoices)
		h.log.Warn("invoice save failed, session rolled back", zap.Error(err))
		return err
	}
	h.savedInvoices = snap
	return nil
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.book.Snapshot().Invoices)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.bind(w, r, &req) {
		return
	}
	inv, err := h.invoiceFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.book.AddInvoice(inv); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	saved, _ := h.book.Invoice(inv.Number)
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	var req InvoiceRequest
	if !h.bind(w, r, &req) {
		return
	}
	inv, err := h.invoiceFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.book.UpdateInvoice(number, inv); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	saved, _ := h.book.Invoice(inv.Number)
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.book.DeleteInvoice(chi.URLParam(r, "number")); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InterestReport computes every invoice as of ?as_of (default today). ?rate
// overrides the default annual rate, in percent.
func (h *Handler) InterestReport(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	var p fields
	asOf := p.optionalDate("as_of", r.URL.Query().Get("as_of"))
	rate := p.optionalAmount("rate", r.URL.Query().Get("rate"))
	if p.err != nil {
		h.fail(w, r, p.err)
		return
	}

	day := h.today()
	if asOf != nil {
		day = *asOf
	}
	var override *decimal.Decimal
	if rate != nil {
		fraction := generic.PercentToRate(*rate)
		override = &fraction
	}

	report := h.book.Report(override, day)
	writeJSON(w, http.StatusOK, newReport(start, h.now(), toInterestReportDTO(report)))
}

func (h *Handler) GetInvoiceSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.book.Settings())
}

func (h *Handler) UpdateInvoiceSettings(w http.ResponseWriter, r *http.Request) {
	var req InvoiceSettingsRequest
	if !h.bind(w, r, &req) {
		return
	}
	var p fields
	s := interest.Settings{
		DefaultRatePct:      p.amount("default_rate_pct", req.DefaultRatePct),
		DefaultCreditMonths: req.DefaultCreditMonths,
	}
	if p.err != nil {
		h.fail(w, r, p.err)
		return
	}
	if err := h.book.SetSettings(s); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.book.Settings())
}

func (h *Handler) invoiceFrom(req InvoiceRequest) (interest.Invoice, error) {
	var p fields
	inv := interest.Invoice{
		Number:    req.Number,
		Amount:    p.amount("amount", req.Amount),
		IssueDate: p.date("issue_date", req.IssueDate),
		PaidDate:  p.optionalDate("paid_date", req.PaidDate),
	}
	if rate := p.optionalAmount("annual_rate_pct", req.AnnualRatePct); rate != nil {
		fraction := generic.PercentToRate(*rate)
		inv.AnnualRate = &fraction
	}
	if p.err != nil {
		return interest.Invoice{}, p.err
	}

	inv.CreditMonths = h.book.Settings().DefaultCreditMonths
	if req.CreditMonths != nil {
		inv.CreditMonths = *req.CreditMonths
	}
	if req.CustomerID != nil {
		cid := interest.CustomerID(*req.CustomerID)
		inv.CustomerID = &cid
	}
	return inv, nil
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers := h.book.Snapshot().Customers
	if customers == nil {
		customers = []interest.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !h.bind(w, r, &req) {
		return
	}
	c, err := h.book.AddCustomer(interest.Customer{Name: req.Name, TaxID: req.TaxID, Phone: req.Phone, Notes: req.Notes})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CustomerRequest
	if !h.bind(w, r, &req) {
		return
	}
	c := interest.Customer{ID: interest.CustomerID(id), Name: req.Name, TaxID: req.TaxID, Phone: req.Phone, Notes: req.Notes}
	if err := h.book.UpdateCustomer(c); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.book.DeleteCustomer(interest.CustomerID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveInvoices(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.fleet.Snapshot().Vehicles)
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if !h.bind(w, r, &req) {
		return
	}
	v, err := vehicleFrom(req, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err = h.fleet.AddVehicle(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// UpdateVehicle replaces the vehicle's details. An omitted "active" keeps
// the current flag.
func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	current, err := h.fleet.Vehicle(fleet.VehicleID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req VehicleRequest
	if !h.bind(w, r, &req) {
		return
	}
	v, err := vehicleFrom(req, current.Active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v.ID = current.ID
	if err := h.fleet.UpdateVehicle(v); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.fleet.DeleteVehicle(fleet.VehicleID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func vehicleFrom(req VehicleRequest, active bool) (fleet.Vehicle, error) {
	var p fields
	v := fleet.Vehicle{
		Plate:            strings.TrimSpace(req.Plate),
		OdometerKm:       req.OdometerKm,
		Active:           active,
		FixedMonthlyCost: p.amount("fixed_monthly_expenses", req.FixedMonthlyCost),
		WearRate:         p.amount("wear_rate_per_km", req.WearRate),
		Notes:            req.Notes,
	}
	if p.err != nil {
		return fleet.Vehicle{}, p.err
	}
	if req.Active != nil {
		v.Active = *req.Active
	}
	if req.MainDriverID != nil {
		d := fleet.DriverID(*req.MainDriverID)
		v.MainDriverID = &d
	}
	return v, nil
}

// =============================================================================
// DRIVER HANDLERS
// =============================================================================

// DriverDTO is a driver plus the terms in effect this month.
type DriverDTO struct {
	fleet.Driver
	Current payroll.Snapshot `json:"current"`
}

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	drivers := h.fleet.Snapshot().Drivers
	out := make([]DriverDTO, len(drivers))
	for i, d := range drivers {
		out[i] = DriverDTO{Driver: d, Current: d.CurrentCompensation(today)}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateDriver records the submitted terms as the driver's base pay and as
// the history entry for the current month.
func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req DriverRequest
	if !h.bind(w, r, &req) {
		return
	}
	terms, err := termsFrom(req.CompensationRequest)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d := fleet.Driver{
		Name:   strings.TrimSpace(req.Name),
		Phone:  req.Phone,
		Active: true,
		Notes:  req.Notes,
		Base:   terms,
	}
	if req.Active != nil {
		d.Active = *req.Active
	}
	d.History = d.History.Set(payroll.Snapshot{Month: h.today().YearMonth(), Terms: terms})

	d, err = h.fleet.AddDriver(d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DriverDTO{Driver: d, Current: d.CurrentCompensation(h.today())})
}

// UpdateDriver changes the driver's details. Pay terms, when any are sent,
// are recorded for the current month; earlier months keep their terms.
func (h *Handler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	current, err := h.fleet.Driver(fleet.DriverID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req DriverRequest
	if !h.bind(w, r, &req) {
		return
	}

	d := current
	d.Name = strings.TrimSpace(req.Name)
	d.Phone = req.Phone
	d.Notes = req.Notes
	if req.Active != nil {
		d.Active = *req.Active
	}
	if req.CompensationRequest != (CompensationRequest{}) {
		terms, err := termsFrom(req.CompensationRequest)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		d.History = d.History.Set(payroll.Snapshot{Month: h.today().YearMonth(), Terms: terms})
	}

	if err := h.fleet.UpdateDriver(d); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DriverDTO{Driver: d, Current: d.CurrentCompensation(h.today())})
}

func (h *Handler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.fleet.DeleteDriver(fleet.DriverID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCompensation resolves the terms for ?month=YYYY-MM (default: this month).
func (h *Handler) GetCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	month := h.today().YearMonth()
	if raw := r.URL.Query().Get("month"); raw != "" {
		if month, err = generic.ParseYearMonth(raw); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	d, err := h.fleet.Driver(fleet.DriverID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.Compensation(month))
}

// SetCompensation records terms effective from {month} onward.
func (h *Handler) SetCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	month, err := generic.ParseYearMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CompensationRequest
	if !h.bind(w, r, &req) {
		return
	}
	terms, err := termsFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.fleet.SetCompensation(fleet.DriverID(id), payroll.Snapshot{Month: month, Terms: terms})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d.History)
}

func (h *Handler) RemoveCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	month, err := generic.ParseYearMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.fleet.RemoveCompensation(fleet.DriverID(id), month); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DriverActivity lists the driver's trips in ?from..?to with salary per km.
func (h *Handler) DriverActivity(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bounds, err := parseBounds(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	activity, err := fleet.ActivityFor(h.fleet.Snapshot(), fleet.DriverID(id), bounds, h.today())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReport(start, h.now(), toActivityDTO(activity)))
}

func termsFrom(req CompensationRequest) (payroll.Terms, error) {
	mode, err := payroll.ParsePayMode(req.PayMode)
	if err != nil {
		return payroll.Terms{}, err
	}
	var p fields
	terms := payroll.Terms{
		Mode:      mode,
		Salary:    p.amount("salary", req.Salary),
		StampCost: p.amount("stamp_cost", req.StampCost),
		PerTrip:   p.amount("pay_per_trip", req.PerTrip),
	}
	return terms, p.err
}

// =============================================================================
// TRIP HANDLERS
// =============================================================================

// ListTrips returns the raw trips in scope of ?from, ?to and ?vehicle_id.
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	trips, _ := q.InScope(h.fleet.Snapshot())
	if trips == nil {
		trips = []fleet.Trip{}
	}
	writeJSON(w, http.StatusOK, trips)
}

func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if !h.bind(w, r, &req) {
		return
	}
	t, err := h.tripFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err = h.fleet.AddTrip(t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req TripRequest
	if !h.bind(w, r, &req) {
		return
	}
	t, err := h.tripFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t.ID = fleet.TripID(id)
	if err := h.fleet.UpdateTrip(t); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.fleet.DeleteTrip(fleet.TripID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TripProfits runs both allocation tiers over the query scope.
func (h *Handler) TripProfits(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	report := fleet.TripProfits(h.fleet.Snapshot(), q)
	writeJSON(w, http.StatusOK, newReport(start, h.now(), toTripReportDTO(report)))
}

func (h *Handler) tripFrom(req TripRequest) (fleet.Trip, error) {
	var p fields
	t := fleet.Trip{
		VehicleID:         fleet.VehicleID(req.VehicleID),
		Date:              p.date("trip_date", req.Date),
		Origin:            strings.TrimSpace(req.Origin),
		Destination:       strings.TrimSpace(req.Destination),
		DistanceKm:        p.amount("trip_km", req.DistanceKm),
		Revenue:           p.amount("revenue", req.Revenue),
		CommissionPercent: p.amount("commission_percent", req.CommissionPercent),
		Tolls:             p.amount("toll_amount", req.Tolls),
		Notes:             req.Notes,
	}
	pay := p.optionalAmount("driver_pay", req.DriverPay)
	if p.err != nil {
		return fleet.Trip{}, p.err
	}
	if req.DriverID != nil {
		d := fleet.DriverID(*req.DriverID)
		t.DriverID = &d
	}
	for _, id := range req.FuelIDs {
		t.FuelIDs = append(t.FuelIDs, fleet.FuelID(id))
	}

	if pay != nil {
		t.DriverPay = *pay
	} else {
		t.DriverPay = h.fleet.Snapshot().SuggestedDriverPay(t.DriverID, t.Date)
	}
	return t, nil
}

// =============================================================================
// FUEL HANDLERS
// =============================================================================

func (h *Handler) ListFuel(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, fuels := q.InScope(h.fleet.Snapshot())
	if fuels == nil {
		fuels = []fleet.FuelExpense{}
	}
	writeJSON(w, http.StatusOK, fuels)
}

func (h *Handler) CreateFuel(w http.ResponseWriter, r *http.Request) {
	var req FuelRequest
	if !h.bind(w, r, &req) {
		return
	}
	f, err := fuelFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err = h.fleet.AddFuel(f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) UpdateFuel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req FuelRequest
	if !h.bind(w, r, &req) {
		return
	}
	f, err := fuelFrom(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f.ID = fleet.FuelID(id)
	if err := h.fleet.UpdateFuel(f); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) DeleteFuel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.fleet.DeleteFuel(fleet.FuelID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fuelFrom(req FuelRequest) (fleet.FuelExpense, error) {
	var p fields
	f := fleet.FuelExpense{
		VehicleID:    fleet.VehicleID(req.VehicleID),
		Date:         p.date("fuel_date", req.Date),
		Liters:       p.amount("liters", req.Liters),
		CostPerLiter: p.amount("cost_per_liter", req.CostPerLiter),
		OdometerKm:   req.OdometerKm,
		Station:      strings.TrimSpace(req.Station),
		Receipt:      strings.TrimSpace(req.Receipt),
		Notes:        req.Notes,
	}
	if p.err != nil {
		return fleet.FuelExpense{}, p.err
	}
	if req.DriverID != nil {
		d := fleet.DriverID(*req.DriverID)
		f.DriverID = &d
	}
	return f, nil
}

// =============================================================================
// SUMMARY & SETTINGS HANDLERS
// =============================================================================

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s := fleet.Summarize(h.fleet.Snapshot(), q)
	writeJSON(w, http.StatusOK, newReport(start, h.now(), toSummaryDTO(s)))
}

func (h *Handler) GetFleetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.fleet.Settings())
}

func (h *Handler) UpdateFleetSettings(w http.ResponseWriter, r *http.Request) {
	var req FleetSettingsRequest
	if !h.bind(w, r, &req) {
		return
	}
	var p fields
	s := fleet.Settings{
		DefaultWearRate:   p.amount("wear_rate_per_km", req.WearRate),
		OtherExpensesRate: p.amount("other_expenses_rate", req.OtherExpensesRate),
		FuelMatching:      fleet.FuelMatchMode(req.FuelMatching),
	}
	if p.err != nil {
		h.fail(w, r, p.err)
		return
	}
	if s.FuelMatching == "" {
		s.FuelMatching = fleet.FuelSameDay
	}
	if err := h.fleet.SetSettings(s); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveFleet(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.fleet.Settings())
}

// =============================================================================
// HELPERS
// =============================================================================

// fields parses operator-entered values, keeping the first failure.
type fields struct {
	err error
}

func (p *fields) malformed(name, raw string) {
	if p.err == nil {
		p.err = &generic.FieldError{Field: name, Value: raw, Err: generic.ErrMalformedInput}
	}
}

// amount treats blank input as zero.
func (p *fields) amount(name, raw string) decimal.Decimal {
	d, err := generic.ParseOptionalAmount(raw)
	if err != nil {
		p.malformed(name, raw)
		return decimal.Zero
	}
	return d
}

// optionalAmount is nil for blank input.
func (p *fields) optionalAmount(name, raw string) *decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := generic.ParseAmount(raw)
	if err != nil {
		p.malformed(name, raw)
		return nil
	}
	return &d
}

func (p *fields) date(name, raw string) generic.TimePoint {
	t, err := generic.ParseDate(raw)
	if err != nil {
		p.malformed(name, raw)
		return generic.TimePoint{}
	}
	return t
}

func (p *fields) optionalDate(name, raw string) *generic.TimePoint {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t := p.date(name, raw)
	if p.err != nil {
		return nil
	}
	return &t
}

// parseBounds reads ?from and ?to; either may be missing.
func parseBounds(r *http.Request) (generic.Bounds, error) {
	var p fields
	b := generic.Bounds{
		From: p.optionalDate("from", r.URL.Query().Get("from")),
		To:   p.optionalDate("to", r.URL.Query().Get("to")),
	}
	if p.err != nil {
		return generic.Bounds{}, p.err
	}
	if b.Closed() {
		if _, err := generic.NewPeriod(*b.From, *b.To); err != nil {
			return generic.Bounds{}, err
		}
	}
	return b, nil
}

// parseQuery reads ?from, ?to and ?vehicle_id.
func (h *Handler) parseQuery(r *http.Request) (fleet.Query, error) {
	bounds, err := parseBounds(r)
	if err != nil {
		return fleet.Query{}, err
	}
	q := fleet.Query{Bounds: bounds, Today: h.today()}
	if raw := r.URL.Query().Get("vehicle_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return fleet.Query{}, &generic.FieldError{Field: "vehicle_id", Value: raw, Err: generic.ErrMalformedInput}
		}
		v := fleet.VehicleID(id)
		q.Vehicle = &v
	}
	return q, nil
}

func pathID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &generic.FieldError{Field: "id", Value: raw, Err: generic.ErrMalformedInput}
	}
	return id, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes and validates the body, answering 400 itself on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]ValidationDetail, len(verrs))
			for i, e := range verrs {
				details[i] = ValidationDetail{Field: e.Field(), Message: validationMessage(e)}
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "request validation failed", Details: details})
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	default:
		return "Invalid value"
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	var ref *generic.ReferenceError
	if errors.As(err, &ref) {
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Details: map[string]int{
			"trips":    ref.Trips,
			"fuels":    ref.Fuels,
			"invoices": ref.Invoices,
		}})
		return
	}
	writeError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
