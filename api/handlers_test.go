package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-engine/api"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
	"github.com/warp/fleet-engine/payroll"
	"github.com/warp/fleet-engine/store"
	"github.com/warp/fleet-engine/store/memory"
	"github.com/warp/fleet-engine/store/sqlite"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================
//
// Same March 2025 fleet as the engine tests: V1 (600, primary D1), V2 (400,
// wear 0.20), inactive V3; D1 monthly 1000 + 200 stamps, D2 per trip 50;
// trips T1 V1/D1 300 km, T2 V2/D1 100 km, T3 V2/D2 100 km; one fuel
// expense on T1's day. The clock is fixed at 2025-03-20.

var fixedNow = time.Date(2025, time.March, 20, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(2025, m, d) }

func seedFleet() fleet.Fleet {
	d1, d2 := fleet.DriverID(1), fleet.DriverID(2)
	return fleet.Fleet{
		Settings: fleet.DefaultSettings(),
		Vehicles: []fleet.Vehicle{
			{ID: 1, Plate: "ABC-1001", Active: true, FixedMonthlyCost: dec("600"), MainDriverID: &d1},
			{ID: 2, Plate: "ABC-1002", Active: true, FixedMonthlyCost: dec("400"), WearRate: dec("0.20")},
			{ID: 3, Plate: "OLD-0003", Active: false, FixedMonthlyCost: dec("999")},
		},
		Drivers: []fleet.Driver{
			{ID: d1, Name: "Nikos", Active: true, History: payroll.History{{
				Month: generic.NewYearMonth(2025, time.January),
				Terms: payroll.Terms{Mode: payroll.PayMonthly, Salary: dec("1000"), StampCost: dec("200")},
			}}},
			{ID: d2, Name: "Maria", Active: true, Base: payroll.Terms{Mode: payroll.PayPerTrip, PerTrip: dec("50"), StampCost: dec("100")}},
		},
		Trips: []fleet.Trip{
			{ID: 1, VehicleID: 1, DriverID: &d1, Date: day(time.March, 5), DistanceKm: dec("300"), Revenue: dec("1000"), CommissionPercent: dec("10"), Tolls: dec("20")},
			{ID: 2, VehicleID: 2, DriverID: &d1, Date: day(time.March, 6), DistanceKm: dec("100"), Revenue: dec("400")},
			{ID: 3, VehicleID: 2, DriverID: &d2, Date: day(time.March, 7), DistanceKm: dec("100"), Revenue: dec("500"), Tolls: dec("10"), DriverPay: dec("50")},
		},
		Fuels: []fleet.FuelExpense{
			{ID: 1, VehicleID: 1, Date: day(time.March, 5), Liters: dec("100"), CostPerLiter: dec("1.5")},
		},
	}
}

type testServer struct {
	store  *memory.Memory
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.SaveFleet(context.Background(), seedFleet()))
	return &testServer{store: st, router: newRouter(t, st)}
}

func newRouter(t *testing.T, st store.Store) http.Handler {
	t.Helper()
	h, err := api.NewHandler(context.Background(), st, api.Options{Clock: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return api.NewRouter(h, api.RouterOptions{})
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, s.router, method, path, body)
}

func serve(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type report[T any] struct {
	Metadata api.CalculationMetadata `json:"calculation_metadata"`
	Result   T                       `json:"calculation_result"`
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), append([]any{"expected %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestSummary_March(t *testing.T) {
	// GIVEN
	srv := newTestServer(t)

	// WHEN
	rec := srv.do(t, http.MethodGet, "/api/fleet/summary?from=2025-03-01&to=2025-03-31", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[report[api.SummaryDTO]](t, rec)
	_, err := uuid.Parse(got.Metadata.CalculationID)
	assert.NoError(t, err, "calculation id is a uuid")
	assert.NotEmpty(t, got.Metadata.CalculationCompletedAt)

	s := got.Result
	assert.Equal(t, "2025-03-01", s.From)
	assert.Equal(t, 1, s.Months)
	assert.Equal(t, 3, s.TripCount)
	assertDec(t, "1900", s.Revenue)
	assertDec(t, "2795", s.TotalCost)
	assertDec(t, "-895", s.Net)
}

func TestSummary_DayFirstDatesAndVehicleFilter(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/fleet/summary?from=01/03/2025&to=31/03/2025&vehicle_id=1", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decode[report[api.SummaryDTO]](t, rec).Result
	assertDec(t, "600", s.Fixed)
	assertDec(t, "-1150", s.Net)
}

func TestTripProfits_BothTiers(t *testing.T) {
	// GIVEN
	srv := newTestServer(t)

	// WHEN
	rec := srv.do(t, http.MethodGet, "/api/fleet/trips/profit?from=2025-03-01&to=2025-03-31", nil)

	// THEN: rows newest first, T1 carries 4.6/km fleet and 5/km vehicle cost
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[report[api.TripReportDTO]](t, rec).Result
	require.Len(t, r.Rows, 3)
	assert.Equal(t, fleet.TripID(3), r.Rows[0].TripID)

	t1 := r.Rows[2]
	assert.Equal(t, fleet.TripID(1), t1.TripID)
	assert.Equal(t, "ABC-1001", t1.Vehicle)
	assert.Equal(t, "Nikos", t1.Driver)
	assertDec(t, "700", t1.Gross)
	assertDec(t, "-680", t1.NetFleet)
	assertDec(t, "-800", t1.NetVehicle)
}

func TestTripProfits_BadQuery(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]string{
		"unparseable date": "/api/fleet/trips/profit?from=yesterday",
		"reversed range":   "/api/fleet/trips/profit?from=2025-03-31&to=2025-03-01",
		"bad vehicle id":   "/api/fleet/trips/profit?vehicle_id=abc",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDriverActivity(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/fleet/drivers/1/activity?from=2025-03-01&to=2025-03-31", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[report[api.ActivityDTO]](t, rec).Result
	assert.Len(t, a.Trips, 2)
	assertDec(t, "400", a.DistanceKm)
	require.NotNil(t, a.SalaryPerKm)
	assertDec(t, "2.5", *a.SalaryPerKm)

	missing := srv.do(t, http.MethodGet, "/api/fleet/drivers/99/activity", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

// =============================================================================
// FLEET RECORDS
// =============================================================================

func TestCreateTrip_PrefillsPerTripPay(t *testing.T) {
	// GIVEN: Maria is paid 50 per trip
	srv := newTestServer(t)
	saves := srv.store.Saves()

	// WHEN: a trip is recorded without a driver pay
	rec := srv.do(t, http.MethodPost, "/api/fleet/trips", api.TripRequest{
		VehicleID: 2, DriverID: ptr(2), Date: "08/03/2025",
		DistanceKm: "120", Revenue: "1.200,50",
	})

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trip := decode[fleet.Trip](t, rec)
	assert.Equal(t, fleet.TripID(4), trip.ID)
	assert.Equal(t, "2025-03-08", trip.Date.String())
	assertDec(t, "50", trip.DriverPay)
	assertDec(t, "1200.50", trip.Revenue)
	assert.Equal(t, saves+1, srv.store.Saves(), "saved after mutation")

	stored, err := srv.store.LoadFleet(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored.Trips, 4)
}

func TestCreateTrip_Errors(t *testing.T) {
	srv := newTestServer(t)

	unknown := srv.do(t, http.MethodPost, "/api/fleet/trips", api.TripRequest{VehicleID: 42, Date: "2025-03-08"})
	assert.Equal(t, http.StatusNotFound, unknown.Code)

	badAmount := srv.do(t, http.MethodPost, "/api/fleet/trips", api.TripRequest{VehicleID: 1, Date: "2025-03-08", Revenue: "lots"})
	assert.Equal(t, http.StatusBadRequest, badAmount.Code)

	missingDate := srv.do(t, http.MethodPost, "/api/fleet/trips", api.TripRequest{VehicleID: 1})
	require.Equal(t, http.StatusBadRequest, missingDate.Code)
	body := decode[struct {
		Details []api.ValidationDetail `json:"details"`
	}](t, missingDate)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "trip_date", body.Details[0].Field)
}

func TestDeleteVehicle_RefusedWhileReferenced(t *testing.T) {
	srv := newTestServer(t)
	saves := srv.store.Saves()

	rec := srv.do(t, http.MethodDelete, "/api/fleet/vehicles/1", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[struct {
		Details map[string]int `json:"details"`
	}](t, rec)
	assert.Equal(t, 1, body.Details["trips"])
	assert.Equal(t, 1, body.Details["fuels"])
	assert.Equal(t, saves, srv.store.Saves(), "nothing saved")

	ok := srv.do(t, http.MethodDelete, "/api/fleet/vehicles/3", nil)
	assert.Equal(t, http.StatusNoContent, ok.Code)
}

func TestUpdateVehicle_KeepsActiveFlagWhenOmitted(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/fleet/vehicles/3", api.VehicleRequest{Plate: "OLD-0003", FixedMonthlyCost: "1000"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[fleet.Vehicle](t, rec)
	assert.False(t, v.Active)
	assertDec(t, "1000", v.FixedMonthlyCost)
}

func TestCompensation_SetAndResolve(t *testing.T) {
	// GIVEN: Nikos earns 1000 from January
	srv := newTestServer(t)

	// WHEN: a raise to 1500 is recorded from April
	rec := srv.do(t, http.MethodPut, "/api/fleet/drivers/1/compensation/2025-04",
		api.CompensationRequest{PayMode: "monthly", Salary: "1500", StampCost: "200"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: months before April keep the old terms
	may := decode[payroll.Snapshot](t, srv.do(t, http.MethodGet, "/api/fleet/drivers/1/compensation?month=2025-05", nil))
	assertDec(t, "1500", may.Salary)
	feb := decode[payroll.Snapshot](t, srv.do(t, http.MethodGet, "/api/fleet/drivers/1/compensation?month=2025-02", nil))
	assertDec(t, "1000", feb.Salary)
	current := decode[payroll.Snapshot](t, srv.do(t, http.MethodGet, "/api/fleet/drivers/1/compensation", nil))
	assertDec(t, "1000", current.Salary, "March is the clock's month")

	bad := srv.do(t, http.MethodPut, "/api/fleet/drivers/1/compensation/April", api.CompensationRequest{})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	mode := srv.do(t, http.MethodPut, "/api/fleet/drivers/1/compensation/2025-04", api.CompensationRequest{PayMode: "hourly"})
	assert.Equal(t, http.StatusBadRequest, mode.Code)
}

func TestUpdateDriver_RecordsPayForCurrentMonth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/fleet/drivers/1", api.DriverRequest{
		Name:                "Nikos P.",
		CompensationRequest: api.CompensationRequest{PayMode: "monthly", Salary: "1100", StampCost: "200"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[api.DriverDTO](t, rec)
	assert.Equal(t, "Nikos P.", got.Name)
	require.Len(t, got.History, 2)
	assert.Equal(t, generic.NewYearMonth(2025, time.March), got.Current.Month)
	assertDec(t, "1100", got.Current.Salary)

	jan := decode[payroll.Snapshot](t, srv.do(t, http.MethodGet, "/api/fleet/drivers/1/compensation?month=2025-01", nil))
	assertDec(t, "1000", jan.Salary)
}

func TestCreateDriver_ListsCurrentTerms(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/fleet/drivers", api.DriverRequest{
		Name:                "Eleni",
		CompensationRequest: api.CompensationRequest{PayMode: "per_trip", PerTrip: "40"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	drivers := decode[[]api.DriverDTO](t, srv.do(t, http.MethodGet, "/api/fleet/drivers", nil))
	require.Len(t, drivers, 3)
	eleni := drivers[2]
	assert.Equal(t, fleet.DriverID(3), eleni.ID)
	assert.True(t, eleni.Active)
	assert.True(t, eleni.Current.IsPerTrip())
	assertDec(t, "40", eleni.Current.PerTrip)
}

func TestDeleteDriver_RefusedWhileReferenced(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodDelete, "/api/fleet/drivers/2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/fleet/trips/3", nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/fleet/drivers/2", nil).Code)
}

func TestDeleteDriver_RefusedWhileFuelReferences(t *testing.T) {
	// GIVEN: Maria's trip is gone but she signed a fuel receipt
	srv := newTestServer(t)
	require.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/fleet/trips/3", nil).Code)
	rec := srv.do(t, http.MethodPost, "/api/fleet/fuel", api.FuelRequest{
		VehicleID: 2, DriverID: ptr(2), Date: "2025-03-07", Liters: "30", CostPerLiter: "1.6",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fuel := decode[fleet.FuelExpense](t, rec)

	// WHEN
	rec = srv.do(t, http.MethodDelete, "/api/fleet/drivers/2", nil)

	// THEN
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[struct {
		Details map[string]int `json:"details"`
	}](t, rec)
	assert.Equal(t, 1, body.Details["fuels"])
	assert.Equal(t, 0, body.Details["trips"])

	require.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/fleet/fuel/"+fuel.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/fleet/drivers/2", nil).Code)
}

func TestFuel_CreateAndFilter(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/fleet/fuel", api.FuelRequest{
		VehicleID: 2, Date: "2025-04-02", Liters: "50", CostPerLiter: "1,62",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	f := decode[fleet.FuelExpense](t, rec)
	assertDec(t, "81", f.Total())

	april := decode[[]fleet.FuelExpense](t, srv.do(t, http.MethodGet, "/api/fleet/fuel?from=2025-04-01", nil))
	require.Len(t, april, 1)
	assert.Equal(t, f.ID, april[0].ID)
}

func TestFleetSettings_Update(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/fleet/settings", api.FleetSettingsRequest{
		WearRate: "0,15", OtherExpensesRate: "0.04", FuelMatching: "linked",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[fleet.Settings](t, srv.do(t, http.MethodGet, "/api/fleet/settings", nil))
	assertDec(t, "0.15", got.DefaultWearRate)
	assert.Equal(t, fleet.FuelLinked, got.FuelMatching)

	bad := srv.do(t, http.MethodPut, "/api/fleet/settings", api.FleetSettingsRequest{WearRate: "-1", OtherExpensesRate: "0"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoices_InterestReport(t *testing.T) {
	// GIVEN: 1000 issued 31 Jan with one month of credit, due 28 Feb
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/invoices", api.InvoiceRequest{
		Number: " A-1 ", Amount: "1.000,00", IssueDate: "31/01/2025", CreditMonths: ptr(1),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "A-1", decode[interest.Invoice](t, rec).Number, "number trimmed")

	// WHEN: computed as of 30 March at 6%
	rep := srv.do(t, http.MethodGet, "/api/invoices/interest?as_of=2025-03-30&rate=6", nil)

	// THEN: 30 days late
	require.Equal(t, http.StatusOK, rep.Code, rep.Body.String())
	r := decode[report[api.InterestReportDTO]](t, rep).Result
	require.Len(t, r.Rows, 1)
	row := r.Rows[0]
	assert.Equal(t, "2025-02-28", row.DueDate)
	assert.Equal(t, 30, row.DelayDays)
	assert.Equal(t, interest.NoCustomer, row.Customer)
	assertDec(t, "4.93", row.Interest)
	assertDec(t, "4.93", r.Total)
}

func TestInvoices_DefaultsAndDuplicates(t *testing.T) {
	srv := newTestServer(t)

	first := srv.do(t, http.MethodPost, "/api/invoices", api.InvoiceRequest{Number: "B-7", Amount: "10", IssueDate: "2025-01-10"})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, 5, decode[interest.Invoice](t, first).CreditMonths, "book default")

	dup := srv.do(t, http.MethodPost, "/api/invoices", api.InvoiceRequest{Number: "B-7 ", Amount: "20", IssueDate: "2025-01-11"})
	assert.Equal(t, http.StatusConflict, dup.Code)

	renamed := srv.do(t, http.MethodPut, "/api/invoices/B-7", api.InvoiceRequest{Number: "B-8", Amount: "10", IssueDate: "2025-01-10", PaidDate: "2025-07-01"})
	require.Equal(t, http.StatusOK, renamed.Code, renamed.Body.String())

	list := decode[[]interest.Invoice](t, srv.do(t, http.MethodGet, "/api/invoices", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "B-8", list[0].Number)
	require.NotNil(t, list[0].PaidDate)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/api/invoices/B-7", nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/api/invoices/B-8", nil).Code)
}

func TestCustomers_DeleteRefusedWhileInvoiced(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/customers", api.CustomerRequest{Name: "Alpha Logistics", TaxID: "099999999"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[interest.Customer](t, rec)
	assert.Equal(t, interest.CustomerID(1), c.ID)

	inv := srv.do(t, http.MethodPost, "/api/invoices", api.InvoiceRequest{
		Number: "C-1", Amount: "100", IssueDate: "2025-01-01", CustomerID: ptr(int(c.ID)),
	})
	require.Equal(t, http.StatusCreated, inv.Code, inv.Body.String())

	refused := srv.do(t, http.MethodDelete, "/api/customers/1", nil)
	require.Equal(t, http.StatusConflict, refused.Code)
	body := decode[struct {
		Details map[string]int `json:"details"`
	}](t, refused)
	assert.Equal(t, 1, body.Details["invoices"])

	rep := decode[report[api.InterestReportDTO]](t, srv.do(t, http.MethodGet, "/api/invoices/interest", nil)).Result
	assert.Equal(t, "2025-03-20", rep.AsOf, "defaults to today")
	assert.Equal(t, "Alpha Logistics", rep.Rows[0].Customer)
}

func TestInvoiceSettings_UpdateChangesDefaultRate(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/invoices/settings", api.InvoiceSettingsRequest{DefaultRatePct: "8", DefaultCreditMonths: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rep := decode[report[api.InterestReportDTO]](t, srv.do(t, http.MethodGet, "/api/invoices/interest", nil)).Result
	assertDec(t, "8", rep.DefaultRatePct)
}

// =============================================================================
// WIRING
// =============================================================================

func TestNewHandler_AppliesDefaultsToEmptyStore(t *testing.T) {
	st := memory.New()
	fs := fleet.DefaultSettings()
	fs.DefaultWearRate = dec("0.25")
	is := interest.Settings{DefaultRatePct: dec("9"), DefaultCreditMonths: 1}

	h, err := api.NewHandler(context.Background(), st, api.Options{FleetDefaults: &fs, InvoiceDefaults: &is})
	require.NoError(t, err)
	router := api.NewRouter(h, api.RouterOptions{})

	got := decode[fleet.Settings](t, serve(t, router, http.MethodGet, "/api/fleet/settings", nil))
	assertDec(t, "0.25", got.DefaultWearRate)
	inv := decode[interest.Settings](t, serve(t, router, http.MethodGet, "/api/invoices/settings", nil))
	assert.Equal(t, 1, inv.DefaultCreditMonths)
}

func TestNewHandler_StoredSettingsWinOverDefaults(t *testing.T) {
	srv := newTestServer(t)
	fs := fleet.DefaultSettings()
	fs.DefaultWearRate = dec("0.25")

	h, err := api.NewHandler(context.Background(), srv.store, api.Options{FleetDefaults: &fs})
	require.NoError(t, err)

	got := decode[fleet.Settings](t, serve(t, api.NewRouter(h, api.RouterOptions{}), http.MethodGet, "/api/fleet/settings", nil))
	assertDec(t, "0.10", got.DefaultWearRate)
}

func TestRouter_PersistsThroughSQLite(t *testing.T) {
	// GIVEN: a handler over an empty sqlite store
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// WHEN: a vehicle is created through the API
	rec := serve(t, newRouter(t, st), http.MethodPost, "/api/fleet/vehicles", api.VehicleRequest{Plate: "XYZ-9000", FixedMonthlyCost: "750"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: a second handler over the same store sees it
	vehicles := decode[[]fleet.Vehicle](t, serve(t, newRouter(t, st), http.MethodGet, "/api/fleet/vehicles", nil))
	require.Len(t, vehicles, 1)
	assert.Equal(t, "XYZ-9000", vehicles[0].Plate)
	assert.True(t, vehicles[0].Active)
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// SAVE FAILURES
// =============================================================================

// flakyStore refuses saves while down is set.
type flakyStore struct {
	*memory.Memory
	down bool
}

var errStoreDown = errors.New("disk full")

func (s *flakyStore) SaveFleet(ctx context.Context, f fleet.Fleet) error {
	if s.down {
		return errStoreDown
	}
	return s.Memory.SaveFleet(ctx, f)
}

func (s *flakyStore) SaveInvoices(ctx context.Context, d interest.Data) error {
	if s.down {
		return errStoreDown
	}
	return s.Memory.SaveInvoices(ctx, d)
}

func TestFailedSave_RollsBackFleet(t *testing.T) {
	// GIVEN: A store that stops accepting writes
	st := &flakyStore{Memory: memory.New()}
	require.NoError(t, st.Memory.SaveFleet(context.Background(), seedFleet()))
	router := newRouter(t, st)
	st.down = true

	// WHEN: A trip is created and a driver deleted
	rec := serve(t, router, http.MethodPost, "/api/fleet/trips", api.TripRequest{
		VehicleID: 1, Date: "2025-03-09", DistanceKm: "50",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = serve(t, router, http.MethodDelete, "/api/fleet/trips/3", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// THEN: Memory still matches the store
	trips := decode[[]fleet.Trip](t, serve(t, router, http.MethodGet, "/api/fleet/trips", nil))
	assert.Len(t, trips, 3)

	// AND: Once the store recovers, ids continue from the stored state
	st.down = false
	rec = serve(t, router, http.MethodPost, "/api/fleet/trips", api.TripRequest{
		VehicleID: 1, Date: "2025-03-09", DistanceKm: "50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, fleet.TripID(4), decode[fleet.Trip](t, rec).ID)
}

func TestFailedSave_RollsBackInvoices(t *testing.T) {
	st := &flakyStore{Memory: memory.New(), down: true}
	router := newRouter(t, st)

	rec := serve(t, router, http.MethodPost, "/api/invoices", api.InvoiceRequest{
		Number: "INV-9", Amount: "100", IssueDate: "2025-03-01",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	invoices := decode[[]interest.Invoice](t, serve(t, router, http.MethodGet, "/api/invoices", nil))
	assert.Empty(t, invoices)

	// The number is free again once saves succeed
	st.down = false
	rec = serve(t, router, http.MethodPost, "/api/invoices", api.InvoiceRequest{
		Number: "INV-9", Amount: "100", IssueDate: "2025-03-01",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
