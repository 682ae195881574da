/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request bodies carry
  amounts and dates as the operator typed them ("1.234,50", "12/02/2025");
  the handlers parse them with generic.ParseAmount / generic.ParseDate.
  Report responses round money to cents; records are returned as stored.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Report rows returned to clients
  - *Response: Report wrappers carrying calculation metadata

VALIDATION:
  Struct tags are checked with go-playground/validator before parsing.
  Tag failures and parse failures both answer 400.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/parse.go: amount and date parsing
*/
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// InvoiceRequest creates or replaces an invoice. A nil CreditMonths takes
// the book default; a blank AnnualRatePct uses the default rate.
type InvoiceRequest struct {
	Number        string `json:"invoice_no" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	IssueDate     string `json:"issue_date" validate:"required"`
	CreditMonths  *int   `json:"credit_months" validate:"omitempty,gte=0"`
	PaidDate      string `json:"paid_date"`
	AnnualRatePct string `json:"annual_rate_pct"`
	CustomerID    *int   `json:"customer_id" validate:"omitempty,gt=0"`
}

type CustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	TaxID string `json:"afm"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type VehicleRequest struct {
	Plate            string `json:"plate" validate:"required"`
	OdometerKm       int    `json:"odometer_km" validate:"gte=0"`
	Active           *bool  `json:"active"`
	MainDriverID     *int   `json:"main_driver_id" validate:"omitempty,gt=0"`
	FixedMonthlyCost string `json:"fixed_monthly_expenses"`
	WearRate         string `json:"wear_rate_per_km"`
	Notes            string `json:"notes"`
}

// CompensationRequest is a set of pay terms. Blank figures are zero.
type CompensationRequest struct {
	PayMode   string `json:"pay_mode" validate:"omitempty,oneof=monthly per_trip"`
	Salary    string `json:"salary"`
	StampCost string `json:"stamp_cost"`
	PerTrip   string `json:"pay_per_trip"`
}

// DriverRequest creates or updates a driver. On create the terms become
// the driver's base compensation.
type DriverRequest struct {
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone"`
	Active *bool  `json:"active"`
	Notes  string `json:"notes"`
	CompensationRequest
}

// TripRequest records a trip. A blank DriverPay is prefilled with the
// driver's per-trip rate for the trip's month.
type TripRequest struct {
	VehicleID         int    `json:"truck_id" validate:"required,gt=0"`
	DriverID          *int   `json:"driver_id" validate:"omitempty,gt=0"`
	Date              string `json:"trip_date" validate:"required"`
	Origin            string `json:"origin"`
	Destination       string `json:"destination"`
	DistanceKm        string `json:"trip_km"`
	Revenue           string `json:"revenue"`
	CommissionPercent string `json:"commission_percent"`
	Tolls             string `json:"toll_amount"`
	DriverPay         string `json:"driver_pay"`
	FuelIDs           []int  `json:"fuel_ids" validate:"dive,gt=0"`
	Notes             string `json:"notes"`
}

type FuelRequest struct {
	VehicleID    int    `json:"truck_id" validate:"required,gt=0"`
	DriverID     *int   `json:"driver_id" validate:"omitempty,gt=0"`
	Date         string `json:"fuel_date" validate:"required"`
	Liters       string `json:"liters" validate:"required"`
	CostPerLiter string `json:"cost_per_liter" validate:"required"`
	OdometerKm   int    `json:"odometer_km" validate:"gte=0"`
	Station      string `json:"station"`
	Receipt      string `json:"receipt"`
	Notes        string `json:"notes"`
}

type FleetSettingsRequest struct {
	WearRate          string `json:"wear_rate_per_km" validate:"required"`
	OtherExpensesRate string `json:"other_expenses_rate" validate:"required"`
	FuelMatching      string `json:"fuel_matching" validate:"omitempty,oneof=same_day linked"`
}

type InvoiceSettingsRequest struct {
	DefaultRatePct      string `json:"default_rate_pct" validate:"required"`
	DefaultCreditMonths int    `json:"default_credit_months" validate:"gte=0"`
}

// =============================================================================
// REPORT ENVELOPE
// =============================================================================

// CalculationMetadata identifies one report run.
type CalculationMetadata struct {
	CalculationID          string `json:"calculation_id"`
	CalculationStartedAt   string `json:"calculation_started_at"`
	CalculationCompletedAt string `json:"calculation_completed_at"`
	CalculationDurationMs  int64  `json:"calculation_duration_ms"`
}

// ReportResponse wraps every computed report.
type ReportResponse struct {
	Metadata CalculationMetadata `json:"calculation_metadata"`
	Result   any                 `json:"calculation_result"`
}

func newReport(start time.Time, now time.Time, result any) ReportResponse {
	elapsed := now.Sub(start)
	return ReportResponse{
		Metadata: CalculationMetadata{
			CalculationID:          uuid.New().String(),
			CalculationStartedAt:   start.UTC().Format(time.RFC3339),
			CalculationCompletedAt: now.UTC().Format(time.RFC3339),
			CalculationDurationMs:  elapsed.Milliseconds(),
		},
		Result: result,
	}
}

// =============================================================================
// REPORT TYPES
// =============================================================================

type InterestRowDTO struct {
	Number     string          `json:"invoice_no"`
	Customer   string          `json:"customer"`
	Amount     decimal.Decimal `json:"amount"`
	IssueDate  string          `json:"issue_date"`
	DueDate    string          `json:"due_date"`
	PaidDate   string          `json:"paid_date,omitempty"`
	Settlement string          `json:"settlement_date"`
	DelayDays  int             `json:"delay_days"`
	RatePct    decimal.Decimal `json:"rate_pct"`
	Interest   decimal.Decimal `json:"interest"`
}

type InterestReportDTO struct {
	AsOf           string           `json:"as_of"`
	DefaultRatePct decimal.Decimal  `json:"default_rate_pct"`
	Rows           []InterestRowDTO `json:"rows"`
	Total          decimal.Decimal  `json:"total_interest"`
}

func toInterestReportDTO(r interest.Report) InterestReportDTO {
	out := InterestReportDTO{
		AsOf:           r.AsOf.String(),
		DefaultRatePct: generic.RateToPercent(r.DefaultRate),
		Rows:           make([]InterestRowDTO, len(r.Rows)),
		Total:          generic.Cents(r.Total),
	}
	for i, row := range r.Rows {
		dto := InterestRowDTO{
			Number:     row.Invoice.Number,
			Customer:   row.Customer,
			Amount:     row.Invoice.Amount,
			IssueDate:  row.Invoice.IssueDate.String(),
			DueDate:    row.DueDate.String(),
			Settlement: row.SettlementDate.String(),
			DelayDays:  row.DelayDays,
			RatePct:    generic.RateToPercent(row.Rate),
			Interest:   generic.Cents(row.Interest),
		}
		if row.Invoice.PaidDate != nil {
			dto.PaidDate = row.Invoice.PaidDate.String()
		}
		out.Rows[i] = dto
	}
	return out
}

type TripProfitDTO struct {
	TripID       fleet.TripID    `json:"trip_id"`
	Date         string          `json:"trip_date"`
	Vehicle      string          `json:"truck"`
	Driver       string          `json:"driver"`
	Route        string          `json:"route,omitempty"`
	DistanceKm   decimal.Decimal `json:"trip_km"`
	Revenue      decimal.Decimal `json:"revenue"`
	Commission   decimal.Decimal `json:"commission"`
	Tolls        decimal.Decimal `json:"tolls"`
	Wear         decimal.Decimal `json:"wear"`
	Fuel         decimal.Decimal `json:"fuel"`
	DriverPay    decimal.Decimal `json:"driver_pay"`
	Gross        decimal.Decimal `json:"gross"`
	FleetShare   decimal.Decimal `json:"fleet_share"`
	NetFleet     decimal.Decimal `json:"net_fleet"`
	VehicleShare decimal.Decimal `json:"vehicle_share"`
	NetVehicle   decimal.Decimal `json:"net_vehicle"`
}

type TripReportDTO struct {
	Rows            []TripProfitDTO `json:"rows"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalNetFleet   decimal.Decimal `json:"total_net_fleet"`
	TotalNetVehicle decimal.Decimal `json:"total_net_vehicle"`
}

func toTripReportDTO(r fleet.TripReport) TripReportDTO {
	out := TripReportDTO{
		Rows:            make([]TripProfitDTO, len(r.Rows)),
		TotalGross:      generic.Cents(r.TotalGross),
		TotalNetFleet:   generic.Cents(r.TotalNetFleet),
		TotalNetVehicle: generic.Cents(r.TotalNetVehicle),
	}
	for i, p := range r.Rows {
		dto := TripProfitDTO{
			TripID:       p.Trip.ID,
			Date:         p.Trip.Date.String(),
			Vehicle:      p.VehicleLabel,
			Driver:       p.DriverLabel,
			DistanceKm:   p.Trip.DistanceKm,
			Revenue:      generic.Cents(p.Trip.Revenue),
			Commission:   generic.Cents(p.Commission),
			Tolls:        generic.Cents(p.Tolls),
			Wear:         generic.Cents(p.Wear),
			Fuel:         generic.Cents(p.Fuel),
			DriverPay:    generic.Cents(p.DriverPay),
			Gross:        generic.Cents(p.Gross),
			FleetShare:   generic.Cents(p.FleetShare),
			NetFleet:     generic.Cents(p.NetFleet),
			VehicleShare: generic.Cents(p.VehicleShare),
			NetVehicle:   generic.Cents(p.NetVehicle),
		}
		if p.Trip.Origin != "" || p.Trip.Destination != "" {
			dto.Route = p.Trip.Origin + " - " + p.Trip.Destination
		}
		out.Rows[i] = dto
	}
	return out
}

type SummaryDTO struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	Months        int             `json:"months"`
	TripCount     int             `json:"trip_count"`
	DistanceKm    decimal.Decimal `json:"distance_km"`
	Liters        decimal.Decimal `json:"liters"`
	Revenue       decimal.Decimal `json:"revenue"`
	Fuel          decimal.Decimal `json:"fuel"`
	OtherExpenses decimal.Decimal `json:"other_expenses"`
	Commission    decimal.Decimal `json:"commission"`
	Tolls         decimal.Decimal `json:"tolls"`
	Wear          decimal.Decimal `json:"wear"`
	Fixed         decimal.Decimal `json:"fixed"`
	Stamps        decimal.Decimal `json:"stamps"`
	Salaries      decimal.Decimal `json:"salaries"`
	PerTripPay    decimal.Decimal `json:"per_trip_pay"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Net           decimal.Decimal `json:"net"`
}

func toSummaryDTO(s fleet.Summary) SummaryDTO {
	return SummaryDTO{
		From:          s.Period.Start.String(),
		To:            s.Period.End.String(),
		Months:        s.Months,
		TripCount:     s.TripCount,
		DistanceKm:    s.Distance,
		Liters:        s.Liters,
		Revenue:       generic.Cents(s.Revenue),
		Fuel:          generic.Cents(s.Fuel),
		OtherExpenses: generic.Cents(s.OtherExpenses),
		Commission:    generic.Cents(s.Commission),
		Tolls:         generic.Cents(s.Tolls),
		Wear:          generic.Cents(s.Wear),
		Fixed:         generic.Cents(s.Fixed),
		Stamps:        generic.Cents(s.Stamps),
		Salaries:      generic.Cents(s.Salaries),
		PerTripPay:    generic.Cents(s.PerTripPay),
		TotalCost:     generic.Cents(s.TotalCost),
		Net:           generic.Cents(s.Net),
	}
}

type ActivityDTO struct {
	DriverID    fleet.DriverID   `json:"did"`
	Name        string           `json:"name"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Trips       []fleet.Trip     `json:"trips"`
	DistanceKm  decimal.Decimal  `json:"distance_km"`
	Salary      decimal.Decimal  `json:"salary"`
	SalaryPerKm *decimal.Decimal `json:"salary_per_km"`
}

func toActivityDTO(a fleet.DriverActivity) ActivityDTO {
	out := ActivityDTO{
		DriverID:   a.Driver.ID,
		Name:       a.Driver.Name,
		From:       a.Period.Start.String(),
		To:         a.Period.End.String(),
		Trips:      a.Trips,
		DistanceKm: a.Distance,
		Salary:     generic.Cents(a.Salary),
	}
	if out.Trips == nil {
		out.Trips = []fleet.Trip{}
	}
	if a.SalaryPerKm != nil {
		ratio := a.SalaryPerKm.Round(4)
		out.SalaryPerKm = &ratio
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ValidationDetail names one failed struct tag.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
