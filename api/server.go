/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, logged with every entry
  2. RealIP:     Client address from proxy headers
  3. Recoverer:  Panic recovery (500 instead of crash), logged with zap
  4. Logger:     One zap entry per request
  5. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/invoices/*    Invoices and the interest report
  /api/customers/*   Invoice counterparties
  /api/fleet/*       Vehicles, drivers, trips, fuel, reports, settings
  /healthz           Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public; run behind a
  trusted proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: zap request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configure cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recoverer(log.Named("http")))
	r.Use(RequestLogger(log.Named("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/interest", h.InterestReport)
			r.Get("/settings", h.GetInvoiceSettings)
			r.Put("/settings", h.UpdateInvoiceSettings)
			r.Put("/{number}", h.UpdateInvoice)
			r.Delete("/{number}", h.DeleteInvoice)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
		})

		r.Route("/fleet", func(r chi.Router) {
			r.Route("/vehicles", func(r chi.Router) {
				r.Get("/", h.ListVehicles)
				r.Post("/", h.CreateVehicle)
				r.Put("/{id}", h.UpdateVehicle)
				r.Delete("/{id}", h.DeleteVehicle)
			})

			r.Route("/drivers", func(r chi.Router) {
				r.Get("/", h.ListDrivers)
				r.Post("/", h.CreateDriver)
				r.Put("/{id}", h.UpdateDriver)
				r.Delete("/{id}", h.DeleteDriver)
				r.Get("/{id}/compensation", h.GetCompensation)
				r.Put("/{id}/compensation/{month}", h.SetCompensation)
				r.Delete("/{id}/compensation/{month}", h.RemoveCompensation)
				r.Get("/{id}/activity", h.DriverActivity)
			})

			r.Route("/trips", func(r chi.Router) {
				r.Get("/", h.ListTrips)
				r.Post("/", h.CreateTrip)
				r.Get("/profit", h.TripProfits)
				r.Put("/{id}", h.UpdateTrip)
				r.Delete("/{id}", h.DeleteTrip)
			})

			r.Route("/fuel", func(r chi.Router) {
				r.Get("/", h.ListFuel)
				r.Post("/", h.CreateFuel)
				r.Put("/{id}", h.UpdateFuel)
				r.Delete("/{id}", h.DeleteFuel)
			})

			r.Get("/summary", h.Summary)
			r.Get("/settings", h.GetFleetSettings)
			r.Put("/settings", h.UpdateFleetSettings)
		})
	})

	return r
}
