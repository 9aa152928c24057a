package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/rentalcore/internal/api/handlers"
	"github.com/nikhilbhutani/rentalcore/internal/api/middleware"
	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/auth"
	"github.com/nikhilbhutani/rentalcore/internal/config"
)

type Router struct {
	mux    *chi.Mux
	cfg    *config.Config
	svc    *app.Services
	authMW *auth.Middleware
	checks map[string]handlers.Pinger
}

// NewRouter builds the HTTP surface over svc. checks are the readiness
// probes reported by /readyz.
func NewRouter(cfg *config.Config, svc *app.Services, checks map[string]handlers.Pinger) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg,
		svc:    svc,
		authMW: auth.NewMiddleware(svc.Tokens, svc.Store, svc.Loader, cfg.Auth.OrgHeader),
		checks: checks,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins, rt.cfg.Auth.OrgHeader))

	rl := middleware.NewRateLimiter(rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateBurst)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(rt.svc.Auth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMW.Authenticate)

			r.Get("/me", authH.Me)

			orgH := handlers.NewOrganizationHandler(rt.svc.Organizations)
			r.Route("/organizations", func(r chi.Router) {
				r.Post("/", orgH.Create)
				r.Get("/", orgH.List)
				r.Get("/{id}", orgH.Get)
				r.Delete("/{id}", orgH.Delete)
			})
			r.Route("/users", func(r chi.Router) {
				r.Post("/", orgH.CreateUser)
				r.Get("/", orgH.ListUsers)
				r.Get("/{id}", orgH.GetUser)
				r.Put("/{id}/roles", orgH.AssignRoles)
			})

			propH := handlers.NewPropertyHandler(rt.svc.Properties)
			r.Route("/properties", func(r chi.Router) {
				r.Post("/", propH.Create)
				r.Get("/", propH.List)
				r.Get("/{id}", propH.Get)
				r.Put("/{id}", propH.Update)
				r.Delete("/{id}", propH.Delete)
				r.Post("/{id}/restore", propH.Restore)
				r.Delete("/{id}/force", propH.ForceDelete)
				r.Get("/{id}/floors", propH.ListFloors)
			})
			r.Route("/floors", func(r chi.Router) {
				r.Post("/", propH.CreateFloor)
				r.Delete("/{id}", propH.DeleteFloor)
			})
			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", propH.CreateRoom)
				r.Get("/", propH.ListRooms)
				r.Get("/{id}", propH.GetRoom)
				r.Put("/{id}", propH.UpdateRoom)
				r.Delete("/{id}", propH.DeleteRoom)
				r.Post("/{id}/restore", propH.RestoreRoom)
				r.Delete("/{id}/force", propH.ForceDeleteRoom)
			})

			contractH := handlers.NewContractHandler(rt.svc.Contracts)
			r.Route("/contracts", func(r chi.Router) {
				r.Post("/", contractH.Create)
				r.Get("/", contractH.List)
				r.Post("/join", contractH.Join)
				r.Get("/{id}", contractH.Get)
				r.Put("/{id}", contractH.Update)
				r.Post("/{id}/activate", contractH.Activate)
				r.Post("/{id}/end", contractH.End)
				r.Post("/{id}/cancel", contractH.Cancel)
				r.Post("/{id}/members", contractH.AddMember)
			})
			r.Route("/contract-members/{memberID}", func(r chi.Router) {
				r.Post("/approve", contractH.ApproveMember)
				r.Post("/reject", contractH.RejectMember)
				r.Delete("/", contractH.RemoveMember)
			})

			pricingH := handlers.NewPricingHandler(rt.svc.Pricing)
			r.Route("/services", func(r chi.Router) {
				r.Post("/", pricingH.CreateService)
				r.Get("/", pricingH.ListServices)
				r.Get("/{id}", pricingH.GetService)
				r.Post("/{id}/rates", pricingH.AddRate)
				r.Get("/{id}/rates", pricingH.ListRates)
				r.Get("/{id}/rates/current", pricingH.CurrentRate)
			})

			meterH := handlers.NewMeteringHandler(rt.svc.Metering)
			r.Route("/meters", func(r chi.Router) {
				r.Post("/", meterH.CreateMeter)
				r.Get("/", meterH.ListMeters)
				r.Get("/{id}", meterH.GetMeter)
			})
			r.Route("/meter-readings", func(r chi.Router) {
				r.Post("/", meterH.CreateReading)
				r.Get("/", meterH.ListReadings)
				r.Get("/{id}", meterH.GetReading)
				r.Put("/{id}", meterH.UpdateReading)
				r.Post("/{id}/submit", meterH.SubmitReading)
				r.Post("/{id}/approve", meterH.ApproveReading)
				r.Post("/{id}/reject", meterH.RejectReading)
				r.Post("/{id}/lock", meterH.LockReading)
				r.Get("/{id}/consumption", meterH.Consumption)
				r.Post("/{id}/adjustments", meterH.CreateAdjustment)
			})
			r.Route("/adjustment-notes", func(r chi.Router) {
				r.Get("/", meterH.ListAdjustments)
				r.Get("/{id}", meterH.GetAdjustment)
				r.Post("/{id}/approve", meterH.ApproveAdjustment)
				r.Post("/{id}/reject", meterH.RejectAdjustment)
			})

			invoiceH := handlers.NewInvoiceHandler(rt.svc.Invoices)
			r.Route("/invoices", func(r chi.Router) {
				r.Post("/", invoiceH.Create)
				r.Get("/", invoiceH.List)
				r.Post("/generate", invoiceH.Generate)
				r.Get("/{id}", invoiceH.Get)
				r.Put("/{id}", invoiceH.Update)
				r.Delete("/{id}", invoiceH.Delete)
				r.Post("/{id}/issue", invoiceH.Issue)
				r.Post("/{id}/cancel", invoiceH.Cancel)
				r.Post("/{id}/payments", invoiceH.RecordPayment)
			})

			ticketH := handlers.NewTicketHandler(rt.svc.Tickets)
			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", ticketH.Create)
				r.Get("/", ticketH.List)
				r.Get("/{id}", ticketH.Get)
				r.Put("/{id}", ticketH.Update)
				r.Post("/{id}/status", ticketH.UpdateStatus)
				r.Post("/{id}/events", ticketH.AddEvent)
				r.Post("/{id}/costs", ticketH.AddCost)
			})

			handoverH := handlers.NewHandoverHandler(rt.svc.Handovers)
			r.Route("/handovers", func(r chi.Router) {
				r.Post("/", handoverH.Create)
				r.Get("/", handoverH.List)
				r.Get("/{id}", handoverH.Get)
				r.Put("/{id}", handoverH.Update)
				r.Post("/{id}/confirm", handoverH.Confirm)
				r.Post("/{id}/items", handoverH.AddItem)
				r.Put("/{id}/snapshots", handoverH.UpsertSnapshot)
			})
			r.Route("/handover-items/{itemID}", func(r chi.Router) {
				r.Put("/", handoverH.UpdateItem)
				r.Delete("/", handoverH.DeleteItem)
			})
			r.Delete("/handover-snapshots/{snapshotID}", handoverH.DeleteSnapshot)

			uploadH := handlers.NewUploadHandler(rt.svc.Uploads)
			r.Post("/uploads", uploadH.Upload)
			r.Post("/uploads/{id}/attach", uploadH.Attach)

			// Admin routes
			adminH := handlers.NewAdminHandler(rt.svc.Audit, rt.svc.Syncer, rt.svc.Eval)
			r.Route("/admin", func(r chi.Router) {
				r.Post("/permissions/sync", adminH.SyncPermissions)
				r.Get("/audit", adminH.AuditLogs)
			})
		})
	})

	return r
}
