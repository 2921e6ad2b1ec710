package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/feeledger/api/controllers"
	billingcontrollers "github.com/angelmondragon/feeledger/api/controllers/billing"
	disputecontrollers "github.com/angelmondragon/feeledger/api/controllers/disputes"
	"github.com/angelmondragon/feeledger/api/middleware"
	"github.com/angelmondragon/feeledger/pkg/auth"
	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/enums"
	"github.com/angelmondragon/feeledger/pkg/logger"
	pkgredis "github.com/angelmondragon/feeledger/pkg/redis"
)

// invoiceService covers both the supplier read routes and the admin cycle routes.
type invoiceService interface {
	billingcontrollers.InvoiceReader
	billingcontrollers.InvoiceCycler
}

type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	LedgerQuery billingcontrollers.LedgerReader
	Invoices    invoiceService
	Ledger      billingcontrollers.EntryTransitioner
	FeePolicies billingcontrollers.FeePolicyWriter
	Disputes    disputecontrollers.Service

	Clock func() time.Time
}

// NewRouter mounts the health, metrics and /api/v1 billing routes.
func NewRouter(p RouterParams) (http.Handler, error) {
	cfg, logg := p.Config, p.Logger
	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.SecurityHeaders(cfg.App.IsProd()),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": p.DB,
			"redis":    p.Redis,
		}))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	exportLimit := middleware.ExportRateLimit(cfg.Billing.ExportRequestsPerMin, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(verifier, logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/suppliers", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSupplier))
			r.Use(middleware.SupplierContext(logg))

			r.Route("/billing", func(r chi.Router) {
				r.Get("/summary", billingcontrollers.SupplierSummary(p.LedgerQuery, now, logg))
				r.Get("/ledger", billingcontrollers.SupplierLedger(p.LedgerQuery, logg))
				r.With(exportLimit).Get("/export", billingcontrollers.SupplierExport(p.LedgerQuery, now, logg))
				r.Get("/invoices", billingcontrollers.SupplierInvoices(p.Invoices, logg))
				r.Get("/invoices/{invoiceId}", billingcontrollers.SupplierInvoiceDetail(p.Invoices, logg))
				r.Get("/invoices/{invoiceId}/pdf", billingcontrollers.SupplierInvoicePDF(p.Invoices, logg))
			})
			r.Post("/disputes/{disputeId}/respond", disputecontrollers.SupplierRespond(p.Disputes, logg))
		})

		r.With(middleware.RequireRole(logg, enums.RoleBuyer)).
			Post("/disputes", disputecontrollers.BuyerOpen(p.Disputes, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Route("/disputes", func(r chi.Router) {
				r.Get("/", disputecontrollers.AdminList(p.Disputes, logg))
				r.Get("/{disputeId}", disputecontrollers.AdminDetail(p.Disputes, logg))
				r.Post("/{disputeId}/note", disputecontrollers.AdminNote(p.Disputes, logg))
				r.Patch("/{disputeId}/resolve", disputecontrollers.AdminResolve(p.Disputes, logg))
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/ledger", billingcontrollers.AdminLedger(p.LedgerQuery, logg))
				r.With(exportLimit).Get("/export", billingcontrollers.AdminExport(p.LedgerQuery, now, logg))
				r.Post("/entries/{entryId}/transition", billingcontrollers.AdminTransitionEntry(p.Ledger, logg))
				r.Post("/invoice-cycle", billingcontrollers.AdminRunInvoiceCycle(p.Invoices, now, logg))
				r.Post("/invoices/{invoiceId}/paid", billingcontrollers.AdminMarkInvoicePaid(p.Invoices, logg))
			})

			r.Put("/suppliers/{supplierId}/fee-policy", billingcontrollers.AdminSetFeePolicy(p.FeePolicies, logg))
		})
	})

	return r, nil
}
