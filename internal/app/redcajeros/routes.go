package redcajeros

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/redcajeros/internal/config"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/admin"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/auth"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/cashier"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/charge"
	publicconfig "github.com/magabrotheeeer/redcajeros/internal/http/handlers/config"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/export"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/health"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/payment"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/report"
	"github.com/magabrotheeeer/redcajeros/internal/http/handlers/settlement"
	"github.com/magabrotheeeer/redcajeros/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s *Services, limit config.RateLimit) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	cashiers := cashier.New(logger, s.Ledger, s.Settlement)
	charges := charge.New(logger, s.Ledger)
	reports := report.New(logger, s.Ledger)
	settlements := settlement.New(logger, s.Settlement)
	exports := export.New(logger, s.Export)
	admins := admin.New(logger, s.Billing, s.Settings)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger).ServeHTTP)
		r.Get("/config", publicconfig.New(logger, s.Settings).ServeHTTP)
		r.Post("/auth/register", auth.NewRegister(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", auth.NewLogin(logger, s.Auth).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, limit.RPS, limit.Burst))

			// Доступно при истёкшей подписке.
			r.Get("/auth/me", auth.NewMe(logger, s.Auth).ServeHTTP)
			r.Post("/payments/requests", payment.NewRequest(logger, s.Billing).ServeHTTP)
			r.Get("/payments/requests/pending", payment.NewPending(logger, s.Billing).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.SubscriptionStatusMiddleware(logger, s.Auth))

				r.Get("/cashiers", cashiers.List)
				r.Post("/cashiers", cashiers.Create)
				r.Put("/cashiers/{id}", cashiers.Update)
				r.Post("/cashiers/{id}/deactivate", cashiers.Deactivate)
				r.Delete("/cashiers/{id}", cashiers.Delete)
				r.Get("/cashiers/{id}/outstanding", cashiers.Outstanding)

				r.Get("/charges", charges.List)
				r.Post("/charges", charges.Create)
				r.Delete("/charges/{id}", charges.Delete)

				r.Get("/summary", reports.Summary)
				r.Get("/stats", reports.Stats)

				r.Get("/settlements", settlements.List)
				r.Post("/settlements", settlements.Create)

				r.Get("/export/charges", exports.Charges)
				r.Get("/export/summary", exports.Summary)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/payments/pending", admins.Pending)
				r.Post("/payments/{code}/verify", admins.Verify)
				r.Post("/payments/{code}/reject", admins.Reject)
				r.Get("/stats", admins.Stats)
				r.Put("/settings", admins.UpdateSettings)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
