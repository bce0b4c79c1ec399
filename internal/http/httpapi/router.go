package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dimichiko/kitportal/internal/domain"
	"github.com/dimichiko/kitportal/internal/guard"
	"github.com/dimichiko/kitportal/internal/http/handlers"
	"github.com/dimichiko/kitportal/internal/infra"
	"github.com/dimichiko/kitportal/internal/middleware"
)

// NewRouter assembles the portal surface: public marketing/auth routes behind
// the Public guard, account routes behind Private, and each micro-app mount
// behind its ProtectedApp guard.
func NewRouter(app *handlers.App, sessions guard.SessionSource, logger infra.Logger, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(cfg.CORSOrigins),
		middleware.Locale(cfg.DefaultLocale),
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/pricing", app.Pricing)
	r.Get("/v1/session", app.SessionInfo)

	// Login/register style routes: rate limited, signed-in sessions are sent
	// away like a public-only page.
	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Group(func(r chi.Router) {
			r.Use(guard.Public(sessions))
			r.Post("/login", app.Login)
			r.Post("/register", app.Register)
			r.Post("/2fa/verify", app.VerifyTwoFactor)
			r.Post("/password/reset", app.ResetPassword)
			r.Get("/last-email", app.LastEmail)
		})
		r.Post("/logout", app.Logout)
	})

	// Account management requires a signed-in session but no app check.
	r.Route("/v1/account", func(r chi.Router) {
		r.Use(guard.Private(sessions))
		r.Put("/profile", app.UpdateProfile)
		r.Put("/plan", app.ChangePlan)
		r.Put("/password", app.ChangePassword)
		r.Post("/2fa/enable", app.EnableTwoFactor)
		r.Delete("/2fa", app.DisableTwoFactor)
		r.Post("/email/verify", app.VerifyEmail)
		r.Post("/alert/dismiss", app.DismissAlert)
	})

	r.Route("/v1/apps", func(r chi.Router) {
		r.With(guard.Private(sessions)).Get("/", app.ListApps)

		for _, appID := range []domain.AppID{domain.AppHabitKit, domain.AppCalorieKit, domain.AppTrainingKit} {
			appID := appID
			r.Route("/"+string(appID), func(r chi.Router) {
				r.Use(guard.ProtectedApp(sessions, appID))
				r.Get("/", app.AppHome(appID))
			})
		}

		r.Route("/invoicekit", func(r chi.Router) {
			r.Use(guard.ProtectedApp(sessions, domain.AppInvoiceKit))
			r.Get("/", app.AppHome(domain.AppInvoiceKit))
			r.Get("/company", app.CurrentCompany)
			r.Put("/company", app.SelectCompany)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", app.ListCompanies)
				r.Post("/", app.CreateCompany)
				r.Put("/{id}", app.UpdateCompany)
				r.Delete("/{id}", app.DeleteCompany)
			})
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", app.ListClients)
				r.Post("/", app.CreateClient)
				r.Put("/{id}", app.UpdateClient)
				r.Delete("/{id}", app.DeleteClient)
			})
			r.Route("/products", func(r chi.Router) {
				r.Get("/", app.ListProducts)
				r.Post("/", app.CreateProduct)
				r.Put("/{id}", app.UpdateProduct)
				r.Delete("/{id}", app.DeleteProduct)
			})
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", app.ListInvoices)
				r.Post("/", app.CreateInvoice)
				r.Put("/{id}", app.UpdateInvoice)
				r.Delete("/{id}", app.DeleteInvoice)
			})
		})
	})

	return r
}
