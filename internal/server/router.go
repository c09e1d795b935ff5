// Package server assembles the HTTP surface: the chi router, the JSON
// handlers for authentication, navigation, the password change protocol,
// and the member and payment resources.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/imedia765/memberhub/internal/authority"
	"github.com/imedia765/memberhub/internal/config"
	hubmiddleware "github.com/imedia765/memberhub/internal/middleware"
	"github.com/imedia765/memberhub/internal/nav"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/imedia765/memberhub/internal/secure"
	"github.com/imedia765/memberhub/internal/services/member"
	"github.com/imedia765/memberhub/internal/services/payment"
)

// RouterOptions controls the construction of the HTTP router. The zero
// value is not useful; callers wire the services built in cmd/serve.
type RouterOptions struct {
	Cfg *config.Config

	Members     *member.Service
	Payments    *payment.Service
	Resolver    *roles.Resolver
	Registry    *nav.Registry
	Password    *secure.Executor
	Audit       *authority.DBCredentialAuthority
	RevokedJTIs repository.RevokedJTIRepository

	AuthnDeps   hubmiddleware.AuthnDependencies
	CORSOptions *cors.Options
	Middleware  []func(http.Handler) http.Handler
	ExtraRoutes func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router with shared middleware, CORS policy,
// and every handler mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	clientID := ""
	if opts.Cfg != nil {
		clientID = opts.Cfg.ClientID
	}

	r.Use(hubmiddleware.NewAuthn(opts.AuthnDeps))
	r.Use(hubmiddleware.ClientInfo(clientID))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/health", defaultHealthHandler)

	r.Post("/api/auth/login", HandleLogin(opts.Members, opts.Resolver, opts.Registry))
	r.Post("/api/auth/logout", HandleLogout(opts.Members))
	r.Get("/api/auth/whoami", HandleWhoAmI(opts.Resolver))

	r.Group(func(r chi.Router) {
		r.Use(hubmiddleware.RequireAuthenticated)

		r.Get("/api/nav", HandleNavState(opts.Registry, opts.Resolver))
		r.Post("/api/nav/navigate", HandleNavigate(opts.Registry, opts.Resolver))

		r.Get("/api/profile", HandleProfile(opts.Members))
		r.Get("/api/payments/mine", HandleOwnPayments(opts.Payments))

		r.Post("/api/password", HandlePasswordChange(opts.Password, opts.Audit))
	})

	r.Group(func(r chi.Router) {
		r.Use(hubmiddleware.RequireRole(opts.Resolver, roles.RoleAdmin, roles.RoleCollector))

		r.Get("/api/members", HandleMemberDirectory(opts.Members, opts.Resolver))
		r.Get("/api/collectors", HandleCollectors(opts.Members, opts.Resolver))
		r.Get("/api/payments", HandleFinancials(opts.Payments, opts.Resolver))
		r.Get("/api/payments/summary", HandlePaymentSummary(opts.Payments, opts.Resolver))
		r.Post("/api/payments", HandleRecordPayment(opts.Payments, opts.Resolver))
	})

	r.Group(func(r chi.Router) {
		r.Use(hubmiddleware.RequireRole(opts.Resolver, roles.RoleAdmin))

		r.Get("/api/members/count", HandleMemberCount(opts.Members, opts.Resolver))
		r.Post("/api/tokens", HandleMintToken(opts.Cfg))
		r.Delete("/api/tokens/{jti}", HandleRevokeToken(opts.RevokedJTIs))
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext for local development clients.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
