package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/service"
	"github.com/aussiebroadwan/directory/internal/directory/store"
	"github.com/aussiebroadwan/directory/internal/directory/view"
	"github.com/aussiebroadwan/directory/pkg/httpx"
	"github.com/aussiebroadwan/directory/pkg/jwtx"
	"github.com/aussiebroadwan/directory/pkg/slogx"

	_ "github.com/aussiebroadwan/directory/api/directory" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultMaxAvatarBytes applies when Router.MaxAvatarBytes is unset.
const DefaultMaxAvatarBytes = 2 << 20

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	mux chi.Router

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Views          *view.Renderer
	Identities     *service.IdentityService
	Credentials    *service.CredentialService
	Sessions       *service.SessionService
	Federated      *service.FederatedService // Optional: nil disables /auth/provider
	FlowSigner     *jwtx.FlowSigner
	Metrics        *metrics.Metrics
	Cookies        CookieConfig
	MaxAvatarBytes int64

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slogx.Discard()
	}
	return &Router{
		mux:          chi.NewRouter(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
	}
}

func (r *Router) ApplyRoutes() {
	if r.TrustProxy {
		r.mux.Use(middleware.RealIP)
	}
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(middleware.StripSlashes)
	r.mux.Use(slogx.HTTPMiddleware(r.logger))

	r.registerPages()
	r.registerAuth()
	r.registerFederated()
	r.registerProfile()
	r.registerSystem()

	r.mux.Get("/swagger/*", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router.
//
//	@title			Member Directory API
//	@version		0.1.0
//	@description	JSON endpoints of the member directory. Pages and forms are served as HTML and are not described here.
//	@description
//	@description	Protected endpoints require the directory_session cookie and redirect to /login without it.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/directory
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3000
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						directory_session
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) registerPages() {
	r.mux.Get("/", r.handleHome)
	r.mux.Get("/login", r.handleLoginForm)
	r.mux.Get("/register", r.handleRegisterForm)

	r.mux.Group(func(g chi.Router) {
		g.Use(r.RequireSession)

		g.Get("/secrets", r.handleSecrets)
		g.Get("/person", r.handlePerson)
		g.Get("/myProfile", r.handleMyProfile)
		g.Get("/editdetails", r.handleEditDetails)
	})
}

func (r *Router) registerAuth() {
	// Strict limit keyed by IP + username against credential stuffing. The
	// form is capped and parsed before the limiter reads the username.
	form := httpx.LimitForm(maxFormBytes)
	strict := httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username")

	r.mux.With(form, strict).Post("/login", r.handleLogin)
	r.mux.With(form, strict).Post("/register", r.handleRegister)
	r.mux.With(r.RequireSession).Get("/logout", r.handleLogout)
}

func (r *Router) registerFederated() {
	if r.Federated == nil || r.FlowSigner == nil {
		return
	}

	lenient := httpx.RateLimitByIP(httpx.LenientLimit)
	r.mux.With(lenient).Get("/auth/provider", r.handleProviderBegin)
	r.mux.With(lenient).Get("/auth/provider/callback", r.handleProviderCallback)
}

func (r *Router) registerProfile() {
	r.mux.Group(func(g chi.Router) {
		g.Use(r.RequireSession)

		g.Post("/update", r.handleUpdate)
		g.Get("/avatar/{id}", r.handleAvatar)
		g.With(httpx.RateLimitByIP(httpx.LenientLimit)).Get("/autocomplete", r.handleAutocomplete)
	})
}

func (r *Router) registerSystem() {
	lenient := httpx.RateLimitByIP(httpx.LenientLimit)

	r.mux.With(lenient).Get("/livez", LivezHandler(r.startTime, r.buildVersion))
	r.mux.With(lenient).Get("/readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.mux.Handle("/metrics", r.Metrics.Handler())
}

func (r *Router) providerName() string {
	if r.Federated == nil || r.Federated.Provider == nil {
		return ""
	}
	return r.Federated.Provider.Name()
}

func (r *Router) maxAvatarBytes() int64 {
	if r.MaxAvatarBytes <= 0 {
		return DefaultMaxAvatarBytes
	}
	return r.MaxAvatarBytes
}
