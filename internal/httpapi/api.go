package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"startup.org/internal/auth"
	"startup.org/internal/obs"
)

// ReadyProbe - простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options - параметры сборки HTTP слоя.
type Options struct {
	Authenticator *auth.Authenticator
	Tokens        auth.TokenVerifier
	Ready         ReadyProbe
	Logger        *slog.Logger
	Metrics       *obs.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Version  string
	// BaseURL overrides the issuer derived from each request.
	BaseURL   string
	RateLimit float64
	RateBurst int
	// TrustForwardedFor keys the rate limiter on X-Forwarded-For.
	TrustForwardedFor bool
}

// API - HTTP слой.
type API struct {
	router  chi.Router
	authn   *auth.Authenticator
	tokens  auth.TokenVerifier
	ready   ReadyProbe
	logger  *slog.Logger
	metrics *obs.Metrics
	limiter *RateLimiter
	version string
	baseURL string
}

func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		router:  chi.NewRouter(),
		authn:   opts.Authenticator,
		tokens:  opts.Tokens,
		ready:   opts.Ready,
		logger:  logger,
		metrics: opts.Metrics,
		version: opts.Version,
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
	}
	if opts.RateLimit > 0 {
		var limiterOpts []RateLimiterOption
		if opts.TrustForwardedFor {
			limiterOpts = append(limiterOpts, WithForwardedFor())
		}
		a.limiter = NewRateLimiter(opts.RateLimit, opts.RateBurst, limiterOpts...)
	}
	a.routes(opts.Gatherer)
	return a
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes(gatherer prometheus.Gatherer) {
	r := a.router

	// Middleware (внешний -> внутренний). The gate runs before any route.
	r.Use(
		RequestID,
		Logging(a.logger),
		Recover,
		a.metrics.Instrument,
		SecurityHeaders,
	)
	if a.tokens != nil {
		r.Use(Authenticate(a.tokens, a.metrics))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/info", a.Info)
	if gatherer != nil {
		r.Handle("/metrics", obs.Handler(gatherer))
	}

	if a.authn != nil {
		r.Group(func(r chi.Router) {
			if a.limiter != nil {
				r.Use(a.limiter.Middleware)
			}
			r.Post("/auth/signin", a.handleSignIn)
			r.Put("/auth/refresh/{username}", a.handleRefresh)
			r.Put("/auth/refresh/", a.handleRefresh)
			r.Post("/auth/createUser", a.handleCreateUser)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuthenticated)
		r.Get("/me", a.handleMe)
		r.With(RequireRole(auth.RoleAdmin)).Get("/admin/ping", a.handleAdminPing)
	})

	r.Handle("/users", DenyAll)
	r.Handle("/users/*", DenyAll)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "auth-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.FromContext(r.Context()).Warn("readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "auth-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// issuerFor derives the serving base URL (scheme://host) used as token issuer.
func (a *API) issuerFor(r *http.Request) string {
	if a.baseURL != "" {
		return a.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
		scheme = p
	}
	host := r.Host
	if h := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); h != "" {
		host = h
	}
	return scheme + "://" + host
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
