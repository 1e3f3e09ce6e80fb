package httpapi

import (
	"log/slog"
	"net/http"

	"startup.org/internal/auth"
	"startup.org/internal/obs"
)

const authHeader = "Authorization"

// Authenticate is the authentication gate. It never rejects a request: a missing,
// invalid or expired token, or a subject the resolver cannot find, leaves the
// request anonymous. A valid token binds the resolved principal to the context.
func Authenticate(tokens auth.TokenVerifier, metrics *obs.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, outcome, err := auth.Authenticate(ctx, tokens, r.Header.Get(authHeader))
			metrics.GateDecision("http", string(outcome))

			switch outcome {
			case auth.OutcomeAuthenticated:
				next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(ctx, principal)))
				return
			case auth.OutcomeUnresolved:
				obs.FromContext(ctx).Warn("token subject not resolved", slog.String("error", err.Error()))
			case auth.OutcomeInvalid, auth.OutcomeExpired:
				obs.FromContext(ctx).Debug("bearer token rejected", slog.String("outcome", string(outcome)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous requests with 401 and principals lacking role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !principal.HasRole(role) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DenyAll answers 403 to everybody, authenticated or not.
var DenyAll = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "forbidden")
})
