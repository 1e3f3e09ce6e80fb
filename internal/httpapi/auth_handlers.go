package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"startup.org/internal/audit"
	"startup.org/internal/auth"
	"startup.org/internal/obs"
)

const invalidClientRequest = "Invalid client request!"

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullname"`
}

type userResponse struct {
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

type principalResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	creds := auth.Credentials{Username: req.Username, Password: req.Password}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		a.metrics.AuthAttempt("signin", "rejected")
		writeError(w, r, http.StatusForbidden, invalidClientRequest)
		return
	}

	ctx := auth.ContextWithIssuer(r.Context(), a.issuerFor(r))
	pair, err := a.authn.SignIn(ctx, creds)
	if err != nil {
		a.metrics.AuthAttempt("signin", "failed")
		_ = audit.LogEvent(ctx, audit.EventSignInFailed, slog.String("username", creds.Username))
		handleAuthError(w, r, err)
		return
	}

	a.metrics.AuthAttempt("signin", "ok")
	a.metrics.TokensIssued("signin")
	_ = audit.LogEvent(ctx, audit.EventSignIn,
		slog.String("username", pair.Username),
		slog.Time("expires_at", pair.ExpiresAt),
	)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	header := r.Header.Get(authHeader)
	if username == "" || strings.TrimSpace(header) == "" {
		a.metrics.AuthAttempt("refresh", "rejected")
		writeError(w, r, http.StatusForbidden, invalidClientRequest)
		return
	}

	ctx := auth.ContextWithIssuer(r.Context(), a.issuerFor(r))
	pair, err := a.authn.Refresh(ctx, username, header)
	if err != nil {
		a.metrics.AuthAttempt("refresh", "failed")
		_ = audit.LogEvent(ctx, audit.EventRefreshFail, slog.String("username", username))
		handleAuthError(w, r, err)
		return
	}

	a.metrics.AuthAttempt("refresh", "ok")
	a.metrics.TokensIssued("refresh")
	_ = audit.LogEvent(ctx, audit.EventRefresh,
		slog.String("username", pair.Username),
		slog.Time("expires_at", pair.ExpiresAt),
	)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.authn.SignUp(r.Context(), auth.SignUp{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		a.metrics.AuthAttempt("signup", "failed")
		_ = audit.LogEvent(r.Context(), audit.EventSignUpFailed, slog.String("username", req.Username))
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, "username, password and fullname are required and must fit column limits")
			return
		}
		handleAuthError(w, r, err)
		return
	}

	a.metrics.AuthAttempt("signup", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventSignUp, slog.String("username", user.Username))
	writeJSON(w, http.StatusCreated, userResponse{Username: user.Username, FullName: user.FullName})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, principalResponse{Username: principal.Username, Roles: principal.RoleList()})
}

func (a *API) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	obs.FromContext(r.Context()).Debug("admin ping", slog.String("actor", principal.Username))
	writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
}

// handleAuthError maps auth sentinels to HTTP status codes. Malformed and forged
// tokens are reported identically.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusForbidden, invalidClientRequest)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrPrincipalNotFound):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrMalformed), errors.Is(err, auth.ErrInvalidSignature), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrExpired):
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "user already exists")
	default:
		obs.FromContext(r.Context()).Error("auth request failed", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
