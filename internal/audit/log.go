// Package audit records security relevant events (sign-in, refresh, sign-up)
// as structured log lines tagged type=audit.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"startup.org/internal/auth"
	"startup.org/internal/obs"
)

const (
	EventSignIn       = "auth.signin"
	EventSignInFailed = "auth.signin.failed"
	EventRefresh      = "auth.refresh"
	EventRefreshFail  = "auth.refresh.failed"
	EventSignUp       = "auth.signup"
	EventSignUpFailed = "auth.signup.failed"
)

// LogEvent writes an audit entry enriched with the request id and the principal
// found in ctx. Field values must never contain secrets.
func LogEvent(ctx context.Context, event string, fields ...slog.Attr) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
	}
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		attrs = append(attrs, slog.String("actor", p.Username))
	}
	attrs = append(attrs, slog.Attr{Key: "fields", Value: slog.GroupValue(fields...)})

	obs.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
