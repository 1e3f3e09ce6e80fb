package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"startup.org/internal/auth"
	"startup.org/internal/ids"
	"startup.org/internal/obs"
)

const (
	authMetadataKey      = "authorization"
	requestIDMetadataKey = "x-request-id"
)

// UnaryAuthInterceptor applies the authentication gate to unary calls. Like the
// HTTP gate it never rejects; it only binds a principal for valid tokens.
func UnaryAuthInterceptor(tokens auth.TokenVerifier, metrics *obs.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		principal, outcome, err := auth.Authenticate(ctx, tokens, firstMetadata(ctx, authMetadataKey))
		metrics.GateDecision("grpc", string(outcome))
		if outcome == auth.OutcomeAuthenticated {
			ctx = auth.ContextWithPrincipal(ctx, principal)
		} else if err != nil {
			obs.FromContext(ctx).Debug("bearer token rejected",
				slog.String("method", info.FullMethod),
				slog.String("outcome", string(outcome)),
			)
		}
		return handler(ctx, req)
	}
}

// UnaryRequirePrincipal rejects anonymous calls to the listed methods with Unauthenticated.
func UnaryRequirePrincipal(methods ...string) grpc.UnaryServerInterceptor {
	protected := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		protected[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := protected[info.FullMethod]; ok {
			if _, ok := auth.PrincipalFromContext(ctx); !ok {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}
		return handler(ctx, req)
	}
}

// UnaryLogging puts a request-scoped logger into the context and logs each call.
func UnaryLogging(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ids.FromHeader(firstMetadata(ctx, requestIDMetadataKey))
		reqLogger := l.With(slog.String("request_id", rid))
		ctx = obs.ContextWithRequestID(obs.IntoContext(ctx, reqLogger), rid)

		start := time.Now()
		resp, err := handler(ctx, req)
		reqLogger.LogAttrs(ctx, slog.LevelInfo, "grpc",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)
		return resp, err
	}
}

// UnaryRecover converts panics into codes.Internal.
func UnaryRecover() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				obs.FromContext(ctx).LogAttrs(ctx, slog.LevelError, "panic",
					slog.String("method", info.FullMethod),
					slog.Any("reason", rec),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
