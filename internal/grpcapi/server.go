// Package grpcapi exposes the gRPC surface: the standard health service behind the
// same authentication gate as the HTTP API.
package grpcapi

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"startup.org/internal/auth"
	"startup.org/internal/obs"
)

// ReadinessChecker reports whether dependencies (the database) are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Options - параметры сборки gRPC сервера.
type Options struct {
	Tokens    auth.TokenVerifier
	Readiness ReadinessChecker
	Logger    *slog.Logger
	Metrics   *obs.Metrics
	// Protected lists full method names that require an authenticated principal.
	Protected []string
}

// NewServer builds a grpc.Server with the interceptor chain and health service registered.
func NewServer(opts Options) *grpc.Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chain := []grpc.UnaryServerInterceptor{
		UnaryRecover(),
		UnaryLogging(logger),
	}
	if opts.Tokens != nil {
		chain = append(chain, UnaryAuthInterceptor(opts.Tokens, opts.Metrics))
	}
	if len(opts.Protected) > 0 {
		chain = append(chain, UnaryRequirePrincipal(opts.Protected...))
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	healthpb.RegisterHealthServer(srv, &healthServer{readiness: opts.Readiness})
	return srv
}

// healthServer answers grpc.health.v1 checks from the readiness probe.
type healthServer struct {
	healthpb.UnimplementedHealthServer
	readiness ReadinessChecker
}

// Check evaluates readiness. On failure returns gRPC Unavailable error.
func (s *healthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if s.readiness != nil {
		if err := s.readiness.Check(ctx); err != nil {
			return nil, status.Errorf(codes.Unavailable, "not ready: %v", err)
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
