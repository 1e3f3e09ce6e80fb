package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"startup.org/internal/auth"
	"startup.org/internal/config"
	"startup.org/internal/grpcapi"
	"startup.org/internal/httpapi"
	"startup.org/internal/migrate"
	"startup.org/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config")
		autoMigrate = flag.Bool("migrate", false, "Apply embedded migrations and seeds on startup")
	)
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := obs.NewLogger(cfg.Env, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *autoMigrate); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, autoMigrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs.RegisterBuildInfo(reg, version, commit)
	metrics := obs.NewMetrics(reg)

	db, users, err := openStore(ctx, cfg.DB, logger, autoMigrate)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	codec, err := auth.NewCodec(cfg.Auth.Secret)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(codec, auth.StoreResolver(users), auth.TokenConfig{
		AccessTTL: cfg.Auth.AccessTTL(),
		Issuer:    cfg.Auth.Issuer,
	})
	if err != nil {
		return err
	}
	authenticator, err := auth.NewAuthenticator(users, auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}, tokens)
	if err != nil {
		return err
	}

	ready := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(httpapi.Options{
		Authenticator:     authenticator,
		Tokens:            tokens,
		Ready:             ready,
		Logger:            logger,
		Metrics:           metrics,
		Gatherer:          reg,
		Version:           version,
		BaseURL:           cfg.HTTP.BaseURL,
		RateLimit:         cfg.HTTP.RateLimit,
		RateBurst:         cfg.HTTP.RateBurst,
		TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	grpcSrv := grpcapi.NewServer(grpcapi.Options{
		Tokens:    tokens,
		Readiness: ready,
		Logger:    logger,
		Metrics:   metrics,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		errCh <- serveGRPC(grpcSrv, cfg.GRPC.Addr(), logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	grpcSrv.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func serveGRPC(srv *grpc.Server, addr string, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("grpc listening", slog.String("addr", addr))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// openStore returns the PostgreSQL store when a DSN is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.DBConfig, logger *slog.Logger, autoMigrate bool) (*sql.DB, auth.UserStore, error) {
	if cfg.DSN == "" {
		logger.Warn("DATABASE_URL not set, users are kept in memory")
		return nil, auth.NewMemoryStore(), nil
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if autoMigrate {
		mgr := migrate.NewManager(db, migrate.Files)
		applied, err := mgr.Up(ctx)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		seeded, err := mgr.Seed(ctx)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("schema up to date", slog.Any("migrations", applied), slog.Any("seeds", seeded))
	}
	return db, auth.NewPGStore(db), nil
}
