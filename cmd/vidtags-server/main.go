// Command vidtags-server starts the video tagging gRPC server.
//
//	vidtags-server [flags]              serve
//	vidtags-server token -email <addr>  print an access token signed with the configured key
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/config"
	"github.com/and161185/vidtags/internal/events"
	"github.com/and161185/vidtags/internal/limiter"
	"github.com/and161185/vidtags/internal/metadata"
	"github.com/and161185/vidtags/internal/metadata/oembed"
	"github.com/and161185/vidtags/internal/metrics"
	"github.com/and161185/vidtags/internal/migrate"
	"github.com/and161185/vidtags/internal/repository"
	"github.com/and161185/vidtags/internal/repository/memory"
	"github.com/and161185/vidtags/internal/repository/postgres"
	"github.com/and161185/vidtags/internal/server/admin"
	grpcserver "github.com/and161185/vidtags/internal/server/grpc"
	"github.com/and161185/vidtags/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "token:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Log.Development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// issueToken mints a bearer token for environments without an identity provider.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	email := fs.String("email", "", "user email (token subject)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	key := fs.String("jwt-key", os.Getenv(config.EnvJWTKey), "HS256 signing key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, exp, err := service.NewTokenIssuer([]byte(*key), *ttl).Issue(*email)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n# expires %s\n", tok, exp.UTC().Format(time.RFC3339))
	return nil
}

type backend struct {
	store  repository.Store
	lim    limiter.Limiter
	checks map[string]admin.Checker
	close  func()
}

// openBackend opens the store and the auth limiter kept next to it.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	if cfg.Store == config.StoreMemory {
		b := backend{
			store:  memory.New(),
			checks: map[string]admin.Checker{"store": func(context.Context) error { return nil }},
			close:  func() {},
		}
		if cfg.Auth.MaxFails > 0 {
			b.lim = limiter.NewMemory(cfg.Auth.Policy())
		}
		return b, nil
	}
	mg, err := migrate.Open(cfg.DSN, logger.Named("migrate"))
	if err != nil {
		return backend{}, fmt.Errorf("migrate: %w", err)
	}
	if err := mg.Up(ctx); err != nil {
		_ = mg.Close()
		return backend{}, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		_ = mg.Close()
		return backend{}, fmt.Errorf("pgxpool: %w", err)
	}
	b := backend{
		store:  db,
		checks: map[string]admin.Checker{"store": db.Ping, "schema": mg.Check},
		close: func() {
			db.Close()
			_ = mg.Close()
		},
	}
	if cfg.Auth.MaxFails > 0 {
		b.lim = limiter.NewPG(db.Pool, cfg.Auth.Policy())
	}
	return b, nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()
	store := be.store

	m := metrics.New()
	c := cache.New(m)

	var meta metadata.Provider = metadata.Static{}
	if cfg.Metadata.Endpoint != "" {
		meta = oembed.New(cfg.Metadata.OEmbed(), logger.Named("oembed"), m)
	}

	disp := events.NewDispatcher(logger.Named("events"), m, events.Options{
		Workers: cfg.Events.Workers,
		Buffer:  cfg.Events.Buffer,
	})
	orch := service.NewOrchestrator(service.Deps{
		Store:    store,
		Metadata: meta,
		Cache:    c,
		Events:   disp,
		Log:      logger.Named("orchestrator"),
		Metrics:  m,
		MaxBatch: cfg.MaxBatch,
	})
	orch.Subscribe(disp)
	rec := service.NewReconciler(store, c, logger.Named("reconciler"), m)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
		),
	}
	if !cfg.Dev {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	app := grpcserver.New(grpcserver.Deps{
		Mutations: orch,
		Queries:   service.NewQueryService(store, c),
		Users:     service.NewUserService(store.Repos().Users),
		Sweeper:   rec,
		SignKey:   []byte(cfg.JWTKey),
		Admins:    cfg.Admins,
		Limiter:   be.lim,
	})
	app.Register(s)

	// Health & reflection (dev)
	hs := health.NewServer()
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Dev))
		errCh <- s.Serve(lis)
	}()

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		adminSrv = &http.Server{
			Addr: cfg.AdminAddr,
			Handler: admin.NewRouter(admin.Options{
				Log:     logger.Named("admin"),
				Metrics: m.Handler(),
				Checks:  be.checks,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin listening", zap.String("addr", cfg.AdminAddr))
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	// joined before the deferred store close
	stopRec := func() {}
	if cfg.ReconcileInterval > 0 {
		stopRec = rec.Start(cfg.ReconcileInterval)
	}
	defer stopRec()

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	hs.Shutdown()

	// graceful shutdown
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		s.Stop()
	}
	stopRec()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := disp.Shutdown(sctx); err != nil {
		logger.Warn("event dispatcher did not drain", zap.Error(err))
	}
	if adminSrv != nil {
		_ = adminSrv.Shutdown(sctx)
	}
	return runErr
}
