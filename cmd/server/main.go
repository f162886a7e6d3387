// server runs the job-board auth API: REST on HTTP_ADDR and grpc.health.v1 on GRPC_ADDR.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	adminhandler "github.com/jfkeci/job-board-sub000/internal/admin/handler"
	"github.com/jfkeci/job-board-sub000/internal/audit"
	auditrepo "github.com/jfkeci/job-board-sub000/internal/audit/repository"
	"github.com/jfkeci/job-board-sub000/internal/config"
	"github.com/jfkeci/job-board-sub000/internal/db"
	"github.com/jfkeci/job-board-sub000/internal/health"
	healthhandler "github.com/jfkeci/job-board-sub000/internal/health/handler"
	identityhandler "github.com/jfkeci/job-board-sub000/internal/identity/handler"
	identityservice "github.com/jfkeci/job-board-sub000/internal/identity/service"
	"github.com/jfkeci/job-board-sub000/internal/memstore"
	rtrepo "github.com/jfkeci/job-board-sub000/internal/refreshtoken/repository"
	rtservice "github.com/jfkeci/job-board-sub000/internal/refreshtoken/service"
	"github.com/jfkeci/job-board-sub000/internal/security"
	"github.com/jfkeci/job-board-sub000/internal/server"
	sessionrepo "github.com/jfkeci/job-board-sub000/internal/session/repository"
	sessionservice "github.com/jfkeci/job-board-sub000/internal/session/service"
	"github.com/jfkeci/job-board-sub000/internal/telemetry"
	telemetryotel "github.com/jfkeci/job-board-sub000/internal/telemetry/otel"
	"github.com/jfkeci/job-board-sub000/internal/telemetry/producer"
	userrepo "github.com/jfkeci/job-board-sub000/internal/user/repository"
)

const (
	serviceName     = "jobboard-auth"
	shutdownTimeout = 15 * time.Second
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// stores are the repositories selected by STORAGE_BACKEND and REFRESH_TOKEN_BACKEND.
type stores struct {
	users    identityservice.UserRepo
	sessions sessionrepo.Repository
	refresh  rtrepo.Repository
	audit    auditrepo.Repository // nil on the memory backend
	db       *sql.DB              // set when any backend is postgres
	redis    *redis.Client        // set when refresh tokens live in Redis

	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure,
		telemetryotel.WithEnvironment(cfg.Env))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Audit fan-out: Postgres row, OTel log record, and Kafka when brokers are configured.
	dispatcher := telemetry.NewDispatcher()
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
	}
	auditLogger := audit.NewLogger(st.audit, dispatcher, emitters...)

	metrics, err := telemetry.NewAuthMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	refresh := rtservice.NewStore(st.refresh)
	managerOpts := []sessionservice.Option{}
	if st.redis != nil {
		managerOpts = append(managerOpts, sessionservice.WithTokenPurger(refresh))
	}
	sessions := sessionservice.NewManager(st.sessions, cfg.SessionTTL, managerOpts...)

	tokens := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL)
	hasher := security.NewHasher(security.PasswordParams{
		MemoryKB:    uint32(cfg.Argon2MemoryKB),
		Time:        uint32(cfg.Argon2Time),
		Parallelism: uint8(cfg.Argon2Parallelism),
	}, cfg.PasswordHashConcurrency)

	svcOpts := []identityservice.Option{
		identityservice.WithAudit(auditLogger),
		identityservice.WithMetrics(metrics),
	}
	authService := identityservice.NewAuthService(st.users, sessions, refresh, tokens, hasher, cfg.RefreshTTL, svcOpts...)
	impersonation := identityservice.NewImpersonationService(st.users, sessions, refresh, tokens, cfg.ImpersonationTTL,
		identityservice.RedirectTargets{ClientDashboard: cfg.ClientDashboardURL, PublicSite: cfg.PublicSiteURL}, svcOpts...)

	checker := health.NewChecker()
	if st.db != nil {
		checker.Add("postgres", st.db)
	}
	if st.redis != nil {
		rdb := st.redis
		checker.Add("redis", health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}

	var auditLister adminhandler.AuditLister
	if st.audit != nil {
		auditLister = st.audit
	}
	router := server.NewRouter(server.HTTPDeps{
		APIPrefix: cfg.APIPrefix,
		Tokens:    tokens,
		Sessions:  sessions,
		Auth:      identityhandler.NewHandler(authService),
		Admin:     adminhandler.NewHandler(impersonation, authService, auditLister),
		Health:    healthhandler.NewHandler(checker),
	})
	httpServer := server.NewHTTPServer(cfg.HTTPAddr, router)

	grpcServer := server.NewGRPCServer()
	healthServer := server.RegisterServices(grpcServer, server.Deps{Reflection: !cfg.IsProduction()})
	syncer := healthhandler.NewGRPCSyncer(checker, healthServer, 0)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "refresh_tokens", cfg.RefreshTokenBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("grpc server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		syncer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		sessions.Wait()
		if err := dispatcher.Drain(shutdownCtx); err != nil {
			slog.Warn("audit dispatcher drain", "error", err)
		}
		if kafkaProducer != nil {
			if err := kafkaProducer.Close(); err != nil {
				slog.Warn("kafka producer close", "error", err)
			}
		}
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
		return nil
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	var conn *sql.DB
	if cfg.StorageBackend == config.BackendPostgres || cfg.RefreshTokenBackend == config.BackendPostgres {
		var err error
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st.closers = append(st.closers, conn.Close)
		if err := conn.PingContext(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		st.db = conn
	}

	var mem *memstore.Store
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		st.users = userrepo.NewPostgresRepository(conn)
		st.sessions = sessionrepo.NewPostgresRepository(conn)
		st.audit = auditrepo.NewPostgresRepository(conn)
	case config.BackendMemory:
		slog.Warn("memory storage backend: data is lost on restart", "dev_tenant_id", memstore.DevTenantID)
		mem = memstore.New()
		mem.AddTenant(memstore.DevTenantID)
		st.users = mem.Users()
		st.sessions = mem.Sessions()
	}

	switch cfg.RefreshTokenBackend {
	case config.BackendPostgres:
		st.refresh = rtrepo.NewPostgresRepository(conn)
	case config.BackendMemory:
		st.refresh = mem.RefreshTokens()
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		st.closers = append(st.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			st.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		st.redis = rdb
		st.refresh = rtrepo.NewRedisRepository(rdb, "")
	}
	return st, nil
}
