package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rosterhq/roster/pkg/api"
	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/config"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
	"github.com/rosterhq/roster/pkg/projects"
	"github.com/rosterhq/roster/pkg/sso"
	"github.com/rosterhq/roster/pkg/storage"
	"github.com/rosterhq/roster/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"port":    cfg.Server.Port,
		"driver":  cfg.Database.Driver,
		"storage": cfg.Storage.Type,
	}).Info("starting roster")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	db, authStore, orgService, projectService, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}

	avatars, err := storage.New(storage.Config{
		Type:           cfg.Storage.Type,
		FilesystemRoot: cfg.Storage.FilesystemRoot,
		S3Endpoint:     cfg.Storage.S3Endpoint,
		S3Region:       cfg.Storage.S3Region,
		S3Bucket:       cfg.Storage.S3Bucket,
		S3AccessKey:    cfg.Storage.S3AccessKey,
		S3SecretKey:    cfg.Storage.S3SecretKey,
		S3UsePathStyle: cfg.Storage.S3UsePathStyle,
	})
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, continuing")
		}
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(authStore, orgService, projectService, avatars, logger, metrics)
	server.SetInviteTTL(cfg.Invites.TTL)

	var auditRecorder audit.Recorder
	if db != nil {
		if err := audit.RunMigrations(ctx, db); err != nil {
			return err
		}
		auditRecorder = audit.NewPostgresRecorder(db)
	} else {
		auditRecorder = audit.NewMemoryRecorder()
	}
	server.SetAuditRecorder(auditRecorder)

	// Reload dynamic settings when the config file changes. Most settings
	// need a restart; the watcher covers the ones that do not.
	if path := os.Getenv("ROSTER_CONFIG_FILE"); path != "" {
		watcher, err := config.NewWatcher(path, logger, func(next *config.Config) {
			server.SetInviteTTL(next.Invites.TTL)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestID(logger))
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	rateLimitCtx, cancelRateLimit := context.WithCancel(ctx)
	defer cancelRateLimit()
	if cfg.RateLimit.Enabled {
		limitCfg := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if redisClient != nil {
			router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient, limitCfg, metrics, logger).Handler)
		} else {
			limiter := middleware.NewRateLimiter(limitCfg)
			limiter.StartCleanup(rateLimitCtx)
			router.Use(middleware.NewRateLimitMiddleware(limiter, metrics).Handler)
		}
	}

	server.RegisterRoutes(router)

	if cfg.SSO.Enabled {
		provider, err := sso.NewOIDCProvider(ctx, sso.Config{
			IssuerURL:    cfg.SSO.IssuerURL,
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.RedirectURL,
		})
		if err != nil {
			return err
		}
		sso.NewHandlers(provider, authStore, orgService, logger, metrics).RegisterRoutes(router)
		logger.WithField("issuer", cfg.SSO.IssuerURL).Info("SSO sign-in enabled")
	}

	cleanup := worker.NewCleanupWorker(cfg.Invites.CleanupSchedule, orgService, authStore, nil, metrics)
	if err := cleanup.Start(); err != nil {
		return err
	}

	// Health and metrics on a separate listener so probes and scrapes never
	// compete with API traffic.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cleanup.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if db != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return db.Close()
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(shutdown.WaitForShutdown)

	return group.Wait()
}

// openStores opens the configured database and builds the stores over it.
// Driver "none" serves everything from memory, which is useful for local
// development and demos.
func openStores(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*sql.DB, auth.Store, orgs.Service, projects.Service, error) {
	if cfg.Database.Driver == "none" {
		logger.Warn("running on in-memory stores, all data is lost on restart")
		return nil, auth.NewMemoryStore(), orgs.NewMemoryService(), projects.NewMemoryService(), nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, nil, nil, err
	}

	for _, migrate := range []func(context.Context, *sql.DB) error{
		auth.RunMigrations,
		orgs.RunMigrations,
		projects.RunMigrations,
	} {
		if err := migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
	}

	return db, auth.NewPostgresStore(db), orgs.NewPostgresService(db), projects.NewPostgresService(db), nil
}
