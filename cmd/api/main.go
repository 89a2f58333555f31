// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/adapters/pdf"
	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/adapters/storage"
	"github.com/ammerola/erp-admin/internal/core/services"
	"github.com/ammerola/erp-admin/internal/handlers"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
	"github.com/ammerola/erp-admin/internal/pkg/config"
	"github.com/ammerola/erp-admin/internal/pkg/logger"
	"github.com/ammerola/erp-admin/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("info", "json").Logger

	slogger.Info("starting erp admin api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	secrets, err := config.NewSecretStore(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to create secret store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := config.ApplySecrets(ctx, cfg, secrets); err != nil {
		slogger.Error("failed to apply secrets", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
	)

	if cfg.Database.AutoMigrate && !cfg.IsProduction() {
		if err := runMigrations(ctx, cfg, slogger); err != nil {
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go func() {
		if err := deps.eventHub.Run(hubCtx); err != nil {
			slogger.Error("backup event hub stopped", slog.String("error", err.Error()))
		}
	}()

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		// Websocket connections are hijacked and ignored by Shutdown.
		stopHub()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	routes         handlers.Routes
	eventHub       *handlers.EventHub
}

func (d *dependencies) cleanup() {
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)
	database, err := db.NewDatabase(ctx, db.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	logger.Info("connecting to Redis", slog.String("address", cfg.GetRedisAddress()))
	redisClient := newRedisClient(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	deps.redisClient = redisClient

	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	events := redis_a.NewEventBus(redisClient, logger)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)
	queue := workers.NewEnqueuer(deps.asynqClient)

	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	invoiceRepo := db.NewInvoiceRepository(database, logger)
	leadRepo := db.NewLeadRepository(database, logger)
	employeeRepo := db.NewEmployeeRepository(database, logger)
	roleRepo := db.NewRoleRepository(database, logger)
	settingsRepo := db.NewSettingsRepository(database, logger)
	backupRepo := db.NewBackupRepository(database, logger)

	invoiceService := services.NewInvoiceService(invoiceRepo, settingsRepo, pdf.NewRenderer(), objects, queue, cache, logger)
	leadService := services.NewLeadService(leadRepo, employeeRepo, settingsRepo, queue, cache, logger)
	roleService := services.NewRoleService(roleRepo, cache, logger)
	settingsService := services.NewSettingsService(settingsRepo, logger)
	backupService := services.NewBackupService(backupRepo, services.BackupSources{
		Invoices:  invoiceRepo,
		Leads:     leadRepo,
		Roles:     roleRepo,
		Employees: employeeRepo,
		Settings:  settingsRepo,
	}, objects, queue, events, logger)

	if _, err := roleService.EnsureAdministrator(ctx); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to ensure administrator role: %w", err)
	}

	// Mail is sent by the worker.
	if !cfg.MailConfigured() && cfg.IsProduction() {
		logger.Warn("SMTP is not configured, invoice e-mails will only be logged by the worker")
	}

	health := handlers.NewHealthHandler(handlers.HealthDeps{
		Database: database,
		Redis:    redisClient,
		Storage:  objects,
		Queues:   deps.asynqInspector,
	}, cfg, logger)

	deps.eventHub = handlers.NewEventHub(events, cfg.Security.AllowedOrigins, logger)
	deps.routes = handlers.Routes{
		Invoices:  handlers.NewInvoiceHandler(invoiceService, logger),
		Leads:     handlers.NewLeadHandler(leadService, cfg.Server.MaxBodyBytes, logger),
		Roles:     handlers.NewRoleHandler(roleService, logger),
		Settings:  handlers.NewSettingsHandler(settingsService, backupService, logger),
		Dashboard: handlers.NewDashboardHandler(invoiceService, leadService, backupService, cache, logger),
		Health:    health,
		Events:    deps.eventHub,
		Access:    roleService,
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
	})
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	router := handlers.NewRouter(deps.routes, handlers.RouterConfig{
		Auth: middleware.AuthConfig{
			Secret:   []byte(cfg.Security.JWTSecret),
			Issuer:   cfg.Security.JWTIssuer,
			Disabled: cfg.Security.AuthDisabled && !cfg.IsProduction(),
		},
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitDuration: cfg.Security.RateLimitDuration,
		AllowedOrigins:    cfg.Security.AllowedOrigins,
		SecureHeaders:     cfg.Security.SecureHeaders,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	}, logger)

	return &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")
	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL:      cfg.GetDatabaseURL(),
		TableName:        "schema_migrations",
		SchemaName:       "public",
		StatementTimeout: time.Minute,
	}, logger, 3)
}
