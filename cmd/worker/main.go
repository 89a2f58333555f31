// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/adapters/mailer"
	"github.com/ammerola/erp-admin/internal/adapters/pdf"
	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/adapters/storage"
	"github.com/ammerola/erp-admin/internal/core/services"
	"github.com/ammerola/erp-admin/internal/pkg/config"
	"github.com/ammerola/erp-admin/internal/pkg/logger"
	"github.com/ammerola/erp-admin/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json").Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	secrets, err := config.NewSecretStore(ctx, cfg, slogger)
	if err == nil {
		err = config.ApplySecrets(ctx, cfg, secrets)
	}
	if err != nil {
		slogger.Error("failed to load secrets", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	// Workers need fewer connections than the API.
	dbConfig := db.ConfigFrom(cfg.Database)
	dbConfig.MaxConnections = 10
	dbConfig.MinConnections = 2
	database, err := db.NewDatabase(ctx, dbConfig, slogger)
	if err != nil {
		slogger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	processors, asynqClient, err := buildProcessors(ctx, cfg, database, redisClient, slogger)
	if err != nil {
		slogger.Error("failed to initialize processors", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer asynqClient.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    workers.HandleError(slogger),
		RetryDelayFunc:  workers.ExponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: func(err error) {
			if err != nil {
				slogger.Error("worker health check failed", slog.String("error", err.Error()))
			}
		},
		Logger: workers.NewLogger(slogger),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: workers.NewLogger(slogger),
	})
	if err := workers.RegisterSchedule(scheduler, workers.Schedule(cfg), slogger); err != nil {
		slogger.Error("failed to register schedule", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(workers.NewServeMux(processors, slogger)); err != nil {
			slogger.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			slogger.Error("failed to run scheduler", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

func buildProcessors(
	ctx context.Context,
	cfg *config.Config,
	database *db.Database,
	redisClient *redis.Client,
	logger *slog.Logger,
) (workers.Processors, *asynq.Client, error) {
	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return workers.Processors{}, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	})
	queue := workers.NewEnqueuer(asynqClient)
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	events := redis_a.NewEventBus(redisClient, logger)
	mail := mailer.New(cfg, logger)

	invoiceRepo := db.NewInvoiceRepository(database, logger)
	leadRepo := db.NewLeadRepository(database, logger)
	employeeRepo := db.NewEmployeeRepository(database, logger)
	roleRepo := db.NewRoleRepository(database, logger)
	settingsRepo := db.NewSettingsRepository(database, logger)

	invoiceService := services.NewInvoiceService(invoiceRepo, settingsRepo, pdf.NewRenderer(), objects, queue, cache, logger)
	leadService := services.NewLeadService(leadRepo, employeeRepo, settingsRepo, queue, cache, logger)
	settingsService := services.NewSettingsService(settingsRepo, logger)
	backupService := services.NewBackupService(db.NewBackupRepository(database, logger), services.BackupSources{
		Invoices:  invoiceRepo,
		Leads:     leadRepo,
		Roles:     roleRepo,
		Employees: employeeRepo,
		Settings:  settingsRepo,
	}, objects, queue, events, logger)

	return workers.Processors{
		Backup:       workers.NewBackupProcessor(backupService, settingsService, mail, cfg.Backup.Retention, logger),
		Invoice:      workers.NewInvoiceProcessor(invoiceService, logger),
		Notification: workers.NewNotificationProcessor(invoiceService, settingsService, mail, logger),
		Analytics:    workers.NewAnalyticsProcessor(leadService, logger),
	}, asynqClient, nil
}
