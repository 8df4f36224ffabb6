package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mini-event-api/api/swagger"
	"github.com/noah-isme/mini-event-api/internal/handler"
	"github.com/noah-isme/mini-event-api/internal/repository"
	"github.com/noah-isme/mini-event-api/internal/service"
	"github.com/noah-isme/mini-event-api/pkg/cache"
	"github.com/noah-isme/mini-event-api/pkg/config"
	"github.com/noah-isme/mini-event-api/pkg/database"
	"github.com/noah-isme/mini-event-api/pkg/export"
	"github.com/noah-isme/mini-event-api/pkg/jobs"
	"github.com/noah-isme/mini-event-api/pkg/logger"
	"github.com/noah-isme/mini-event-api/pkg/storage"
)

// @title Mini Event API
// @version 1.0.0
// @description Event scheduler with categories, archiving, search and exports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("database migration failed", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	eventRepo := repository.NewEventRepository(db, metrics)
	if n, err := eventRepo.BackfillSearchText(ctx); err != nil {
		logr.Fatal("search index backfill failed", zap.Error(err))
	} else if n > 0 {
		logr.Info("backfilled event search text", zap.Int("count", n))
	}
	checks := map[string]handler.Pinger{"database": eventRepo}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, list cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			checks["redis"] = redisRepo
		}
	}
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	validate := validator.New()
	service.RegisterEventValidations(validate)

	classifier := service.NewClassifier(cfg.Classifier.WorkKeywords, cfg.Classifier.PersonalKeywords)
	events := service.NewEventService(eventRepo, cacheService, classifier, metrics, validate, logr)

	auth := service.NewAuthService(service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	}, logr)

	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Analytics: repository.NewAnalyticsRepository(db, metrics),
		Cache:     cacheService,
		Logger:    logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:            cfg.Dashboard.CacheTTL,
			UpcomingEventsLimit: cfg.Dashboard.UpcomingLimit,
			Location:            exportLocation(cfg.Exports.Timezone, logr),
		},
	})

	deps := routerDeps{
		Config:  cfg,
		Logger:  logr,
		Events:  events,
		Dash:    dashboard,
		Auth:    auth,
		Metrics: metrics,
		Checks:  checks,
	}

	var queue *jobs.Queue
	if cfg.Exports.Enabled {
		exports, jobService, q, err := buildExports(ctx, cfg, db, events, metrics, logr)
		if err != nil {
			logr.Fatal("export pipeline init failed", zap.Error(err))
		}
		deps.Exports = exports
		deps.Jobs = jobService
		queue = q
	}

	if cfg.AutoArchive.Enabled {
		sweeper, err := service.NewArchiveSweeper(events, service.ArchiveSweeperConfig{
			Schedule: cfg.AutoArchive.Schedule,
			After:    cfg.AutoArchive.After,
			Location: exportLocation(cfg.Exports.Timezone, logr),
		}, logr)
		if err != nil {
			logr.Fatal("auto archive init failed", zap.Error(err), zap.String("schedule", cfg.AutoArchive.Schedule))
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

func buildExports(ctx context.Context, cfg *config.Config, db *sqlx.DB, events *service.EventService, metrics *service.MetricsService, logr *zap.Logger) (*service.ExportService, *service.ExportJobService, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	ics := export.NewICSExporter(exportLocation(cfg.Exports.Timezone, logr), cfg.Exports.DefaultDuration)

	exporter := service.NewExportService(events, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter(), ics)

	jobRepo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(jobRepo, exporter, metrics, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	queue.Start(ctx)

	jobService := service.NewExportJobService(jobRepo, queue, exporter, metrics, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	if n := jobService.RecoverPendingJobs(ctx); n > 0 {
		logr.Info("re-enqueued pending export jobs", zap.Int("count", n))
	}
	jobService.StartCleanup(ctx)

	return exporter, jobService, queue, nil
}

func exportLocation(name string, logr *zap.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logr.Warn("unknown timezone, falling back to UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}
