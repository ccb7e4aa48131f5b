package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/offer-pipeline-api/docs"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/cache"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/database"
	"github.com/straye-as/offer-pipeline-api/internal/datawarehouse"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	"github.com/straye-as/offer-pipeline-api/internal/http/handler"
	"github.com/straye-as/offer-pipeline-api/internal/http/middleware"
	"github.com/straye-as/offer-pipeline-api/internal/http/router"
	"github.com/straye-as/offer-pipeline-api/internal/jobs"
	"github.com/straye-as/offer-pipeline-api/internal/logger"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"github.com/straye-as/offer-pipeline-api/internal/storage"
	"github.com/straye-as/offer-pipeline-api/internal/tracing"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 30 * time.Second
	archiveTimeout  = 10 * time.Minute
	bookingTimeout  = 5 * time.Minute
)

// @title Offer Pipeline API
// @version 1.0
// @description Sales offer pipeline with stage rules, activity trail and target reporting
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := database.NewDatabase(ctx, &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	reportCache := cache.New(ctx, &cfg.Cache, log)

	archiveStorage, err := storage.NewStorage(ctx, &cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The data warehouse is optional; the app runs without booking sync
	dwClient, err := datawarehouse.NewClient(ctx, &cfg.DataWarehouse, log)
	if err != nil {
		log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
		dwClient = nil
	}

	eventManager := events.NewManager(true, log)

	// Repositories
	offerRepo := repository.NewOfferRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	contactRepo := repository.NewContactRepository(db)
	zoneRepo := repository.NewZoneRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	sparePartRepo := repository.NewSparePartRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	stageRemarkRepo := repository.NewStageRemarkRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	userRepo := repository.NewUserRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)

	// Services
	txRunner := service.NewTxRunner(db, &cfg.Pipeline, log)
	recorder := service.NewAuditRecorder(activityRepo, stageRemarkRepo, log)
	policy := stage.Policy{
		RestrictLostSources: cfg.Pipeline.RestrictLostSources,
		AllowRegression:     cfg.Pipeline.AllowRegression,
	}

	offerService := service.NewOfferService(
		txRunner,
		offerRepo,
		customerRepo,
		contactRepo,
		zoneRepo,
		assetRepo,
		sparePartRepo,
		service.NewNumberSequenceService(numberSequenceRepo, log),
		recorder,
		policy,
		eventManager,
		log,
	)
	activityService := service.NewActivityService(activityRepo, archiveStorage, log)
	targetService := service.NewTargetService(txRunner, targetRepo, zoneRepo, userRepo, recorder, eventManager, log)
	reportService := service.NewReportService(offerRepo, targetRepo, activityRepo, reportCache, cfg.Cache.TTL(), log)
	reportService.SubscribeInvalidation(eventManager)
	referenceService := service.NewReferenceService(zoneRepo, customerRepo, sparePartRepo, log)
	sessionService := service.NewSessionService(txRunner, userRepo, recorder, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(&cfg.Auth, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		reportCache,
		dwClient,
		authMiddleware,
		rateLimiter,
		handler.NewOfferHandler(offerService, log),
		handler.NewActivityHandler(activityService, log),
		handler.NewTargetHandler(targetService, reportService, log),
		handler.NewReportHandler(reportService, log),
		handler.NewReferenceHandler(referenceService, log),
		handler.NewAuthHandler(sessionService, log),
	)

	scheduler := jobs.NewScheduler(log)
	if cfg.Jobs.ArchiveEnabled {
		if err := jobs.RegisterArchiveJob(scheduler, activityService, log, cfg.Jobs.ArchiveCron, archiveTimeout); err != nil {
			log.Error("Failed to register activity archive job", zap.Error(err))
		}
	}
	if dwClient != nil {
		if err := jobs.RegisterBookingSyncJob(scheduler, offerService, dwClient, log, cfg.DataWarehouse.SyncCron, bookingTimeout); err != nil {
			log.Error("Failed to register SAP booking sync job", zap.Error(err))
		}
	} else {
		log.Info("SAP booking sync disabled", zap.Bool("dw_enabled", cfg.DataWarehouse.Enabled))
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown gracefully", zap.Error(err))
	}

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler did not stop in time", zap.Error(err))
	} else {
		log.Info("Scheduler stopped")
	}

	if err := eventManager.Shutdown(shutdownCtx); err != nil {
		log.Warn("Event subscribers did not drain", zap.Error(err))
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}

	if err := reportCache.Close(); err != nil {
		log.Warn("Error closing report cache", zap.Error(err))
	}

	if dwClient != nil {
		if err := dwClient.Close(); err != nil {
			log.Warn("Error closing data warehouse connection", zap.Error(err))
		}
	}

	log.Info("Server stopped gracefully")
	return nil
}
