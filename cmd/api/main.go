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

	"github.com/straye-as/travel-crm-api/docs"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/database"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/http/handler"
	"github.com/straye-as/travel-crm-api/internal/http/middleware"
	"github.com/straye-as/travel-crm-api/internal/http/router"
	"github.com/straye-as/travel-crm-api/internal/jobs"
	"github.com/straye-as/travel-crm-api/internal/logger"
	"github.com/straye-as/travel-crm-api/internal/operatorcatalog"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/straye-as/travel-crm-api/internal/storage"
	"go.uber.org/zap"
)

// @title Travel CRM API
// @version 1.0
// @description CRM API for travel agencies: clients, funnels, proposals and the booking lifecycle

// @contact.name API Support
// @contact.email support@straye.io

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

	// The static tables are part of the program; refuse to start with a broken one
	if err := domain.ValidateTransitionTable(); err != nil {
		return fmt.Errorf("invalid booking transition table: %w", err)
	}
	if err := auth.ValidateRoleCapabilities(); err != nil {
		return fmt.Errorf("invalid role capabilities: %w", err)
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)

	// In development secrets come from the environment, elsewhere from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	lookupCache, err := cache.New(cache.Options{
		Backend:         cfg.Cache.Backend,
		TTL:             cfg.Cache.TTLDuration(),
		CleanupInterval: cfg.Cache.CleanupIntervalDuration(),
		Redis: cache.RedisOptions{
			Addr:      cfg.Redis.Addr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Cache.KeyPrefix,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer func() { _ = lookupCache.Close() }()

	// The operator catalog is optional; the API runs without it
	catalog, err := operatorcatalog.NewClient(&cfg.OperatorCatalog, log)
	if err != nil {
		log.Warn("Operator catalog connection failed, continuing without it", zap.Error(err))
		catalog = nil
	}
	defer func() { _ = catalog.Close() }()

	// Repositories
	agencyRepo := repository.NewAgencyRepository(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	funnelRepo := repository.NewFunnelRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	documentRepo := repository.NewBookingDocumentRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	activityLogRepo := repository.NewActivityLogRepository(db)

	// Services
	activitySink := service.NewActivitySink(activityLogRepo, log)
	defer activitySink.Close()

	ttl := cfg.Cache.TTLDuration()
	permissionService := service.NewPermissionService(log)
	timelineService := service.NewTimelineService(bookingRepo, timelineRepo, permissionService, log)
	userService := service.NewUserService(userRepo, agencyRepo, lookupCache, ttl, permissionService, log)
	clientService := service.NewClientService(clientRepo, funnelRepo, permissionService, activitySink, log)
	funnelService := service.NewFunnelService(funnelRepo, permissionService, activitySink, log)
	operatorService := service.NewOperatorService(operatorRepo, agencyRepo, catalog, permissionService, activitySink, log)
	proposalService := service.NewProposalService(db, proposalRepo, clientRepo, operatorRepo, funnelRepo, bookingRepo, timelineService, lookupCache, permissionService, activitySink, log)
	bookingService := service.NewBookingService(db, bookingRepo, documentRepo, timelineService, fileStorage, lookupCache, permissionService, activitySink, log)
	dashboardService := service.NewDashboardService(bookingRepo, proposalRepo, lookupCache, ttl, permissionService, log)
	activityService := service.NewActivityService(activityLogRepo, permissionService)
	cacheService := service.NewCacheService(lookupCache, permissionService, activitySink, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(&cfg.Auth, userService, log)
	agencyFilterMiddleware := middleware.NewAgencyFilterMiddleware(agencyRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(activitySink, nil, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		lookupCache,
		catalog,
		authMiddleware,
		agencyFilterMiddleware,
		rateLimiter,
		auditMiddleware,
		router.Handlers{
			Auth:      handler.NewAuthHandler(userService, permissionService, log),
			Client:    handler.NewClientHandler(clientService, log),
			Funnel:    handler.NewFunnelHandler(funnelService, log),
			Proposal:  handler.NewProposalHandler(proposalService, log),
			Booking:   handler.NewBookingHandler(bookingService, cfg.Storage.MaxUploadSizeMB, log),
			Operator:  handler.NewOperatorHandler(operatorService, log),
			Activity:  handler.NewActivityHandler(activityService, log),
			Dashboard: handler.NewDashboardHandler(dashboardService, cacheService, log),
		},
	)

	scheduler, err := startJobs(cfg, log, agencyRepo, bookingService, operatorService, catalog.IsEnabled())
	if err != nil {
		return err
	}

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
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}

// startJobs registers the background jobs. It returns a nil scheduler when jobs are disabled.
func startJobs(
	cfg *config.Config,
	log *zap.Logger,
	agencies *repository.AgencyRepository,
	bookings *service.BookingService,
	operators *service.OperatorService,
	catalogEnabled bool,
) (*jobs.Scheduler, error) {
	if !cfg.Jobs.Enabled {
		log.Info("Background jobs disabled")
		return nil, nil
	}

	scheduler := jobs.NewScheduler(cfg.Jobs.TimeoutDuration(), log)

	staleJob := jobs.NewStaleBookingsJob(agencies, bookings, cfg.Jobs.StaleAfter(), log)
	if err := scheduler.Register(staleJob, cfg.Jobs.StaleBookingsCron); err != nil {
		return nil, fmt.Errorf("failed to register stale bookings job: %w", err)
	}

	if catalogEnabled {
		syncJob := jobs.NewOperatorSyncJob(operators, log)
		if err := scheduler.Register(syncJob, cfg.Jobs.OperatorSyncCron); err != nil {
			return nil, fmt.Errorf("failed to register operator sync job: %w", err)
		}
		if cfg.Jobs.OperatorSyncOnStartup {
			go func() { _ = scheduler.RunNow(context.Background(), syncJob) }()
		}
	} else {
		log.Info("Operator catalog disabled, skipping sync job")
	}

	scheduler.Start()
	return scheduler, nil
}
