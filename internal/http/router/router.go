package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/database"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/http/handler"
	"github.com/straye-as/travel-crm-api/internal/http/middleware"
	"github.com/straye-as/travel-crm-api/internal/operatorcatalog"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/travel-crm-api/docs" // Import generated swagger docs
)

const healthCheckTimeout = 5 * time.Second

// Pinger is a dependency that can report whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogHealth reports the state of the optional operator catalog
type CatalogHealth interface {
	IsEnabled() bool
	HealthCheck(ctx context.Context) *operatorcatalog.HealthStatus
}

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Auth      *handler.AuthHandler
	Client    *handler.ClientHandler
	Funnel    *handler.FunnelHandler
	Proposal  *handler.ProposalHandler
	Booking   *handler.BookingHandler
	Operator  *handler.OperatorHandler
	Activity  *handler.ActivityHandler
	Dashboard *handler.DashboardHandler
}

type Router struct {
	cfg                    *config.Config
	logger                 *zap.Logger
	db                     *gorm.DB
	cache                  Pinger
	catalog                CatalogHealth
	authMiddleware         *auth.Middleware
	agencyFilterMiddleware *middleware.AgencyFilterMiddleware
	rateLimiter            *middleware.RateLimiter
	auditMiddleware        *middleware.AuditMiddleware
	handlers               Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	cache Pinger,
	catalog CatalogHealth,
	authMiddleware *auth.Middleware,
	agencyFilterMiddleware *middleware.AgencyFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:                    cfg,
		logger:                 logger,
		db:                     db,
		cache:                  cache,
		catalog:                catalog,
		authMiddleware:         authMiddleware,
		agencyFilterMiddleware: agencyFilterMiddleware,
		rateLimiter:            rateLimiter,
		auditMiddleware:        auditMiddleware,
		handlers:               handlers,
	}
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	r.Route("/api/v1", func(r chi.Router) {
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimw.Timeout(timeout))
		}
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.agencyFilterMiddleware.Filter)
		r.Use(rt.rateLimiter.Limit)
		r.Use(rt.auditMiddleware.Audit)

		// Auth
		r.Get("/auth/me", h.Auth.Me)
		r.Get("/auth/permissions", h.Auth.Permissions)
		r.With(rt.authMiddleware.RequireCapability(domain.CapabilityUsersRead)).Get("/users", h.Auth.ListUsers)

		r.Get("/statuses", h.Dashboard.Statuses)
		r.Get("/dashboard", h.Dashboard.Get)
		r.With(rt.authMiddleware.RequireCapability(domain.CapabilityCacheManage)).Delete("/cache", h.Dashboard.InvalidateCache)
		r.With(rt.authMiddleware.RequireCapability(domain.CapabilityActivityRead)).Get("/activity", h.Activity.List)

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.Client.List)
			r.Post("/", h.Client.Create)
			r.Get("/{id}", h.Client.Get)
			r.Put("/{id}", h.Client.Update)
			r.Post("/{id}/archive", h.Client.Archive)
			r.Post("/{id}/restore", h.Client.Restore)
			r.Post("/{id}/stage", h.Client.MoveToStage)
		})

		r.Route("/funnels", func(r chi.Router) {
			r.Get("/", h.Funnel.List)
			r.Post("/", h.Funnel.Create)
			r.Get("/{id}", h.Funnel.Get)
			r.Delete("/{id}", h.Funnel.Delete)
			r.Post("/{id}/stages", h.Funnel.AddStage)
			r.Put("/{id}/stages/order", h.Funnel.ReorderStages)
			r.Delete("/{id}/stages/{stageId}", h.Funnel.DeleteStage)
		})

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", h.Proposal.List)
			r.Post("/", h.Proposal.Create)
			r.Get("/{id}", h.Proposal.Get)
			r.Put("/{id}", h.Proposal.Update)
			r.Post("/{id}/status", h.Proposal.ChangeStatus)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.Booking.List)
			r.Get("/{id}", h.Booking.Get)
			r.Get("/{id}/next-statuses", h.Booking.NextStatuses)
			r.Post("/{id}/status", h.Booking.ChangeStatus)
			r.Get("/{id}/timeline", h.Booking.Timeline)
			r.Post("/{id}/notes", h.Booking.AddNote)
			r.Post("/{id}/contacts", h.Booking.RecordContact)
			r.Post("/{id}/installation", h.Booking.ScheduleInstallation)
			r.Post("/{id}/archive", h.Booking.Archive)
			r.Post("/{id}/restore", h.Booking.Restore)

			r.Get("/{id}/documents", h.Booking.ListDocuments)
			r.Post("/{id}/documents", h.Booking.UploadDocument)
			r.Get("/{id}/documents/{documentId}", h.Booking.DownloadDocument)
			r.Delete("/{id}/documents/{documentId}", h.Booking.DeleteDocument)
		})

		r.Route("/operators", func(r chi.Router) {
			r.Get("/", h.Operator.List)
			r.Post("/", h.Operator.Create)
			r.With(rt.authMiddleware.RequireRole(domain.RoleMaster)).Post("/sync", h.Operator.Sync)
			r.Put("/{id}", h.Operator.Update)
			r.Post("/{id}/archive", h.Operator.Archive)
			r.Post("/{id}/restore", h.Operator.Restore)
		})
	})

	return r
}

// databaseHealth is the readiness probe with pool statistics
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, rt.db)
	if err != nil {
		rt.logger.Error("database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks every dependency. The operator catalog is reported but
// never makes the service unready.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	if rt.cache != nil {
		if err := rt.cache.Ping(ctx); err != nil {
			rt.logger.Error("cache health check failed", zap.Error(err))
			checks["cache"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["cache"] = map[string]interface{}{"status": "healthy"}
		}
	}

	if rt.catalog != nil && rt.catalog.IsEnabled() {
		checks["operatorCatalog"] = rt.catalog.HealthCheck(ctx)
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeHealth(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
