package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

// AuditConfig holds configuration for audit middleware
type AuditConfig struct {
	// SkipPaths contains paths that should not be audited
	SkipPaths []string
	// AuditReads also records denied GET requests
	AuditReads bool
}

// DefaultAuditConfig returns default audit configuration
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		SkipPaths: []string{
			"/health",
			"/swagger",
		},
		AuditReads: false,
	}
}

// AuditMiddleware records refused write attempts in the activity log.
// Successful changes are recorded by the services themselves.
type AuditMiddleware struct {
	recorder service.ActivityRecorder
	config   *AuditConfig
	logger   *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(recorder service.ActivityRecorder, config *AuditConfig, logger *zap.Logger) *AuditMiddleware {
	if config == nil {
		config = DefaultAuditConfig()
	}
	return &AuditMiddleware{
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// Audit returns middleware that records 403 responses to write requests
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.shouldAudit(r) {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode != http.StatusForbidden || m.recorder == nil {
			return
		}

		entityType, entityID := m.extractEntityInfo(r)
		m.logger.Info("write request denied",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("entity_type", entityType),
		)
		m.recorder.Record(r.Context(), service.ActivityEntry{
			Action:     "access_denied",
			EntityType: entityType,
			EntityID:   entityID,
			Summary:    r.Method + " " + r.URL.Path + " was denied",
			Details:    map[string]any{"method": r.Method, "path": r.URL.Path},
		})
	})
}

// shouldAudit determines if a request should be audited
func (m *AuditMiddleware) shouldAudit(r *http.Request) bool {
	switch r.Method {
	case http.MethodOptions, http.MethodHead:
		return false
	case http.MethodGet:
		if !m.config.AuditReads {
			return false
		}
	}

	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(r.URL.Path, skipPath) {
			return false
		}
	}
	return true
}

// extractEntityInfo extracts entity type and ID from the request path
func (m *AuditMiddleware) extractEntityInfo(r *http.Request) (string, *uuid.UUID) {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return parseEntityFromPath(r.URL.Path), nil
	}

	var entityID *uuid.UUID
	if idStr := routeCtx.URLParam("id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			entityID = &id
		}
	}

	pattern := routeCtx.RoutePattern()
	if pattern == "" {
		pattern = r.URL.Path
	}
	return parseEntityFromPath(pattern), entityID
}

var entityMap = map[string]string{
	"bookings":  "booking",
	"proposals": "proposal",
	"clients":   "client",
	"funnels":   "funnel",
	"operators": "operator",
	"users":     "user",
	"cache":     "cache",
}

// parseEntityFromPath extracts entity type from a URL path
func parseEntityFromPath(path string) string {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if entityType, ok := entityMap[part]; ok {
			return entityType
		}
	}
	return "unknown"
}

// responseCapture wraps ResponseWriter to capture the status code
type responseCapture struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseCapture) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
