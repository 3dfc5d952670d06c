package handler

import (
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	cacheService     *service.CacheService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, cacheService *service.CacheService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		cacheService:     cacheService,
		logger:           logger,
	}
}

// Get godoc
// @Summary Agency dashboard
// @Description Booking counts per status and open proposal totals. Served from cache for a short TTL.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.DashboardDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboardService.Get(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

type cacheInvalidationResponse struct {
	Removed int `json:"removed"`
}

// InvalidateCache godoc
// @Summary Drop the agency's cached entries
// @Tags Cache
// @Produce json
// @Success 200 {object} cacheInvalidationResponse
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /cache [delete]
func (h *DashboardHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cacheService.Invalidate(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "invalidate cache")
		return
	}
	respondJSON(w, http.StatusOK, cacheInvalidationResponse{Removed: removed})
}

// Statuses godoc
// @Summary Booking status registry
// @Description Every booking status with label, color and the statuses it may move to
// @Tags Bookings
// @Produce json
// @Success 200 {array} domain.StatusRegistryEntryDTO
// @Router /statuses [get]
func (h *DashboardHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapper.ToStatusRegistry())
}
