package handler

import (
	"net/http"
	"time"

	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

// ActivityHandler serves the agency's activity log
type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// List godoc
// @Summary List activity log entries
// @Description Newest first
// @Tags Activity
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param actorId query string false "Filter by actor user ID" format(uuid)
// @Param entityType query string false "Filter by entity type (booking, proposal, client, funnel, operator, cache)"
// @Param entityId query string false "Filter by entity ID" format(uuid)
// @Param since query string false "Only entries at or after this RFC 3339 timestamp"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ActivityLogDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /activity [get]
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ActivityLogFilter{
		EntityType: r.URL.Query().Get("entityType"),
	}

	var err error
	if filter.ActorID, err = parseOptionalUUID(r, "actorId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filter.EntityID, err = parseOptionalUUID(r, "entityId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid since: must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}

	result, err := h.activityService.List(r.Context(), parsePagination(r), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "list activity")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
