package handler

import (
	"fmt"
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type FunnelHandler struct {
	funnelService *service.FunnelService
	logger        *zap.Logger
}

func NewFunnelHandler(funnelService *service.FunnelService, logger *zap.Logger) *FunnelHandler {
	return &FunnelHandler{
		funnelService: funnelService,
		logger:        logger,
	}
}

// List godoc
// @Summary List funnels with their stages
// @Tags Funnels
// @Produce json
// @Param kind query string false "Funnel kind" Enums(client, proposal)
// @Success 200 {array} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels [get]
func (h *FunnelHandler) List(w http.ResponseWriter, r *http.Request) {
	var kind *domain.FunnelKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := domain.FunnelKind(raw)
		if k != domain.FunnelKindClient && k != domain.FunnelKindProposal {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown funnel kind %q", raw))
			return
		}
		kind = &k
	}
	funnels, err := h.funnelService.List(r.Context(), kind)
	if err != nil {
		respondServiceError(w, h.logger, err, "list funnels")
		return
	}
	respondJSON(w, http.StatusOK, funnels)
}

// Get godoc
// @Summary Get funnel
// @Tags Funnels
// @Produce json
// @Param id path string true "Funnel ID"
// @Success 200 {object} domain.FunnelDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels/{id} [get]
func (h *FunnelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	funnel, err := h.funnelService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get funnel")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

// Create godoc
// @Summary Create funnel
// @Tags Funnels
// @Accept json
// @Produce json
// @Param request body domain.CreateFunnelRequest true "Funnel"
// @Success 201 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels [post]
func (h *FunnelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFunnelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	funnel, err := h.funnelService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create funnel")
		return
	}
	respondJSON(w, http.StatusCreated, funnel)
}

// Delete godoc
// @Summary Delete funnel
// @Description Removes the funnel and its stages; clients and proposals keep no stage
// @Tags Funnels
// @Param id path string true "Funnel ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels/{id} [delete]
func (h *FunnelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.funnelService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete funnel")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddStage godoc
// @Summary Append a stage to a funnel
// @Tags Funnels
// @Accept json
// @Produce json
// @Param id path string true "Funnel ID"
// @Param request body domain.CreateFunnelStageRequest true "Stage"
// @Success 201 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels/{id}/stages [post]
func (h *FunnelHandler) AddStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.CreateFunnelStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	funnel, err := h.funnelService.AddStage(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "add stage")
		return
	}
	respondJSON(w, http.StatusCreated, funnel)
}

// ReorderStages godoc
// @Summary Reorder funnel stages
// @Description stageIds must list every stage of the funnel exactly once
// @Tags Funnels
// @Accept json
// @Produce json
// @Param id path string true "Funnel ID"
// @Param request body domain.ReorderStagesRequest true "Stage order"
// @Success 200 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels/{id}/stages/order [put]
func (h *FunnelHandler) ReorderStages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.ReorderStagesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	funnel, err := h.funnelService.ReorderStages(r.Context(), id, req.StageIDs)
	if err != nil {
		respondServiceError(w, h.logger, err, "reorder stages")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

// DeleteStage godoc
// @Summary Delete a funnel stage
// @Tags Funnels
// @Produce json
// @Param id path string true "Funnel ID"
// @Param stageId path string true "Stage ID"
// @Success 200 {object} domain.FunnelDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /funnels/{id}/stages/{stageId} [delete]
func (h *FunnelHandler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	stageID, ok := parseID(w, r, "stageId")
	if !ok {
		return
	}
	funnel, err := h.funnelService.DeleteStage(r.Context(), id, stageID)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete stage")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}
