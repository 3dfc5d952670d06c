package handler

import (
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type OperatorHandler struct {
	operatorService *service.OperatorService
	logger          *zap.Logger
}

func NewOperatorHandler(operatorService *service.OperatorService, logger *zap.Logger) *OperatorHandler {
	return &OperatorHandler{
		operatorService: operatorService,
		logger:          logger,
	}
}

// List godoc
// @Summary List operators
// @Tags Operators
// @Produce json
// @Param search query string false "Search by name or code"
// @Param lifecycle query string false "Lifecycle filter" Enums(active, archived, any)
// @Success 200 {array} domain.OperatorDTO
// @Security BearerAuth
// @Router /operators [get]
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	operators, err := h.operatorService.List(r.Context(), r.URL.Query().Get("search"), parseLifecycle(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list operators")
		return
	}
	respondJSON(w, http.StatusOK, operators)
}

// Create godoc
// @Summary Create operator
// @Tags Operators
// @Accept json
// @Produce json
// @Param request body domain.CreateOperatorRequest true "Operator"
// @Success 201 {object} domain.OperatorDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /operators [post]
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOperatorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	operator, err := h.operatorService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create operator")
		return
	}
	respondJSON(w, http.StatusCreated, operator)
}

// Update godoc
// @Summary Update operator
// @Tags Operators
// @Accept json
// @Produce json
// @Param id path string true "Operator ID"
// @Param request body domain.UpdateOperatorRequest true "Operator"
// @Success 200 {object} domain.OperatorDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /operators/{id} [put]
func (h *OperatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateOperatorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	operator, err := h.operatorService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update operator")
		return
	}
	respondJSON(w, http.StatusOK, operator)
}

// Archive godoc
// @Summary Archive operator
// @Tags Operators
// @Produce json
// @Param id path string true "Operator ID"
// @Success 200 {object} domain.OperatorDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /operators/{id}/archive [post]
func (h *OperatorHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	operator, err := h.operatorService.Archive(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "archive operator")
		return
	}
	respondJSON(w, http.StatusOK, operator)
}

// Restore godoc
// @Summary Restore archived operator
// @Tags Operators
// @Produce json
// @Param id path string true "Operator ID"
// @Success 200 {object} domain.OperatorDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /operators/{id}/restore [post]
func (h *OperatorHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	operator, err := h.operatorService.Restore(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "restore operator")
		return
	}
	respondJSON(w, http.StatusOK, operator)
}

// Sync godoc
// @Summary Import operators from the external catalog
// @Description Upserts the agency's operators by code. 503 when the catalog is not configured.
// @Tags Operators
// @Produce json
// @Success 200 {object} service.SyncResult
// @Failure 403 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Router /operators/sync [post]
func (h *OperatorHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.operatorService.Sync(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "sync operators")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
