package handler

import (
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clientService *service.ClientService
	logger        *zap.Logger
}

func NewClientHandler(clientService *service.ClientService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logger:        logger,
	}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by name, email or document"
// @Param stageId query string false "Filter by funnel stage ID"
// @Param ownerId query string false "Filter by owner ID"
// @Param lifecycle query string false "Lifecycle filter" Enums(active, archived, any)
// @Param sortBy query string false "Sort field" Enums(name, createdAt, updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ClientDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /clients [get]
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := repository.ClientFilters{
		Search:    r.URL.Query().Get("search"),
		Lifecycle: parseLifecycle(r),
	}
	var err error
	if filters.StageID, err = parseOptionalUUID(r, "stageId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filters.OwnerID, err = parseOptionalUUID(r, "ownerId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}

	result, err := h.clientService.List(r.Context(), parsePagination(r), filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list clients")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create client
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body domain.CreateClientRequest true "Client"
// @Success 201 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /clients [post]
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	client, err := h.clientService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create client")
		return
	}
	w.Header().Set("Location", "/api/v1/clients/"+client.ID.String())
	respondJSON(w, http.StatusCreated, client)
}

// Get godoc
// @Summary Get client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Update godoc
// @Summary Update client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param request body domain.UpdateClientRequest true "Client"
// @Success 200 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	client, err := h.clientService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Archive godoc
// @Summary Archive client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} domain.ClientDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/{id}/archive [post]
func (h *ClientHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Archive(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "archive client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Restore godoc
// @Summary Restore archived client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} domain.ClientDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/{id}/restore [post]
func (h *ClientHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Restore(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "restore client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// MoveToStage godoc
// @Summary Move client to a funnel stage
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param request body domain.MoveToStageRequest true "Stage"
// @Success 200 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /clients/{id}/stage [post]
func (h *ClientHandler) MoveToStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.MoveToStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	client, err := h.clientService.MoveToStage(r.Context(), id, req.StageID)
	if err != nil {
		respondServiceError(w, h.logger, err, "move client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}
