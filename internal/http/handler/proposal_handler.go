package handler

import (
	"fmt"
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type ProposalHandler struct {
	proposalService *service.ProposalService
	logger          *zap.Logger
}

func NewProposalHandler(proposalService *service.ProposalService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
		logger:          logger,
	}
}

// List godoc
// @Summary List proposals
// @Tags Proposals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by title or destination"
// @Param clientId query string false "Filter by client ID"
// @Param ownerId query string false "Filter by owner ID"
// @Param stageId query string false "Filter by funnel stage ID"
// @Param status query string false "Filter by status" Enums(draft, sent, accepted, active_booking, rejected, expired)
// @Param lifecycle query string false "Lifecycle filter" Enums(active, archived, any)
// @Param sortBy query string false "Sort field" Enums(title, totalAmount, validUntil, createdAt, updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProposalDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals [get]
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := repository.ProposalFilters{
		Search:    r.URL.Query().Get("search"),
		Lifecycle: parseLifecycle(r),
	}

	var err error
	if filters.ClientID, err = parseOptionalUUID(r, "clientId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filters.OwnerID, err = parseOptionalUUID(r, "ownerId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filters.StageID, err = parseOptionalUUID(r, "stageId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ProposalStatus(raw)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown proposal status %q", raw))
			return
		}
		filters.Status = &status
	}

	result, err := h.proposalService.List(r.Context(), parsePagination(r), filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list proposals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body domain.CreateProposalRequest true "Proposal"
// @Success 201 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals [post]
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	proposal, err := h.proposalService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create proposal")
		return
	}
	w.Header().Set("Location", "/api/v1/proposals/"+proposal.ID.String())
	respondJSON(w, http.StatusCreated, proposal)
}

// Get godoc
// @Summary Get proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals/{id} [get]
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	proposal, err := h.proposalService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Update godoc
// @Summary Update proposal
// @Description Agents may only update proposals they own
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.UpdateProposalRequest true "Proposal"
// @Success 200 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals/{id} [put]
func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	proposal, err := h.proposalService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// ChangeStatus godoc
// @Summary Change proposal status
// @Description Moving to active_booking creates the booking in the same transaction
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.ChangeProposalStatusRequest true "Target status"
// @Success 200 {object} domain.ProposalStatusChangeResult
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /proposals/{id}/status [post]
func (h *ProposalHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.ChangeProposalStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.proposalService.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, err, "change proposal status")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
