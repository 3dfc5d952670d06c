package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

// multipartOverheadBytes leaves room for form boundaries and headers around the file
const multipartOverheadBytes = 1 << 20

type BookingHandler struct {
	bookingService *service.BookingService
	maxUploadMB    int64
	logger         *zap.Logger
}

func NewBookingHandler(bookingService *service.BookingService, maxUploadMB int64, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		maxUploadMB:    maxUploadMB,
		logger:         logger,
	}
}

// List godoc
// @Summary List bookings
// @Description Paginated bookings of the caller's agency
// @Tags Bookings
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by reference or client name"
// @Param status query string false "Filter by status"
// @Param clientId query string false "Filter by client ID"
// @Param lifecycle query string false "Lifecycle filter" Enums(active, archived, any)
// @Param sortBy query string false "Sort field" Enums(reference, status, statusChangedAt, travelStart, createdAt, updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.BookingDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := repository.BookingFilters{
		Search:    r.URL.Query().Get("search"),
		Lifecycle: parseLifecycle(r),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := domain.ParseBookingStatus(raw)
		if !ok {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown booking status %q", raw))
			return
		}
		filters.Status = &status
	}
	clientID, err := parseOptionalUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	filters.ClientID = clientID

	result, err := h.bookingService.List(r.Context(), parsePagination(r), filters, parseSort(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list bookings")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Get godoc
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} domain.BookingDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookingService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get booking")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// NextStatuses godoc
// @Summary Statuses the booking may move to
// @Description Empty for terminal statuses and archived bookings
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {array} domain.StatusDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/next-statuses [get]
func (h *BookingHandler) NextStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	statuses, err := h.bookingService.NextStatuses(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "load next statuses")
		return
	}
	respondJSON(w, http.StatusOK, statuses)
}

// ChangeStatus godoc
// @Summary Change booking status
// @Description Validates the move against the transition table and records a status_change event.
// @Description Rejected moves answer 409 with the current status and the allowed targets.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body domain.ChangeBookingStatusRequest true "Target status"
// @Success 200 {object} domain.BookingDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError{details=domain.TransitionErrorDetails}
// @Security BearerAuth
// @Router /bookings/{id}/status [post]
func (h *BookingHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.ChangeBookingStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	booking, err := h.bookingService.ChangeStatus(r.Context(), id, req.Status, req.Note)
	if err != nil {
		respondServiceError(w, h.logger, err, "change booking status")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// Timeline godoc
// @Summary Booking timeline
// @Description Events newest first
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {array} domain.TimelineEventDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/timeline [get]
func (h *BookingHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	events, err := h.bookingService.Timeline(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "load timeline")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// AddNote godoc
// @Summary Add a note to the booking timeline
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body domain.AddNoteRequest true "Note"
// @Success 201 {object} domain.TimelineEventDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/notes [post]
func (h *BookingHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.AddNoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	event, err := h.bookingService.AddNote(r.Context(), id, req.Note)
	if err != nil {
		respondServiceError(w, h.logger, err, "add note")
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// RecordContact godoc
// @Summary Record a client contact on the booking timeline
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body domain.RecordContactRequest true "Contact"
// @Success 201 {object} domain.TimelineEventDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/contacts [post]
func (h *BookingHandler) RecordContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.RecordContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	event, err := h.bookingService.RecordContact(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "record contact")
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// ScheduleInstallation godoc
// @Summary Schedule the installation date
// @Description Only for approved or pending_installation bookings
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body domain.ScheduleInstallationRequest true "Installation date"
// @Success 200 {object} domain.BookingDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/installation [post]
func (h *BookingHandler) ScheduleInstallation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req domain.ScheduleInstallationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	booking, err := h.bookingService.ScheduleInstallation(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "schedule installation")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// Archive godoc
// @Summary Archive booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} domain.BookingDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/archive [post]
func (h *BookingHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookingService.Archive(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "archive booking")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// Restore godoc
// @Summary Restore archived booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} domain.BookingDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/restore [post]
func (h *BookingHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookingService.Restore(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "restore booking")
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

// ListDocuments godoc
// @Summary List booking documents
// @Tags Documents
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {array} domain.BookingDocumentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/documents [get]
func (h *BookingHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	docs, err := h.bookingService.ListDocuments(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// UploadDocument godoc
// @Summary Upload a document to a booking
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Booking ID"
// @Param file formData file true "Document"
// @Success 201 {object} domain.BookingDocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/documents [post]
func (h *BookingHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	maxBytes := h.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	doc, err := h.bookingService.UploadDocument(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload document")
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

// DownloadDocument godoc
// @Summary Download a booking document
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Booking ID"
// @Param documentId path string true "Document ID"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/documents/{documentId} [get]
func (h *BookingHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := parseID(w, r, "documentId")
	if !ok {
		return
	}

	doc, content, err := h.bookingService.OpenDocument(r.Context(), id, documentID)
	if err != nil {
		respondServiceError(w, h.logger, err, "download document")
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("document download interrupted", zap.String("document_id", documentID.String()), zap.Error(err))
	}
}

// DeleteDocument godoc
// @Summary Remove a booking document
// @Tags Documents
// @Param id path string true "Booking ID"
// @Param documentId path string true "Document ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /bookings/{id}/documents/{documentId} [delete]
func (h *BookingHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := parseID(w, r, "documentId")
	if !ok {
		return
	}
	if err := h.bookingService.RemoveDocument(r.Context(), id, documentID); err != nil {
		respondServiceError(w, h.logger, err, "remove document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
