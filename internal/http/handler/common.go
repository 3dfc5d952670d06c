package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{Error: message})
}

// respondValidationError sends 400 with one message per invalid field
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}
	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Error:   "One or more fields failed validation",
		Details: fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes the
// 400 response itself and reports false when the request is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// parseID reads a UUID path parameter
func parseID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a valid UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID reads an optional UUID query parameter
func parseOptionalUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be a valid UUID", key)
	}
	return &id, nil
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func parsePagination(r *http.Request) repository.Pagination {
	return repository.NewPagination(
		parseIntQuery(r, "page", 1),
		parseIntQuery(r, "pageSize", repository.DefaultPageSize),
	)
}

func parseSort(r *http.Request) repository.SortConfig {
	sort := repository.DefaultSortConfig()
	if field := r.URL.Query().Get("sortBy"); field != "" {
		sort.Field = field
	}
	if order := r.URL.Query().Get("sortOrder"); order != "" {
		sort.Order = repository.ParseSortOrder(order)
	}
	return sort
}

func parseLifecycle(r *http.Request) domain.LifecycleFilter {
	return domain.ParseLifecycleFilter(r.URL.Query().Get("lifecycle"))
}

// respondServiceError maps service errors onto HTTP status codes. Unknown
// errors are logged and reported as 500 without their message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var transitionErr *domain.TransitionError
	var conflictErr *service.StatusConflictError

	switch {
	case errors.As(err, &transitionErr):
		respondJSON(w, http.StatusConflict, domain.APIError{
			Error: transitionErr.Error(),
			Details: domain.TransitionErrorDetails{
				CurrentStatus: transitionErr.From,
				Requested:     transitionErr.To,
				Allowed:       nonNil(transitionErr.Allowed),
			},
		})
	case errors.As(err, &conflictErr):
		respondJSON(w, http.StatusConflict, domain.APIError{
			Error: "Booking was changed by another request; retry from the current status",
			Details: domain.TransitionErrorDetails{
				CurrentStatus: conflictErr.Current.Status,
				Allowed:       nonNil(conflictErr.Current.Allowed),
			},
		})
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "You do not have permission to "+action)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, service.ErrDocumentTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, capitalize(service.ErrDocumentTooLarge.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, service.ErrDuplicate), errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, capitalize(err.Error()))
	case errors.Is(err, service.ErrServiceUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, capitalize(err.Error()))
	default:
		logger.Error("failed to "+action, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

func nonNil(statuses []domain.BookingStatus) []domain.BookingStatus {
	if statuses == nil {
		return []domain.BookingStatus{}
	}
	return statuses
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
