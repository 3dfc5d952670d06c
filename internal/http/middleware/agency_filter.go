package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"go.uber.org/zap"
)

// AgencyHeader lets developers act on behalf of another agency
const AgencyHeader = "X-Agency-ID"

// AgencyLookup resolves an agency by id
type AgencyLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
}

// AgencyFilterMiddleware handles multi-tenant data isolation.
// Every request is scoped to exactly one agency: the caller's own, or for
// developers the one named in the X-Agency-ID header.
type AgencyFilterMiddleware struct {
	agencies AgencyLookup
	logger   *zap.Logger
}

// NewAgencyFilterMiddleware creates a new agency filter middleware
func NewAgencyFilterMiddleware(agencies AgencyLookup, logger *zap.Logger) *AgencyFilterMiddleware {
	return &AgencyFilterMiddleware{
		agencies: agencies,
		logger:   logger,
	}
}

// Filter sets the effective agency filter in context
func (m *AgencyFilterMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			// Authentication middleware rejects unauthenticated requests before this point
			next.ServeHTTP(w, r)
			return
		}

		filter := &auth.AgencyFilter{AgencyID: userCtx.AgencyID}

		if requested := r.Header.Get(AgencyHeader); requested != "" {
			agencyID, err := uuid.Parse(requested)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid X-Agency-ID header: must be a valid UUID")
				return
			}

			if !userCtx.CanAccessAgency(agencyID) {
				m.logger.Warn("user attempted to access another agency",
					zap.String("user_id", userCtx.UserID.String()),
					zap.String("user_agency", userCtx.AgencyID.String()),
					zap.String("requested_agency", requested),
				)
				writeJSONError(w, http.StatusForbidden, "Access denied: you cannot access data for this agency")
				return
			}

			if agencyID != userCtx.AgencyID {
				if m.agencies != nil {
					agency, err := m.agencies.GetByID(r.Context(), agencyID)
					if err != nil || agency.Lifecycle != domain.LifecycleActive {
						writeJSONError(w, http.StatusNotFound, "Agency not found")
						return
					}
				}
				filter = &auth.AgencyFilter{AgencyID: agencyID, Overridden: true}
			}
		}

		if filter.AgencyID == uuid.Nil {
			writeJSONError(w, http.StatusForbidden, "Access denied: no agency for this user")
			return
		}

		ctx := auth.WithAgencyFilter(r.Context(), filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{Error: message})
}
