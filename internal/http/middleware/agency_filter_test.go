package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubAgencies map[uuid.UUID]*domain.Agency

func (s stubAgencies) GetByID(_ context.Context, id uuid.UUID) (*domain.Agency, error) {
	if agency, ok := s[id]; ok {
		return agency, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newAgency(name string, lifecycle domain.Lifecycle) *domain.Agency {
	return &domain.Agency{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      name,
		Lifecycle: lifecycle,
	}
}

// runFilter passes a request for user through the filter and returns the
// response together with the filter the next handler saw
func runFilter(t *testing.T, agencies stubAgencies, user *auth.UserContext, header string) (*httptest.ResponseRecorder, *auth.AgencyFilter) {
	t.Helper()
	var seen *auth.AgencyFilter
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.AgencyFilterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.NewAgencyFilterMiddleware(agencies, zap.NewNop()).Filter(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	if header != "" {
		req.Header.Set(middleware.AgencyHeader, header)
	}
	if user != nil {
		req = req.WithContext(auth.WithUserContext(req.Context(), user))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func TestAgencyFilter(t *testing.T) {
	home := newAgency("Sol Viagens", domain.LifecycleActive)
	other := newAgency("Mar Azul", domain.LifecycleActive)
	archived := newAgency("Closed", domain.LifecycleArchived)
	agencies := stubAgencies{home.ID: home, other.ID: other, archived.ID: archived}

	admin := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAdmin, AgencyID: home.ID}
	developer := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleDeveloper, AgencyID: home.ID}

	t.Run("defaults to the user's agency", func(t *testing.T) {
		rr, filter := runFilter(t, agencies, admin, "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, filter)
		assert.Equal(t, home.ID, filter.AgencyID)
		assert.False(t, filter.Overridden)
	})

	t.Run("own agency in header is not an override", func(t *testing.T) {
		rr, filter := runFilter(t, agencies, admin, home.ID.String())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, home.ID, filter.AgencyID)
		assert.False(t, filter.Overridden)
	})

	t.Run("non-developer cannot switch agency", func(t *testing.T) {
		rr, filter := runFilter(t, agencies, admin, other.ID.String())
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Nil(t, filter)
	})

	t.Run("developer switches agency", func(t *testing.T) {
		rr, filter := runFilter(t, agencies, developer, other.ID.String())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, other.ID, filter.AgencyID)
		assert.True(t, filter.Overridden)
	})

	t.Run("unknown agency is 404", func(t *testing.T) {
		rr, _ := runFilter(t, agencies, developer, uuid.New().String())
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("archived agency is 404", func(t *testing.T) {
		rr, _ := runFilter(t, agencies, developer, archived.ID.String())
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed header is 400", func(t *testing.T) {
		rr, _ := runFilter(t, agencies, developer, "sol-viagens")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "X-Agency-ID")
	})

	t.Run("user without agency is refused", func(t *testing.T) {
		orphan := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAgent}
		rr, _ := runFilter(t, agencies, orphan, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unauthenticated request passes through untouched", func(t *testing.T) {
		rr, filter := runFilter(t, agencies, nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, filter)
	})
}
