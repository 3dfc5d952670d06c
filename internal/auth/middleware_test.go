package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUserLookup struct {
	user *domain.User
	err  error
}

func (s *stubUserLookup) ActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.user, s.err
}

func captureHandler(captured **auth.UserContext, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*captured, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_Authenticate_WithAPIKey(t *testing.T) {
	cfg := testAuthConfig()
	agencyID := uuid.New()
	cfg.APIKeyAgencyID = agencyID.String()
	middleware := auth.NewMiddleware(cfg, nil, zap.NewNop())

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", cfg.APIKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.True(t, captured.IsSystem())
	assert.Equal(t, domain.RoleDeveloper, captured.Role)
	assert.Equal(t, agencyID, captured.AgencyID)
}

func TestMiddleware_Authenticate_WithInvalidAPIKey(t *testing.T) {
	middleware := auth.NewMiddleware(testAuthConfig(), nil, zap.NewNop())

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestMiddleware_Authenticate_WithToken(t *testing.T) {
	cfg := testAuthConfig()
	middleware := auth.NewMiddleware(cfg, nil, zap.NewNop())
	user := testUser(domain.RoleAgent)
	token, err := auth.NewTokenValidator(cfg).IssueToken(user, time.Hour)
	require.NoError(t, err)

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	require.NotNil(t, captured)
	assert.Equal(t, user.UserID, captured.UserID)
	assert.Equal(t, domain.RoleAgent, captured.Role)
}

func TestMiddleware_Authenticate_RefreshesRoleFromLookup(t *testing.T) {
	cfg := testAuthConfig()
	user := testUser(domain.RoleAdmin)
	lookup := &stubUserLookup{user: &domain.User{
		BaseModel:   domain.BaseModel{ID: user.UserID},
		AgencyID:    user.AgencyID,
		DisplayName: "Ana S.",
		Email:       user.Email,
		Role:        domain.RoleAgent,
		Lifecycle:   domain.LifecycleActive,
	}}
	middleware := auth.NewMiddleware(cfg, lookup, zap.NewNop())
	token, err := auth.NewTokenValidator(cfg).IssueToken(user, time.Hour)
	require.NoError(t, err)

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.True(t, called)
	assert.Equal(t, domain.RoleAgent, captured.Role)
	assert.Equal(t, "Ana S.", captured.DisplayName)
}

func TestMiddleware_Authenticate_InactiveUser(t *testing.T) {
	cfg := testAuthConfig()
	middleware := auth.NewMiddleware(cfg, &stubUserLookup{err: errors.New("archived")}, zap.NewNop())
	token, err := auth.NewTokenValidator(cfg).IssueToken(testUser(domain.RoleAdmin), time.Hour)
	require.NoError(t, err)

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_Authenticate_MissingAuth(t *testing.T) {
	middleware := auth.NewMiddleware(testAuthConfig(), nil, zap.NewNop())

	var captured *auth.UserContext
	called := false
	handler := middleware.Authenticate(captureHandler(&captured, &called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_RequireCapability(t *testing.T) {
	middleware := auth.NewMiddleware(testAuthConfig(), nil, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := middleware.RequireCapability(domain.CapabilityBookingsChangeStatus)(ok)

	tests := []struct {
		name     string
		user     *auth.UserContext
		expected int
	}{
		{"agent denied", testUser(domain.RoleAgent), http.StatusForbidden},
		{"admin allowed", testUser(domain.RoleAdmin), http.StatusOK},
		{"developer allowed", testUser(domain.RoleDeveloper), http.StatusOK},
		{"no user", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/x/status", nil)
			if tt.user != nil {
				req = req.WithContext(auth.WithUserContext(req.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	middleware := auth.NewMiddleware(testAuthConfig(), nil, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := middleware.RequireRole(domain.RoleMaster)(ok)

	for role, expected := range map[domain.Role]int{
		domain.RoleAgent:     http.StatusForbidden,
		domain.RoleAdmin:     http.StatusForbidden,
		domain.RoleMaster:    http.StatusOK,
		domain.RoleDeveloper: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithUserContext(req.Context(), testUser(role)))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, expected, w.Code, role)
	}
}
