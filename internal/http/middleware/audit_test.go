package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/http/middleware"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingRecorder struct {
	mu      sync.Mutex
	entries []service.ActivityEntry
}

func (r *recordingRecorder) Record(_ context.Context, entry service.ActivityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func auditedRouter(recorder service.ActivityRecorder, cfg *middleware.AuditConfig, status int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewAuditMiddleware(recorder, cfg, zap.NewNop()).Audit)
	respond := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) }
	r.Get("/api/v1/bookings/{id}", respond)
	r.Post("/api/v1/bookings/{id}/status", respond)
	r.Delete("/api/v1/funnels/{id}", respond)
	r.Post("/health", respond)
	return r
}

func TestAudit_RecordsDeniedWrites(t *testing.T) {
	recorder := &recordingRecorder{}
	router := auditedRouter(recorder, nil, http.StatusForbidden)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+id.String()+"/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, "access_denied", entry.Action)
	assert.Equal(t, "booking", entry.EntityType)
	require.NotNil(t, entry.EntityID)
	assert.Equal(t, id, *entry.EntityID)
	assert.Equal(t, http.MethodPost, entry.Details["method"])
}

func TestAudit_IgnoresOtherResponses(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *middleware.AuditConfig
		status int
		method string
		path   string
	}{
		{"successful write", nil, http.StatusOK, http.MethodDelete, "/api/v1/funnels/" + uuid.NewString()},
		{"not found write", nil, http.StatusNotFound, http.MethodDelete, "/api/v1/funnels/" + uuid.NewString()},
		{"denied read without read auditing", nil, http.StatusForbidden, http.MethodGet, "/api/v1/bookings/" + uuid.NewString()},
		{"skipped path", nil, http.StatusForbidden, http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &recordingRecorder{}
			router := auditedRouter(recorder, tt.cfg, tt.status)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rr.Code)
			assert.Empty(t, recorder.entries)
		})
	}
}

func TestAudit_AuditReads(t *testing.T) {
	recorder := &recordingRecorder{}
	cfg := middleware.DefaultAuditConfig()
	cfg.AuditReads = true
	router := auditedRouter(recorder, cfg, http.StatusForbidden)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), nil))

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, "booking", recorder.entries[0].EntityType)
}
