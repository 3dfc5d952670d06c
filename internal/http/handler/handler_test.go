package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/http/handler"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/straye-as/travel-crm-api/internal/storage"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type handlers struct {
	db       *gorm.DB
	booking  *handler.BookingHandler
	proposal *handler.ProposalHandler
	client   *handler.ClientHandler
	funnel   *handler.FunnelHandler
}

func setupHandlers(t *testing.T) *handlers {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)

	memCache := cache.NewMemoryCache()
	store, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)

	bookingRepo := repository.NewBookingRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	clientRepo := repository.NewClientRepository(db)
	funnelRepo := repository.NewFunnelRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	documentRepo := repository.NewBookingDocumentRepository(db)

	permissions := service.NewPermissionService(logger)
	sink := service.NewActivitySink(repository.NewActivityLogRepository(db), logger)
	t.Cleanup(func() {
		sink.Close()
		_ = memCache.Close()
	})
	timeline := service.NewTimelineService(bookingRepo, timelineRepo, permissions, logger)

	bookingService := service.NewBookingService(db, bookingRepo, documentRepo, timeline, store, memCache, permissions, sink, logger)
	proposalService := service.NewProposalService(db, proposalRepo, clientRepo, operatorRepo, funnelRepo, bookingRepo, timeline, memCache, permissions, sink, logger)
	clientService := service.NewClientService(clientRepo, funnelRepo, permissions, sink, logger)
	funnelService := service.NewFunnelService(funnelRepo, permissions, sink, logger)

	return &handlers{
		db:       db,
		booking:  handler.NewBookingHandler(bookingService, 1, logger),
		proposal: handler.NewProposalHandler(proposalService, logger),
		client:   handler.NewClientHandler(clientService, logger),
		funnel:   handler.NewFunnelHandler(funnelService, logger),
	}
}

// newRequest builds a request carrying ctx and the given chi URL params
func newRequest(ctx context.Context, method, target string, body interface{}, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

// eventually waits for the async activity sink to drain
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
