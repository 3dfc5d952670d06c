package service_test

import (
	"testing"
	"time"

	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/straye-as/travel-crm-api/internal/storage"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db          *gorm.DB
	cache       *cache.MemoryCache
	sink        *service.ActivitySink
	permissions *service.PermissionService
	bookings    *service.BookingService
	proposals   *service.ProposalService
	clients     *service.ClientService
	funnels     *service.FunnelService
	dashboard   *service.DashboardService
	activity    *service.ActivityService
	users       *service.UserService
	cacheSvc    *service.CacheService

	bookingRepo  *repository.BookingRepository
	timelineRepo *repository.TimelineRepository
	activityRepo *repository.ActivityLogRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)

	memCache := cache.NewMemoryCache()
	store, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)

	bookingRepo := repository.NewBookingRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	clientRepo := repository.NewClientRepository(db)
	funnelRepo := repository.NewFunnelRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	userRepo := repository.NewUserRepository(db)
	agencyRepo := repository.NewAgencyRepository(db)
	documentRepo := repository.NewBookingDocumentRepository(db)

	permissions := service.NewPermissionService(logger)
	sink := service.NewActivitySink(activityRepo, logger)
	t.Cleanup(func() {
		sink.Close()
		_ = memCache.Close()
	})

	timeline := service.NewTimelineService(bookingRepo, timelineRepo, permissions, logger)

	return &harness{
		db:           db,
		cache:        memCache,
		sink:         sink,
		permissions:  permissions,
		bookings:     service.NewBookingService(db, bookingRepo, documentRepo, timeline, store, memCache, permissions, sink, logger),
		proposals:    service.NewProposalService(db, proposalRepo, clientRepo, operatorRepo, funnelRepo, bookingRepo, timeline, memCache, permissions, sink, logger),
		clients:      service.NewClientService(clientRepo, funnelRepo, permissions, sink, logger),
		funnels:      service.NewFunnelService(funnelRepo, permissions, sink, logger),
		dashboard:    service.NewDashboardService(bookingRepo, proposalRepo, memCache, 5*time.Minute, permissions, logger),
		activity:     service.NewActivityService(activityRepo, permissions),
		users:        service.NewUserService(userRepo, agencyRepo, memCache, 5*time.Minute, permissions, logger),
		cacheSvc:     service.NewCacheService(memCache, permissions, sink, logger),
		bookingRepo:  bookingRepo,
		timelineRepo: timelineRepo,
		activityRepo: activityRepo,
	}
}
