package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/service"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func countFor(dto *domain.DashboardDTO, status domain.BookingStatus) int64 {
	for _, c := range dto.BookingsByStatus {
		if c.Value == status {
			return c.Count
		}
	}
	return -1
}

func TestDashboardService_Get(t *testing.T) {
	h := newHarness(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAdmin)

	testutil.CreateBooking(t, h.db, tenant.Client, domain.BookingStatusPendingDocuments)
	testutil.CreateBooking(t, h.db, tenant.Client, domain.BookingStatusPendingDocuments)
	active := testutil.CreateBooking(t, h.db, tenant.Client, domain.BookingStatusActive)
	testutil.CreateProposal(t, h.db, tenant.Client, tenant.Agent.ID)

	dto, err := h.dashboard.Get(ctx)
	require.NoError(t, err)
	require.Len(t, dto.BookingsByStatus, len(domain.AllBookingStatuses()))
	assert.Equal(t, int64(2), countFor(dto, domain.BookingStatusPendingDocuments))
	assert.Equal(t, int64(1), countFor(dto, domain.BookingStatusActive))
	assert.Equal(t, int64(0), countFor(dto, domain.BookingStatusCancelled))
	assert.Equal(t, int64(3), dto.ActiveBookings)
	assert.Equal(t, int64(1), dto.OpenProposals)
	assert.True(t, dto.OpenProposalValue.Equal(decimal.NewFromInt(1500)))

	testutil.CreateBooking(t, h.db, tenant.Client, domain.BookingStatusPendingDocuments)
	cached, err := h.dashboard.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.ActiveBookings, "served from cache")

	_, err = h.bookings.Archive(ctx, active.ID)
	require.NoError(t, err)
	fresh, err := h.dashboard.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.ActiveBookings)
	assert.Equal(t, int64(1), fresh.ArchivedBookings)
	assert.Equal(t, int64(0), countFor(fresh, domain.BookingStatusActive))
}

func TestDashboardService_IsolatedPerAgency(t *testing.T) {
	h := newHarness(t)
	first := testutil.SeedTenant(t, h.db, "Sol Viagens")
	second := testutil.SeedTenant(t, h.db, "Mar Azul")
	testutil.CreateBooking(t, h.db, first.Client, domain.BookingStatusApproved)

	dto, err := h.dashboard.Get(second.As(domain.RoleAgent))
	require.NoError(t, err)
	assert.Zero(t, dto.ActiveBookings)
}

func TestCacheService_Invalidate(t *testing.T) {
	h := newHarness(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")

	_, err := h.dashboard.Get(tenant.As(domain.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.Count())

	_, err = h.cacheSvc.Invalidate(tenant.As(domain.RoleMaster))
	assert.ErrorIs(t, err, service.ErrForbidden)

	removed, err := h.cacheSvc.Invalidate(tenant.As(domain.RoleDeveloper))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, h.cache.Count())
	assert.NoError(t, h.cacheSvc.Ping(context.Background()))
}

func TestUserService(t *testing.T) {
	h := newHarness(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")

	user, err := h.users.ActiveUser(context.Background(), tenant.Agent.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Agent.Email, user.Email)

	require.NoError(t, h.db.Model(tenant.Agent).Update("lifecycle", domain.LifecycleArchived).Error)
	cached, err := h.users.ActiveUser(context.Background(), tenant.Agent.ID)
	require.NoError(t, err, "served from cache until evicted")
	assert.Equal(t, tenant.Agent.ID, cached.ID)

	h.users.Forget(context.Background(), tenant.Agent.ID)
	_, err = h.users.ActiveUser(context.Background(), tenant.Agent.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	me, err := h.users.Me(tenant.As(domain.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, tenant.Admin.ID, me.UserID)
	assert.True(t, strings.HasPrefix(me.Initials, "AU"), me.Initials)
	require.NotNil(t, me.Agency)
	assert.Equal(t, "Sol Viagens", me.Agency.Name)

	_, err = h.users.List(tenant.As(domain.RoleAgent), domain.LifecycleFilterActive)
	assert.ErrorIs(t, err, service.ErrForbidden)

	users, err := h.users.List(tenant.As(domain.RoleAdmin), domain.LifecycleFilterActive)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestActivitySink_RecordsAsynchronously(t *testing.T) {
	h := newHarness(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAdmin)

	_, err := h.clients.Archive(ctx, tenant.Client.ID)
	require.NoError(t, err)
	h.sink.Record(context.Background(), service.ActivityEntry{Action: "ignored", EntityType: "none", Summary: "no agency"})
	h.sink.Wait()

	page, err := h.activity.List(ctx, repository.NewPagination(1, 20), repository.ActivityLogFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	logs := page.Data.([]domain.ActivityLogDTO)
	assert.Equal(t, "archived", logs[0].Action)
	assert.Equal(t, "client", logs[0].EntityType)
	assert.Equal(t, tenant.Admin.DisplayName, logs[0].ActorName)

	_, err = h.activity.List(tenant.As(domain.RoleAgent), repository.NewPagination(1, 20), repository.ActivityLogFilter{})
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestActivitySink_SwallowsWriteErrors(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	sink := service.NewActivitySink(repository.NewActivityLogRepository(db), zap.NewNop())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		sink.Record(tenant.As(domain.RoleAdmin), service.ActivityEntry{Action: "created", EntityType: "client", Summary: "lost"})
		sink.Close()
	})
	sink.Record(tenant.As(domain.RoleAdmin), service.ActivityEntry{Action: "after_close", EntityType: "client", Summary: "dropped"})
}

func TestPermissionService(t *testing.T) {
	permissions := service.NewPermissionService(zap.NewNop())
	agent := auth.WithUserContext(context.Background(), &auth.UserContext{Role: domain.RoleAgent})

	_, err := permissions.Require(context.Background(), domain.CapabilityBookingsRead)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = permissions.Require(agent, domain.CapabilityBookingsChangeStatus)
	assert.ErrorIs(t, err, service.ErrForbidden)

	dto, err := permissions.Permissions(agent)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, dto.Role)
	assert.Contains(t, dto.Capabilities, domain.CapabilityBookingsAddNote)
	assert.NotContains(t, dto.Capabilities, domain.CapabilityBookingsChangeStatus)
	assert.Contains(t, dto.OwnershipRestricted, domain.CapabilityClientsWrite)
}

func TestDashboardService_TTLExpiry(t *testing.T) {
	h := newHarness(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	permissions := service.NewPermissionService(zap.NewNop())
	short := service.NewDashboardService(
		repository.NewBookingRepository(h.db),
		repository.NewProposalRepository(h.db),
		h.cache, 50*time.Millisecond, permissions, zap.NewNop(),
	)
	ctx := tenant.As(domain.RoleAdmin)

	_, err := short.Get(ctx)
	require.NoError(t, err)
	testutil.CreateBooking(t, h.db, tenant.Client, domain.BookingStatusApproved)

	time.Sleep(100 * time.Millisecond)
	dto, err := short.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dto.ActiveBookings)
}
