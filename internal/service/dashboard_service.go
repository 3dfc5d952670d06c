package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
)

func dashboardKey(agencyID uuid.UUID) string {
	return cache.AgencyKey(agencyID, "dashboard")
}

// invalidateDashboard drops the agency's cached dashboard. Cache failures only log.
func invalidateDashboard(ctx context.Context, c cache.Cache, agencyID uuid.UUID, logger *zap.Logger) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, dashboardKey(agencyID)); err != nil {
		logger.Warn("failed to invalidate dashboard cache",
			zap.String("agency_id", agencyID.String()),
			zap.Error(err),
		)
	}
}

type DashboardService struct {
	bookings    *repository.BookingRepository
	proposals   *repository.ProposalRepository
	cache       cache.Cache
	ttl         time.Duration
	permissions *PermissionService
	logger      *zap.Logger
}

func NewDashboardService(
	bookings *repository.BookingRepository,
	proposals *repository.ProposalRepository,
	c cache.Cache,
	ttl time.Duration,
	permissions *PermissionService,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		bookings:    bookings,
		proposals:   proposals,
		cache:       c,
		ttl:         ttl,
		permissions: permissions,
		logger:      logger,
	}
}

// Get returns the agency's dashboard, served from cache when fresh
func (s *DashboardService) Get(ctx context.Context) (*domain.DashboardDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityDashboardRead); err != nil {
		return nil, err
	}

	agencyID := repository.AgencyFromContext(ctx)
	dto, err := cache.Remember(ctx, s.cache, dashboardKey(agencyID), s.ttl, s.compute)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *DashboardService) compute(ctx context.Context) (domain.DashboardDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return domain.DashboardDTO{}, fmt.Errorf("failed to count bookings: %w", err)
	}
	byStatus := make(map[domain.BookingStatus]int64, len(counts))
	var active int64
	for _, c := range counts {
		byStatus[c.Status] = c.Count
		active += c.Count
	}

	statusCounts := make([]domain.StatusCountDTO, 0, len(domain.AllBookingStatuses()))
	for _, status := range domain.AllBookingStatuses() {
		statusCounts = append(statusCounts, domain.StatusCountDTO{
			StatusDTO: mapper.ToStatusDTO(status),
			Count:     byStatus[status],
		})
	}

	archived, err := s.bookings.CountByLifecycle(ctx, domain.LifecycleArchived)
	if err != nil {
		return domain.DashboardDTO{}, fmt.Errorf("failed to count archived bookings: %w", err)
	}

	openCount, openValue, err := s.proposals.OpenTotals(ctx)
	if err != nil {
		return domain.DashboardDTO{}, err
	}

	return domain.DashboardDTO{
		BookingsByStatus:  statusCounts,
		ActiveBookings:    active,
		ArchivedBookings:  archived,
		OpenProposals:     openCount,
		OpenProposalValue: openValue,
		GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}
