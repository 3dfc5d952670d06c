package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
)

// CacheService lets developers drop an agency's cached entries
type CacheService struct {
	cache       cache.Cache
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

func NewCacheService(c cache.Cache, permissions *PermissionService, activity ActivityRecorder, logger *zap.Logger) *CacheService {
	return &CacheService{cache: c, permissions: permissions, activity: activity, logger: logger}
}

// Invalidate removes every entry cached for the effective agency and returns how many were dropped
func (s *CacheService) Invalidate(ctx context.Context) (int, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityCacheManage); err != nil {
		return 0, err
	}
	agencyID := repository.AgencyFromContext(ctx)
	if agencyID == uuid.Nil {
		return 0, fmt.Errorf("no agency for request: %w", ErrInvalidInput)
	}

	removed, err := s.cache.DeletePrefix(ctx, cache.AgencyPrefix(agencyID))
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache: %w", err)
	}

	s.logger.Info("agency cache invalidated",
		zap.String("agency_id", agencyID.String()),
		zap.Int("removed", removed))
	s.activity.Record(ctx, ActivityEntry{
		Action:     "invalidated",
		EntityType: "cache",
		Summary:    fmt.Sprintf("Cache invalidated (%d entries)", removed),
	})
	return removed, nil
}

// Ping checks the cache backend
func (s *CacheService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
