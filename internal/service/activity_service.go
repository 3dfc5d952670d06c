package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const activityWriteTimeout = 5 * time.Second

// ActivityEntry is one human-readable audit record
type ActivityEntry struct {
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Summary    string
	Details    map[string]any
}

// ActivityRecorder records activity without blocking the caller
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivitySink writes activity log entries in the background. Failures are
// logged and never reach the caller.
type ActivitySink struct {
	repo   *repository.ActivityLogRepository
	logger *zap.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewActivitySink(repo *repository.ActivityLogRepository, logger *zap.Logger) *ActivitySink {
	return &ActivitySink{repo: repo, logger: logger}
}

// Record captures actor and agency from ctx and stores the entry asynchronously
func (s *ActivitySink) Record(ctx context.Context, entry ActivityEntry) {
	if s == nil {
		return
	}

	agencyID, ok := auth.EffectiveAgencyID(ctx)
	if !ok {
		s.logger.Debug("skipping activity without agency", zap.String("action", entry.Action))
		return
	}

	log := &domain.ActivityLog{
		AgencyID:   agencyID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Summary:    entry.Summary,
		CreatedAt:  time.Now().UTC(),
	}
	if user, ok := auth.FromContext(ctx); ok {
		log.ActorID = user.ActorID()
		log.ActorName = user.DisplayName
	}
	if len(entry.Details) > 0 {
		if raw, err := json.Marshal(entry.Details); err == nil {
			log.Details = datatypes.JSON(raw)
		} else {
			s.logger.Warn("failed to encode activity details", zap.Error(err))
		}
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic while recording activity", zap.Any("panic", r))
			}
		}()

		writeCtx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
		defer cancel()

		if err := s.repo.Create(writeCtx, log); err != nil {
			s.logger.Warn("failed to record activity",
				zap.String("action", log.Action),
				zap.String("entity_type", log.EntityType),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every pending write has finished
func (s *ActivitySink) Wait() {
	s.wg.Wait()
}

// Close stops accepting entries and waits for pending writes
func (s *ActivitySink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// ActivityService reads the activity log
type ActivityService struct {
	repo        *repository.ActivityLogRepository
	permissions *PermissionService
}

func NewActivityService(repo *repository.ActivityLogRepository, permissions *PermissionService) *ActivityService {
	return &ActivityService{repo: repo, permissions: permissions}
}

// List returns the agency's activity log, newest first
func (s *ActivityService) List(ctx context.Context, p repository.Pagination, filter repository.ActivityLogFilter) (*domain.PaginatedResponse, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityActivityRead); err != nil {
		return nil, err
	}

	logs, total, err := s.repo.List(ctx, p, filter)
	if err != nil {
		return nil, mapRepoError(err, "failed to list activity")
	}

	dtos := make([]domain.ActivityLogDTO, len(logs))
	for i := range logs {
		dtos[i] = mapper.ToActivityLogDTO(&logs[i])
	}
	return paginated(dtos, total, p), nil
}

func paginated(data interface{}, total int64, p repository.Pagination) *domain.PaginatedResponse {
	totalPages := int(total) / p.PageSize
	if int(total)%p.PageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
	}
}
