package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityLogFilter represents filter options for querying the activity log
type ActivityLogFilter struct {
	ActorID    *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Since      *time.Time
}

// ActivityLogRepository handles activity log data access
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create inserts a new entry (append-only)
func (r *ActivityLogRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns entries for the effective agency, newest first
func (r *ActivityLogRepository) List(ctx context.Context, p Pagination, filter ActivityLogFilter) ([]domain.ActivityLog, int64, error) {
	logs := []domain.ActivityLog{}
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.ActivityLog{})
	query = ApplyAgencyFilter(ctx, query)

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&logs).Error

	return logs, total, err
}
