package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// TimelineRepository stores booking timeline events. Events are append-only:
// there is no update or delete.
type TimelineRepository struct {
	db *gorm.DB
}

func NewTimelineRepository(db *gorm.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Append inserts one event inside the caller's transaction. CreatedAt is set here
// so every event carries a server-side timestamp.
func (r *TimelineRepository) Append(ctx context.Context, tx *gorm.DB, event *domain.TimelineEvent) error {
	if !event.Type.IsValid() {
		return fmt.Errorf("unknown timeline event type %q", event.Type)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := conn(r.db, tx).WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

// ListByBooking returns the booking's events newest first, each with the actor's
// display name when the actor is a user that still exists
func (r *TimelineRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.TimelineEntry, error) {
	entries := []domain.TimelineEntry{}
	query := r.db.WithContext(ctx).
		Model(&domain.TimelineEvent{}).
		Select("timeline_events.*, users.display_name AS actor_name").
		Joins("LEFT JOIN users ON users.id = timeline_events.actor_id").
		Where("timeline_events.booking_id = ?", bookingID)
	query = ApplyAgencyFilterWithColumn(ctx, query, "timeline_events.agency_id")
	err := query.
		Order("timeline_events.created_at DESC").
		Order("timeline_events.id DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByBooking returns how many events a booking has
func (r *TimelineRepository) CountByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.TimelineEvent{}).Where("booking_id = ?", bookingID)
	query = ApplyAgencyFilter(ctx, query)
	err := query.Count(&count).Error
	return count, err
}
