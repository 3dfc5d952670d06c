package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TimelineService records and reads booking timelines. Recording always happens
// inside the transaction of the change being recorded.
type TimelineService struct {
	bookings    *repository.BookingRepository
	timeline    *repository.TimelineRepository
	permissions *PermissionService
	logger      *zap.Logger
}

func NewTimelineService(
	bookings *repository.BookingRepository,
	timeline *repository.TimelineRepository,
	permissions *PermissionService,
	logger *zap.Logger,
) *TimelineService {
	return &TimelineService{
		bookings:    bookings,
		timeline:    timeline,
		permissions: permissions,
		logger:      logger,
	}
}

// Record appends an event for booking inside tx. actor may be nil for
// system-generated events.
func (s *TimelineService) Record(ctx context.Context, tx *gorm.DB, booking *domain.Booking, actor *auth.UserContext, eventType domain.TimelineEventType, description string, metadata map[string]any) (*domain.TimelineEvent, error) {
	event := &domain.TimelineEvent{
		BookingID:   booking.ID,
		AgencyID:    booking.AgencyID,
		Type:        eventType,
		Description: description,
	}
	if actor != nil {
		event.ActorID = actor.ActorID()
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		event.Metadata = datatypes.JSON(raw)
	}

	if err := s.timeline.Append(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns the booking's timeline, newest first
func (s *TimelineService) List(ctx context.Context, bookingID uuid.UUID) ([]domain.TimelineEventDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, err
	}

	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, mapRepoError(err, "booking")
	}

	entries, err := s.timeline.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	dtos := make([]domain.TimelineEventDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToTimelineEventDTO(&entries[i])
	}
	return dtos, nil
}
