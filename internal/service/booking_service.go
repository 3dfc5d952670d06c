package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/logger"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Booking service errors
var (
	ErrBookingArchived         = errors.New("booking is archived")
	ErrInstallationNotExpected = errors.New("installation can only be scheduled for approved bookings")
	ErrDocumentTooLarge        = errors.New("document exceeds maximum upload size")
)

// installationStatuses are the statuses in which an installation date may be set
var installationStatuses = map[domain.BookingStatus]bool{
	domain.BookingStatusApproved:            true,
	domain.BookingStatusPendingInstallation: true,
}

// BookingService owns the booking lifecycle
type BookingService struct {
	db          *gorm.DB
	bookings    *repository.BookingRepository
	documents   *repository.BookingDocumentRepository
	timeline    *TimelineService
	storage     storage.Storage
	cache       cache.Cache
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

func NewBookingService(
	db *gorm.DB,
	bookings *repository.BookingRepository,
	documents *repository.BookingDocumentRepository,
	timeline *TimelineService,
	store storage.Storage,
	c cache.Cache,
	permissions *PermissionService,
	activity ActivityRecorder,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		db:          db,
		bookings:    bookings,
		documents:   documents,
		timeline:    timeline,
		storage:     store,
		cache:       c,
		permissions: permissions,
		activity:    activity,
		logger:      logger,
	}
}

// Get returns one booking of the caller's agency
func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*domain.BookingDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "booking")
	}
	dto := mapper.ToBookingDTO(booking)
	return &dto, nil
}

// List returns a page of bookings
func (s *BookingService) List(ctx context.Context, p repository.Pagination, filters repository.BookingFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, err
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", *filters.Status, ErrInvalidInput)
	}

	bookings, total, err := s.bookings.List(ctx, p, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]domain.BookingDTO, len(bookings))
	for i := range bookings {
		dtos[i] = mapper.ToBookingDTO(&bookings[i])
	}
	return paginated(dtos, total, p), nil
}

// NextStatuses returns the statuses the booking may move to. Archived bookings
// cannot move anywhere.
func (s *BookingService) NextStatuses(ctx context.Context, id uuid.UUID) ([]domain.StatusDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "booking")
	}
	if booking.Lifecycle != domain.LifecycleActive {
		return []domain.StatusDTO{}, nil
	}
	return mapper.ToStatusDTOs(domain.NextStatuses(booking.Status)), nil
}

// ChangeStatus moves a booking to target. The load, validation, conditional
// update and timeline event share one transaction; a concurrent change makes
// the conditional update miss and the call fail with ErrConflict.
func (s *BookingService) ChangeStatus(ctx context.Context, id uuid.UUID, target domain.BookingStatus, note string) (*domain.BookingDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsChangeStatus)
	if err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, ErrInvalidInput)
	}

	log := logger.WithBooking(logger.WithActor(ctx, s.logger), id)

	var (
		updated *domain.Booking
		from    domain.BookingStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.GetByIDTx(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if err := requireActive(booking); err != nil {
			return err
		}
		if err := domain.ValidateTransition(booking.Status, target); err != nil {
			return err
		}

		from = booking.Status
		now := time.Now().UTC()
		rows, err := s.bookings.UpdateStatus(ctx, tx, booking.ID, booking.AgencyID, from, target, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.conflictFor(ctx, tx, id)
		}

		metadata := map[string]any{"from": from, "to": target}
		if note != "" {
			metadata["note"] = note
		}
		description := fmt.Sprintf("Status changed from %s to %s", from.Label(), target.Label())
		if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventStatusChanged, description, metadata); err != nil {
			return err
		}

		booking.Status = target
		booking.StatusChangedAt = now
		updated = booking
		return nil
	})
	if err != nil {
		log.Info("booking status change rejected",
			zap.String("target", string(target)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("booking status changed",
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	s.invalidateStats(ctx, updated.AgencyID)
	s.activity.Record(ctx, ActivityEntry{
		Action:     "status_changed",
		EntityType: "booking",
		EntityID:   &updated.ID,
		Summary:    fmt.Sprintf("Booking %s moved from %s to %s", updated.Reference, from.Label(), target.Label()),
		Details:    map[string]any{"from": from, "to": target},
	})

	dto := mapper.ToBookingDTO(updated)
	return &dto, nil
}

// conflictFor builds the error returned when the conditional update missed
func (s *BookingService) conflictFor(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	current, err := s.bookings.GetByIDTx(ctx, tx, id)
	if err != nil {
		return mapRepoError(err, "booking")
	}
	return &StatusConflictError{Current: BookingStatusView{
		Status:  current.Status,
		Allowed: domain.NextStatuses(current.Status),
	}}
}

// requireActive rejects changes to archived bookings; only Restore applies to them
func requireActive(booking *domain.Booking) error {
	if booking.Lifecycle != domain.LifecycleActive {
		return fmt.Errorf("%w: %w", ErrBookingArchived, ErrConflict)
	}
	return nil
}

// AddNote appends a free-text note to the booking's timeline
func (s *BookingService) AddNote(ctx context.Context, id uuid.UUID, note string) (*domain.TimelineEventDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsAddNote)
	if err != nil {
		return nil, err
	}
	return s.appendEvent(ctx, id, user, domain.TimelineEventNoteAdded, note, nil)
}

// RecordContact logs a conversation with the booking's client
func (s *BookingService) RecordContact(ctx context.Context, id uuid.UUID, req *domain.RecordContactRequest) (*domain.TimelineEventDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsAddNote)
	if err != nil {
		return nil, err
	}
	return s.appendEvent(ctx, id, user, domain.TimelineEventClientContacted, req.Summary, map[string]any{"channel": req.Channel})
}

func (s *BookingService) appendEvent(ctx context.Context, id uuid.UUID, user *auth.UserContext, eventType domain.TimelineEventType, description string, metadata map[string]any) (*domain.TimelineEventDTO, error) {
	var event *domain.TimelineEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.GetByIDTx(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if err := requireActive(booking); err != nil {
			return err
		}
		event, err = s.timeline.Record(ctx, tx, booking, user, eventType, description, metadata)
		if err != nil {
			return err
		}
		return s.bookings.Touch(ctx, tx, booking.ID)
	})
	if err != nil {
		return nil, err
	}

	entry := domain.TimelineEntry{TimelineEvent: *event}
	if user != nil && event.ActorID != nil {
		name := user.DisplayName
		entry.ActorName = &name
	}
	dto := mapper.ToTimelineEventDTO(&entry)
	return &dto, nil
}

// ScheduleInstallation sets the installation date of an approved booking
func (s *BookingService) ScheduleInstallation(ctx context.Context, id uuid.UUID, req *domain.ScheduleInstallationRequest) (*domain.BookingDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsChangeStatus)
	if err != nil {
		return nil, err
	}

	var updated *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.GetByIDTx(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if err := requireActive(booking); err != nil {
			return err
		}
		if !installationStatuses[booking.Status] {
			return fmt.Errorf("%w: %w", ErrInstallationNotExpected, ErrConflict)
		}

		date := req.Date.UTC()
		if err := s.bookings.SetInstallationDate(ctx, tx, booking.ID, date); err != nil {
			return mapRepoError(err, "booking")
		}

		description := "Installation scheduled for " + date.Format("2006-01-02")
		metadata := map[string]any{"date": date.Format(time.RFC3339)}
		if req.Note != "" {
			metadata["note"] = req.Note
		}
		if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventInstallationScheduled, description, metadata); err != nil {
			return err
		}

		booking.InstallationDate = &date
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToBookingDTO(updated)
	return &dto, nil
}

// Archive hides a booking from default listings. Archiving twice is a no-op.
func (s *BookingService) Archive(ctx context.Context, id uuid.UUID) (*domain.BookingDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleArchived)
}

// Restore brings an archived booking back
func (s *BookingService) Restore(ctx context.Context, id uuid.UUID) (*domain.BookingDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleActive)
}

func (s *BookingService) setLifecycle(ctx context.Context, id uuid.UUID, lifecycle domain.Lifecycle) (*domain.BookingDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsArchive)
	if err != nil {
		return nil, err
	}

	var (
		booking *domain.Booking
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err = s.bookings.GetByIDTx(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if booking.Lifecycle == lifecycle {
			return nil
		}
		if err := s.bookings.SetLifecycle(ctx, tx, booking.ID, lifecycle); err != nil {
			return mapRepoError(err, "booking")
		}

		description := "Booking archived"
		if lifecycle == domain.LifecycleActive {
			description = "Booking restored"
		}
		metadata := map[string]any{"lifecycle": lifecycle}
		if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventOther, description, metadata); err != nil {
			return err
		}
		booking.Lifecycle = lifecycle
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.invalidateStats(ctx, booking.AgencyID)
		s.activity.Record(ctx, ActivityEntry{
			Action:     string(lifecycle),
			EntityType: "booking",
			EntityID:   &booking.ID,
			Summary:    fmt.Sprintf("Booking %s is now %s", booking.Reference, lifecycle),
		})
	}

	dto := mapper.ToBookingDTO(booking)
	return &dto, nil
}

// ListDocuments returns the documents attached to a booking
func (s *BookingService) ListDocuments(ctx context.Context, id uuid.UUID) ([]domain.BookingDocumentDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, err
	}
	if _, err := s.bookings.GetByID(ctx, id); err != nil {
		return nil, mapRepoError(err, "booking")
	}
	docs, err := s.documents.ListByBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	dtos := make([]domain.BookingDocumentDTO, len(docs))
	for i := range docs {
		dtos[i] = mapper.ToBookingDocumentDTO(&docs[i])
	}
	return dtos, nil
}

// UploadDocument stores a file and records it on the booking. The stored object
// is removed again when the database write fails.
func (s *BookingService) UploadDocument(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.BookingDocumentDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsManageDocuments)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("filename is required: %w", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "booking")
	}
	if err := requireActive(booking); err != nil {
		return nil, err
	}

	storagePath, size, err := s.storage.Put(ctx, storage.Object{
		AgencyID:    booking.AgencyID,
		BookingID:   booking.ID,
		Filename:    filename,
		ContentType: contentType,
	}, data)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrDocumentTooLarge, ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &domain.BookingDocument{
		BookingID:    booking.ID,
		AgencyID:     booking.AgencyID,
		Filename:     filename,
		ContentType:  contentType,
		Size:         size,
		StoragePath:  storagePath,
		UploadedByID: user.ActorID(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.documents.Create(ctx, tx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		metadata := map[string]any{"documentId": doc.ID, "filename": filename, "size": size}
		if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventDocumentUploaded, "Document uploaded: "+filename, metadata); err != nil {
			return err
		}
		return s.bookings.Touch(ctx, tx, booking.ID)
	})
	if err != nil {
		if rmErr := s.storage.Remove(context.WithoutCancel(ctx), storagePath); rmErr != nil {
			s.logger.Warn("failed to remove orphaned document", zap.String("storage_path", storagePath), zap.Error(rmErr))
		}
		return nil, err
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "document_uploaded",
		EntityType: "booking",
		EntityID:   &booking.ID,
		Summary:    fmt.Sprintf("Document %s uploaded to booking %s", filename, booking.Reference),
	})

	dto := mapper.ToBookingDocumentDTO(doc)
	return &dto, nil
}

// OpenDocument returns a document's metadata and a reader for its content.
// The caller closes the reader.
func (s *BookingService) OpenDocument(ctx context.Context, bookingID, documentID uuid.UUID) (*domain.BookingDocument, io.ReadCloser, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityBookingsRead); err != nil {
		return nil, nil, err
	}
	doc, err := s.documents.GetByID(ctx, bookingID, documentID)
	if err != nil {
		return nil, nil, mapRepoError(err, "document")
	}
	reader, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("document content: %w", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	return doc, reader, nil
}

// RemoveDocument deletes a document record and then its stored content
func (s *BookingService) RemoveDocument(ctx context.Context, bookingID, documentID uuid.UUID) error {
	user, err := s.permissions.Require(ctx, domain.CapabilityBookingsManageDocuments)
	if err != nil {
		return err
	}

	doc, err := s.documents.GetByID(ctx, bookingID, documentID)
	if err != nil {
		return mapRepoError(err, "document")
	}

	var booking *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err = s.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if err := requireActive(booking); err != nil {
			return err
		}
		if err := s.documents.Delete(ctx, tx, doc.ID); err != nil {
			return mapRepoError(err, "document")
		}
		metadata := map[string]any{"documentId": doc.ID, "filename": doc.Filename}
		if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventDocumentRemoved, "Document removed: "+doc.Filename, metadata); err != nil {
			return err
		}
		return s.bookings.Touch(ctx, tx, booking.ID)
	})
	if err != nil {
		return err
	}

	if err := s.storage.Remove(ctx, doc.StoragePath); err != nil {
		s.logger.Warn("failed to remove stored document",
			zap.String("document_id", doc.ID.String()),
			zap.String("storage_path", doc.StoragePath),
			zap.Error(err),
		)
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "document_removed",
		EntityType: "booking",
		EntityID:   &booking.ID,
		Summary:    fmt.Sprintf("Document %s removed from booking %s", doc.Filename, booking.Reference),
	})
	return nil
}

// Timeline returns the booking's events, newest first
func (s *BookingService) Timeline(ctx context.Context, id uuid.UUID) ([]domain.TimelineEventDTO, error) {
	return s.timeline.List(ctx, id)
}

func (s *BookingService) invalidateStats(ctx context.Context, agencyID uuid.UUID) {
	invalidateDashboard(ctx, s.cache, agencyID, s.logger)
}

const staleReminderBatch = 200

// RemindStale appends a reminder to active bookings that have waited in
// pending_documents since before now-staleAfter. A booking gets at most one
// reminder per day, also when several processes run the job at once. The
// context must carry the agency filter.
func (s *BookingService) RemindStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := time.Now().UTC()
	remindedSince := now.Add(-24 * time.Hour)
	stale, err := s.bookings.ListStale(ctx,
		domain.BookingStatusPendingDocuments,
		now.Add(-staleAfter),
		remindedSince,
		domain.StaleDocumentsReminder,
		staleReminderBatch,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bookings: %w", err)
	}

	reminded := 0
	for i := range stale {
		booking := &stale[i]
		days := int(now.Sub(booking.StatusChangedAt).Hours() / 24)
		recorded, err := s.recordStaleReminder(ctx, booking.ID, days, remindedSince)
		if err != nil {
			s.logger.Warn("failed to record stale reminder",
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err))
			continue
		}
		if !recorded {
			continue
		}
		reminded++
		s.activity.Record(ctx, ActivityEntry{
			Action:     "reminded",
			EntityType: "booking",
			EntityID:   &booking.ID,
			Summary:    fmt.Sprintf("Booking %s has waited %d days for documents", booking.Reference, days),
		})
	}
	return reminded, nil
}

// recordStaleReminder locks the booking, checks again that it still waits for
// documents without a reminder since remindedSince and appends one. It reports
// false when there was nothing to do.
func (s *BookingService) recordStaleReminder(ctx context.Context, id uuid.UUID, days int, remindedSince time.Time) (bool, error) {
	recorded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.LockByID(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "booking")
		}
		if booking.Lifecycle != domain.LifecycleActive || booking.Status != domain.BookingStatusPendingDocuments {
			return nil
		}
		found, err := s.bookings.HasReminderSince(ctx, tx, id, domain.StaleDocumentsReminder, remindedSince)
		if err != nil {
			return fmt.Errorf("failed to check reminders: %w", err)
		}
		if found {
			return nil
		}

		description := fmt.Sprintf("%s for %d days", domain.StaleDocumentsReminder, days)
		metadata := map[string]any{"reminder": "stale_documents", "days": days}
		if _, err := s.timeline.Record(ctx, tx, booking, nil, domain.TimelineEventOther, description, metadata); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	return recorded, err
}
