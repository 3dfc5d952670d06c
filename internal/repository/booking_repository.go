package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingFilters holds the optional filters for listing bookings
type BookingFilters struct {
	Search    string
	Status    *domain.BookingStatus
	ClientID  *uuid.UUID
	Lifecycle domain.LifecycleFilter
}

// StatusCount is the number of bookings in one status
type StatusCount struct {
	Status domain.BookingStatus
	Count  int64
}

var bookingSortFields = map[string]string{
	"reference":       "bookings.reference",
	"status":          "bookings.status",
	"statusChangedAt": "bookings.status_changed_at",
	"travelStart":     "bookings.travel_start",
	"createdAt":       "bookings.created_at",
	"updatedAt":       "bookings.updated_at",
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking, inside tx when given
func (r *BookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Client").Create(booking).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.GetByIDTx(ctx, nil, id)
}

// GetByIDTx loads a booking with its client in the effective agency, inside tx when given
func (r *BookingRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	query := conn(r.db, tx).WithContext(ctx).Preload("Client").Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByProposalID finds the booking spawned by a proposal
func (r *BookingRepository) GetByProposalID(ctx context.Context, tx *gorm.DB, proposalID uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	query := conn(r.db, tx).WithContext(ctx).Where("proposal_id = ?", proposalID)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// ExistsForProposal reports whether a booking was already created from the proposal
func (r *BookingRepository) ExistsForProposal(ctx context.Context, tx *gorm.DB, proposalID uuid.UUID) (bool, error) {
	var count int64
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Booking{}).
		Where("proposal_id = ?", proposalID).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus moves a booking from one status to another with a conditional
// update. Zero rows affected means the stored status is no longer from, or the
// booking is not in the agency: the caller lost a race.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id, agencyID uuid.UUID, from, to domain.BookingStatus, changedAt time.Time) (int64, error) {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND agency_id = ? AND status = ?", id, agencyID, from).
		Updates(map[string]interface{}{
			"status":            to,
			"status_changed_at": changedAt,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SetLifecycle archives or restores a booking, inside tx when given
func (r *BookingRepository) SetLifecycle(ctx context.Context, tx *gorm.DB, id uuid.UUID, lifecycle domain.Lifecycle) error {
	query := conn(r.db, tx).WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("lifecycle", lifecycle)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking lifecycle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetInstallationDate records the planned installation date, inside tx
func (r *BookingRepository) SetInstallationDate(ctx context.Context, tx *gorm.DB, id uuid.UUID, date time.Time) error {
	query := conn(r.db, tx).WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("installation_date", date)
	if result.Error != nil {
		return fmt.Errorf("failed to update installation date: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Touch bumps updated_at, inside tx
func (r *BookingRepository) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	query := conn(r.db, tx).WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	return query.Update("updated_at", time.Now().UTC()).Error
}

func (r *BookingRepository) List(ctx context.Context, p Pagination, filters BookingFilters, sort SortConfig) ([]domain.Booking, int64, error) {
	bookings := []domain.Booking{}
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Booking{})
	query = ApplyAgencyFilterWithColumn(ctx, query, "bookings.agency_id")
	query = ApplyLifecycleFilter(query, "bookings.lifecycle", filters.Lifecycle)

	if filters.Status != nil {
		query = query.Where("bookings.status = ?", *filters.Status)
	}
	if filters.ClientID != nil {
		query = query.Where("bookings.client_id = ?", *filters.ClientID)
	}
	if filters.Search != "" {
		searchPattern := "%" + strings.ToLower(filters.Search) + "%"
		query = query.
			Joins("LEFT JOIN clients ON clients.id = bookings.client_id").
			Where("LOWER(bookings.reference) LIKE ? OR LOWER(clients.name) LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Client").
		Order(BuildOrderClause(sort, bookingSortFields, "bookings.updated_at")).
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&bookings).Error

	return bookings, total, err
}

// CountByStatus counts active bookings per status
func (r *BookingRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	counts := []StatusCount{}
	query := r.db.WithContext(ctx).Model(&domain.Booking{})
	query = ApplyAgencyFilter(ctx, query)
	err := query.
		Where("lifecycle = ?", domain.LifecycleActive).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

// CountByLifecycle counts bookings with the given lifecycle
func (r *BookingRepository) CountByLifecycle(ctx context.Context, lifecycle domain.Lifecycle) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Booking{})
	query = ApplyAgencyFilter(ctx, query)
	err := query.Where("lifecycle = ?", lifecycle).Count(&count).Error
	return count, err
}

// ListStale returns active bookings that have stayed in status since before
// cutoff and carry no reminder starting with reminderPrefix after remindedSince
func (r *BookingRepository) ListStale(ctx context.Context, status domain.BookingStatus, cutoff, remindedSince time.Time, reminderPrefix string, limit int) ([]domain.Booking, error) {
	bookings := []domain.Booking{}
	query := r.db.WithContext(ctx).Model(&domain.Booking{})
	query = ApplyAgencyFilter(ctx, query)
	err := query.
		Where("lifecycle = ? AND status = ? AND status_changed_at < ?", domain.LifecycleActive, status, cutoff).
		Where("NOT EXISTS (?)", remindersSince(r.db, reminderPrefix, remindedSince).
			Select("1").
			Where("timeline_events.booking_id = bookings.id")).
		Order("status_changed_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// HasReminderSince reports whether the booking got a reminder starting with
// reminderPrefix after since, inside tx
func (r *BookingRepository) HasReminderSince(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, reminderPrefix string, since time.Time) (bool, error) {
	var count int64
	err := remindersSince(conn(r.db, tx), reminderPrefix, since).
		WithContext(ctx).
		Where("timeline_events.booking_id = ?", bookingID).
		Count(&count).Error
	return count > 0, err
}

func remindersSince(db *gorm.DB, reminderPrefix string, since time.Time) *gorm.DB {
	return db.Model(&domain.TimelineEvent{}).
		Where("timeline_events.type = ? AND timeline_events.description LIKE ? AND timeline_events.created_at >= ?",
			domain.TimelineEventOther, reminderPrefix+"%", since)
}

// LockByID loads a booking of the effective agency and locks its row until tx ends.
// SQLite has no row locks; there the surrounding transaction serialises writers.
func (r *BookingRepository) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	query := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}
