package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

type BookingDocumentRepository struct {
	db *gorm.DB
}

func NewBookingDocumentRepository(db *gorm.DB) *BookingDocumentRepository {
	return &BookingDocumentRepository{db: db}
}

// Create stores document metadata, inside tx when given
func (r *BookingDocumentRepository) Create(ctx context.Context, tx *gorm.DB, doc *domain.BookingDocument) error {
	return conn(r.db, tx).WithContext(ctx).Create(doc).Error
}

// GetByID loads a document that belongs to the given booking
func (r *BookingDocumentRepository) GetByID(ctx context.Context, bookingID, id uuid.UUID) (*domain.BookingDocument, error) {
	var doc domain.BookingDocument
	query := r.db.WithContext(ctx).Where("id = ? AND booking_id = ?", id, bookingID)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes document metadata, inside tx when given
func (r *BookingDocumentRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	query := conn(r.db, tx).WithContext(ctx).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Delete(&domain.BookingDocument{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingDocumentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingDocument, error) {
	docs := []domain.BookingDocument{}
	query := r.db.WithContext(ctx).Where("booking_id = ?", bookingID)
	query = ApplyAgencyFilter(ctx, query)
	err := query.Order("created_at DESC").Find(&docs).Error
	return docs, err
}
