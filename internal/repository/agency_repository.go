package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// AgencyRepository reads tenants. Agencies are not scoped by the agency filter:
// callers decide which agency they are allowed to see.
type AgencyRepository struct {
	db *gorm.DB
}

func NewAgencyRepository(db *gorm.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

func (r *AgencyRepository) Create(ctx context.Context, agency *domain.Agency) error {
	return r.db.WithContext(ctx).Create(agency).Error
}

func (r *AgencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error) {
	var agency domain.Agency
	err := r.db.WithContext(ctx).First(&agency, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

// ListActive returns every active agency ordered by name
func (r *AgencyRepository) ListActive(ctx context.Context) ([]domain.Agency, error) {
	agencies := []domain.Agency{}
	err := r.db.WithContext(ctx).
		Where("lifecycle = ?", domain.LifecycleActive).
		Order("name ASC").
		Find(&agencies).Error
	return agencies, err
}
