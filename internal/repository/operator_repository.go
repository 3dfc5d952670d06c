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

type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	operator.Code = strings.ToUpper(strings.TrimSpace(operator.Code))
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	var operator domain.Operator
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&operator).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}

// Update saves the editable fields of an operator
func (r *OperatorRepository) Update(ctx context.Context, operator *domain.Operator) error {
	query := r.db.WithContext(ctx).Model(&domain.Operator{}).Where("id = ?", operator.ID)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Updates(map[string]interface{}{
		"name":  operator.Name,
		"email": operator.Email,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update operator: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetLifecycle archives or restores an operator
func (r *OperatorRepository) SetLifecycle(ctx context.Context, id uuid.UUID, lifecycle domain.Lifecycle) error {
	query := r.db.WithContext(ctx).Model(&domain.Operator{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("lifecycle", lifecycle)
	if result.Error != nil {
		return fmt.Errorf("failed to update operator lifecycle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *OperatorRepository) List(ctx context.Context, search string, lifecycle domain.LifecycleFilter) ([]domain.Operator, error) {
	operators := []domain.Operator{}
	query := r.db.WithContext(ctx).Model(&domain.Operator{})
	query = ApplyAgencyFilter(ctx, query)
	query = ApplyLifecycleFilter(query, "lifecycle", lifecycle)
	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", searchPattern, searchPattern)
	}
	err := query.Order("name ASC").Find(&operators).Error
	return operators, err
}

// UpsertByCode inserts operators or refreshes name, email and external reference
// of existing ones with the same agency and code. Returns the number of rows written.
func (r *OperatorRepository) UpsertByCode(ctx context.Context, agencyID uuid.UUID, operators []domain.Operator, syncedAt time.Time) (int64, error) {
	if len(operators) == 0 {
		return 0, nil
	}

	for i := range operators {
		operators[i].AgencyID = agencyID
		operators[i].Code = strings.ToUpper(strings.TrimSpace(operators[i].Code))
		operators[i].LastSyncedAt = &syncedAt
		if operators[i].Lifecycle == "" {
			operators[i].Lifecycle = domain.LifecycleActive
		}
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agency_id"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "external_ref", "last_synced_at", "updated_at"}),
	}).CreateInBatches(&operators, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert operators: %w", result.Error)
	}
	return result.RowsAffected, nil
}
