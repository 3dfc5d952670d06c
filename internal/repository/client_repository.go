package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// ClientFilters holds the optional filters for listing clients
type ClientFilters struct {
	Search    string
	StageID   *uuid.UUID
	OwnerID   *uuid.UUID
	Lifecycle domain.LifecycleFilter
}

var clientSortFields = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return r.GetByIDTx(ctx, nil, id)
}

// GetByIDTx loads a client in the effective agency, inside tx when given
func (r *ClientRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	query := conn(r.db, tx).WithContext(ctx).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// Update saves the editable fields of a client
func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := r.db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", client.ID)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Updates(map[string]interface{}{
		"name":     client.Name,
		"email":    client.Email,
		"phone":    client.Phone,
		"document": client.Document,
		"notes":    client.Notes,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update client: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetLifecycle archives or restores a client
func (r *ClientRepository) SetLifecycle(ctx context.Context, id uuid.UUID, lifecycle domain.Lifecycle) error {
	query := r.db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("lifecycle", lifecycle)
	if result.Error != nil {
		return fmt.Errorf("failed to update client lifecycle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetStage moves a client to a funnel stage; nil clears it
func (r *ClientRepository) SetStage(ctx context.Context, id uuid.UUID, stageID *uuid.UUID) error {
	query := r.db.WithContext(ctx).Model(&domain.Client{}).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("stage_id", stageID)
	if result.Error != nil {
		return fmt.Errorf("failed to update client stage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearStages removes references to the given stages, inside tx
func (r *ClientRepository) ClearStages(ctx context.Context, tx *gorm.DB, stageIDs []uuid.UUID) error {
	if len(stageIDs) == 0 {
		return nil
	}
	query := conn(r.db, tx).WithContext(ctx).Model(&domain.Client{}).Where("stage_id IN ?", stageIDs)
	query = ApplyAgencyFilter(ctx, query)
	return query.Update("stage_id", nil).Error
}

func (r *ClientRepository) List(ctx context.Context, p Pagination, filters ClientFilters, sort SortConfig) ([]domain.Client, int64, error) {
	clients := []domain.Client{}
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Client{})
	query = ApplyAgencyFilter(ctx, query)
	query = ApplyLifecycleFilter(query, "lifecycle", filters.Lifecycle)

	if filters.Search != "" {
		searchPattern := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR document LIKE ?", searchPattern, searchPattern, searchPattern)
	}
	if filters.StageID != nil {
		query = query.Where("stage_id = ?", *filters.StageID)
	}
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(BuildOrderClause(sort, clientSortFields, "updated_at")).
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&clients).Error

	return clients, total, err
}
