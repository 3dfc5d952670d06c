package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// ProposalFilters holds the optional filters for listing proposals
type ProposalFilters struct {
	Search    string
	ClientID  *uuid.UUID
	OwnerID   *uuid.UUID
	StageID   *uuid.UUID
	Status    *domain.ProposalStatus
	Lifecycle domain.LifecycleFilter
}

var proposalSortFields = map[string]string{
	"title":       "title",
	"totalAmount": "total_amount",
	"validUntil":  "valid_until",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	return r.db.WithContext(ctx).Omit("Client").Create(proposal).Error
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	return r.GetByIDTx(ctx, nil, id)
}

// GetByIDTx loads a proposal with its client, inside tx when given
func (r *ProposalRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Proposal, error) {
	var proposal domain.Proposal
	query := conn(r.db, tx).WithContext(ctx).Preload("Client").Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Update saves the editable fields of a proposal
func (r *ProposalRepository) Update(ctx context.Context, proposal *domain.Proposal) error {
	query := r.db.WithContext(ctx).Model(&domain.Proposal{}).Where("id = ?", proposal.ID)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Updates(map[string]interface{}{
		"operator_id":  proposal.OperatorID,
		"stage_id":     proposal.StageID,
		"title":        proposal.Title,
		"destination":  proposal.Destination,
		"total_amount": proposal.TotalAmount,
		"valid_until":  proposal.ValidUntil,
		"travel_start": proposal.TravelStart,
		"travel_end":   proposal.TravelEnd,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update proposal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStatus moves a proposal from one status to another. It only succeeds if
// the stored status still equals from; otherwise it reports zero rows affected.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to domain.ProposalStatus) (int64, error) {
	query := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Proposal{}).
		Where("id = ? AND status = ?", id, from)
	query = ApplyAgencyFilter(ctx, query)
	result := query.Update("status", to)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update proposal status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ProposalRepository) List(ctx context.Context, p Pagination, filters ProposalFilters, sort SortConfig) ([]domain.Proposal, int64, error) {
	proposals := []domain.Proposal{}
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	query = ApplyAgencyFilter(ctx, query)
	query = ApplyLifecycleFilter(query, "lifecycle", filters.Lifecycle)

	if filters.Search != "" {
		searchPattern := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(destination) LIKE ?", searchPattern, searchPattern)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.StageID != nil {
		query = query.Where("stage_id = ?", *filters.StageID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Client").
		Order(BuildOrderClause(sort, proposalSortFields, "updated_at")).
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&proposals).Error

	return proposals, total, err
}

// OpenTotals counts active proposals still in negotiation and sums their value
func (r *ProposalRepository) OpenTotals(ctx context.Context) (int64, decimal.Decimal, error) {
	var count int64
	var sum decimal.Decimal

	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	query = ApplyAgencyFilter(ctx, query)
	err := query.
		Where("lifecycle = ?", domain.LifecycleActive).
		Where("status IN ?", []domain.ProposalStatus{domain.ProposalStatusDraft, domain.ProposalStatusSent, domain.ProposalStatusAccepted}).
		Select("COUNT(*), COALESCE(SUM(total_amount), 0)").
		Row().
		Scan(&count, &sum)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to compute open proposal totals: %w", err)
	}
	return count, sum, nil
}
