package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// ErrStageSetMismatch is returned when a reorder does not list exactly the funnel's stages
var ErrStageSetMismatch = errors.New("stage ids do not match the funnel's stages")

// FunnelRepository stores funnels and their ordered stages
type FunnelRepository struct {
	db *gorm.DB
}

func NewFunnelRepository(db *gorm.DB) *FunnelRepository {
	return &FunnelRepository{db: db}
}

func orderedStages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create stores a funnel together with its initial stages
func (r *FunnelRepository) Create(ctx context.Context, funnel *domain.Funnel) error {
	return r.db.WithContext(ctx).Create(funnel).Error
}

// GetByID loads a funnel with its stages in position order
func (r *FunnelRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Funnel, error) {
	var funnel domain.Funnel
	query := r.db.WithContext(ctx).Preload("Stages", orderedStages).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&funnel).Error; err != nil {
		return nil, err
	}
	return &funnel, nil
}

// List returns the agency's funnels, optionally of one kind
func (r *FunnelRepository) List(ctx context.Context, kind *domain.FunnelKind) ([]domain.Funnel, error) {
	funnels := []domain.Funnel{}
	query := r.db.WithContext(ctx).Preload("Stages", orderedStages)
	query = ApplyAgencyFilter(ctx, query)
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	err := query.Order("name ASC").Find(&funnels).Error
	return funnels, err
}

// GetStage loads a stage in the effective agency
func (r *FunnelRepository) GetStage(ctx context.Context, stageID uuid.UUID) (*domain.FunnelStage, error) {
	var stage domain.FunnelStage
	query := r.db.WithContext(ctx).Where("id = ?", stageID)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// AddStage appends a stage at the end of the funnel
func (r *FunnelRepository) AddStage(ctx context.Context, stage *domain.FunnelStage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPosition int
		if err := tx.Model(&domain.FunnelStage{}).
			Where("funnel_id = ?", stage.FunnelID).
			Select("COALESCE(MAX(position), -1)").
			Row().
			Scan(&maxPosition); err != nil {
			return fmt.Errorf("failed to read stage positions: %w", err)
		}

		stage.Position = maxPosition + 1
		return tx.Create(stage).Error
	})
}

// ReorderStages rewrites stage positions to follow stageIDs. All-or-nothing.
func (r *FunnelRepository) ReorderStages(ctx context.Context, funnelID uuid.UUID, stageIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uuid.UUID
		query := tx.Model(&domain.FunnelStage{}).Where("funnel_id = ?", funnelID)
		query = ApplyAgencyFilter(ctx, query)
		if err := query.Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("failed to load stages: %w", err)
		}

		if !sameIDs(existing, stageIDs) {
			return ErrStageSetMismatch
		}

		for position, id := range stageIDs {
			if err := tx.Model(&domain.FunnelStage{}).
				Where("id = ? AND funnel_id = ?", id, funnelID).
				Update("position", position).Error; err != nil {
				return fmt.Errorf("failed to move stage %s: %w", id, err)
			}
		}
		return nil
	})
}

// DeleteStage removes a stage, clears references to it and renumbers the
// remaining stages, all in one transaction
func (r *FunnelRepository) DeleteStage(ctx context.Context, funnelID, stageID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ? AND funnel_id = ?", stageID, funnelID)
		query = ApplyAgencyFilter(ctx, query)
		result := query.Delete(&domain.FunnelStage{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete stage: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := clearStageReferences(ctx, tx, []uuid.UUID{stageID}); err != nil {
			return err
		}

		var remaining []domain.FunnelStage
		if err := tx.Where("funnel_id = ?", funnelID).Order("position ASC").Find(&remaining).Error; err != nil {
			return fmt.Errorf("failed to load remaining stages: %w", err)
		}
		for position, stage := range remaining {
			if stage.Position == position {
				continue
			}
			if err := tx.Model(&domain.FunnelStage{}).Where("id = ?", stage.ID).Update("position", position).Error; err != nil {
				return fmt.Errorf("failed to renumber stage: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a funnel and its stages and clears references to them
func (r *FunnelRepository) Delete(ctx context.Context, funnelID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stageIDs []uuid.UUID
		if err := tx.Model(&domain.FunnelStage{}).Where("funnel_id = ?", funnelID).Pluck("id", &stageIDs).Error; err != nil {
			return fmt.Errorf("failed to load stages: %w", err)
		}

		query := tx.Where("id = ?", funnelID)
		query = ApplyAgencyFilter(ctx, query)
		result := query.Delete(&domain.Funnel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete funnel: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := clearStageReferences(ctx, tx, stageIDs); err != nil {
			return err
		}
		if err := tx.Where("funnel_id = ?", funnelID).Delete(&domain.FunnelStage{}).Error; err != nil {
			return fmt.Errorf("failed to delete stages: %w", err)
		}
		return nil
	})
}

func clearStageReferences(ctx context.Context, tx *gorm.DB, stageIDs []uuid.UUID) error {
	if len(stageIDs) == 0 {
		return nil
	}
	for _, model := range []interface{}{&domain.Client{}, &domain.Proposal{}} {
		query := tx.Model(model).Where("stage_id IN ?", stageIDs)
		query = ApplyAgencyFilter(ctx, query)
		if err := query.Update("stage_id", nil).Error; err != nil {
			return fmt.Errorf("failed to clear stage references: %w", err)
		}
	}
	return nil
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
