package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
)

const defaultStageColor = "#64748b"

type FunnelService struct {
	funnels     *repository.FunnelRepository
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

func NewFunnelService(funnels *repository.FunnelRepository, permissions *PermissionService, activity ActivityRecorder, logger *zap.Logger) *FunnelService {
	return &FunnelService{
		funnels:     funnels,
		permissions: permissions,
		activity:    activity,
		logger:      logger,
	}
}

func (s *FunnelService) List(ctx context.Context, kind *domain.FunnelKind) ([]domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsRead); err != nil {
		return nil, err
	}
	funnels, err := s.funnels.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	dtos := make([]domain.FunnelDTO, len(funnels))
	for i := range funnels {
		dtos[i] = mapper.ToFunnelDTO(&funnels[i])
	}
	return dtos, nil
}

func (s *FunnelService) Get(ctx context.Context, id uuid.UUID) (*domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsRead); err != nil {
		return nil, err
	}
	funnel, err := s.funnels.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "funnel")
	}
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

// Create stores a funnel with its initial stages in the given order
func (s *FunnelService) Create(ctx context.Context, req *domain.CreateFunnelRequest) (*domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsManage); err != nil {
		return nil, err
	}
	agencyID := repository.AgencyFromContext(ctx)
	if agencyID == uuid.Nil {
		return nil, fmt.Errorf("no agency for request: %w", ErrInvalidInput)
	}

	funnel := &domain.Funnel{AgencyID: agencyID, Name: req.Name, Kind: req.Kind}
	for i, name := range req.Stages {
		funnel.Stages = append(funnel.Stages, domain.FunnelStage{
			AgencyID: agencyID,
			Name:     name,
			Position: i,
			Color:    defaultStageColor,
		})
	}
	if err := s.funnels.Create(ctx, funnel); err != nil {
		return nil, fmt.Errorf("failed to create funnel: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "created",
		EntityType: "funnel",
		EntityID:   &funnel.ID,
		Summary:    fmt.Sprintf("Funnel %s created", funnel.Name),
	})

	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

// AddStage appends a stage at the end of the funnel
func (s *FunnelService) AddStage(ctx context.Context, funnelID uuid.UUID, req *domain.CreateFunnelStageRequest) (*domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsManage); err != nil {
		return nil, err
	}
	funnel, err := s.funnels.GetByID(ctx, funnelID)
	if err != nil {
		return nil, mapRepoError(err, "funnel")
	}

	color := req.Color
	if color == "" {
		color = defaultStageColor
	}
	stage := &domain.FunnelStage{
		FunnelID: funnel.ID,
		AgencyID: funnel.AgencyID,
		Name:     req.Name,
		Color:    color,
	}
	if err := s.funnels.AddStage(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to add stage: %w", err)
	}
	return s.reload(ctx, funnelID)
}

// ReorderStages rewrites stage positions; stageIDs must list every stage exactly once
func (s *FunnelService) ReorderStages(ctx context.Context, funnelID uuid.UUID, stageIDs []uuid.UUID) (*domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsManage); err != nil {
		return nil, err
	}
	if _, err := s.funnels.GetByID(ctx, funnelID); err != nil {
		return nil, mapRepoError(err, "funnel")
	}
	if err := s.funnels.ReorderStages(ctx, funnelID, stageIDs); err != nil {
		if errors.Is(err, repository.ErrStageSetMismatch) {
			return nil, fmt.Errorf("%w: %w", err, ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to reorder stages: %w", err)
	}
	return s.reload(ctx, funnelID)
}

// DeleteStage removes a stage, clears it from clients and proposals and
// renumbers the rest
func (s *FunnelService) DeleteStage(ctx context.Context, funnelID, stageID uuid.UUID) (*domain.FunnelDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsManage); err != nil {
		return nil, err
	}
	if err := s.funnels.DeleteStage(ctx, funnelID, stageID); err != nil {
		return nil, mapRepoError(err, "stage")
	}
	return s.reload(ctx, funnelID)
}

// Delete removes a funnel and its stages
func (s *FunnelService) Delete(ctx context.Context, funnelID uuid.UUID) error {
	if _, err := s.permissions.Require(ctx, domain.CapabilityFunnelsManage); err != nil {
		return err
	}
	if err := s.funnels.Delete(ctx, funnelID); err != nil {
		return mapRepoError(err, "funnel")
	}
	s.activity.Record(ctx, ActivityEntry{
		Action:     "deleted",
		EntityType: "funnel",
		EntityID:   &funnelID,
		Summary:    "Funnel deleted",
	})
	return nil
}

func (s *FunnelService) reload(ctx context.Context, funnelID uuid.UUID) (*domain.FunnelDTO, error) {
	funnel, err := s.funnels.GetByID(ctx, funnelID)
	if err != nil {
		return nil, mapRepoError(err, "funnel")
	}
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}
