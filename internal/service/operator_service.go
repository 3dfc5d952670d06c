package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/operatorcatalog"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
)

// OperatorCatalog is the external source of operators
type OperatorCatalog interface {
	IsEnabled() bool
	FetchOperators(ctx context.Context, agencySlug string) ([]operatorcatalog.Operator, error)
}

// SyncResult summarises one catalog sync
type SyncResult struct {
	Agencies int   `json:"agencies"`
	Fetched  int   `json:"fetched"`
	Upserted int64 `json:"upserted"`
	Failed   int   `json:"failed"`
}

type OperatorService struct {
	operators   *repository.OperatorRepository
	agencies    *repository.AgencyRepository
	catalog     OperatorCatalog
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

// NewOperatorService creates the operator service. catalog may be nil when
// the warehouse is disabled.
func NewOperatorService(
	operators *repository.OperatorRepository,
	agencies *repository.AgencyRepository,
	catalog OperatorCatalog,
	permissions *PermissionService,
	activity ActivityRecorder,
	logger *zap.Logger,
) *OperatorService {
	return &OperatorService{
		operators:   operators,
		agencies:    agencies,
		catalog:     catalog,
		permissions: permissions,
		activity:    activity,
		logger:      logger,
	}
}

func (s *OperatorService) List(ctx context.Context, search string, lifecycle domain.LifecycleFilter) ([]domain.OperatorDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityOperatorsRead); err != nil {
		return nil, err
	}
	operators, err := s.operators.List(ctx, search, lifecycle)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	dtos := make([]domain.OperatorDTO, len(operators))
	for i := range operators {
		dtos[i] = mapper.ToOperatorDTO(&operators[i])
	}
	return dtos, nil
}

func (s *OperatorService) Create(ctx context.Context, req *domain.CreateOperatorRequest) (*domain.OperatorDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityOperatorsManage); err != nil {
		return nil, err
	}
	agencyID := repository.AgencyFromContext(ctx)
	if agencyID == uuid.Nil {
		return nil, fmt.Errorf("no agency for request: %w", ErrInvalidInput)
	}

	operator := &domain.Operator{
		AgencyID:    agencyID,
		Name:        strings.TrimSpace(req.Name),
		Code:        req.Code,
		ExternalRef: req.ExternalRef,
		Email:       req.Email,
		Lifecycle:   domain.LifecycleActive,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, mapRepoError(err, "operator code "+strings.ToUpper(req.Code))
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "created",
		EntityType: "operator",
		EntityID:   &operator.ID,
		Summary:    fmt.Sprintf("Operator %s (%s) created", operator.Name, operator.Code),
	})

	dto := mapper.ToOperatorDTO(operator)
	return &dto, nil
}

func (s *OperatorService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOperatorRequest) (*domain.OperatorDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityOperatorsManage); err != nil {
		return nil, err
	}
	operator, err := s.operators.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "operator")
	}

	operator.Name = strings.TrimSpace(req.Name)
	operator.Email = req.Email
	if err := s.operators.Update(ctx, operator); err != nil {
		return nil, mapRepoError(err, "operator")
	}
	dto := mapper.ToOperatorDTO(operator)
	return &dto, nil
}

func (s *OperatorService) Archive(ctx context.Context, id uuid.UUID) (*domain.OperatorDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleArchived)
}

func (s *OperatorService) Restore(ctx context.Context, id uuid.UUID) (*domain.OperatorDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleActive)
}

func (s *OperatorService) setLifecycle(ctx context.Context, id uuid.UUID, lifecycle domain.Lifecycle) (*domain.OperatorDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityOperatorsManage); err != nil {
		return nil, err
	}
	operator, err := s.operators.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "operator")
	}
	if operator.Lifecycle != lifecycle {
		if err := s.operators.SetLifecycle(ctx, id, lifecycle); err != nil {
			return nil, mapRepoError(err, "operator")
		}
		operator.Lifecycle = lifecycle
	}
	dto := mapper.ToOperatorDTO(operator)
	return &dto, nil
}

// Sync pulls the caller's agency operators from the catalog
func (s *OperatorService) Sync(ctx context.Context) (*SyncResult, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityOperatorsManage); err != nil {
		return nil, err
	}
	if !s.catalogEnabled() {
		return nil, fmt.Errorf("operator catalog: %w", ErrServiceUnavailable)
	}

	agency, err := s.agencies.GetByID(ctx, repository.AgencyFromContext(ctx))
	if err != nil {
		return nil, mapRepoError(err, "agency")
	}

	result := &SyncResult{Agencies: 1}
	fetched, upserted, err := s.SyncAgency(ctx, agency)
	result.Fetched, result.Upserted = fetched, upserted
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "synced",
		EntityType: "operator",
		Summary:    fmt.Sprintf("Operator catalog synced: %d fetched", fetched),
		Details:    map[string]any{"fetched": fetched, "upserted": upserted},
	})
	return result, nil
}

// SyncAll syncs every active agency. Used by the scheduled job; failures of one
// agency do not stop the others.
func (s *OperatorService) SyncAll(ctx context.Context) (*SyncResult, error) {
	if !s.catalogEnabled() {
		return nil, fmt.Errorf("operator catalog: %w", ErrServiceUnavailable)
	}

	agencies, err := s.agencies.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}

	result := &SyncResult{Agencies: len(agencies)}
	for i := range agencies {
		agencyCtx := auth.WithAgencyFilter(ctx, &auth.AgencyFilter{AgencyID: agencies[i].ID})
		fetched, upserted, err := s.SyncAgency(agencyCtx, &agencies[i])
		result.Fetched += fetched
		result.Upserted += upserted
		if err != nil {
			result.Failed++
			s.logger.Error("operator sync failed for agency",
				zap.String("agency_id", agencies[i].ID.String()),
				zap.String("agency_slug", agencies[i].Slug),
				zap.Error(err))
		}
	}
	return result, nil
}

// SyncAgency fetches one agency's operators and upserts them by code
func (s *OperatorService) SyncAgency(ctx context.Context, agency *domain.Agency) (int, int64, error) {
	rows, err := s.catalog.FetchOperators(ctx, agency.Slug)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch operators for %s: %w", agency.Slug, err)
	}

	operators := make([]domain.Operator, 0, len(rows))
	for _, row := range rows {
		operators = append(operators, domain.Operator{
			Name:        row.Name,
			Code:        row.Code,
			Email:       row.Email,
			ExternalRef: row.ExternalRef,
		})
	}

	upserted, err := s.operators.UpsertByCode(ctx, agency.ID, operators, time.Now().UTC())
	if err != nil {
		return len(rows), 0, err
	}

	s.logger.Info("operator catalog synced",
		zap.String("agency_slug", agency.Slug),
		zap.Int("fetched", len(rows)),
		zap.Int64("upserted", upserted))
	return len(rows), upserted, nil
}

func (s *OperatorService) catalogEnabled() bool {
	return s.catalog != nil && s.catalog.IsEnabled()
}
