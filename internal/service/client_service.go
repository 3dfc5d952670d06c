package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrWrongFunnelKind is returned when a client is moved to a stage of a proposal funnel
var ErrWrongFunnelKind = errors.New("stage does not belong to a client funnel")

type ClientService struct {
	clients     *repository.ClientRepository
	funnels     *repository.FunnelRepository
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

func NewClientService(
	clients *repository.ClientRepository,
	funnels *repository.FunnelRepository,
	permissions *PermissionService,
	activity ActivityRecorder,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		clients:     clients,
		funnels:     funnels,
		permissions: permissions,
		activity:    activity,
		logger:      logger,
	}
}

// Create adds a client owned by the caller
func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest) (*domain.ClientDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityClientsWrite)
	if err != nil {
		return nil, err
	}
	agencyID := repository.AgencyFromContext(ctx)
	if agencyID == uuid.Nil {
		return nil, fmt.Errorf("no agency for request: %w", ErrInvalidInput)
	}
	if req.StageID != nil {
		if err := s.checkClientStage(ctx, *req.StageID); err != nil {
			return nil, err
		}
	}

	client := &domain.Client{
		AgencyID:  agencyID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
		Document:  req.Document,
		Notes:     req.Notes,
		StageID:   req.StageID,
		OwnerID:   user.UserID,
		Lifecycle: domain.LifecycleActive,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:     "created",
		EntityType: "client",
		EntityID:   &client.ID,
		Summary:    fmt.Sprintf("Client %s created", client.Name),
	})

	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityClientsRead); err != nil {
		return nil, err
	}
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "client")
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) List(ctx context.Context, p repository.Pagination, filters repository.ClientFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityClientsRead); err != nil {
		return nil, err
	}
	clients, total, err := s.clients.List(ctx, p, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i])
	}
	return paginated(dtos, total, p), nil
}

// loadOwned loads a client and applies the ownership rule for capability
func (s *ClientService) loadOwned(ctx context.Context, id uuid.UUID, capability domain.Capability) (*domain.Client, error) {
	if _, err := s.permissions.Require(ctx, capability); err != nil {
		return nil, err
	}
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "client")
	}
	if _, err := s.permissions.RequireOwnership(ctx, capability, client.OwnerID); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *ClientService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateClientRequest) (*domain.ClientDTO, error) {
	client, err := s.loadOwned(ctx, id, domain.CapabilityClientsWrite)
	if err != nil {
		return nil, err
	}

	client.Name = strings.TrimSpace(req.Name)
	client.Email = strings.ToLower(strings.TrimSpace(req.Email))
	client.Phone = req.Phone
	client.Document = req.Document
	client.Notes = req.Notes

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, mapRepoError(err, "client")
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) Archive(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleArchived)
}

func (s *ClientService) Restore(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	return s.setLifecycle(ctx, id, domain.LifecycleActive)
}

func (s *ClientService) setLifecycle(ctx context.Context, id uuid.UUID, lifecycle domain.Lifecycle) (*domain.ClientDTO, error) {
	client, err := s.loadOwned(ctx, id, domain.CapabilityClientsArchive)
	if err != nil {
		return nil, err
	}
	if client.Lifecycle != lifecycle {
		if err := s.clients.SetLifecycle(ctx, id, lifecycle); err != nil {
			return nil, mapRepoError(err, "client")
		}
		client.Lifecycle = lifecycle
		s.activity.Record(ctx, ActivityEntry{
			Action:     string(lifecycle),
			EntityType: "client",
			EntityID:   &client.ID,
			Summary:    fmt.Sprintf("Client %s is now %s", client.Name, lifecycle),
		})
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// MoveToStage places a client in a stage of one of the agency's client funnels
func (s *ClientService) MoveToStage(ctx context.Context, id, stageID uuid.UUID) (*domain.ClientDTO, error) {
	client, err := s.loadOwned(ctx, id, domain.CapabilityClientsWrite)
	if err != nil {
		return nil, err
	}
	if err := s.checkClientStage(ctx, stageID); err != nil {
		return nil, err
	}
	if err := s.clients.SetStage(ctx, id, &stageID); err != nil {
		return nil, mapRepoError(err, "client")
	}
	client.StageID = &stageID
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) checkClientStage(ctx context.Context, stageID uuid.UUID) error {
	stage, err := s.funnels.GetStage(ctx, stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("stage not found: %w", ErrInvalidInput)
		}
		return err
	}
	funnel, err := s.funnels.GetByID(ctx, stage.FunnelID)
	if err != nil {
		return mapRepoError(err, "funnel")
	}
	if funnel.Kind != domain.FunnelKindClient {
		return fmt.Errorf("%w: %w", ErrWrongFunnelKind, ErrInvalidInput)
	}
	return nil
}
