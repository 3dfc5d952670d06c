package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/logger"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Proposal service errors
var (
	ErrProposalClosed            = errors.New("proposal is no longer open")
	ErrInvalidProposalTransition = errors.New("proposal status transition not allowed")
	ErrBookingAlreadyExists      = errors.New("proposal already has a booking")
)

const defaultCurrency = "BRL"

type ProposalService struct {
	db          *gorm.DB
	proposals   *repository.ProposalRepository
	clients     *repository.ClientRepository
	operators   *repository.OperatorRepository
	funnels     *repository.FunnelRepository
	bookings    *repository.BookingRepository
	timeline    *TimelineService
	cache       cache.Cache
	permissions *PermissionService
	activity    ActivityRecorder
	logger      *zap.Logger
}

func NewProposalService(
	db *gorm.DB,
	proposals *repository.ProposalRepository,
	clients *repository.ClientRepository,
	operators *repository.OperatorRepository,
	funnels *repository.FunnelRepository,
	bookings *repository.BookingRepository,
	timeline *TimelineService,
	c cache.Cache,
	permissions *PermissionService,
	activity ActivityRecorder,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		db:          db,
		proposals:   proposals,
		clients:     clients,
		operators:   operators,
		funnels:     funnels,
		bookings:    bookings,
		timeline:    timeline,
		cache:       c,
		permissions: permissions,
		activity:    activity,
		logger:      logger,
	}
}

// Create opens a draft proposal owned by the caller
func (s *ProposalService) Create(ctx context.Context, req *domain.CreateProposalRequest) (*domain.ProposalDTO, error) {
	user, err := s.permissions.Require(ctx, domain.CapabilityProposalsWrite)
	if err != nil {
		return nil, err
	}
	if req.TotalAmount.IsNegative() {
		return nil, fmt.Errorf("total amount cannot be negative: %w", ErrInvalidInput)
	}
	if err := validateTravelDates(req.TravelStart, req.TravelEnd); err != nil {
		return nil, err
	}

	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, mapRepoError(err, "client")
	}
	if err := s.checkReferences(ctx, req.OperatorID, req.StageID); err != nil {
		return nil, err
	}

	ownerID := user.UserID
	if user.IsSystem() {
		ownerID = client.OwnerID
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	proposal := &domain.Proposal{
		AgencyID:    client.AgencyID,
		ClientID:    client.ID,
		OperatorID:  req.OperatorID,
		StageID:     req.StageID,
		Title:       req.Title,
		Destination: req.Destination,
		TotalAmount: req.TotalAmount,
		Currency:    currency,
		Status:      domain.ProposalStatusDraft,
		ValidUntil:  req.ValidUntil,
		TravelStart: req.TravelStart,
		TravelEnd:   req.TravelEnd,
		OwnerID:     ownerID,
		Lifecycle:   domain.LifecycleActive,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}
	proposal.Client = client

	invalidateDashboard(ctx, s.cache, proposal.AgencyID, s.logger)
	s.activity.Record(ctx, ActivityEntry{
		Action:     "created",
		EntityType: "proposal",
		EntityID:   &proposal.ID,
		Summary:    fmt.Sprintf("Proposal %q created for %s", proposal.Title, client.Name),
	})

	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

func (s *ProposalService) Get(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityProposalsRead); err != nil {
		return nil, err
	}
	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "proposal")
	}
	dto := mapper.ToProposalDTO(proposal)
	if proposal.Status == domain.ProposalStatusActiveBooking {
		if booking, err := s.bookings.GetByProposalID(ctx, nil, proposal.ID); err == nil {
			dto.BookingID = &booking.ID
		}
	}
	return &dto, nil
}

func (s *ProposalService) List(ctx context.Context, p repository.Pagination, filters repository.ProposalFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityProposalsRead); err != nil {
		return nil, err
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, fmt.Errorf("unknown proposal status %q: %w", *filters.Status, ErrInvalidInput)
	}

	proposals, total, err := s.proposals.List(ctx, p, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	dtos := make([]domain.ProposalDTO, len(proposals))
	for i := range proposals {
		dtos[i] = mapper.ToProposalDTO(&proposals[i])
	}
	return paginated(dtos, total, p), nil
}

// Update edits an open proposal. AGENTs may only edit their own.
func (s *ProposalService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProposalRequest) (*domain.ProposalDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityProposalsWrite); err != nil {
		return nil, err
	}
	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "proposal")
	}
	if _, err := s.permissions.RequireOwnership(ctx, domain.CapabilityProposalsWrite, proposal.OwnerID); err != nil {
		return nil, err
	}
	if !proposal.Status.IsOpen() {
		return nil, fmt.Errorf("%w: %w", ErrProposalClosed, ErrConflict)
	}
	if req.TotalAmount.IsNegative() {
		return nil, fmt.Errorf("total amount cannot be negative: %w", ErrInvalidInput)
	}
	if err := validateTravelDates(req.TravelStart, req.TravelEnd); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, req.OperatorID, req.StageID); err != nil {
		return nil, err
	}

	proposal.OperatorID = req.OperatorID
	proposal.StageID = req.StageID
	proposal.Title = req.Title
	proposal.Destination = req.Destination
	proposal.TotalAmount = req.TotalAmount
	proposal.ValidUntil = req.ValidUntil
	proposal.TravelStart = req.TravelStart
	proposal.TravelEnd = req.TravelEnd

	if err := s.proposals.Update(ctx, proposal); err != nil {
		return nil, mapRepoError(err, "proposal")
	}
	invalidateDashboard(ctx, s.cache, proposal.AgencyID, s.logger)

	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

// ChangeStatus moves a proposal along its business flow. Moving to
// active_booking creates the booking and its first timeline event in the same
// transaction as the status update.
func (s *ProposalService) ChangeStatus(ctx context.Context, id uuid.UUID, target domain.ProposalStatus) (*domain.ProposalStatusChangeResult, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("unknown proposal status %q: %w", target, ErrInvalidInput)
	}
	capability := domain.CapabilityProposalsWrite
	if target == domain.ProposalStatusActiveBooking {
		capability = domain.CapabilityProposalsActivate
	}

	if _, err := s.permissions.Require(ctx, capability); err != nil {
		return nil, err
	}
	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "proposal")
	}
	user, err := s.permissions.RequireOwnership(ctx, capability, proposal.OwnerID)
	if err != nil {
		return nil, err
	}

	log := logger.WithActor(ctx, s.logger).With(zap.String("proposal_id", id.String()))

	var booking *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.proposals.GetByIDTx(ctx, tx, id)
		if err != nil {
			return mapRepoError(err, "proposal")
		}
		if !current.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s: %w", ErrInvalidProposalTransition, current.Status, target, ErrConflict)
		}

		rows, err := s.proposals.UpdateStatus(ctx, tx, current.ID, current.Status, target)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("proposal changed concurrently: %w", ErrConflict)
		}

		proposal = current
		proposal.Status = target
		if target != domain.ProposalStatusActiveBooking {
			return nil
		}

		booking, err = s.createBooking(ctx, tx, current, user)
		return err
	})
	if err != nil {
		log.Info("proposal status change rejected", zap.String("target", string(target)), zap.Error(err))
		return nil, err
	}

	invalidateDashboard(ctx, s.cache, proposal.AgencyID, s.logger)
	s.activity.Record(ctx, ActivityEntry{
		Action:     "status_changed",
		EntityType: "proposal",
		EntityID:   &proposal.ID,
		Summary:    fmt.Sprintf("Proposal %q is now %s", proposal.Title, target),
		Details:    map[string]any{"to": target},
	})

	result := &domain.ProposalStatusChangeResult{Proposal: mapper.ToProposalDTO(proposal)}
	if booking != nil {
		log.Info("booking created from proposal", zap.String("booking_id", booking.ID.String()))
		s.activity.Record(ctx, ActivityEntry{
			Action:     "created",
			EntityType: "booking",
			EntityID:   &booking.ID,
			Summary:    fmt.Sprintf("Booking %s created from proposal %q", booking.Reference, proposal.Title),
		})
		booking.Client = proposal.Client
		dto := mapper.ToBookingDTO(booking)
		result.Booking = &dto
		result.Proposal.BookingID = &booking.ID
	}
	return result, nil
}

// createBooking inserts the booking spawned by proposal and its created event, inside tx
func (s *ProposalService) createBooking(ctx context.Context, tx *gorm.DB, proposal *domain.Proposal, user *auth.UserContext) (*domain.Booking, error) {
	exists, err := s.bookings.ExistsForProposal(ctx, tx, proposal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing booking: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %w", ErrBookingAlreadyExists, ErrDuplicate)
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		BaseModel:       domain.BaseModel{ID: uuid.New()},
		AgencyID:        proposal.AgencyID,
		ClientID:        proposal.ClientID,
		ProposalID:      proposal.ID,
		Status:          domain.BookingStatusPendingDocuments,
		Lifecycle:       domain.LifecycleActive,
		StatusChangedAt: now,
		TravelStart:     proposal.TravelStart,
		TravelEnd:       proposal.TravelEnd,
		CreatedByID:     user.ActorID(),
	}
	booking.Reference = bookingReference(booking.ID, now)

	if err := s.bookings.Create(ctx, tx, booking); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %w", ErrBookingAlreadyExists, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	metadata := map[string]any{"proposalId": proposal.ID, "status": booking.Status}
	description := fmt.Sprintf("Booking created from proposal %q", proposal.Title)
	if _, err := s.timeline.Record(ctx, tx, booking, user, domain.TimelineEventCreated, description, metadata); err != nil {
		return nil, err
	}
	return booking, nil
}

// bookingReference is the human-facing booking code, e.g. BK-2026-1A2B3C4D
func bookingReference(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("BK-%d-%s", at.Year(), strings.ToUpper(id.String()[:8]))
}

func (s *ProposalService) checkReferences(ctx context.Context, operatorID, stageID *uuid.UUID) error {
	if operatorID != nil {
		if _, err := s.operators.GetByID(ctx, *operatorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("operator not found: %w", ErrInvalidInput)
			}
			return err
		}
	}
	if stageID != nil {
		if _, err := s.funnels.GetStage(ctx, *stageID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("stage not found: %w", ErrInvalidInput)
			}
			return err
		}
	}
	return nil
}

func validateTravelDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("travel end is before travel start: %w", ErrInvalidInput)
	}
	return nil
}
