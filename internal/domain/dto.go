package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DTOs for API responses. Timestamps are ISO 8601 strings.

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

type AgencyDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	AgencyID    uuid.UUID `json:"agencyId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	Lifecycle   Lifecycle `json:"lifecycle"`
}

// MeDTO describes the authenticated caller
type MeDTO struct {
	UserID      uuid.UUID  `json:"userId"`
	DisplayName string     `json:"displayName"`
	Initials    string     `json:"initials"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	AgencyID    uuid.UUID  `json:"agencyId"`
	Agency      *AgencyDTO `json:"agency,omitempty"`
}

// PermissionsDTO lists the caller's effective capabilities
type PermissionsDTO struct {
	Role                Role         `json:"role"`
	Capabilities        []Capability `json:"capabilities"`
	OwnershipRestricted []Capability `json:"ownershipRestricted"`
}

// StatusDTO is a booking status with its presentation metadata
type StatusDTO struct {
	Value BookingStatus `json:"value"`
	Label string        `json:"label"`
	Color string        `json:"color"`
}

// StatusRegistryEntryDTO describes a status and where it can go next
type StatusRegistryEntryDTO struct {
	StatusDTO
	Next     []StatusDTO `json:"next"`
	Terminal bool        `json:"terminal"`
}

type ClientDTO struct {
	ID        uuid.UUID  `json:"id"`
	AgencyID  uuid.UUID  `json:"agencyId"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Document  string     `json:"document,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	StageID   *uuid.UUID `json:"stageId,omitempty"`
	OwnerID   uuid.UUID  `json:"ownerId"`
	Lifecycle Lifecycle  `json:"lifecycle"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
}

type FunnelStageDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Color    string    `json:"color"`
}

type FunnelDTO struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Kind      FunnelKind       `json:"kind"`
	Stages    []FunnelStageDTO `json:"stages"`
	CreatedAt string           `json:"createdAt"`
}

type OperatorDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	ExternalRef  string    `json:"externalRef,omitempty"`
	Email        string    `json:"email,omitempty"`
	Lifecycle    Lifecycle `json:"lifecycle"`
	LastSyncedAt *string   `json:"lastSyncedAt,omitempty"`
}

type ProposalDTO struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"clientId"`
	ClientName  string          `json:"clientName,omitempty"`
	OperatorID  *uuid.UUID      `json:"operatorId,omitempty"`
	StageID     *uuid.UUID      `json:"stageId,omitempty"`
	Title       string          `json:"title"`
	Destination string          `json:"destination,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Status      ProposalStatus  `json:"status"`
	ValidUntil  *string         `json:"validUntil,omitempty"`
	OwnerID     uuid.UUID       `json:"ownerId"`
	BookingID   *uuid.UUID      `json:"bookingId,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

type BookingDTO struct {
	ID               uuid.UUID   `json:"id"`
	Reference        string      `json:"reference"`
	ClientID         uuid.UUID   `json:"clientId"`
	ClientName       string      `json:"clientName,omitempty"`
	ProposalID       uuid.UUID   `json:"proposalId"`
	Status           StatusDTO   `json:"status"`
	NextStatuses     []StatusDTO `json:"nextStatuses"`
	Lifecycle        Lifecycle   `json:"lifecycle"`
	TravelStart      *string     `json:"travelStart,omitempty"`
	TravelEnd        *string     `json:"travelEnd,omitempty"`
	InstallationDate *string     `json:"installationDate,omitempty"`
	StatusChangedAt  string      `json:"statusChangedAt"`
	CreatedAt        string      `json:"createdAt"`
	UpdatedAt        string      `json:"updatedAt"`
}

type BookingDocumentDTO struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   string    `json:"createdAt"`
}

type TimelineEventDTO struct {
	ID          uuid.UUID         `json:"id"`
	Type        TimelineEventType `json:"type"`
	Description string            `json:"description"`
	Metadata    datatypes.JSON    `json:"metadata,omitempty"`
	ActorID     *uuid.UUID        `json:"actorId"`
	ActorName   *string           `json:"actorName"`
	CreatedAt   string            `json:"createdAt"`
}

type ActivityLogDTO struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    *uuid.UUID     `json:"actorId,omitempty"`
	ActorName  string         `json:"actorName,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   *uuid.UUID     `json:"entityId,omitempty"`
	Summary    string         `json:"summary"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

// StatusCountDTO is the number of bookings in one status
type StatusCountDTO struct {
	StatusDTO
	Count int64 `json:"count"`
}

type DashboardDTO struct {
	BookingsByStatus  []StatusCountDTO `json:"bookingsByStatus"`
	ActiveBookings    int64            `json:"activeBookings"`
	ArchivedBookings  int64            `json:"archivedBookings"`
	OpenProposals     int64            `json:"openProposals"`
	OpenProposalValue decimal.Decimal  `json:"openProposalValue"`
	GeneratedAt       string           `json:"generatedAt"`
}

// Requests

type CreateClientRequest struct {
	Name     string     `json:"name" validate:"required,max=200"`
	Email    string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    string     `json:"phone,omitempty" validate:"max=50"`
	Document string     `json:"document,omitempty" validate:"max=50"`
	Notes    string     `json:"notes,omitempty"`
	StageID  *uuid.UUID `json:"stageId,omitempty"`
}

type UpdateClientRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone,omitempty" validate:"max=50"`
	Document string `json:"document,omitempty" validate:"max=50"`
	Notes    string `json:"notes,omitempty"`
}

type MoveToStageRequest struct {
	StageID uuid.UUID `json:"stageId" validate:"required"`
}

type CreateFunnelRequest struct {
	Name   string     `json:"name" validate:"required,max=200"`
	Kind   FunnelKind `json:"kind" validate:"required,oneof=client proposal"`
	Stages []string   `json:"stages,omitempty" validate:"omitempty,dive,required,max=200"`
}

type CreateFunnelStageRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type ReorderStagesRequest struct {
	StageIDs []uuid.UUID `json:"stageIds" validate:"required,min=1,unique"`
}

type CreateOperatorRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=50"`
	ExternalRef string `json:"externalRef,omitempty" validate:"max=100"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateOperatorRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type CreateProposalRequest struct {
	ClientID    uuid.UUID       `json:"clientId" validate:"required"`
	OperatorID  *uuid.UUID      `json:"operatorId,omitempty"`
	StageID     *uuid.UUID      `json:"stageId,omitempty"`
	Title       string          `json:"title" validate:"required,max=200"`
	Destination string          `json:"destination,omitempty" validate:"max=200"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,iso4217"`
	ValidUntil  *time.Time      `json:"validUntil,omitempty"`
	TravelStart *time.Time      `json:"travelStart,omitempty"`
	TravelEnd   *time.Time      `json:"travelEnd,omitempty"`
}

type UpdateProposalRequest struct {
	OperatorID  *uuid.UUID      `json:"operatorId,omitempty"`
	StageID     *uuid.UUID      `json:"stageId,omitempty"`
	Title       string          `json:"title" validate:"required,max=200"`
	Destination string          `json:"destination,omitempty" validate:"max=200"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ValidUntil  *time.Time      `json:"validUntil,omitempty"`
	TravelStart *time.Time      `json:"travelStart,omitempty"`
	TravelEnd   *time.Time      `json:"travelEnd,omitempty"`
}

type ChangeProposalStatusRequest struct {
	Status ProposalStatus `json:"status" validate:"required,oneof=draft sent accepted active_booking rejected expired"`
}

// ProposalStatusChangeResult carries the booking spawned by activation, if any
type ProposalStatusChangeResult struct {
	Proposal ProposalDTO `json:"proposal"`
	Booking  *BookingDTO `json:"booking,omitempty"`
}

type ChangeBookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required"`
	Note   string        `json:"note,omitempty" validate:"max=2000"`
}

type AddNoteRequest struct {
	Note string `json:"note" validate:"required,max=5000"`
}

type RecordContactRequest struct {
	Channel string `json:"channel" validate:"required,oneof=phone email whatsapp in_person other"`
	Summary string `json:"summary" validate:"required,max=2000"`
}

type ScheduleInstallationRequest struct {
	Date time.Time `json:"date" validate:"required"`
	Note string    `json:"note,omitempty" validate:"max=2000"`
}
