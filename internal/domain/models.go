package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a new ID when none is set
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Lifecycle replaces hard deletes: rows are archived, never removed
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleArchived Lifecycle = "archived"
)

// IsValid reports whether l is a known lifecycle state
func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleArchived
}

// LifecycleFilter selects rows by lifecycle in list queries
type LifecycleFilter string

const (
	LifecycleFilterActive   LifecycleFilter = "active"
	LifecycleFilterArchived LifecycleFilter = "archived"
	LifecycleFilterAny      LifecycleFilter = "any"
)

// ParseLifecycleFilter defaults to active for empty or unknown input
func ParseLifecycleFilter(raw string) LifecycleFilter {
	switch LifecycleFilter(raw) {
	case LifecycleFilterArchived:
		return LifecycleFilterArchived
	case LifecycleFilterAny:
		return LifecycleFilterAny
	default:
		return LifecycleFilterActive
	}
}

// Agency is a tenant. Every other record belongs to exactly one agency.
type Agency struct {
	BaseModel
	Name      string    `gorm:"type:varchar(200);not null"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Lifecycle Lifecycle `gorm:"type:varchar(20);not null;default:'active'"`
}

// User is a member of an agency
type User struct {
	BaseModel
	AgencyID    uuid.UUID `gorm:"type:uuid;not null;index"`
	DisplayName string    `gorm:"type:varchar(200);not null"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Role        Role      `gorm:"type:varchar(20);not null;default:'AGENT'"`
	Lifecycle   Lifecycle `gorm:"type:varchar(20);not null;default:'active'"`
	LastLoginAt *time.Time
}

// Client is a traveller or company the agency sells to
type Client struct {
	BaseModel
	AgencyID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name      string     `gorm:"type:varchar(200);not null;index"`
	Email     string     `gorm:"type:varchar(255)"`
	Phone     string     `gorm:"type:varchar(50)"`
	Document  string     `gorm:"type:varchar(50)"`
	Notes     string     `gorm:"type:text"`
	StageID   *uuid.UUID `gorm:"type:uuid;index"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Lifecycle Lifecycle  `gorm:"type:varchar(20);not null;default:'active';index"`
}

// FunnelKind tells which entity a funnel's stages apply to
type FunnelKind string

const (
	FunnelKindClient   FunnelKind = "client"
	FunnelKindProposal FunnelKind = "proposal"
)

// Funnel is a named, ordered pipeline of stages
type Funnel struct {
	BaseModel
	AgencyID uuid.UUID     `gorm:"type:uuid;not null;index"`
	Name     string        `gorm:"type:varchar(200);not null"`
	Kind     FunnelKind    `gorm:"type:varchar(20);not null;default:'client'"`
	Stages   []FunnelStage `gorm:"foreignKey:FunnelID"`
}

// FunnelStage is one step of a funnel. Position is 0-based and contiguous.
type FunnelStage struct {
	BaseModel
	FunnelID uuid.UUID `gorm:"type:uuid;not null;index"`
	AgencyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(200);not null"`
	Position int       `gorm:"not null;default:0"`
	Color    string    `gorm:"type:varchar(20);not null;default:'#64748b'"`
}

// Operator is a tour operator or supplier from the agency catalog
type Operator struct {
	BaseModel
	AgencyID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_operators_agency_code"`
	Name         string    `gorm:"type:varchar(200);not null"`
	Code         string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_operators_agency_code"`
	ExternalRef  string    `gorm:"type:varchar(100)"`
	Email        string    `gorm:"type:varchar(255)"`
	Lifecycle    Lifecycle `gorm:"type:varchar(20);not null;default:'active'"`
	LastSyncedAt *time.Time
}

// Proposal is a sales offer to a client
type Proposal struct {
	BaseModel
	AgencyID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Client      *Client         `gorm:"foreignKey:ClientID"`
	OperatorID  *uuid.UUID      `gorm:"type:uuid"`
	StageID     *uuid.UUID      `gorm:"type:uuid;index"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Destination string          `gorm:"type:varchar(200)"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'BRL'"`
	Status      ProposalStatus  `gorm:"type:varchar(30);not null;default:'draft';index"`
	ValidUntil  *time.Time
	TravelStart *time.Time
	TravelEnd   *time.Time
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Lifecycle   Lifecycle `gorm:"type:varchar(20);not null;default:'active'"`
}

// Booking is the operational record spawned by an activated proposal
type Booking struct {
	BaseModel
	AgencyID         uuid.UUID     `gorm:"type:uuid;not null;index"`
	ClientID         uuid.UUID     `gorm:"type:uuid;not null;index"`
	Client           *Client       `gorm:"foreignKey:ClientID"`
	ProposalID       uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex"`
	Reference        string        `gorm:"type:varchar(50);not null"`
	Status           BookingStatus `gorm:"type:varchar(30);not null;default:'pending_documents';index"`
	Lifecycle        Lifecycle     `gorm:"type:varchar(20);not null;default:'active';index"`
	StatusChangedAt  time.Time     `gorm:"not null"`
	TravelStart      *time.Time
	TravelEnd        *time.Time
	InstallationDate *time.Time
	CreatedByID      *uuid.UUID `gorm:"type:uuid"`
}

// BookingDocument is a file attached to a booking
type BookingDocument struct {
	BaseModel
	BookingID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	AgencyID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Filename     string     `gorm:"type:varchar(255);not null"`
	ContentType  string     `gorm:"type:varchar(100);not null"`
	Size         int64      `gorm:"not null"`
	StoragePath  string     `gorm:"type:varchar(500);not null"`
	UploadedByID *uuid.UUID `gorm:"type:uuid"`
}

// TimelineEvent is an append-only record of something that happened to a booking
type TimelineEvent struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	AgencyID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	Type        TimelineEventType `gorm:"type:varchar(30);not null"`
	Description string            `gorm:"type:text;not null"`
	Metadata    datatypes.JSON
	ActorID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"not null;index"`
}

// BeforeCreate assigns a new ID when none is set
func (e *TimelineEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TimelineEntry is a timeline event joined with its actor's display name
type TimelineEntry struct {
	TimelineEvent
	ActorName *string
}

// ActivityLog is a human-readable audit entry written by the activity sink
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AgencyID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	ActorName  string     `gorm:"type:varchar(200)"`
	Action     string     `gorm:"type:varchar(50);not null"`
	EntityType string     `gorm:"type:varchar(50);not null"`
	EntityID   *uuid.UUID `gorm:"type:uuid"`
	Summary    string     `gorm:"type:text;not null"`
	Details    datatypes.JSON
	CreatedAt  time.Time `gorm:"not null;index"`
}

// BeforeCreate assigns a new ID when none is set
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
