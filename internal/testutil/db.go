// Package testutil provides an in-memory database and fixtures for tests
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/database"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// NewTestDB opens a private in-memory SQLite database with the full schema.
// The pool holds a single connection so the database lives as long as the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func next() int64 {
	return seq.Add(1)
}

// CreateAgency creates an active agency
func CreateAgency(t *testing.T, db *gorm.DB, name string) *domain.Agency {
	t.Helper()
	agency := &domain.Agency{
		Name:      name,
		Slug:      fmt.Sprintf("agency-%d", next()),
		Lifecycle: domain.LifecycleActive,
	}
	require.NoError(t, db.Create(agency).Error)
	return agency
}

// CreateUser creates an active user with the given role
func CreateUser(t *testing.T, db *gorm.DB, agencyID uuid.UUID, role domain.Role) *domain.User {
	t.Helper()
	n := next()
	user := &domain.User{
		AgencyID:    agencyID,
		DisplayName: fmt.Sprintf("%s User %d", role, n),
		Email:       fmt.Sprintf("user%d@example.com", n),
		Role:        role,
		Lifecycle:   domain.LifecycleActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateClient creates an active client owned by ownerID
func CreateClient(t *testing.T, db *gorm.DB, agencyID, ownerID uuid.UUID, name string) *domain.Client {
	t.Helper()
	client := &domain.Client{
		AgencyID:  agencyID,
		Name:      name,
		Email:     fmt.Sprintf("client%d@example.com", next()),
		OwnerID:   ownerID,
		Lifecycle: domain.LifecycleActive,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// CreateProposal creates a draft proposal for the client
func CreateProposal(t *testing.T, db *gorm.DB, client *domain.Client, ownerID uuid.UUID) *domain.Proposal {
	t.Helper()
	proposal := &domain.Proposal{
		AgencyID:    client.AgencyID,
		ClientID:    client.ID,
		Title:       fmt.Sprintf("Trip %d", next()),
		Destination: "Lisbon",
		TotalAmount: decimal.NewFromInt(1500),
		Currency:    "BRL",
		Status:      domain.ProposalStatusDraft,
		OwnerID:     ownerID,
		Lifecycle:   domain.LifecycleActive,
	}
	require.NoError(t, db.Omit("Client").Create(proposal).Error)
	return proposal
}

// CreateBooking creates an active booking in the given status, with its own
// accepted proposal
func CreateBooking(t *testing.T, db *gorm.DB, client *domain.Client, status domain.BookingStatus) *domain.Booking {
	t.Helper()
	proposal := CreateProposal(t, db, client, client.OwnerID)
	require.NoError(t, db.Model(proposal).Update("status", domain.ProposalStatusActiveBooking).Error)

	booking := &domain.Booking{
		AgencyID:        client.AgencyID,
		ClientID:        client.ID,
		ProposalID:      proposal.ID,
		Reference:       fmt.Sprintf("BK-TEST-%04d", next()),
		Status:          status,
		Lifecycle:       domain.LifecycleActive,
		StatusChangedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Omit("Client").Create(booking).Error)
	return booking
}

// AppendEvent inserts a timeline event with an explicit timestamp
func AppendEvent(t *testing.T, db *gorm.DB, booking *domain.Booking, eventType domain.TimelineEventType, actorID *uuid.UUID, at time.Time) *domain.TimelineEvent {
	t.Helper()
	event := &domain.TimelineEvent{
		BookingID:   booking.ID,
		AgencyID:    booking.AgencyID,
		Type:        eventType,
		Description: string(eventType),
		ActorID:     actorID,
		CreatedAt:   at.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

// AppendReminder records a stale documents reminder on booking at the given time
func AppendReminder(t *testing.T, db *gorm.DB, booking *domain.Booking, at time.Time) *domain.TimelineEvent {
	t.Helper()
	event := &domain.TimelineEvent{
		BookingID:   booking.ID,
		AgencyID:    booking.AgencyID,
		Type:        domain.TimelineEventOther,
		Description: domain.StaleDocumentsReminder + " for 10 days",
		CreatedAt:   at.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

// UserContextFor builds the auth context of a stored user
func UserContextFor(user *domain.User) *auth.UserContext {
	return &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		AgencyID:    user.AgencyID,
	}
}

// ContextFor returns a context authenticated as user
func ContextFor(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), UserContextFor(user))
}

// Tenant is an agency with one user per role and a client owned by the agent
type Tenant struct {
	Agency    *domain.Agency
	Developer *domain.User
	Master    *domain.User
	Admin     *domain.User
	Agent     *domain.User
	Client    *domain.Client
}

// SeedTenant creates an agency, its users and a client
func SeedTenant(t *testing.T, db *gorm.DB, name string) *Tenant {
	t.Helper()
	agency := CreateAgency(t, db, name)
	tenant := &Tenant{
		Agency:    agency,
		Developer: CreateUser(t, db, agency.ID, domain.RoleDeveloper),
		Master:    CreateUser(t, db, agency.ID, domain.RoleMaster),
		Admin:     CreateUser(t, db, agency.ID, domain.RoleAdmin),
		Agent:     CreateUser(t, db, agency.ID, domain.RoleAgent),
	}
	tenant.Client = CreateClient(t, db, agency.ID, tenant.Agent.ID, "Maria Silva")
	return tenant
}

// As returns a context authenticated as the tenant's user with the given role
func (tn *Tenant) As(role domain.Role) context.Context {
	switch role {
	case domain.RoleDeveloper:
		return ContextFor(tn.Developer)
	case domain.RoleMaster:
		return ContextFor(tn.Master)
	case domain.RoleAdmin:
		return ContextFor(tn.Admin)
	default:
		return ContextFor(tn.Agent)
	}
}
