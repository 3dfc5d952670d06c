package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTimelineRepository_ListByBooking_NewestFirstWithActorName(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	booking := testutil.CreateBooking(t, db, tenant.Client, domain.BookingStatusPendingDocuments)
	repo := repository.NewTimelineRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ghost := uuid.New()
	first := testutil.AppendEvent(t, db, booking, domain.TimelineEventCreated, nil, base)
	second := testutil.AppendEvent(t, db, booking, domain.TimelineEventNoteAdded, &tenant.Agent.ID, base.Add(time.Minute))
	third := testutil.AppendEvent(t, db, booking, domain.TimelineEventClientContacted, &ghost, base.Add(2*time.Minute))

	entries, err := repo.ListByBooking(tenant.As(domain.RoleAgent), booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, third.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, first.ID, entries[2].ID)

	assert.Nil(t, entries[0].ActorName, "unknown actor has no name")
	require.NotNil(t, entries[1].ActorName)
	assert.Equal(t, tenant.Agent.DisplayName, *entries[1].ActorName)
	assert.Nil(t, entries[2].ActorName, "system event has no actor")
}

func TestTimelineRepository_ListByBooking_TieBreaksOnID(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	booking := testutil.CreateBooking(t, db, tenant.Client, domain.BookingStatusPendingDocuments)
	repo := repository.NewTimelineRepository(db)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := testutil.AppendEvent(t, db, booking, domain.TimelineEventNoteAdded, nil, at)
	b := testutil.AppendEvent(t, db, booking, domain.TimelineEventNoteAdded, nil, at)

	entries, err := repo.ListByBooking(tenant.As(domain.RoleAgent), booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	expectedFirst := a.ID
	if b.ID.String() > a.ID.String() {
		expectedFirst = b.ID
	}
	assert.Equal(t, expectedFirst, entries[0].ID)
}

func TestTimelineRepository_ListByBooking_Empty(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewTimelineRepository(db)

	entries, err := repo.ListByBooking(tenant.As(domain.RoleAgent), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestTimelineRepository_ListByBooking_OtherAgency(t *testing.T) {
	db := testutil.NewTestDB(t)
	sol := testutil.SeedTenant(t, db, "Sol Viagens")
	mar := testutil.SeedTenant(t, db, "Mar Turismo")
	booking := testutil.CreateBooking(t, db, sol.Client, domain.BookingStatusPendingDocuments)
	testutil.AppendEvent(t, db, booking, domain.TimelineEventCreated, nil, time.Now())
	repo := repository.NewTimelineRepository(db)

	entries, err := repo.ListByBooking(mar.As(domain.RoleMaster), booking.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimelineRepository_Append(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	booking := testutil.CreateBooking(t, db, tenant.Client, domain.BookingStatusPendingDocuments)
	repo := repository.NewTimelineRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	event := &domain.TimelineEvent{
		BookingID:   booking.ID,
		AgencyID:    booking.AgencyID,
		Type:        domain.TimelineEventStatusChanged,
		Description: "Status changed",
		Metadata:    datatypes.JSON(`{"from":"pending_documents","to":"under_analysis"}`),
		ActorID:     &tenant.Admin.ID,
	}
	require.NoError(t, repo.Append(ctx, nil, event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.CreatedAt.IsZero())

	count, err := repo.CountByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries, err := repo.ListByBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"from":"pending_documents","to":"under_analysis"}`, string(entries[0].Metadata))
}

func TestTimelineRepository_Append_RejectsUnknownType(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewTimelineRepository(db)

	err := repo.Append(context.Background(), nil, &domain.TimelineEvent{
		BookingID: uuid.New(),
		AgencyID:  uuid.New(),
		Type:      domain.TimelineEventType("teleported"),
	})
	assert.Error(t, err)
}
