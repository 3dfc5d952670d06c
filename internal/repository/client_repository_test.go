package repository_test

import (
	"testing"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClientRepository_ListFiltersAndSorts(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	other := testutil.SeedTenant(t, db, "Mar Turismo")
	repo := repository.NewClientRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	testutil.CreateClient(t, db, tenant.Agency.ID, tenant.Admin.ID, "Bruno Costa")
	testutil.CreateClient(t, db, tenant.Agency.ID, tenant.Agent.ID, "Ana Lima")
	testutil.CreateClient(t, db, other.Agency.ID, other.Agent.ID, "Ana Outra")

	clients, total, err := repo.List(ctx, repository.NewPagination(1, 10), repository.ClientFilters{},
		repository.SortConfig{Field: "name", Order: repository.SortOrderAsc})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Ana Lima", clients[0].Name)
	assert.Equal(t, "Maria Silva", clients[2].Name)

	_, total, err = repo.List(ctx, repository.NewPagination(1, 10), repository.ClientFilters{Search: "ana"}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	owner := tenant.Agent.ID
	_, total, err = repo.List(ctx, repository.NewPagination(1, 10), repository.ClientFilters{OwnerID: &owner}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestClientRepository_ArchiveRestore(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewClientRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	require.NoError(t, repo.SetLifecycle(ctx, tenant.Client.ID, domain.LifecycleArchived))

	_, total, err := repo.List(ctx, repository.NewPagination(1, 10), repository.ClientFilters{}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = repo.List(ctx, repository.NewPagination(1, 10), repository.ClientFilters{Lifecycle: domain.LifecycleFilterArchived}, repository.DefaultSortConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	require.NoError(t, repo.SetLifecycle(ctx, tenant.Client.ID, domain.LifecycleActive))
	client, err := repo.GetByID(ctx, tenant.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleActive, client.Lifecycle)
}

func TestClientRepository_UpdateOtherAgency(t *testing.T) {
	db := testutil.NewTestDB(t)
	sol := testutil.SeedTenant(t, db, "Sol Viagens")
	mar := testutil.SeedTenant(t, db, "Mar Turismo")
	repo := repository.NewClientRepository(db)

	client := *sol.Client
	client.Name = "Hijacked"
	err := repo.Update(mar.As(domain.RoleAdmin), &client)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
