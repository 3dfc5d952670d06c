package repository_test

import (
	"testing"
	"time"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorRepository_UpsertByCode(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewOperatorRepository(db)
	ctx := tenant.As(domain.RoleMaster)

	existing := &domain.Operator{AgencyID: tenant.Agency.ID, Name: "Old Name", Code: "cvc", Lifecycle: domain.LifecycleActive}
	require.NoError(t, repo.Create(ctx, existing))
	assert.Equal(t, "CVC", existing.Code)

	syncedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	_, err := repo.UpsertByCode(ctx, tenant.Agency.ID, []domain.Operator{
		{Name: "CVC Corp", Code: "CVC", ExternalRef: "DW-1"},
		{Name: "Azul Viagens", Code: " azul ", ExternalRef: "DW-2"},
	}, syncedAt)
	require.NoError(t, err)

	operators, err := repo.List(ctx, "", domain.LifecycleFilterActive)
	require.NoError(t, err)
	require.Len(t, operators, 2)

	byCode := map[string]domain.Operator{}
	for _, op := range operators {
		byCode[op.Code] = op
	}
	assert.Equal(t, "CVC Corp", byCode["CVC"].Name)
	assert.Equal(t, existing.ID, byCode["CVC"].ID)
	assert.Equal(t, "DW-2", byCode["AZUL"].ExternalRef)
	require.NotNil(t, byCode["AZUL"].LastSyncedAt)
	assert.True(t, syncedAt.Equal(*byCode["AZUL"].LastSyncedAt))
}

func TestOperatorRepository_SearchAndArchive(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewOperatorRepository(db)
	ctx := tenant.As(domain.RoleMaster)

	op := &domain.Operator{AgencyID: tenant.Agency.ID, Name: "Azul Viagens", Code: "AZUL", Lifecycle: domain.LifecycleActive}
	require.NoError(t, repo.Create(ctx, op))
	require.NoError(t, repo.Create(ctx, &domain.Operator{AgencyID: tenant.Agency.ID, Name: "Gol", Code: "GOL", Lifecycle: domain.LifecycleActive}))

	found, err := repo.List(ctx, "azul", domain.LifecycleFilterActive)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, repo.SetLifecycle(ctx, op.ID, domain.LifecycleArchived))

	active, err := repo.List(ctx, "", domain.LifecycleFilterActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	archived, err := repo.List(ctx, "", domain.LifecycleFilterArchived)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, op.ID, archived[0].ID)
}
