package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createFunnel(t *testing.T, repo *repository.FunnelRepository, ctx context.Context, agencyID uuid.UUID, stages ...string) *domain.Funnel {
	t.Helper()
	funnel := &domain.Funnel{AgencyID: agencyID, Name: "Leads", Kind: domain.FunnelKindClient}
	for i, name := range stages {
		funnel.Stages = append(funnel.Stages, domain.FunnelStage{AgencyID: agencyID, Name: name, Position: i, Color: "#64748b"})
	}
	require.NoError(t, repo.Create(ctx, funnel))
	return funnel
}

func stageNames(f *domain.Funnel) []string {
	names := make([]string, len(f.Stages))
	for i, s := range f.Stages {
		names[i] = s.Name
	}
	return names
}

func TestFunnelRepository_AddStageAppends(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewFunnelRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	funnel := createFunnel(t, repo, ctx, tenant.Agency.ID, "New", "Contacted")

	stage := &domain.FunnelStage{FunnelID: funnel.ID, AgencyID: tenant.Agency.ID, Name: "Won", Color: "#22c55e"}
	require.NoError(t, repo.AddStage(ctx, stage))
	assert.Equal(t, 2, stage.Position)

	loaded, err := repo.GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"New", "Contacted", "Won"}, stageNames(loaded))
}

func TestFunnelRepository_AddStageToEmptyFunnel(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewFunnelRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	funnel := createFunnel(t, repo, ctx, tenant.Agency.ID)
	stage := &domain.FunnelStage{FunnelID: funnel.ID, AgencyID: tenant.Agency.ID, Name: "First"}
	require.NoError(t, repo.AddStage(ctx, stage))
	assert.Equal(t, 0, stage.Position)
}

func TestFunnelRepository_ReorderStages(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewFunnelRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	funnel := createFunnel(t, repo, ctx, tenant.Agency.ID, "A", "B", "C")
	a, b, c := funnel.Stages[0].ID, funnel.Stages[1].ID, funnel.Stages[2].ID

	require.NoError(t, repo.ReorderStages(ctx, funnel.ID, []uuid.UUID{c, a, b}))
	loaded, err := repo.GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, stageNames(loaded))

	err = repo.ReorderStages(ctx, funnel.ID, []uuid.UUID{c, a})
	assert.ErrorIs(t, err, repository.ErrStageSetMismatch)

	err = repo.ReorderStages(ctx, funnel.ID, []uuid.UUID{c, a, uuid.New()})
	assert.ErrorIs(t, err, repository.ErrStageSetMismatch)

	loaded, err = repo.GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, stageNames(loaded), "failed reorder leaves positions untouched")
}

func TestFunnelRepository_DeleteStageClearsReferencesAndRenumbers(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewFunnelRepository(db)
	clients := repository.NewClientRepository(db)
	ctx := tenant.As(domain.RoleAdmin)

	funnel := createFunnel(t, repo, ctx, tenant.Agency.ID, "A", "B", "C")
	middle := funnel.Stages[1].ID
	require.NoError(t, clients.SetStage(ctx, tenant.Client.ID, &middle))

	require.NoError(t, repo.DeleteStage(ctx, funnel.ID, middle))

	loaded, err := repo.GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, stageNames(loaded))
	for i, s := range loaded.Stages {
		assert.Equal(t, i, s.Position)
	}

	client, err := clients.GetByID(ctx, tenant.Client.ID)
	require.NoError(t, err)
	assert.Nil(t, client.StageID)

	err = repo.DeleteStage(ctx, funnel.ID, middle)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFunnelRepository_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	sol := testutil.SeedTenant(t, db, "Sol Viagens")
	mar := testutil.SeedTenant(t, db, "Mar Turismo")
	repo := repository.NewFunnelRepository(db)
	ctx := sol.As(domain.RoleAdmin)

	funnel := createFunnel(t, repo, ctx, sol.Agency.ID, "A", "B")

	err := repo.Delete(mar.As(domain.RoleAdmin), funnel.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete(ctx, funnel.ID))
	_, err = repo.GetByID(ctx, funnel.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var remaining int64
	require.NoError(t, db.Model(&domain.FunnelStage{}).Where("funnel_id = ?", funnel.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestFunnelRepository_ListByKind(t *testing.T) {
	db := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, db, "Sol Viagens")
	repo := repository.NewFunnelRepository(db)
	ctx := tenant.As(domain.RoleAgent)

	createFunnel(t, repo, ctx, tenant.Agency.ID, "A")
	require.NoError(t, repo.Create(ctx, &domain.Funnel{AgencyID: tenant.Agency.ID, Name: "Sales", Kind: domain.FunnelKindProposal}))

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	kind := domain.FunnelKindProposal
	proposals, err := repo.List(ctx, &kind)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "Sales", proposals[0].Name)
}
