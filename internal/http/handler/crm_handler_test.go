package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientHandler_Create(t *testing.T) {
	h := setupHandlers(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAgent)

	t.Run("creates client owned by caller", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.client.Create(rr, newRequest(ctx, http.MethodPost, "/clients",
			domain.CreateClientRequest{Name: "João Souza", Email: "Joao@Example.com"}, nil))

		require.Equal(t, http.StatusCreated, rr.Code)
		var dto domain.ClientDTO
		decodeBody(t, rr, &dto)
		assert.Equal(t, "joao@example.com", dto.Email)
		assert.Equal(t, tenant.Agent.ID, dto.OwnerID)
		assert.Equal(t, tenant.Agency.ID, dto.AgencyID)
		assert.Equal(t, "/api/v1/clients/"+dto.ID.String(), rr.Header().Get("Location"))

		eventually(t, func() bool {
			var count int64
			h.db.Model(&domain.ActivityLog{}).Where("entity_id = ? AND action = ?", dto.ID, "created").Count(&count)
			return count == 1
		})
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.client.Create(rr, newRequest(ctx, http.MethodPost, "/clients",
			domain.CreateClientRequest{Name: "Ana", Email: "not-an-email"}, nil))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var body errorBody
		decodeBody(t, rr, &body)
		assert.Contains(t, body.Details, "email")
	})

	t.Run("stage of a proposal funnel is rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.Create(rr, newRequest(tenant.As(domain.RoleAdmin), http.MethodPost, "/funnels",
			domain.CreateFunnelRequest{Name: "Sales", Kind: domain.FunnelKindProposal, Stages: []string{"Quote"}}, nil))
		require.Equal(t, http.StatusCreated, rr.Code)
		var funnel domain.FunnelDTO
		decodeBody(t, rr, &funnel)

		stageID := funnel.Stages[0].ID
		rr = httptest.NewRecorder()
		h.client.Create(rr, newRequest(ctx, http.MethodPost, "/clients",
			domain.CreateClientRequest{Name: "Ana", StageID: &stageID}, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestClientHandler_Ownership(t *testing.T) {
	h := setupHandlers(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	otherAgent := testutil.CreateUser(t, h.db, tenant.Agency.ID, domain.RoleAgent)
	params := map[string]string{"id": tenant.Client.ID.String()}
	update := domain.UpdateClientRequest{Name: "Maria S. Silva"}

	rr := httptest.NewRecorder()
	h.client.Update(rr, newRequest(testutil.ContextFor(otherAgent), http.MethodPut, "/", update, params))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.client.Get(rr, newRequest(testutil.ContextFor(otherAgent), http.MethodGet, "/", nil, params))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.client.Update(rr, newRequest(tenant.As(domain.RoleAgent), http.MethodPut, "/", update, params))
	require.Equal(t, http.StatusOK, rr.Code)
	var dto domain.ClientDTO
	decodeBody(t, rr, &dto)
	assert.Equal(t, "Maria S. Silva", dto.Name)
}

func TestClientHandler_ArchiveHidesFromList(t *testing.T) {
	h := setupHandlers(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAdmin)

	rr := httptest.NewRecorder()
	h.client.Archive(rr, newRequest(ctx, http.MethodPost, "/", nil, map[string]string{"id": tenant.Client.ID.String()}))
	require.Equal(t, http.StatusOK, rr.Code)

	for query, want := range map[string]int64{
		"/clients":                    0,
		"/clients?lifecycle=archived": 1,
		"/clients?lifecycle=any":      1,
	} {
		rr := httptest.NewRecorder()
		h.client.List(rr, newRequest(ctx, http.MethodGet, query, nil, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var result domain.PaginatedResponse
		decodeBody(t, rr, &result)
		assert.Equal(t, want, result.Total, query)
	}
}

func TestFunnelHandler_Stages(t *testing.T) {
	h := setupHandlers(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAdmin)

	rr := httptest.NewRecorder()
	h.funnel.Create(rr, newRequest(ctx, http.MethodPost, "/funnels",
		domain.CreateFunnelRequest{Name: "Leads", Kind: domain.FunnelKindClient, Stages: []string{"New", "Qualified"}}, nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var funnel domain.FunnelDTO
	decodeBody(t, rr, &funnel)
	require.Len(t, funnel.Stages, 2)
	params := map[string]string{"id": funnel.ID.String()}

	t.Run("add stage appends", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.AddStage(rr, newRequest(ctx, http.MethodPost, "/", domain.CreateFunnelStageRequest{Name: "Won"}, params))
		require.Equal(t, http.StatusCreated, rr.Code)
		decodeBody(t, rr, &funnel)
		require.Len(t, funnel.Stages, 3)
		assert.Equal(t, "Won", funnel.Stages[2].Name)
		assert.Equal(t, 2, funnel.Stages[2].Position)
	})

	t.Run("reorder", func(t *testing.T) {
		order := []uuid.UUID{funnel.Stages[2].ID, funnel.Stages[0].ID, funnel.Stages[1].ID}
		rr := httptest.NewRecorder()
		h.funnel.ReorderStages(rr, newRequest(ctx, http.MethodPut, "/", domain.ReorderStagesRequest{StageIDs: order}, params))
		require.Equal(t, http.StatusOK, rr.Code)

		var reordered domain.FunnelDTO
		decodeBody(t, rr, &reordered)
		for i, id := range order {
			assert.Equal(t, id, reordered.Stages[i].ID)
			assert.Equal(t, i, reordered.Stages[i].Position)
		}
	})

	t.Run("reorder with a missing stage is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.ReorderStages(rr, newRequest(ctx, http.MethodPut, "/",
			domain.ReorderStagesRequest{StageIDs: []uuid.UUID{funnel.Stages[0].ID}}, params))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("agent cannot manage funnels", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.AddStage(rr, newRequest(tenant.As(domain.RoleAgent), http.MethodPost, "/",
			domain.CreateFunnelStageRequest{Name: "Lost"}, params))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown kind filter is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.List(rr, newRequest(ctx, http.MethodGet, "/funnels?kind=deal", nil, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.funnel.Delete(rr, newRequest(ctx, http.MethodDelete, "/", nil, params))
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = httptest.NewRecorder()
		h.funnel.Get(rr, newRequest(ctx, http.MethodGet, "/", nil, params))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestProposalHandler_ActivationCreatesBooking(t *testing.T) {
	h := setupHandlers(t)
	tenant := testutil.SeedTenant(t, h.db, "Sol Viagens")
	ctx := tenant.As(domain.RoleAgent)

	rr := httptest.NewRecorder()
	h.proposal.Create(rr, newRequest(ctx, http.MethodPost, "/proposals", domain.CreateProposalRequest{
		ClientID:    tenant.Client.ID,
		Title:       "Patagonia trek",
		Destination: "El Chaltén",
		TotalAmount: decimal.RequireFromString("9800.00"),
	}, nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var proposal domain.ProposalDTO
	decodeBody(t, rr, &proposal)
	assert.Equal(t, domain.ProposalStatusDraft, proposal.Status)
	params := map[string]string{"id": proposal.ID.String()}

	for _, status := range []domain.ProposalStatus{domain.ProposalStatusSent, domain.ProposalStatusAccepted} {
		rr := httptest.NewRecorder()
		h.proposal.ChangeStatus(rr, newRequest(ctx, http.MethodPost, "/", domain.ChangeProposalStatusRequest{Status: status}, params))
		require.Equal(t, http.StatusOK, rr.Code, string(status))
	}

	rr = httptest.NewRecorder()
	h.proposal.ChangeStatus(rr, newRequest(ctx, http.MethodPost, "/",
		domain.ChangeProposalStatusRequest{Status: domain.ProposalStatusActiveBooking}, params))
	require.Equal(t, http.StatusOK, rr.Code)

	var result domain.ProposalStatusChangeResult
	decodeBody(t, rr, &result)
	require.NotNil(t, result.Booking)
	assert.Equal(t, domain.BookingStatusPendingDocuments, result.Booking.Status.Value)
	require.NotNil(t, result.Proposal.BookingID)
	assert.Equal(t, result.Booking.ID, *result.Proposal.BookingID)

	t.Run("active booking is terminal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.proposal.ChangeStatus(rr, newRequest(ctx, http.MethodPost, "/",
			domain.ChangeProposalStatusRequest{Status: domain.ProposalStatusActiveBooking}, params))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown status fails validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.proposal.ChangeStatus(rr, newRequest(ctx, http.MethodPost, "/",
			map[string]string{"status": "won"}, params))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
