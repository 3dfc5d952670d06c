package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithUserContext_and_FromContext(t *testing.T) {
	user := &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Ana Souza",
		Role:        domain.RoleAdmin,
		AgencyID:    uuid.New(),
	}

	ctx := auth.WithUserContext(context.Background(), user)
	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)
}

func TestFromContext_Missing(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestUserContext_CanAccessAgency(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	admin := &auth.UserContext{Role: domain.RoleMaster, AgencyID: own}
	assert.True(t, admin.CanAccessAgency(own))
	assert.False(t, admin.CanAccessAgency(other))

	dev := &auth.UserContext{Role: domain.RoleDeveloper, AgencyID: own}
	assert.True(t, dev.CanAccessAgency(other))
}

func TestUserContext_ActorID(t *testing.T) {
	user := &auth.UserContext{UserID: uuid.New()}
	require.NotNil(t, user.ActorID())
	assert.Equal(t, user.UserID, *user.ActorID())

	system := &auth.UserContext{UserID: auth.SystemUserID}
	assert.Nil(t, system.ActorID())
}

func TestUserContext_Initials(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		expected string
	}{
		{"two words", "Ana Souza", "AS"},
		{"single word", "Ana", "A"},
		{"extra spaces", "  ana   maria souza ", "AMS"},
		{"accented", "élodie ávila", "ÉÁ"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &auth.UserContext{DisplayName: tt.display}
			assert.Equal(t, tt.expected, u.Initials())
		})
	}
}

func TestEffectiveAgencyID(t *testing.T) {
	own := uuid.New()
	target := uuid.New()
	user := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleDeveloper, AgencyID: own}

	t.Run("no user", func(t *testing.T) {
		_, ok := auth.EffectiveAgencyID(context.Background())
		assert.False(t, ok)
	})

	t.Run("falls back to user agency", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), user)
		id, ok := auth.EffectiveAgencyID(ctx)
		require.True(t, ok)
		assert.Equal(t, own, id)
	})

	t.Run("explicit filter wins", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), user)
		ctx = auth.WithAgencyFilter(ctx, &auth.AgencyFilter{AgencyID: target, Overridden: true})
		id, ok := auth.EffectiveAgencyID(ctx)
		require.True(t, ok)
		assert.Equal(t, target, id)
	})

	t.Run("user without agency", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), &auth.UserContext{UserID: auth.SystemUserID})
		_, ok := auth.EffectiveAgencyID(ctx)
		assert.False(t, ok)
	})
}
