package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoleCapabilities(t *testing.T) {
	require.NoError(t, auth.ValidateRoleCapabilities())
}

func TestCan_HierarchyIsMonotonic(t *testing.T) {
	roles := domain.AllRoles()
	for i := 1; i < len(roles); i++ {
		lower, higher := roles[i-1], roles[i]
		for _, c := range domain.AllCapabilities() {
			if auth.Can(lower, c) {
				assert.Truef(t, auth.Can(higher, c), "%s holds %s but %s does not", lower, c, higher)
			}
		}
	}
}

func TestCan(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		capability domain.Capability
		expected   bool
	}{
		{"agent reads bookings", domain.RoleAgent, domain.CapabilityBookingsRead, true},
		{"agent cannot change booking status", domain.RoleAgent, domain.CapabilityBookingsChangeStatus, false},
		{"admin changes booking status", domain.RoleAdmin, domain.CapabilityBookingsChangeStatus, true},
		{"admin cannot manage operators", domain.RoleAdmin, domain.CapabilityOperatorsManage, false},
		{"master manages operators", domain.RoleMaster, domain.CapabilityOperatorsManage, true},
		{"master cannot manage cache", domain.RoleMaster, domain.CapabilityCacheManage, false},
		{"developer manages cache", domain.RoleDeveloper, domain.CapabilityCacheManage, true},
		{"unknown role has nothing", domain.Role("GUEST"), domain.CapabilityBookingsRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.Can(tt.role, tt.capability))
		})
	}
}

func TestCan_DeveloperHoldsEverything(t *testing.T) {
	for _, c := range domain.AllCapabilities() {
		assert.True(t, auth.Can(domain.RoleDeveloper, c), c)
	}
}

func TestCanActOn_Ownership(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	agent := &auth.UserContext{UserID: owner, Role: domain.RoleAgent}
	admin := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("agent acts on own client", func(t *testing.T) {
		assert.True(t, auth.CanActOn(agent, domain.CapabilityClientsWrite, owner))
	})

	t.Run("agent cannot act on another agent's client", func(t *testing.T) {
		assert.False(t, auth.CanActOn(agent, domain.CapabilityClientsWrite, other))
		assert.False(t, auth.CanActOn(agent, domain.CapabilityProposalsActivate, other))
	})

	t.Run("agent reads regardless of owner", func(t *testing.T) {
		assert.True(t, auth.CanActOn(agent, domain.CapabilityClientsRead, other))
	})

	t.Run("admin acts agency-wide", func(t *testing.T) {
		assert.True(t, auth.CanActOn(admin, domain.CapabilityClientsWrite, other))
	})

	t.Run("missing capability is never granted by ownership", func(t *testing.T) {
		assert.False(t, auth.CanActOn(agent, domain.CapabilityBookingsArchive, owner))
	})

	t.Run("nil user", func(t *testing.T) {
		assert.False(t, auth.CanActOn(nil, domain.CapabilityClientsRead, owner))
	})
}

func TestOwnershipRestrictedFor(t *testing.T) {
	assert.ElementsMatch(t, []domain.Capability{
		domain.CapabilityClientsWrite,
		domain.CapabilityClientsArchive,
		domain.CapabilityProposalsWrite,
		domain.CapabilityProposalsActivate,
	}, auth.OwnershipRestrictedFor(domain.RoleAgent))

	assert.Empty(t, auth.OwnershipRestrictedFor(domain.RoleAdmin))
	assert.NotNil(t, auth.OwnershipRestrictedFor(domain.RoleAdmin))
}

func TestCapabilities_OrderedAndComplete(t *testing.T) {
	caps := auth.Capabilities(domain.RoleDeveloper)
	assert.Equal(t, domain.AllCapabilities(), caps)
	assert.Empty(t, auth.Capabilities(domain.Role("nobody")))
}
