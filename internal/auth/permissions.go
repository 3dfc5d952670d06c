package auth

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
)

type capabilitySet map[domain.Capability]struct{}

func (s capabilitySet) has(c domain.Capability) bool {
	_, ok := s[c]
	return ok
}

func grant(base capabilitySet, extra ...domain.Capability) capabilitySet {
	set := make(capabilitySet, len(base)+len(extra))
	for c := range base {
		set[c] = struct{}{}
	}
	for _, c := range extra {
		set[c] = struct{}{}
	}
	return set
}

var (
	agentCapabilities = grant(nil,
		domain.CapabilityBookingsRead,
		domain.CapabilityBookingsAddNote,
		domain.CapabilityBookingsManageDocuments,
		domain.CapabilityClientsRead,
		domain.CapabilityClientsWrite,
		domain.CapabilityClientsArchive,
		domain.CapabilityProposalsRead,
		domain.CapabilityProposalsWrite,
		domain.CapabilityProposalsActivate,
		domain.CapabilityFunnelsRead,
		domain.CapabilityOperatorsRead,
		domain.CapabilityDashboardRead,
	)
	adminCapabilities = grant(agentCapabilities,
		domain.CapabilityBookingsChangeStatus,
		domain.CapabilityBookingsArchive,
		domain.CapabilityFunnelsManage,
		domain.CapabilityUsersRead,
		domain.CapabilityActivityRead,
	)
	masterCapabilities = grant(adminCapabilities,
		domain.CapabilityOperatorsManage,
	)
	developerCapabilities = grant(masterCapabilities,
		domain.CapabilityCacheManage,
	)
)

// roleCapabilities is cumulative: each role holds everything the role below it holds
var roleCapabilities = map[domain.Role]capabilitySet{
	domain.RoleAgent:     agentCapabilities,
	domain.RoleAdmin:     adminCapabilities,
	domain.RoleMaster:    masterCapabilities,
	domain.RoleDeveloper: developerCapabilities,
}

// ownershipRestricted capabilities only let an AGENT act on records they own
var ownershipRestricted = map[domain.Capability]struct{}{
	domain.CapabilityClientsWrite:      {},
	domain.CapabilityClientsArchive:    {},
	domain.CapabilityProposalsWrite:    {},
	domain.CapabilityProposalsActivate: {},
}

// ValidateRoleCapabilities checks that every role has a capability set, that
// every granted capability is known and that a higher role never holds less
// than a lower one.
func ValidateRoleCapabilities() error {
	known := make(capabilitySet)
	for _, c := range domain.AllCapabilities() {
		known[c] = struct{}{}
	}

	roles := domain.AllRoles()
	for i, role := range roles {
		set, ok := roleCapabilities[role]
		if !ok {
			return fmt.Errorf("role %s has no capability set", role)
		}
		for c := range set {
			if !known.has(c) {
				return fmt.Errorf("role %s grants unknown capability %q", role, c)
			}
		}
		if i == 0 {
			continue
		}
		lower := roleCapabilities[roles[i-1]]
		for c := range lower {
			if !set.has(c) {
				return fmt.Errorf("role %s lacks %q held by lower role %s", role, c, roles[i-1])
			}
		}
	}
	return nil
}

// Can reports whether role holds capability
func Can(role domain.Role, capability domain.Capability) bool {
	set, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	return set.has(capability)
}

// IsOwnershipRestricted reports whether an AGENT needs to own a record to use capability on it
func IsOwnershipRestricted(capability domain.Capability) bool {
	_, ok := ownershipRestricted[capability]
	return ok
}

// CanActOn reports whether user may use capability on a record owned by ownerID
func CanActOn(user *UserContext, capability domain.Capability, ownerID uuid.UUID) bool {
	if user == nil || !Can(user.Role, capability) {
		return false
	}
	if user.Role == domain.RoleAgent && IsOwnershipRestricted(capability) {
		return ownerID == user.UserID
	}
	return true
}

// Capabilities returns the capabilities of role in declaration order
func Capabilities(role domain.Role) []domain.Capability {
	result := []domain.Capability{}
	for _, c := range domain.AllCapabilities() {
		if Can(role, c) {
			result = append(result, c)
		}
	}
	return result
}

// OwnershipRestrictedFor returns the capabilities role may only use on owned records
func OwnershipRestrictedFor(role domain.Role) []domain.Capability {
	result := []domain.Capability{}
	if role != domain.RoleAgent {
		return result
	}
	for _, c := range domain.AllCapabilities() {
		if Can(role, c) && IsOwnershipRestricted(c) {
			result = append(result, c)
		}
	}
	return result
}

// Can reports whether the user's role holds capability
func (u *UserContext) Can(capability domain.Capability) bool {
	return Can(u.Role, capability)
}
