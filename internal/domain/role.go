package domain

// Role is a user's position in the agency permission hierarchy.
// DEVELOPER > MASTER > ADMIN > AGENT.
type Role string

const (
	RoleDeveloper Role = "DEVELOPER"
	RoleMaster    Role = "MASTER"
	RoleAdmin     Role = "ADMIN"
	RoleAgent     Role = "AGENT"
)

var roleRanks = map[Role]int{
	RoleAgent:     1,
	RoleAdmin:     2,
	RoleMaster:    3,
	RoleDeveloper: 4,
}

// AllRoles returns the roles from lowest to highest
func AllRoles() []Role {
	return []Role{RoleAgent, RoleAdmin, RoleMaster, RoleDeveloper}
}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the hierarchy level of the role; unknown roles rank 0
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r ranks at or above other
func (r Role) AtLeast(other Role) bool {
	return r.IsValid() && r.Rank() >= other.Rank()
}

// ParseRole converts a raw string into a known role
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	return r, r.IsValid()
}

// Capability identifies an action guarded by the permission gate
type Capability string

const (
	CapabilityBookingsRead            Capability = "bookings:read"
	CapabilityBookingsChangeStatus    Capability = "bookings:change_status"
	CapabilityBookingsAddNote         Capability = "bookings:add_note"
	CapabilityBookingsManageDocuments Capability = "bookings:manage_documents"
	CapabilityBookingsArchive         Capability = "bookings:archive"
	CapabilityClientsRead             Capability = "clients:read"
	CapabilityClientsWrite            Capability = "clients:write"
	CapabilityClientsArchive          Capability = "clients:archive"
	CapabilityProposalsRead           Capability = "proposals:read"
	CapabilityProposalsWrite          Capability = "proposals:write"
	CapabilityProposalsActivate       Capability = "proposals:activate"
	CapabilityFunnelsRead             Capability = "funnels:read"
	CapabilityFunnelsManage           Capability = "funnels:manage"
	CapabilityOperatorsRead           Capability = "operators:read"
	CapabilityOperatorsManage         Capability = "operators:manage"
	CapabilityUsersRead               Capability = "users:read"
	CapabilityActivityRead            Capability = "activity:read"
	CapabilityDashboardRead           Capability = "dashboard:read"
	CapabilityCacheManage             Capability = "cache:manage"
)

// AllCapabilities returns every capability tag
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityBookingsRead,
		CapabilityBookingsChangeStatus,
		CapabilityBookingsAddNote,
		CapabilityBookingsManageDocuments,
		CapabilityBookingsArchive,
		CapabilityClientsRead,
		CapabilityClientsWrite,
		CapabilityClientsArchive,
		CapabilityProposalsRead,
		CapabilityProposalsWrite,
		CapabilityProposalsActivate,
		CapabilityFunnelsRead,
		CapabilityFunnelsManage,
		CapabilityOperatorsRead,
		CapabilityOperatorsManage,
		CapabilityUsersRead,
		CapabilityActivityRead,
		CapabilityDashboardRead,
		CapabilityCacheManage,
	}
}
