package domain

// ProposalStatus is the business status of a proposal
type ProposalStatus string

const (
	ProposalStatusDraft         ProposalStatus = "draft"
	ProposalStatusSent          ProposalStatus = "sent"
	ProposalStatusAccepted      ProposalStatus = "accepted"
	ProposalStatusActiveBooking ProposalStatus = "active_booking"
	ProposalStatusRejected      ProposalStatus = "rejected"
	ProposalStatusExpired       ProposalStatus = "expired"
)

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusDraft:         {ProposalStatusSent, ProposalStatusRejected},
	ProposalStatusSent:          {ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusExpired},
	ProposalStatusAccepted:      {ProposalStatusActiveBooking, ProposalStatusExpired},
	ProposalStatusActiveBooking: {},
	ProposalStatusRejected:      {},
	ProposalStatusExpired:       {},
}

// IsValid reports whether s is a known proposal status
func (s ProposalStatus) IsValid() bool {
	_, ok := proposalTransitions[s]
	return ok
}

// IsOpen reports whether the proposal is still in negotiation
func (s ProposalStatus) IsOpen() bool {
	return s == ProposalStatusDraft || s == ProposalStatusSent || s == ProposalStatusAccepted
}

// CanTransitionTo reports whether a proposal may move from s to target
func (s ProposalStatus) CanTransitionTo(target ProposalStatus) bool {
	for _, next := range proposalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
