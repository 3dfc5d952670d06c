package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusRegistry(t *testing.T) {
	all := AllBookingStatuses()
	require.Len(t, all, 8)

	seen := map[BookingStatus]bool{}
	for _, status := range all {
		assert.True(t, status.IsValid(), status)
		assert.NotEqual(t, string(status), status.Label(), status)
		assert.Regexp(t, `^#[0-9a-f]{6}$`, status.Color(), status)
		seen[status] = true
	}
	assert.Len(t, seen, 8)

	parsed, ok := ParseBookingStatus("under_analysis")
	assert.True(t, ok)
	assert.Equal(t, BookingStatusUnderAnalysis, parsed)

	_, ok = ParseBookingStatus("UNDER_ANALYSIS")
	assert.False(t, ok)
	assert.Equal(t, "archived", BookingStatus("archived").Label())
}

func TestValidateTransitionTable(t *testing.T) {
	require.NoError(t, ValidateTransitionTable())

	withTable := func(mutate func(map[BookingStatus]statusSet)) map[BookingStatus]statusSet {
		table := make(map[BookingStatus]statusSet, len(bookingTransitions))
		for k, v := range bookingTransitions {
			table[k] = append(statusSet{}, v...)
		}
		mutate(table)
		return table
	}

	t.Run("missing entry", func(t *testing.T) {
		table := withTable(func(m map[BookingStatus]statusSet) { delete(m, BookingStatusCancelled) })
		assert.ErrorContains(t, validateTransitions(table), "no entry")
	})

	t.Run("unknown target", func(t *testing.T) {
		table := withTable(func(m map[BookingStatus]statusSet) {
			m[BookingStatusActive] = append(m[BookingStatusActive], "archived")
		})
		assert.ErrorContains(t, validateTransitions(table), "unknown target")
	})

	t.Run("self edge", func(t *testing.T) {
		table := withTable(func(m map[BookingStatus]statusSet) {
			m[BookingStatusApproved] = append(m[BookingStatusApproved], BookingStatusApproved)
		})
		assert.ErrorContains(t, validateTransitions(table), "itself")
	})

	t.Run("unknown source", func(t *testing.T) {
		table := withTable(func(m map[BookingStatus]statusSet) { m["archived"] = statusSet{} })
		assert.Error(t, validateTransitions(table))
	})
}

func TestTransitionTableShape(t *testing.T) {
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.Empty(t, NextStatuses(BookingStatusCancelled))

	assert.True(t, CanTransition(BookingStatusActive, BookingStatusSuspended))
	assert.True(t, CanTransition(BookingStatusSuspended, BookingStatusActive))

	for _, status := range AllBookingStatuses() {
		if status != BookingStatusCancelled {
			assert.True(t, CanTransition(status, BookingStatusCancelled), "%s should be cancellable", status)
			assert.False(t, status.IsTerminal(), status)
		}
		assert.False(t, CanTransition(status, status), "%s lists itself", status)
	}

	// the only backward edge is suspended -> active; cancelled ranks last
	forward := []BookingStatus{
		BookingStatusPendingDocuments,
		BookingStatusUnderAnalysis,
		BookingStatusApproved,
		BookingStatusPendingInstallation,
		BookingStatusInstalled,
		BookingStatusActive,
		BookingStatusSuspended,
		BookingStatusCancelled,
	}
	require.ElementsMatch(t, AllBookingStatuses(), forward)
	order := map[BookingStatus]int{}
	for i, status := range forward {
		order[status] = i
	}
	backward := 0
	for _, from := range AllBookingStatuses() {
		for _, to := range NextStatuses(from) {
			if order[to] < order[from] {
				assert.Equal(t, BookingStatusSuspended, from)
				assert.Equal(t, BookingStatusActive, to)
				backward++
			}
		}
	}
	assert.Equal(t, 1, backward)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPendingDocuments, BookingStatusUnderAnalysis, true},
		{BookingStatusPendingDocuments, BookingStatusApproved, false},
		{BookingStatusUnderAnalysis, BookingStatusApproved, true},
		{BookingStatusApproved, BookingStatusPendingInstallation, true},
		{BookingStatusPendingInstallation, BookingStatusInstalled, true},
		{BookingStatusInstalled, BookingStatusActive, true},
		{BookingStatusInstalled, BookingStatusPendingInstallation, false},
		{BookingStatusCancelled, BookingStatusPendingDocuments, false},
		{"unknown", BookingStatusCancelled, false},
		{BookingStatusActive, "unknown", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []BookingStatus{BookingStatusSuspended, BookingStatusCancelled}, NextStatuses(BookingStatusActive))
	assert.Empty(t, NextStatuses("unknown"))

	next := NextStatuses(BookingStatusPendingDocuments)
	next[0] = BookingStatusActive
	assert.Equal(t, BookingStatusUnderAnalysis, NextStatuses(BookingStatusPendingDocuments)[0])
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(BookingStatusApproved, BookingStatusPendingInstallation))

	err := ValidateTransition(BookingStatusApproved, BookingStatusActive)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, BookingStatusApproved, transitionErr.From)
	assert.Equal(t, BookingStatusActive, transitionErr.To)
	assert.Equal(t, []BookingStatus{BookingStatusPendingInstallation, BookingStatusCancelled}, transitionErr.Allowed)

	err = ValidateTransition(BookingStatusActive, BookingStatusActive)
	assert.ErrorIs(t, err, ErrSameStatus)
	assert.NotErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, ValidateTransition(BookingStatusCancelled, BookingStatusActive), ErrInvalidTransition)
}

func TestProposalStatusTransitions(t *testing.T) {
	assert.True(t, ProposalStatusDraft.CanTransitionTo(ProposalStatusSent))
	assert.True(t, ProposalStatusAccepted.CanTransitionTo(ProposalStatusActiveBooking))
	assert.False(t, ProposalStatusDraft.CanTransitionTo(ProposalStatusActiveBooking))
	assert.False(t, ProposalStatusActiveBooking.CanTransitionTo(ProposalStatusDraft))
	assert.False(t, ProposalStatus("won").IsValid())

	assert.True(t, ProposalStatusSent.IsOpen())
	assert.False(t, ProposalStatusRejected.IsOpen())
}

func TestRoles(t *testing.T) {
	assert.True(t, RoleDeveloper.AtLeast(RoleMaster))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleAgent.AtLeast(RoleAdmin))
	assert.False(t, Role("OWNER").AtLeast(RoleAgent))

	for i, role := range AllRoles() {
		assert.Equal(t, i+1, role.Rank())
	}

	_, ok := ParseRole("admin")
	assert.False(t, ok)
	role, ok := ParseRole("MASTER")
	assert.True(t, ok)
	assert.Equal(t, RoleMaster, role)
}

func TestParseLifecycleFilter(t *testing.T) {
	assert.Equal(t, LifecycleFilterActive, ParseLifecycleFilter(""))
	assert.Equal(t, LifecycleFilterActive, ParseLifecycleFilter("deleted"))
	assert.Equal(t, LifecycleFilterArchived, ParseLifecycleFilter("archived"))
	assert.Equal(t, LifecycleFilterAny, ParseLifecycleFilter("any"))
}
