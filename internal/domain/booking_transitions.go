package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the target status is not reachable from the current one
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSameStatus is returned when the target status equals the current one
	ErrSameStatus = errors.New("booking already has the requested status")
)

// statusSet is an ordered set of booking statuses
type statusSet []BookingStatus

func (s statusSet) contains(status BookingStatus) bool {
	for _, candidate := range s {
		if candidate == status {
			return true
		}
	}
	return false
}

// bookingTransitions lists, per status, the statuses reachable in one step.
// Order is the order offered to users.
var bookingTransitions = map[BookingStatus]statusSet{
	BookingStatusPendingDocuments:    {BookingStatusUnderAnalysis, BookingStatusCancelled},
	BookingStatusUnderAnalysis:       {BookingStatusApproved, BookingStatusCancelled},
	BookingStatusApproved:            {BookingStatusPendingInstallation, BookingStatusCancelled},
	BookingStatusPendingInstallation: {BookingStatusInstalled, BookingStatusCancelled},
	BookingStatusInstalled:           {BookingStatusActive, BookingStatusCancelled},
	BookingStatusActive:              {BookingStatusSuspended, BookingStatusCancelled},
	BookingStatusSuspended:           {BookingStatusActive, BookingStatusCancelled},
	BookingStatusCancelled:           {},
}

func init() {
	if err := ValidateTransitionTable(); err != nil {
		panic(err)
	}
}

// ValidateTransitionTable checks that every booking status has an entry in the
// transition table, that all targets are known and that no status lists itself.
func ValidateTransitionTable() error {
	return validateTransitions(bookingTransitions)
}

func validateTransitions(table map[BookingStatus]statusSet) error {
	for _, status := range AllBookingStatuses() {
		targets, ok := table[status]
		if !ok {
			return fmt.Errorf("transition table has no entry for status %q", status)
		}
		for _, target := range targets {
			if !target.IsValid() {
				return fmt.Errorf("status %q lists unknown target %q", status, target)
			}
			if target == status {
				return fmt.Errorf("status %q lists itself as a target", status)
			}
		}
	}
	if len(table) != len(AllBookingStatuses()) {
		return fmt.Errorf("transition table has %d entries, expected %d", len(table), len(AllBookingStatuses()))
	}
	return nil
}

// CanTransition reports whether a booking may move directly from current to target
func CanTransition(current, target BookingStatus) bool {
	targets, ok := bookingTransitions[current]
	if !ok {
		return false
	}
	return targets.contains(target)
}

// NextStatuses returns the statuses reachable from current, in table order.
// The returned slice is a copy and may be modified by the caller.
func NextStatuses(current BookingStatus) []BookingStatus {
	targets := bookingTransitions[current]
	next := make([]BookingStatus, len(targets))
	copy(next, targets)
	return next
}

// IsTerminal reports whether no transition leaves the status
func (s BookingStatus) IsTerminal() bool {
	targets, ok := bookingTransitions[s]
	return ok && len(targets) == 0
}

// TransitionError describes a rejected status change
type TransitionError struct {
	From    BookingStatus
	To      BookingStatus
	Allowed []BookingStatus
	err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", e.err.Error(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.err
}

// ValidateTransition returns nil when current -> target is allowed, and a
// *TransitionError wrapping ErrSameStatus or ErrInvalidTransition otherwise.
func ValidateTransition(current, target BookingStatus) error {
	if current == target {
		return &TransitionError{From: current, To: target, Allowed: NextStatuses(current), err: ErrSameStatus}
	}
	if !CanTransition(current, target) {
		return &TransitionError{From: current, To: target, Allowed: NextStatuses(current), err: ErrInvalidTransition}
	}
	return nil
}
