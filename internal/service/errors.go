package service

import (
	"errors"
	"fmt"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found in the caller's agency
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden is returned when the caller's role does not allow the action
	ErrForbidden = errors.New("permission denied")

	// ErrUnauthorized is returned when there is no authenticated caller
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when the stored state no longer allows the change
	ErrConflict = errors.New("resource conflict")

	// ErrDuplicate is returned when a unique record already exists
	ErrDuplicate = errors.New("resource already exists")

	// ErrServiceUnavailable is returned when an optional integration is disabled
	ErrServiceUnavailable = errors.New("service unavailable")
)

// StatusConflictError reports that a booking was changed by someone else.
// It carries the status now stored so callers can retry from it.
type StatusConflictError struct {
	Current BookingStatusView
}

// BookingStatusView is a stored status and the statuses reachable from it
type BookingStatusView struct {
	Status  domain.BookingStatus
	Allowed []domain.BookingStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("%s: booking status is now %s", ErrConflict.Error(), e.Current.Status)
}

func (e *StatusConflictError) Unwrap() error {
	return ErrConflict
}

// mapRepoError converts storage errors into service errors
func mapRepoError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
