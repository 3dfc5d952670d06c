package auth

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
)

// SystemUserID identifies requests authenticated with the API key
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.Role
	AgencyID    uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"
const agencyFilterKey contextKey = "agencyFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// IsSystem reports whether the request was authenticated with the API key
func (u *UserContext) IsSystem() bool {
	return u.UserID == SystemUserID
}

// IsDeveloper reports whether the user may act across agencies
func (u *UserContext) IsDeveloper() bool {
	return u.Role == domain.RoleDeveloper
}

// CanAccessAgency checks if user can access data for a specific agency
func (u *UserContext) CanAccessAgency(agencyID uuid.UUID) bool {
	if u.IsDeveloper() {
		return true
	}
	return u.AgencyID == agencyID
}

// ActorID returns the user id to record as the actor of a change, nil for system requests
func (u *UserContext) ActorID() *uuid.UUID {
	if u.IsSystem() || u.UserID == uuid.Nil {
		return nil
	}
	id := u.UserID
	return &id
}

// Initials returns the first letter of each word of the display name,
// e.g. "Ana Souza" -> "AS" and "élodie" -> "É"
func (u *UserContext) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(u.DisplayName) {
		first, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(first))
	}
	return b.String()
}

// AgencyFilter is the effective agency for the request.
// It is set by middleware from the user context and the X-Agency-ID header.
type AgencyFilter struct {
	AgencyID uuid.UUID
	// Overridden is true when a developer explicitly targeted another agency
	Overridden bool
}

// WithAgencyFilter adds agency filter to the context
func WithAgencyFilter(ctx context.Context, filter *AgencyFilter) context.Context {
	return context.WithValue(ctx, agencyFilterKey, filter)
}

// AgencyFilterFromContext extracts agency filter from the context
func AgencyFilterFromContext(ctx context.Context) (*AgencyFilter, bool) {
	filter, ok := ctx.Value(agencyFilterKey).(*AgencyFilter)
	return filter, ok
}

// EffectiveAgencyID returns the agency queries must be scoped to.
// The explicit filter set by middleware wins over the user's own agency.
// The second return value is false when no agency can be determined.
func EffectiveAgencyID(ctx context.Context) (uuid.UUID, bool) {
	if filter, ok := AgencyFilterFromContext(ctx); ok && filter != nil && filter.AgencyID != uuid.Nil {
		return filter.AgencyID, true
	}
	if userCtx, ok := FromContext(ctx); ok && userCtx.AgencyID != uuid.Nil {
		return userCtx.AgencyID, true
	}
	return uuid.Nil, false
}
