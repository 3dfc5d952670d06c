package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"go.uber.org/zap"
)

// PermissionService is the permission gate. Every mutating service operation
// calls it before touching storage.
type PermissionService struct {
	logger *zap.Logger
}

func NewPermissionService(logger *zap.Logger) *PermissionService {
	return &PermissionService{logger: logger}
}

// Caller returns the authenticated user of the request
func (s *PermissionService) Caller(ctx context.Context) (*auth.UserContext, error) {
	user, ok := auth.FromContext(ctx)
	if !ok || user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// Require fails with ErrForbidden unless the caller's role holds capability
func (s *PermissionService) Require(ctx context.Context, capability domain.Capability) (*auth.UserContext, error) {
	user, err := s.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if !user.Can(capability) {
		s.logger.Warn("permission denied",
			zap.String("user_id", user.UserID.String()),
			zap.String("role", string(user.Role)),
			zap.String("capability", string(capability)),
		)
		return nil, fmt.Errorf("%s requires %s: %w", user.Role, capability, ErrForbidden)
	}
	return user, nil
}

// RequireOwnership is Require plus the ownership rule: an AGENT may only use
// ownership-restricted capabilities on records they own
func (s *PermissionService) RequireOwnership(ctx context.Context, capability domain.Capability, ownerID uuid.UUID) (*auth.UserContext, error) {
	user, err := s.Require(ctx, capability)
	if err != nil {
		return nil, err
	}
	if !auth.CanActOn(user, capability, ownerID) {
		s.logger.Warn("ownership check failed",
			zap.String("user_id", user.UserID.String()),
			zap.String("owner_id", ownerID.String()),
			zap.String("capability", string(capability)),
		)
		return nil, fmt.Errorf("%s on a record owned by someone else: %w", capability, ErrForbidden)
	}
	return user, nil
}

// Permissions returns the caller's effective capabilities
func (s *PermissionService) Permissions(ctx context.Context) (*domain.PermissionsDTO, error) {
	user, err := s.Caller(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.PermissionsDTO{
		Role:                user.Role,
		Capabilities:        auth.Capabilities(user.Role),
		OwnershipRestricted: auth.OwnershipRestrictedFor(user.Role),
	}, nil
}
