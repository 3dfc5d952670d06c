package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/mapper"
	"github.com/straye-as/travel-crm-api/internal/repository"
	"go.uber.org/zap"
)

// UserService serves user lookups. It implements auth.UserLookup so that
// role changes and deactivations reach the auth middleware within one cache TTL.
type UserService struct {
	users       *repository.UserRepository
	agencies    *repository.AgencyRepository
	cache       cache.Cache
	ttl         time.Duration
	permissions *PermissionService
	logger      *zap.Logger
}

func NewUserService(
	users *repository.UserRepository,
	agencies *repository.AgencyRepository,
	c cache.Cache,
	ttl time.Duration,
	permissions *PermissionService,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:       users,
		agencies:    agencies,
		cache:       c,
		ttl:         ttl,
		permissions: permissions,
		logger:      logger,
	}
}

func userKey(id uuid.UUID) string {
	return cache.Key("user", id.String())
}

// ActiveUser returns the active user with the given id, cached
func (s *UserService) ActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := cache.Remember(ctx, s.cache, userKey(userID), s.ttl, func(ctx context.Context) (*domain.User, error) {
		return s.users.GetActiveByID(ctx, userID)
	})
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// Forget drops a cached user so the next request reloads it
func (s *UserService) Forget(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userKey(userID)); err != nil {
		s.logger.Warn("failed to evict cached user", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// Me describes the caller together with the agency they act in
func (s *UserService) Me(ctx context.Context) (*domain.MeDTO, error) {
	user, err := s.permissions.Caller(ctx)
	if err != nil {
		return nil, err
	}

	me := &domain.MeDTO{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Initials:    user.Initials(),
		Email:       user.Email,
		Role:        user.Role,
		AgencyID:    repository.AgencyFromContext(ctx),
	}
	if me.AgencyID != uuid.Nil {
		agency, err := s.agencies.GetByID(ctx, me.AgencyID)
		if err == nil {
			dto := mapper.ToAgencyDTO(agency)
			me.Agency = &dto
		} else {
			s.logger.Warn("failed to load caller agency", zap.String("agency_id", me.AgencyID.String()), zap.Error(err))
		}
	}
	return me, nil
}

// List returns the users of the effective agency
func (s *UserService) List(ctx context.Context, lifecycle domain.LifecycleFilter) ([]domain.UserDTO, error) {
	if _, err := s.permissions.Require(ctx, domain.CapabilityUsersRead); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, lifecycle)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}
	return dtos, nil
}
