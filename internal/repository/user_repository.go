package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID loads a user within the effective agency
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyAgencyFilter(ctx, query)
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetActiveByID loads an active user regardless of agency. Used by authentication,
// before any agency is known.
func (r *UserRepository) GetActiveByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND lifecycle = ?", id, domain.LifecycleActive).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns the users of the effective agency ordered by display name
func (r *UserRepository) List(ctx context.Context, lifecycle domain.LifecycleFilter) ([]domain.User, error) {
	users := []domain.User{}
	query := r.db.WithContext(ctx).Model(&domain.User{})
	query = ApplyAgencyFilter(ctx, query)
	query = ApplyLifecycleFilter(query, "lifecycle", lifecycle)
	err := query.Order("display_name ASC").Find(&users).Error
	return users, err
}

// TouchLastLogin records the time of the user's latest authenticated request
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
