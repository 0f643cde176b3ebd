package persistence

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserRepository implements identity.UserRepository using GORM
type GormUserRepository struct {
	baseRepository[models.UserModel, identity.User]
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{
		baseRepository: newBaseRepository(db, "User",
			(*models.UserModel).ToDomain,
			models.UserModelFromDomain,
			queryOptions{
				searchColumns: []string{"username", "email", "first_name || ' ' || last_name"},
				filterColumns: map[string]string{
					"role":   "role",
					"status": "status",
				},
				sortFields: UserSortFields,
			}),
	}
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.findOne(ctx, "username = ?", identity.NormalizeUsername(username))
}

// ExistsByUsername checks if a username already exists
func (r *GormUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", identity.NormalizeUsername(username))
}

// ExistsByEmail checks if an email already exists
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", identity.NormalizeEmail(email))
}

// Update persists the user, including soft deletes
func (r *GormUserRepository) Update(ctx context.Context, user *identity.User) error {
	return r.update(ctx, user, &user.BaseAggregateRoot)
}

// Ensure GormUserRepository implements UserRepository
var _ identity.UserRepository = (*GormUserRepository)(nil)
