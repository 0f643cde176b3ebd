package identity

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// BootstrapAdmin describes the administrator created on first start
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates an active admin when the configured username is free.
// It returns false without error when bootstrap is not configured or the user already exists.
func EnsureAdmin(ctx context.Context, userRepo identity.UserRepository, admin BootstrapAdmin) (bool, error) {
	if admin.Username == "" || admin.Password == "" {
		return false, nil
	}
	username := identity.NormalizeUsername(admin.Username)
	email := admin.Email
	if email == "" {
		email = username + "@crm.local"
	}

	exists, err := userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		logger.L(ctx).Debug("bootstrap admin already present", zap.String("username", username))
		return false, nil
	}
	exists, err = userRepo.ExistsByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		return false, err
	}
	if exists {
		return false, shared.NewDomainError(shared.CodeAlreadyExists, "Bootstrap admin email is used by another account")
	}

	user, err := identity.NewUser(username, email, admin.Password, identity.RoleAdmin)
	if err != nil {
		return false, err
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return false, err
	}
	user.ClearDomainEvents()

	logger.L(ctx).Info("bootstrap admin created",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)
	return true, nil
}
