package identity

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService handles user administration
type UserService struct {
	userRepo  identity.UserRepository
	blacklist auth.TokenBlacklist
	events    shared.EventPublisher
	jwt       *auth.JWTService
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo identity.UserRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	events shared.EventPublisher,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		blacklist: blacklist,
		events:    events,
		jwt:       jwtService,
	}
}

// List retrieves a page of users
func (s *UserService) List(ctx context.Context, filter UserListFilter) (*shared.Paginated[UserResponse], error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.Search = filter.Search
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter = domainFilter.Normalize()
	if filter.Role != "" {
		domainFilter.Filters["role"] = filter.Role
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	users, err := s.userRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.userRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToUserResponses(users), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	response := ToUserResponse(user)
	return &response, nil
}

// ChangeRole assigns a new role. Existing tokens keep the old role claim until
// they are revoked, so the user's tokens are revoked as well.
func (s *UserService) ChangeRole(ctx context.Context, actorID, userID uuid.UUID, req ChangeRoleRequest) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldRole := user.Role
	if err := user.ChangeRole(identity.Role(req.Role), actorID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, user, true); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("user role changed",
		zap.String("user_id", user.ID.String()),
		zap.String("from", string(oldRole)),
		zap.String("to", string(user.Role)),
	)
	response := ToUserResponse(user)
	return &response, nil
}

// Activate re-enables a deactivated or locked user
func (s *UserService) Activate(ctx context.Context, actorID, userID uuid.UUID) (*UserResponse, error) {
	return s.changeStatus(ctx, userID, false, func(u *identity.User) error { return u.Activate(actorID) })
}

// Deactivate disables a user and revokes their tokens
func (s *UserService) Deactivate(ctx context.Context, actorID, userID uuid.UUID) (*UserResponse, error) {
	if actorID == userID {
		return nil, shared.NewDomainError(shared.CodeForbidden, "You cannot deactivate your own account")
	}
	return s.changeStatus(ctx, userID, true, func(u *identity.User) error { return u.Deactivate(actorID) })
}

// Unlock clears a lock left by failed logins
func (s *UserService) Unlock(ctx context.Context, actorID, userID uuid.UUID) (*UserResponse, error) {
	return s.changeStatus(ctx, userID, false, func(u *identity.User) error { return u.Unlock(actorID) })
}

// Delete soft deletes a user. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return shared.NewDomainError(shared.CodeForbidden, "You cannot delete your own account")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.Delete(actorID); err != nil {
		return err
	}
	if err := s.save(ctx, user, true); err != nil {
		return err
	}

	logger.L(ctx).Info("user deleted", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *UserService) changeStatus(ctx context.Context, userID uuid.UUID, revoke bool, apply func(*identity.User) error) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldStatus := user.Status
	if err := apply(user); err != nil {
		return nil, err
	}
	if err := s.save(ctx, user, revoke); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("user status changed",
		zap.String("user_id", user.ID.String()),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(user.Status)),
	)
	response := ToUserResponse(user)
	return &response, nil
}

func (s *UserService) save(ctx context.Context, user *identity.User, revoke bool) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	publishUserEvents(ctx, s.events, user)

	if revoke {
		if err := s.blacklist.RevokeUser(ctx, user.ID.String(), s.jwt.GetRefreshTokenExpiration()); err != nil {
			return err
		}
	}
	return nil
}
