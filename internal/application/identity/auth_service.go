package identity

import (
	"context"
	"errors"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/enterprisecrm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authentication error codes
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountDisabled    = "ACCOUNT_DISABLED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTokenMaxRefresh    = "TOKEN_MAX_REFRESH"
)

var errInvalidCredentials = shared.NewDomainError(CodeInvalidCredentials, "Invalid username or password")

// Reloads allowed when parallel logins race to record a failure
const maxLoginFailureRetries = 3

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	MaxLoginAttempts int           // Failed logins before the account is locked
	LockDuration     time.Duration // How long a lock lasts
}

// DefaultAuthServiceConfig returns default configuration
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		MaxLoginAttempts: identity.MaxFailedAttempts,
		LockDuration:     identity.DefaultLockDuration,
	}
}

// AuthService handles registration, login and the token lifecycle
type AuthService struct {
	userRepo   identity.UserRepository
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	events     shared.EventPublisher
	config     AuthServiceConfig
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo identity.UserRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	events shared.EventPublisher,
	config AuthServiceConfig,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		blacklist:  blacklist,
		events:     events,
		config:     config,
	}
}

// Register creates an active sales rep account
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	if err := ensureUnique(ctx, s.userRepo, req.Username, req.Email); err != nil {
		return nil, err
	}

	user, err := identity.NewUser(req.Username, req.Email, req.Password, identity.RoleSalesRep)
	if err != nil {
		return nil, err
	}
	if req.FirstName != "" || req.LastName != "" {
		if err := user.SetName(req.FirstName, req.LastName, user.ID); err != nil {
			return nil, err
		}
	}
	user.SetCreatedBy(user.ID)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	publishUserEvents(ctx, s.events, user)

	logger.L(ctx).Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)

	response := ToUserResponse(user)
	return &response, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, req LoginRequest, ip string) (*TokenResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "AuthService", "Login", "user.username", identity.NormalizeUsername(req.Username))
	defer span.End()

	log := logger.L(ctx).With(zap.String("username", identity.NormalizeUsername(req.Username)))

	user, err := s.userRepo.FindByUsername(ctx, identity.NormalizeUsername(req.Username))
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("login for unknown user")
			return nil, errInvalidCredentials
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := loginAllowed(user); err != nil {
		log.Warn("login refused", zap.String("status", string(user.Status)))
		return nil, err
	}

	if !user.VerifyPassword(req.Password) {
		var locked bool
		user, locked, err = s.recordLoginFailure(ctx, user)
		if err != nil {
			log.Error("failed to record login failure", zap.Error(err))
		}
		publishUserEvents(ctx, s.events, user)

		if locked {
			log.Warn("account locked after failed logins", zap.Int("attempts", user.FailedAttempts))
			return nil, shared.NewDomainError(CodeAccountLocked, "Too many failed login attempts. Account has been locked")
		}
		log.Warn("invalid password", zap.Int("failed_attempts", user.FailedAttempts))
		return nil, errInvalidCredentials
	}

	pair, err := s.jwtService.GenerateTokenPair(tokenInputFor(user))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	user.RecordLoginSuccess(ip)
	if err := s.userRepo.Update(ctx, user); err != nil {
		// The tokens are valid either way
		log.Error("failed to record login success", zap.Error(err))
	}

	log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("ip", ip))
	return toTokenResponse(pair, user), nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		logger.L(ctx).Warn("refresh token rejected", zap.Error(err))
		return nil, tokenError(err)
	}
	if err := s.checkNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, tokenError(err)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError(CodeTokenInvalid, "Token user no longer exists")
		}
		return nil, err
	}
	if err := loginAllowed(user); err != nil {
		return nil, err
	}

	pair, err := s.jwtService.RefreshTokenPair(claims, tokenInputFor(user))
	if err != nil {
		return nil, tokenError(err)
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("token refreshed",
		zap.String("user_id", user.ID.String()),
		zap.Int("refresh_count", claims.RefreshCount+1),
	)
	return toTokenResponse(pair, nil), nil
}

// Logout revokes the current access token and, when given, the matching refresh token
func (s *AuthService) Logout(ctx context.Context, accessClaims *auth.Claims, refreshToken string) error {
	if err := s.blacklist.Revoke(ctx, accessClaims.ID, accessClaims.GetRemainingTTL()); err != nil {
		return err
	}

	if refreshToken != "" {
		refreshClaims, err := s.jwtService.ValidateRefreshToken(refreshToken)
		switch {
		case err != nil:
			logger.L(ctx).Debug("ignoring unusable refresh token on logout", zap.Error(err))
		case refreshClaims.UserID != accessClaims.UserID:
			return shared.NewDomainError(shared.CodeForbidden, "Refresh token belongs to another user")
		default:
			if err := s.blacklist.Revoke(ctx, refreshClaims.ID, refreshClaims.GetRemainingTTL()); err != nil {
				return err
			}
		}
	}

	logger.L(ctx).Info("user logged out", zap.String("user_id", accessClaims.UserID))
	return nil
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	response := ToUserResponse(user)
	return &response, nil
}

// ChangePassword sets a new password and revokes every token issued before the change
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.ChangePassword(req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	publishUserEvents(ctx, s.events, user)

	if err := s.blacklist.RevokeUser(ctx, user.ID.String(), s.jwtService.GetRefreshTokenExpiration()); err != nil {
		return err
	}

	logger.L(ctx).Info("password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// ValidateAccessToken validates an access token and checks both blacklists.
// The HTTP middleware authenticates every request through this method.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtService.ValidateAccessToken(token)
	if err != nil {
		return nil, tokenError(err)
	}
	if err := s.checkNotRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) checkNotRevoked(ctx context.Context, claims *auth.Claims) error {
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if !revoked {
		revoked, err = s.blacklist.IsUserRevoked(ctx, claims.UserID, claims.GetIssuedAtTime())
		if err != nil {
			return err
		}
	}
	if revoked {
		return shared.NewDomainError(CodeTokenRevoked, "Token has been revoked")
	}
	return nil
}

// recordLoginFailure counts a failed login. When a parallel login updated the
// user first, the user is reloaded and the failure counted on the fresh copy.
func (s *AuthService) recordLoginFailure(ctx context.Context, user *identity.User) (*identity.User, bool, error) {
	for attempt := 0; ; attempt++ {
		locked := user.RecordLoginFailure(s.config.MaxLoginAttempts, s.config.LockDuration)
		err := s.userRepo.Update(ctx, user)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) || attempt == maxLoginFailureRetries {
			return user, locked, err
		}

		fresh, err := s.userRepo.FindByID(ctx, user.ID)
		if err != nil {
			return user, locked, err
		}
		if fresh.IsLocked() {
			return fresh, true, nil
		}
		user = fresh
	}
}

func loginAllowed(user *identity.User) error {
	if user.IsDeactivated() {
		return shared.NewDomainError(CodeAccountDisabled, "Account has been deactivated")
	}
	if user.IsLocked() {
		return shared.NewDomainError(CodeAccountLocked, "Account is locked. Please try again later")
	}
	return nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return shared.NewDomainError(CodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrMaxRefreshExceeded):
		return shared.NewDomainError(CodeTokenMaxRefresh, "Maximum token refresh count exceeded. Please log in again")
	case errors.Is(err, auth.ErrTokenBlacklisted):
		return shared.NewDomainError(CodeTokenRevoked, "Token has been revoked")
	default:
		return shared.NewDomainError(CodeTokenInvalid, "Invalid token")
	}
}

func ensureUnique(ctx context.Context, repo identity.UserRepository, username, email string) error {
	exists, err := repo.ExistsByUsername(ctx, identity.NormalizeUsername(username))
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Username is already taken")
	}
	exists, err = repo.ExistsByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Email is already registered")
	}
	return nil
}

func publishUserEvents(ctx context.Context, publisher shared.EventPublisher, user *identity.User) {
	if err := shared.PublishAndClear(ctx, publisher, user); err != nil {
		logger.L(ctx).Error("failed to publish user events",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
}
