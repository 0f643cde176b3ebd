package identity

import (
	"context"
	"testing"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "s3cretpass"

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.User, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]identity.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// userEvents records published event types
type userEvents struct {
	types []string
}

func (e *userEvents) Publish(_ context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		e.types = append(e.types, ev.EventType())
	}
	return nil
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		Issuer:                 "crm-test",
		Audience:               "crm-test-api",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		MaxRefreshCount:        3,
	})
}

// newTestUser builds a user with a cheap bcrypt hash so tests stay fast
func newTestUser(t *testing.T, username string, role identity.Role) *identity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return &identity.User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      string(hash),
		Role:              role,
		Status:            identity.UserStatusActive,
	}
}

type authFixture struct {
	svc       *AuthService
	repo      *MockUserRepository
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
	events    *userEvents
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		repo:      new(MockUserRepository),
		jwt:       newTestJWTService(),
		blacklist: auth.NewInMemoryTokenBlacklist(),
		events:    &userEvents{},
	}
	f.svc = NewAuthService(f.repo, f.jwt, f.blacklist, f.events, DefaultAuthServiceConfig())
	return f
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates active sales rep", func(t *testing.T) {
		f := newAuthFixture()
		f.repo.On("ExistsByUsername", ctx, "jdoe").Return(false, nil)
		f.repo.On("ExistsByEmail", ctx, "jdoe@example.com").Return(false, nil)
		f.repo.On("Create", ctx, mock.AnythingOfType("*identity.User")).Return(nil)

		resp, err := f.svc.Register(ctx, RegisterRequest{
			Username:  "JDoe",
			Email:     "JDoe@Example.com",
			Password:  "Password123",
			FirstName: "Jane",
			LastName:  "Doe",
		})

		require.NoError(t, err)
		assert.Equal(t, "jdoe", resp.Username)
		assert.Equal(t, "jdoe@example.com", resp.Email)
		assert.Equal(t, "Jane Doe", resp.FullName)
		assert.Equal(t, string(identity.RoleSalesRep), resp.Role)
		assert.Equal(t, string(identity.UserStatusActive), resp.Status)
		assert.Contains(t, f.events.types, identity.EventTypeUserCreated)
		f.repo.AssertExpectations(t)
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := newAuthFixture()
		f.repo.On("ExistsByUsername", ctx, "taken").Return(true, nil)

		_, err := f.svc.Register(ctx, RegisterRequest{Username: "taken", Email: "x@example.com", Password: "Password123"})

		assertCode(t, err, shared.CodeAlreadyExists)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture()
		f.repo.On("ExistsByUsername", ctx, "fresh").Return(false, nil)
		f.repo.On("ExistsByEmail", ctx, "used@example.com").Return(true, nil)

		_, err := f.svc.Register(ctx, RegisterRequest{Username: "fresh", Email: "used@example.com", Password: "Password123"})

		assertCode(t, err, shared.CodeAlreadyExists)
	})

	t.Run("weak password", func(t *testing.T) {
		f := newAuthFixture()
		f.repo.On("ExistsByUsername", ctx, "fresh").Return(false, nil)
		f.repo.On("ExistsByEmail", ctx, "fresh@example.com").Return(false, nil)

		_, err := f.svc.Register(ctx, RegisterRequest{Username: "fresh", Email: "fresh@example.com", Password: "onlyletters"})

		assertCode(t, err, "INVALID_PASSWORD")
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleManager)
		user.FailedAttempts = 2
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)
		f.repo.On("Update", mock.Anything, user).Return(nil)

		resp, err := f.svc.Login(ctx, LoginRequest{Username: " JDOE ", Password: testPassword}, "10.0.0.1")

		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		require.NotNil(t, resp.User)
		assert.Equal(t, "manager", resp.User.Role)
		assert.Equal(t, 0, user.FailedAttempts)
		assert.Equal(t, "10.0.0.1", user.LastLoginIP)

		claims, err := f.jwt.ValidateAccessToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID)
		assert.Equal(t, "manager", claims.Role)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newAuthFixture()
		f.repo.On("FindByUsername", mock.Anything, "ghost").Return(nil, shared.NotFound("User"))

		_, err := f.svc.Login(ctx, LoginRequest{Username: "ghost", Password: testPassword}, "")

		assertCode(t, err, CodeInvalidCredentials)
	})

	t.Run("wrong password counts failure", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)
		f.repo.On("Update", mock.Anything, user).Return(nil)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "jdoe", Password: "wrong-pass1"}, "")

		assertCode(t, err, CodeInvalidCredentials)
		assert.Equal(t, 1, user.FailedAttempts)
		f.repo.AssertCalled(t, "Update", mock.Anything, user)
	})

	t.Run("fifth failure locks the account", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)
		f.repo.On("Update", mock.Anything, user).Return(nil)

		var err error
		for i := 0; i < identity.MaxFailedAttempts; i++ {
			_, err = f.svc.Login(ctx, LoginRequest{Username: "jdoe", Password: "wrong-pass1"}, "")
		}

		assertCode(t, err, CodeAccountLocked)
		assert.Equal(t, identity.UserStatusLocked, user.Status)
		require.NotNil(t, user.LockedUntil)
		assert.WithinDuration(t, time.Now().Add(identity.DefaultLockDuration), *user.LockedUntil, time.Minute)
		assert.Contains(t, f.events.types, identity.EventTypeUserStatusChanged)

		_, err = f.svc.Login(ctx, LoginRequest{Username: "jdoe", Password: testPassword}, "")
		assertCode(t, err, CodeAccountLocked)
	})

	t.Run("expired lock allows login", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		past := time.Now().Add(-time.Minute)
		user.Status = identity.UserStatusLocked
		user.LockedUntil = &past
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)
		f.repo.On("Update", mock.Anything, user).Return(nil)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "jdoe", Password: testPassword}, "")

		require.NoError(t, err)
		assert.Equal(t, identity.UserStatusActive, user.Status)
	})

	t.Run("deactivated account", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		user.Status = identity.UserStatusDeactivated
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "jdoe", Password: testPassword}, "")

		assertCode(t, err, CodeAccountDisabled)
		f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Login_ConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	wrong := LoginRequest{Username: "jdoe", Password: "wrong-pass1"}

	t.Run("conflict reloads and counts on the fresh user", func(t *testing.T) {
		f := newAuthFixture()
		stale := newTestUser(t, "jdoe", identity.RoleSalesRep)
		fresh := *stale
		fresh.FailedAttempts = 3
		fresh.Version = stale.Version + 1
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(stale, nil)
		f.repo.On("Update", mock.Anything, stale).Return(shared.ErrConcurrencyConflict).Once()
		f.repo.On("FindByID", mock.Anything, stale.ID).Return(&fresh, nil).Once()
		f.repo.On("Update", mock.Anything, &fresh).Return(nil).Once()

		_, err := f.svc.Login(ctx, wrong, "")

		assertCode(t, err, CodeInvalidCredentials)
		assert.Equal(t, 4, fresh.FailedAttempts)
		f.repo.AssertNumberOfCalls(t, "Update", 2)
	})

	t.Run("conflicting failure that reaches the threshold locks", func(t *testing.T) {
		f := newAuthFixture()
		stale := newTestUser(t, "jdoe", identity.RoleSalesRep)
		fresh := *stale
		fresh.FailedAttempts = identity.MaxFailedAttempts - 1
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(stale, nil)
		f.repo.On("Update", mock.Anything, stale).Return(shared.ErrConcurrencyConflict).Once()
		f.repo.On("FindByID", mock.Anything, stale.ID).Return(&fresh, nil).Once()
		f.repo.On("Update", mock.Anything, &fresh).Return(nil).Once()

		_, err := f.svc.Login(ctx, wrong, "")

		assertCode(t, err, CodeAccountLocked)
		assert.True(t, fresh.IsLocked())
	})

	t.Run("user locked by a parallel login", func(t *testing.T) {
		f := newAuthFixture()
		stale := newTestUser(t, "jdoe", identity.RoleSalesRep)
		fresh := *stale
		require.NoError(t, fresh.Lock(identity.DefaultLockDuration))
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(stale, nil)
		f.repo.On("Update", mock.Anything, stale).Return(shared.ErrConcurrencyConflict).Once()
		f.repo.On("FindByID", mock.Anything, stale.ID).Return(&fresh, nil).Once()

		_, err := f.svc.Login(ctx, wrong, "")

		assertCode(t, err, CodeAccountLocked)
		f.repo.AssertNumberOfCalls(t, "Update", 1)
	})

	t.Run("gives up after repeated conflicts", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByUsername", mock.Anything, "jdoe").Return(user, nil)
		f.repo.On("Update", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict)
		f.repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		_, err := f.svc.Login(ctx, wrong, "")

		assertCode(t, err, CodeInvalidCredentials)
		f.repo.AssertNumberOfCalls(t, "Update", maxLoginFailureRetries+1)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the refresh token", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByID", ctx, user.ID).Return(user, nil)
		pair, err := f.jwt.GenerateTokenPair(tokenInputFor(user))
		require.NoError(t, err)

		resp, err := f.svc.Refresh(ctx, pair.RefreshToken)

		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, resp.RefreshToken)
		refreshClaims, err := f.jwt.ValidateRefreshToken(resp.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, 1, refreshClaims.RefreshCount)

		_, err = f.svc.Refresh(ctx, pair.RefreshToken)
		assertCode(t, err, CodeTokenRevoked)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		f := newAuthFixture()
		pair, err := f.jwt.GenerateTokenPair(tokenInputFor(newTestUser(t, "jdoe", identity.RoleSalesRep)))
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, pair.AccessToken)

		assertCode(t, err, CodeTokenInvalid)
	})

	t.Run("refresh cap", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByID", ctx, user.ID).Return(user, nil)
		pair, err := f.jwt.GenerateTokenPair(tokenInputFor(user))
		require.NoError(t, err)

		token := pair.RefreshToken
		for i := 0; i < 3; i++ {
			resp, err := f.svc.Refresh(ctx, token)
			require.NoError(t, err)
			token = resp.RefreshToken
		}
		_, err = f.svc.Refresh(ctx, token)

		assertCode(t, err, CodeTokenMaxRefresh)
	})

	t.Run("deactivated user", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		user.Status = identity.UserStatusDeactivated
		f.repo.On("FindByID", ctx, user.ID).Return(user, nil)
		pair, err := f.jwt.GenerateTokenPair(tokenInputFor(user))
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, pair.RefreshToken)

		assertCode(t, err, CodeAccountDisabled)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	user := newTestUser(t, "jdoe", identity.RoleSalesRep)
	pair, err := f.jwt.GenerateTokenPair(tokenInputFor(user))
	require.NoError(t, err)
	accessClaims, err := f.svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, accessClaims, pair.RefreshToken))

	_, err = f.svc.ValidateAccessToken(ctx, pair.AccessToken)
	assertCode(t, err, CodeTokenRevoked)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, CodeTokenRevoked)
}

func TestAuthService_Logout_RejectsForeignRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	mine, err := f.jwt.GenerateTokenPair(tokenInputFor(newTestUser(t, "jdoe", identity.RoleSalesRep)))
	require.NoError(t, err)
	theirs, err := f.jwt.GenerateTokenPair(tokenInputFor(newTestUser(t, "other", identity.RoleSalesRep)))
	require.NoError(t, err)
	claims, err := f.jwt.ValidateAccessToken(mine.AccessToken)
	require.NoError(t, err)

	err = f.svc.Logout(ctx, claims, theirs.RefreshToken)

	assertCode(t, err, shared.CodeForbidden)
}

// cutoffBlacklist reports every token of every user as predating a cut-off
type cutoffBlacklist struct {
	*auth.InMemoryTokenBlacklist
}

func (cutoffBlacklist) IsUserRevoked(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

func TestAuthService_ValidateAccessToken(t *testing.T) {
	ctx := context.Background()
	jwtService := newTestJWTService()
	user := newTestUser(t, "jdoe", identity.RoleSalesRep)
	pair, err := jwtService.GenerateTokenPair(tokenInputFor(user))
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		svc := NewAuthService(new(MockUserRepository), jwtService, auth.NewInMemoryTokenBlacklist(), nil, DefaultAuthServiceConfig())

		claims, err := svc.ValidateAccessToken(ctx, pair.AccessToken)

		require.NoError(t, err)
		assert.Equal(t, "jdoe", claims.Username)
	})

	t.Run("user cut-off", func(t *testing.T) {
		blacklist := cutoffBlacklist{auth.NewInMemoryTokenBlacklist()}
		svc := NewAuthService(new(MockUserRepository), jwtService, blacklist, nil, DefaultAuthServiceConfig())

		_, err := svc.ValidateAccessToken(ctx, pair.AccessToken)

		assertCode(t, err, CodeTokenRevoked)
	})

	t.Run("garbage", func(t *testing.T) {
		svc := NewAuthService(new(MockUserRepository), jwtService, auth.NewInMemoryTokenBlacklist(), nil, DefaultAuthServiceConfig())

		_, err := svc.ValidateAccessToken(ctx, "not-a-token")

		assertCode(t, err, CodeTokenInvalid)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		svc := NewAuthService(new(MockUserRepository), jwtService, auth.NewInMemoryTokenBlacklist(), nil, DefaultAuthServiceConfig())

		_, err := svc.ValidateAccessToken(ctx, pair.RefreshToken)

		assertCode(t, err, CodeTokenInvalid)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByID", ctx, user.ID).Return(user, nil)
		f.repo.On("Update", ctx, user).Return(nil)

		err := f.svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{OldPassword: testPassword, NewPassword: "NewPassw0rd"})

		require.NoError(t, err)
		assert.True(t, user.VerifyPassword("NewPassw0rd"))
		assert.Equal(t, []string{identity.EventTypeUserPasswordChanged}, f.events.types)

		later, err := f.blacklist.IsUserRevoked(ctx, user.ID.String(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, later)
	})

	t.Run("wrong current password", func(t *testing.T) {
		f := newAuthFixture()
		user := newTestUser(t, "jdoe", identity.RoleSalesRep)
		f.repo.On("FindByID", ctx, user.ID).Return(user, nil)

		err := f.svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{OldPassword: "nope12345", NewPassword: "NewPassw0rd"})

		assertCode(t, err, "INVALID_PASSWORD")
		f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Me(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	user := newTestUser(t, "jdoe", identity.RoleAdmin)
	f.repo.On("FindByID", ctx, user.ID).Return(user, nil)

	resp, err := f.svc.Me(ctx, user.ID)

	require.NoError(t, err)
	assert.Equal(t, "jdoe", resp.Username)
	assert.Equal(t, "jdoe", resp.FullName)
	assert.Equal(t, "admin", resp.Role)
}
