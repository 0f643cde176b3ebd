package identity

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newTestUser(t *testing.T) *User {
	t.Helper()
	user, err := NewUser("testuser", "test@example.com", "Password123", RoleSalesRep)
	require.NoError(t, err)
	user.ClearDomainEvents()
	return user
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestNewUser(t *testing.T) {
	t.Run("creates user with valid username and password", func(t *testing.T) {
		user, err := NewUser("testuser", "Test@Example.com", "Password123", RoleManager)

		require.NoError(t, err)
		assert.Equal(t, "testuser", user.Username)
		assert.Equal(t, "test@example.com", user.Email)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "Password123", user.PasswordHash)
		assert.Equal(t, UserStatusActive, user.Status)
		assert.Equal(t, RoleManager, user.Role)
		assert.NotNil(t, user.PasswordChangedAt)

		events := user.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*UserCreatedEvent)
		assert.True(t, ok)
	})

	t.Run("normalizes username to lowercase", func(t *testing.T) {
		user, err := NewUser("  TestUser  ", "a@b.co", "Password123", RoleSalesRep)

		require.NoError(t, err)
		assert.Equal(t, "testuser", user.Username)
	})

	t.Run("fails with empty username", func(t *testing.T) {
		_, err := NewUser("", "a@b.co", "Password123", RoleSalesRep)
		assertDomainCode(t, err, "INVALID_USERNAME")
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("fails with short username", func(t *testing.T) {
		_, err := NewUser("ab", "a@b.co", "Password123", RoleSalesRep)
		assert.Contains(t, err.Error(), "at least 3 characters")
	})

	t.Run("fails with invalid username characters", func(t *testing.T) {
		_, err := NewUser("bad user", "a@b.co", "Password123", RoleSalesRep)
		assertDomainCode(t, err, "INVALID_USERNAME")
	})

	t.Run("fails with invalid email", func(t *testing.T) {
		_, err := NewUser("testuser", "nope", "Password123", RoleSalesRep)
		assertDomainCode(t, err, "INVALID_EMAIL")
	})

	t.Run("fails with unknown role", func(t *testing.T) {
		_, err := NewUser("testuser", "a@b.co", "Password123", Role("root"))
		assertDomainCode(t, err, "INVALID_ROLE")
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Password123", ""},
		{"empty", "", "cannot be empty"},
		{"short", "Pass1", "at least 8 characters"},
		{"no digit", "Passwordxx", "at least one letter and one number"},
		{"no letter", "12345678", "at least one letter and one number"},
		{"too long", "a1" + strings.Repeat("x", 71), "cannot exceed 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUser_ChangePassword(t *testing.T) {
	user := newTestUser(t)

	assertDomainCode(t, user.ChangePassword("wrong", "NewPassword1"), "INVALID_PASSWORD")
	assertDomainCode(t, user.ChangePassword("Password123", "Password123"), "INVALID_PASSWORD")

	require.NoError(t, user.ChangePassword("Password123", "NewPassword1"))
	assert.True(t, user.VerifyPassword("NewPassword1"))
	assert.False(t, user.VerifyPassword("Password123"))
	_, ok := user.GetDomainEvents()[0].(*UserPasswordChangedEvent)
	assert.True(t, ok)
}

func TestUser_ChangeRole(t *testing.T) {
	user := newTestUser(t)
	admin := uuid.New()

	require.NoError(t, user.ChangeRole(RoleAdmin, admin))
	assert.Equal(t, RoleAdmin, user.Role)
	assert.Equal(t, admin, *user.UpdatedBy)

	assertDomainCode(t, user.ChangeRole(RoleAdmin, admin), shared.CodeInvalidState)
	assertDomainCode(t, user.ChangeRole("owner", admin), "INVALID_ROLE")
}

func TestUser_LoginFailuresLockAccount(t *testing.T) {
	user := newTestUser(t)

	for i := 1; i < MaxFailedAttempts; i++ {
		assert.False(t, user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration))
		assert.Equal(t, i, user.FailedAttempts)
	}
	assert.True(t, user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration))
	assert.Equal(t, UserStatusLocked, user.Status)
	assert.True(t, user.IsLocked())
	assert.False(t, user.CanLogin())
	require.NotNil(t, user.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(DefaultLockDuration), *user.LockedUntil, 5*time.Second)
}

func TestUser_ExpiredLock(t *testing.T) {
	user := newTestUser(t)
	require.NoError(t, user.Lock(time.Minute))

	past := time.Now().Add(-time.Second)
	user.LockedUntil = &past
	assert.False(t, user.IsLocked())
	assert.True(t, user.CanLogin())

	user.RecordLoginSuccess("10.0.0.1")
	assert.Equal(t, UserStatusActive, user.Status)
	assert.Nil(t, user.LockedUntil)
	assert.Zero(t, user.FailedAttempts)
	assert.Equal(t, "10.0.0.1", user.LastLoginIP)
	assert.NotNil(t, user.LastLoginAt)
}

func TestUser_ExpiredLockRestartsFailureCount(t *testing.T) {
	user := newTestUser(t)
	for i := 0; i < MaxFailedAttempts; i++ {
		user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration)
	}
	require.True(t, user.IsLocked())

	past := time.Now().Add(-time.Second)
	user.LockedUntil = &past

	assert.False(t, user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration))
	assert.Equal(t, 1, user.FailedAttempts)
	assert.Equal(t, UserStatusActive, user.Status)
	assert.Nil(t, user.LockedUntil)
	assert.False(t, user.IsLocked())

	for i := 2; i < MaxFailedAttempts; i++ {
		assert.False(t, user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration))
	}
	assert.True(t, user.RecordLoginFailure(MaxFailedAttempts, DefaultLockDuration))
	assert.True(t, user.IsLocked())
}

func TestUser_StatusTransitions(t *testing.T) {
	user := newTestUser(t)
	admin := uuid.New()

	assertDomainCode(t, user.Unlock(admin), shared.CodeInvalidState)
	assertDomainCode(t, user.Activate(admin), shared.CodeInvalidState)

	require.NoError(t, user.Lock(0))
	assert.True(t, user.IsLocked())
	assert.Nil(t, user.LockedUntil)
	require.NoError(t, user.Unlock(admin))
	assert.True(t, user.IsActive())

	require.NoError(t, user.Deactivate(admin))
	assert.False(t, user.CanLogin())
	assertDomainCode(t, user.Deactivate(admin), shared.CodeInvalidState)
	assertDomainCode(t, user.Lock(time.Minute), shared.CodeInvalidState)

	require.NoError(t, user.Activate(admin))
	assert.True(t, user.CanLogin())
}

func TestUser_FullName(t *testing.T) {
	user := newTestUser(t)
	assert.Equal(t, "testuser", user.FullName())

	require.NoError(t, user.SetName(" Ada ", "Lovelace", uuid.Nil))
	assert.Equal(t, "Ada Lovelace", user.FullName())
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("guest").IsValid())
	assert.True(t, RoleAdmin.Includes(RoleManager))
	assert.True(t, RoleManager.Includes(RoleSalesRep))
	assert.False(t, RoleSalesRep.Includes(RoleManager))
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleManager.IsAdmin())
}
