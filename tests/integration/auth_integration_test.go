package integration

import (
	"net/http"
	"testing"
	"time"

	identityapp "github.com/enterprisecrm/backend/internal/application/identity"
	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_LoginFlow(t *testing.T) {
	app := newTestApp(t)

	t.Run("bootstrap admin can log in", func(t *testing.T) {
		tokens := app.login(t, testAdminUsername, testAdminPassword)

		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, "Bearer", tokens.TokenType)
		require.NotNil(t, tokens.User)
		assert.Equal(t, string(identity.RoleAdmin), tokens.User.Role)
		assert.NotNil(t, tokens.User.LastLoginAt)
	})

	t.Run("unknown user gets invalid credentials", func(t *testing.T) {
		w := app.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: "nobody", Password: "whatever1"})
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeInvalidCredentials)
	})

	t.Run("registered user starts as sales rep", func(t *testing.T) {
		user := app.register(t, "rep.one", "RepPassword1")
		assert.Equal(t, string(identity.RoleSalesRep), user.Role)

		w := app.Client.Post("/api/auth/register", identityapp.RegisterRequest{
			Username: "REP.ONE",
			Email:    "other@example.com",
			Password: "RepPassword1",
		})
		testutil.AssertError(t, w, http.StatusConflict, "ALREADY_EXISTS")
	})

	t.Run("me returns the token owner", func(t *testing.T) {
		tokens := app.login(t, "rep.one", "RepPassword1")

		w := app.Client.WithToken(tokens.AccessToken).Get("/api/auth/me")
		me := testutil.DecodeData[identityapp.UserResponse](t, w, http.StatusOK)
		assert.Equal(t, "rep.one", me.Username)
	})
}

func TestAuth_AccountLockout(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "locked.rep", "RightPassword1")

	for i := 1; i < identity.MaxFailedAttempts; i++ {
		w := app.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: "locked.rep", Password: "WrongPassword1"})
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeInvalidCredentials)
	}

	w := app.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: "locked.rep", Password: "WrongPassword1"})
	testutil.AssertError(t, w, http.StatusForbidden, identityapp.CodeAccountLocked)

	// the correct password no longer helps
	w = app.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: "locked.rep", Password: "RightPassword1"})
	testutil.AssertError(t, w, http.StatusForbidden, identityapp.CodeAccountLocked)

	admin := app.adminClient(t)
	users := testutil.DecodeData[[]identityapp.UserResponse](t, admin.Get("/api/users?search=locked.rep"), http.StatusOK)
	require.Len(t, users, 1)
	assert.Equal(t, string(identity.UserStatusLocked), users[0].Status)

	w = admin.Post("/api/users/"+users[0].ID.String()+"/unlock", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tokens := app.login(t, "locked.rep", "RightPassword1")
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestAuth_LogoutAndRefresh(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "session.rep", "SessionPass1")

	t.Run("refresh rotates the pair", func(t *testing.T) {
		tokens := app.login(t, "session.rep", "SessionPass1")

		w := app.Client.Post("/api/auth/refresh", identityapp.RefreshRequest{RefreshToken: tokens.RefreshToken})
		refreshed := testutil.DecodeData[identityapp.TokenResponse](t, w, http.StatusOK)
		assert.NotEqual(t, tokens.AccessToken, refreshed.AccessToken)

		// the presented refresh token is single use
		w = app.Client.Post("/api/auth/refresh", identityapp.RefreshRequest{RefreshToken: tokens.RefreshToken})
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeTokenRevoked)

		w = app.Client.WithToken(refreshed.AccessToken).Get("/api/test/secure")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("logout revokes access and refresh tokens", func(t *testing.T) {
		tokens := app.login(t, "session.rep", "SessionPass1")
		client := app.Client.WithToken(tokens.AccessToken)

		w := client.Post("/api/auth/logout", identityapp.LogoutRequest{RefreshToken: tokens.RefreshToken})
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = client.Get("/api/auth/me")
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeTokenRevoked)

		w = app.Client.Post("/api/auth/refresh", identityapp.RefreshRequest{RefreshToken: tokens.RefreshToken})
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeTokenRevoked)
	})

	t.Run("password change ends existing sessions", func(t *testing.T) {
		tokens := app.login(t, "session.rep", "SessionPass1")
		client := app.Client.WithToken(tokens.AccessToken)
		waitForNextSecond()

		w := client.Put("/api/auth/password", identityapp.ChangePasswordRequest{
			OldPassword: "SessionPass1",
			NewPassword: "SessionPass2",
		})
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = client.Get("/api/auth/me")
		testutil.AssertError(t, w, http.StatusUnauthorized, identityapp.CodeTokenRevoked)

		waitForNextSecond()
		fresh := app.login(t, "session.rep", "SessionPass2")
		assert.NotEmpty(t, fresh.AccessToken)
	})
}

func TestAuth_RoleEnforcement(t *testing.T) {
	app := newTestApp(t)
	rep := app.register(t, "plain.rep", "PlainPass1")
	repClient := app.Client.WithToken(app.login(t, "plain.rep", "PlainPass1").AccessToken)
	waitForNextSecond()

	w := repClient.Get("/api/users")
	testutil.AssertError(t, w, http.StatusForbidden, "FORBIDDEN")

	admin := app.adminClient(t)
	w = admin.Put("/api/users/"+rep.ID.String()+"/role", identityapp.ChangeRoleRequest{Role: string(identity.RoleManager)})
	promoted := testutil.DecodeData[identityapp.UserResponse](t, w, http.StatusOK)
	assert.Equal(t, string(identity.RoleManager), promoted.Role)

	// the role change revokes tokens issued before it
	w = repClient.Get("/api/test/secure")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = admin.Post("/api/users/"+rep.ID.String()+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: "plain.rep", Password: "PlainPass1"})
	testutil.AssertError(t, w, http.StatusForbidden, identityapp.CodeAccountDisabled)
}

// waitForNextSecond moves past the current Unix second. User-wide
// revocation cut-offs only reject tokens issued strictly before them.
func waitForNextSecond() {
	now := time.Now()
	time.Sleep(now.Truncate(time.Second).Add(time.Second + 10*time.Millisecond).Sub(now))
}
