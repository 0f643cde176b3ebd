package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	catalogapp "github.com/enterprisecrm/backend/internal/application/catalog"
	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	identityapp "github.com/enterprisecrm/backend/internal/application/identity"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/infrastructure/cache"
	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence"
	"github.com/enterprisecrm/backend/internal/infrastructure/scoring"
	"github.com/enterprisecrm/backend/internal/interfaces/http/handler"
	"github.com/enterprisecrm/backend/internal/interfaces/http/middleware"
	"github.com/enterprisecrm/backend/internal/interfaces/http/router"
	"github.com/enterprisecrm/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testAdminUsername = "admin"
	testAdminPassword = "Admin123!secure"
)

// testApp is the full HTTP stack over a migrated database
type testApp struct {
	DB        *TestDB
	Engine    *gin.Engine
	Client    *testutil.APIClient
	Auth      *identityapp.AuthService
	Events    *testutil.RecordingPublisher
	Blacklist *auth.InMemoryTokenBlacklist
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "integration-test-secret-at-least-32-bytes",
		Issuer:                 "crm-test",
		Audience:               "crm-test-api",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		MaxRefreshCount:        5,
	}
}

// newTestApp wires repositories, services and routes the way cmd/server
// does and seeds the bootstrap admin. global runs before every route.
func newTestApp(t *testing.T, global ...gin.HandlerFunc) *testApp {
	t.Helper()

	tdb := NewTestDB(t)
	db := tdb.DB

	customerRepo := persistence.NewGormCustomerRepository(db)
	productRepo := persistence.NewGormProductRepository(db)
	leadRepo := persistence.NewGormLeadRepository(db)
	opportunityRepo := persistence.NewGormOpportunityRepository(db)
	taskRepo := persistence.NewGormTaskRepository(db)
	userRepo := persistence.NewGormUserRepository(db)
	uow := persistence.NewUnitOfWork(db)

	scorer, err := scoring.NewEngine(scoring.DefaultRules())
	require.NoError(t, err)

	events := testutil.NewRecordingPublisher()
	blacklist := auth.NewInMemoryTokenBlacklist()
	jwtService := auth.NewJWTService(testJWTConfig())
	idempotency := cache.NewInMemoryResponseStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, events, identityapp.DefaultAuthServiceConfig())
	userService := identityapp.NewUserService(userRepo, jwtService, blacklist, events)

	_, err = identityapp.EnsureAdmin(context.Background(), userRepo, identityapp.BootstrapAdmin{
		Username: testAdminUsername,
		Password: testAdminPassword,
	})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID())
	engine.Use(global...)

	r := router.NewRouter(engine)
	router.RegisterAPI(r, router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService),
		Customers:     handler.NewCustomerHandler(crmapp.NewCustomerService(customerRepo, opportunityRepo, events)),
		Products:      handler.NewProductHandler(catalogapp.NewProductService(productRepo, events)),
		Leads:         handler.NewLeadHandler(crmapp.NewLeadService(leadRepo, customerRepo, opportunityRepo, uow, scorer, events)),
		Opportunities: handler.NewOpportunityHandler(crmapp.NewOpportunityService(opportunityRepo, customerRepo, events)),
		Tasks:         handler.NewTaskHandler(crmapp.NewTaskService(taskRepo, customerRepo, leadRepo, opportunityRepo, events)),
		Test:          handler.NewTestHandler(),
	}, router.Guards{
		Authenticate: middleware.JWTAuth(authService),
		Idempotency:  middleware.Idempotency(middleware.IdempotencyConfig{Store: idempotency, TTL: time.Hour}),
	})
	r.Setup()

	return &testApp{
		DB:        tdb,
		Engine:    engine,
		Client:    testutil.NewAPIClient(t, engine),
		Auth:      authService,
		Events:    events,
		Blacklist: blacklist,
	}
}

// login returns a token pair for the given credentials
func (a *testApp) login(t *testing.T, username, password string) identityapp.TokenResponse {
	t.Helper()

	w := a.Client.Post("/api/auth/login", identityapp.LoginRequest{Username: username, Password: password})
	return testutil.DecodeData[identityapp.TokenResponse](t, w, http.StatusOK)
}

// adminClient logs in as the bootstrap admin
func (a *testApp) adminClient(t *testing.T) *testutil.APIClient {
	t.Helper()
	return a.Client.WithToken(a.login(t, testAdminUsername, testAdminPassword).AccessToken)
}

// register creates a sales rep through the public endpoint
func (a *testApp) register(t *testing.T, username, password string) identityapp.UserResponse {
	t.Helper()

	w := a.Client.Post("/api/auth/register", identityapp.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	return testutil.DecodeData[identityapp.UserResponse](t, w, http.StatusCreated)
}
