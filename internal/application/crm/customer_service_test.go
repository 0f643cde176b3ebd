package crm

import (
	"context"
	"errors"
	"testing"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockCustomerRepository is a mock implementation of crm.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByCode(ctx context.Context, code string) (*crm.Customer, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindAll(ctx context.Context, filter shared.Filter) ([]crm.Customer, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *crm.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) Update(ctx context.Context, customer *crm.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

// MockOpportunityRepository is a mock implementation of crm.OpportunityRepository
type MockOpportunityRepository struct {
	mock.Mock
}

func (m *MockOpportunityRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Opportunity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) FindAll(ctx context.Context, filter shared.Filter) ([]crm.Opportunity, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]crm.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOpportunityRepository) Create(ctx context.Context, opp *crm.Opportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *MockOpportunityRepository) Update(ctx context.Context, opp *crm.Opportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *MockOpportunityRepository) CountOpenByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOpportunityRepository) PipelineSummary(ctx context.Context, ownerID *uuid.UUID, currency string) ([]crm.StageSummary, error) {
	args := m.Called(ctx, ownerID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]crm.StageSummary), args.Error(1)
}

// recordingPublisher keeps the types of published events
type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		p.types = append(p.types, e.EventType())
	}
	return nil
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestCustomer(t *testing.T, code string) *crm.Customer {
	t.Helper()
	customer, err := crm.NewCustomer(code, "Ada", "Lovelace", uuid.New())
	require.NoError(t, err)
	customer.ClearDomainEvents()
	return customer
}

func newCustomerServiceUnderTest() (*CustomerService, *MockCustomerRepository, *MockOpportunityRepository, *recordingPublisher) {
	customerRepo := new(MockCustomerRepository)
	opportunityRepo := new(MockOpportunityRepository)
	publisher := &recordingPublisher{}
	return NewCustomerService(customerRepo, opportunityRepo, publisher), customerRepo, opportunityRepo, publisher
}

// =============================================================================
// Create Tests
// =============================================================================

func TestCustomerService_Create(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()
	ownerID := uuid.New()

	t.Run("creates prospect with normalized fields", func(t *testing.T) {
		svc, customerRepo, _, publisher := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "c-001").Return(false, nil)
		customerRepo.On("ExistsByEmail", ctx, "Ada@Example.com", uuid.Nil).Return(false, nil)
		customerRepo.On("Create", ctx, mock.AnythingOfType("*crm.Customer")).Return(nil)

		resp, err := svc.Create(ctx, actorID, CreateCustomerRequest{
			Code:        "c-001",
			FirstName:   "ada",
			LastName:    "lovelace",
			Email:       "Ada@Example.com",
			Phone:       "+44 20 1234",
			CompanyName: "Analytical Engines",
			Address:     &AddressDTO{City: "London", Country: "UK"},
			Notes:       "met at conference",
			OwnerID:     &ownerID,
		})

		require.NoError(t, err)
		assert.Equal(t, "C-001", resp.Code)
		assert.Equal(t, "Ada", resp.FirstName)
		assert.Equal(t, "Ada Lovelace", resp.FullName)
		assert.Equal(t, "ada@example.com", resp.Email)
		assert.Equal(t, "Analytical Engines", resp.CompanyName)
		assert.Equal(t, "London", resp.Address.City)
		assert.Equal(t, string(crm.CustomerStatusProspect), resp.Status)
		assert.Equal(t, &ownerID, resp.OwnerID)
		assert.Equal(t, &actorID, resp.CreatedBy)
		assert.Equal(t, 1, resp.Version)
		assert.Contains(t, publisher.types, crm.EventTypeCustomerCreated)
		customerRepo.AssertExpectations(t)
	})

	t.Run("skips email check without email", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "C-002").Return(false, nil)
		customerRepo.On("Create", ctx, mock.Anything).Return(nil)

		_, err := svc.Create(ctx, actorID, CreateCustomerRequest{Code: "C-002", FirstName: "Grace", LastName: "Hopper"})

		require.NoError(t, err)
		customerRepo.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate code", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "C-001").Return(true, nil)

		resp, err := svc.Create(ctx, actorID, CreateCustomerRequest{Code: "C-001", FirstName: "Ada", LastName: "Lovelace"})

		assert.Nil(t, resp)
		assertDomainCode(t, err, shared.CodeAlreadyExists)
		customerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "C-003").Return(false, nil)
		customerRepo.On("ExistsByEmail", ctx, "taken@example.com", uuid.Nil).Return(true, nil)

		_, err := svc.Create(ctx, actorID, CreateCustomerRequest{
			Code: "C-003", FirstName: "Ada", LastName: "Lovelace", Email: "taken@example.com",
		})

		assertDomainCode(t, err, shared.CodeAlreadyExists)
		customerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid code is rejected by the domain", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "bad code!").Return(false, nil)

		_, err := svc.Create(ctx, actorID, CreateCustomerRequest{Code: "bad code!", FirstName: "Ada", LastName: "Lovelace"})

		assertDomainCode(t, err, "INVALID_CODE")
	})

	t.Run("repository error is returned", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customerRepo.On("ExistsByCode", ctx, "C-004").Return(false, errors.New("connection refused"))

		_, err := svc.Create(ctx, actorID, CreateCustomerRequest{Code: "C-004", FirstName: "Ada", LastName: "Lovelace"})

		assert.EqualError(t, err, "connection refused")
	})
}

// =============================================================================
// Read Tests
// =============================================================================

func TestCustomerService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-010")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)

		resp, err := svc.GetByID(ctx, customer.ID)

		require.NoError(t, err)
		assert.Equal(t, customer.ID, resp.ID)
		assert.Equal(t, "C-010", resp.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		id := uuid.New()
		customerRepo.On("FindByID", ctx, id).Return(nil, shared.NotFound("Customer"))

		resp, err := svc.GetByID(ctx, id)

		assert.Nil(t, resp)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestCustomerService_GetByCode(t *testing.T) {
	ctx := context.Background()
	svc, customerRepo, _, _ := newCustomerServiceUnderTest()
	customer := newTestCustomer(t, "ACME")
	customerRepo.On("FindByCode", ctx, "acme").Return(customer, nil)

	resp, err := svc.GetByCode(ctx, "acme")

	require.NoError(t, err)
	assert.Equal(t, "ACME", resp.Code)
}

func TestCustomerService_List(t *testing.T) {
	ctx := context.Background()
	svc, customerRepo, _, _ := newCustomerServiceUnderTest()
	ownerID := uuid.New()

	matchesFilter := mock.MatchedBy(func(f shared.Filter) bool {
		return f.Search == "ada" &&
			f.Page == 2 &&
			f.PageSize == 2 &&
			f.OrderBy == "code" &&
			f.OrderDir == "asc" &&
			f.Filters["status"] == "active" &&
			f.Filters["owner_id"] == ownerID
	})
	customers := []crm.Customer{*newTestCustomer(t, "C-1"), *newTestCustomer(t, "C-2")}
	customerRepo.On("FindAll", ctx, matchesFilter).Return(customers, nil)
	customerRepo.On("Count", ctx, matchesFilter).Return(int64(5), nil)

	page, err := svc.List(ctx, CustomerListFilter{
		Search:   "ada",
		Status:   "active",
		OwnerID:  ownerID.String(),
		Page:     2,
		PageSize: 2,
		OrderBy:  "code",
		OrderDir: "asc",
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "C-1", page.Items[0].Code)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	customerRepo.AssertExpectations(t)
}

func TestCustomerService_List_Defaults(t *testing.T) {
	ctx := context.Background()
	svc, customerRepo, _, _ := newCustomerServiceUnderTest()

	matchesDefaults := mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 1 && f.PageSize == shared.DefaultPageSize && len(f.Filters) == 0
	})
	customerRepo.On("FindAll", ctx, matchesDefaults).Return([]crm.Customer{}, nil)
	customerRepo.On("Count", ctx, matchesDefaults).Return(int64(0), nil)

	page, err := svc.List(ctx, CustomerListFilter{})

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}

// =============================================================================
// Update Tests
// =============================================================================

func TestCustomerService_Update(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("partial update keeps unspecified fields", func(t *testing.T) {
		svc, customerRepo, _, publisher := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-020")
		require.NoError(t, customer.SetContact("ada@example.com", "", actorID))
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		customerRepo.On("Update", ctx, customer).Return(nil)

		phone := "+1 555 0100"
		company := "Babbage & Co"
		resp, err := svc.Update(ctx, actorID, customer.ID, UpdateCustomerRequest{Phone: &phone, CompanyName: &company})

		require.NoError(t, err)
		assert.Equal(t, "Ada", resp.FirstName)
		assert.Equal(t, "ada@example.com", resp.Email)
		assert.Equal(t, phone, resp.Phone)
		assert.Equal(t, company, resp.CompanyName)
		assert.Equal(t, &actorID, resp.UpdatedBy)
		assert.Contains(t, publisher.types, crm.EventTypeCustomerUpdated)
		customerRepo.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("changed email is rechecked excluding self", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-021")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		customerRepo.On("ExistsByEmail", ctx, "new@example.com", customer.ID).Return(false, nil)
		customerRepo.On("Update", ctx, customer).Return(nil)

		email := "New@Example.com"
		resp, err := svc.Update(ctx, actorID, customer.ID, UpdateCustomerRequest{Email: &email})

		require.NoError(t, err)
		assert.Equal(t, "new@example.com", resp.Email)
		customerRepo.AssertExpectations(t)
	})

	t.Run("email taken by another customer", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-022")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		customerRepo.On("ExistsByEmail", ctx, "taken@example.com", customer.ID).Return(true, nil)

		email := "taken@example.com"
		_, err := svc.Update(ctx, actorID, customer.ID, UpdateCustomerRequest{Email: &email})

		assertDomainCode(t, err, shared.CodeAlreadyExists)
		customerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("stale version", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-023")
		customer.Version = 3
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)

		version := 2
		_, err := svc.Update(ctx, actorID, customer.ID, UpdateCustomerRequest{Version: &version})

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		customerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("concurrent write detected by repository", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-024")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		customerRepo.On("Update", ctx, customer).Return(shared.ErrConcurrencyConflict)

		notes := "updated"
		_, err := svc.Update(ctx, actorID, customer.ID, UpdateCustomerRequest{Notes: &notes})

		assertDomainCode(t, err, shared.CodeConcurrencyConflict)
	})

	t.Run("not found", func(t *testing.T) {
		svc, customerRepo, _, _ := newCustomerServiceUnderTest()
		id := uuid.New()
		customerRepo.On("FindByID", ctx, id).Return(nil, shared.NotFound("Customer"))

		_, err := svc.Update(ctx, actorID, id, UpdateCustomerRequest{})

		assert.True(t, shared.IsNotFound(err))
	})
}

// =============================================================================
// Status Tests
// =============================================================================

func TestCustomerService_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	svc, customerRepo, _, publisher := newCustomerServiceUnderTest()
	customer := newTestCustomer(t, "C-030")
	customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
	customerRepo.On("Update", ctx, customer).Return(nil)

	resp, err := svc.Activate(ctx, actorID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, string(crm.CustomerStatusActive), resp.Status)

	_, err = svc.Activate(ctx, actorID, customer.ID)
	assertDomainCode(t, err, shared.CodeInvalidState)

	resp, err = svc.Deactivate(ctx, actorID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, string(crm.CustomerStatusInactive), resp.Status)

	assert.Equal(t, []string{crm.EventTypeCustomerStatusChanged, crm.EventTypeCustomerStatusChanged}, publisher.types)
	customerRepo.AssertNumberOfCalls(t, "Update", 2)
}

// =============================================================================
// Delete Tests
// =============================================================================

func TestCustomerService_Delete(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("soft deletes", func(t *testing.T) {
		svc, customerRepo, opportunityRepo, publisher := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-040")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		opportunityRepo.On("CountOpenByCustomer", ctx, customer.ID).Return(int64(0), nil)
		customerRepo.On("Update", ctx, customer).Return(nil)

		err := svc.Delete(ctx, actorID, customer.ID)

		require.NoError(t, err)
		assert.True(t, customer.IsDeleted)
		assert.NotNil(t, customer.DeletedAt)
		assert.Equal(t, &actorID, customer.UpdatedBy)
		assert.Equal(t, []string{crm.EventTypeCustomerDeleted}, publisher.types)
	})

	t.Run("rejected while opportunities are open", func(t *testing.T) {
		svc, customerRepo, opportunityRepo, _ := newCustomerServiceUnderTest()
		customer := newTestCustomer(t, "C-041")
		customerRepo.On("FindByID", ctx, customer.ID).Return(customer, nil)
		opportunityRepo.On("CountOpenByCustomer", ctx, customer.ID).Return(int64(2), nil)

		err := svc.Delete(ctx, actorID, customer.ID)

		assertDomainCode(t, err, shared.CodeInvalidState)
		assert.False(t, customer.IsDeleted)
		customerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc, customerRepo, opportunityRepo, _ := newCustomerServiceUnderTest()
		id := uuid.New()
		customerRepo.On("FindByID", ctx, id).Return(nil, shared.NotFound("Customer"))

		err := svc.Delete(ctx, actorID, id)

		assert.True(t, shared.IsNotFound(err))
		opportunityRepo.AssertNotCalled(t, "CountOpenByCustomer", mock.Anything, mock.Anything)
	})
}
