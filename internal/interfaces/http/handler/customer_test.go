package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCustomerService implements CustomerService for testing
type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) Create(ctx context.Context, actorID uuid.UUID, req crmapp.CreateCustomerRequest) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, actorID, req)
	return customerResult(args)
}

func (m *MockCustomerService) GetByID(ctx context.Context, id uuid.UUID) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, id)
	return customerResult(args)
}

func (m *MockCustomerService) GetByCode(ctx context.Context, code string) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, code)
	return customerResult(args)
}

func (m *MockCustomerService) List(ctx context.Context, filter crmapp.CustomerListFilter) (*shared.Paginated[crmapp.CustomerResponse], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[crmapp.CustomerResponse]), args.Error(1)
}

func (m *MockCustomerService) Update(ctx context.Context, actorID, id uuid.UUID, req crmapp.UpdateCustomerRequest) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, actorID, id, req)
	return customerResult(args)
}

func (m *MockCustomerService) Activate(ctx context.Context, actorID, id uuid.UUID) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, actorID, id)
	return customerResult(args)
}

func (m *MockCustomerService) Deactivate(ctx context.Context, actorID, id uuid.UUID) (*crmapp.CustomerResponse, error) {
	args := m.Called(ctx, actorID, id)
	return customerResult(args)
}

func (m *MockCustomerService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	return m.Called(ctx, actorID, id).Error(0)
}

func customerResult(args mock.Arguments) (*crmapp.CustomerResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crmapp.CustomerResponse), args.Error(1)
}

func setupCustomerRouter(svc *MockCustomerService) *gin.Engine {
	h := NewCustomerHandler(svc)
	router := setupAuthedRouter()
	customers := router.Group("/customers")
	customers.POST("", h.Create)
	customers.GET("", h.List)
	customers.GET("/code/:code", h.GetByCode)
	customers.GET("/:id", h.GetByID)
	customers.PUT("/:id", h.Update)
	customers.POST("/:id/activate", h.Activate)
	customers.POST("/:id/deactivate", h.Deactivate)
	customers.DELETE("/:id", h.Delete)
	return router
}

func TestCustomerHandler_Create_Success(t *testing.T) {
	svc := new(MockCustomerService)
	req := crmapp.CreateCustomerRequest{Code: "C-001", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	svc.On("Create", mock.Anything, testActorID, req).
		Return(&crmapp.CustomerResponse{ID: uuid.New(), Code: "C-001", FullName: "Ada Lovelace", Status: "prospect"}, nil)

	w := doRequest(setupCustomerRouter(svc), http.MethodPost, "/customers", req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got crmapp.CustomerResponse
	decodeData(t, w, &got)
	assert.Equal(t, "C-001", got.Code)
	assert.Equal(t, "prospect", got.Status)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_Create_ValidationError(t *testing.T) {
	svc := new(MockCustomerService)

	w := doRequest(setupCustomerRouter(svc), http.MethodPost, "/customers", map[string]string{
		"code":  "C-001",
		"email": "not-an-email",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCustomerHandler_Create_DuplicateCode(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("Create", mock.Anything, testActorID, mock.Anything).
		Return(nil, shared.NewDomainError(shared.CodeAlreadyExists, "Customer code already exists"))

	w := doRequest(setupCustomerRouter(svc), http.MethodPost, "/customers",
		crmapp.CreateCustomerRequest{Code: "C-001", FirstName: "Ada", LastName: "Lovelace"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, shared.CodeAlreadyExists, errorCode(t, w))
}

func TestCustomerHandler_Create_Unauthenticated(t *testing.T) {
	svc := new(MockCustomerService)
	router := setupTestRouter()
	router.POST("/customers", NewCustomerHandler(svc).Create)

	w := doRequest(router, http.MethodPost, "/customers",
		crmapp.CreateCustomerRequest{Code: "C-001", FirstName: "Ada", LastName: "Lovelace"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCustomerHandler_GetByID(t *testing.T) {
	svc := new(MockCustomerService)
	found := uuid.New()
	missing := uuid.New()
	svc.On("GetByID", mock.Anything, found).Return(&crmapp.CustomerResponse{ID: found, Code: "C-001"}, nil)
	svc.On("GetByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)
	router := setupCustomerRouter(svc)

	w := doRequest(router, http.MethodGet, "/customers/"+found.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/customers/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, shared.CodeNotFound, errorCode(t, w))

	w = doRequest(router, http.MethodGet, "/customers/123", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeInvalidInput, errorCode(t, w))
}

func TestCustomerHandler_GetByCode(t *testing.T) {
	svc := new(MockCustomerService)
	svc.On("GetByCode", mock.Anything, "C-001").Return(&crmapp.CustomerResponse{Code: "C-001"}, nil)

	w := doRequest(setupCustomerRouter(svc), http.MethodGet, "/customers/code/C-001", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_List(t *testing.T) {
	svc := new(MockCustomerService)
	expectedFilter := crmapp.CustomerListFilter{Search: "acme", Status: "active", Page: 2, PageSize: 10}
	svc.On("List", mock.Anything, expectedFilter).Return(&shared.Paginated[crmapp.CustomerResponse]{
		Items:    []crmapp.CustomerResponse{{Code: "C-011"}, {Code: "C-012"}},
		Total:    12,
		Page:     2,
		PageSize: 10,
	}, nil)

	w := doRequest(setupCustomerRouter(svc), http.MethodGet, "/customers?search=acme&status=active&page=2&page_size=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(12), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_List_InvalidQuery(t *testing.T) {
	svc := new(MockCustomerService)
	router := setupCustomerRouter(svc)

	w := doRequest(router, http.MethodGet, "/customers?status=deleted", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/customers?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestCustomerHandler_Update_VersionConflict(t *testing.T) {
	svc := new(MockCustomerService)
	id := uuid.New()
	svc.On("Update", mock.Anything, testActorID, id, mock.AnythingOfType("crm.UpdateCustomerRequest")).
		Return(nil, shared.NewDomainError(shared.CodeConcurrencyConflict, "Customer was modified by another request"))

	w := doRequest(setupCustomerRouter(svc), http.MethodPut, "/customers/"+id.String(), map[string]any{
		"first_name": "Grace",
		"version":    3,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, shared.CodeConcurrencyConflict, errorCode(t, w))
}

func TestCustomerHandler_StatusChanges(t *testing.T) {
	svc := new(MockCustomerService)
	id := uuid.New()
	svc.On("Activate", mock.Anything, testActorID, id).Return(&crmapp.CustomerResponse{ID: id, Status: "active"}, nil)
	svc.On("Deactivate", mock.Anything, testActorID, id).
		Return(nil, shared.NewDomainError(shared.CodeInvalidState, "Customer is already inactive"))
	router := setupCustomerRouter(svc)

	w := doRequest(router, http.MethodPost, "/customers/"+id.String()+"/activate", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/customers/"+id.String()+"/deactivate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_Delete(t *testing.T) {
	svc := new(MockCustomerService)
	id := uuid.New()
	broken := uuid.New()
	svc.On("Delete", mock.Anything, testActorID, id).Return(nil)
	svc.On("Delete", mock.Anything, testActorID, broken).Return(errors.New("database is closed"))
	router := setupCustomerRouter(svc)

	w := doRequest(router, http.MethodDelete, "/customers/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodDelete, "/customers/"+broken.String(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeInternal, errorCode(t, w))
}
