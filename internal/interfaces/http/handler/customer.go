package handler

import (
	"context"

	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CustomerService is the customer use-case surface the handler needs
type CustomerService interface {
	Create(ctx context.Context, actorID uuid.UUID, req crmapp.CreateCustomerRequest) (*crmapp.CustomerResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*crmapp.CustomerResponse, error)
	GetByCode(ctx context.Context, code string) (*crmapp.CustomerResponse, error)
	List(ctx context.Context, filter crmapp.CustomerListFilter) (*shared.Paginated[crmapp.CustomerResponse], error)
	Update(ctx context.Context, actorID, id uuid.UUID, req crmapp.UpdateCustomerRequest) (*crmapp.CustomerResponse, error)
	Activate(ctx context.Context, actorID, id uuid.UUID) (*crmapp.CustomerResponse, error)
	Deactivate(ctx context.Context, actorID, id uuid.UUID) (*crmapp.CustomerResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

// CustomerHandler handles customer-related API endpoints
type CustomerHandler struct {
	BaseHandler
	customers CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create godoc
// @ID           createCustomer
// @Summary      Create a customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        request body crm.CreateCustomerRequest true "Customer"
// @Success      201 {object} APIResponse[crm.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	var req crmapp.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// GetByID godoc
// @ID           getCustomer
// @Summary      Get a customer by ID
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[crm.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	customer, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// GetByCode godoc
// @ID           getCustomerByCode
// @Summary      Get a customer by code
// @Tags         customers
// @Produce      json
// @Param        code path string true "Customer code"
// @Success      200 {object} APIResponse[crm.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/code/{code} [get]
func (h *CustomerHandler) GetByCode(c *gin.Context) {
	customer, err := h.customers.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// List godoc
// @ID           listCustomers
// @Summary      List customers
// @Tags         customers
// @Produce      json
// @Param        search    query string false "Search by name, code, email or company"
// @Param        status    query string false "Status" Enums(prospect, active, inactive)
// @Param        owner_id  query string false "Owner ID" format(uuid)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Param        order_by  query string false "Order by field" default(created_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]crm.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	var filter crmapp.CustomerListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.customers.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Update godoc
// @ID           updateCustomer
// @Summary      Update a customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id      path string                     true "Customer ID" format(uuid)
// @Param        request body crm.UpdateCustomerRequest true "Fields to change"
// @Success      200 {object} APIResponse[crm.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [put]
func (h *CustomerHandler) Update(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req crmapp.UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Activate godoc
// @ID           activateCustomer
// @Summary      Activate a customer
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[crm.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/activate [post]
func (h *CustomerHandler) Activate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.customers.Activate)
}

// Deactivate godoc
// @ID           deactivateCustomer
// @Summary      Deactivate a customer
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[crm.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/deactivate [post]
func (h *CustomerHandler) Deactivate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.customers.Deactivate)
}

// Delete godoc
// @ID           deleteCustomer
// @Summary      Delete a customer
// @Description  Soft deletes the customer. Customers with open opportunities cannot be deleted.
// @Tags         customers
// @Param        id path string true "Customer ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [delete]
func (h *CustomerHandler) Delete(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
