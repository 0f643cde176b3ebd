package handler

import (
	"context"

	"github.com/enterprisecrm/backend/internal/application/catalog"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductService is the product use-case surface the handler needs
type ProductService interface {
	Create(ctx context.Context, actorID uuid.UUID, req catalog.CreateProductRequest) (*catalog.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.ProductResponse, error)
	GetBySKU(ctx context.Context, sku string) (*catalog.ProductResponse, error)
	List(ctx context.Context, filter catalog.ProductListFilter) (*shared.Paginated[catalog.ProductResponse], error)
	Update(ctx context.Context, actorID, id uuid.UUID, req catalog.UpdateProductRequest) (*catalog.ProductResponse, error)
	ChangePrice(ctx context.Context, actorID, id uuid.UUID, req catalog.ChangePriceRequest) (*catalog.ProductResponse, error)
	Activate(ctx context.Context, actorID, id uuid.UUID) (*catalog.ProductResponse, error)
	Deactivate(ctx context.Context, actorID, id uuid.UUID) (*catalog.ProductResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

// ProductHandler handles product catalog endpoints
type ProductHandler struct {
	BaseHandler
	products ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create godoc
// @ID           createProduct
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body catalog.CreateProductRequest true "Product"
// @Success      201 {object} APIResponse[catalog.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	var req catalog.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product, err := h.products.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// GetByID godoc
// @ID           getProduct
// @Summary      Get a product by ID
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// GetBySKU godoc
// @ID           getProductBySKU
// @Summary      Get a product by SKU
// @Tags         products
// @Produce      json
// @Param        sku path string true "Stock keeping unit"
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/sku/{sku} [get]
func (h *ProductHandler) GetBySKU(c *gin.Context) {
	product, err := h.products.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// List godoc
// @ID           listProducts
// @Summary      List products
// @Tags         products
// @Produce      json
// @Param        search    query string  false "Search by name or SKU"
// @Param        category  query string  false "Category"
// @Param        active    query bool    false "Only active or inactive products"
// @Param        min_price query number  false "Minimum unit price"
// @Param        max_price query number  false "Maximum unit price"
// @Param        page      query int     false "Page number" default(1)
// @Param        page_size query int     false "Page size" default(20) maximum(100)
// @Param        order_by  query string  false "Order by field"
// @Param        order_dir query string  false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]catalog.ProductResponse]
// @Security     BearerAuth
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalog.ProductListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Update godoc
// @ID           updateProduct
// @Summary      Update a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id      path string                       true "Product ID" format(uuid)
// @Param        request body catalog.UpdateProductRequest true "Fields to change"
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req catalog.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product, err := h.products.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// ChangePrice godoc
// @ID           changeProductPrice
// @Summary      Change a product's unit price
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id      path string                     true "Product ID" format(uuid)
// @Param        request body catalog.ChangePriceRequest true "New price"
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id}/price [put]
func (h *ProductHandler) ChangePrice(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req catalog.ChangePriceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product, err := h.products.ChangePrice(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Activate godoc
// @ID           activateProduct
// @Summary      Activate a product
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id}/activate [post]
func (h *ProductHandler) Activate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.products.Activate)
}

// Deactivate godoc
// @ID           deactivateProduct
// @Summary      Deactivate a product
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[catalog.ProductResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id}/deactivate [post]
func (h *ProductHandler) Deactivate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.products.Deactivate)
}

// Delete godoc
// @ID           deleteProduct
// @Summary      Delete a product
// @Tags         products
// @Param        id path string true "Product ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.products.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
