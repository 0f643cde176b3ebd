package catalog

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/catalog"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService handles product-related business operations
type ProductService struct {
	productRepo catalog.ProductRepository
	events      shared.EventPublisher
}

// NewProductService creates a new ProductService
func NewProductService(productRepo catalog.ProductRepository, events shared.EventPublisher) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		events:      events,
	}
}

// Create creates a new product
func (s *ProductService) Create(ctx context.Context, actorID uuid.UUID, req CreateProductRequest) (*ProductResponse, error) {
	// Check if SKU already exists
	exists, err := s.productRepo.ExistsBySKU(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Product with this SKU already exists")
	}

	product, err := catalog.NewProduct(req.SKU, req.Name, req.UnitPrice, req.Currency, actorID)
	if err != nil {
		return nil, err
	}
	if req.Description != "" || req.Category != "" {
		if err := product.Update(product.Name, req.Description, req.Category, actorID); err != nil {
			return nil, err
		}
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)

	logger.L(ctx).Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)

	response := ToProductResponse(product)
	return &response, nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	response := ToProductResponse(product)
	return &response, nil
}

// GetBySKU retrieves a product by SKU
func (s *ProductService) GetBySKU(ctx context.Context, sku string) (*ProductResponse, error) {
	product, err := s.productRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	response := ToProductResponse(product)
	return &response, nil
}

// List retrieves a page of products
func (s *ProductService) List(ctx context.Context, filter ProductListFilter) (*shared.Paginated[ProductResponse], error) {
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

	// Add filters
	if filter.Category != "" {
		domainFilter.Filters["category"] = filter.Category
	}
	if filter.Active != nil {
		domainFilter.Filters["is_active"] = *filter.Active
	}
	if filter.MinPrice != nil {
		domainFilter.Filters["min_price"] = decimal.NewFromFloat(*filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		domainFilter.Filters["max_price"] = decimal.NewFromFloat(*filter.MaxPrice)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "min_price cannot exceed max_price")
	}

	products, err := s.productRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.productRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToProductResponses(products), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update updates a product's descriptive fields
func (s *ProductService) Update(ctx context.Context, actorID, productID uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != product.Version {
		return nil, shared.ErrConcurrencyConflict
	}

	name, description, category := product.Name, product.Description, product.Category
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.Category != nil {
		category = *req.Category
	}
	if err := product.Update(name, description, category, actorID); err != nil {
		return nil, err
	}

	return s.save(ctx, product)
}

// ChangePrice sets a new unit price
func (s *ProductService) ChangePrice(ctx context.Context, actorID, productID uuid.UUID, req ChangePriceRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	oldPrice := product.UnitPrice
	if err := product.ChangePrice(req.UnitPrice, req.Currency, actorID); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("product price changed",
		zap.String("product_id", product.ID.String()),
		zap.String("old_price", oldPrice.String()),
		zap.String("new_price", product.UnitPrice.String()),
		zap.String("currency", product.Currency),
	)
	return s.save(ctx, product)
}

// Activate makes a product sellable
func (s *ProductService) Activate(ctx context.Context, actorID, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := product.Activate(actorID); err != nil {
		return nil, err
	}
	return s.save(ctx, product)
}

// Deactivate withdraws a product from sale
func (s *ProductService) Deactivate(ctx context.Context, actorID, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := product.Deactivate(actorID); err != nil {
		return nil, err
	}
	return s.save(ctx, product)
}

// Delete soft deletes a product
func (s *ProductService) Delete(ctx context.Context, actorID, productID uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if err := product.Delete(actorID); err != nil {
		return err
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		return err
	}
	s.publish(ctx, product)

	logger.L(ctx).Info("product deleted", zap.String("product_id", product.ID.String()))
	return nil
}

func (s *ProductService) save(ctx context.Context, product *catalog.Product) (*ProductResponse, error) {
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)

	response := ToProductResponse(product)
	return &response, nil
}

func (s *ProductService) publish(ctx context.Context, product *catalog.Product) {
	if err := shared.PublishAndClear(ctx, s.events, product); err != nil {
		logger.L(ctx).Error("failed to publish product events",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
	}
}
