package persistence

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/catalog"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	baseRepository[models.ProductModel, catalog.Product]
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{
		baseRepository: newBaseRepository(db, "Product",
			(*models.ProductModel).ToDomain,
			models.ProductModelFromDomain,
			queryOptions{
				searchColumns: []string{"sku", "name", "description"},
				filterColumns: map[string]string{
					"category":  "category",
					"is_active": "is_active",
				},
				filterFuncs: map[string]filterFunc{
					"min_price": func(db *gorm.DB, value any) *gorm.DB {
						return db.Where("unit_price >= ?", value)
					},
					"max_price": func(db *gorm.DB, value any) *gorm.DB {
						return db.Where("unit_price <= ?", value)
					},
				},
				sortFields: ProductSortFields,
			}),
	}
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return r.findOne(ctx, "sku = ?", catalog.NormalizeSKU(sku))
}

// ExistsBySKU checks if a product with the SKU exists
func (r *GormProductRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	return r.exists(ctx, "sku = ?", catalog.NormalizeSKU(sku))
}

// Update persists the product, including soft deletes
func (r *GormProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	return r.update(ctx, product, &product.BaseAggregateRoot)
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
