package catalog

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/shared"
)

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	shared.Repository[Product]

	// FindBySKU finds a product by its normalized SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// ExistsBySKU checks whether a product with the SKU exists
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}
