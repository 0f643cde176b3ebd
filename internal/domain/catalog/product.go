package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a product is created without one
const DefaultCurrency = "USD"

var (
	skuRegex      = regexp.MustCompile(`^[A-Z0-9_\-]+$`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Product is a sellable item in the catalog
type Product struct {
	shared.BaseAggregateRoot
	SKU         string
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	Currency    string
	IsActive    bool
}

// NewProduct creates an active product
func NewProduct(sku, name string, unitPrice decimal.Decimal, currency string, createdBy uuid.UUID) (*Product, error) {
	sku = NormalizeSKU(sku)
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if err := validatePrice(unitPrice); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRootBy(createdBy),
		SKU:               sku,
		Name:              name,
		UnitPrice:         unitPrice,
		Currency:          currency,
		IsActive:          true,
	}
	product.AddDomainEvent(NewProductCreatedEvent(product))
	return product, nil
}

// NormalizeSKU upper-cases and trims a SKU
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// Update changes the descriptive fields
func (p *Product) Update(name, description, category string, by uuid.UUID) error {
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return err
	}
	category = strings.TrimSpace(category)
	if utf8.RuneCountInString(category) > 100 {
		return shared.NewDomainError("INVALID_CATEGORY", "Category cannot exceed 100 characters")
	}

	p.Name = name
	p.Description = description
	p.Category = category
	p.MarkModified(by)
	p.AddDomainEvent(NewProductUpdatedEvent(p))
	return nil
}

// ChangePrice sets a new unit price. An empty currency keeps the current one.
func (p *Product) ChangePrice(unitPrice decimal.Decimal, currency string, by uuid.UUID) error {
	if err := validatePrice(unitPrice); err != nil {
		return err
	}
	if strings.TrimSpace(currency) == "" {
		currency = p.Currency
	}
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return err
	}

	oldPrice := p.UnitPrice
	p.UnitPrice = unitPrice
	p.Currency = currency
	p.MarkModified(by)
	p.AddDomainEvent(NewProductPriceChangedEvent(p, oldPrice))
	return nil
}

// Activate makes the product sellable
func (p *Product) Activate(by uuid.UUID) error {
	if p.IsActive {
		return shared.NewDomainError(shared.CodeInvalidState, "Product is already active")
	}
	p.IsActive = true
	p.MarkModified(by)
	p.AddDomainEvent(NewProductStatusChangedEvent(p))
	return nil
}

// Deactivate withdraws the product from sale
func (p *Product) Deactivate(by uuid.UUID) error {
	if !p.IsActive {
		return shared.NewDomainError(shared.CodeInvalidState, "Product is already inactive")
	}
	p.IsActive = false
	p.MarkModified(by)
	p.AddDomainEvent(NewProductStatusChangedEvent(p))
	return nil
}

// Delete soft deletes the product
func (p *Product) Delete(by uuid.UUID) error {
	if err := p.MarkDeleted(by); err != nil {
		return err
	}
	p.AddDomainEvent(NewProductDeletedEvent(p))
	return nil
}

func validateSKU(sku string) error {
	if sku == "" {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > 50 {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot exceed 50 characters")
	}
	if !skuRegex.MatchString(sku) {
		return shared.NewDomainError("INVALID_SKU", "SKU can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validateProductName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency, nil
	}
	if !currencyRegex.MatchString(currency) {
		return "", shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter ISO 4217 code")
	}
	return currency, nil
}
