package persistence

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements crm.CustomerRepository using GORM
type GormCustomerRepository struct {
	baseRepository[models.CustomerModel, crm.Customer]
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{
		baseRepository: newBaseRepository(db, "Customer",
			(*models.CustomerModel).ToDomain,
			models.CustomerModelFromDomain,
			queryOptions{
				searchColumns: []string{"code", "first_name || ' ' || last_name", "email", "company_name"},
				filterColumns: map[string]string{
					"status":   "status",
					"owner_id": "owner_id",
				},
				sortFields: CustomerSortFields,
			}),
	}
}

// FindByCode finds a customer by its code
func (r *GormCustomerRepository) FindByCode(ctx context.Context, code string) (*crm.Customer, error) {
	return r.findOne(ctx, "code = ?", crm.NormalizeCode(code))
}

// ExistsByCode checks if a customer with the code exists
func (r *GormCustomerRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "code = ?", crm.NormalizeCode(code))
}

// ExistsByEmail checks if another customer uses the email
func (r *GormCustomerRepository) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	email = crm.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	if excludeID != uuid.Nil {
		return r.exists(ctx, "email = ? AND id <> ?", email, excludeID)
	}
	return r.exists(ctx, "email = ?", email)
}

// Update persists the customer, including soft deletes
func (r *GormCustomerRepository) Update(ctx context.Context, customer *crm.Customer) error {
	return r.update(ctx, customer, &customer.BaseAggregateRoot)
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ crm.CustomerRepository = (*GormCustomerRepository)(nil)
