package crm

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService handles customer-related business operations
type CustomerService struct {
	customerRepo    crm.CustomerRepository
	opportunityRepo crm.OpportunityRepository
	events          shared.EventPublisher
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo crm.CustomerRepository, opportunityRepo crm.OpportunityRepository, events shared.EventPublisher) *CustomerService {
	return &CustomerService{
		customerRepo:    customerRepo,
		opportunityRepo: opportunityRepo,
		events:          events,
	}
}

// Create creates a new customer
func (s *CustomerService) Create(ctx context.Context, actorID uuid.UUID, req CreateCustomerRequest) (*CustomerResponse, error) {
	// Check if code already exists
	exists, err := s.customerRepo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this code already exists")
	}

	// Check if email already exists (if provided)
	if req.Email != "" {
		exists, err = s.customerRepo.ExistsByEmail(ctx, req.Email, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this email already exists")
		}
	}

	customer, err := crm.NewCustomer(req.Code, req.FirstName, req.LastName, actorID)
	if err != nil {
		return nil, err
	}
	if req.CompanyName != "" {
		if err := customer.UpdateProfile(customer.FirstName, customer.LastName, req.CompanyName, actorID); err != nil {
			return nil, err
		}
	}
	if req.Email != "" || req.Phone != "" {
		if err := customer.SetContact(req.Email, req.Phone, actorID); err != nil {
			return nil, err
		}
	}
	if req.Address != nil {
		if err := customer.SetAddress(req.Address.toDomain(), actorID); err != nil {
			return nil, err
		}
	}
	if req.Notes != "" {
		customer.SetNotes(req.Notes, actorID)
	}
	if req.OwnerID != nil {
		customer.AssignOwner(req.OwnerID, actorID)
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, customer)

	logger.L(ctx).Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code),
	)

	response := ToCustomerResponse(customer)
	return &response, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, customerID uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// GetByCode retrieves a customer by code
func (s *CustomerService) GetByCode(ctx context.Context, code string) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// List retrieves a page of customers
func (s *CustomerService) List(ctx context.Context, filter CustomerListFilter) (*shared.Paginated[CustomerResponse], error) {
	domainFilter := toDomainFilter(filter.Search, filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	domainFilter = withStringFilter(domainFilter, "status", filter.Status)
	domainFilter = withUUIDFilter(domainFilter, "owner_id", filter.OwnerID)

	customers, err := s.customerRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.customerRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(mapItems(customers, ToCustomerResponse), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update applies a partial update to a customer
func (s *CustomerService) Update(ctx context.Context, actorID, customerID uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(req.Version, customer); err != nil {
		return nil, err
	}

	if req.FirstName != nil || req.LastName != nil || req.CompanyName != nil {
		firstName, lastName, company := customer.FirstName, customer.LastName, customer.CompanyName
		if req.FirstName != nil {
			firstName = *req.FirstName
		}
		if req.LastName != nil {
			lastName = *req.LastName
		}
		if req.CompanyName != nil {
			company = *req.CompanyName
		}
		if err := customer.UpdateProfile(firstName, lastName, company, actorID); err != nil {
			return nil, err
		}
	}

	if req.Email != nil || req.Phone != nil {
		email, phone := customer.Email, customer.Phone
		if req.Email != nil {
			email = crm.NormalizeEmail(*req.Email)
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		// Email uniqueness is rechecked only when the address actually changes
		if email != "" && email != customer.Email {
			exists, err := s.customerRepo.ExistsByEmail(ctx, email, customer.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this email already exists")
			}
		}
		if err := customer.SetContact(email, phone, actorID); err != nil {
			return nil, err
		}
	}

	if req.Address != nil {
		if err := customer.SetAddress(req.Address.toDomain(), actorID); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		customer.SetNotes(*req.Notes, actorID)
	}
	if req.OwnerID != nil {
		customer.AssignOwner(req.OwnerID, actorID)
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, customer)

	response := ToCustomerResponse(customer)
	return &response, nil
}

// Activate moves a customer to active
func (s *CustomerService) Activate(ctx context.Context, actorID, customerID uuid.UUID) (*CustomerResponse, error) {
	return s.changeStatus(ctx, customerID, func(c *crm.Customer) error {
		return c.Activate(actorID)
	})
}

// Deactivate moves a customer to inactive
func (s *CustomerService) Deactivate(ctx context.Context, actorID, customerID uuid.UUID) (*CustomerResponse, error) {
	return s.changeStatus(ctx, customerID, func(c *crm.Customer) error {
		return c.Deactivate(actorID)
	})
}

func (s *CustomerService) changeStatus(ctx context.Context, customerID uuid.UUID, change func(*crm.Customer) error) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := change(customer); err != nil {
		return nil, err
	}
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, customer)

	logger.L(ctx).Info("customer status changed",
		zap.String("customer_id", customer.ID.String()),
		zap.String("status", string(customer.Status)),
	)

	response := ToCustomerResponse(customer)
	return &response, nil
}

// Delete soft deletes a customer. Customers with open opportunities cannot be deleted.
func (s *CustomerService) Delete(ctx context.Context, actorID, customerID uuid.UUID) error {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return err
	}

	open, err := s.opportunityRepo.CountOpenByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if open > 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "Customer has open opportunities and cannot be deleted")
	}

	if err := customer.Delete(actorID); err != nil {
		return err
	}
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return err
	}
	publishEvents(ctx, s.events, customer)

	logger.L(ctx).Info("customer deleted", zap.String("customer_id", customer.ID.String()))
	return nil
}
