package crm

import (
	"strings"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerStatus represents the lifecycle status of a customer account
type CustomerStatus string

const (
	CustomerStatusProspect CustomerStatus = "prospect"
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

// IsValid reports whether the status is a known customer status
func (s CustomerStatus) IsValid() bool {
	switch s {
	case CustomerStatusProspect, CustomerStatusActive, CustomerStatusInactive:
		return true
	}
	return false
}

// Address is the postal address of a customer
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

func (a Address) validate() error {
	if err := validateMaxLen("INVALID_ADDRESS", "Street", a.Street, 500); err != nil {
		return err
	}
	if err := validateMaxLen("INVALID_ADDRESS", "City", a.City, 100); err != nil {
		return err
	}
	if err := validateMaxLen("INVALID_ADDRESS", "State", a.State, 100); err != nil {
		return err
	}
	if err := validateMaxLen("INVALID_ADDRESS", "Postal code", a.PostalCode, 20); err != nil {
		return err
	}
	return validateMaxLen("INVALID_ADDRESS", "Country", a.Country, 100)
}

// Customer is the aggregate root for a customer account
type Customer struct {
	shared.BaseAggregateRoot
	Code        string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	CompanyName string
	Address     Address
	Status      CustomerStatus
	Notes       string
	OwnerID     *uuid.UUID
}

// NewCustomer creates a prospect customer with the required fields
func NewCustomer(code, firstName, lastName string, createdBy uuid.UUID) (*Customer, error) {
	code = NormalizeCode(code)
	if err := validateCustomerCode(code); err != nil {
		return nil, err
	}
	firstName, lastName = NormalizeName(firstName), NormalizeName(lastName)
	if err := validatePersonName(firstName, lastName); err != nil {
		return nil, err
	}

	customer := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRootBy(createdBy),
		Code:              code,
		FirstName:         firstName,
		LastName:          lastName,
		Status:            CustomerStatusProspect,
	}
	customer.AddDomainEvent(NewCustomerCreatedEvent(customer))
	return customer, nil
}

// NormalizeCode upper-cases and trims a customer code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FullName returns "First Last"
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// UpdateProfile changes the customer's name and company
func (c *Customer) UpdateProfile(firstName, lastName, companyName string, by uuid.UUID) error {
	firstName, lastName = NormalizeName(firstName), NormalizeName(lastName)
	if err := validatePersonName(firstName, lastName); err != nil {
		return err
	}
	companyName = strings.TrimSpace(companyName)
	if err := validateMaxLen("INVALID_COMPANY", "Company name", companyName, 200); err != nil {
		return err
	}

	c.FirstName = firstName
	c.LastName = lastName
	c.CompanyName = companyName
	c.MarkModified(by)
	c.AddDomainEvent(NewCustomerUpdatedEvent(c))
	return nil
}

// SetContact sets the email and phone. Empty values clear them.
func (c *Customer) SetContact(email, phone string, by uuid.UUID) error {
	email = NormalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePhone(phone); err != nil {
		return err
	}

	c.Email = email
	c.Phone = phone
	c.MarkModified(by)
	return nil
}

// SetAddress replaces the postal address
func (c *Customer) SetAddress(address Address, by uuid.UUID) error {
	if err := address.validate(); err != nil {
		return err
	}
	c.Address = address
	c.MarkModified(by)
	return nil
}

// SetNotes replaces the free-text notes
func (c *Customer) SetNotes(notes string, by uuid.UUID) {
	c.Notes = notes
	c.MarkModified(by)
}

// AssignOwner sets the owning user. A nil owner leaves the account unassigned.
func (c *Customer) AssignOwner(ownerID *uuid.UUID, by uuid.UUID) {
	if ownerID != nil && *ownerID == uuid.Nil {
		ownerID = nil
	}
	c.OwnerID = ownerID
	c.MarkModified(by)
}

// Activate moves the customer to active
func (c *Customer) Activate(by uuid.UUID) error {
	return c.changeStatus(CustomerStatusActive, by)
}

// Deactivate moves the customer to inactive
func (c *Customer) Deactivate(by uuid.UUID) error {
	return c.changeStatus(CustomerStatusInactive, by)
}

func (c *Customer) changeStatus(status CustomerStatus, by uuid.UUID) error {
	if c.Status == status {
		return shared.NewDomainError(shared.CodeInvalidState, "Customer is already "+string(status))
	}
	old := c.Status
	c.Status = status
	c.MarkModified(by)
	c.AddDomainEvent(NewCustomerStatusChangedEvent(c, old, status))
	return nil
}

// Delete soft deletes the customer
func (c *Customer) Delete(by uuid.UUID) error {
	if err := c.MarkDeleted(by); err != nil {
		return err
	}
	c.AddDomainEvent(NewCustomerDeletedEvent(c))
	return nil
}

func validateCustomerCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Customer code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Customer code cannot exceed 50 characters")
	}
	if !codeRegex.MatchString(code) {
		return shared.NewDomainError("INVALID_CODE", "Customer code can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validatePersonName(firstName, lastName string) error {
	if err := validateRequired("INVALID_NAME", "First name", firstName, 100); err != nil {
		return err
	}
	return validateRequired("INVALID_NAME", "Last name", lastName, 100)
}
