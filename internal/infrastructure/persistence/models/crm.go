package models

import (
	"time"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate.
type CustomerModel struct {
	AggregateModel
	Code        string             `gorm:"type:varchar(50);not null;index"`
	FirstName   string             `gorm:"type:varchar(100);not null"`
	LastName    string             `gorm:"type:varchar(100);not null"`
	Email       string             `gorm:"type:varchar(200);index"`
	Phone       string             `gorm:"type:varchar(50)"`
	CompanyName string             `gorm:"type:varchar(200)"`
	Street      string             `gorm:"type:varchar(500)"`
	City        string             `gorm:"type:varchar(100)"`
	State       string             `gorm:"type:varchar(100)"`
	PostalCode  string             `gorm:"type:varchar(20)"`
	Country     string             `gorm:"type:varchar(100)"`
	Status      crm.CustomerStatus `gorm:"type:varchar(20);not null;default:'prospect'"`
	Notes       string             `gorm:"type:text"`
	OwnerID     *uuid.UUID         `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *crm.Customer {
	return &crm.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Email:             m.Email,
		Phone:             m.Phone,
		CompanyName:       m.CompanyName,
		Address: crm.Address{
			Street:     m.Street,
			City:       m.City,
			State:      m.State,
			PostalCode: m.PostalCode,
			Country:    m.Country,
		},
		Status:  m.Status,
		Notes:   m.Notes,
		OwnerID: m.OwnerID,
	}
}

// CustomerModelFromDomain creates a persistence model from a domain Customer.
func CustomerModelFromDomain(c *crm.Customer) *CustomerModel {
	m := &CustomerModel{
		Code:        c.Code,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		CompanyName: c.CompanyName,
		Street:      c.Address.Street,
		City:        c.Address.City,
		State:       c.Address.State,
		PostalCode:  c.Address.PostalCode,
		Country:     c.Address.Country,
		Status:      c.Status,
		Notes:       c.Notes,
		OwnerID:     c.OwnerID,
	}
	m.FromDomainAggregateRoot(&c.BaseAggregateRoot)
	return m
}

// LeadModel is the persistence model for the Lead aggregate.
type LeadModel struct {
	AggregateModel
	FirstName              string         `gorm:"type:varchar(100);not null"`
	LastName               string         `gorm:"type:varchar(100);not null"`
	Email                  string         `gorm:"type:varchar(200);index"`
	Phone                  string         `gorm:"type:varchar(50)"`
	Company                string         `gorm:"type:varchar(200)"`
	Title                  string         `gorm:"type:varchar(100)"`
	Source                 crm.LeadSource `gorm:"type:varchar(20);not null;default:'other'"`
	Status                 crm.LeadStatus `gorm:"type:varchar(20);not null;default:'new';index"`
	Score                  int            `gorm:"not null"`
	OwnerID                *uuid.UUID     `gorm:"type:uuid;index"`
	Notes                  string         `gorm:"type:text"`
	DisqualifyReason       string         `gorm:"type:varchar(500)"`
	ConvertedCustomerID    *uuid.UUID     `gorm:"type:uuid"`
	ConvertedOpportunityID *uuid.UUID     `gorm:"type:uuid"`
	ConvertedAt            *time.Time
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the persistence model to a domain Lead.
func (m *LeadModel) ToDomain() *crm.Lead {
	return &crm.Lead{
		BaseAggregateRoot:      m.ToDomainAggregateRoot(),
		FirstName:              m.FirstName,
		LastName:               m.LastName,
		Email:                  m.Email,
		Phone:                  m.Phone,
		Company:                m.Company,
		Title:                  m.Title,
		Source:                 m.Source,
		Status:                 m.Status,
		Score:                  m.Score,
		OwnerID:                m.OwnerID,
		Notes:                  m.Notes,
		DisqualifyReason:       m.DisqualifyReason,
		ConvertedCustomerID:    m.ConvertedCustomerID,
		ConvertedOpportunityID: m.ConvertedOpportunityID,
		ConvertedAt:            m.ConvertedAt,
	}
}

// LeadModelFromDomain creates a persistence model from a domain Lead.
func LeadModelFromDomain(l *crm.Lead) *LeadModel {
	m := &LeadModel{
		FirstName:              l.FirstName,
		LastName:               l.LastName,
		Email:                  l.Email,
		Phone:                  l.Phone,
		Company:                l.Company,
		Title:                  l.Title,
		Source:                 l.Source,
		Status:                 l.Status,
		Score:                  l.Score,
		OwnerID:                l.OwnerID,
		Notes:                  l.Notes,
		DisqualifyReason:       l.DisqualifyReason,
		ConvertedCustomerID:    l.ConvertedCustomerID,
		ConvertedOpportunityID: l.ConvertedOpportunityID,
		ConvertedAt:            l.ConvertedAt,
	}
	m.FromDomainAggregateRoot(&l.BaseAggregateRoot)
	return m
}

// OpportunityModel is the persistence model for the Opportunity aggregate.
type OpportunityModel struct {
	AggregateModel
	Name              string               `gorm:"type:varchar(200);not null"`
	CustomerID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Currency          string               `gorm:"type:varchar(3);not null;default:'USD'"`
	Stage             crm.OpportunityStage `gorm:"type:varchar(20);not null;default:'prospecting';index"`
	Probability       int                  `gorm:"not null"`
	ExpectedCloseDate *time.Time
	ClosedAt          *time.Time
	OwnerID           *uuid.UUID `gorm:"type:uuid;index"`
	Description       string     `gorm:"type:text"`
	LossReason        string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (OpportunityModel) TableName() string {
	return "opportunities"
}

// ToDomain converts the persistence model to a domain Opportunity.
func (m *OpportunityModel) ToDomain() *crm.Opportunity {
	return &crm.Opportunity{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		CustomerID:        m.CustomerID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Stage:             m.Stage,
		Probability:       m.Probability,
		ExpectedCloseDate: m.ExpectedCloseDate,
		ClosedAt:          m.ClosedAt,
		OwnerID:           m.OwnerID,
		Description:       m.Description,
		LossReason:        m.LossReason,
	}
}

// OpportunityModelFromDomain creates a persistence model from a domain Opportunity.
func OpportunityModelFromDomain(o *crm.Opportunity) *OpportunityModel {
	m := &OpportunityModel{
		Name:              o.Name,
		CustomerID:        o.CustomerID,
		Amount:            o.Amount,
		Currency:          o.Currency,
		Stage:             o.Stage,
		Probability:       o.Probability,
		ExpectedCloseDate: o.ExpectedCloseDate,
		ClosedAt:          o.ClosedAt,
		OwnerID:           o.OwnerID,
		Description:       o.Description,
		LossReason:        o.LossReason,
	}
	m.FromDomainAggregateRoot(&o.BaseAggregateRoot)
	return m
}

// TaskModel is the persistence model for the Task aggregate.
type TaskModel struct {
	AggregateModel
	Title       string           `gorm:"type:varchar(200);not null"`
	Description string           `gorm:"type:text"`
	DueDate     *time.Time       `gorm:"index"`
	Priority    crm.TaskPriority `gorm:"type:varchar(20);not null;default:'normal'"`
	Status      crm.TaskStatus   `gorm:"type:varchar(20);not null;default:'open';index"`
	AssigneeID  *uuid.UUID       `gorm:"type:uuid;index"`
	RelatedType crm.RelatedType  `gorm:"type:varchar(20)"`
	RelatedID   *uuid.UUID       `gorm:"type:uuid;index"`
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "tasks"
}

// ToDomain converts the persistence model to a domain Task.
func (m *TaskModel) ToDomain() *crm.Task {
	return &crm.Task{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Title:             m.Title,
		Description:       m.Description,
		DueDate:           m.DueDate,
		Priority:          m.Priority,
		Status:            m.Status,
		AssigneeID:        m.AssigneeID,
		RelatedType:       m.RelatedType,
		RelatedID:         m.RelatedID,
		CompletedAt:       m.CompletedAt,
	}
}

// TaskModelFromDomain creates a persistence model from a domain Task.
func TaskModelFromDomain(t *crm.Task) *TaskModel {
	m := &TaskModel{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		Status:      t.Status,
		AssigneeID:  t.AssigneeID,
		RelatedType: t.RelatedType,
		RelatedID:   t.RelatedID,
		CompletedAt: t.CompletedAt,
	}
	m.FromDomainAggregateRoot(&t.BaseAggregateRoot)
	return m
}
