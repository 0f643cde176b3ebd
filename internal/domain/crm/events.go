package crm

import (
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeCustomer    = "Customer"
	AggregateTypeLead        = "Lead"
	AggregateTypeOpportunity = "Opportunity"
	AggregateTypeTask        = "Task"
)

// Event type constants
const (
	EventTypeCustomerCreated         = "CustomerCreated"
	EventTypeCustomerUpdated         = "CustomerUpdated"
	EventTypeCustomerStatusChanged   = "CustomerStatusChanged"
	EventTypeCustomerDeleted         = "CustomerDeleted"
	EventTypeLeadCreated             = "LeadCreated"
	EventTypeLeadStatusChanged       = "LeadStatusChanged"
	EventTypeLeadConverted           = "LeadConverted"
	EventTypeLeadDeleted             = "LeadDeleted"
	EventTypeOpportunityCreated      = "OpportunityCreated"
	EventTypeOpportunityStageChanged = "OpportunityStageChanged"
	EventTypeTaskCompleted           = "TaskCompleted"
	EventTypeTaskOverdue             = "TaskOverdue"
)

// CustomerCreatedEvent is published when a new customer is created
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	Code string `json:"code"`
	Name string `json:"name"`
}

// NewCustomerCreatedEvent creates a new CustomerCreatedEvent
func NewCustomerCreatedEvent(c *Customer) *CustomerCreatedEvent {
	return &CustomerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerCreated, AggregateTypeCustomer, c.ID),
		Code:            c.Code,
		Name:            c.FullName(),
	}
}

// CustomerUpdatedEvent is published when a customer profile changes
type CustomerUpdatedEvent struct {
	shared.BaseDomainEvent
	Code        string `json:"code"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name,omitempty"`
}

// NewCustomerUpdatedEvent creates a new CustomerUpdatedEvent
func NewCustomerUpdatedEvent(c *Customer) *CustomerUpdatedEvent {
	return &CustomerUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerUpdated, AggregateTypeCustomer, c.ID),
		Code:            c.Code,
		Name:            c.FullName(),
		CompanyName:     c.CompanyName,
	}
}

// CustomerStatusChangedEvent is published on activate/deactivate
type CustomerStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus CustomerStatus `json:"old_status"`
	NewStatus CustomerStatus `json:"new_status"`
}

// NewCustomerStatusChangedEvent creates a new CustomerStatusChangedEvent
func NewCustomerStatusChangedEvent(c *Customer, from, to CustomerStatus) *CustomerStatusChangedEvent {
	return &CustomerStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerStatusChanged, AggregateTypeCustomer, c.ID),
		OldStatus:       from,
		NewStatus:       to,
	}
}

// CustomerDeletedEvent is published when a customer is soft deleted
type CustomerDeletedEvent struct {
	shared.BaseDomainEvent
	Code string `json:"code"`
}

// NewCustomerDeletedEvent creates a new CustomerDeletedEvent
func NewCustomerDeletedEvent(c *Customer) *CustomerDeletedEvent {
	return &CustomerDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerDeleted, AggregateTypeCustomer, c.ID),
		Code:            c.Code,
	}
}

// LeadCreatedEvent is published when a lead is captured
type LeadCreatedEvent struct {
	shared.BaseDomainEvent
	Name   string     `json:"name"`
	Source LeadSource `json:"source"`
}

// NewLeadCreatedEvent creates a new LeadCreatedEvent
func NewLeadCreatedEvent(l *Lead) *LeadCreatedEvent {
	return &LeadCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadCreated, AggregateTypeLead, l.ID),
		Name:            l.FullName(),
		Source:          l.Source,
	}
}

// LeadStatusChangedEvent is published on every lead status transition
type LeadStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus LeadStatus `json:"old_status"`
	NewStatus LeadStatus `json:"new_status"`
}

// NewLeadStatusChangedEvent creates a new LeadStatusChangedEvent
func NewLeadStatusChangedEvent(l *Lead, from, to LeadStatus) *LeadStatusChangedEvent {
	return &LeadStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadStatusChanged, AggregateTypeLead, l.ID),
		OldStatus:       from,
		NewStatus:       to,
	}
}

// LeadDeletedEvent is published when a lead is soft deleted
type LeadDeletedEvent struct {
	shared.BaseDomainEvent
	Name string `json:"name"`
}

// NewLeadDeletedEvent creates a new LeadDeletedEvent
func NewLeadDeletedEvent(l *Lead) *LeadDeletedEvent {
	return &LeadDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadDeleted, AggregateTypeLead, l.ID),
		Name:            l.FullName(),
	}
}

// LeadConvertedEvent is published when a lead becomes a customer
type LeadConvertedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID  `json:"customer_id"`
	OpportunityID *uuid.UUID `json:"opportunity_id,omitempty"`
}

// NewLeadConvertedEvent creates a new LeadConvertedEvent
func NewLeadConvertedEvent(l *Lead) *LeadConvertedEvent {
	e := &LeadConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLeadConverted, AggregateTypeLead, l.ID),
		OpportunityID:   l.ConvertedOpportunityID,
	}
	if l.ConvertedCustomerID != nil {
		e.CustomerID = *l.ConvertedCustomerID
	}
	return e
}

// OpportunityCreatedEvent is published when a deal enters the pipeline
type OpportunityCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
}

// NewOpportunityCreatedEvent creates a new OpportunityCreatedEvent
func NewOpportunityCreatedEvent(o *Opportunity) *OpportunityCreatedEvent {
	return &OpportunityCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOpportunityCreated, AggregateTypeOpportunity, o.ID),
		CustomerID:      o.CustomerID,
		Name:            o.Name,
		Amount:          o.Amount,
	}
}

// OpportunityStageChangedEvent is published when a deal moves through the pipeline
type OpportunityStageChangedEvent struct {
	shared.BaseDomainEvent
	OldStage OpportunityStage `json:"old_stage"`
	NewStage OpportunityStage `json:"new_stage"`
}

// NewOpportunityStageChangedEvent creates a new OpportunityStageChangedEvent
func NewOpportunityStageChangedEvent(o *Opportunity, from, to OpportunityStage) *OpportunityStageChangedEvent {
	return &OpportunityStageChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOpportunityStageChanged, AggregateTypeOpportunity, o.ID),
		OldStage:        from,
		NewStage:        to,
	}
}

// TaskCompletedEvent is published when a task is completed
type TaskCompletedEvent struct {
	shared.BaseDomainEvent
	Title      string     `json:"title"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
}

// NewTaskCompletedEvent creates a new TaskCompletedEvent
func NewTaskCompletedEvent(t *Task) *TaskCompletedEvent {
	return &TaskCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaskCompleted, AggregateTypeTask, t.ID),
		Title:           t.Title,
		AssigneeID:      t.AssigneeID,
	}
}

// TaskOverdueEvent is published once when an unfinished task passes its due date
type TaskOverdueEvent struct {
	shared.BaseDomainEvent
	Title      string     `json:"title"`
	DueDate    time.Time  `json:"due_date"`
	Priority   string     `json:"priority"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
}

// NewTaskOverdueEvent creates a new TaskOverdueEvent. t must have a due date.
func NewTaskOverdueEvent(t *Task) *TaskOverdueEvent {
	return &TaskOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaskOverdue, AggregateTypeTask, t.ID),
		Title:           t.Title,
		DueDate:         *t.DueDate,
		Priority:        string(t.Priority),
		AssigneeID:      t.AssigneeID,
	}
}
