package crm

import (
	"time"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Paging
// =============================================================================

func toDomainFilter(search string, page, pageSize int, orderBy, orderDir string) shared.Filter {
	filter := shared.DefaultFilter()
	filter.Search = search
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	if orderBy != "" {
		filter.OrderBy = orderBy
	}
	if orderDir != "" {
		filter.OrderDir = orderDir
	}
	return filter.Normalize()
}

func mapItems[E any, R any](items []E, fn func(*E) R) []R {
	out := make([]R, len(items))
	for i := range items {
		out[i] = fn(&items[i])
	}
	return out
}

// =============================================================================
// Customer DTOs
// =============================================================================

// AddressDTO is a postal address in requests and responses
type AddressDTO struct {
	Street     string `json:"street" binding:"max=500"`
	City       string `json:"city" binding:"max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Country    string `json:"country" binding:"max=100"`
}

func (a AddressDTO) toDomain() crm.Address {
	return crm.Address(a)
}

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Code        string      `json:"code" binding:"required,min=1,max=50"`
	FirstName   string      `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string      `json:"last_name" binding:"required,min=1,max=100"`
	Email       string      `json:"email" binding:"omitempty,email,max=200"`
	Phone       string      `json:"phone" binding:"max=50"`
	CompanyName string      `json:"company_name" binding:"max=200"`
	Address     *AddressDTO `json:"address"`
	Notes       string      `json:"notes"`
	OwnerID     *uuid.UUID  `json:"owner_id"`
}

// UpdateCustomerRequest is a partial update; nil fields are left unchanged.
// Version, when set, must match the stored version.
type UpdateCustomerRequest struct {
	FirstName   *string     `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string     `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email       *string     `json:"email" binding:"omitempty,max=200"`
	Phone       *string     `json:"phone" binding:"omitempty,max=50"`
	CompanyName *string     `json:"company_name" binding:"omitempty,max=200"`
	Address     *AddressDTO `json:"address"`
	Notes       *string     `json:"notes"`
	OwnerID     *uuid.UUID  `json:"owner_id"`
	Version     *int        `json:"version" binding:"omitempty,min=1"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	CompanyName string     `json:"company_name"`
	Address     AddressDTO `json:"address"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UpdatedBy   *uuid.UUID `json:"updated_by,omitempty"`
	Version     int        `json:"version"`
}

// CustomerListFilter represents filter options for the customer list
type CustomerListFilter struct {
	Search   string `form:"search" binding:"max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=prospect active inactive"`
	OwnerID  string `form:"owner_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToCustomerResponse converts a domain customer to a response
func ToCustomerResponse(c *crm.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Code:        c.Code,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		FullName:    c.FullName(),
		Email:       c.Email,
		Phone:       c.Phone,
		CompanyName: c.CompanyName,
		Address:     AddressDTO(c.Address),
		Status:      string(c.Status),
		Notes:       c.Notes,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
		CreatedBy:   c.CreatedBy,
		UpdatedAt:   c.UpdatedAt,
		UpdatedBy:   c.UpdatedBy,
		Version:     c.Version,
	}
}

// =============================================================================
// Lead DTOs
// =============================================================================

// CreateLeadRequest represents a request to create a lead
type CreateLeadRequest struct {
	FirstName string     `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string     `json:"last_name" binding:"required,min=1,max=100"`
	Email     string     `json:"email" binding:"omitempty,email,max=200"`
	Phone     string     `json:"phone" binding:"max=50"`
	Company   string     `json:"company" binding:"max=200"`
	Title     string     `json:"title" binding:"max=100"`
	Source    string     `json:"source" binding:"omitempty,oneof=web referral event cold_call partner other"`
	Notes     string     `json:"notes"`
	OwnerID   *uuid.UUID `json:"owner_id"`
}

// UpdateLeadRequest is a partial update of an unconverted lead
type UpdateLeadRequest struct {
	FirstName *string    `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string    `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email     *string    `json:"email" binding:"omitempty,max=200"`
	Phone     *string    `json:"phone" binding:"omitempty,max=50"`
	Company   *string    `json:"company" binding:"omitempty,max=200"`
	Title     *string    `json:"title" binding:"omitempty,max=100"`
	Source    *string    `json:"source" binding:"omitempty,oneof=web referral event cold_call partner other"`
	Notes     *string    `json:"notes"`
	OwnerID   *uuid.UUID `json:"owner_id"`
	Version   *int       `json:"version" binding:"omitempty,min=1"`
}

// DisqualifyLeadRequest carries the reason a lead is not a fit
type DisqualifyLeadRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ConvertLeadRequest turns a qualified lead into a customer and, when
// OpportunityName is set, an opportunity
type ConvertLeadRequest struct {
	CustomerCode       string           `json:"customer_code" binding:"required,min=1,max=50"`
	OpportunityName    string           `json:"opportunity_name" binding:"max=200"`
	OpportunityAmount  *decimal.Decimal `json:"opportunity_amount"`
	Currency           string           `json:"currency" binding:"omitempty,len=3"`
	ExpectedCloseDate  *time.Time       `json:"expected_close_date"`
	OpportunityOwnerID *uuid.UUID       `json:"opportunity_owner_id"`
}

// LeadResponse represents a lead in API responses
type LeadResponse struct {
	ID                     uuid.UUID  `json:"id"`
	FirstName              string     `json:"first_name"`
	LastName               string     `json:"last_name"`
	FullName               string     `json:"full_name"`
	Email                  string     `json:"email"`
	Phone                  string     `json:"phone"`
	Company                string     `json:"company"`
	Title                  string     `json:"title"`
	Source                 string     `json:"source"`
	Status                 string     `json:"status"`
	Score                  int        `json:"score"`
	OwnerID                *uuid.UUID `json:"owner_id,omitempty"`
	Notes                  string     `json:"notes"`
	DisqualifyReason       string     `json:"disqualify_reason,omitempty"`
	ConvertedCustomerID    *uuid.UUID `json:"converted_customer_id,omitempty"`
	ConvertedOpportunityID *uuid.UUID `json:"converted_opportunity_id,omitempty"`
	ConvertedAt            *time.Time `json:"converted_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	Version                int        `json:"version"`
}

// ConvertLeadResponse reports the records produced by a conversion
type ConvertLeadResponse struct {
	Lead        LeadResponse         `json:"lead"`
	Customer    CustomerResponse     `json:"customer"`
	Opportunity *OpportunityResponse `json:"opportunity,omitempty"`
}

// LeadListFilter represents filter options for the lead list
type LeadListFilter struct {
	Search   string `form:"search" binding:"max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=new contacted qualified unqualified converted"`
	Source   string `form:"source" binding:"omitempty,oneof=web referral event cold_call partner other"`
	OwnerID  string `form:"owner_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToLeadResponse converts a domain lead to a response
func ToLeadResponse(l *crm.Lead) LeadResponse {
	return LeadResponse{
		ID:                     l.ID,
		FirstName:              l.FirstName,
		LastName:               l.LastName,
		FullName:               l.FullName(),
		Email:                  l.Email,
		Phone:                  l.Phone,
		Company:                l.Company,
		Title:                  l.Title,
		Source:                 string(l.Source),
		Status:                 string(l.Status),
		Score:                  l.Score,
		OwnerID:                l.OwnerID,
		Notes:                  l.Notes,
		DisqualifyReason:       l.DisqualifyReason,
		ConvertedCustomerID:    l.ConvertedCustomerID,
		ConvertedOpportunityID: l.ConvertedOpportunityID,
		ConvertedAt:            l.ConvertedAt,
		CreatedAt:              l.CreatedAt,
		UpdatedAt:              l.UpdatedAt,
		Version:                l.Version,
	}
}

// =============================================================================
// Opportunity DTOs
// =============================================================================

// CreateOpportunityRequest represents a request to create an opportunity
type CreateOpportunityRequest struct {
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	CustomerID        uuid.UUID       `json:"customer_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" binding:"omitempty,len=3"`
	Probability       *int            `json:"probability" binding:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	Description       string          `json:"description"`
	OwnerID           *uuid.UUID      `json:"owner_id"`
}

// UpdateOpportunityRequest is a partial update; stage changes go through ChangeStage
type UpdateOpportunityRequest struct {
	Name              *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          *string          `json:"currency" binding:"omitempty,len=3"`
	Probability       *int             `json:"probability" binding:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	Description       *string          `json:"description"`
	OwnerID           *uuid.UUID       `json:"owner_id"`
	Version           *int             `json:"version" binding:"omitempty,min=1"`
}

// ChangeStageRequest moves an open opportunity to another stage
type ChangeStageRequest struct {
	Stage string `json:"stage" binding:"required,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
}

// CloseLostRequest carries the loss reason
type CloseLostRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// OpportunityResponse represents an opportunity in API responses
type OpportunityResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Stage             string          `json:"stage"`
	Probability       int             `json:"probability"`
	WeightedAmount    decimal.Decimal `json:"weighted_amount"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	OwnerID           *uuid.UUID      `json:"owner_id,omitempty"`
	Description       string          `json:"description"`
	LossReason        string          `json:"loss_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// OpportunityListFilter represents filter options for the opportunity list
type OpportunityListFilter struct {
	Search     string `form:"search" binding:"max=100"`
	Stage      string `form:"stage" binding:"omitempty,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	OwnerID    string `form:"owner_id" binding:"omitempty,uuid"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StageSummaryResponse aggregates the open opportunities of one stage
type StageSummaryResponse struct {
	Stage          string          `json:"stage"`
	Count          int64           `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	WeightedAmount decimal.Decimal `json:"weighted_amount"`
}

// PipelineSummaryResponse is the open pipeline per stage plus totals.
// All amounts are in Currency.
type PipelineSummaryResponse struct {
	Currency       string                 `json:"currency"`
	Stages         []StageSummaryResponse `json:"stages"`
	TotalCount     int64                  `json:"total_count"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
	WeightedAmount decimal.Decimal        `json:"weighted_amount"`
}

// ToOpportunityResponse converts a domain opportunity to a response
func ToOpportunityResponse(o *crm.Opportunity) OpportunityResponse {
	return OpportunityResponse{
		ID:                o.ID,
		Name:              o.Name,
		CustomerID:        o.CustomerID,
		Amount:            o.Amount,
		Currency:          o.Currency,
		Stage:             string(o.Stage),
		Probability:       o.Probability,
		WeightedAmount:    o.WeightedAmount().Round(2),
		ExpectedCloseDate: o.ExpectedCloseDate,
		ClosedAt:          o.ClosedAt,
		OwnerID:           o.OwnerID,
		Description:       o.Description,
		LossReason:        o.LossReason,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Version:           o.Version,
	}
}

// =============================================================================
// Task DTOs
// =============================================================================

// CreateTaskRequest represents a request to create a task
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=200"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	RelatedType string     `json:"related_type" binding:"omitempty,oneof=customer lead opportunity"`
	RelatedID   *uuid.UUID `json:"related_id"`
}

// UpdateTaskRequest is a partial update of a task
type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	Version     *int       `json:"version" binding:"omitempty,min=1"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Overdue     bool       `json:"overdue"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	RelatedType string     `json:"related_type,omitempty"`
	RelatedID   *uuid.UUID `json:"related_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
}

// TaskListFilter represents filter options for the task list
type TaskListFilter struct {
	Search      string `form:"search" binding:"max=100"`
	Status      string `form:"status" binding:"omitempty,oneof=open in_progress completed cancelled"`
	Priority    string `form:"priority" binding:"omitempty,oneof=low normal high urgent"`
	AssigneeID  string `form:"assignee_id" binding:"omitempty,uuid"`
	RelatedType string `form:"related_type" binding:"omitempty,oneof=customer lead opportunity"`
	RelatedID   string `form:"related_id" binding:"omitempty,uuid"`
	Overdue     bool   `form:"overdue"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToTaskResponse converts a domain task to a response
func ToTaskResponse(t *crm.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Overdue:     t.IsOverdue(time.Now()),
		AssigneeID:  t.AssigneeID,
		RelatedType: string(t.RelatedType),
		RelatedID:   t.RelatedID,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     t.Version,
	}
}
