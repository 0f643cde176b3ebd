package crm

import (
	"context"
	"strings"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LeadSource is where a lead came from
type LeadSource string

const (
	LeadSourceWeb      LeadSource = "web"
	LeadSourceReferral LeadSource = "referral"
	LeadSourceEvent    LeadSource = "event"
	LeadSourceColdCall LeadSource = "cold_call"
	LeadSourcePartner  LeadSource = "partner"
	LeadSourceOther    LeadSource = "other"
)

// IsValid reports whether the source is known
func (s LeadSource) IsValid() bool {
	switch s {
	case LeadSourceWeb, LeadSourceReferral, LeadSourceEvent, LeadSourceColdCall, LeadSourcePartner, LeadSourceOther:
		return true
	}
	return false
}

// LeadStatus is the qualification state of a lead
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusUnqualified LeadStatus = "unqualified"
	LeadStatusConverted   LeadStatus = "converted"
)

// IsValid reports whether the status is known
func (s LeadStatus) IsValid() bool {
	_, ok := leadTransitions[s]
	return ok
}

var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:         {LeadStatusContacted, LeadStatusQualified, LeadStatusUnqualified},
	LeadStatusContacted:   {LeadStatusQualified, LeadStatusUnqualified},
	LeadStatusUnqualified: {LeadStatusContacted},
	LeadStatusQualified:   {LeadStatusConverted},
	LeadStatusConverted:   {},
}

// CanTransitionTo reports whether the state machine allows moving to next
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Score bounds
const (
	MinLeadScore = 0
	MaxLeadScore = 100
)

// Lead is a prospective customer that has not been converted yet
type Lead struct {
	shared.BaseAggregateRoot
	FirstName              string
	LastName               string
	Email                  string
	Phone                  string
	Company                string
	Title                  string
	Source                 LeadSource
	Status                 LeadStatus
	Score                  int
	OwnerID                *uuid.UUID
	Notes                  string
	DisqualifyReason       string
	ConvertedCustomerID    *uuid.UUID
	ConvertedOpportunityID *uuid.UUID
	ConvertedAt            *time.Time
}

// LeadScorer computes a score for a lead
type LeadScorer interface {
	Score(ctx context.Context, lead *Lead) (int, error)
}

// NewLead creates a lead in status new
func NewLead(firstName, lastName string, source LeadSource, createdBy uuid.UUID) (*Lead, error) {
	firstName, lastName = NormalizeName(firstName), NormalizeName(lastName)
	if err := validatePersonName(firstName, lastName); err != nil {
		return nil, err
	}
	if source == "" {
		source = LeadSourceOther
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Invalid lead source: "+string(source))
	}

	lead := &Lead{
		BaseAggregateRoot: shared.NewBaseAggregateRootBy(createdBy),
		FirstName:         firstName,
		LastName:          lastName,
		Source:            source,
		Status:            LeadStatusNew,
	}
	lead.AddDomainEvent(NewLeadCreatedEvent(lead))
	return lead, nil
}

// FullName returns "First Last"
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// IsConverted reports whether the lead has been turned into a customer
func (l *Lead) IsConverted() bool {
	return l.Status == LeadStatusConverted
}

func (l *Lead) ensureEditable() error {
	if l.IsConverted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Converted leads are read only")
	}
	return nil
}

// UpdateDetails changes name, company and job title
func (l *Lead) UpdateDetails(firstName, lastName, company, title string, by uuid.UUID) error {
	if err := l.ensureEditable(); err != nil {
		return err
	}
	firstName, lastName = NormalizeName(firstName), NormalizeName(lastName)
	if err := validatePersonName(firstName, lastName); err != nil {
		return err
	}
	company, title = strings.TrimSpace(company), strings.TrimSpace(title)
	if err := validateMaxLen("INVALID_COMPANY", "Company", company, 200); err != nil {
		return err
	}
	if err := validateMaxLen("INVALID_TITLE", "Title", title, 100); err != nil {
		return err
	}

	l.FirstName = firstName
	l.LastName = lastName
	l.Company = company
	l.Title = title
	l.MarkModified(by)
	return nil
}

// SetContact sets email and phone
func (l *Lead) SetContact(email, phone string, by uuid.UUID) error {
	if err := l.ensureEditable(); err != nil {
		return err
	}
	email = NormalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePhone(phone); err != nil {
		return err
	}
	l.Email = email
	l.Phone = phone
	l.MarkModified(by)
	return nil
}

// SetSource changes the lead source
func (l *Lead) SetSource(source LeadSource, by uuid.UUID) error {
	if err := l.ensureEditable(); err != nil {
		return err
	}
	if !source.IsValid() {
		return shared.NewDomainError("INVALID_SOURCE", "Invalid lead source: "+string(source))
	}
	l.Source = source
	l.MarkModified(by)
	return nil
}

// SetNotes replaces the notes
func (l *Lead) SetNotes(notes string, by uuid.UUID) error {
	if err := l.ensureEditable(); err != nil {
		return err
	}
	l.Notes = notes
	l.MarkModified(by)
	return nil
}

// AssignOwner sets the owning user
func (l *Lead) AssignOwner(ownerID *uuid.UUID, by uuid.UUID) error {
	if err := l.ensureEditable(); err != nil {
		return err
	}
	if ownerID != nil && *ownerID == uuid.Nil {
		ownerID = nil
	}
	l.OwnerID = ownerID
	l.MarkModified(by)
	return nil
}

// SetScore stores a score clamped to 0..100
func (l *Lead) SetScore(score int) {
	if score < MinLeadScore {
		score = MinLeadScore
	}
	if score > MaxLeadScore {
		score = MaxLeadScore
	}
	l.Score = score
}

// MarkContacted records first contact with the lead
func (l *Lead) MarkContacted(by uuid.UUID) error {
	return l.transition(LeadStatusContacted, by)
}

// Qualify marks the lead as a sales-ready prospect
func (l *Lead) Qualify(by uuid.UUID) error {
	if err := l.transition(LeadStatusQualified, by); err != nil {
		return err
	}
	l.DisqualifyReason = ""
	return nil
}

// Disqualify marks the lead as not a fit
func (l *Lead) Disqualify(reason string, by uuid.UUID) error {
	reason = strings.TrimSpace(reason)
	if err := validateMaxLen("INVALID_REASON", "Reason", reason, 500); err != nil {
		return err
	}
	if err := l.transition(LeadStatusUnqualified, by); err != nil {
		return err
	}
	l.DisqualifyReason = reason
	return nil
}

// Convert marks a qualified lead as converted into the given customer and
// optional opportunity.
func (l *Lead) Convert(customerID uuid.UUID, opportunityID *uuid.UUID, by uuid.UUID) error {
	if customerID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Converted customer ID is required")
	}
	if l.Status != LeadStatusQualified {
		return shared.NewDomainError(shared.CodeInvalidState, "Only qualified leads can be converted")
	}
	if err := l.transition(LeadStatusConverted, by); err != nil {
		return err
	}
	now := time.Now()
	l.ConvertedCustomerID = &customerID
	l.ConvertedOpportunityID = opportunityID
	l.ConvertedAt = &now
	l.AddDomainEvent(NewLeadConvertedEvent(l))
	return nil
}

func (l *Lead) transition(next LeadStatus, by uuid.UUID) error {
	if !l.Status.CanTransitionTo(next) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"Cannot change lead status from "+string(l.Status)+" to "+string(next))
	}
	old := l.Status
	l.Status = next
	l.MarkModified(by)
	l.AddDomainEvent(NewLeadStatusChangedEvent(l, old, next))
	return nil
}

// Delete soft deletes the lead. Converted leads are kept for history.
func (l *Lead) Delete(by uuid.UUID) error {
	if l.IsConverted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Converted leads cannot be deleted")
	}
	if err := l.MarkDeleted(by); err != nil {
		return err
	}
	l.AddDomainEvent(NewLeadDeletedEvent(l))
	return nil
}
