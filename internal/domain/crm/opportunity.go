package crm

import (
	"strings"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpportunityStage is the sales pipeline stage
type OpportunityStage string

const (
	StageProspecting   OpportunityStage = "prospecting"
	StageQualification OpportunityStage = "qualification"
	StageProposal      OpportunityStage = "proposal"
	StageNegotiation   OpportunityStage = "negotiation"
	StageClosedWon     OpportunityStage = "closed_won"
	StageClosedLost    OpportunityStage = "closed_lost"
)

var stageProbabilities = map[OpportunityStage]int{
	StageProspecting:   10,
	StageQualification: 25,
	StageProposal:      50,
	StageNegotiation:   75,
	StageClosedWon:     100,
	StageClosedLost:    0,
}

// OpenStages lists the pipeline stages in order
var OpenStages = []OpportunityStage{StageProspecting, StageQualification, StageProposal, StageNegotiation}

// IsValid reports whether the stage is known
func (s OpportunityStage) IsValid() bool {
	_, ok := stageProbabilities[s]
	return ok
}

// IsClosed reports whether the stage ends the opportunity
func (s OpportunityStage) IsClosed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// DefaultProbability returns the win probability assumed for the stage
func (s OpportunityStage) DefaultProbability() int {
	return stageProbabilities[s]
}

// DefaultCurrency is used when none is given
const DefaultCurrency = "USD"

// Opportunity is a potential deal with a customer
type Opportunity struct {
	shared.BaseAggregateRoot
	Name              string
	CustomerID        uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Stage             OpportunityStage
	Probability       int
	ExpectedCloseDate *time.Time
	ClosedAt          *time.Time
	OwnerID           *uuid.UUID
	Description       string
	LossReason        string
}

// NewOpportunity creates an opportunity in the prospecting stage
func NewOpportunity(name string, customerID uuid.UUID, amount decimal.Decimal, currency string, createdBy uuid.UUID) (*Opportunity, error) {
	name = strings.TrimSpace(name)
	if err := validateRequired("INVALID_NAME", "Opportunity name", name, 200); err != nil {
		return nil, err
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	opp := &Opportunity{
		BaseAggregateRoot: shared.NewBaseAggregateRootBy(createdBy),
		Name:              name,
		CustomerID:        customerID,
		Amount:            amount,
		Currency:          currency,
		Stage:             StageProspecting,
		Probability:       StageProspecting.DefaultProbability(),
	}
	opp.AddDomainEvent(NewOpportunityCreatedEvent(opp))
	return opp, nil
}

// NormalizeCurrency upper-cases a 3-letter ISO 4217 code, defaulting to USD
func NormalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter ISO 4217 code")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter ISO 4217 code")
		}
	}
	return currency, nil
}

// IsOpen reports whether the opportunity is still in the pipeline
func (o *Opportunity) IsOpen() bool {
	return !o.Stage.IsClosed()
}

// WeightedAmount returns amount * probability / 100
func (o *Opportunity) WeightedAmount() decimal.Decimal {
	return o.Amount.Mul(decimal.NewFromInt(int64(o.Probability))).Div(decimal.NewFromInt(100))
}

// UpdateDetails changes name, amount, currency, description and expected close date
func (o *Opportunity) UpdateDetails(name string, amount decimal.Decimal, currency, description string, expectedClose *time.Time, by uuid.UUID) error {
	name = strings.TrimSpace(name)
	if err := validateRequired("INVALID_NAME", "Opportunity name", name, 200); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return err
	}

	o.Name = name
	o.Amount = amount
	o.Currency = currency
	o.Description = description
	o.ExpectedCloseDate = expectedClose
	o.MarkModified(by)
	return nil
}

// AssignOwner sets the owning user
func (o *Opportunity) AssignOwner(ownerID *uuid.UUID, by uuid.UUID) {
	if ownerID != nil && *ownerID == uuid.Nil {
		ownerID = nil
	}
	o.OwnerID = ownerID
	o.MarkModified(by)
}

// SetProbability overrides the stage probability while the deal is open
func (o *Opportunity) SetProbability(probability int, by uuid.UUID) error {
	if !o.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, "Probability of a closed opportunity cannot change")
	}
	if probability < 0 || probability > 100 {
		return shared.NewDomainError("INVALID_PROBABILITY", "Probability must be between 0 and 100")
	}
	o.Probability = probability
	o.MarkModified(by)
	return nil
}

// ChangeStage moves an open opportunity to another stage. Moving to
// closed_lost goes through CloseLost because it needs a reason.
func (o *Opportunity) ChangeStage(stage OpportunityStage, by uuid.UUID) error {
	if !stage.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", "Invalid opportunity stage: "+string(stage))
	}
	if stage == StageClosedWon {
		return o.CloseWon(by)
	}
	if stage == StageClosedLost {
		return shared.NewDomainError("INVALID_REASON", "A loss reason is required to close an opportunity as lost")
	}
	if !o.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, "Closed opportunities must be reopened before changing stage")
	}
	if o.Stage == stage {
		return shared.NewDomainError(shared.CodeInvalidState, "Opportunity is already in stage "+string(stage))
	}
	o.moveTo(stage, by)
	return nil
}

// CloseWon closes the opportunity as won
func (o *Opportunity) CloseWon(by uuid.UUID) error {
	if !o.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, "Opportunity is already closed")
	}
	o.LossReason = ""
	o.moveTo(StageClosedWon, by)
	return nil
}

// CloseLost closes the opportunity as lost with a reason
func (o *Opportunity) CloseLost(reason string, by uuid.UUID) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "A loss reason is required to close an opportunity as lost")
	}
	if err := validateMaxLen("INVALID_REASON", "Loss reason", reason, 500); err != nil {
		return err
	}
	if !o.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, "Opportunity is already closed")
	}
	o.LossReason = reason
	o.moveTo(StageClosedLost, by)
	return nil
}

// Reopen returns a closed opportunity to negotiation
func (o *Opportunity) Reopen(by uuid.UUID) error {
	if o.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, "Only closed opportunities can be reopened")
	}
	o.LossReason = ""
	o.moveTo(StageNegotiation, by)
	return nil
}

func (o *Opportunity) moveTo(stage OpportunityStage, by uuid.UUID) {
	old := o.Stage
	o.Stage = stage
	o.Probability = stage.DefaultProbability()
	if stage.IsClosed() {
		now := time.Now()
		o.ClosedAt = &now
	} else {
		o.ClosedAt = nil
	}
	o.MarkModified(by)
	o.AddDomainEvent(NewOpportunityStageChangedEvent(o, old, stage))
}

// Delete soft deletes the opportunity
func (o *Opportunity) Delete(by uuid.UUID) error {
	return o.MarkDeleted(by)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	return nil
}

// StageSummary aggregates open opportunities of one stage
type StageSummary struct {
	Stage          OpportunityStage
	Count          int64
	TotalAmount    decimal.Decimal
	WeightedAmount decimal.Decimal
}
