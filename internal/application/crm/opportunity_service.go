package crm

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpportunityService handles the sales pipeline
type OpportunityService struct {
	opportunityRepo crm.OpportunityRepository
	customerRepo    crm.CustomerRepository
	events          shared.EventPublisher
}

// NewOpportunityService creates a new OpportunityService
func NewOpportunityService(opportunityRepo crm.OpportunityRepository, customerRepo crm.CustomerRepository, events shared.EventPublisher) *OpportunityService {
	return &OpportunityService{
		opportunityRepo: opportunityRepo,
		customerRepo:    customerRepo,
		events:          events,
	}
}

// Create creates an opportunity for an existing customer
func (s *OpportunityService) Create(ctx context.Context, actorID uuid.UUID, req CreateOpportunityRequest) (*OpportunityResponse, error) {
	if _, err := s.customerRepo.FindByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	opportunity, err := crm.NewOpportunity(req.Name, req.CustomerID, req.Amount, req.Currency, actorID)
	if err != nil {
		return nil, err
	}
	if req.Description != "" || req.ExpectedCloseDate != nil {
		err := opportunity.UpdateDetails(opportunity.Name, opportunity.Amount, opportunity.Currency, req.Description, req.ExpectedCloseDate, actorID)
		if err != nil {
			return nil, err
		}
	}
	if req.Probability != nil {
		if err := opportunity.SetProbability(*req.Probability, actorID); err != nil {
			return nil, err
		}
	}
	if req.OwnerID != nil {
		opportunity.AssignOwner(req.OwnerID, actorID)
	}

	if err := s.opportunityRepo.Create(ctx, opportunity); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, opportunity)

	logger.L(ctx).Info("opportunity created",
		zap.String("opportunity_id", opportunity.ID.String()),
		zap.String("customer_id", opportunity.CustomerID.String()),
		zap.String("amount", opportunity.Amount.String()),
	)

	response := ToOpportunityResponse(opportunity)
	return &response, nil
}

// GetByID retrieves an opportunity by ID
func (s *OpportunityService) GetByID(ctx context.Context, opportunityID uuid.UUID) (*OpportunityResponse, error) {
	opportunity, err := s.opportunityRepo.FindByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}

	response := ToOpportunityResponse(opportunity)
	return &response, nil
}

// List retrieves a page of opportunities
func (s *OpportunityService) List(ctx context.Context, filter OpportunityListFilter) (*shared.Paginated[OpportunityResponse], error) {
	domainFilter := toDomainFilter(filter.Search, filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	domainFilter = withStringFilter(domainFilter, "stage", filter.Stage)
	domainFilter = withUUIDFilter(domainFilter, "customer_id", filter.CustomerID)
	domainFilter = withUUIDFilter(domainFilter, "owner_id", filter.OwnerID)

	opportunities, err := s.opportunityRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.opportunityRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(mapItems(opportunities, ToOpportunityResponse), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update applies a partial update to an opportunity
func (s *OpportunityService) Update(ctx context.Context, actorID, opportunityID uuid.UUID, req UpdateOpportunityRequest) (*OpportunityResponse, error) {
	opportunity, err := s.opportunityRepo.FindByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(req.Version, opportunity); err != nil {
		return nil, err
	}

	name, amount, currency := opportunity.Name, opportunity.Amount, opportunity.Currency
	description, closeDate := opportunity.Description, opportunity.ExpectedCloseDate
	if req.Name != nil {
		name = *req.Name
	}
	if req.Amount != nil {
		amount = *req.Amount
	}
	if req.Currency != nil {
		currency = *req.Currency
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.ExpectedCloseDate != nil {
		closeDate = req.ExpectedCloseDate
	}
	if err := opportunity.UpdateDetails(name, amount, currency, description, closeDate, actorID); err != nil {
		return nil, err
	}

	if req.Probability != nil {
		if err := opportunity.SetProbability(*req.Probability, actorID); err != nil {
			return nil, err
		}
	}
	if req.OwnerID != nil {
		opportunity.AssignOwner(req.OwnerID, actorID)
	}

	return s.save(ctx, opportunity)
}

// ChangeStage moves an open opportunity to another stage
func (s *OpportunityService) ChangeStage(ctx context.Context, actorID, opportunityID uuid.UUID, req ChangeStageRequest) (*OpportunityResponse, error) {
	return s.move(ctx, opportunityID, func(o *crm.Opportunity) error {
		return o.ChangeStage(crm.OpportunityStage(req.Stage), actorID)
	})
}

// CloseWon closes an opportunity as won
func (s *OpportunityService) CloseWon(ctx context.Context, actorID, opportunityID uuid.UUID) (*OpportunityResponse, error) {
	return s.move(ctx, opportunityID, func(o *crm.Opportunity) error {
		return o.CloseWon(actorID)
	})
}

// CloseLost closes an opportunity as lost
func (s *OpportunityService) CloseLost(ctx context.Context, actorID, opportunityID uuid.UUID, req CloseLostRequest) (*OpportunityResponse, error) {
	return s.move(ctx, opportunityID, func(o *crm.Opportunity) error {
		return o.CloseLost(req.Reason, actorID)
	})
}

// Reopen puts a closed opportunity back into negotiation
func (s *OpportunityService) Reopen(ctx context.Context, actorID, opportunityID uuid.UUID) (*OpportunityResponse, error) {
	return s.move(ctx, opportunityID, func(o *crm.Opportunity) error {
		return o.Reopen(actorID)
	})
}

func (s *OpportunityService) move(ctx context.Context, opportunityID uuid.UUID, change func(*crm.Opportunity) error) (*OpportunityResponse, error) {
	opportunity, err := s.opportunityRepo.FindByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	from := opportunity.Stage
	if err := change(opportunity); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("opportunity stage changed",
		zap.String("opportunity_id", opportunity.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(opportunity.Stage)),
	)
	return s.save(ctx, opportunity)
}

// Delete soft deletes an opportunity
func (s *OpportunityService) Delete(ctx context.Context, actorID, opportunityID uuid.UUID) error {
	opportunity, err := s.opportunityRepo.FindByID(ctx, opportunityID)
	if err != nil {
		return err
	}
	if err := opportunity.Delete(actorID); err != nil {
		return err
	}
	if err := s.opportunityRepo.Update(ctx, opportunity); err != nil {
		return err
	}

	logger.L(ctx).Info("opportunity deleted", zap.String("opportunity_id", opportunity.ID.String()))
	return nil
}

// PipelineSummary aggregates the open pipeline per stage. Only opportunities
// in currency are summed; an empty currency means DefaultCurrency. ownerID
// restricts the summary to one owner when not nil. Every open stage is
// listed, in pipeline order, even when it holds no opportunities.
func (s *OpportunityService) PipelineSummary(ctx context.Context, ownerID *uuid.UUID, currency string) (*PipelineSummaryResponse, error) {
	currency, err := crm.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	rows, err := s.opportunityRepo.PipelineSummary(ctx, ownerID, currency)
	if err != nil {
		return nil, err
	}

	byStage := make(map[crm.OpportunityStage]crm.StageSummary, len(rows))
	for _, row := range rows {
		byStage[row.Stage] = row
	}

	response := &PipelineSummaryResponse{
		Currency:       currency,
		Stages:         make([]StageSummaryResponse, 0, len(crm.OpenStages)),
		TotalAmount:    decimal.Zero,
		WeightedAmount: decimal.Zero,
	}
	for _, stage := range crm.OpenStages {
		row, ok := byStage[stage]
		if !ok {
			row = crm.StageSummary{Stage: stage, TotalAmount: decimal.Zero, WeightedAmount: decimal.Zero}
		}
		response.Stages = append(response.Stages, StageSummaryResponse{
			Stage:          string(stage),
			Count:          row.Count,
			TotalAmount:    row.TotalAmount,
			WeightedAmount: row.WeightedAmount.Round(2),
		})
		response.TotalCount += row.Count
		response.TotalAmount = response.TotalAmount.Add(row.TotalAmount)
		response.WeightedAmount = response.WeightedAmount.Add(row.WeightedAmount)
	}
	response.WeightedAmount = response.WeightedAmount.Round(2)
	return response, nil
}

func (s *OpportunityService) save(ctx context.Context, opportunity *crm.Opportunity) (*OpportunityResponse, error) {
	if err := s.opportunityRepo.Update(ctx, opportunity); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, opportunity)

	response := ToOpportunityResponse(opportunity)
	return &response, nil
}
