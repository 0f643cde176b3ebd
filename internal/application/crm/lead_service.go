package crm

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/enterprisecrm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LeadService handles lead qualification and conversion
type LeadService struct {
	leadRepo        crm.LeadRepository
	customerRepo    crm.CustomerRepository
	opportunityRepo crm.OpportunityRepository
	uow             shared.UnitOfWork
	scorer          crm.LeadScorer
	events          shared.EventPublisher
}

// NewLeadService creates a new LeadService. scorer may be nil, in which case
// leads keep a score of zero.
func NewLeadService(
	leadRepo crm.LeadRepository,
	customerRepo crm.CustomerRepository,
	opportunityRepo crm.OpportunityRepository,
	uow shared.UnitOfWork,
	scorer crm.LeadScorer,
	events shared.EventPublisher,
) *LeadService {
	return &LeadService{
		leadRepo:        leadRepo,
		customerRepo:    customerRepo,
		opportunityRepo: opportunityRepo,
		uow:             uow,
		scorer:          scorer,
		events:          events,
	}
}

// Create creates a new lead and scores it
func (s *LeadService) Create(ctx context.Context, actorID uuid.UUID, req CreateLeadRequest) (*LeadResponse, error) {
	lead, err := s.buildLead(ctx, actorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, lead)

	logger.L(ctx).Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.Int("score", lead.Score),
	)

	response := ToLeadResponse(lead)
	return &response, nil
}

// buildLead applies req to a new scored lead without persisting it
func (s *LeadService) buildLead(ctx context.Context, actorID uuid.UUID, req CreateLeadRequest) (*crm.Lead, error) {
	lead, err := crm.NewLead(req.FirstName, req.LastName, crm.LeadSource(req.Source), actorID)
	if err != nil {
		return nil, err
	}
	if req.Company != "" || req.Title != "" {
		if err := lead.UpdateDetails(lead.FirstName, lead.LastName, req.Company, req.Title, actorID); err != nil {
			return nil, err
		}
	}
	if req.Email != "" || req.Phone != "" {
		if err := lead.SetContact(req.Email, req.Phone, actorID); err != nil {
			return nil, err
		}
	}
	if req.Notes != "" {
		if err := lead.SetNotes(req.Notes, actorID); err != nil {
			return nil, err
		}
	}
	if req.OwnerID != nil {
		if err := lead.AssignOwner(req.OwnerID, actorID); err != nil {
			return nil, err
		}
	}
	s.score(ctx, lead)
	return lead, nil
}

// GetByID retrieves a lead by ID
func (s *LeadService) GetByID(ctx context.Context, leadID uuid.UUID) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	response := ToLeadResponse(lead)
	return &response, nil
}

// List retrieves a page of leads
func (s *LeadService) List(ctx context.Context, filter LeadListFilter) (*shared.Paginated[LeadResponse], error) {
	domainFilter := toDomainFilter(filter.Search, filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	domainFilter = withStringFilter(domainFilter, "status", filter.Status)
	domainFilter = withStringFilter(domainFilter, "source", filter.Source)
	domainFilter = withUUIDFilter(domainFilter, "owner_id", filter.OwnerID)

	leads, err := s.leadRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.leadRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(mapItems(leads, ToLeadResponse), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update applies a partial update to an unconverted lead and rescores it
func (s *LeadService) Update(ctx context.Context, actorID, leadID uuid.UUID, req UpdateLeadRequest) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(req.Version, lead); err != nil {
		return nil, err
	}

	if req.FirstName != nil || req.LastName != nil || req.Company != nil || req.Title != nil {
		firstName, lastName, company, title := lead.FirstName, lead.LastName, lead.Company, lead.Title
		if req.FirstName != nil {
			firstName = *req.FirstName
		}
		if req.LastName != nil {
			lastName = *req.LastName
		}
		if req.Company != nil {
			company = *req.Company
		}
		if req.Title != nil {
			title = *req.Title
		}
		if err := lead.UpdateDetails(firstName, lastName, company, title, actorID); err != nil {
			return nil, err
		}
	}
	if req.Email != nil || req.Phone != nil {
		email, phone := lead.Email, lead.Phone
		if req.Email != nil {
			email = *req.Email
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		if err := lead.SetContact(email, phone, actorID); err != nil {
			return nil, err
		}
	}
	if req.Source != nil {
		if err := lead.SetSource(crm.LeadSource(*req.Source), actorID); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		if err := lead.SetNotes(*req.Notes, actorID); err != nil {
			return nil, err
		}
	}
	if req.OwnerID != nil {
		if err := lead.AssignOwner(req.OwnerID, actorID); err != nil {
			return nil, err
		}
	}
	s.score(ctx, lead)

	return s.save(ctx, lead)
}

// MarkContacted records first contact with a lead
func (s *LeadService) MarkContacted(ctx context.Context, actorID, leadID uuid.UUID) (*LeadResponse, error) {
	return s.transition(ctx, leadID, func(l *crm.Lead) error {
		return l.MarkContacted(actorID)
	})
}

// Qualify marks a lead as sales ready
func (s *LeadService) Qualify(ctx context.Context, actorID, leadID uuid.UUID) (*LeadResponse, error) {
	return s.transition(ctx, leadID, func(l *crm.Lead) error {
		return l.Qualify(actorID)
	})
}

// Disqualify marks a lead as not a fit
func (s *LeadService) Disqualify(ctx context.Context, actorID, leadID uuid.UUID, req DisqualifyLeadRequest) (*LeadResponse, error) {
	return s.transition(ctx, leadID, func(l *crm.Lead) error {
		return l.Disqualify(req.Reason, actorID)
	})
}

func (s *LeadService) transition(ctx context.Context, leadID uuid.UUID, change func(*crm.Lead) error) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := change(lead); err != nil {
		return nil, err
	}
	response, err := s.save(ctx, lead)
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("lead status changed",
		zap.String("lead_id", lead.ID.String()),
		zap.String("status", string(lead.Status)),
	)
	return response, nil
}

// Rescore recomputes the score of an unconverted lead with the current rules
func (s *LeadService) Rescore(ctx context.Context, actorID, leadID uuid.UUID) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.IsConverted() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Converted leads are read only")
	}
	s.score(ctx, lead)
	lead.MarkModified(actorID)

	return s.save(ctx, lead)
}

// Convert turns a qualified lead into a customer and, optionally, an
// opportunity. All records are written in one transaction.
func (s *LeadService) Convert(ctx context.Context, actorID, leadID uuid.UUID, req ConvertLeadRequest) (*ConvertLeadResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "LeadService", "Convert", "lead.id", leadID.String())
	defer span.End()

	var (
		lead        *crm.Lead
		customer    *crm.Customer
		opportunity *crm.Opportunity
	)
	err := s.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		lead, err = s.leadRepo.FindByID(txCtx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != crm.LeadStatusQualified {
			return shared.NewDomainError(shared.CodeInvalidState, "Only qualified leads can be converted")
		}

		exists, err := s.customerRepo.ExistsByCode(txCtx, req.CustomerCode)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this code already exists")
		}
		if lead.Email != "" {
			exists, err = s.customerRepo.ExistsByEmail(txCtx, lead.Email, uuid.Nil)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this email already exists")
			}
		}

		customer, err = customerFromLead(lead, req.CustomerCode, actorID)
		if err != nil {
			return err
		}
		if err := s.customerRepo.Create(txCtx, customer); err != nil {
			return err
		}

		var opportunityID *uuid.UUID
		if req.OpportunityName != "" {
			opportunity, err = opportunityFromLead(lead, customer.ID, req, actorID)
			if err != nil {
				return err
			}
			if err := s.opportunityRepo.Create(txCtx, opportunity); err != nil {
				return err
			}
			opportunityID = &opportunity.ID
		}

		if err := lead.Convert(customer.ID, opportunityID, actorID); err != nil {
			return err
		}
		return s.leadRepo.Update(txCtx, lead)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.events, customer)
	if opportunity != nil {
		publishEvents(ctx, s.events, opportunity)
	}
	publishEvents(ctx, s.events, lead)

	logger.L(ctx).Info("lead converted",
		zap.String("lead_id", lead.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.Bool("opportunity_created", opportunity != nil),
	)

	response := &ConvertLeadResponse{
		Lead:     ToLeadResponse(lead),
		Customer: ToCustomerResponse(customer),
	}
	if opportunity != nil {
		resp := ToOpportunityResponse(opportunity)
		response.Opportunity = &resp
	}
	return response, nil
}

func customerFromLead(lead *crm.Lead, code string, actorID uuid.UUID) (*crm.Customer, error) {
	customer, err := crm.NewCustomer(code, lead.FirstName, lead.LastName, actorID)
	if err != nil {
		return nil, err
	}
	if lead.Company != "" {
		if err := customer.UpdateProfile(customer.FirstName, customer.LastName, lead.Company, actorID); err != nil {
			return nil, err
		}
	}
	if lead.Email != "" || lead.Phone != "" {
		if err := customer.SetContact(lead.Email, lead.Phone, actorID); err != nil {
			return nil, err
		}
	}
	if lead.Notes != "" {
		customer.SetNotes(lead.Notes, actorID)
	}
	if lead.OwnerID != nil {
		customer.AssignOwner(lead.OwnerID, actorID)
	}
	return customer, nil
}

func opportunityFromLead(lead *crm.Lead, customerID uuid.UUID, req ConvertLeadRequest, actorID uuid.UUID) (*crm.Opportunity, error) {
	amount := decimal.Zero
	if req.OpportunityAmount != nil {
		amount = *req.OpportunityAmount
	}
	opportunity, err := crm.NewOpportunity(req.OpportunityName, customerID, amount, req.Currency, actorID)
	if err != nil {
		return nil, err
	}
	if req.ExpectedCloseDate != nil {
		err := opportunity.UpdateDetails(opportunity.Name, opportunity.Amount, opportunity.Currency, opportunity.Description, req.ExpectedCloseDate, actorID)
		if err != nil {
			return nil, err
		}
	}
	owner := lead.OwnerID
	if req.OpportunityOwnerID != nil {
		owner = req.OpportunityOwnerID
	}
	if owner != nil {
		opportunity.AssignOwner(owner, actorID)
	}
	return opportunity, nil
}

// Delete soft deletes an unconverted lead
func (s *LeadService) Delete(ctx context.Context, actorID, leadID uuid.UUID) error {
	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return err
	}
	if err := lead.Delete(actorID); err != nil {
		return err
	}
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return err
	}
	publishEvents(ctx, s.events, lead)

	logger.L(ctx).Info("lead deleted", zap.String("lead_id", lead.ID.String()))
	return nil
}

// score applies the scorer to the lead. A scoring failure keeps the
// previous score.
func (s *LeadService) score(ctx context.Context, lead *crm.Lead) {
	if s.scorer == nil {
		return
	}
	score, err := s.scorer.Score(ctx, lead)
	if err != nil {
		logger.L(ctx).Warn("lead scoring failed",
			zap.String("lead_id", lead.ID.String()),
			zap.Error(err),
		)
		return
	}
	lead.SetScore(score)
}

func (s *LeadService) save(ctx context.Context, lead *crm.Lead) (*LeadResponse, error) {
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, lead)

	response := ToLeadResponse(lead)
	return &response, nil
}
