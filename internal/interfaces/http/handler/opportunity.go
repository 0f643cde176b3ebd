package handler

import (
	"context"
	"net/http"

	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OpportunityService is the opportunity use-case surface the handler needs
type OpportunityService interface {
	Create(ctx context.Context, actorID uuid.UUID, req crmapp.CreateOpportunityRequest) (*crmapp.OpportunityResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*crmapp.OpportunityResponse, error)
	List(ctx context.Context, filter crmapp.OpportunityListFilter) (*shared.Paginated[crmapp.OpportunityResponse], error)
	Update(ctx context.Context, actorID, id uuid.UUID, req crmapp.UpdateOpportunityRequest) (*crmapp.OpportunityResponse, error)
	ChangeStage(ctx context.Context, actorID, id uuid.UUID, req crmapp.ChangeStageRequest) (*crmapp.OpportunityResponse, error)
	CloseWon(ctx context.Context, actorID, id uuid.UUID) (*crmapp.OpportunityResponse, error)
	CloseLost(ctx context.Context, actorID, id uuid.UUID, req crmapp.CloseLostRequest) (*crmapp.OpportunityResponse, error)
	Reopen(ctx context.Context, actorID, id uuid.UUID) (*crmapp.OpportunityResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	PipelineSummary(ctx context.Context, ownerID *uuid.UUID, currency string) (*crmapp.PipelineSummaryResponse, error)
}

// OpportunityHandler handles sales pipeline endpoints
type OpportunityHandler struct {
	BaseHandler
	opportunities OpportunityService
}

// NewOpportunityHandler creates a new OpportunityHandler
func NewOpportunityHandler(opportunities OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities}
}

// Create godoc
// @ID           createOpportunity
// @Summary      Create an opportunity
// @Description  New opportunities start in the prospecting stage.
// @Tags         opportunities
// @Accept       json
// @Produce      json
// @Param        request body crm.CreateOpportunityRequest true "Opportunity"
// @Success      201 {object} APIResponse[crm.OpportunityResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities [post]
func (h *OpportunityHandler) Create(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	var req crmapp.CreateOpportunityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opportunity, err := h.opportunities.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, opportunity)
}

// GetByID godoc
// @ID           getOpportunity
// @Summary      Get an opportunity by ID
// @Tags         opportunities
// @Produce      json
// @Param        id path string true "Opportunity ID" format(uuid)
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	opportunity, err := h.opportunities.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opportunity)
}

// List godoc
// @ID           listOpportunities
// @Summary      List opportunities
// @Tags         opportunities
// @Produce      json
// @Param        search      query string false "Search by name"
// @Param        stage       query string false "Stage" Enums(prospecting, qualification, proposal, negotiation, closed_won, closed_lost)
// @Param        customer_id query string false "Customer ID" format(uuid)
// @Param        owner_id    query string false "Owner ID" format(uuid)
// @Param        page        query int    false "Page number" default(1)
// @Param        page_size   query int    false "Page size" default(20) maximum(100)
// @Param        order_by    query string false "Order by field"
// @Param        order_dir   query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]crm.OpportunityResponse]
// @Security     BearerAuth
// @Router       /opportunities [get]
func (h *OpportunityHandler) List(c *gin.Context) {
	var filter crmapp.OpportunityListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.opportunities.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Pipeline godoc
// @ID           opportunityPipeline
// @Summary      Pipeline summary
// @Description  Count, total and probability-weighted amount of open opportunities per stage, in one currency.
// @Tags         opportunities
// @Produce      json
// @Param        owner_id query string false "Restrict to one owner" format(uuid)
// @Param        currency query string false "ISO 4217 currency of the summed opportunities" default(USD)
// @Success      200 {object} APIResponse[crm.PipelineSummaryResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/pipeline [get]
func (h *OpportunityHandler) Pipeline(c *gin.Context) {
	var ownerID *uuid.UUID
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.Error(c, http.StatusBadRequest, shared.CodeInvalidInput, "Invalid owner_id format")
			return
		}
		ownerID = &id
	}
	summary, err := h.opportunities.PipelineSummary(c.Request.Context(), ownerID, c.Query("currency"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Update godoc
// @ID           updateOpportunity
// @Summary      Update an opportunity
// @Tags         opportunities
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "Opportunity ID" format(uuid)
// @Param        request body crm.UpdateOpportunityRequest true "Fields to change"
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id} [put]
func (h *OpportunityHandler) Update(c *gin.Context) {
	actOnIDWithBody(&h.BaseHandler, c, h.opportunities.Update)
}

// ChangeStage godoc
// @ID           changeOpportunityStage
// @Summary      Move an opportunity to another stage
// @Description  Moving to closed_won or closed_lost closes the opportunity. closed_lost requires the lose endpoint.
// @Tags         opportunities
// @Accept       json
// @Produce      json
// @Param        id      path string                  true "Opportunity ID" format(uuid)
// @Param        request body crm.ChangeStageRequest true "Target stage"
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id}/stage [put]
func (h *OpportunityHandler) ChangeStage(c *gin.Context) {
	actOnIDWithBody(&h.BaseHandler, c, h.opportunities.ChangeStage)
}

// Win godoc
// @ID           winOpportunity
// @Summary      Close an opportunity as won
// @Tags         opportunities
// @Produce      json
// @Param        id path string true "Opportunity ID" format(uuid)
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id}/win [post]
func (h *OpportunityHandler) Win(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.opportunities.CloseWon)
}

// Lose godoc
// @ID           loseOpportunity
// @Summary      Close an opportunity as lost
// @Tags         opportunities
// @Accept       json
// @Produce      json
// @Param        id      path string                true "Opportunity ID" format(uuid)
// @Param        request body crm.CloseLostRequest true "Loss reason"
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id}/lose [post]
func (h *OpportunityHandler) Lose(c *gin.Context) {
	actOnIDWithBody(&h.BaseHandler, c, h.opportunities.CloseLost)
}

// Reopen godoc
// @ID           reopenOpportunity
// @Summary      Reopen a closed opportunity
// @Tags         opportunities
// @Produce      json
// @Param        id path string true "Opportunity ID" format(uuid)
// @Success      200 {object} APIResponse[crm.OpportunityResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id}/reopen [post]
func (h *OpportunityHandler) Reopen(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.opportunities.Reopen)
}

// Delete godoc
// @ID           deleteOpportunity
// @Summary      Delete an opportunity
// @Tags         opportunities
// @Param        id path string true "Opportunity ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, h.opportunities.Delete)
}
