package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	csvimport "github.com/enterprisecrm/backend/internal/infrastructure/import"
	"github.com/enterprisecrm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadService is the lead use-case surface the handler needs
type LeadService interface {
	Create(ctx context.Context, actorID uuid.UUID, req crmapp.CreateLeadRequest) (*crmapp.LeadResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*crmapp.LeadResponse, error)
	List(ctx context.Context, filter crmapp.LeadListFilter) (*shared.Paginated[crmapp.LeadResponse], error)
	Update(ctx context.Context, actorID, id uuid.UUID, req crmapp.UpdateLeadRequest) (*crmapp.LeadResponse, error)
	MarkContacted(ctx context.Context, actorID, id uuid.UUID) (*crmapp.LeadResponse, error)
	Qualify(ctx context.Context, actorID, id uuid.UUID) (*crmapp.LeadResponse, error)
	Disqualify(ctx context.Context, actorID, id uuid.UUID, req crmapp.DisqualifyLeadRequest) (*crmapp.LeadResponse, error)
	Rescore(ctx context.Context, actorID, id uuid.UUID) (*crmapp.LeadResponse, error)
	Convert(ctx context.Context, actorID, id uuid.UUID, req crmapp.ConvertLeadRequest) (*crmapp.ConvertLeadResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
	Import(ctx context.Context, actorID uuid.UUID, r io.Reader) (*crmapp.LeadImportResult, error)
}

// LeadHandler handles lead endpoints
type LeadHandler struct {
	BaseHandler
	leads LeadService
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leads LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// Create godoc
// @ID           createLead
// @Summary      Create a lead
// @Description  The lead is scored against the configured rules on creation.
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        request body crm.CreateLeadRequest true "Lead"
// @Success      201 {object} APIResponse[crm.LeadResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	var req crmapp.CreateLeadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, lead)
}

// GetByID godoc
// @ID           getLead
// @Summary      Get a lead by ID
// @Tags         leads
// @Produce      json
// @Param        id path string true "Lead ID" format(uuid)
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id} [get]
func (h *LeadHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	lead, err := h.leads.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lead)
}

// List godoc
// @ID           listLeads
// @Summary      List leads
// @Tags         leads
// @Produce      json
// @Param        search    query string false "Search by name, email or company"
// @Param        status    query string false "Status" Enums(new, contacted, qualified, unqualified, converted)
// @Param        source    query string false "Source" Enums(web, referral, event, cold_call, partner, other)
// @Param        owner_id  query string false "Owner ID" format(uuid)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Param        order_by  query string false "Order by field"
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]crm.LeadResponse]
// @Security     BearerAuth
// @Router       /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	var filter crmapp.LeadListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.leads.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Update godoc
// @ID           updateLead
// @Summary      Update a lead
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        id      path string                 true "Lead ID" format(uuid)
// @Param        request body crm.UpdateLeadRequest true "Fields to change"
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req crmapp.UpdateLeadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lead)
}

// Contact godoc
// @ID           contactLead
// @Summary      Mark a new lead as contacted
// @Tags         leads
// @Produce      json
// @Param        id path string true "Lead ID" format(uuid)
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id}/contact [post]
func (h *LeadHandler) Contact(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.leads.MarkContacted)
}

// Qualify godoc
// @ID           qualifyLead
// @Summary      Qualify a lead
// @Tags         leads
// @Produce      json
// @Param        id path string true "Lead ID" format(uuid)
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id}/qualify [post]
func (h *LeadHandler) Qualify(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.leads.Qualify)
}

// Disqualify godoc
// @ID           disqualifyLead
// @Summary      Disqualify a lead
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        id      path string                     true  "Lead ID" format(uuid)
// @Param        request body crm.DisqualifyLeadRequest false "Reason"
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id}/disqualify [post]
func (h *LeadHandler) Disqualify(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req crmapp.DisqualifyLeadRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Disqualify(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lead)
}

// Rescore godoc
// @ID           rescoreLead
// @Summary      Re-run lead scoring
// @Tags         leads
// @Produce      json
// @Param        id path string true "Lead ID" format(uuid)
// @Success      200 {object} APIResponse[crm.LeadResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id}/rescore [post]
func (h *LeadHandler) Rescore(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.leads.Rescore)
}

// Convert godoc
// @ID           convertLead
// @Summary      Convert a qualified lead
// @Description  Creates a customer and, when opportunity_name is set, an opportunity in one transaction.
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        id      path string                  true "Lead ID" format(uuid)
// @Param        request body crm.ConvertLeadRequest true "Conversion"
// @Success      201 {object} APIResponse[crm.ConvertLeadResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id}/convert [post]
func (h *LeadHandler) Convert(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req crmapp.ConvertLeadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.leads.Convert(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Delete godoc
// @ID           deleteLead
// @Summary      Delete a lead
// @Tags         leads
// @Param        id path string true "Lead ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.leads.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Import godoc
// @ID           importLeads
// @Summary      Import leads from CSV
// @Description  Creates a lead for every valid row. first_name and last_name columns are required;
// @Description  email, phone, company, title, source, notes and owner_id are optional.
// @Description  Invalid rows are reported per line and skipped.
// @Tags         leads
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "CSV file, UTF-8 or UTF-16 with BOM"
// @Success      200 {object} APIResponse[crm.LeadImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /leads/import [post]
func (h *LeadHandler) Import(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidImportFile, "A CSV file is required in the file field")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer file.Close()

	result, err := h.leads.Import(c.Request.Context(), actorID, file)
	if err != nil {
		if csvimport.IsFileError(err) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidImportFile, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
