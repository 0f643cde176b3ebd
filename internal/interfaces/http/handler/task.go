package handler

import (
	"context"

	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaskService is the task use-case surface the handler needs
type TaskService interface {
	Create(ctx context.Context, actorID uuid.UUID, req crmapp.CreateTaskRequest) (*crmapp.TaskResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*crmapp.TaskResponse, error)
	List(ctx context.Context, filter crmapp.TaskListFilter) (*shared.Paginated[crmapp.TaskResponse], error)
	Update(ctx context.Context, actorID, id uuid.UUID, req crmapp.UpdateTaskRequest) (*crmapp.TaskResponse, error)
	Start(ctx context.Context, actorID, id uuid.UUID) (*crmapp.TaskResponse, error)
	Complete(ctx context.Context, actorID, id uuid.UUID) (*crmapp.TaskResponse, error)
	Cancel(ctx context.Context, actorID, id uuid.UUID) (*crmapp.TaskResponse, error)
	Reopen(ctx context.Context, actorID, id uuid.UUID) (*crmapp.TaskResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

// TaskHandler handles task endpoints
type TaskHandler struct {
	BaseHandler
	tasks TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create godoc
// @ID           createTask
// @Summary      Create a task
// @Description  related_type and related_id must be given together and point at an existing record.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body crm.CreateTaskRequest true "Task"
// @Success      201 {object} APIResponse[crm.TaskResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actorID, ok := h.ActorID(c)
	if !ok {
		return
	}
	var req crmapp.CreateTaskRequest
	if !h.BindJSON(c, &req) {
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, task)
}

// GetByID godoc
// @ID           getTask
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// List godoc
// @ID           listTasks
// @Summary      List tasks
// @Tags         tasks
// @Produce      json
// @Param        search       query string false "Search by title"
// @Param        status       query string false "Status" Enums(open, in_progress, completed, cancelled)
// @Param        priority     query string false "Priority" Enums(low, normal, high, urgent)
// @Param        assignee_id  query string false "Assignee ID" format(uuid)
// @Param        related_type query string false "Related record type" Enums(customer, lead, opportunity)
// @Param        related_id   query string false "Related record ID" format(uuid)
// @Param        overdue      query bool   false "Only overdue tasks"
// @Param        page         query int    false "Page number" default(1)
// @Param        page_size    query int    false "Page size" default(20) maximum(100)
// @Param        order_by     query string false "Order by field"
// @Param        order_dir    query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]crm.TaskResponse]
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	var filter crmapp.TaskListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// Update godoc
// @ID           updateTask
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id      path string                 true "Task ID" format(uuid)
// @Param        request body crm.UpdateTaskRequest true "Fields to change"
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	actOnIDWithBody(&h.BaseHandler, c, h.tasks.Update)
}

// Start godoc
// @ID           startTask
// @Summary      Start working on a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/start [post]
func (h *TaskHandler) Start(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.tasks.Start)
}

// Complete godoc
// @ID           completeTask
// @Summary      Complete a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.tasks.Complete)
}

// Cancel godoc
// @ID           cancelTask
// @Summary      Cancel a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/cancel [post]
func (h *TaskHandler) Cancel(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.tasks.Cancel)
}

// Reopen godoc
// @ID           reopenTask
// @Summary      Reopen a completed or cancelled task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[crm.TaskResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/reopen [post]
func (h *TaskHandler) Reopen(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.tasks.Reopen)
}

// Delete godoc
// @ID           deleteTask
// @Summary      Delete a task
// @Tags         tasks
// @Param        id path string true "Task ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, h.tasks.Delete)
}
