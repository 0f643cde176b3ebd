package crm

import (
	"context"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService handles follow-up tasks
type TaskService struct {
	taskRepo        crm.TaskRepository
	customerRepo    crm.CustomerRepository
	leadRepo        crm.LeadRepository
	opportunityRepo crm.OpportunityRepository
	events          shared.EventPublisher
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo crm.TaskRepository,
	customerRepo crm.CustomerRepository,
	leadRepo crm.LeadRepository,
	opportunityRepo crm.OpportunityRepository,
	events shared.EventPublisher,
) *TaskService {
	return &TaskService{
		taskRepo:        taskRepo,
		customerRepo:    customerRepo,
		leadRepo:        leadRepo,
		opportunityRepo: opportunityRepo,
		events:          events,
	}
}

// Create creates a task, optionally attached to an existing record
func (s *TaskService) Create(ctx context.Context, actorID uuid.UUID, req CreateTaskRequest) (*TaskResponse, error) {
	task, err := crm.NewTask(req.Title, crm.TaskPriority(req.Priority), actorID)
	if err != nil {
		return nil, err
	}
	if req.Description != "" || req.DueDate != nil {
		if err := task.UpdateDetails(task.Title, req.Description, req.DueDate, task.Priority, actorID); err != nil {
			return nil, err
		}
	}
	if req.AssigneeID != nil {
		task.Assign(req.AssigneeID, actorID)
	}
	if req.RelatedType != "" || req.RelatedID != nil {
		relatedType := crm.RelatedType(req.RelatedType)
		if err := task.RelateTo(relatedType, req.RelatedID, actorID); err != nil {
			return nil, err
		}
		if err := s.ensureRelatedExists(ctx, task.RelatedType, *task.RelatedID); err != nil {
			return nil, err
		}
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, task)

	logger.L(ctx).Info("task created",
		zap.String("task_id", task.ID.String()),
		zap.String("priority", string(task.Priority)),
	)

	response := ToTaskResponse(task)
	return &response, nil
}

func (s *TaskService) ensureRelatedExists(ctx context.Context, relatedType crm.RelatedType, relatedID uuid.UUID) error {
	var err error
	switch relatedType {
	case crm.RelatedCustomer:
		_, err = s.customerRepo.FindByID(ctx, relatedID)
	case crm.RelatedLead:
		_, err = s.leadRepo.FindByID(ctx, relatedID)
	case crm.RelatedOpportunity:
		_, err = s.opportunityRepo.FindByID(ctx, relatedID)
	}
	return err
}

// GetByID retrieves a task by ID
func (s *TaskService) GetByID(ctx context.Context, taskID uuid.UUID) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	response := ToTaskResponse(task)
	return &response, nil
}

// List retrieves a page of tasks
func (s *TaskService) List(ctx context.Context, filter TaskListFilter) (*shared.Paginated[TaskResponse], error) {
	domainFilter := toDomainFilter(filter.Search, filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	domainFilter = withStringFilter(domainFilter, "status", filter.Status)
	domainFilter = withStringFilter(domainFilter, "priority", filter.Priority)
	domainFilter = withUUIDFilter(domainFilter, "assignee_id", filter.AssigneeID)
	domainFilter = withStringFilter(domainFilter, "related_type", filter.RelatedType)
	domainFilter = withUUIDFilter(domainFilter, "related_id", filter.RelatedID)
	if filter.Overdue {
		domainFilter = domainFilter.With("overdue", true)
	}

	tasks, err := s.taskRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.taskRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(mapItems(tasks, ToTaskResponse), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update applies a partial update to a task
func (s *TaskService) Update(ctx context.Context, actorID, taskID uuid.UUID, req UpdateTaskRequest) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(req.Version, task); err != nil {
		return nil, err
	}

	title, description, dueDate, priority := task.Title, task.Description, task.DueDate, task.Priority
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.DueDate != nil {
		dueDate = req.DueDate
	}
	if req.Priority != nil {
		priority = crm.TaskPriority(*req.Priority)
	}
	if err := task.UpdateDetails(title, description, dueDate, priority, actorID); err != nil {
		return nil, err
	}
	if req.AssigneeID != nil {
		task.Assign(req.AssigneeID, actorID)
	}

	return s.save(ctx, task)
}

// Start moves an open task to in progress
func (s *TaskService) Start(ctx context.Context, actorID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.transition(ctx, taskID, func(t *crm.Task) error { return t.Start(actorID) })
}

// Complete finishes a task
func (s *TaskService) Complete(ctx context.Context, actorID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.transition(ctx, taskID, func(t *crm.Task) error { return t.Complete(actorID) })
}

// Cancel abandons a task
func (s *TaskService) Cancel(ctx context.Context, actorID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.transition(ctx, taskID, func(t *crm.Task) error { return t.Cancel(actorID) })
}

// Reopen puts a finished task back to open
func (s *TaskService) Reopen(ctx context.Context, actorID, taskID uuid.UUID) (*TaskResponse, error) {
	return s.transition(ctx, taskID, func(t *crm.Task) error { return t.Reopen(actorID) })
}

func (s *TaskService) transition(ctx context.Context, taskID uuid.UUID, change func(*crm.Task) error) (*TaskResponse, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := change(task); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("task status changed",
		zap.String("task_id", task.ID.String()),
		zap.String("status", string(task.Status)),
	)
	return s.save(ctx, task)
}

// Delete soft deletes a task
func (s *TaskService) Delete(ctx context.Context, actorID, taskID uuid.UUID) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := task.Delete(actorID); err != nil {
		return err
	}
	return s.taskRepo.Update(ctx, task)
}

func (s *TaskService) save(ctx context.Context, task *crm.Task) (*TaskResponse, error) {
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	publishEvents(ctx, s.events, task)

	response := ToTaskResponse(task)
	return &response, nil
}

// NotifyOverdue publishes a TaskOverdue event for every unfinished task due in
// [from, to). Callers sweep contiguous windows so each task is reported once.
func (s *TaskService) NotifyOverdue(ctx context.Context, from, to time.Time) (int, error) {
	filter := shared.DefaultFilter().
		With("overdue", true).
		With("due_after", from).
		With("due_before", to)
	filter.PageSize = shared.MaxPageSize
	filter.OrderBy = "due_date"
	filter.OrderDir = "asc"

	notified := 0
	for {
		tasks, err := s.taskRepo.FindAll(ctx, filter)
		if err != nil {
			return notified, err
		}
		for i := range tasks {
			task := &tasks[i]
			if !task.IsOverdue(to) {
				continue
			}
			if err := s.events.Publish(ctx, crm.NewTaskOverdueEvent(task)); err != nil {
				return notified, err
			}
			notified++
		}
		if len(tasks) < filter.PageSize {
			break
		}
		filter.Page++
	}

	if notified > 0 {
		logger.L(ctx).Info("overdue tasks notified",
			zap.Int("count", notified),
			zap.Time("from", from),
			zap.Time("to", to),
		)
	}
	return notified, nil
}
