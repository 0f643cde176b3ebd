package crm

import (
	"strings"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TaskPriority ranks how urgent a task is
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// IsValid reports whether the priority is known
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the progress of a task
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid reports whether the status is known
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// IsFinished reports whether no more work is expected
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// RelatedType names the kind of record a task is attached to
type RelatedType string

const (
	RelatedCustomer    RelatedType = "customer"
	RelatedLead        RelatedType = "lead"
	RelatedOpportunity RelatedType = "opportunity"
)

// IsValid reports whether the related type is known
func (r RelatedType) IsValid() bool {
	switch r {
	case RelatedCustomer, RelatedLead, RelatedOpportunity:
		return true
	}
	return false
}

// Task is a follow-up activity assigned to a user
type Task struct {
	shared.BaseAggregateRoot
	Title       string
	Description string
	DueDate     *time.Time
	Priority    TaskPriority
	Status      TaskStatus
	AssigneeID  *uuid.UUID
	RelatedType RelatedType
	RelatedID   *uuid.UUID
	CompletedAt *time.Time
}

// NewTask creates an open task with normal priority unless another is given
func NewTask(title string, priority TaskPriority, createdBy uuid.UUID) (*Task, error) {
	title = strings.TrimSpace(title)
	if err := validateRequired("INVALID_TITLE", "Task title", title, 200); err != nil {
		return nil, err
	}
	if priority == "" {
		priority = TaskPriorityNormal
	}
	if !priority.IsValid() {
		return nil, shared.NewDomainError("INVALID_PRIORITY", "Invalid task priority: "+string(priority))
	}
	return &Task{
		BaseAggregateRoot: shared.NewBaseAggregateRootBy(createdBy),
		Title:             title,
		Priority:          priority,
		Status:            TaskStatusOpen,
	}, nil
}

// IsOverdue reports whether an unfinished task is past its due date
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && !t.Status.IsFinished() && t.DueDate.Before(now)
}

// UpdateDetails changes title, description, due date and priority
func (t *Task) UpdateDetails(title, description string, dueDate *time.Time, priority TaskPriority, by uuid.UUID) error {
	title = strings.TrimSpace(title)
	if err := validateRequired("INVALID_TITLE", "Task title", title, 200); err != nil {
		return err
	}
	if !priority.IsValid() {
		return shared.NewDomainError("INVALID_PRIORITY", "Invalid task priority: "+string(priority))
	}
	t.Title = title
	t.Description = description
	t.DueDate = dueDate
	t.Priority = priority
	t.MarkModified(by)
	return nil
}

// Assign sets the responsible user
func (t *Task) Assign(assigneeID *uuid.UUID, by uuid.UUID) {
	if assigneeID != nil && *assigneeID == uuid.Nil {
		assigneeID = nil
	}
	t.AssigneeID = assigneeID
	t.MarkModified(by)
}

// RelateTo attaches the task to a record. An empty type with a nil ID detaches it.
func (t *Task) RelateTo(relatedType RelatedType, relatedID *uuid.UUID, by uuid.UUID) error {
	if relatedID != nil && *relatedID == uuid.Nil {
		relatedID = nil
	}
	if (relatedType == "") != (relatedID == nil) {
		return shared.NewDomainError("INVALID_RELATED", "Related type and related ID must be set together")
	}
	if relatedType != "" && !relatedType.IsValid() {
		return shared.NewDomainError("INVALID_RELATED", "Invalid related type: "+string(relatedType))
	}
	t.RelatedType = relatedType
	t.RelatedID = relatedID
	t.MarkModified(by)
	return nil
}

// Start moves an open task to in progress
func (t *Task) Start(by uuid.UUID) error {
	if t.Status != TaskStatusOpen {
		return shared.NewDomainError(shared.CodeInvalidState, "Only open tasks can be started")
	}
	t.Status = TaskStatusInProgress
	t.MarkModified(by)
	return nil
}

// Complete finishes the task
func (t *Task) Complete(by uuid.UUID) error {
	if t.Status.IsFinished() {
		return shared.NewDomainError(shared.CodeInvalidState, "Task is already "+string(t.Status))
	}
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.MarkModified(by)
	t.AddDomainEvent(NewTaskCompletedEvent(t))
	return nil
}

// Cancel abandons the task
func (t *Task) Cancel(by uuid.UUID) error {
	if t.Status.IsFinished() {
		return shared.NewDomainError(shared.CodeInvalidState, "Task is already "+string(t.Status))
	}
	t.Status = TaskStatusCancelled
	t.MarkModified(by)
	return nil
}

// Reopen puts a finished task back to open
func (t *Task) Reopen(by uuid.UUID) error {
	if !t.Status.IsFinished() {
		return shared.NewDomainError(shared.CodeInvalidState, "Only completed or cancelled tasks can be reopened")
	}
	t.Status = TaskStatusOpen
	t.CompletedAt = nil
	t.MarkModified(by)
	return nil
}

// Delete soft deletes the task
func (t *Task) Delete(by uuid.UUID) error {
	return t.MarkDeleted(by)
}
