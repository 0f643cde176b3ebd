package persistence

import (
	"context"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTaskRepository implements crm.TaskRepository using GORM
type GormTaskRepository struct {
	baseRepository[models.TaskModel, crm.Task]
}

// NewGormTaskRepository creates a new GormTaskRepository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{
		baseRepository: newBaseRepository(db, "Task",
			(*models.TaskModel).ToDomain,
			models.TaskModelFromDomain,
			queryOptions{
				searchColumns: []string{"title", "description"},
				filterColumns: map[string]string{
					"status":       "status",
					"priority":     "priority",
					"assignee_id":  "assignee_id",
					"related_type": "related_type",
					"related_id":   "related_id",
				},
				filterFuncs: map[string]filterFunc{
					"overdue":    overdueFilter,
					"due_after":  dueDateFilter("due_date >= ?"),
					"due_before": dueDateFilter("due_date < ?"),
				},
				sortFields: TaskSortFields,
			}),
	}
}

// overdueFilter keeps unfinished tasks whose due date has passed
func overdueFilter(db *gorm.DB, value any) *gorm.DB {
	if overdue, ok := value.(bool); !ok || !overdue {
		return db
	}
	return db.Where("due_date < ? AND status IN ?", time.Now(),
		[]string{string(crm.TaskStatusOpen), string(crm.TaskStatusInProgress)})
}

// dueDateFilter compares due_date with a time.Time filter value
func dueDateFilter(clause string) filterFunc {
	return func(db *gorm.DB, value any) *gorm.DB {
		at, ok := value.(time.Time)
		if !ok || at.IsZero() {
			return db
		}
		return db.Where(clause, at)
	}
}

// Update persists the task, including soft deletes
func (r *GormTaskRepository) Update(ctx context.Context, task *crm.Task) error {
	return r.update(ctx, task, &task.BaseAggregateRoot)
}

var _ crm.TaskRepository = (*GormTaskRepository)(nil)
