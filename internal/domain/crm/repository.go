package crm

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	shared.Repository[Customer]

	// FindByCode finds a customer by its normalized code
	FindByCode(ctx context.Context, code string) (*Customer, error)

	// ExistsByCode checks whether a customer with the code exists
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// ExistsByEmail checks whether another customer uses the email.
	// excludeID is ignored when uuid.Nil.
	ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
}

// LeadRepository defines the interface for lead persistence
type LeadRepository interface {
	shared.Repository[Lead]
}

// OpportunityRepository defines the interface for opportunity persistence
type OpportunityRepository interface {
	shared.Repository[Opportunity]

	// CountOpenByCustomer counts opportunities of a customer that are not closed
	CountOpenByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)

	// PipelineSummary aggregates open opportunities in one currency per stage.
	// ownerID restricts the summary to one owner when not nil.
	PipelineSummary(ctx context.Context, ownerID *uuid.UUID, currency string) ([]StageSummary, error)
}

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	shared.Repository[Task]
}
