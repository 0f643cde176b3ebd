package persistence

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormLeadRepository implements crm.LeadRepository using GORM
type GormLeadRepository struct {
	baseRepository[models.LeadModel, crm.Lead]
}

// NewGormLeadRepository creates a new GormLeadRepository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{
		baseRepository: newBaseRepository(db, "Lead",
			(*models.LeadModel).ToDomain,
			models.LeadModelFromDomain,
			queryOptions{
				searchColumns: []string{"first_name || ' ' || last_name", "email", "company"},
				filterColumns: map[string]string{
					"status":   "status",
					"source":   "source",
					"owner_id": "owner_id",
				},
				sortFields: LeadSortFields,
			}),
	}
}

// Update persists the lead, including soft deletes
func (r *GormLeadRepository) Update(ctx context.Context, lead *crm.Lead) error {
	return r.update(ctx, lead, &lead.BaseAggregateRoot)
}

var _ crm.LeadRepository = (*GormLeadRepository)(nil)
