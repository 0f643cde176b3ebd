package persistence

import (
	"context"
	"fmt"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormOpportunityRepository implements crm.OpportunityRepository using GORM
type GormOpportunityRepository struct {
	baseRepository[models.OpportunityModel, crm.Opportunity]
}

// NewGormOpportunityRepository creates a new GormOpportunityRepository
func NewGormOpportunityRepository(db *gorm.DB) *GormOpportunityRepository {
	return &GormOpportunityRepository{
		baseRepository: newBaseRepository(db, "Opportunity",
			(*models.OpportunityModel).ToDomain,
			models.OpportunityModelFromDomain,
			queryOptions{
				searchColumns: []string{"name"},
				filterColumns: map[string]string{
					"stage":       "stage",
					"customer_id": "customer_id",
					"owner_id":    "owner_id",
				},
				sortFields: OpportunitySortFields,
			}),
	}
}

// Update persists the opportunity, including soft deletes
func (r *GormOpportunityRepository) Update(ctx context.Context, opp *crm.Opportunity) error {
	return r.update(ctx, opp, &opp.BaseAggregateRoot)
}

// CountOpenByCustomer counts the customer's opportunities that are not closed
func (r *GormOpportunityRepository) CountOpenByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.active(ctx).
		Where("customer_id = ? AND stage IN ?", customerID, openStageNames()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count open opportunities: %w", err)
	}
	return count, nil
}

type stageSummaryRow struct {
	Stage    string
	Count    int64
	Total    decimal.Decimal
	Weighted decimal.Decimal
}

// PipelineSummary aggregates open opportunities in one currency per stage.
// Every open stage is returned in pipeline order, with zeros when empty.
func (r *GormOpportunityRepository) PipelineSummary(ctx context.Context, ownerID *uuid.UUID, currency string) ([]crm.StageSummary, error) {
	query := r.active(ctx).
		Select("stage, COUNT(*) AS count, " +
			"COALESCE(SUM(amount), 0) AS total, " +
			"COALESCE(SUM(amount * probability / 100.0), 0) AS weighted").
		Where("stage IN ?", openStageNames()).
		Where("currency = ?", currency)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}

	var rows []stageSummaryRow
	if err := query.Group("stage").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pipeline summary: %w", err)
	}

	byStage := make(map[string]stageSummaryRow, len(rows))
	for _, row := range rows {
		byStage[row.Stage] = row
	}

	summary := make([]crm.StageSummary, 0, len(crm.OpenStages))
	for _, stage := range crm.OpenStages {
		row := byStage[string(stage)]
		summary = append(summary, crm.StageSummary{
			Stage:          stage,
			Count:          row.Count,
			TotalAmount:    row.Total.Round(2),
			WeightedAmount: row.Weighted.Round(2),
		})
	}
	return summary, nil
}

func openStageNames() []string {
	names := make([]string, len(crm.OpenStages))
	for i, stage := range crm.OpenStages {
		names[i] = string(stage)
	}
	return names
}

var _ crm.OpportunityRepository = (*GormOpportunityRepository)(nil)
