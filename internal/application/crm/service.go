package crm

import (
	"context"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// checkVersion rejects an update made against a stale read.
// A nil expected version skips the check.
func checkVersion(expected *int, agg shared.AggregateRoot) error {
	if expected != nil && *expected != agg.GetVersion() {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// publishEvents hands pending events to the publisher. The change is already
// committed at this point, so a publish failure is logged and not returned.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, agg shared.AggregateRoot) {
	if err := shared.PublishAndClear(ctx, publisher, agg); err != nil {
		logger.L(ctx).Error("failed to publish domain events",
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Error(err),
		)
	}
}

// withUUIDFilter adds key=value to the filter when value is a UUID.
// Request binding validates the format, so unparsable values are ignored.
func withUUIDFilter(filter shared.Filter, key, value string) shared.Filter {
	if value == "" {
		return filter
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return filter
	}
	return filter.With(key, id)
}

// withStringFilter adds key=value to the filter when value is not empty
func withStringFilter(filter shared.Filter, key, value string) shared.Filter {
	if value == "" {
		return filter
	}
	return filter.With(key, value)
}
