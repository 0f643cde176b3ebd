// Package event dispatches domain events inside the process.
package event

import (
	"context"
	"sync"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// HandlerFunc reacts to a published domain event
type HandlerFunc func(ctx context.Context, event shared.DomainEvent) error

// Bus logs every published event and runs the handlers subscribed to its
// type synchronously. A failing or panicking handler is logged and does not
// stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	wildcard []HandlerFunc
	logger   *zap.Logger
}

// NewBus creates an empty in-process bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
		logger:   logger,
	}
}

// Subscribe registers fn for the given event types, or for every event when none are given
func (b *Bus) Subscribe(fn HandlerFunc, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, fn)
		return
	}
	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], fn)
	}
}

// Publish implements shared.EventPublisher
func (b *Bus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		b.logEvent(ctx, event)
		for _, handler := range b.handlersFor(event.EventType()) {
			b.dispatch(ctx, handler, event)
		}
	}
	return nil
}

func (b *Bus) logEvent(ctx context.Context, event shared.DomainEvent) {
	log := b.logger
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	log.Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
}

func (b *Bus) handlersFor(eventType string) []HandlerFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]HandlerFunc, 0, len(b.handlers[eventType])+len(b.wildcard))
	result = append(result, b.handlers[eventType]...)
	return append(result, b.wildcard...)
}

func (b *Bus) dispatch(ctx context.Context, handler HandlerFunc, event shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Error("event handler failed",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	}
}

var _ shared.EventPublisher = (*Bus)(nil)
