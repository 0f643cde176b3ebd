package event

import (
	"context"
	"errors"
	"testing"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Customer", uuid.New())}
}

func newObservedBus() (*Bus, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return NewBus(zap.New(core)), logs
}

func TestBus_PublishLogsEvents(t *testing.T) {
	bus, logs := newObservedBus()
	ctx := logger.WithRequestID(context.Background(), zap.NewNop(), "req-1")

	evt := newTestEvent("CustomerCreated")
	require.NoError(t, bus.Publish(ctx, evt))

	entries := logs.FilterMessage("domain event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "CustomerCreated", fields["event_type"])
	assert.Equal(t, "Customer", fields["aggregate_type"])
	assert.Equal(t, evt.AggregateID().String(), fields["aggregate_id"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestBus_DispatchesByType(t *testing.T) {
	bus, _ := newObservedBus()

	var typed, all []string
	bus.Subscribe(func(_ context.Context, e shared.DomainEvent) error {
		typed = append(typed, e.EventType())
		return nil
	}, "LeadConverted")
	bus.Subscribe(func(_ context.Context, e shared.DomainEvent) error {
		all = append(all, e.EventType())
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("LeadConverted"), newTestEvent("TaskCompleted")))

	assert.Equal(t, []string{"LeadConverted"}, typed)
	assert.Equal(t, []string{"LeadConverted", "TaskCompleted"}, all)
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus, logs := newObservedBus()

	called := false
	bus.Subscribe(func(context.Context, shared.DomainEvent) error { panic("boom") }, "X")
	bus.Subscribe(func(context.Context, shared.DomainEvent) error { return errors.New("nope") }, "X")
	bus.Subscribe(func(context.Context, shared.DomainEvent) error {
		called = true
		return nil
	}, "X")

	assert.NoError(t, bus.Publish(context.Background(), newTestEvent("X")))
	assert.True(t, called)
	assert.Equal(t, 1, logs.FilterMessage("event handler panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}

func TestPublishAndClear(t *testing.T) {
	bus, logs := newObservedBus()
	agg := shared.NewBaseAggregateRoot()
	agg.AddDomainEvent(newTestEvent("A"))
	agg.AddDomainEvent(newTestEvent("B"))

	require.NoError(t, shared.PublishAndClear(context.Background(), bus, &agg))

	assert.Empty(t, agg.GetDomainEvents())
	assert.Equal(t, 2, logs.FilterMessage("domain event").Len())
}
