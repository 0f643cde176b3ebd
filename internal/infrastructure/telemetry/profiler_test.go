package telemetry_test

import (
	"context"
	"testing"

	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/enterprisecrm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(config.ProfilingConfig{
		Enabled:       false,
		ServerAddress: "http://localhost:4040",
		SpanProfiles:  true,
	}, "crm-test", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresServerAddress(t *testing.T) {
	p, err := telemetry.NewProfiler(config.ProfilingConfig{Enabled: true}, "crm-test", zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestProfiler_LinkSpansNeedsEnabledProfiler(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	tp, err := telemetry.NewTracerProviderWithExporter(config.TelemetryConfig{
		ServiceName:   "crm-test",
		SamplingRatio: 1.0,
	}, tracetest.NewInMemoryExporter(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	installed := otel.GetTracerProvider()

	p, err := telemetry.NewProfiler(config.ProfilingConfig{SpanProfiles: true}, "crm-test", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.LinkSpans(tp))
	assert.Same(t, installed, otel.GetTracerProvider())
}
