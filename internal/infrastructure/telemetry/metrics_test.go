package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/enterprisecrm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	// Tracing on but metrics off still yields a no-op provider
	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{
		Enabled:        true,
		MetricsEnabled: false,
		ServiceName:    "crm-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMeterProvider_NilIsSafe(t *testing.T) {
	var mp *telemetry.MeterProvider

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
}

func TestNewMeterProviderWithReader_RecordsInstruments(t *testing.T) {
	ctx := context.Background()
	previous := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader("crm-test", reader, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	meter := mp.Meter("test")
	counter, err := telemetry.NewCounter(meter, "leads_scored_total", "Scored leads", "{lead}")
	require.NoError(t, err)
	hist, err := telemetry.NewHistogram(meter, "op_seconds", "Op latency", "s", telemetry.HTTPDurationBuckets)
	require.NoError(t, err)

	counter.Inc(ctx)
	counter.Inc(ctx)
	hist.RecordDuration(ctx, 30*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	sum, ok := byName["leads_scored_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	h, ok := byName["op_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)

	assert.NoError(t, mp.Shutdown(ctx))
}
