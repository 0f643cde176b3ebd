package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupTracedDB(t *testing.T, cfg config.TelemetryConfig) (*gorm.DB, *tracetest.SpanRecorder, *observer.ObservedLogs) {
	t.Helper()

	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	core, logs := observer.New(zap.WarnLevel)
	require.NoError(t, NewDBTracing(cfg, zap.New(core)).Register(db))
	return db, recorder, logs
}

func TestNewDBTracing_DefaultThreshold(t *testing.T) {
	p := NewDBTracing(config.TelemetryConfig{}, zap.NewNop())
	assert.Equal(t, DefaultSlowQueryThreshold, p.slowQuery)
	assert.False(t, p.logFullSQL)

	p = NewDBTracing(config.TelemetryConfig{DBSlowQueryThresh: time.Second, DBLogFullSQL: true}, zap.NewNop())
	assert.Equal(t, time.Second, p.slowQuery)
	assert.True(t, p.logFullSQL)
}

func TestDBTracing_RecordsQuerySpans(t *testing.T) {
	db, recorder, logs := setupTracedDB(t, config.TelemetryConfig{DBSlowQueryThresh: time.Hour})

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)
	var found []widget
	require.NoError(t, db.WithContext(ctx).Find(&found).Error)

	assert.GreaterOrEqual(t, len(recorder.Ended()), 2)
	assert.Zero(t, logs.Len())
}

func TestDBTracing_LogsSlowQueries(t *testing.T) {
	db, _, logs := setupTracedDB(t, config.TelemetryConfig{DBSlowQueryThresh: time.Nanosecond})

	var found []widget
	require.NoError(t, db.WithContext(context.Background()).Find(&found).Error)

	slow := logs.FilterMessage("slow query").All()
	require.NotEmpty(t, slow)
	assert.Equal(t, "widgets", slow[0].ContextMap()["table"])
}

func TestDBTracing_RegisterTwiceFails(t *testing.T) {
	db, _, _ := setupTracedDB(t, config.TelemetryConfig{})
	assert.Error(t, NewDBTracing(config.TelemetryConfig{}, zap.NewNop()).Register(db))
}
