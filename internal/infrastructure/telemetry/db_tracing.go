package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold applies when the configuration leaves it unset
const DefaultSlowQueryThreshold = 200 * time.Millisecond

type queryStartKey struct{}

// DBTracing adds SQL spans through otelgorm and flags slow or failed queries
// on the active span.
type DBTracing struct {
	logFullSQL bool
	slowQuery  time.Duration
	logger     *zap.Logger
}

// NewDBTracing creates the gorm tracing plugin from telemetry settings
func NewDBTracing(cfg config.TelemetryConfig, logger *zap.Logger) *DBTracing {
	slow := cfg.DBSlowQueryThresh
	if slow <= 0 {
		slow = DefaultSlowQueryThreshold
	}
	return &DBTracing{logFullSQL: cfg.DBLogFullSQL, slowQuery: slow, logger: logger}
}

// Register installs otelgorm and the timing callbacks on db
func (p *DBTracing) Register(db *gorm.DB) error {
	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !p.logFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("crm_timing:before_create", p.before) },
		func() error { return cb.Query().Before("gorm:query").Register("crm_timing:before_query", p.before) },
		func() error { return cb.Update().Before("gorm:update").Register("crm_timing:before_update", p.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("crm_timing:before_delete", p.before) },
		func() error { return cb.Row().Before("gorm:row").Register("crm_timing:before_row", p.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("crm_timing:before_raw", p.before) },
		func() error { return cb.Create().After("gorm:create").Register("crm_timing:after_create", p.after) },
		func() error { return cb.Query().After("gorm:query").Register("crm_timing:after_query", p.after) },
		func() error { return cb.Update().After("gorm:update").Register("crm_timing:after_update", p.after) },
		func() error { return cb.Delete().After("gorm:delete").Register("crm_timing:after_delete", p.after) },
		func() error { return cb.Row().After("gorm:row").Register("crm_timing:after_row", p.after) },
		func() error { return cb.Raw().After("gorm:raw").Register("crm_timing:after_raw", p.after) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.logFullSQL),
		zap.Duration("slow_query_threshold", p.slowQuery),
	)
	return nil
}

func (p *DBTracing) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracing) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	recording := span.IsRecording()

	if recording {
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
		}
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed <= p.slowQuery {
		return
	}
	if recording {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
	p.logger.Warn("slow query",
		zap.String("table", db.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", p.slowQuery),
	)
}
