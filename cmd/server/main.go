package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/enterprisecrm/backend/internal/application/catalog"
	crmapp "github.com/enterprisecrm/backend/internal/application/crm"
	identityapp "github.com/enterprisecrm/backend/internal/application/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/auth"
	"github.com/enterprisecrm/backend/internal/infrastructure/cache"
	"github.com/enterprisecrm/backend/internal/infrastructure/config"
	"github.com/enterprisecrm/backend/internal/infrastructure/event"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/enterprisecrm/backend/internal/infrastructure/persistence"
	"github.com/enterprisecrm/backend/internal/infrastructure/scheduler"
	"github.com/enterprisecrm/backend/internal/infrastructure/scoring"
	"github.com/enterprisecrm/backend/internal/infrastructure/telemetry"
	"github.com/enterprisecrm/backend/internal/interfaces/http/handler"
	"github.com/enterprisecrm/backend/internal/interfaces/http/middleware"
	"github.com/enterprisecrm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "github.com/enterprisecrm/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const version = "1.0.0"

//	@title			Enterprise CRM API
//	@version		1.0
//	@description	Customer, product, lead, opportunity and task management with JWT authentication.

//	@contact.name	API Support

//	@host		localhost:8080
//	@BasePath	/api

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	logsProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = logsProvider.Bridge(log)

	log.Info("Starting CRM Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry first so the database plugin and HTTP middleware see the providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Profiling, cfg.Telemetry.ServiceName, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	profiler.LinkSpans(tracerProvider)

	// Initialize database connection with the zap-backed gorm logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.NewDBTracing(cfg.Telemetry, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Token blacklist and idempotency store: Redis when configured, memory otherwise
	backends := newRedisBackends(ctx, cfg.Redis, log)
	defer backends.close()
	blacklist := backends.blacklist

	// Domain events are dispatched in-process
	bus := event.NewBus(log)
	subscribeEventMetrics(bus, meterProvider, log)

	// Lead scoring rules are compiled once; a bad rule stops startup
	scorer, err := scoring.NewEngine(scoring.RulesFromConfig(cfg.Scoring))
	if err != nil {
		log.Fatal("Invalid lead scoring rules", zap.Error(err))
	}

	// Initialize repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	leadRepo := persistence.NewGormLeadRepository(db.DB)
	opportunityRepo := persistence.NewGormOpportunityRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	uow := persistence.NewUnitOfWork(db.DB)

	// Initialize application services
	jwtService := auth.NewJWTService(cfg.JWT)
	customerService := crmapp.NewCustomerService(customerRepo, opportunityRepo, bus)
	productService := catalogapp.NewProductService(productRepo, bus)
	leadService := crmapp.NewLeadService(leadRepo, customerRepo, opportunityRepo, uow, scorer, bus)
	opportunityService := crmapp.NewOpportunityService(opportunityRepo, customerRepo, bus)
	taskService := crmapp.NewTaskService(taskRepo, customerRepo, leadRepo, opportunityRepo, bus)
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, bus, identityapp.DefaultAuthServiceConfig())
	userService := identityapp.NewUserService(userRepo, jwtService, blacklist, bus)

	// Create the bootstrap administrator on first start
	created, err := identityapp.EnsureAdmin(logger.WithContext(ctx, log), userRepo, identityapp.BootstrapAdmin{
		Username: cfg.Bootstrap.AdminUsername,
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
	})
	if err != nil {
		log.Fatal("Failed to bootstrap admin user", zap.Error(err))
	}
	if created {
		log.Info("Bootstrap admin created", zap.String("username", cfg.Bootstrap.AdminUsername))
	}

	// Background sweep publishing TaskOverdue events
	stopSweep, err := startOverdueSweep(ctx, cfg.Scheduler, taskService, log)
	if err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Setup Gin
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	// Global middleware
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.HTTPMetrics(meterProvider, log))
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Operational endpoints sit outside /api and its rate limit
	checks := map[string]handler.Pinger{"database": db}
	if backends.redis != nil {
		checks["redis"] = backends.redis
	}
	healthHandler := handler.NewHealthHandler(version, checks)
	engine.GET("/health", healthHandler.Live)
	engine.GET("/health/ready", healthHandler.Ready)

	engine.GET("/swagger/*any",
		middleware.SwaggerGuard(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// API routes
	var apiMiddleware []gin.HandlerFunc
	var limiters []*middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, limiter)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	guards := router.Guards{Authenticate: middleware.JWTAuth(authService)}
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		limiters = append(limiters, authLimiter)
		guards.AuthRateLimit = middleware.RateLimitByKey(authLimiter, func(c *gin.Context) string {
			return "auth:" + c.ClientIP()
		})
	}
	if cfg.HTTP.IdempotencyEnabled {
		guards.Idempotency = middleware.Idempotency(middleware.IdempotencyConfig{
			Store:  backends.idempotency,
			TTL:    cfg.HTTP.IdempotencyTTL,
			Logger: log,
		})
	}
	defer func() {
		for _, limiter := range limiters {
			limiter.Stop()
		}
	}()

	r := router.NewRouter(engine, router.WithMiddleware(apiMiddleware...))
	router.RegisterAPI(r, router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService),
		Customers:     handler.NewCustomerHandler(customerService),
		Products:      handler.NewProductHandler(productService),
		Leads:         handler.NewLeadHandler(leadService),
		Opportunities: handler.NewOpportunityHandler(opportunityService),
		Tasks:         handler.NewTaskHandler(taskService),
		Test:          handler.NewTestHandler(),
	}, guards)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopSweep(shutdownCtx)
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}
}

// redisBackends are the stores that move to Redis when it is reachable
type redisBackends struct {
	blacklist   auth.TokenBlacklist
	idempotency cache.ResponseStore
	redis       handler.Pinger
	close       func()
}

// newRedisBackends connects to Redis when enabled. Without Redis, or when
// the connection fails, both stores fall back to memory, which does not
// survive restarts and is not shared between instances.
func newRedisBackends(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) redisBackends {
	inMemory := func() redisBackends {
		store := cache.NewResponseStore(nil, log)
		return redisBackends{
			blacklist:   auth.NewInMemoryTokenBlacklist(),
			idempotency: store,
			close:       func() { _ = store.Close() },
		}
	}

	if !cfg.Enabled {
		log.Info("Redis disabled, using in-memory token blacklist")
		return inMemory()
	}

	client, err := auth.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(err))
		return inMemory()
	}
	log.Info("Redis connected", zap.String("addr", cfg.Addr()))

	blacklist := auth.NewRedisTokenBlacklist(client)
	return redisBackends{
		blacklist:   blacklist,
		idempotency: cache.NewResponseStore(client, log),
		redis:       blacklist,
		close: func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		},
	}
}

// subscribeEventMetrics counts published domain events by type
func subscribeEventMetrics(bus *event.Bus, mp *telemetry.MeterProvider, log *zap.Logger) {
	if !mp.IsEnabled() {
		return
	}
	counter, err := telemetry.NewCounter(mp.Meter("crm.events"),
		"crm_domain_events_total", "Domain events published", "{event}")
	if err != nil {
		log.Warn("Domain event metrics unavailable", zap.Error(err))
		return
	}
	bus.Subscribe(func(ctx context.Context, e shared.DomainEvent) error {
		counter.Inc(ctx,
			attribute.String("event_type", e.EventType()),
			attribute.String("aggregate_type", e.AggregateType()),
		)
		return nil
	})
}

// startOverdueSweep runs TaskService.NotifyOverdue over contiguous time windows.
// The returned function stops the trigger and then the scheduler.
func startOverdueSweep(ctx context.Context, cfg config.SchedulerConfig, tasks *crmapp.TaskService, log *zap.Logger) (func(context.Context), error) {
	if !cfg.Enabled {
		log.Info("Scheduler disabled")
		return func(context.Context) {}, nil
	}

	sched, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
	}, scheduler.JobFunc(func(ctx context.Context, job *scheduler.Job) error {
		_, err := tasks.NotifyOverdue(logger.WithContext(ctx, log), job.WindowStart, job.WindowEnd)
		return err
	}), log)
	if err != nil {
		return nil, err
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}

	trigger := scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
		JobName:  "task_overdue_sweep",
		Interval: cfg.OverdueCheckInterval,
		Lookback: cfg.OverdueCheckInterval,
	}, sched, log)
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(ctx)
		return nil, err
	}

	return func(ctx context.Context) {
		if err := trigger.Stop(ctx); err != nil {
			log.Error("Overdue sweep trigger shutdown failed", zap.Error(err))
		}
		if err := sched.Stop(ctx); err != nil {
			log.Error("Scheduler shutdown failed", zap.Error(err))
		}
	}, nil
}
