package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTriggerConfig holds configuration for an interval trigger
type IntervalTriggerConfig struct {
	// JobName names the submitted jobs
	JobName string
	// Interval is how often a job is submitted
	Interval time.Duration
	// Lookback sets the start of the first window before Start was called
	Lookback time.Duration
}

// IntervalTrigger submits a job every Interval. Consecutive jobs cover
// contiguous windows: each starts where the last accepted one ended, so a
// submission rejected by a full queue is folded into the next window.
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	windowStart time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	if t.config.Interval <= 0 {
		return ErrInvalidConfig
	}
	t.isRunning = true
	t.windowStart = t.now().Add(-t.config.Lookback)

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.String("job", t.config.JobName),
		zap.Duration("interval", t.config.Interval),
	)
	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped", zap.String("job", t.config.JobName))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

// fire submits a job for the window since the last accepted submission
func (t *IntervalTrigger) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.now()
	if !end.After(t.windowStart) {
		return
	}
	job := t.scheduler.NewJob(t.config.JobName, t.windowStart, end)
	if err := t.scheduler.Submit(job); err != nil {
		t.logger.Warn("Failed to submit scheduled job",
			zap.String("job", t.config.JobName),
			zap.Error(err),
		)
		return
	}
	t.windowStart = end
}
