// Package engine orchestrates a load-test run: preflight, resource
// monitoring, population ramp, aggregation, and final report assembly.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stampede/internal/executor"
	"stampede/internal/loadgen"
	"stampede/internal/metrics"
	"stampede/internal/monitor"
	"stampede/internal/report"
	"stampede/internal/workload"
)

// Options configures a run.
type Options struct {
	// Scenario is the run's name, used in report metadata.
	Scenario string

	// Profile is the validated workload profile.
	Profile *workload.Profile

	// Target is the base URL of the system under test.
	Target string

	// AuthToken is an optional bearer credential passed through to the target.
	AuthToken string

	// RequestTimeout bounds each request's wait for a response.
	RequestTimeout time.Duration

	// Thresholds is the breach-detection table.
	Thresholds metrics.Thresholds

	// MonitorInterval is the resource sampling interval (default 1s).
	MonitorInterval time.Duration

	// Logger receives run progress and failures. Nil means no logging.
	Logger *zap.Logger
}

// Engine runs one self-contained measurement session.
type Engine struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Engine

	scheduler *loadgen.Scheduler
	mu        sync.RWMutex
	running   bool
}

// Status is a live view for progress display.
type Status struct {
	Elapsed    time.Duration
	Duration   time.Duration
	Population int
	Target     int
	Snapshot   *metrics.Snapshot
}

// New validates options and creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Profile == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{opts: opts, logger: opts.Logger}, nil
}

// Run executes the session and returns the final report. Per-request and
// per-sample failures are recorded and never abort the run; the only fatal
// condition is an unreachable target at preflight, which yields no report.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	// Preflight: no measurement is possible against an unreachable target.
	if err := executor.Preflight(ctx, e.opts.Target, e.opts.RequestTimeout); err != nil {
		return nil, err
	}

	engine := metrics.NewEngine(e.opts.Thresholds)
	exec := executor.New(executor.Config{
		BaseURL:             e.opts.Target,
		AuthToken:           e.opts.AuthToken,
		Timeout:             e.opts.RequestTimeout,
		MaxIdleConnsPerHost: 200,
	}, engine)
	dispatcher := workload.NewDispatcher(e.opts.Profile)

	scheduler := loadgen.NewScheduler(e.opts.Profile, dispatcher, exec, engine, e.logger)

	e.mu.Lock()
	e.metrics = engine
	e.scheduler = scheduler
	e.mu.Unlock()

	mon := monitor.New(engine, e.logger)
	mon.Start(e.opts.MonitorInterval)

	e.logger.Info("starting run",
		zap.String("scenario", e.opts.Scenario),
		zap.String("target", e.opts.Target),
		zap.Int("users", e.opts.Profile.Users),
		zap.Int("spawnRate", e.opts.Profile.SpawnRate),
		zap.Duration("duration", e.opts.Profile.Duration))

	err := scheduler.Start(ctx)

	mon.Stop()
	engine.Stop()

	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	rep := report.Finalize(engine, report.Meta{
		Scenario: e.opts.Scenario,
		Target:   e.opts.Target,
		Profile:  *e.opts.Profile,
	}, time.Now())

	e.logger.Info("run complete",
		zap.Int64("requests", rep.Snapshot.TotalRequests),
		zap.Float64("errorRate", rep.Snapshot.ErrorRate),
		zap.Int("breaches", len(rep.Snapshot.Breaches)))

	return rep, nil
}

// Stop requests a graceful shutdown of the current run.
func (e *Engine) Stop() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status returns a live view of the run for progress display. Safe to call
// concurrently with Run; before the run starts it returns zero values.
func (e *Engine) Status() Status {
	e.mu.RLock()
	engine := e.metrics
	scheduler := e.scheduler
	e.mu.RUnlock()

	st := Status{
		Duration: e.opts.Profile.Duration,
		Target:   e.opts.Profile.Users,
	}
	if engine != nil {
		st.Snapshot = engine.Snapshot()
		st.Elapsed = st.Snapshot.Elapsed
	}
	if scheduler != nil {
		st.Population = scheduler.CurrentPopulation()
	}
	return st
}
