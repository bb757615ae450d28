// Package scheduler drives the scrape loop: it computes next-due times from
// each adapter's cron expressions, keeps the run ledger, enforces
// single-flight execution and owns the shared browser's lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/adapter"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/pipeline"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/reconcile"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

// Resource is the shared automation resource the scheduler manages. The
// scheduler is its sole owner; adapters only borrow sessions.
type Resource interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Stop()
	Running() bool
	Uptime() time.Duration
}

// Downstream is notified after any run that produced new or modified
// canonical offers. Implementations are idempotent; delivery is
// at-least-once.
type Downstream interface {
	OffersChanged(ctx context.Context, created, modified []int64)
}

// RunRecorder receives run outcomes for operational tooling. May be nil.
type RunRecorder interface {
	RecordRun(ctx context.Context, adapterName string, found, created, modified int, runErr error)
}

type Config struct {
	// Tick is the poll interval driving the loop.
	Tick time.Duration

	// RunTimeout bounds a single adapter run, and with it shutdown latency.
	RunTimeout time.Duration

	// IdleTimeout is how far away the next due run must be for the browser
	// to be torn down between runs.
	IdleTimeout time.Duration

	// RestartAfterRuns and RestartAfterUptime bound memory growth in
	// long-lived browser sessions: whichever is hit first forces a restart
	// even without an idle gap.
	RestartAfterRuns   int
	RestartAfterUptime time.Duration
}

func (c *Config) applyDefaults() {
	if c.Tick <= 0 {
		c.Tick = 5 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 3 * time.Minute
	}
	if c.RestartAfterRuns <= 0 {
		c.RestartAfterRuns = 25
	}
	if c.RestartAfterUptime <= 0 {
		c.RestartAfterUptime = 6 * time.Hour
	}
}

// Scheduler runs at most one adapter at a time process-wide. The Scraping
// state guard, not datastore locking, is what enforces that.
type Scheduler struct {
	cfg        Config
	runs       storage.RunStore
	registry   *adapter.Registry
	pipeline   *pipeline.Pipeline
	reconciler *reconcile.Reconciler
	resource   Resource
	downstream Downstream
	recorder   RunRecorder
	cronParser cron.Parser
	clock      func() time.Time
	logger     *slog.Logger

	mu               sync.Mutex
	scraping         bool
	runsSinceRestart int
}

func New(cfg Config, runs storage.RunStore, registry *adapter.Registry,
	pl *pipeline.Pipeline, rec *reconcile.Reconciler, resource Resource,
	logger *slog.Logger) *Scheduler {

	cfg.applyDefaults()
	return &Scheduler{
		cfg:        cfg,
		runs:       runs,
		registry:   registry,
		pipeline:   pl,
		reconciler: rec,
		resource:   resource,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		clock:      time.Now,
		logger:     logger,
	}
}

// WithDownstream attaches the downstream collaborators.
func (s *Scheduler) WithDownstream(d Downstream) *Scheduler {
	s.downstream = d
	return s
}

// WithRecorder attaches an optional run-outcome recorder.
func (s *Scheduler) WithRecorder(r RunRecorder) *Scheduler {
	s.recorder = r
	return s
}

// WithClock overrides the time source, for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run blocks until ctx is cancelled. On cancellation no new run starts; an
// in-flight run completes (bounded by RunTimeout) before the browser is
// released.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.startup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	defer s.resource.Stop()

	s.logger.Info("scheduler started",
		"tick", s.cfg.Tick, "adapters", len(s.registry.Names()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// startup reconciles the ledger with the active configuration: stale runs
// from previous process lifetimes are dropped, orphaned adapters removed
// and every active adapter gets its next slot scheduled.
func (s *Scheduler) startup(ctx context.Context) error {
	now := s.clock()

	cleaned, err := s.runs.CleanStaleRuns(ctx, now)
	if err != nil {
		return fmt.Errorf("clean stale runs: %w", err)
	}
	if cleaned > 0 {
		s.logger.Info("cleaned stale ledger rows", "count", cleaned)
	}

	for _, a := range s.registry.All() {
		s.scheduleNext(ctx, a, now)
	}

	orphaned, err := s.runs.DeleteOrphanedRuns(ctx, s.registry.Names())
	if err != nil {
		return fmt.Errorf("delete orphaned runs: %w", err)
	}
	if orphaned > 0 {
		s.logger.Info("deleted orphaned ledger rows", "count", orphaned)
	}

	return nil
}

// IsScraping reports whether an adapter run is in flight.
func (s *Scheduler) IsScraping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scraping
}

func (s *Scheduler) setScraping(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v && s.scraping {
		return false
	}
	s.scraping = v
	return true
}

// tick performs one poll: pick the next due run, execute it, reschedule the
// adapter and decide what to do with the browser.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock()

	run, err := s.runs.NextDueRun(ctx, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.maybeTeardown(ctx, now)
			return
		}
		s.logger.Error("next due run lookup failed", "error", err)
		return
	}

	a, ok := s.registry.Get(run.AdapterName)
	if !ok {
		// Adapter removed from configuration since the run was scheduled.
		s.logger.Info("deleting run for unknown adapter", "adapter", run.AdapterName, "run_id", run.ID)
		if err := s.runs.DeleteRun(ctx, run.ID); err != nil {
			s.logger.Error("orphaned run delete failed", "run_id", run.ID, "error", err)
		}
		return
	}

	if !s.setScraping(true) {
		return
	}
	defer s.setScraping(false)

	s.execute(ctx, run, a)
	s.scheduleNext(ctx, a, s.clock())
	s.maybeTeardown(ctx, s.clock())
}

// execute runs one adapter against the shared browser. Whatever happens,
// the run ends up finished: a permanently pending run would starve its
// adapter forever under the single-pending-run invariant.
func (s *Scheduler) execute(ctx context.Context, run *model.ScheduledRun, a adapter.Adapter) {
	started := s.clock()
	if err := s.runs.MarkStarted(ctx, run.ID, started); err != nil {
		s.logger.Error("mark started failed", "run_id", run.ID, "error", err)
	}

	s.logger.Info("run started", "adapter", a.Name(), "run_id", run.ID)

	summary, runErr := s.scrapeAndReconcile(ctx, a)

	// Ledger finalization must survive shutdown cancellation.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.runs.MarkFinished(finishCtx, run.ID, s.clock(),
		summary.Found, len(summary.Created), len(summary.Modified)); err != nil {
		s.logger.Error("mark finished failed", "run_id", run.ID, "error", err)
	}

	s.mu.Lock()
	s.runsSinceRestart++
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("run failed", "adapter", a.Name(), "run_id", run.ID, "error", runErr)
		if browser.IsGone(runErr) {
			// The browser became unusable mid-run; start clean next tick.
			s.logger.Warn("browser unusable, forcing teardown", "adapter", a.Name())
			s.teardown()
		}
	}

	s.logger.Info("run finished", "adapter", a.Name(), "run_id", run.ID,
		"found", summary.Found, "new", len(summary.Created), "modified", len(summary.Modified))

	if s.recorder != nil {
		s.recorder.RecordRun(finishCtx, a.Name(),
			summary.Found, len(summary.Created), len(summary.Modified), runErr)
	}

	if s.downstream != nil && len(summary.Created)+len(summary.Modified) > 0 {
		s.downstream.OffersChanged(finishCtx, summary.Created, summary.Modified)
	}
}

func (s *Scheduler) scrapeAndReconcile(ctx context.Context, a adapter.Adapter) (reconcile.Summary, error) {
	sess, err := s.resource.Acquire(ctx)
	if err != nil {
		return reconcile.Summary{}, fmt.Errorf("acquire browser: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	// An error here means the session became unusable; the batch may still
	// hold whatever was extracted before that and is processed regardless.
	batch, scrapeErr := a.Scrape(runCtx, sess)

	categorized := s.pipeline.Run(batch)
	summary := s.reconciler.ReconcileBatch(context.WithoutCancel(ctx), categorized)
	return summary, scrapeErr
}

// scheduleNext inserts the adapter's next due time per cron expression. The
// ledger merges them into the single pending row, keeping the earliest.
func (s *Scheduler) scheduleNext(ctx context.Context, a adapter.Adapter, after time.Time) {
	for _, expr := range a.Schedule() {
		sched, err := s.cronParser.Parse(expr)
		if err != nil {
			s.logger.Error("invalid schedule expression, skipping",
				"adapter", a.Name(), "expr", expr, "error", err)
			continue
		}

		next := sched.Next(after)
		if _, err := s.runs.ScheduleRun(ctx, a.Name(), next); err != nil {
			s.logger.Error("schedule run failed", "adapter", a.Name(), "error", err)
		}
	}
}

// maybeTeardown releases the browser when the next run is far enough away,
// or proactively restarts it after enough runs or uptime.
func (s *Scheduler) maybeTeardown(ctx context.Context, now time.Time) {
	if !s.resource.Running() {
		return
	}

	s.mu.Lock()
	runsSince := s.runsSinceRestart
	s.mu.Unlock()

	if runsSince >= s.cfg.RestartAfterRuns || s.resource.Uptime() >= s.cfg.RestartAfterUptime {
		s.logger.Info("restarting browser to bound memory growth",
			"runs_since_restart", runsSince, "uptime", s.resource.Uptime().Round(time.Second))
		s.teardown()
		return
	}

	next, err := s.runs.NextPendingRun(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("next pending run lookup failed", "error", err)
			return
		}
		// Nothing scheduled at all; no reason to keep the browser around.
		s.teardown()
		return
	}

	if next.ScheduledAt.Sub(now) > s.cfg.IdleTimeout {
		s.logger.Debug("tearing down idle browser",
			"next_run_in", next.ScheduledAt.Sub(now).Round(time.Second))
		s.teardown()
	}
}

func (s *Scheduler) teardown() {
	s.resource.Stop()
	s.mu.Lock()
	s.runsSinceRestart = 0
	s.mu.Unlock()
}
