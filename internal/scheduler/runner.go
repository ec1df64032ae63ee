package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"finance_ledger/pkg/metrics"
)

// Job is one scheduler pass. It must respect ctx and return when the work
// for this tick is done.
type Job func(ctx context.Context) error

// Runner fires a job on a fixed interval. A per-runner latch guarantees the
// job is never re-entered: a tick that arrives while the previous pass is
// still running is skipped and logged, not queued.
type Runner struct {
	name     string
	interval time.Duration
	job      Job
	running  atomic.Bool
	metrics  *metrics.Collector
	logger   *slog.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewRunner(name string, interval time.Duration, job Job, collector *metrics.Collector, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		name:     name,
		interval: interval,
		job:      job,
		metrics:  collector,
		logger:   logger,
	}
}

// Start launches the tick loop. It returns immediately; Stop waits for the
// loop and any in-flight pass to finish.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("Scheduler started",
			slog.String("scheduler", r.name),
			slog.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				r.RunOnce(ctx)
			case <-ctx.Done():
				r.logger.Info("Scheduler stopping", slog.String("scheduler", r.name))
				return
			}
		}
	}()
}

// RunOnce executes one guarded pass. Manual triggers go through the same
// latch as ticker fires, so a pass can never overlap itself.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("Skipping tick, previous run still in progress",
			slog.String("scheduler", r.name))
		return false
	}
	defer r.running.Store(false)

	start := time.Now()
	if err := r.job(ctx); err != nil {
		r.logger.Error("Scheduler run failed",
			slog.String("scheduler", r.name),
			slog.String("error", err.Error()))
	}
	r.metrics.RecordSchedulerRun(r.name, time.Since(start))

	return true
}

// Stop cancels the loop and blocks until the current pass, if any, returns.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
