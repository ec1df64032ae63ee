// Package scheduler drives the recurring subsystems: due auto-payments,
// due auto-incomes, generic scheduled tasks, upcoming-run reminders and
// execution-log retention. Each concern gets its own non-reentrant runner so
// a slow pass in one never delays the others.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"finance_ledger/internal/autoincome"
	"finance_ledger/internal/autopay"
	"finance_ledger/internal/repository"
	"finance_ledger/internal/schedtask"
	"finance_ledger/pkg/metrics"
)

// logRetention bounds the execution-log table; entries older than this are
// purged by the cleanup pass.
const logRetention = 30 * 24 * time.Hour

type Config struct {
	PaymentInterval  time.Duration
	IncomeInterval   time.Duration
	TaskInterval     time.Duration
	ReminderInterval time.Duration
	CleanupInterval  time.Duration
}

// Scheduler bundles the runners over the three execution services.
type Scheduler struct {
	payments *autopay.Service
	incomes  *autoincome.Service
	tasks    *schedtask.Service
	logs     repository.ExecutionLogRepository
	runners  []*Runner
	logger   *slog.Logger
}

func New(
	cfg Config,
	payments *autopay.Service,
	incomes *autoincome.Service,
	tasks *schedtask.Service,
	logs repository.ExecutionLogRepository,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		payments: payments,
		incomes:  incomes,
		tasks:    tasks,
		logs:     logs,
		logger:   logger,
	}

	s.runners = []*Runner{
		NewRunner("payments", cfg.PaymentInterval, s.runPayments, collector, logger),
		NewRunner("incomes", cfg.IncomeInterval, s.runIncomes, collector, logger),
		NewRunner("tasks", cfg.TaskInterval, s.runTasks, collector, logger),
		NewRunner("reminders", cfg.ReminderInterval, s.runReminders, collector, logger),
		NewRunner("log_cleanup", cfg.CleanupInterval, s.runLogCleanup, collector, logger),
	}

	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	for _, r := range s.runners {
		r.Start(ctx)
	}
}

func (s *Scheduler) Stop() {
	for _, r := range s.runners {
		r.Stop()
	}
	s.logger.Info("All schedulers stopped")
}

// TriggerPayments runs the payment pass immediately through the same latch
// as the ticker. Returns false when a pass was already in progress.
func (s *Scheduler) TriggerPayments(ctx context.Context) bool {
	return s.runnerByName("payments").RunOnce(ctx)
}

func (s *Scheduler) runnerByName(name string) *Runner {
	for _, r := range s.runners {
		if r.name == name {
			return r
		}
	}
	return nil
}

// runPayments executes every due auto-payment. Failures are isolated per
// definition so one broken payment never blocks the rest of the batch.
func (s *Scheduler) runPayments(ctx context.Context) error {
	due, err := s.payments.PendingPayments(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info("Processing due auto payments", slog.Int("count", len(due)))

	for _, payment := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.payments.Execute(ctx, payment.ID); err != nil {
			s.logger.Error("Auto payment execution failed",
				slog.String("payment_id", payment.ID),
				slog.String("name", payment.Name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Scheduler) runIncomes(ctx context.Context) error {
	due, err := s.incomes.PendingIncomes(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info("Processing due auto incomes", slog.Int("count", len(due)))

	for _, income := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.incomes.Execute(ctx, income.ID); err != nil {
			s.logger.Error("Auto income execution failed",
				slog.String("income_id", income.ID),
				slog.String("name", income.Name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Scheduler) runTasks(ctx context.Context) error {
	due, err := s.tasks.PendingTasks(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info("Processing due scheduled tasks", slog.Int("count", len(due)))

	for _, task := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.tasks.Execute(ctx, task.ID); err != nil {
			s.logger.Error("Scheduled task execution failed",
				slog.String("task_id", task.ID),
				slog.String("name", task.Name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Scheduler) runReminders(ctx context.Context) error {
	now := time.Now()
	if err := s.payments.SendReminders(ctx, now); err != nil {
		s.logger.Error("Payment reminder pass failed", slog.String("error", err.Error()))
	}
	if err := s.incomes.SendReminders(ctx, now); err != nil {
		s.logger.Error("Income reminder pass failed", slog.String("error", err.Error()))
	}
	return nil
}

func (s *Scheduler) runLogCleanup(ctx context.Context) error {
	deleted, err := s.logs.DeleteOlderThan(ctx, time.Now().Add(-logRetention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("Purged old execution logs", slog.Int("deleted", deleted))
	}
	return nil
}
