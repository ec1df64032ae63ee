package schedtask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/engine"
	"finance_ledger/internal/events"
	"finance_ledger/internal/recurrence"
	"finance_ledger/internal/repository"
	"finance_ledger/pkg/metrics"
)

const schedulerName = "tasks"

var (
	ErrUnsupportedKind = errors.New("scheduled task kind must be INCOME or EXPENSE")
	ErrEndBeforeStart  = errors.New("end date precedes start date")
)

// ExecutionResult is the outcome of one scheduled-task run.
type ExecutionResult struct {
	Success bool                   `json:"success"`
	Status  domain.ExecutionStatus `json:"status"`
	Amount  decimal.Decimal        `json:"amount"`
	Message string                 `json:"message"`
}

// Service owns generic scheduled tasks: plain income or expense records
// booked on any of the four frequency units within an optional date window.
type Service struct {
	tasks     repository.ScheduledTaskRepository
	accounts  repository.AccountRepository
	logs      repository.ExecutionLogRepository
	engine    *engine.Engine
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewService(
	tasks repository.ScheduledTaskRepository,
	accounts repository.AccountRepository,
	logs repository.ExecutionLogRepository,
	eng *engine.Engine,
	publisher events.Publisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:     tasks,
		accounts:  accounts,
		logs:      logs,
		engine:    eng,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// Create validates the task, fills defaults and aligns the first NextRunAt
// onto the schedule, honoring a future start date.
func (s *Service) Create(ctx context.Context, task *domain.ScheduledTask) (*domain.ScheduledTask, error) {
	if task.Kind != domain.RecordIncome && task.Kind != domain.RecordExpense {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, task.Kind)
	}
	if !task.EndDate.IsZero() && task.EndDate.Before(task.StartDate) {
		return nil, ErrEndBeforeStart
	}

	account, err := s.accounts.GetByID(ctx, task.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != task.UserID {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, task.AccountID)
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Schedule.ExecuteTime == "" {
		task.Schedule.ExecuteTime = "09:00"
	}

	now := time.Now()
	if task.StartDate.IsZero() {
		task.StartDate = now
	}
	task.NextRunAt = recurrence.FirstRun(task.Schedule, task.StartDate, now)

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created scheduled task",
		slog.String("task_id", task.ID),
		slog.String("name", task.Name),
		slog.String("frequency", string(task.Schedule.Frequency)),
		slog.Time("next_run_at", task.NextRunAt))

	return task, nil
}

// Toggle flips the enabled flag.
func (s *Service) Toggle(ctx context.Context, userID, id string) (*domain.ScheduledTask, error) {
	task, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	task.IsEnabled = !task.IsEnabled
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// PendingTasks returns enabled tasks due at or before now and still inside
// their date window.
func (s *Service) PendingTasks(ctx context.Context, now time.Time) ([]*domain.ScheduledTask, error) {
	return s.tasks.ListDue(ctx, now)
}

// Execute books the task's record and advances the recurrence state. A task
// whose end date has passed is disabled instead of executed.
func (s *Service) Execute(ctx context.Context, taskID string) (*ExecutionResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsEnabled {
		return &ExecutionResult{Success: false, Status: domain.ExecutionSkipped, Message: "scheduled task is disabled"}, nil
	}

	now := time.Now()

	if !task.EndDate.IsZero() && now.After(task.EndDate) {
		task.IsEnabled = false
		if updateErr := s.tasks.Update(ctx, task); updateErr != nil {
			s.logger.ErrorContext(ctx, "Failed to disable expired task",
				slog.String("task_id", task.ID),
				slog.String("error", updateErr.Error()))
		}
		s.logger.InfoContext(ctx, "Scheduled task expired",
			slog.String("task_id", task.ID),
			slog.String("name", task.Name))
		return &ExecutionResult{Success: false, Status: domain.ExecutionSkipped, Message: "task end date passed"}, nil
	}

	result, err := s.engine.CreateTransaction(ctx, task.UserID, &domain.TransactionRequest{
		Kind:            task.Kind,
		Amount:          task.Amount,
		SourceAccountID: task.AccountID,
		Category:        task.Category,
		Note:            "[scheduled] " + task.Name,
	})

	status := domain.ExecutionSuccess
	recordID := ""
	message := fmt.Sprintf("booked %s %s", task.Kind, task.Amount.StringFixed(2))
	if err != nil {
		status = domain.ExecutionFailed
		message = err.Error()
	} else {
		recordID = result.Record.ID
	}

	task.LastRunAt = now
	task.NextRunAt = recurrence.NextRun(task.Schedule, now)
	if err == nil {
		task.RunCount++
	}
	if updateErr := s.tasks.Update(ctx, task); updateErr != nil {
		s.logger.ErrorContext(ctx, "Failed to update scheduled task state",
			slog.String("task_id", task.ID),
			slog.String("error", updateErr.Error()))
	}

	entry := &domain.ExecutionLogEntry{
		ID:           uuid.NewString(),
		DefinitionID: task.ID,
		Status:       status,
		Amount:       task.Amount,
		RecordID:     recordID,
		Message:      message,
		ExecutedAt:   now,
	}
	if logErr := s.logs.Append(ctx, entry); logErr != nil {
		s.logger.ErrorContext(ctx, "Failed to append execution log",
			slog.String("task_id", task.ID),
			slog.String("error", logErr.Error()))
	}

	s.metrics.RecordExecution(schedulerName, string(status))

	if s.publisher != nil {
		if pubErr := s.publisher.Publish(ctx, events.TopicExecutionCompleted, events.ExecutionCompleted{
			DefinitionID: task.ID,
			Scheduler:    schedulerName,
			Status:       status,
			Amount:       task.Amount,
			ExecutedAt:   now,
		}); pubErr != nil {
			s.logger.WarnContext(ctx, "Failed to publish execution event",
				slog.String("task_id", task.ID),
				slog.String("error", pubErr.Error()))
		}
	}

	if err != nil {
		return &ExecutionResult{Success: false, Status: status, Message: message}, nil
	}

	s.logger.InfoContext(ctx, "Executed scheduled task",
		slog.String("task_id", task.ID),
		slog.String("name", task.Name),
		slog.Time("next_run_at", task.NextRunAt))

	return &ExecutionResult{Success: true, Status: status, Amount: task.Amount, Message: message}, nil
}

// Logs returns the most recent execution log entries for one task.
func (s *Service) Logs(ctx context.Context, userID, taskID string, limit int) ([]*domain.ExecutionLogEntry, error) {
	if _, err := s.owned(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.logs.ListByDefinition(ctx, taskID, limit)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*domain.ScheduledTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("%w: scheduled task %s", repository.ErrNotFound, id)
	}
	return task, nil
}
