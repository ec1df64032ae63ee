package autoincome

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
	"finance_ledger/internal/service"
	"finance_ledger/pkg/metrics"
)

const (
	schedulerName   = "incomes"
	maxReminderDays = 7
)

var ErrInvalidTarget = errors.New("auto income target must be a liquid account")

// ExecutionResult is the outcome of one auto-income run.
type ExecutionResult struct {
	Success bool                   `json:"success"`
	Status  domain.ExecutionStatus `json:"status"`
	Amount  decimal.Decimal        `json:"amount"`
	Message string                 `json:"message"`
}

// Service owns recurring income definitions. Unlike payments an income has a
// single target account and never needs a waterfall.
type Service struct {
	incomes   repository.AutoIncomeRepository
	accounts  repository.AccountRepository
	logs      repository.ExecutionLogRepository
	engine    *engine.Engine
	notifier  *service.Notifier
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewService(
	incomes repository.AutoIncomeRepository,
	accounts repository.AccountRepository,
	logs repository.ExecutionLogRepository,
	eng *engine.Engine,
	notifier *service.Notifier,
	publisher events.Publisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		incomes:   incomes,
		accounts:  accounts,
		logs:      logs,
		engine:    eng,
		notifier:  notifier,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// Create validates the target account and computes the first NextRunAt.
func (s *Service) Create(ctx context.Context, income *domain.AutoIncome) (*domain.AutoIncome, error) {
	account, err := s.accounts.GetByID(ctx, income.TargetAccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != income.UserID || !account.Kind.IsLiquid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, account.ID)
	}

	if income.ID == "" {
		income.ID = uuid.NewString()
	}
	if income.ExecuteTime == "" {
		income.ExecuteTime = "09:00"
	}
	income.NextRunAt = recurrence.NextMonthlyRun(income.DayOfMonth, income.ExecuteTime, time.Now())

	if err := s.incomes.Save(ctx, income); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created auto income",
		slog.String("income_id", income.ID),
		slog.String("name", income.Name),
		slog.Time("next_run_at", income.NextRunAt))

	return income, nil
}

// Toggle flips the enabled flag.
func (s *Service) Toggle(ctx context.Context, userID, id string) (*domain.AutoIncome, error) {
	income, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	income.IsEnabled = !income.IsEnabled
	if err := s.incomes.Update(ctx, income); err != nil {
		return nil, err
	}
	return income, nil
}

// PendingIncomes returns definitions due at or before now.
func (s *Service) PendingIncomes(ctx context.Context, now time.Time) ([]*domain.AutoIncome, error) {
	return s.incomes.ListDue(ctx, now)
}

// Execute books one income cycle as an INCOME transaction and advances the
// recurrence state.
func (s *Service) Execute(ctx context.Context, incomeID string) (*ExecutionResult, error) {
	income, err := s.incomes.GetByID(ctx, incomeID)
	if err != nil {
		return nil, err
	}
	if !income.IsEnabled {
		return &ExecutionResult{Success: false, Status: domain.ExecutionSkipped, Message: "auto income is disabled"}, nil
	}

	now := time.Now()

	result, err := s.engine.CreateTransaction(ctx, income.UserID, &domain.TransactionRequest{
		Kind:            domain.RecordIncome,
		Amount:          income.Amount,
		SourceAccountID: income.TargetAccountID,
		Category:        income.Category,
		Note:            "[auto] " + income.Name,
	})

	status := domain.ExecutionSuccess
	recordID := ""
	message := fmt.Sprintf("credited %s", income.Amount.StringFixed(2))
	if err != nil {
		status = domain.ExecutionFailed
		message = err.Error()
	} else {
		recordID = result.Record.ID
	}

	income.LastRunAt = now
	income.NextRunAt = recurrence.NextMonthlyRun(income.DayOfMonth, income.ExecuteTime, now)
	if err == nil {
		income.RunCount++
	}
	if updateErr := s.incomes.Update(ctx, income); updateErr != nil {
		s.logger.ErrorContext(ctx, "Failed to update auto income state",
			slog.String("income_id", income.ID),
			slog.String("error", updateErr.Error()))
	}

	entry := &domain.ExecutionLogEntry{
		ID:           uuid.NewString(),
		DefinitionID: income.ID,
		Status:       status,
		Amount:       income.Amount,
		RecordID:     recordID,
		Message:      message,
		ExecutedAt:   now,
	}
	if logErr := s.logs.Append(ctx, entry); logErr != nil {
		s.logger.ErrorContext(ctx, "Failed to append execution log",
			slog.String("income_id", income.ID),
			slog.String("error", logErr.Error()))
	}

	s.metrics.RecordExecution(schedulerName, string(status))

	if s.publisher != nil {
		if pubErr := s.publisher.Publish(ctx, events.TopicExecutionCompleted, events.ExecutionCompleted{
			DefinitionID: income.ID,
			Scheduler:    schedulerName,
			Status:       status,
			Amount:       income.Amount,
			ExecutedAt:   now,
		}); pubErr != nil {
			s.logger.WarnContext(ctx, "Failed to publish execution event",
				slog.String("income_id", income.ID),
				slog.String("error", pubErr.Error()))
		}
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "Auto income execution failed",
			slog.String("income_id", income.ID),
			slog.String("name", income.Name),
			slog.String("error", err.Error()))
		return &ExecutionResult{Success: false, Status: status, Message: message}, nil
	}

	s.logger.InfoContext(ctx, "Executed auto income",
		slog.String("income_id", income.ID),
		slog.String("name", income.Name),
		slog.String("amount", income.Amount.String()),
		slog.Time("next_run_at", income.NextRunAt))

	return &ExecutionResult{Success: true, Status: status, Amount: income.Amount, Message: message}, nil
}

// SendReminders notifies users about incomes expected within the next days.
func (s *Service) SendReminders(ctx context.Context, now time.Time) error {
	if s.notifier == nil {
		return nil
	}

	incomes, err := s.incomes.ListDue(ctx, now.AddDate(0, 0, maxReminderDays))
	if err != nil {
		return err
	}

	for _, income := range incomes {
		if income.ReminderDaysBefore <= 0 || income.NextRunAt.Before(now) {
			continue
		}
		daysUntil := int(income.NextRunAt.Sub(now).Hours() / 24)
		if daysUntil != income.ReminderDaysBefore {
			continue
		}
		if err := s.notifier.SendIncomeReminder(ctx, income.UserID, income.Name, income.Amount, daysUntil); err != nil {
			s.logger.WarnContext(ctx, "Failed to queue income reminder",
				slog.String("income_id", income.ID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (*domain.AutoIncome, error) {
	income, err := s.incomes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if income.UserID != userID {
		return nil, fmt.Errorf("%w: auto income %s", repository.ErrNotFound, id)
	}
	return income, nil
}
