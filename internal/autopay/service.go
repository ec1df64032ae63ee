package autopay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/events"
	"finance_ledger/internal/recurrence"
	"finance_ledger/internal/repository"
	"finance_ledger/internal/service"
	"finance_ledger/pkg/metrics"
)

const (
	schedulerName   = "payments"
	maxReminderDays = 7
)

var (
	ErrNoFundingSources  = errors.New("no funding sources configured")
	ErrInvalidSource     = errors.New("account cannot be used as funding source")
	ErrMissingLinkedAcct = errors.New("payment type requires a linked account")
)

// minimum repayment: 10% of the outstanding balance, floored at 10.
var (
	minPaymentRate  = decimal.NewFromFloat(0.10)
	minPaymentFloor = decimal.NewFromInt(10)
)

// ExecutionResult is the outcome of one auto-payment run.
type ExecutionResult struct {
	Success bool                   `json:"success"`
	Status  domain.ExecutionStatus `json:"status"`
	Amount  decimal.Decimal        `json:"amount"`
	Message string                 `json:"message"`
}

// Service owns auto-payment definitions and their execution through the
// waterfall allocator.
type Service struct {
	payments  repository.AutoPaymentRepository
	accounts  repository.AccountRepository
	logs      repository.ExecutionLogRepository
	allocator *Allocator
	notifier  *service.Notifier
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewService(
	payments repository.AutoPaymentRepository,
	accounts repository.AccountRepository,
	logs repository.ExecutionLogRepository,
	allocator *Allocator,
	notifier *service.Notifier,
	publisher events.Publisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		payments:  payments,
		accounts:  accounts,
		logs:      logs,
		allocator: allocator,
		notifier:  notifier,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// Create validates the linked accounts and funding sources, fills defaults
// and computes the first NextRunAt.
func (s *Service) Create(ctx context.Context, payment *domain.AutoPayment) (*domain.AutoPayment, error) {
	if err := s.validateRelations(ctx, payment); err != nil {
		return nil, err
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.ExecuteTime == "" {
		payment.ExecuteTime = "08:00"
	}
	if payment.Policy == "" {
		payment.Policy = domain.PolicyTryNextSource
	}
	if payment.ReminderDaysBefore == 0 {
		payment.ReminderDaysBefore = 2
	}
	payment.NextRunAt = recurrence.NextMonthlyRun(payment.DayOfMonth, payment.ExecuteTime, time.Now())

	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created auto payment",
		slog.String("payment_id", payment.ID),
		slog.String("name", payment.Name),
		slog.Time("next_run_at", payment.NextRunAt))

	return payment, nil
}

// Toggle flips the enabled flag.
func (s *Service) Toggle(ctx context.Context, userID, id string) (*domain.AutoPayment, error) {
	payment, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	payment.IsEnabled = !payment.IsEnabled
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Toggled auto payment",
		slog.String("payment_id", id),
		slog.Bool("enabled", payment.IsEnabled))

	return payment, nil
}

// PendingPayments returns definitions due at or before now.
func (s *Service) PendingPayments(ctx context.Context, now time.Time) ([]*domain.AutoPayment, error) {
	return s.payments.ListDue(ctx, now)
}

// Execute runs one auto-payment: derive the required amount, drain the
// funding sources through the waterfall, apply the insufficient-funds
// policy and advance the recurrence state.
func (s *Service) Execute(ctx context.Context, paymentID string) (*ExecutionResult, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.IsEnabled {
		return &ExecutionResult{Success: false, Status: domain.ExecutionSkipped, Message: "auto payment is disabled"}, nil
	}

	now := time.Now()

	required, err := s.requiredAmount(ctx, payment)
	if err != nil {
		s.finishRun(ctx, payment, now, domain.ExecutionFailed, decimal.Zero, err.Error(), false)
		return &ExecutionResult{Success: false, Status: domain.ExecutionFailed, Message: err.Error()}, nil
	}

	if !required.IsPositive() {
		s.finishRun(ctx, payment, now, domain.ExecutionSkipped, decimal.Zero, "nothing due, skipping", false)
		return &ExecutionResult{Success: true, Status: domain.ExecutionSkipped, Message: "nothing due"}, nil
	}

	if len(payment.Sources) == 0 {
		s.finishRun(ctx, payment, now, domain.ExecutionFailed, decimal.Zero, ErrNoFundingSources.Error(), false)
		return &ExecutionResult{Success: false, Status: domain.ExecutionFailed, Message: ErrNoFundingSources.Error()}, nil
	}

	allocation, err := s.allocator.Allocate(ctx, payment.UserID, required,
		payment.TargetAccountID(), payment.Sources, "AUTO_PAYMENT", "[auto] "+payment.Name)
	if err != nil {
		return nil, err
	}

	complete := !allocation.Residual.IsPositive()

	status := domain.ExecutionSuccess
	if !complete {
		if allocation.Allocated.IsPositive() {
			status = domain.ExecutionPartial
		} else {
			status = domain.ExecutionInsufficientFunds
		}
	}

	message := allocationMessage(allocation)

	result := &ExecutionResult{
		Success: complete,
		Status:  status,
		Amount:  allocation.Allocated,
		Message: message,
	}
	if !complete {
		result = s.applyShortfallPolicy(ctx, payment, now, required, allocation)
	}

	s.finishRun(ctx, payment, now, status, allocation.Allocated, result.Message, complete)

	if !complete {
		s.metrics.RecordShortfall(allocation.Residual.InexactFloat64())
	}

	s.logger.InfoContext(ctx, "Executed auto payment",
		slog.String("payment_id", payment.ID),
		slog.String("name", payment.Name),
		slog.String("status", string(status)),
		slog.String("allocated", allocation.Allocated.String()),
		slog.String("residual", allocation.Residual.String()))

	return result, nil
}

// SendReminders notifies users about payments anchored a few days ahead of
// now, comparing the derived required amount against the combined balance of
// the funding sources.
func (s *Service) SendReminders(ctx context.Context, now time.Time) error {
	if s.notifier == nil {
		return nil
	}

	for ahead := 1; ahead <= maxReminderDays; ahead++ {
		day := now.AddDate(0, 0, ahead).Day()
		payments, err := s.payments.ListByDayOfMonth(ctx, day)
		if err != nil {
			return err
		}

		for _, payment := range payments {
			if payment.ReminderDaysBefore != ahead {
				continue
			}

			required, err := s.requiredAmount(ctx, payment)
			if err != nil || !required.IsPositive() {
				continue
			}

			available := decimal.Zero
			for _, source := range payment.Sources {
				account, err := s.accounts.GetByID(ctx, source.AccountID)
				if err != nil {
					continue
				}
				if account.Balance.IsPositive() {
					available = available.Add(account.Balance)
				}
			}

			if err := s.notifier.SendPaymentReminder(ctx, payment.UserID, payment.Name, payment.DayOfMonth, required, available); err != nil {
				s.logger.WarnContext(ctx, "Failed to queue payment reminder",
					slog.String("payment_id", payment.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	return nil
}

// Logs returns the most recent execution log entries for one payment.
func (s *Service) Logs(ctx context.Context, userID, paymentID string, limit int) ([]*domain.ExecutionLogEntry, error) {
	if _, err := s.owned(ctx, userID, paymentID); err != nil {
		return nil, err
	}
	return s.logs.ListByDefinition(ctx, paymentID, limit)
}

// requiredAmount derives what this cycle must move: the configured fixed
// amount, the linked credit line's balance (full or minimum), or the linked
// loan's monthly installment.
func (s *Service) requiredAmount(ctx context.Context, payment *domain.AutoPayment) (decimal.Decimal, error) {
	if payment.FixedAmount.IsPositive() {
		return payment.FixedAmount, nil
	}

	switch payment.PaymentType {
	case domain.PaymentCreditFull, domain.PaymentCreditMin:
		if payment.CreditAccountID == "" {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingLinkedAcct, payment.PaymentType)
		}
		credit, err := s.accounts.GetByID(ctx, payment.CreditAccountID)
		if err != nil {
			return decimal.Zero, err
		}
		outstanding := credit.Balance.Neg()
		if payment.PaymentType == domain.PaymentCreditFull {
			return decimal.Max(decimal.Zero, outstanding), nil
		}
		return decimal.Max(outstanding.Mul(minPaymentRate), minPaymentFloor), nil

	case domain.PaymentLoanInstallment:
		if payment.LoanAccountID == "" {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingLinkedAcct, payment.PaymentType)
		}
		loan, err := s.accounts.GetByID(ctx, payment.LoanAccountID)
		if err != nil {
			return decimal.Zero, err
		}
		if loan.MonthlyPayment.IsPositive() {
			return loan.MonthlyPayment, nil
		}
		// No stored installment: derive the annuity from the outstanding
		// principal and the loan terms.
		return MonthlyInstallment(loan.Balance.Neg(), loan.InterestRate, loan.TermMonths), nil
	}

	return decimal.Zero, nil
}

// applyShortfallPolicy maps the unmet residual onto exactly one policy
// outcome. TRY_NEXT_SOURCE has already been exhausted by the waterfall loop
// itself and only shapes the returned result.
func (s *Service) applyShortfallPolicy(
	ctx context.Context,
	payment *domain.AutoPayment,
	now time.Time,
	required decimal.Decimal,
	allocation *AllocationResult,
) *ExecutionResult {
	shortfall := required.Sub(allocation.Allocated)

	switch payment.Policy {
	case domain.PolicyNotify:
		if s.notifier != nil {
			if err := s.notifier.SendShortfallAlert(ctx, payment.UserID, payment.Name, allocation.Allocated, shortfall); err != nil {
				s.logger.WarnContext(ctx, "Failed to queue shortfall alert",
					slog.String("payment_id", payment.ID),
					slog.String("error", err.Error()))
			}
		}
		return &ExecutionResult{
			Success: false,
			Status:  domain.ExecutionInsufficientFunds,
			Amount:  allocation.Allocated,
			Message: fmt.Sprintf("insufficient funds: deducted %s, %s needs manual handling", allocation.Allocated.StringFixed(2), shortfall.StringFixed(2)),
		}

	case domain.PolicyRetryNextDay:
		payment.NextRunAt = recurrence.SameTimeTomorrow(payment.ExecuteTime, now)
		return &ExecutionResult{
			Success: false,
			Status:  domain.ExecutionInsufficientFunds,
			Amount:  allocation.Allocated,
			Message: "insufficient funds, retrying tomorrow",
		}

	case domain.PolicyTryNextSource:
		return &ExecutionResult{
			Success: allocation.Allocated.IsPositive(),
			Status:  domain.ExecutionPartial,
			Amount:  allocation.Allocated,
			Message: fmt.Sprintf("deducted %s from available sources, %s remains", allocation.Allocated.StringFixed(2), shortfall.StringFixed(2)),
		}

	case domain.PolicySkip:
		fallthrough
	default:
		// NextRunAt stays on the next normal cycle set by finishRun.
		return &ExecutionResult{
			Success: false,
			Status:  domain.ExecutionSkipped,
			Amount:  allocation.Allocated,
			Message: fmt.Sprintf("insufficient funds, skipped this cycle, shortfall %s", shortfall.StringFixed(2)),
		}
	}
}

// finishRun advances the recurrence state, counts completed periods and
// writes the execution log entry. applyShortfallPolicy may have already
// moved NextRunAt (RETRY_NEXT_DAY); that takes precedence over the normal
// cycle.
func (s *Service) finishRun(
	ctx context.Context,
	payment *domain.AutoPayment,
	now time.Time,
	status domain.ExecutionStatus,
	amount decimal.Decimal,
	message string,
	complete bool,
) {
	payment.LastRunAt = now
	if !payment.NextRunAt.After(now) {
		payment.NextRunAt = recurrence.NextMonthlyRun(payment.DayOfMonth, payment.ExecuteTime, now)
	}

	if complete && payment.TotalPeriods > 0 {
		payment.CompletedPeriods++
		if payment.CompletedPeriods >= payment.TotalPeriods {
			payment.IsEnabled = false
			s.logger.InfoContext(ctx, "Auto payment completed all periods",
				slog.String("payment_id", payment.ID),
				slog.String("name", payment.Name))
		}
	}

	if err := s.payments.Update(ctx, payment); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update auto payment state",
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()))
	}

	entry := &domain.ExecutionLogEntry{
		ID:           uuid.NewString(),
		DefinitionID: payment.ID,
		Status:       status,
		Amount:       amount,
		Message:      message,
		ExecutedAt:   now,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Failed to append execution log",
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()))
	}

	s.metrics.RecordExecution(schedulerName, string(status))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.TopicExecutionCompleted, events.ExecutionCompleted{
			DefinitionID: payment.ID,
			Scheduler:    schedulerName,
			Status:       status,
			Amount:       amount,
			ExecutedAt:   now,
		}); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish execution event",
				slog.String("payment_id", payment.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) validateRelations(ctx context.Context, payment *domain.AutoPayment) error {
	if payment.CreditAccountID != "" {
		credit, err := s.accounts.GetByID(ctx, payment.CreditAccountID)
		if err != nil {
			return err
		}
		if credit.Kind != domain.AccountCreditCard {
			return fmt.Errorf("%w: account %s is not a credit line", ErrMissingLinkedAcct, credit.ID)
		}
	}
	if payment.LoanAccountID != "" {
		loan, err := s.accounts.GetByID(ctx, payment.LoanAccountID)
		if err != nil {
			return err
		}
		if loan.Kind != domain.AccountLoan && loan.Kind != domain.AccountMortgage {
			return fmt.Errorf("%w: account %s is not a loan", ErrMissingLinkedAcct, loan.ID)
		}
	}

	for _, source := range payment.Sources {
		account, err := s.accounts.GetByID(ctx, source.AccountID)
		if err != nil {
			return err
		}
		if account.UserID != payment.UserID || !account.Kind.IsLiquid() {
			return fmt.Errorf("%w: %s", ErrInvalidSource, account.ID)
		}
	}

	return nil
}

func (s *Service) owned(ctx context.Context, userID, id string) (*domain.AutoPayment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, fmt.Errorf("%w: auto payment %s", repository.ErrNotFound, id)
	}
	return payment, nil
}

func allocationMessage(allocation *AllocationResult) string {
	if len(allocation.Allocations) == 0 {
		return "all funding sources have insufficient balance"
	}

	parts := make([]string, 0, len(allocation.Allocations))
	for _, a := range allocation.Allocations {
		parts = append(parts, fmt.Sprintf("%s(%s)", a.AccountName, a.Amount.StringFixed(2)))
	}
	message := "deducted from " + strings.Join(parts, ", ")
	if allocation.Residual.IsPositive() {
		message += fmt.Sprintf(", %s not covered", allocation.Residual.StringFixed(2))
	}
	return message
}
