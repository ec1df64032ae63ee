package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/events"
	"finance_ledger/internal/repository"
	"finance_ledger/pkg/metrics"
	"finance_ledger/pkg/validator"
)

var (
	// ErrNotOwned is returned when a referenced account or holding exists
	// but belongs to a different user. The engine fails closed before any
	// mutation.
	ErrNotOwned = errors.New("entity does not belong to user")
)

// TransactionResult reports what one applied transaction changed.
type TransactionResult struct {
	Record           *domain.LedgerRecord   `json:"record"`
	AccountChanges   []domain.BalanceChange `json:"account_changes"`
	InvestmentChange *domain.HoldingChange  `json:"investment_change,omitempty"`
}

// Engine validates and atomically applies monetary movements across
// accounts and holdings. Every balance change in the system goes through
// here, either from user requests or from the recurring schedulers.
type Engine struct {
	store     repository.LedgerStore
	accounts  repository.AccountRepository
	holdings  repository.HoldingRepository
	records   repository.RecordRepository
	validator *validator.TransactionValidator
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func New(
	store repository.LedgerStore,
	accounts repository.AccountRepository,
	holdings repository.HoldingRepository,
	records repository.RecordRepository,
	publisher events.Publisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		accounts:  accounts,
		holdings:  holdings,
		records:   records,
		validator: validator.NewTransactionValidator(),
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// deltas maps a record kind onto its signed balance effects. Keeping the
// whole mapping in one switch makes the conservation invariant checkable in
// one place: kinds with a target satisfy source + target == 0.
func deltas(kind domain.RecordKind, amount, quantity decimal.Decimal) (source, target, qty decimal.Decimal) {
	switch kind {
	case domain.RecordIncome:
		return amount, decimal.Zero, decimal.Zero
	case domain.RecordExpense:
		return amount.Neg(), decimal.Zero, decimal.Zero
	case domain.RecordTransfer, domain.RecordRepayment, domain.RecordPayment:
		return amount.Neg(), amount, decimal.Zero
	case domain.RecordInvestBuy:
		return amount.Neg(), decimal.Zero, quantity
	case domain.RecordInvestSell:
		return amount, decimal.Zero, quantity.Neg()
	}
	return decimal.Zero, decimal.Zero, decimal.Zero
}

// CreateTransaction validates the request, derives the balance deltas for
// its kind and applies them together with the new ledger record as one
// atomic store mutation.
func (e *Engine) CreateTransaction(ctx context.Context, userID string, req *domain.TransactionRequest) (*TransactionResult, error) {
	start := time.Now()
	result, err := e.createTransaction(ctx, userID, req)
	e.metrics.RecordTransaction(time.Since(start), err == nil)
	return result, err
}

func (e *Engine) createTransaction(ctx context.Context, userID string, req *domain.TransactionRequest) (*TransactionResult, error) {
	if err := e.validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	sourceAccount, err := e.ownedAccount(ctx, userID, req.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("source account: %w", err)
	}

	var targetAccount *domain.Account
	if req.Kind.NeedsTargetAccount() {
		targetAccount, err = e.ownedAccount(ctx, userID, req.TargetAccountID)
		if err != nil {
			return nil, fmt.Errorf("target account: %w", err)
		}
	}

	var holding *domain.Holding
	if req.Kind.NeedsHolding() {
		holding, err = e.ownedHolding(ctx, userID, req.HoldingID)
		if err != nil {
			return nil, err
		}
	}

	sourceDelta, targetDelta, quantityDelta := deltas(req.Kind, req.Amount, req.Quantity)

	mutation := repository.Mutation{
		AccountDeltas: []repository.AccountDelta{
			{AccountID: sourceAccount.ID, Delta: sourceDelta},
		},
	}
	if targetAccount != nil {
		mutation.AccountDeltas = append(mutation.AccountDeltas, repository.AccountDelta{
			AccountID: targetAccount.ID,
			Delta:     targetDelta,
		})
	}

	var newAvgCost decimal.Decimal
	if holding != nil {
		newQuantity := holding.Quantity.Add(quantityDelta)
		if newQuantity.IsNegative() {
			return nil, fmt.Errorf("%w: holding %s", repository.ErrSellExceedsQuantity, holding.ID)
		}

		update := &repository.HoldingUpdate{
			HoldingID:     holding.ID,
			QuantityDelta: quantityDelta,
		}

		newAvgCost = holding.AvgCost
		if req.Kind == domain.RecordInvestBuy && req.UnitPrice.IsPositive() {
			totalCost := holding.AvgCost.Mul(holding.Quantity).Add(req.UnitPrice.Mul(req.Quantity))
			if newQuantity.IsPositive() {
				newAvgCost = totalCost.Div(newQuantity)
			} else {
				newAvgCost = decimal.Zero
			}
			update.SetAvgCost = &newAvgCost
		}

		mutation.Holding = update
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now()
	}

	record := &domain.LedgerRecord{
		ID:              domain.NewRecordID(),
		UserID:          userID,
		Kind:            req.Kind,
		Amount:          req.Amount,
		Category:        req.Category,
		Note:            req.Note,
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		HoldingID:       req.HoldingID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		Date:            date,
		CreatedAt:       time.Now(),
	}
	mutation.CreateRecord = record

	if err := e.store.Apply(ctx, mutation); err != nil {
		return nil, fmt.Errorf("failed to apply transaction: %w", err)
	}

	result := &TransactionResult{
		Record: record,
		AccountChanges: []domain.BalanceChange{
			{
				AccountID:       sourceAccount.ID,
				AccountName:     sourceAccount.Name,
				PreviousBalance: sourceAccount.Balance,
				NewBalance:      sourceAccount.Balance.Add(sourceDelta),
				Change:          sourceDelta,
			},
		},
	}
	if targetAccount != nil {
		result.AccountChanges = append(result.AccountChanges, domain.BalanceChange{
			AccountID:       targetAccount.ID,
			AccountName:     targetAccount.Name,
			PreviousBalance: targetAccount.Balance,
			NewBalance:      targetAccount.Balance.Add(targetDelta),
			Change:          targetDelta,
		})
	}
	if holding != nil {
		result.InvestmentChange = &domain.HoldingChange{
			HoldingID:        holding.ID,
			HoldingName:      holding.Name,
			PreviousQuantity: holding.Quantity,
			NewQuantity:      holding.Quantity.Add(quantityDelta),
			QuantityChange:   quantityDelta,
			AvgCost:          newAvgCost,
		}
	}

	e.logger.InfoContext(ctx, "Transaction created",
		slog.String("record_id", record.ID),
		slog.String("kind", string(record.Kind)),
		slog.String("amount", record.Amount.String()))

	e.publish(ctx, events.TopicTransactionCompleted, events.TransactionCompleted{
		RecordID:        record.ID,
		UserID:          userID,
		Kind:            string(record.Kind),
		Amount:          record.Amount,
		SourceAccountID: record.SourceAccountID,
		TargetAccountID: record.TargetAccountID,
		CompletedAt:     time.Now(),
	})

	return result, nil
}

// DeleteTransaction rolls back every delta the record applied and removes
// the record in the same atomic unit.
func (e *Engine) DeleteTransaction(ctx context.Context, userID, recordID string) error {
	record, err := e.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		// Do not reveal other users' records.
		return fmt.Errorf("%w: record %s", repository.ErrNotFound, recordID)
	}

	sourceDelta, targetDelta, quantityDelta := deltas(record.Kind, record.Amount, record.Quantity)

	mutation := repository.Mutation{
		AccountDeltas: []repository.AccountDelta{
			{AccountID: record.SourceAccountID, Delta: sourceDelta.Neg()},
		},
		DeleteRecordID: record.ID,
	}
	if record.TargetAccountID != "" {
		mutation.AccountDeltas = append(mutation.AccountDeltas, repository.AccountDelta{
			AccountID: record.TargetAccountID,
			Delta:     targetDelta.Neg(),
		})
	}
	if record.HoldingID != "" && !quantityDelta.IsZero() {
		update := &repository.HoldingUpdate{
			HoldingID:     record.HoldingID,
			QuantityDelta: quantityDelta.Neg(),
		}
		// A buy moved the weighted average cost; invert it from the record's
		// price and quantity so the position returns to its pre-buy state.
		if record.Kind == domain.RecordInvestBuy && record.UnitPrice.IsPositive() {
			holding, err := e.holdings.GetByID(ctx, record.HoldingID)
			if err != nil {
				return err
			}
			restoredQuantity := holding.Quantity.Sub(record.Quantity)
			restoredAvgCost := decimal.Zero
			if restoredQuantity.IsPositive() {
				restoredAvgCost = holding.AvgCost.Mul(holding.Quantity).
					Sub(record.UnitPrice.Mul(record.Quantity)).
					Div(restoredQuantity)
			}
			update.SetAvgCost = &restoredAvgCost
		}
		mutation.Holding = update
	}

	if err := e.store.Apply(ctx, mutation); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}

	e.logger.InfoContext(ctx, "Transaction deleted and rolled back",
		slog.String("record_id", recordID))

	return nil
}

func (e *Engine) ownedAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("%w: account %s", ErrNotOwned, accountID)
	}
	return account, nil
}

func (e *Engine) ownedHolding(ctx context.Context, userID, holdingID string) (*domain.Holding, error) {
	holding, err := e.holdings.GetByID(ctx, holdingID)
	if err != nil {
		return nil, err
	}
	if holding.UserID != userID {
		return nil, fmt.Errorf("%w: holding %s", ErrNotOwned, holdingID)
	}
	return holding, nil
}

func (e *Engine) publish(ctx context.Context, topic string, event any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
	}
}
