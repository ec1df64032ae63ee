package autopay

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/engine"
	"finance_ledger/internal/repository"
)

// Allocation is one deduction taken from a funding source.
type Allocation struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// AllocationResult reports how much of the required amount the waterfall
// covered. Residual is zero when the requirement was fully met.
type AllocationResult struct {
	Allocations []Allocation    `json:"allocations"`
	Allocated   decimal.Decimal `json:"allocated"`
	Residual    decimal.Decimal `json:"residual"`
}

// Allocator drains funding sources in priority order to satisfy one required
// amount. Each deduction is a separate engine transaction, so a failure
// midway leaves the earlier deductions committed; the caller surfaces the
// partial result rather than pretending atomicity.
type Allocator struct {
	engine   *engine.Engine
	accounts repository.AccountRepository
	logger   *slog.Logger
}

func NewAllocator(eng *engine.Engine, accounts repository.AccountRepository, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{engine: eng, accounts: accounts, logger: logger}
}

// Allocate walks the sources ascending by priority, deducting
// min(residual, balance) from each until the requirement is met or the
// sources are exhausted. Sources with no positive balance are skipped, so
// the sum of allocations never exceeds either the requirement or any
// source's available balance.
//
// When targetAccountID is set each deduction is booked as a PAYMENT into
// that liability account; otherwise as a plain EXPENSE.
func (a *Allocator) Allocate(
	ctx context.Context,
	userID string,
	required decimal.Decimal,
	targetAccountID string,
	sources []domain.FundingSource,
	category, note string,
) (*AllocationResult, error) {
	ordered := make([]domain.FundingSource, len(sources))
	copy(ordered, sources)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	result := &AllocationResult{Residual: required}

	for _, source := range ordered {
		if !result.Residual.IsPositive() {
			break
		}

		account, err := a.accounts.GetByID(ctx, source.AccountID)
		if err != nil {
			a.logger.WarnContext(ctx, "Skipping unavailable funding source",
				slog.String("account_id", source.AccountID),
				slog.String("error", err.Error()))
			continue
		}

		if !account.Balance.IsPositive() {
			continue
		}

		deduct := decimal.Min(result.Residual, account.Balance)

		req := &domain.TransactionRequest{
			Kind:            domain.RecordPayment,
			Amount:          deduct,
			SourceAccountID: account.ID,
			TargetAccountID: targetAccountID,
			Category:        category,
			Note:            note + " (source: " + account.Name + ")",
		}
		if targetAccountID == "" {
			req.Kind = domain.RecordExpense
		}

		if _, err := a.engine.CreateTransaction(ctx, userID, req); err != nil {
			a.logger.ErrorContext(ctx, "Failed to deduct from funding source",
				slog.String("account_id", account.ID),
				slog.String("amount", deduct.String()),
				slog.String("error", err.Error()))
			// Try the remaining sources.
			continue
		}

		result.Allocations = append(result.Allocations, Allocation{
			AccountID:   account.ID,
			AccountName: account.Name,
			Amount:      deduct,
		})
		result.Allocated = result.Allocated.Add(deduct)
		result.Residual = result.Residual.Sub(deduct)

		a.logger.InfoContext(ctx, "Deducted from funding source",
			slog.String("account_id", account.ID),
			slog.String("account_name", account.Name),
			slog.String("amount", deduct.String()))
	}

	return result, nil
}
