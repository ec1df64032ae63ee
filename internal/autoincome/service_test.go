package autoincome

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/engine"
	"finance_ledger/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type incomeFixture struct {
	service  *Service
	accounts *memory.AccountRepository
	incomes  *memory.AutoIncomeRepository
	logs     *memory.ExecutionLogRepository
}

func newIncomeFixture(t *testing.T) *incomeFixture {
	t.Helper()

	store := memory.NewStore()
	accounts := memory.NewAccountRepository(store)
	holdings := memory.NewHoldingRepository(store)
	records := memory.NewRecordRepository(store)
	incomes := memory.NewAutoIncomeRepository()
	logs := memory.NewExecutionLogRepository()

	eng := engine.New(store, accounts, holdings, records, nil, nil, nil)
	service := NewService(incomes, accounts, logs, eng, nil, nil, nil, nil)

	return &incomeFixture{service: service, accounts: accounts, incomes: incomes, logs: logs}
}

func TestService_Execute_CreditsTargetAccount(t *testing.T) {
	ctx := context.Background()
	f := newIncomeFixture(t)

	require.NoError(t, f.accounts.Save(ctx, &domain.Account{ID: "a", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("100")}))
	require.NoError(t, f.incomes.Save(ctx, &domain.AutoIncome{
		ID: "i1", UserID: "u1", Name: "Salary", Amount: dec("3000"),
		TargetAccountID: "a", Category: "SALARY",
		DayOfMonth: 25, ExecuteTime: "09:00", IsEnabled: true,
	}))

	result, err := f.service.Execute(ctx, "i1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, domain.ExecutionSuccess, result.Status)

	account, _ := f.accounts.GetByID(ctx, "a")
	assert.True(t, account.Balance.Equal(dec("3100")))

	income, _ := f.incomes.GetByID(ctx, "i1")
	assert.Equal(t, 1, income.RunCount)
	assert.True(t, income.NextRunAt.After(time.Now()))
	assert.Equal(t, 25, income.NextRunAt.Day())

	entries, err := f.logs.ListByDefinition(ctx, "i1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ExecutionSuccess, entries[0].Status)
	assert.NotEmpty(t, entries[0].RecordID)
}

func TestService_Execute_DisabledIncomeIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newIncomeFixture(t)

	require.NoError(t, f.accounts.Save(ctx, &domain.Account{ID: "a", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("100")}))
	require.NoError(t, f.incomes.Save(ctx, &domain.AutoIncome{
		ID: "i1", UserID: "u1", Name: "Salary", Amount: dec("3000"),
		TargetAccountID: "a", DayOfMonth: 25, ExecuteTime: "09:00", IsEnabled: false,
	}))

	result, err := f.service.Execute(ctx, "i1")
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionSkipped, result.Status)

	account, _ := f.accounts.GetByID(ctx, "a")
	assert.True(t, account.Balance.Equal(dec("100")))
}

func TestService_Execute_FailureIsLoggedAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newIncomeFixture(t)

	// Target account does not exist, so the engine rejects the income.
	require.NoError(t, f.incomes.Save(ctx, &domain.AutoIncome{
		ID: "i1", UserID: "u1", Name: "Salary", Amount: dec("3000"),
		TargetAccountID: "missing", DayOfMonth: 25, ExecuteTime: "09:00", IsEnabled: true,
	}))

	result, err := f.service.Execute(ctx, "i1")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, domain.ExecutionFailed, result.Status)

	income, _ := f.incomes.GetByID(ctx, "i1")
	assert.Equal(t, 0, income.RunCount)
	assert.True(t, income.NextRunAt.After(time.Now()), "a failed run must not wedge the schedule")

	entries, err := f.logs.ListByDefinition(ctx, "i1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ExecutionFailed, entries[0].Status)
}

func TestService_Create_RejectsLiabilityTarget(t *testing.T) {
	ctx := context.Background()
	f := newIncomeFixture(t)

	require.NoError(t, f.accounts.Save(ctx, &domain.Account{ID: "cc", UserID: "u1", Name: "Visa", Kind: domain.AccountCreditCard, Balance: dec("-100")}))

	_, err := f.service.Create(ctx, &domain.AutoIncome{
		UserID: "u1", Name: "Salary", Amount: dec("3000"),
		TargetAccountID: "cc", DayOfMonth: 25,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestService_Create_ComputesFirstRun(t *testing.T) {
	ctx := context.Background()
	f := newIncomeFixture(t)

	require.NoError(t, f.accounts.Save(ctx, &domain.Account{ID: "a", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("0")}))

	income, err := f.service.Create(ctx, &domain.AutoIncome{
		UserID: "u1", Name: "Salary", Amount: dec("3000"),
		TargetAccountID: "a", DayOfMonth: 25,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, income.ID)
	assert.Equal(t, "09:00", income.ExecuteTime)
	assert.True(t, income.NextRunAt.After(time.Now()))
	assert.Equal(t, 25, income.NextRunAt.Day())
}
