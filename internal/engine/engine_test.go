package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
	"finance_ledger/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine() (*Engine, *memory.AccountRepository, *memory.HoldingRepository, *memory.RecordRepository) {
	store := memory.NewStore()
	accounts := memory.NewAccountRepository(store)
	holdings := memory.NewHoldingRepository(store)
	records := memory.NewRecordRepository(store)
	eng := New(store, accounts, holdings, records, nil, nil, nil)
	return eng, accounts, holdings, records
}

func TestEngine_CreateTransaction_TransferConservation(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})
	_ = accounts.Save(ctx, &domain.Account{ID: "a2", UserID: "u1", Name: "Savings", Kind: domain.AccountSavings, Balance: dec("500")})

	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordTransfer,
		Amount:          dec("200"),
		SourceAccountID: "a1",
		TargetAccountID: "a2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := accounts.GetByID(ctx, "a1")
	target, _ := accounts.GetByID(ctx, "a2")
	if !source.Balance.Equal(dec("800")) {
		t.Errorf("expected source balance 800, got %s", source.Balance)
	}
	if !target.Balance.Equal(dec("700")) {
		t.Errorf("expected target balance 700, got %s", target.Balance)
	}
	if total := source.Balance.Add(target.Balance); !total.Equal(dec("1500")) {
		t.Errorf("transfer must conserve total balance, got %s", total)
	}
	if len(result.AccountChanges) != 2 {
		t.Errorf("expected 2 account changes, got %d", len(result.AccountChanges))
	}
}

func TestEngine_CreateTransaction_IncomeAndExpense(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("100")})

	if _, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordIncome,
		Amount:          dec("250"),
		SourceAccountID: "a1",
		Category:        "SALARY",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordExpense,
		Amount:          dec("50"),
		SourceAccountID: "a1",
		Category:        "FOOD",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	if !account.Balance.Equal(dec("300")) {
		t.Errorf("expected balance 300, got %s", account.Balance)
	}
}

func TestEngine_CreateTransaction_RepaymentReducesDebt(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})
	_ = accounts.Save(ctx, &domain.Account{ID: "cc", UserID: "u1", Name: "Visa", Kind: domain.AccountCreditCard, Balance: dec("-300")})

	_, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordRepayment,
		Amount:          dec("200"),
		SourceAccountID: "a1",
		TargetAccountID: "cc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := accounts.GetByID(ctx, "a1")
	credit, _ := accounts.GetByID(ctx, "cc")
	if !source.Balance.Equal(dec("800")) {
		t.Errorf("expected source balance 800, got %s", source.Balance)
	}
	if !credit.Balance.Equal(dec("-100")) {
		t.Errorf("expected credit balance -100, got %s", credit.Balance)
	}
}

func TestEngine_CreateTransaction_PaymentSettlesLiability(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("500")})
	_ = accounts.Save(ctx, &domain.Account{ID: "cc", UserID: "u1", Name: "Visa", Kind: domain.AccountCreditCard, Balance: dec("-200")})

	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordPayment,
		Amount:          dec("200"),
		SourceAccountID: "a1",
		TargetAccountID: "cc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := accounts.GetByID(ctx, "a1")
	credit, _ := accounts.GetByID(ctx, "cc")
	if !source.Balance.Equal(dec("300")) {
		t.Errorf("expected source balance 300, got %s", source.Balance)
	}
	if !credit.Balance.IsZero() {
		t.Errorf("payment must credit the liability, expected 0, got %s", credit.Balance)
	}
	// The debit and the credit must cancel out.
	if len(result.AccountChanges) != 2 {
		t.Fatalf("expected 2 account changes, got %d", len(result.AccountChanges))
	}
	if sum := result.AccountChanges[0].Change.Add(result.AccountChanges[1].Change); !sum.IsZero() {
		t.Errorf("payment deltas must conserve money, got net %s", sum)
	}
}

func TestEngine_CreateTransaction_BuyUpdatesWeightedAvgCost(t *testing.T) {
	ctx := context.Background()
	eng, accounts, holdings, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Broker cash", Kind: domain.AccountBank, Balance: dec("20000")})
	_ = holdings.Save(ctx, &domain.Holding{ID: "h1", UserID: "u1", AccountID: "a1", Name: "VOO", Quantity: dec("10"), AvgCost: dec("1700")})

	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordInvestBuy,
		Amount:          dec("9000"),
		SourceAccountID: "a1",
		HoldingID:       "h1",
		Quantity:        dec("5"),
		UnitPrice:       dec("1800"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	holding, _ := holdings.GetByID(ctx, "h1")
	if !holding.Quantity.Equal(dec("15")) {
		t.Errorf("expected quantity 15, got %s", holding.Quantity)
	}
	// (10*1700 + 5*1800) / 15
	if !holding.AvgCost.Round(2).Equal(dec("1733.33")) {
		t.Errorf("expected avg cost 1733.33, got %s", holding.AvgCost.Round(2))
	}
	if result.InvestmentChange == nil {
		t.Fatal("expected investment change in result")
	}
	if !result.InvestmentChange.NewQuantity.Equal(dec("15")) {
		t.Errorf("expected new quantity 15, got %s", result.InvestmentChange.NewQuantity)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	if !account.Balance.Equal(dec("11000")) {
		t.Errorf("expected balance 11000, got %s", account.Balance)
	}
}

func TestEngine_CreateTransaction_SellExceedsQuantity(t *testing.T) {
	ctx := context.Background()
	eng, accounts, holdings, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Broker cash", Kind: domain.AccountBank, Balance: dec("0")})
	_ = holdings.Save(ctx, &domain.Holding{ID: "h1", UserID: "u1", AccountID: "a1", Name: "VOO", Quantity: dec("3"), AvgCost: dec("100")})

	_, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordInvestSell,
		Amount:          dec("500"),
		SourceAccountID: "a1",
		HoldingID:       "h1",
		Quantity:        dec("5"),
	})
	if !errors.Is(err, repository.ErrSellExceedsQuantity) {
		t.Fatalf("expected ErrSellExceedsQuantity, got %v", err)
	}

	// The failed sell must not touch the balance or the position.
	account, _ := accounts.GetByID(ctx, "a1")
	holding, _ := holdings.GetByID(ctx, "h1")
	if !account.Balance.IsZero() {
		t.Errorf("expected untouched balance, got %s", account.Balance)
	}
	if !holding.Quantity.Equal(dec("3")) {
		t.Errorf("expected untouched quantity, got %s", holding.Quantity)
	}
}

func TestEngine_CreateTransaction_NotOwnedAccount(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "other", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})

	_, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordExpense,
		Amount:          dec("10"),
		SourceAccountID: "a1",
	})
	if !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestEngine_DeleteTransaction_RestoresBalances(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, records := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})
	_ = accounts.Save(ctx, &domain.Account{ID: "a2", UserID: "u1", Name: "Savings", Kind: domain.AccountSavings, Balance: dec("500")})

	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordTransfer,
		Amount:          dec("200"),
		SourceAccountID: "a1",
		TargetAccountID: "a2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := eng.DeleteTransaction(ctx, "u1", result.Record.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source, _ := accounts.GetByID(ctx, "a1")
	target, _ := accounts.GetByID(ctx, "a2")
	if !source.Balance.Equal(dec("1000")) {
		t.Errorf("expected source restored to 1000, got %s", source.Balance)
	}
	if !target.Balance.Equal(dec("500")) {
		t.Errorf("expected target restored to 500, got %s", target.Balance)
	}
	if _, err := records.GetByID(ctx, result.Record.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected record removed, got %v", err)
	}
}

func TestEngine_DeleteTransaction_RestoresHolding(t *testing.T) {
	ctx := context.Background()
	eng, accounts, holdings, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Broker cash", Kind: domain.AccountBank, Balance: dec("20000")})
	_ = holdings.Save(ctx, &domain.Holding{ID: "h1", UserID: "u1", AccountID: "a1", Name: "VOO", Quantity: dec("10"), AvgCost: dec("1700")})

	// Buy at a price above the current average so the delete has to restore
	// the cost basis, not just the quantity.
	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordInvestBuy,
		Amount:          dec("9000"),
		SourceAccountID: "a1",
		HoldingID:       "h1",
		Quantity:        dec("5"),
		UnitPrice:       dec("1800"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := eng.DeleteTransaction(ctx, "u1", result.Record.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	holding, _ := holdings.GetByID(ctx, "h1")
	if !account.Balance.Equal(dec("20000")) {
		t.Errorf("expected balance restored to 20000, got %s", account.Balance)
	}
	if !holding.Quantity.Equal(dec("10")) {
		t.Errorf("expected quantity restored to 10, got %s", holding.Quantity)
	}
	if !holding.AvgCost.Round(2).Equal(dec("1700")) {
		t.Errorf("expected avg cost restored to 1700, got %s", holding.AvgCost.Round(2))
	}
}

func TestEngine_DeleteTransaction_OtherUsersRecordHidden(t *testing.T) {
	ctx := context.Background()
	eng, accounts, _, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})

	result, err := eng.CreateTransaction(ctx, "u1", &domain.TransactionRequest{
		Kind:            domain.RecordExpense,
		Amount:          dec("10"),
		SourceAccountID: "a1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = eng.DeleteTransaction(ctx, "intruder", result.Record.ID)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign record, got %v", err)
	}
}

func TestEngine_CalculateNetWorth(t *testing.T) {
	ctx := context.Background()
	eng, accounts, holdings, _ := newTestEngine()

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "Checking", Kind: domain.AccountBank, Balance: dec("1000")})
	_ = accounts.Save(ctx, &domain.Account{ID: "a2", UserID: "u1", Name: "Flat", Kind: domain.AccountProperty, Balance: dec("50000")})
	_ = accounts.Save(ctx, &domain.Account{ID: "cc", UserID: "u1", Name: "Visa", Kind: domain.AccountCreditCard, Balance: dec("-300")})
	_ = accounts.Save(ctx, &domain.Account{ID: "loan", UserID: "u1", Name: "Car loan", Kind: domain.AccountLoan, Balance: dec("-7000"), MonthlyPayment: dec("350")})
	_ = holdings.Save(ctx, &domain.Holding{ID: "h1", UserID: "u1", AccountID: "a1", Name: "VOO", Quantity: dec("10"), AvgCost: dec("100"), CurrentPrice: dec("120")})

	snapshot, err := eng.CalculateNetWorth(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snapshot.Breakdown.LiquidAssets.Equal(dec("1000")) {
		t.Errorf("expected liquid assets 1000, got %s", snapshot.Breakdown.LiquidAssets)
	}
	if !snapshot.Breakdown.InvestmentValue.Equal(dec("1200")) {
		t.Errorf("expected investment value 1200, got %s", snapshot.Breakdown.InvestmentValue)
	}
	if !snapshot.TotalAssets.Equal(dec("52200")) {
		t.Errorf("expected total assets 52200, got %s", snapshot.TotalAssets)
	}
	if !snapshot.TotalLiabilities.Equal(dec("7300")) {
		t.Errorf("expected total liabilities 7300, got %s", snapshot.TotalLiabilities)
	}
	if !snapshot.NetWorth.Equal(dec("44900")) {
		t.Errorf("expected net worth 44900, got %s", snapshot.NetWorth)
	}
}
