package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStore_Apply_AtomicAcrossAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	accounts := NewAccountRepository(store)

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "A", Kind: domain.AccountBank, Balance: dec("100")})

	// Second delta references a missing account, so the first must not apply.
	err := store.Apply(ctx, repository.Mutation{
		AccountDeltas: []repository.AccountDelta{
			{AccountID: "a1", Delta: dec("-50")},
			{AccountID: "missing", Delta: dec("50")},
		},
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	if !account.Balance.Equal(dec("100")) {
		t.Errorf("failed mutation must leave balances untouched, got %s", account.Balance)
	}
}

func TestStore_Apply_RejectsNegativeHoldingResult(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	accounts := NewAccountRepository(store)
	holdings := NewHoldingRepository(store)

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "A", Kind: domain.AccountBank, Balance: dec("100")})
	_ = holdings.Save(ctx, &domain.Holding{ID: "h1", UserID: "u1", AccountID: "a1", Name: "VOO", Quantity: dec("2"), AvgCost: dec("10")})

	err := store.Apply(ctx, repository.Mutation{
		AccountDeltas: []repository.AccountDelta{{AccountID: "a1", Delta: dec("30")}},
		Holding:       &repository.HoldingUpdate{HoldingID: "h1", QuantityDelta: dec("-3")},
	})
	if !errors.Is(err, repository.ErrSellExceedsQuantity) {
		t.Fatalf("expected ErrSellExceedsQuantity, got %v", err)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	if !account.Balance.Equal(dec("100")) {
		t.Errorf("failed mutation must leave balances untouched, got %s", account.Balance)
	}
}

func TestStore_Apply_DuplicateRecordRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	accounts := NewAccountRepository(store)

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "A", Kind: domain.AccountBank, Balance: dec("100")})

	record := &domain.LedgerRecord{ID: "r1", UserID: "u1", Kind: domain.RecordExpense, Amount: dec("10"), SourceAccountID: "a1"}
	if err := store.Apply(ctx, repository.Mutation{CreateRecord: record}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Apply(ctx, repository.Mutation{
		AccountDeltas: []repository.AccountDelta{{AccountID: "a1", Delta: dec("-10")}},
		CreateRecord:  record,
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	account, _ := accounts.GetByID(ctx, "a1")
	if !account.Balance.Equal(dec("100")) {
		t.Errorf("failed mutation must leave balances untouched, got %s", account.Balance)
	}
}

func TestAccountRepository_CopyOnRead(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	accounts := NewAccountRepository(store)

	_ = accounts.Save(ctx, &domain.Account{ID: "a1", UserID: "u1", Name: "A", Kind: domain.AccountBank, Balance: dec("100")})

	first, _ := accounts.GetByID(ctx, "a1")
	first.Balance = dec("999")

	second, _ := accounts.GetByID(ctx, "a1")
	if !second.Balance.Equal(dec("100")) {
		t.Errorf("mutating a returned account must not affect the store, got %s", second.Balance)
	}
}

func TestAutoPaymentRepository_ListDue(t *testing.T) {
	ctx := context.Background()
	repo := NewAutoPaymentRepository()
	now := time.Now()

	_ = repo.Save(ctx, &domain.AutoPayment{ID: "due", UserID: "u1", Name: "Due", DayOfMonth: 1, IsEnabled: true, NextRunAt: now.Add(-time.Hour)})
	_ = repo.Save(ctx, &domain.AutoPayment{ID: "future", UserID: "u1", Name: "Future", DayOfMonth: 1, IsEnabled: true, NextRunAt: now.Add(time.Hour)})
	_ = repo.Save(ctx, &domain.AutoPayment{ID: "disabled", UserID: "u1", Name: "Disabled", DayOfMonth: 1, IsEnabled: false, NextRunAt: now.Add(-time.Hour)})

	due, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Errorf("expected only the due enabled payment, got %+v", due)
	}
}

func TestAutoPaymentRepository_CloneIsolatesSources(t *testing.T) {
	ctx := context.Background()
	repo := NewAutoPaymentRepository()

	_ = repo.Save(ctx, &domain.AutoPayment{
		ID: "p1", UserID: "u1", Name: "P", DayOfMonth: 1, IsEnabled: true,
		Sources: []domain.FundingSource{{AccountID: "a", Priority: 1}},
	})

	payment, _ := repo.GetByID(ctx, "p1")
	payment.Sources[0].AccountID = "tampered"

	fresh, _ := repo.GetByID(ctx, "p1")
	if fresh.Sources[0].AccountID != "a" {
		t.Errorf("mutating returned sources must not affect the store, got %s", fresh.Sources[0].AccountID)
	}
}

func TestScheduledTaskRepository_ListDueHonorsEndDate(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduledTaskRepository()
	now := time.Now()

	_ = repo.Save(ctx, &domain.ScheduledTask{
		ID: "active", UserID: "u1", Name: "Active", Kind: domain.RecordExpense,
		IsEnabled: true, NextRunAt: now.Add(-time.Minute),
		StartDate: now.AddDate(0, -1, 0),
	})
	_ = repo.Save(ctx, &domain.ScheduledTask{
		ID: "ended", UserID: "u1", Name: "Ended", Kind: domain.RecordExpense,
		IsEnabled: true, NextRunAt: now.Add(-time.Minute),
		StartDate: now.AddDate(0, -2, 0),
		EndDate:   now.AddDate(0, 0, -1),
	})

	due, err := repo.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "active" {
		t.Errorf("expected only the task inside its window, got %+v", due)
	}
}

func TestRecordRepository_GetByAccountIDPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	records := NewRecordRepository(store)
	now := time.Now()

	for i := 0; i < 5; i++ {
		_ = store.Apply(ctx, repository.Mutation{CreateRecord: &domain.LedgerRecord{
			ID: domain.NewRecordID(), UserID: "u1", Kind: domain.RecordExpense,
			Amount: dec("10"), SourceAccountID: "a1",
			Date: now.Add(-time.Duration(i) * time.Hour),
		}})
	}
	_ = store.Apply(ctx, repository.Mutation{CreateRecord: &domain.LedgerRecord{
		ID: domain.NewRecordID(), UserID: "u1", Kind: domain.RecordExpense,
		Amount: dec("10"), SourceAccountID: "other", Date: now,
	}})

	page, err := records.GetByAccountID(ctx, "a1", 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if page[0].Date.Before(page[1].Date) {
		t.Error("expected newest records first")
	}
}

func TestRecordRepository_GetByPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	records := NewRecordRepository(store)
	now := time.Now()

	_ = store.Apply(ctx, repository.Mutation{CreateRecord: &domain.LedgerRecord{
		ID: "inside", UserID: "u1", Kind: domain.RecordExpense,
		Amount: dec("10"), SourceAccountID: "a1", Date: now.AddDate(0, 0, -5),
	}})
	_ = store.Apply(ctx, repository.Mutation{CreateRecord: &domain.LedgerRecord{
		ID: "outside", UserID: "u1", Kind: domain.RecordExpense,
		Amount: dec("10"), SourceAccountID: "a1", Date: now.AddDate(0, -2, 0),
	}})
	_ = store.Apply(ctx, repository.Mutation{CreateRecord: &domain.LedgerRecord{
		ID: "foreign", UserID: "u2", Kind: domain.RecordExpense,
		Amount: dec("10"), SourceAccountID: "a2", Date: now.AddDate(0, 0, -5),
	}})

	result, err := records.GetByPeriod(ctx, "u1", now.AddDate(0, -1, 0), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].ID != "inside" {
		t.Errorf("expected only the record inside the period, got %+v", result)
	}
}

func TestExecutionLogRepository_ListAndCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionLogRepository()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_ = repo.Append(ctx, &domain.ExecutionLogEntry{
			ID: domain.NewRecordID(), DefinitionID: "p1",
			Status: domain.ExecutionSuccess, ExecutedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	_ = repo.Append(ctx, &domain.ExecutionLogEntry{
		ID: domain.NewRecordID(), DefinitionID: "other",
		Status: domain.ExecutionSuccess, ExecutedAt: now,
	})

	entries, err := repo.ListByDefinition(ctx, "p1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected limit of 3 entries, got %d", len(entries))
	}
	if entries[0].ExecutedAt.Before(entries[1].ExecutedAt) {
		t.Error("expected newest entries first")
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-36*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 purged entries, got %d", deleted)
	}
}
