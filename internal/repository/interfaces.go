package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"finance_ledger/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate entry")
	ErrSellExceedsQuantity = errors.New("sell quantity exceeds holding quantity")
)

// AccountDelta is one signed balance adjustment inside a Mutation.
type AccountDelta struct {
	AccountID string
	Delta     decimal.Decimal
}

// HoldingUpdate adjusts a holding's quantity and, on buys, replaces its
// weighted-average cost.
type HoldingUpdate struct {
	HoldingID     string
	QuantityDelta decimal.Decimal
	// SetAvgCost, when non-nil, overwrites the holding's average cost.
	SetAvgCost *decimal.Decimal
}

// Mutation is the store's transactional multi-write unit: every delta, the
// optional holding update and the record create/delete are applied atomically
// or not at all. A failed Mutation must leave no observable partial state.
type Mutation struct {
	AccountDeltas  []AccountDelta
	Holding        *HoldingUpdate
	CreateRecord   *domain.LedgerRecord
	DeleteRecordID string
}

// LedgerStore is the transactional write primitive the engine relies on.
type LedgerStore interface {
	Apply(ctx context.Context, m Mutation) error
}

type AccountRepository interface {
	Save(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

type HoldingRepository interface {
	Save(ctx context.Context, holding *domain.Holding) error
	GetByID(ctx context.Context, id string) (*domain.Holding, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Holding, error)
}

type RecordRepository interface {
	GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error)
	GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerRecord, error)
	GetByPeriod(ctx context.Context, userID string, from, to time.Time) ([]*domain.LedgerRecord, error)
}

type AutoPaymentRepository interface {
	Save(ctx context.Context, payment *domain.AutoPayment) error
	GetByID(ctx context.Context, id string) (*domain.AutoPayment, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.AutoPayment, error)
	Update(ctx context.Context, payment *domain.AutoPayment) error
	// ListDue returns enabled payments whose NextRunAt is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*domain.AutoPayment, error)
	// ListByDayOfMonth returns enabled payments anchored on the given
	// calendar day, used by the reminder pass.
	ListByDayOfMonth(ctx context.Context, day int) ([]*domain.AutoPayment, error)
}

type AutoIncomeRepository interface {
	Save(ctx context.Context, income *domain.AutoIncome) error
	GetByID(ctx context.Context, id string) (*domain.AutoIncome, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.AutoIncome, error)
	Update(ctx context.Context, income *domain.AutoIncome) error
	ListDue(ctx context.Context, now time.Time) ([]*domain.AutoIncome, error)
}

type ScheduledTaskRepository interface {
	Save(ctx context.Context, task *domain.ScheduledTask) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledTask, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.ScheduledTask, error)
	Update(ctx context.Context, task *domain.ScheduledTask) error
	// ListDue returns enabled tasks due at or before now and still inside
	// their [StartDate, EndDate] bounds.
	ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduledTask, error)
}

type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *domain.ExecutionLogEntry) error
	ListByDefinition(ctx context.Context, definitionID string, limit int) ([]*domain.ExecutionLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
