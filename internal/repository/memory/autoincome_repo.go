package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

type AutoIncomeRepository struct {
	mu      sync.RWMutex
	incomes map[string]*domain.AutoIncome
}

func NewAutoIncomeRepository() *AutoIncomeRepository {
	return &AutoIncomeRepository{
		incomes: make(map[string]*domain.AutoIncome),
	}
}

func (r *AutoIncomeRepository) Save(ctx context.Context, income *domain.AutoIncome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.incomes[income.ID]; exists {
		return fmt.Errorf("%w: auto income %s", repository.ErrDuplicate, income.ID)
	}

	income.CreatedAt = time.Now()
	copied := *income
	r.incomes[income.ID] = &copied

	return nil
}

func (r *AutoIncomeRepository) GetByID(ctx context.Context, id string) (*domain.AutoIncome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	income, exists := r.incomes[id]
	if !exists {
		return nil, fmt.Errorf("%w: auto income %s", repository.ErrNotFound, id)
	}

	copied := *income
	return &copied, nil
}

func (r *AutoIncomeRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.AutoIncome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AutoIncome
	for _, income := range r.incomes {
		if income.UserID == userID {
			copied := *income
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DayOfMonth < result[j].DayOfMonth
	})

	return result, nil
}

func (r *AutoIncomeRepository) Update(ctx context.Context, income *domain.AutoIncome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.incomes[income.ID]; !exists {
		return fmt.Errorf("%w: auto income %s", repository.ErrNotFound, income.ID)
	}

	copied := *income
	r.incomes[income.ID] = &copied

	return nil
}

func (r *AutoIncomeRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.AutoIncome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AutoIncome
	for _, income := range r.incomes {
		if income.IsEnabled && !income.NextRunAt.After(now) {
			copied := *income
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].NextRunAt.Before(result[j].NextRunAt)
	})

	return result, nil
}
