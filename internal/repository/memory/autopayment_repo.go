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

type AutoPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.AutoPayment
}

func NewAutoPaymentRepository() *AutoPaymentRepository {
	return &AutoPaymentRepository{
		payments: make(map[string]*domain.AutoPayment),
	}
}

func (r *AutoPaymentRepository) Save(ctx context.Context, payment *domain.AutoPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[payment.ID]; exists {
		return fmt.Errorf("%w: auto payment %s", repository.ErrDuplicate, payment.ID)
	}

	payment.CreatedAt = time.Now()
	stored := clonePayment(payment)
	r.payments[payment.ID] = stored

	return nil
}

func (r *AutoPaymentRepository) GetByID(ctx context.Context, id string) (*domain.AutoPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, exists := r.payments[id]
	if !exists {
		return nil, fmt.Errorf("%w: auto payment %s", repository.ErrNotFound, id)
	}

	return clonePayment(payment), nil
}

func (r *AutoPaymentRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.AutoPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AutoPayment
	for _, payment := range r.payments {
		if payment.UserID == userID {
			result = append(result, clonePayment(payment))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DayOfMonth < result[j].DayOfMonth
	})

	return result, nil
}

func (r *AutoPaymentRepository) Update(ctx context.Context, payment *domain.AutoPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[payment.ID]; !exists {
		return fmt.Errorf("%w: auto payment %s", repository.ErrNotFound, payment.ID)
	}

	r.payments[payment.ID] = clonePayment(payment)

	return nil
}

func (r *AutoPaymentRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.AutoPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AutoPayment
	for _, payment := range r.payments {
		if payment.IsEnabled && !payment.NextRunAt.After(now) {
			result = append(result, clonePayment(payment))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].NextRunAt.Before(result[j].NextRunAt)
	})

	return result, nil
}

func (r *AutoPaymentRepository) ListByDayOfMonth(ctx context.Context, day int) ([]*domain.AutoPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AutoPayment
	for _, payment := range r.payments {
		if payment.IsEnabled && payment.DayOfMonth == day {
			result = append(result, clonePayment(payment))
		}
	}

	return result, nil
}

func clonePayment(payment *domain.AutoPayment) *domain.AutoPayment {
	copied := *payment
	copied.Sources = make([]domain.FundingSource, len(payment.Sources))
	copy(copied.Sources, payment.Sources)
	return &copied
}
