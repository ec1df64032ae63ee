package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

// AccountRepository reads and writes accounts held by the shared Store.
// Balance changes go exclusively through Store.Apply; Update is for
// metadata such as name or monthly installment.
type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}

	account.CreatedAt = time.Now()
	account.LastActivityAt = time.Now()
	stored := *account
	r.store.accounts[account.ID] = &stored

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, exists := r.store.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}

	copied := *account
	return &copied, nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.Account
	for _, account := range r.store.accounts {
		if account.UserID == userID {
			copied := *account
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.accounts[account.ID]; !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, account.ID)
	}

	account.LastActivityAt = time.Now()
	stored := *account
	r.store.accounts[account.ID] = &stored

	return nil
}
