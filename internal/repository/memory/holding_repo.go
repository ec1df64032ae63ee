package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

type HoldingRepository struct {
	store *Store
}

func NewHoldingRepository(store *Store) *HoldingRepository {
	return &HoldingRepository{store: store}
}

func (r *HoldingRepository) Save(ctx context.Context, holding *domain.Holding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.holdings[holding.ID]; exists {
		return fmt.Errorf("%w: holding %s", repository.ErrDuplicate, holding.ID)
	}

	holding.CreatedAt = time.Now()
	holding.UpdatedAt = time.Now()
	stored := *holding
	r.store.holdings[holding.ID] = &stored

	return nil
}

func (r *HoldingRepository) GetByID(ctx context.Context, id string) (*domain.Holding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	holding, exists := r.store.holdings[id]
	if !exists {
		return nil, fmt.Errorf("%w: holding %s", repository.ErrNotFound, id)
	}

	copied := *holding
	return &copied, nil
}

func (r *HoldingRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Holding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.Holding
	for _, holding := range r.store.holdings {
		if holding.UserID == userID {
			copied := *holding
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}
