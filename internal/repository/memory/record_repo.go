package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

// RecordRepository is a read-only view over booked records; records are
// created and deleted only through Store.Apply.
type RecordRepository struct {
	store *Store
}

func NewRecordRepository(store *Store) *RecordRepository {
	return &RecordRepository{store: store}
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, exists := r.store.records[id]
	if !exists {
		return nil, fmt.Errorf("%w: record %s", repository.ErrNotFound, id)
	}

	copied := *record
	return &copied, nil
}

func (r *RecordRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*domain.LedgerRecord
	for _, record := range r.store.records {
		if record.SourceAccountID == accountID || record.TargetAccountID == accountID {
			copied := *record
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	if offset >= len(matched) {
		return []*domain.LedgerRecord{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], nil
}

func (r *RecordRepository) GetByPeriod(ctx context.Context, userID string, from, to time.Time) ([]*domain.LedgerRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.LedgerRecord
	for _, record := range r.store.records {
		if record.UserID == userID && !record.Date.Before(from) && !record.Date.After(to) {
			copied := *record
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}
