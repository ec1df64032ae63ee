package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finance_ledger/internal/domain"
)

type ExecutionLogRepository struct {
	mu      sync.RWMutex
	entries []*domain.ExecutionLogEntry
}

func NewExecutionLogRepository() *ExecutionLogRepository {
	return &ExecutionLogRepository{}
}

func (r *ExecutionLogRepository) Append(ctx context.Context, entry *domain.ExecutionLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.entries = append(r.entries, &copied)

	return nil
}

func (r *ExecutionLogRepository) ListByDefinition(ctx context.Context, definitionID string, limit int) ([]*domain.ExecutionLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.ExecutionLogEntry
	for _, entry := range r.entries {
		if entry.DefinitionID == definitionID {
			copied := *entry
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutedAt.After(result[j].ExecutedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *ExecutionLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	deleted := 0
	for _, entry := range r.entries {
		if entry.ExecutedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept

	return deleted, nil
}
