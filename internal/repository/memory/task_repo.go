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

type ScheduledTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.ScheduledTask
}

func NewScheduledTaskRepository() *ScheduledTaskRepository {
	return &ScheduledTaskRepository{
		tasks: make(map[string]*domain.ScheduledTask),
	}
}

func (r *ScheduledTaskRepository) Save(ctx context.Context, task *domain.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; exists {
		return fmt.Errorf("%w: scheduled task %s", repository.ErrDuplicate, task.ID)
	}

	task.CreatedAt = time.Now()
	copied := *task
	r.tasks[task.ID] = &copied

	return nil
}

func (r *ScheduledTaskRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[id]
	if !exists {
		return nil, fmt.Errorf("%w: scheduled task %s", repository.ErrNotFound, id)
	}

	copied := *task
	return &copied, nil
}

func (r *ScheduledTaskRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.ScheduledTask
	for _, task := range r.tasks {
		if task.UserID == userID {
			copied := *task
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *ScheduledTaskRepository) Update(ctx context.Context, task *domain.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; !exists {
		return fmt.Errorf("%w: scheduled task %s", repository.ErrNotFound, task.ID)
	}

	copied := *task
	r.tasks[task.ID] = &copied

	return nil
}

func (r *ScheduledTaskRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.ScheduledTask
	for _, task := range r.tasks {
		if !task.IsEnabled || task.NextRunAt.After(now) {
			continue
		}
		if !task.EndDate.IsZero() && task.EndDate.Before(now) {
			continue
		}
		copied := *task
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].NextRunAt.Before(result[j].NextRunAt)
	})

	return result, nil
}
