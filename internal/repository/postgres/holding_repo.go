package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

type HoldingRepository struct {
	store *Store
}

func NewHoldingRepository(store *Store) *HoldingRepository {
	return &HoldingRepository{store: store}
}

const holdingColumns = `id, user_id, account_id, name, quantity, avg_cost,
	current_price, created_at, updated_at`

func (r *HoldingRepository) Save(ctx context.Context, holding *domain.Holding) error {
	const query = `INSERT INTO holdings
		(id, user_id, account_id, name, quantity, avg_cost,
		 current_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`

	_, err := r.store.db.ExecContext(ctx, query,
		holding.ID, holding.UserID, holding.AccountID, holding.Name,
		holding.Quantity, holding.AvgCost, holding.CurrentPrice)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: holding %s", repository.ErrDuplicate, holding.ID)
	}
	return err
}

func (r *HoldingRepository) GetByID(ctx context.Context, id string) (*domain.Holding, error) {
	const query = `SELECT ` + holdingColumns + ` FROM holdings WHERE id = $1`

	holding, err := scanHolding(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: holding %s", repository.ErrNotFound, id)
	}
	return holding, err
}

func (r *HoldingRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Holding, error) {
	const query = `SELECT ` + holdingColumns + ` FROM holdings
		WHERE user_id = $1 ORDER BY name`

	rows, err := r.store.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Holding
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, holding)
	}
	return result, rows.Err()
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var holding domain.Holding
	err := row.Scan(
		&holding.ID,
		&holding.UserID,
		&holding.AccountID,
		&holding.Name,
		&holding.Quantity,
		&holding.AvgCost,
		&holding.CurrentPrice,
		&holding.CreatedAt,
		&holding.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

var _ repository.HoldingRepository = (*HoldingRepository)(nil)
