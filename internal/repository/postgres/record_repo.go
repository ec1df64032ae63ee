package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const recordColumns = `id, user_id, kind, amount, category, note,
	source_account_id, COALESCE(target_account_id, ''), COALESCE(holding_id, ''),
	quantity, unit_price, date, created_at`

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM ledger_records WHERE id = $1`

	record, err := scanRecord(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", repository.ErrNotFound, id)
	}
	return record, err
}

func (r *RecordRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM ledger_records
		WHERE source_account_id = $1 OR target_account_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.store.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *RecordRepository) GetByPeriod(ctx context.Context, userID string, from, to time.Time) ([]*domain.LedgerRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM ledger_records
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`

	rows, err := r.store.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*domain.LedgerRecord, error) {
	var result []*domain.LedgerRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func scanRecord(row rowScanner) (*domain.LedgerRecord, error) {
	var record domain.LedgerRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Kind,
		&record.Amount,
		&record.Category,
		&record.Note,
		&record.SourceAccountID,
		&record.TargetAccountID,
		&record.HoldingID,
		&record.Quantity,
		&record.UnitPrice,
		&record.Date,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

var _ repository.RecordRepository = (*RecordRepository)(nil)
