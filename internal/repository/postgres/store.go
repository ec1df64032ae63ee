// Package postgres backs the ledger store with PostgreSQL. The Mutation unit
// maps onto one database transaction, so a mid-apply failure rolls every
// delta back.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"finance_ledger/internal/repository"
)

type Store struct {
	db *sql.DB
}

// Open connects with the lib/pq driver and pings to fail fast on a bad DSN.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Apply runs the whole mutation inside one database transaction. Balance
// updates assert the row exists, holding updates assert the resulting
// quantity stays non-negative, and any failure rolls the unit back.
func (s *Store) Apply(ctx context.Context, m repository.Mutation) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, delta := range m.AccountDeltas {
		if err = s.applyDelta(ctx, tx, delta); err != nil {
			return err
		}
	}

	if m.Holding != nil {
		if err = s.applyHolding(ctx, tx, *m.Holding); err != nil {
			return err
		}
	}

	if m.CreateRecord != nil {
		if err = s.insertRecord(ctx, tx, m); err != nil {
			return err
		}
	}

	if m.DeleteRecordID != "" {
		if err = s.deleteRecord(ctx, tx, m.DeleteRecordID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) applyDelta(ctx context.Context, tx *sql.Tx, delta repository.AccountDelta) error {
	const query = `UPDATE accounts
		SET balance = balance + $1, last_activity_at = now()
		WHERE id = $2`

	res, err := tx.ExecContext(ctx, query, delta.Delta, delta.AccountID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, delta.AccountID)
	}
	return nil
}

func (s *Store) applyHolding(ctx context.Context, tx *sql.Tx, update repository.HoldingUpdate) error {
	const query = `UPDATE holdings
		SET quantity = quantity + $1,
		    avg_cost = COALESCE($2, avg_cost)
		WHERE id = $3 AND quantity + $1 >= 0`

	var setAvgCost any
	if update.SetAvgCost != nil {
		setAvgCost = *update.SetAvgCost
	}

	res, err := tx.ExecContext(ctx, query, update.QuantityDelta, setAvgCost, update.HoldingID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the holding is missing or the sell exceeds the position;
		// distinguish for the caller.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM holdings WHERE id = $1)`, update.HoldingID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: holding %s", repository.ErrNotFound, update.HoldingID)
		}
		return fmt.Errorf("%w: holding %s", repository.ErrSellExceedsQuantity, update.HoldingID)
	}
	return nil
}

func (s *Store) insertRecord(ctx context.Context, tx *sql.Tx, m repository.Mutation) error {
	const query = `INSERT INTO ledger_records
		(id, user_id, kind, amount, category, note,
		 source_account_id, target_account_id, holding_id,
		 quantity, unit_price, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)`

	r := m.CreateRecord
	_, err := tx.ExecContext(ctx, query,
		r.ID, r.UserID, r.Kind, r.Amount, r.Category, r.Note,
		r.SourceAccountID, r.TargetAccountID, r.HoldingID,
		r.Quantity, r.UnitPrice, r.Date, r.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: record %s", repository.ErrDuplicate, r.ID)
	}
	return err
}

func (s *Store) deleteRecord(ctx context.Context, tx *sql.Tx, recordID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM ledger_records WHERE id = $1`, recordID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s", repository.ErrNotFound, recordID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

var _ repository.LedgerStore = (*Store)(nil)
