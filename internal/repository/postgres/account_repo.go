package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finance_ledger/internal/domain"
	"finance_ledger/internal/repository"
)

// AccountRepository reads and writes accounts in the same database the
// store applies mutations to. Balance changes go exclusively through
// Store.Apply; Update covers metadata and loan terms.
type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

const accountColumns = `id, user_id, name, kind, balance, monthly_payment,
	interest_rate, term_months, created_at, last_activity_at`

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	const query = `INSERT INTO accounts
		(id, user_id, name, kind, balance, monthly_payment,
		 interest_rate, term_months, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`

	_, err := r.store.db.ExecContext(ctx, query,
		account.ID, account.UserID, account.Name, account.Kind,
		account.Balance, account.MonthlyPayment,
		account.InterestRate, account.TermMonths)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}
	return err
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return account, err
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts
		WHERE user_id = $1 ORDER BY name`

	rows, err := r.store.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `UPDATE accounts
		SET name = $1, kind = $2, monthly_payment = $3,
		    interest_rate = $4, term_months = $5, last_activity_at = now()
		WHERE id = $6`

	res, err := r.store.db.ExecContext(ctx, query,
		account.Name, account.Kind, account.MonthlyPayment,
		account.InterestRate, account.TermMonths, account.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, account.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
		&account.Kind,
		&account.Balance,
		&account.MonthlyPayment,
		&account.InterestRate,
		&account.TermMonths,
		&account.CreatedAt,
		&account.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
