package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneyman/internal/core"
)

const accountColumns = "id, user_id, name, type, balance, created_at, updated_at"

func (r *SQLiteRepository) AccountsByUser(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Account(ctx context.Context, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	return a, err
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.User, a.Name, string(a.Type), a.Balance.String(),
		encodeTime(a.CreatedAt), encodeTime(a.UpdatedAt))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET name = ?, type = ?, balance = ?, updated_at = ? WHERE id = ?",
		a.Name, string(a.Type), a.Balance.String(), encodeTime(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var accType, balance, createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.User, &a.Name, &accType, &balance, &createdAt, &updatedAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(accType)

	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}
