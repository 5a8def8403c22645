package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneyman/internal/core"
	"moneyman/internal/ledger"
)

const transactionColumns = "id, user_id, type, amount, category, division, description, date, account_from, account_to, pair_id, created_at"

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tx.ID, tx.User, string(tx.Type), tx.Amount.String(), tx.Category, string(tx.Division),
		tx.Description, encodeTime(tx.Date), tx.AccountFrom, tx.AccountTo, tx.PairID,
		encodeTime(tx.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return tx, err
}

func (r *SQLiteRepository) Transactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	var where []string
	var args []any
	if f.User != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.User)
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Division != "" {
		where = append(where, "division = ?")
		args = append(args, string(f.Division))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.PairID != "" {
		where = append(where, "pair_id = ?")
		args = append(args, f.PairID)
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, encodeTime(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, encodeTime(f.DateTo))
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET amount = ?, category = ?, division = ?, description = ?, date = ?
		 WHERE id = ?`,
		tx.Amount.String(), tx.Category, string(tx.Division), tx.Description,
		encodeTime(tx.Date), tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var tx core.Transaction
	var txType, amount, division, date, createdAt string
	err := row.Scan(&tx.ID, &tx.User, &txType, &amount, &tx.Category, &division,
		&tx.Description, &date, &tx.AccountFrom, &tx.AccountTo, &tx.PairID, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(txType)
	tx.Division = core.Division(division)

	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if tx.Date, err = decodeTime(date); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
