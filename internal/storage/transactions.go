package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/service"
)

const transactionColumns = `id, hash, date, description, notes, amount, account_id, category_id, active`

// SaveTransactions inserts transactions, skipping any whose hash is already
// stored. It returns the number of rows inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		var categoryID sql.NullInt64
		if txn.CategoryID > 0 {
			categoryID = sql.NullInt64{Int64: int64(txn.CategoryID), Valid: true}
		}

		result, execErr := stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.Date.UTC(),
			txn.Description,
			txn.Notes,
			txn.Amount.String(),
			txn.AccountID,
			categoryID,
			txn.Active,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, execErr)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}

	slog.Debug("saved transactions", "received", len(transactions), "inserted", inserted)
	return inserted, nil
}

// ListActiveTransactions returns active transactions matching filter,
// most recent first.
func (s *SQLiteStorage) ListActiveTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var (
		where = []string{"active = 1"}
		args  []any
	)
	if filter.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// GetTransactionByID returns a transaction, active or not.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateTransactionCategory assigns a category to a transaction and records
// the change. Assigning the category a transaction already has is a no-op.
func (s *SQLiteStorage) UpdateTransactionCategory(ctx context.Context, transactionID string, categoryID int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if categoryID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCategoryID, categoryID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT category_id FROM transactions WHERE id = ?`, transactionID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read current category: %w", err)
	}

	if current.Valid && int(current.Int64) == categoryID {
		return nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, updated_at = ? WHERE id = ?`,
		categoryID, now, transactionID); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO category_history (transaction_id, from_category_id, to_category_id, changed_at)
		VALUES (?, ?, ?, ?)`,
		transactionID, current, categoryID, now); err != nil {
		return fmt.Errorf("failed to record category change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category update: %w", err)
	}
	return nil
}

// GetCategoryHistory returns recorded category changes for a transaction,
// oldest first.
func (s *SQLiteStorage) GetCategoryHistory(ctx context.Context, transactionID string) ([]model.CategoryChange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, from_category_id, to_category_id, changed_at
		FROM category_history
		WHERE transaction_id = ?
		ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category history: %w", err)
	}
	defer rows.Close()

	var changes []model.CategoryChange
	for rows.Next() {
		var (
			change model.CategoryChange
			from   sql.NullInt64
		)
		if err := rows.Scan(&change.TransactionID, &from, &change.ToCategoryID, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category change: %w", err)
		}
		change.FromCategoryID = int(from.Int64)
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category history: %w", err)
	}

	return changes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		txn        model.Transaction
		categoryID sql.NullInt64
	)
	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Date,
		&txn.Description,
		&txn.Notes,
		&txn.Amount,
		&txn.AccountID,
		&categoryID,
		&txn.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return txn, err
	}
	if err != nil {
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.CategoryID = int(categoryID.Int64)
	return txn, nil
}
