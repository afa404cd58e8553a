package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/types"
)

type expenseStore struct {
	q querier
}

const expenseColumns = `id, group_id, paid_by, description, amount, currency, category, created_at, updated_at, deleted_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (*types.Expense, error) {
	var (
		e                    types.Expense
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	err := row.Scan(&e.ID, &e.GroupID, &e.PaidBy, &e.Description, &e.Amount, &e.Currency, &e.Category, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	if e.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if e.DeletedAt, err = decodeNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *expenseStore) Get(ctx context.Context, id string, includeDeleted bool) (*types.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return scanExpense(s.q.QueryRowContext(ctx, query, id))
}

func (s *expenseStore) InsertIgnore(ctx context.Context, expense *types.Expense) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PaidBy, expense.Description,
		expense.Amount, expense.Currency, expense.Category,
		encodeTime(expense.CreatedAt), encodeTime(expense.UpdatedAt),
		encodeNullableTime(expense.DeletedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *expenseStore) Update(ctx context.Context, expense *types.Expense) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE expenses
		SET group_id = ?, paid_by = ?, description = ?, amount = ?, currency = ?,
		    category = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		expense.GroupID, expense.PaidBy, expense.Description, expense.Amount,
		expense.Currency, expense.Category, encodeTime(expense.UpdatedAt),
		encodeNullableTime(expense.DeletedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireRow(res)
}

func (s *expenseStore) SetUpdatedAt(ctx context.Context, id string, updatedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE expenses SET updated_at = ? WHERE id = ?`,
		encodeTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set expense updated_at: %w", err)
	}
	return requireRow(res)
}

func (s *expenseStore) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		encodeTime(deletedAt), encodeTime(deletedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete expense: %w", err)
	}
	return requireRow(res)
}

func (s *expenseStore) HardDelete(ctx context.Context, id string) error {
	// Shares go with the expense via ON DELETE CASCADE.
	_, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete expense: %w", err)
	}
	return nil
}

func (s *expenseStore) ListByGroup(ctx context.Context, groupID string) ([]*types.Expense, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE group_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*types.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type shareStore struct {
	q querier
}

const shareColumns = `expense_id, user_id, amount, created_at, updated_at`

func scanShare(row interface{ Scan(...interface{}) error }) (*types.ExpenseShare, error) {
	var (
		sh                   types.ExpenseShare
		createdAt, updatedAt string
	)
	err := row.Scan(&sh.ExpenseID, &sh.UserID, &sh.Amount, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan share: %w", err)
	}
	if sh.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if sh.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *shareStore) Get(ctx context.Context, expenseID, userID string) (*types.ExpenseShare, error) {
	return scanShare(s.q.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = ? AND user_id = ?`,
		expenseID, userID,
	))
}

func (s *shareStore) InsertIgnore(ctx context.Context, share *types.ExpenseShare) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO expense_shares (`+shareColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		share.ExpenseID, share.UserID, share.Amount,
		encodeTime(share.CreatedAt), encodeTime(share.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *shareStore) Update(ctx context.Context, share *types.ExpenseShare) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE expense_shares SET amount = ?, updated_at = ?
		WHERE expense_id = ? AND user_id = ?`,
		share.Amount, encodeTime(share.UpdatedAt), share.ExpenseID, share.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	return requireRow(res)
}

func (s *shareStore) ListByExpense(ctx context.Context, expenseID string) ([]*types.ExpenseShare, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = ? ORDER BY user_id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*types.ExpenseShare
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

func (s *shareStore) DeleteByExpense(ctx context.Context, expenseID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM expense_shares WHERE expense_id = ?`, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete shares: %w", err)
	}
	return nil
}

type settlementStore struct {
	q querier
}

func (s *settlementStore) Insert(ctx context.Context, settlement *types.Settlement) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO settlements (id, group_id, payer_id, payee_id, amount, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.PayerID, settlement.PayeeID,
		settlement.Amount, settlement.Notes,
		encodeTime(settlement.CreatedAt), encodeTime(settlement.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

func (s *settlementStore) ListByGroup(ctx context.Context, groupID string) ([]*types.Settlement, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, group_id, payer_id, payee_id, amount, notes, created_at, updated_at
		FROM settlements WHERE group_id = ? ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*types.Settlement
	for rows.Next() {
		var (
			st                   types.Settlement
			createdAt, updatedAt string
		)
		if err := rows.Scan(&st.ID, &st.GroupID, &st.PayerID, &st.PayeeID, &st.Amount, &st.Notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if st.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		if st.UpdatedAt, err = decodeTime(updatedAt); err != nil {
			return nil, err
		}
		settlements = append(settlements, &st)
	}
	return settlements, rows.Err()
}
