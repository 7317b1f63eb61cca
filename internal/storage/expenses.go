package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expenses/internal/core"
)

const expenseSelect = `
SELECT e.id, e.user_id, e.category_id, e.amount_cents, e.date, e.description,
       e.created_at, e.updated_at, u.name, c.name
FROM expenses e
JOIN users u ON e.user_id = u.id
JOIN categories c ON e.category_id = c.id`

// querier is the subset of *sql.DB and *sql.Tx the read helpers need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// expenseWhere renders the filter as a WHERE clause. The same clause and
// arguments feed both the count and the page query.
func expenseWhere(f core.ExpenseFilter) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(" WHERE 1=1")
	if f.UserID != nil {
		b.WriteString(" AND e.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.CategoryID != nil {
		b.WriteString(" AND e.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.StartDate != nil {
		b.WriteString(" AND e.date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		b.WriteString(" AND e.date <= ?")
		args = append(args, f.EndDate.String())
	}
	return b.String(), args
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f core.ExpenseFilter, p core.PageRequest) (core.ExpensePage, error) {
	where, args := expenseWhere(f)

	// Read-only skips the immediate lock, so listings never wait on writers.
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.ExpensePage{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	countQuery := `SELECT COUNT(*) FROM expenses e
JOIN users u ON e.user_id = u.id
JOIN categories c ON e.category_id = c.id` + where
	if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return core.ExpensePage{}, fmt.Errorf("count expenses: %w", err)
	}

	dataQuery := expenseSelect + where + `
ORDER BY e.date DESC, e.created_at DESC, e.id DESC
LIMIT ? OFFSET ?`
	items, err := queryExpenses(ctx, tx, dataQuery, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return core.ExpensePage{}, fmt.Errorf("list expenses: %w", err)
	}

	return core.ExpensePage{
		Expenses:   items,
		Pagination: core.NewPagination(p, total),
	}, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := getExpense(ctx, r.db, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return e, nil
}

// CreateExpense checks both references and inserts in one transaction.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, ne core.NewExpense) (core.Expense, error) {
	if err := ne.Validate(); err != nil {
		return core.Expense{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureExists(ctx, tx, "users", ne.UserID, core.ErrUserNotFound); err != nil {
		return core.Expense{}, err
	}
	if err := ensureExists(ctx, tx, "categories", ne.CategoryID, core.ErrCategoryNotFound); err != nil {
		return core.Expense{}, err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO expenses (user_id, category_id, amount_cents, date, description)
VALUES (?, ?, ?, ?, ?) RETURNING id`,
		ne.UserID, ne.CategoryID, ne.Amount.Cents(), ne.Date.String(), nullString(ne.Description),
	).Scan(&id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	created, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"user_id", created.UserID,
		"category_id", created.CategoryID,
		"amount_cents", ne.Amount.Cents(),
		"date", created.Date.String())

	return created, nil
}

// UpdateExpense changes only the patch's fields and always refreshes updated_at.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureExists(ctx, tx, "expenses", id, core.ErrExpenseNotFound); err != nil {
		return core.Expense{}, err
	}

	var (
		sets []string
		args []any
	)
	if p.UserID != nil {
		if err := ensureExists(ctx, tx, "users", *p.UserID, core.ErrUserNotFound); err != nil {
			return core.Expense{}, err
		}
		sets = append(sets, "user_id = ?")
		args = append(args, *p.UserID)
	}
	if p.CategoryID != nil {
		if err := ensureExists(ctx, tx, "categories", *p.CategoryID, core.ErrCategoryNotFound); err != nil {
			return core.Expense{}, err
		}
		sets = append(sets, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents())
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.String())
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if len(sets) == 0 {
		return core.Expense{}, core.ErrNoFieldsToUpdate
	}
	sets = append(sets, "updated_at = "+nowSQL)

	query := `UPDATE expenses SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, append(args, id)...); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	updated, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense update: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated in SQLite", "id", id, "fields", len(sets)-1)
	return updated, nil
}

// DeleteExpense removes the row and returns its joined view as it was.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense delete: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return deleted, nil
}

func getExpense(ctx context.Context, q querier, id int64) (core.Expense, error) {
	e, err := scanExpense(q.QueryRowContext(ctx, expenseSelect+` WHERE e.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return e, err
}

func queryExpenses(ctx context.Context, q querier, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                core.Expense
		cents            int64
		date             string
		desc             sql.NullString
		created, updated string
	)
	err := s.Scan(&e.ID, &e.UserID, &e.CategoryID, &cents, &date, &desc,
		&created, &updated, &e.UserName, &e.CategoryName)
	if err != nil {
		return core.Expense{}, err
	}

	e.Amount = core.NewAmountFromCents(cents)
	if desc.Valid {
		e.Description = &desc.String
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ensureExists returns notFound when table has no row with the given id.
// table is always a package constant, never user input.
func ensureExists(ctx context.Context, tx *sql.Tx, table string, id int64, notFound error) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
