package storage

import (
	"context"
	"fmt"

	"kharcha/internal/core"
)

func (r *SQLiteRepository) CreateGenericExpense(ctx context.Context, e core.GenericExpense) (core.GenericExpense, error) {
	r.stamp(&e.ID, &e.OccurredAt, &e.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generic_expenses (id, title, amount, category, occurred_at, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Amount.Cents, string(e.Category), formatTime(e.OccurredAt), e.Details, formatTime(e.CreatedAt))
	if err != nil {
		return core.GenericExpense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateGenericExpense(ctx context.Context, e core.GenericExpense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE generic_expenses SET title = ?, amount = ?, category = ?, occurred_at = ?, details = ? WHERE id = ?`,
		e.Title, e.Amount.Cents, string(e.Category), formatTime(e.OccurredAt), e.Details, e.ID)
	return exactlyOne(res, err, "update expense", e.ID)
}

func (r *SQLiteRepository) DeleteGenericExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "generic_expenses", id)
}

func (r *SQLiteRepository) ListGenericExpenses(ctx context.Context) ([]core.GenericExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, category, occurred_at, details, created_at
		 FROM generic_expenses ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.GenericExpense{}
	for rows.Next() {
		var (
			e                     core.GenericExpense
			raw                   any
			category              string
			occurredAt, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Title, &raw, &category, &occurredAt, &e.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = amount(ctx, "generic_expenses", e.ID, "amount", raw)
		e.Category = core.ExpenseCategory(category)
		e.OccurredAt = parseTime(occurredAt)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
