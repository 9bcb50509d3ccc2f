package storage

import (
	"context"
	"fmt"
	"strings"

	"kharcha/internal/core"
)

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	r.stamp(&b.ID, nil, &b.CreatedAt)
	b.Name = strings.TrimSpace(b.Name)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, name, amount, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Amount.Cents, b.Details, formatTime(b.CreatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET name = ?, amount = ?, details = ? WHERE id = ?`,
		strings.TrimSpace(b.Name), b.Amount.Cents, b.Details, b.ID)
	return exactlyOne(res, err, "update budget", b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "budgets", id)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, details, created_at FROM budgets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		var (
			b         core.Budget
			raw       any
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.Name, &raw, &b.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Amount = amount(ctx, "budgets", b.ID, "amount", raw)
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}
