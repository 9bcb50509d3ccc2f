package storage

import (
	"context"
	"fmt"

	"kharcha/internal/core"
)

func (r *SQLiteRepository) CreateCashInflow(ctx context.Context, c core.CashInflow) (core.CashInflow, error) {
	r.stamp(&c.ID, &c.OccurredAt, &c.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_inflows (id, amount, occurred_at, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Amount.Cents, formatTime(c.OccurredAt), c.Note, formatTime(c.CreatedAt))
	if err != nil {
		return core.CashInflow{}, fmt.Errorf("create cash inflow: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCashInflow(ctx context.Context, c core.CashInflow) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cash_inflows SET amount = ?, occurred_at = ?, note = ? WHERE id = ?`,
		c.Amount.Cents, formatTime(c.OccurredAt), c.Note, c.ID)
	return exactlyOne(res, err, "update cash inflow", c.ID)
}

func (r *SQLiteRepository) DeleteCashInflow(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "cash_inflows", id)
}

func (r *SQLiteRepository) ListCashInflows(ctx context.Context) ([]core.CashInflow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, occurred_at, note, created_at FROM cash_inflows ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cash inflows: %w", err)
	}
	defer rows.Close()

	out := []core.CashInflow{}
	for rows.Next() {
		var (
			c                     core.CashInflow
			raw                   any
			occurredAt, createdAt string
		)
		if err := rows.Scan(&c.ID, &raw, &occurredAt, &c.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cash inflow: %w", err)
		}
		c.Amount = amount(ctx, "cash_inflows", c.ID, "amount", raw)
		c.OccurredAt = parseTime(occurredAt)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
