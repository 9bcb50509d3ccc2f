package storage

import (
	"context"
	"fmt"

	"kharcha/internal/core"
)

func nullableCents(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func (r *SQLiteRepository) CreateMarketPurchase(ctx context.Context, p core.MarketPurchase) (core.MarketPurchase, error) {
	r.stamp(&p.ID, &p.OccurredAt, &p.CreatedAt)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO market_purchases (id, item_name, quantity, buyer, cost, occurred_at, budget_limit, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ItemName, p.Quantity, p.Buyer, p.Cost.Cents, formatTime(p.OccurredAt),
		nullableCents(p.BudgetLimit), p.Note, formatTime(p.CreatedAt))
	if err != nil {
		return core.MarketPurchase{}, fmt.Errorf("create market purchase: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdateMarketPurchase(ctx context.Context, p core.MarketPurchase) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE market_purchases SET item_name = ?, quantity = ?, buyer = ?, cost = ?, occurred_at = ?,
		 budget_limit = ?, note = ? WHERE id = ?`,
		p.ItemName, p.Quantity, p.Buyer, p.Cost.Cents, formatTime(p.OccurredAt),
		nullableCents(p.BudgetLimit), p.Note, p.ID)
	return exactlyOne(res, err, "update market purchase", p.ID)
}

func (r *SQLiteRepository) DeleteMarketPurchase(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "market_purchases", id)
}

func (r *SQLiteRepository) ListMarketPurchases(ctx context.Context) ([]core.MarketPurchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_name, quantity, buyer, cost, occurred_at, budget_limit, note, created_at
		 FROM market_purchases ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list market purchases: %w", err)
	}
	defer rows.Close()

	out := []core.MarketPurchase{}
	for rows.Next() {
		var (
			p                     core.MarketPurchase
			rawCost, rawLimit     any
			occurredAt, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.ItemName, &p.Quantity, &p.Buyer, &rawCost, &occurredAt, &rawLimit, &p.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan market purchase: %w", err)
		}
		p.Cost = amount(ctx, "market_purchases", p.ID, "cost", rawCost)
		if rawLimit != nil {
			limit := amount(ctx, "market_purchases", p.ID, "budget_limit", rawLimit)
			p.BudgetLimit = &limit
		}
		p.OccurredAt = parseTime(occurredAt)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
