package storage

import (
	"context"
	"fmt"

	"kharcha/internal/core"
)

func (r *SQLiteRepository) CreateMealRecord(ctx context.Context, m core.MealRecord) (core.MealRecord, error) {
	r.stamp(&m.ID, &m.OccurredAt, &m.CreatedAt)
	m.PeopleCount = m.Headcount()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_records (id, meal_type, dish_name, cooked_by, eaten_by, cost, people_count, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.MealType), m.DishName, m.CookedBy, m.EatenBy, m.Cost.Cents, m.PeopleCount,
		formatTime(m.OccurredAt), formatTime(m.CreatedAt))
	if err != nil {
		return core.MealRecord{}, fmt.Errorf("create meal record: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) UpdateMealRecord(ctx context.Context, m core.MealRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE meal_records SET meal_type = ?, dish_name = ?, cooked_by = ?, eaten_by = ?, cost = ?,
		 people_count = ?, occurred_at = ? WHERE id = ?`,
		string(m.MealType), m.DishName, m.CookedBy, m.EatenBy, m.Cost.Cents, m.Headcount(),
		formatTime(m.OccurredAt), m.ID)
	return exactlyOne(res, err, "update meal record", m.ID)
}

func (r *SQLiteRepository) DeleteMealRecord(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "meal_records", id)
}

func (r *SQLiteRepository) ListMealRecords(ctx context.Context) ([]core.MealRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, meal_type, dish_name, cooked_by, eaten_by, cost, people_count, occurred_at, created_at
		 FROM meal_records ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list meal records: %w", err)
	}
	defer rows.Close()

	out := []core.MealRecord{}
	for rows.Next() {
		var (
			m                     core.MealRecord
			raw                   any
			mealType              string
			people                any
			occurredAt, createdAt string
		)
		if err := rows.Scan(&m.ID, &mealType, &m.DishName, &m.CookedBy, &m.EatenBy, &raw, &people, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan meal record: %w", err)
		}
		m.MealType = core.MealType(mealType)
		m.Cost = amount(ctx, "meal_records", m.ID, "cost", raw)
		m.PeopleCount = headcount(ctx, m.ID, people)
		m.OccurredAt = parseTime(occurredAt)
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
