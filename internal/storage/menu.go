package storage

import (
	"context"
	"fmt"
	"time"

	"kharcha/internal/core"
)

// ListMenu returns one entry per weekday, Monday first. Days never planned
// come back empty.
func (r *SQLiteRepository) ListMenu(ctx context.Context) ([]core.MenuDay, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT day, breakfast, lunch, dinner FROM menu_days`)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	defer rows.Close()

	byDay := make(map[time.Weekday]core.MenuDay, 7)
	for rows.Next() {
		var (
			d   core.MenuDay
			day string
		)
		if err := rows.Scan(&day, &d.Breakfast, &d.Lunch, &d.Dinner); err != nil {
			return nil, fmt.Errorf("scan menu day: %w", err)
		}
		wd, err := core.ParseWeekday(day)
		if err != nil {
			continue
		}
		d.Day = wd
		byDay[wd] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.MenuDay, 0, len(core.MenuOrder))
	for _, wd := range core.MenuOrder {
		d, ok := byDay[wd]
		if !ok {
			d = core.MenuDay{Day: wd}
		}
		out = append(out, d)
	}
	return out, nil
}

// GetMenuDay returns the plan for one weekday, empty when never planned.
func (r *SQLiteRepository) GetMenuDay(ctx context.Context, day time.Weekday) (core.MenuDay, error) {
	menu, err := r.ListMenu(ctx)
	if err != nil {
		return core.MenuDay{}, err
	}
	for _, d := range menu {
		if d.Day == day {
			return d, nil
		}
	}
	return core.MenuDay{Day: day}, nil
}

func (r *SQLiteRepository) UpsertMenuDay(ctx context.Context, d core.MenuDay) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_days (day, breakfast, lunch, dinner, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET breakfast = excluded.breakfast, lunch = excluded.lunch,
		 dinner = excluded.dinner, updated_at = excluded.updated_at`,
		d.Day.String(), d.Breakfast, d.Lunch, d.Dinner, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("upsert menu %s: %w", d.Day, err)
	}
	return nil
}
