package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kharcha/internal/core"
)

func (r *SQLiteRepository) CreateFriendTransaction(ctx context.Context, f core.FriendTransaction) (core.FriendTransaction, error) {
	r.stamp(&f.ID, &f.OccurredAt, &f.CreatedAt)
	f.Category = core.ParseFriendCategory(string(f.Category))
	if f.Status == "" {
		f.Status = core.Pending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO friend_transactions (id, name, amount, direction, category, status, reason, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Amount.Cents, string(f.Direction), string(f.Category), string(f.Status), f.Reason,
		formatTime(f.OccurredAt), formatTime(f.CreatedAt))
	if err != nil {
		return core.FriendTransaction{}, fmt.Errorf("create friend transaction: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) UpdateFriendTransaction(ctx context.Context, f core.FriendTransaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friend_transactions SET name = ?, amount = ?, direction = ?, category = ?, status = ?,
		 reason = ?, occurred_at = ? WHERE id = ?`,
		f.Name, f.Amount.Cents, string(f.Direction), string(core.ParseFriendCategory(string(f.Category))),
		string(f.Status), f.Reason, formatTime(f.OccurredAt), f.ID)
	return exactlyOne(res, err, "update friend transaction", f.ID)
}

// SettleFriendTransaction marks a transaction Settled and returns it.
func (r *SQLiteRepository) SettleFriendTransaction(ctx context.Context, id string) (core.FriendTransaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friend_transactions SET status = ? WHERE id = ?`, string(core.Settled), id)
	if err := exactlyOne(res, err, "settle friend transaction", id); err != nil {
		return core.FriendTransaction{}, err
	}
	return r.GetFriendTransaction(ctx, id)
}

func (r *SQLiteRepository) DeleteFriendTransaction(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "friend_transactions", id)
}

const friendColumns = `id, name, amount, direction, category, status, reason, occurred_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanFriend(ctx context.Context, s scanner) (core.FriendTransaction, error) {
	var (
		f                           core.FriendTransaction
		raw                         any
		direction, category, status string
		occurredAt, createdAt       string
	)
	if err := s.Scan(&f.ID, &f.Name, &raw, &direction, &category, &status, &f.Reason, &occurredAt, &createdAt); err != nil {
		return core.FriendTransaction{}, err
	}
	f.Amount = amount(ctx, "friend_transactions", f.ID, "amount", raw)
	f.Direction = core.FriendDirection(direction)
	f.Category = core.ParseFriendCategory(category)
	f.Status = core.FriendStatus(status)
	f.OccurredAt = parseTime(occurredAt)
	f.CreatedAt = parseTime(createdAt)
	return f, nil
}

func (r *SQLiteRepository) GetFriendTransaction(ctx context.Context, id string) (core.FriendTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+friendColumns+` FROM friend_transactions WHERE id = ?`, id)
	f, err := r.scanFriend(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FriendTransaction{}, fmt.Errorf("get friend transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.FriendTransaction{}, fmt.Errorf("get friend transaction %s: %w", id, err)
	}
	return f, nil
}

func (r *SQLiteRepository) ListFriendTransactions(ctx context.Context) ([]core.FriendTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+friendColumns+` FROM friend_transactions ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list friend transactions: %w", err)
	}
	defer rows.Close()

	out := []core.FriendTransaction{}
	for rows.Next() {
		f, err := r.scanFriend(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend transaction: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
