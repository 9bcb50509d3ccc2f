package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kharcha/internal/core"
)

var ErrDuplicateEmail = errors.New("email already registered")

const userColumns = `id, email, role, allow_edit, created_at`

func scanUser(s scanner) (core.UserProfile, error) {
	var (
		u               core.UserProfile
		role, createdAt string
		allowEdit       int64
	)
	if err := s.Scan(&u.ID, &u.Email, &role, &allowEdit, &createdAt); err != nil {
		return core.UserProfile{}, err
	}
	u.Role = core.Role(role)
	u.AllowEdit = allowEdit != 0
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.UserProfile) (core.UserProfile, error) {
	r.stamp(&u.ID, nil, &u.CreatedAt)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = core.RoleViewer
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, role, allow_edit, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.Role), boolInt(u.AllowEdit), formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.UserProfile{}, fmt.Errorf("create user %s: %w", u.Email, ErrDuplicateEmail)
		}
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.UserProfile, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, fmt.Errorf("get user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user %s: %w", email, err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []core.UserProfile{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetAllowEdit(ctx context.Context, id string, allow bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET allow_edit = ? WHERE id = ?`, boolInt(allow), id)
	return exactlyOne(res, err, "set allow_edit", id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
