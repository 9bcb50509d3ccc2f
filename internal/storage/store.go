// Package storage is the SQLite ledger store. Amounts are kept as integer
// minor units; rows with malformed amounts load as zero and are logged.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
	"kharcha/internal/log"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("record not found")

// timeLayout keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadLedger reads all six collections concurrently.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) (ledger.Ledger, error) {
	var l ledger.Ledger
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { l.Cash, err = r.ListCashInflows(ctx); return })
	g.Go(func() (err error) { l.Expenses, err = r.ListGenericExpenses(ctx); return })
	g.Go(func() (err error) { l.Market, err = r.ListMarketPurchases(ctx); return })
	g.Go(func() (err error) { l.Meals, err = r.ListMealRecords(ctx); return })
	g.Go(func() (err error) { l.Friends, err = r.ListFriendTransactions(ctx); return })
	g.Go(func() (err error) { l.Budgets, err = r.ListBudgets(ctx); return })

	if err := g.Wait(); err != nil {
		return ledger.Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) newID() string {
	return uuid.NewString()
}

// stamp fills the identifier and timestamps of a new record.
func (r *SQLiteRepository) stamp(id *string, occurredAt, createdAt *time.Time) {
	now := r.now()
	if *id == "" {
		*id = r.newID()
	}
	if occurredAt != nil && occurredAt.IsZero() {
		*occurredAt = now
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// amount converts a raw column value, logging and zeroing malformed input.
func amount(ctx context.Context, table, id, column string, raw any) core.Money {
	m, ok := core.MoneyFromStored(raw)
	if !ok {
		slog.WarnContext(ctx, "Malformed stored amount, counting as zero",
			log.FieldComponent, log.ComponentStorage,
			"table", table,
			"id", id,
			"column", column,
			"raw", fmt.Sprint(raw))
	}
	return m
}

// headcount converts a raw people_count value. Anything that is not a whole
// number becomes 0, logged, and then defaults to one diner.
func headcount(ctx context.Context, id string, raw any) int {
	var (
		n  int64
		ok bool
	)
	switch v := raw.(type) {
	case int64:
		n, ok = v, true
	case float64:
		n, ok = int64(v), v == float64(int64(v))
	case []byte:
		n, ok = parseCount(string(v))
	case string:
		n, ok = parseCount(v)
	}
	if !ok {
		slog.WarnContext(ctx, "Malformed stored headcount, counting as one",
			log.FieldComponent, log.ComponentStorage,
			"table", "meal_records",
			"id", id,
			"column", "people_count",
			"raw", fmt.Sprint(raw))
		n = 0
	}
	return core.MealRecord{PeopleCount: int(n)}.Headcount()
}

func parseCount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

// exactlyOne maps a zero-row update or delete to ErrNotFound.
func exactlyOne(res sql.Result, err error, what, id string) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	return exactlyOne(res, err, "delete from "+table, id)
}

// Reset deletes every ledger record, leaving menu and users untouched. This
// is the effect of the weekly archive.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"cash_inflows", "generic_expenses", "market_purchases", "meal_records", "friend_transactions", "budgets"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}
