package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/notify"
	"kharcha/internal/storage"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("edit rights required")
	ErrValidation      = errors.New("invalid record")
)

// Store is the persistence the service mutates.
type Store interface {
	CreateCashInflow(ctx context.Context, c core.CashInflow) (core.CashInflow, error)
	UpdateCashInflow(ctx context.Context, c core.CashInflow) error
	DeleteCashInflow(ctx context.Context, id string) error

	CreateGenericExpense(ctx context.Context, e core.GenericExpense) (core.GenericExpense, error)
	UpdateGenericExpense(ctx context.Context, e core.GenericExpense) error
	DeleteGenericExpense(ctx context.Context, id string) error

	CreateMarketPurchase(ctx context.Context, p core.MarketPurchase) (core.MarketPurchase, error)
	UpdateMarketPurchase(ctx context.Context, p core.MarketPurchase) error
	DeleteMarketPurchase(ctx context.Context, id string) error

	CreateMealRecord(ctx context.Context, m core.MealRecord) (core.MealRecord, error)
	UpdateMealRecord(ctx context.Context, m core.MealRecord) error
	DeleteMealRecord(ctx context.Context, id string) error

	CreateFriendTransaction(ctx context.Context, f core.FriendTransaction) (core.FriendTransaction, error)
	UpdateFriendTransaction(ctx context.Context, f core.FriendTransaction) error
	GetFriendTransaction(ctx context.Context, id string) (core.FriendTransaction, error)
	SettleFriendTransaction(ctx context.Context, id string) (core.FriendTransaction, error)
	DeleteFriendTransaction(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id string) error

	UpsertMenuDay(ctx context.Context, d core.MenuDay) error

	GetUser(ctx context.Context, id string) (core.UserProfile, error)
	ListUsers(ctx context.Context) ([]core.UserProfile, error)
	SetAllowEdit(ctx context.Context, id string, allow bool) error
}

// LedgerService saves ledger changes for residents with edit rights and
// announces every successful change.
type LedgerService struct {
	store     Store
	publisher notify.Publisher
}

func NewLedgerService(store Store, publisher notify.Publisher) *LedgerService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	return &LedgerService{store: store, publisher: publisher}
}

// Principal returns the profile of the authenticated caller.
func (s *LedgerService) Principal(ctx context.Context) (core.UserProfile, error) {
	id := auth.UserID(ctx)
	if id == "" {
		return core.UserProfile{}, ErrUnauthenticated
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.UserProfile{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("load principal: %w", err)
	}
	return u, nil
}

func (s *LedgerService) requireEdit(ctx context.Context) error {
	u, err := s.Principal(ctx)
	if err != nil {
		return err
	}
	if !u.CanEdit() {
		slog.WarnContext(ctx, "Edit denied",
			log.FieldComponent, log.ComponentLedger,
			log.FieldUserID, u.ID,
			"role", u.Role)
		return ErrForbidden
	}
	return nil
}

// publish announces a change. Failures are logged; the change is already saved.
func (s *LedgerService) publish(ctx context.Context, c notify.Collection, op notify.Op, id string) {
	ev := notify.NewEvent(c, op, id)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			log.FieldComponent, log.ComponentLedger,
			log.FieldCollection, c,
			log.FieldOperation, op,
			"id", id,
			log.FieldError, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogChange(ctx, string(c), string(op), id)
}

type record interface {
	Validate() error
}

func create[T record](ctx context.Context, s *LedgerService, c notify.Collection, rec T,
	save func(context.Context, T) (T, error), idOf func(T) string) (T, error) {
	var zero T
	if err := s.requireEdit(ctx); err != nil {
		return zero, err
	}
	if err := rec.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	out, err := save(ctx, rec)
	if err != nil {
		return zero, fmt.Errorf("save %s: %w", c, err)
	}
	s.publish(ctx, c, notify.OpInsert, idOf(out))
	return out, nil
}

func update[T record](ctx context.Context, s *LedgerService, c notify.Collection, id string, rec T,
	save func(context.Context, T) error) error {
	if err := s.requireEdit(ctx); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := save(ctx, rec); err != nil {
		return fmt.Errorf("update %s: %w", c, err)
	}
	s.publish(ctx, c, notify.OpUpdate, id)
	return nil
}

func (s *LedgerService) remove(ctx context.Context, c notify.Collection, id string, del func(context.Context, string) error) error {
	if err := s.requireEdit(ctx); err != nil {
		return err
	}
	if err := del(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", c, err)
	}
	s.publish(ctx, c, notify.OpDelete, id)
	return nil
}

func (s *LedgerService) CreateCashInflow(ctx context.Context, c core.CashInflow) (core.CashInflow, error) {
	return create(ctx, s, notify.Cash, c, s.store.CreateCashInflow, func(c core.CashInflow) string { return c.ID })
}

func (s *LedgerService) UpdateCashInflow(ctx context.Context, id string, c core.CashInflow) error {
	c.ID = id
	return update(ctx, s, notify.Cash, id, c, s.store.UpdateCashInflow)
}

func (s *LedgerService) DeleteCashInflow(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Cash, id, s.store.DeleteCashInflow)
}

func (s *LedgerService) CreateGenericExpense(ctx context.Context, e core.GenericExpense) (core.GenericExpense, error) {
	return create(ctx, s, notify.Expenses, e, s.store.CreateGenericExpense, func(e core.GenericExpense) string { return e.ID })
}

func (s *LedgerService) UpdateGenericExpense(ctx context.Context, id string, e core.GenericExpense) error {
	e.ID = id
	return update(ctx, s, notify.Expenses, id, e, s.store.UpdateGenericExpense)
}

func (s *LedgerService) DeleteGenericExpense(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Expenses, id, s.store.DeleteGenericExpense)
}

func (s *LedgerService) CreateMarketPurchase(ctx context.Context, p core.MarketPurchase) (core.MarketPurchase, error) {
	return create(ctx, s, notify.Market, p, s.store.CreateMarketPurchase, func(p core.MarketPurchase) string { return p.ID })
}

func (s *LedgerService) UpdateMarketPurchase(ctx context.Context, id string, p core.MarketPurchase) error {
	p.ID = id
	return update(ctx, s, notify.Market, id, p, s.store.UpdateMarketPurchase)
}

func (s *LedgerService) DeleteMarketPurchase(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Market, id, s.store.DeleteMarketPurchase)
}

func (s *LedgerService) CreateMealRecord(ctx context.Context, m core.MealRecord) (core.MealRecord, error) {
	return create(ctx, s, notify.Meals, m, s.store.CreateMealRecord, func(m core.MealRecord) string { return m.ID })
}

func (s *LedgerService) UpdateMealRecord(ctx context.Context, id string, m core.MealRecord) error {
	m.ID = id
	return update(ctx, s, notify.Meals, id, m, s.store.UpdateMealRecord)
}

func (s *LedgerService) DeleteMealRecord(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Meals, id, s.store.DeleteMealRecord)
}

func (s *LedgerService) CreateFriendTransaction(ctx context.Context, f core.FriendTransaction) (core.FriendTransaction, error) {
	if f.Status == "" {
		f.Status = core.Pending
	}
	f.Category = core.ParseFriendCategory(string(f.Category))
	return create(ctx, s, notify.Friends, f, s.store.CreateFriendTransaction, func(f core.FriendTransaction) string { return f.ID })
}

// UpdateFriendTransaction replaces a friend transaction. A blank status keeps
// the stored one, so editing a settled debt does not reopen it.
func (s *LedgerService) UpdateFriendTransaction(ctx context.Context, id string, f core.FriendTransaction) error {
	f.ID = id
	if f.Status == "" {
		if err := s.requireEdit(ctx); err != nil {
			return err
		}
		cur, err := s.store.GetFriendTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("update %s: %w", notify.Friends, err)
		}
		f.Status = cur.Status
	}
	f.Category = core.ParseFriendCategory(string(f.Category))
	return update(ctx, s, notify.Friends, id, f, s.store.UpdateFriendTransaction)
}

// SettleFriendTransaction marks a pending friend transaction as settled.
func (s *LedgerService) SettleFriendTransaction(ctx context.Context, id string) (core.FriendTransaction, error) {
	if err := s.requireEdit(ctx); err != nil {
		return core.FriendTransaction{}, err
	}
	f, err := s.store.SettleFriendTransaction(ctx, id)
	if err != nil {
		return core.FriendTransaction{}, fmt.Errorf("settle friend transaction: %w", err)
	}
	s.publish(ctx, notify.Friends, notify.OpUpdate, id)
	return f, nil
}

func (s *LedgerService) DeleteFriendTransaction(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Friends, id, s.store.DeleteFriendTransaction)
}

func (s *LedgerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	return create(ctx, s, notify.Budgets, b, s.store.CreateBudget, func(b core.Budget) string { return b.ID })
}

func (s *LedgerService) UpdateBudget(ctx context.Context, id string, b core.Budget) error {
	b.ID = id
	return update(ctx, s, notify.Budgets, id, b, s.store.UpdateBudget)
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id string) error {
	return s.remove(ctx, notify.Budgets, id, s.store.DeleteBudget)
}

// UpsertMenuDay replaces the plan for one weekday.
func (s *LedgerService) UpsertMenuDay(ctx context.Context, d core.MenuDay) error {
	if err := s.requireEdit(ctx); err != nil {
		return err
	}
	if err := s.store.UpsertMenuDay(ctx, d); err != nil {
		return err
	}
	s.publish(ctx, notify.Menu, notify.OpUpdate, d.Day.String())
	return nil
}

// ListUsers is available to admins only.
func (s *LedgerService) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	u, err := s.Principal(ctx)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.ListUsers(ctx)
}

// SetAllowEdit grants or revokes edit rights. Admins only.
func (s *LedgerService) SetAllowEdit(ctx context.Context, userID string, allow bool) error {
	u, err := s.Principal(ctx)
	if err != nil {
		return err
	}
	if !u.IsAdmin() {
		return ErrForbidden
	}
	if err := s.store.SetAllowEdit(ctx, userID, allow); err != nil {
		return fmt.Errorf("set edit access: %w", err)
	}
	slog.InfoContext(ctx, "Edit access changed",
		log.FieldComponent, log.ComponentLedger,
		log.FieldUserID, userID,
		"allow_edit", allow,
		"by", u.ID)
	s.publish(ctx, notify.Users, notify.OpUpdate, userID)
	return nil
}
