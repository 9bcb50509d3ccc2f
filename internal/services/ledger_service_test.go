package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/notify"
	"kharcha/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	svc    *LedgerService
	repo   *storage.SQLiteRepository
	pub    *recordingPublisher
	admin  context.Context
	editor context.Context
	viewer context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kharcha.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctxFor := func(u core.UserProfile) context.Context {
		created, err := repo.CreateUser(context.Background(), u)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		return auth.WithClaims(context.Background(), &auth.Claims{UserID: created.ID, Email: created.Email})
	}

	pub := &recordingPublisher{}
	return fixture{
		svc:    NewLedgerService(repo, pub),
		repo:   repo,
		pub:    pub,
		admin:  ctxFor(core.UserProfile{Email: "admin@example.com", Role: core.RoleAdmin}),
		editor: ctxFor(core.UserProfile{Email: "editor@example.com", Role: core.RoleViewer, AllowEdit: true}),
		viewer: ctxFor(core.UserProfile{Email: "viewer@example.com", Role: core.RoleViewer}),
	}
}

func TestLedgerService_Permissions(t *testing.T) {
	f := newFixture(t)
	expense := core.GenericExpense{Title: "Milk", Amount: core.NewMoney(120), Category: core.CategoryMarket}

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"admin", f.admin, nil},
		{"viewer with edit flag", f.editor, nil},
		{"viewer", f.viewer, ErrForbidden},
		{"anonymous", context.Background(), ErrUnauthenticated},
		{"unknown user", auth.WithClaims(context.Background(), &auth.Claims{UserID: "ghost"}), ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGenericExpense(tt.ctx, expense)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	list, err := f.repo.ListGenericExpenses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 saved expenses, got %d", len(list))
	}
}

func TestLedgerService_PublishesChanges(t *testing.T) {
	f := newFixture(t)
	ctx := f.admin

	c, err := f.svc.CreateCashInflow(ctx, core.CashInflow{Amount: core.NewMoney(500)})
	if err != nil {
		t.Fatal(err)
	}
	c.Amount = core.NewMoney(700)
	if err := f.svc.UpdateCashInflow(ctx, c.ID, c); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteCashInflow(ctx, c.ID); err != nil {
		t.Fatal(err)
	}

	want := []notify.Op{notify.OpInsert, notify.OpUpdate, notify.OpDelete}
	if len(f.pub.events) != len(want) {
		t.Fatalf("events = %+v", f.pub.events)
	}
	for i, ev := range f.pub.events {
		if ev.Collection != notify.Cash || ev.Op != want[i] || ev.ID != c.ID {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
}

func TestLedgerService_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	b, err := f.svc.CreateBudget(f.admin, core.Budget{Name: "Rice", Amount: core.NewMoney(1000)})
	if err != nil {
		t.Fatalf("CreateBudget should succeed when publishing fails: %v", err)
	}
	if b.ID == "" {
		t.Fatal("budget not saved")
	}
}

func TestLedgerService_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"zero cash", func() error {
			_, err := f.svc.CreateCashInflow(f.admin, core.CashInflow{})
			return err
		}},
		{"meal without people", func() error {
			_, err := f.svc.CreateMealRecord(f.admin, core.MealRecord{MealType: core.Lunch, Cost: core.NewMoney(1)})
			return err
		}},
		{"friend bad direction", func() error {
			_, err := f.svc.CreateFriendTransaction(f.admin, core.FriendTransaction{Name: "Ali", Amount: core.NewMoney(1), Direction: "lent"})
			return err
		}},
		{"expense bad category", func() error {
			_, err := f.svc.CreateGenericExpense(f.admin, core.GenericExpense{Title: "x", Amount: core.NewMoney(1), Category: "Travel"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if len(f.pub.events) != 0 {
		t.Fatalf("invalid records must not publish: %+v", f.pub.events)
	}
}

func TestLedgerService_FriendDefaultsAndSettle(t *testing.T) {
	f := newFixture(t)

	tx, err := f.svc.CreateFriendTransaction(f.editor, core.FriendTransaction{
		Name: "Ali", Amount: core.NewMoney(300), Direction: core.Borrowed, Category: "WeekAmount",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != core.Pending || tx.Category != core.FriendWeekAmount {
		t.Fatalf("defaults not applied: %+v", tx)
	}

	settled, err := f.svc.SettleFriendTransaction(f.editor, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != core.Settled {
		t.Fatalf("Status = %s", settled.Status)
	}
	if _, err := f.svc.SettleFriendTransaction(f.viewer, tx.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer settle: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.SettleFriendTransaction(f.admin, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerService_UpdateFriendKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := f.editor

	tx, err := f.svc.CreateFriendTransaction(ctx, core.FriendTransaction{
		Name: "Sara", Amount: core.NewMoney(200), Direction: core.Borrowed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SettleFriendTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}

	edit := core.FriendTransaction{Name: "Sara", Amount: core.NewMoney(250), Direction: core.Borrowed, Reason: "groceries"}
	if err := f.svc.UpdateFriendTransaction(ctx, tx.ID, edit); err != nil {
		t.Fatalf("UpdateFriendTransaction: %v", err)
	}
	got, err := f.repo.GetFriendTransaction(context.Background(), tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.Settled || got.Amount.Cents != 25000 {
		t.Fatalf("after update: status %s amount %d", got.Status, got.Amount.Cents)
	}

	l, err := f.repo.LoadLedger(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if dues := l.Compute().FriendDues; !dues.IsZero() {
		t.Fatalf("settled debt counted in dues: %d", dues.Cents)
	}

	edit.Status = core.Pending
	if err := f.svc.UpdateFriendTransaction(ctx, tx.ID, edit); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.repo.GetFriendTransaction(context.Background(), tx.ID); got.Status != core.Pending {
		t.Fatalf("explicit status not applied: %s", got.Status)
	}

	if err := f.svc.UpdateFriendTransaction(f.viewer, tx.ID, core.FriendTransaction{Name: "Sara"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer update: expected ErrForbidden, got %v", err)
	}
	err = f.svc.UpdateFriendTransaction(ctx, "missing", core.FriendTransaction{Name: "Sara", Amount: core.NewMoney(1), Direction: core.Paid})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerService_UpdateMissing(t *testing.T) {
	f := newFixture(t)
	err := f.svc.UpdateBudget(f.admin, "missing", core.Budget{Name: "Oil", Amount: core.NewMoney(10)})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.svc.DeleteMealRecord(f.admin, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerService_EditAccess(t *testing.T) {
	f := newFixture(t)

	viewer, err := f.svc.Principal(f.viewer)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetAllowEdit(f.editor, viewer.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin toggle: expected ErrForbidden, got %v", err)
	}
	if err := f.svc.SetAllowEdit(f.admin, viewer.ID, true); err != nil {
		t.Fatalf("admin toggle: %v", err)
	}
	if _, err := f.svc.CreateCashInflow(f.viewer, core.CashInflow{Amount: core.NewMoney(1)}); err != nil {
		t.Fatalf("viewer with granted edit should create: %v", err)
	}

	users, err := f.svc.ListUsers(f.admin)
	if err != nil || len(users) != 3 {
		t.Fatalf("ListUsers = %d users, %v", len(users), err)
	}
	if _, err := f.svc.ListUsers(f.viewer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer ListUsers: expected ErrForbidden, got %v", err)
	}
}

func TestLedgerService_Menu(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.UpsertMenuDay(f.viewer, core.MenuDay{Day: time.Monday, Lunch: "Rice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.UpsertMenuDay(f.admin, core.MenuDay{Day: time.Monday, Lunch: "Rice"}); err != nil {
		t.Fatal(err)
	}
	last := f.pub.events[len(f.pub.events)-1]
	if last.Collection != notify.Menu || last.ID != "Monday" {
		t.Fatalf("unexpected event: %+v", last)
	}
}
