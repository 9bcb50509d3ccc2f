package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/notify"
)

// resource is the CRUD surface of one ledger collection.
type resource struct {
	list   func(context.Context) (any, error)
	create func(*http.Request) (any, error)
	update func(*http.Request, string) error
	remove func(context.Context, string) error
}

type binder[T any] interface {
	bind(now time.Time) (T, error)
}

func makeResource[T any, R binder[T]](
	s *Server,
	list func(context.Context) ([]T, error),
	create func(context.Context, T) (T, error),
	update func(context.Context, string, T) error,
	remove func(context.Context, string) error,
) resource {
	decode := func(r *http.Request) (T, error) {
		var (
			req  R
			zero T
		)
		if err := decodeJSON(r, &req); err != nil {
			return zero, err
		}
		if err := s.check(req); err != nil {
			return zero, err
		}
		return req.bind(s.now())
	}

	return resource{
		list: func(ctx context.Context) (any, error) {
			items, err := list(ctx)
			if err != nil {
				return nil, err
			}
			if items == nil {
				items = []T{}
			}
			return items, nil
		},
		create: func(r *http.Request) (any, error) {
			rec, err := decode(r)
			if err != nil {
				return nil, err
			}
			return create(r.Context(), rec)
		},
		update: func(r *http.Request, id string) error {
			rec, err := decode(r)
			if err != nil {
				return err
			}
			return update(r.Context(), id, rec)
		},
		remove: remove,
	}
}

func (s *Server) buildResources() map[string]resource {
	l := s.ledger
	return map[string]resource{
		string(notify.Cash): makeResource[core.CashInflow, cashRequest](s,
			s.store.ListCashInflows, l.CreateCashInflow, l.UpdateCashInflow, l.DeleteCashInflow),
		string(notify.Expenses): makeResource[core.GenericExpense, expenseRequest](s,
			s.store.ListGenericExpenses, l.CreateGenericExpense, l.UpdateGenericExpense, l.DeleteGenericExpense),
		string(notify.Market): makeResource[core.MarketPurchase, marketRequest](s,
			s.store.ListMarketPurchases, l.CreateMarketPurchase, l.UpdateMarketPurchase, l.DeleteMarketPurchase),
		string(notify.Meals): makeResource[core.MealRecord, mealRequest](s,
			s.store.ListMealRecords, l.CreateMealRecord, l.UpdateMealRecord, l.DeleteMealRecord),
		string(notify.Friends): makeResource[core.FriendTransaction, friendRequest](s,
			s.store.ListFriendTransactions, l.CreateFriendTransaction, l.UpdateFriendTransaction, l.DeleteFriendTransaction),
		string(notify.Budgets): makeResource[core.Budget, budgetRequest](s,
			s.store.ListBudgets, l.CreateBudget, l.UpdateBudget, l.DeleteBudget),
	}
}

func (s *Server) resourceFor(w http.ResponseWriter, r *http.Request) (resource, bool) {
	name := r.PathValue("collection")
	res, ok := s.resources[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown collection %q", name)})
	}
	return res, ok
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFor(w, r)
	if !ok {
		return
	}
	items, err := res.list(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFor(w, r)
	if !ok {
		return
	}
	rec, err := res.create(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFor(w, r)
	if !ok {
		return
	}
	if err := res.update(r, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFor(w, r)
	if !ok {
		return
	}
	if err := res.remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettleFriend(w http.ResponseWriter, r *http.Request) {
	f, err := s.ledger.SettleFriendTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type menuView struct {
	Day       string `json:"day"`
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

func newMenuView(d core.MenuDay) menuView {
	return menuView{Day: d.Day.String(), Breakfast: d.Breakfast, Lunch: d.Lunch, Dinner: d.Dinner}
}

func (s *Server) handleListMenu(w http.ResponseWriter, r *http.Request) {
	days, err := s.store.ListMenu(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]menuView, 0, len(days))
	for _, d := range days {
		out = append(out, newMenuView(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertMenu(w http.ResponseWriter, r *http.Request) {
	day, err := core.ParseWeekday(r.PathValue("day"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	var req menuRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.check(req); err != nil {
		writeError(w, r, err)
		return
	}
	d := core.MenuDay{Day: day, Breakfast: req.Breakfast, Lunch: req.Lunch, Dinner: req.Dinner}
	if err := s.ledger.UpsertMenuDay(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMenuView(d))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.ledger.Principal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		core.UserProfile
		CanEdit bool `json:"can_edit"`
	}{u, u.CanEdit()})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []core.UserProfile{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleSetEditAccess(w http.ResponseWriter, r *http.Request) {
	var req editAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.check(req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetAllowEdit(r.Context(), r.PathValue("id"), *req.AllowEdit); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
