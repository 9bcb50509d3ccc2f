package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"kharcha/internal/core"
	"kharcha/internal/services"
)

const maxBodyBytes = 64 << 10

// newValidator returns a validator that reports JSON field names and sees
// core.Money as its minor-unit integer, so `gt=0` works on amounts.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if m, ok := f.Interface().(core.Money); ok {
			return m.Cents
		}
		return nil
	}, core.Money{})
	return v
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// check runs struct validation and folds the result into ErrValidation.
func (s *Server) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(msgs, "; "))
}

// parseOccurredAt accepts RFC 3339 timestamps or plain dates. Empty means now.
func parseOccurredAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: occurred_at %q is not a date", services.ErrValidation, s)
	}
	return t, nil
}

type cashRequest struct {
	Amount     core.Money `json:"amount" validate:"gt=0"`
	OccurredAt string     `json:"occurred_at"`
	Note       string     `json:"note" validate:"max=500"`
}

func (r cashRequest) bind(now time.Time) (core.CashInflow, error) {
	at, err := parseOccurredAt(r.OccurredAt, now)
	return core.CashInflow{Amount: r.Amount, OccurredAt: at, Note: strings.TrimSpace(r.Note)}, err
}

type expenseRequest struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Amount     core.Money `json:"amount" validate:"gt=0"`
	Category   string     `json:"category" validate:"required,oneof=Meal Friend Market Misc"`
	OccurredAt string     `json:"occurred_at"`
	Details    string     `json:"details" validate:"max=1000"`
}

func (r expenseRequest) bind(now time.Time) (core.GenericExpense, error) {
	at, err := parseOccurredAt(r.OccurredAt, now)
	return core.GenericExpense{
		Title:      strings.TrimSpace(r.Title),
		Amount:     r.Amount,
		Category:   core.ExpenseCategory(r.Category),
		OccurredAt: at,
		Details:    strings.TrimSpace(r.Details),
	}, err
}

type marketRequest struct {
	ItemName    string      `json:"item_name" validate:"required,max=200"`
	Quantity    string      `json:"quantity" validate:"max=50"`
	Buyer       string      `json:"buyer" validate:"max=100"`
	Cost        core.Money  `json:"cost" validate:"gt=0"`
	OccurredAt  string      `json:"occurred_at"`
	BudgetLimit *core.Money `json:"budget_limit" validate:"-"`
	Note        string      `json:"note" validate:"max=500"`
}

func (r marketRequest) bind(now time.Time) (core.MarketPurchase, error) {
	at, err := parseOccurredAt(r.OccurredAt, now)
	return core.MarketPurchase{
		ItemName:    strings.TrimSpace(r.ItemName),
		Quantity:    strings.TrimSpace(r.Quantity),
		Buyer:       strings.TrimSpace(r.Buyer),
		Cost:        r.Cost,
		OccurredAt:  at,
		BudgetLimit: r.BudgetLimit,
		Note:        strings.TrimSpace(r.Note),
	}, err
}

type mealRequest struct {
	MealType    string     `json:"meal_type" validate:"required,oneof=Breakfast Lunch Dinner"`
	DishName    string     `json:"dish_name" validate:"max=200"`
	CookedBy    string     `json:"cooked_by" validate:"max=100"`
	EatenBy     string     `json:"eaten_by" validate:"max=500"`
	Cost        core.Money `json:"cost" validate:"gt=0"`
	PeopleCount int        `json:"people_count" validate:"min=1,max=1000"`
	OccurredAt  string     `json:"occurred_at"`
}

func (r mealRequest) bind(now time.Time) (core.MealRecord, error) {
	at, err := parseOccurredAt(r.OccurredAt, now)
	return core.MealRecord{
		MealType:    core.MealType(r.MealType),
		DishName:    strings.TrimSpace(r.DishName),
		CookedBy:    strings.TrimSpace(r.CookedBy),
		EatenBy:     strings.TrimSpace(r.EatenBy),
		Cost:        r.Cost,
		PeopleCount: r.PeopleCount,
		OccurredAt:  at,
	}, err
}

type friendRequest struct {
	Name       string     `json:"name" validate:"required,max=100"`
	Amount     core.Money `json:"amount" validate:"gt=0"`
	Direction  string     `json:"direction" validate:"required,oneof=borrowed paid"`
	Category   string     `json:"category" validate:"max=50"`
	Status     string     `json:"status" validate:"omitempty,oneof=Pending Settled"`
	Reason     string     `json:"reason" validate:"max=500"`
	OccurredAt string     `json:"occurred_at"`
}

func (r friendRequest) bind(now time.Time) (core.FriendTransaction, error) {
	at, err := parseOccurredAt(r.OccurredAt, now)
	return core.FriendTransaction{
		Name:       strings.TrimSpace(r.Name),
		Amount:     r.Amount,
		Direction:  core.FriendDirection(r.Direction),
		Category:   core.ParseFriendCategory(r.Category),
		Status:     core.FriendStatus(r.Status),
		Reason:     strings.TrimSpace(r.Reason),
		OccurredAt: at,
	}, err
}

type budgetRequest struct {
	Name    string     `json:"name" validate:"required,max=100"`
	Amount  core.Money `json:"amount" validate:"gt=0"`
	Details string     `json:"details" validate:"max=500"`
}

func (r budgetRequest) bind(time.Time) (core.Budget, error) {
	return core.Budget{
		Name:    strings.TrimSpace(r.Name),
		Amount:  r.Amount,
		Details: strings.TrimSpace(r.Details),
	}, nil
}

type menuRequest struct {
	Breakfast string `json:"breakfast" validate:"max=200"`
	Lunch     string `json:"lunch" validate:"max=200"`
	Dinner    string `json:"dinner" validate:"max=200"`
}

type editAccessRequest struct {
	AllowEdit *bool `json:"allow_edit" validate:"required"`
}
