package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CategoryMeal   ExpenseCategory = "Meal"
	CategoryFriend ExpenseCategory = "Friend"
	CategoryMarket ExpenseCategory = "Market"
	CategoryMisc   ExpenseCategory = "Misc"

	Breakfast MealType = "Breakfast"
	Lunch     MealType = "Lunch"
	Dinner    MealType = "Dinner"

	Borrowed FriendDirection = "borrowed" // they owe the pool
	Paid     FriendDirection = "paid"     // they deposited or settled

	FriendGeneral    FriendCategory = "General"
	FriendWeekAmount FriendCategory = "Week Amount"

	Pending FriendStatus = "Pending"
	Settled FriendStatus = "Settled"

	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

type (
	ExpenseCategory string
	MealType        string
	FriendDirection string
	FriendCategory  string
	FriendStatus    string
	Role            string

	Money struct {
		Cents int64
	}

	// CashInflow is money added to the communal pool directly.
	CashInflow struct {
		ID         string    `json:"id"`
		Amount     Money     `json:"amount"`
		OccurredAt time.Time `json:"occurred_at"`
		Note       string    `json:"note,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// GenericExpense is a quick-add expense; Category picks its aggregate bucket.
	GenericExpense struct {
		ID         string          `json:"id"`
		Title      string          `json:"title"`
		Amount     Money           `json:"amount"`
		Category   ExpenseCategory `json:"category"`
		OccurredAt time.Time       `json:"occurred_at"`
		Details    string          `json:"details,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	// MarketPurchase is an itemized market purchase.
	MarketPurchase struct {
		ID          string    `json:"id"`
		ItemName    string    `json:"item_name"`
		Quantity    string    `json:"quantity"`
		Buyer       string    `json:"buyer"`
		Cost        Money     `json:"cost"`
		OccurredAt  time.Time `json:"occurred_at"`
		BudgetLimit *Money    `json:"budget_limit,omitempty"`
		Note        string    `json:"note,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// MealRecord is a cooked meal and the people who shared it.
	MealRecord struct {
		ID          string    `json:"id"`
		MealType    MealType  `json:"meal_type"`
		DishName    string    `json:"dish_name,omitempty"`
		CookedBy    string    `json:"cooked_by"`
		EatenBy     string    `json:"eaten_by"`
		Cost        Money     `json:"cost"`
		PeopleCount int       `json:"people_count"`
		OccurredAt  time.Time `json:"occurred_at"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// FriendTransaction is a loan to or a deposit from a friend.
	FriendTransaction struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Amount     Money           `json:"amount"`
		Direction  FriendDirection `json:"direction"`
		Category   FriendCategory  `json:"category"`
		Status     FriendStatus    `json:"status"`
		Reason     string          `json:"reason,omitempty"`
		OccurredAt time.Time       `json:"occurred_at"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	// Budget is a spending ceiling used for progress display only.
	Budget struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Amount    Money     `json:"amount"`
		Details   string    `json:"details,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	// MenuDay is the planned menu for one weekday.
	MenuDay struct {
		Day       time.Weekday `json:"-"`
		Breakfast string       `json:"breakfast"`
		Lunch     string       `json:"lunch"`
		Dinner    string       `json:"dinner"`
	}

	// UserProfile holds a resident's role and edit flag.
	UserProfile struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Role      Role      `json:"role"`
		AllowEdit bool      `json:"allow_edit"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyTitle         = errors.New("empty title")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMealType    = errors.New("invalid meal type")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPeopleCount = errors.New("people count must be at least 1")
	ErrInvalidDay         = errors.New("invalid weekday")
	ErrInvalidRole        = errors.New("invalid role")
)

// Validate checks that the amount is strictly positive.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryMeal, CategoryFriend, CategoryMarket, CategoryMisc:
		return true
	}
	return false
}

func (t MealType) Valid() bool {
	switch t {
	case Breakfast, Lunch, Dinner:
		return true
	}
	return false
}

func (d FriendDirection) Valid() bool {
	return d == Borrowed || d == Paid
}

func (s FriendStatus) Valid() bool {
	return s == Pending || s == Settled
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// ParseFriendCategory normalizes the spellings seen in stored data.
// Anything that is not a week amount is General.
func ParseFriendCategory(s string) FriendCategory {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), "_", "")) {
	case "weekamount":
		return FriendWeekAmount
	default:
		return FriendGeneral
	}
}

// IsWeekAmount reports whether the category is the weekly pool contribution.
func (c FriendCategory) IsWeekAmount() bool {
	return ParseFriendCategory(string(c)) == FriendWeekAmount
}

// ParseWeekday accepts an English weekday name in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// MenuOrder lists weekdays Monday first, the order residents plan in.
var MenuOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Headcount returns PeopleCount, or 1 when unset or invalid.
func (m MealRecord) Headcount() int {
	if m.PeopleCount < 1 {
		return 1
	}
	return m.PeopleCount
}

// CostPerPerson is Cost split evenly across Headcount.
func (m MealRecord) CostPerPerson() Money {
	return m.Cost.OrZero().Div(int64(m.Headcount()))
}

// CanEdit reports whether the user may create, edit or delete ledger records.
func (u UserProfile) CanEdit() bool {
	return u.Role == RoleAdmin || u.AllowEdit
}

// IsAdmin reports whether the user holds the admin role.
func (u UserProfile) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func validateText(s string, limit int, empty error) error {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	if len(s) > limit {
		return fmt.Errorf("text too long (max %d characters)", limit)
	}
	return nil
}

func (c CashInflow) Validate() error {
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if len(c.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	return nil
}

func (e GenericExpense) Validate() error {
	if err := validateText(e.Title, 200, ErrEmptyTitle); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	return nil
}

func (p MarketPurchase) Validate() error {
	if err := validateText(p.ItemName, 200, ErrEmptyName); err != nil {
		return err
	}
	if err := p.Cost.Validate(); err != nil {
		return err
	}
	if p.BudgetLimit != nil && p.BudgetLimit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m MealRecord) Validate() error {
	if !m.MealType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMealType, m.MealType)
	}
	if err := m.Cost.Validate(); err != nil {
		return err
	}
	if m.PeopleCount < 1 {
		return ErrInvalidPeopleCount
	}
	return nil
}

func (f FriendTransaction) Validate() error {
	if err := validateText(f.Name, 100, ErrEmptyName); err != nil {
		return err
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if !f.Direction.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, f.Direction)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return nil
}

func (b Budget) Validate() error {
	if err := validateText(b.Name, 100, ErrEmptyName); err != nil {
		return err
	}
	return b.Amount.Validate()
}

func (u UserProfile) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("empty email")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	return nil
}
