// Package ledger reduces the household collections to a financial snapshot.
//
// Everything here is a pure function of its arguments. Itemized records
// (market purchases, meal records) and quick-add generic expenses are separate
// paths that are summed independently and never deduplicated against each
// other. Itemized market purchases are shown in marketTotal but are not
// deducted from the pool: they are settled outside the weekly cash.
package ledger

import "kharcha/internal/core"

// Ledger is every collection read from the store at one point in time.
type Ledger struct {
	Cash     []core.CashInflow        `json:"cash"`
	Expenses []core.GenericExpense    `json:"expenses"`
	Market   []core.MarketPurchase    `json:"market"`
	Meals    []core.MealRecord        `json:"meals"`
	Friends  []core.FriendTransaction `json:"friends"`
	Budgets  []core.Budget            `json:"budgets"`
}

// Distribution category names.
const (
	DistMarket = "Market"
	DistFood   = "Food"
	DistMisc   = "Misc"
)

// FinancialSnapshot holds the derived totals of the ledger.
type FinancialSnapshot struct {
	DirectCashTotal    core.Money `json:"direct_cash_total"`
	FriendContribution core.Money `json:"friend_contribution"`
	TotalAvailable     core.Money `json:"total_available"`

	MarketExpenseSubtotal  core.Money `json:"market_expense_subtotal"`
	MealExpenseSubtotal    core.Money `json:"meal_expense_subtotal"`
	MiscExpenseSubtotal    core.Money `json:"misc_expense_subtotal"`
	AllGenericExpenseTotal core.Money `json:"all_generic_expense_total"`

	DetailedMarketTotal core.Money `json:"detailed_market_total"`
	DetailedMealTotal   core.Money `json:"detailed_meal_total"`

	MarketTotal core.Money `json:"market_total"`
	FoodTotal   core.Money `json:"food_total"`
	TotalSpent  core.Money `json:"total_spent"`

	// Remaining is negative on overspend and is never floored.
	Remaining  core.Money `json:"remaining"`
	FriendDues core.Money `json:"friend_dues"`

	Distribution []core.CategoryAmount `json:"distribution"`
}

// ComputeSnapshot derives the snapshot from the given collections.
// Negative amounts are treated as malformed and count as zero.
func ComputeSnapshot(
	cash []core.CashInflow,
	expenses []core.GenericExpense,
	market []core.MarketPurchase,
	meals []core.MealRecord,
	friends []core.FriendTransaction,
) FinancialSnapshot {
	var s FinancialSnapshot

	for _, c := range cash {
		s.DirectCashTotal = s.DirectCashTotal.Add(c.Amount.OrZero())
	}

	for _, f := range friends {
		amt := f.Amount.OrZero()
		if isPoolIncome(f) {
			s.FriendContribution = s.FriendContribution.Add(amt)
		}
		if f.Status == core.Pending && !f.Category.IsWeekAmount() {
			switch f.Direction {
			case core.Borrowed:
				s.FriendDues = s.FriendDues.Add(amt)
			case core.Paid:
				s.FriendDues = s.FriendDues.Sub(amt)
			}
		}
	}
	s.TotalAvailable = s.DirectCashTotal.Add(s.FriendContribution)

	for _, e := range expenses {
		amt := e.Amount.OrZero()
		s.AllGenericExpenseTotal = s.AllGenericExpenseTotal.Add(amt)
		switch e.Category {
		case core.CategoryMarket:
			s.MarketExpenseSubtotal = s.MarketExpenseSubtotal.Add(amt)
		case core.CategoryMeal:
			s.MealExpenseSubtotal = s.MealExpenseSubtotal.Add(amt)
		default:
			s.MiscExpenseSubtotal = s.MiscExpenseSubtotal.Add(amt)
		}
	}

	for _, p := range market {
		s.DetailedMarketTotal = s.DetailedMarketTotal.Add(p.Cost.OrZero())
	}
	for _, m := range meals {
		s.DetailedMealTotal = s.DetailedMealTotal.Add(m.Cost.OrZero())
	}

	s.MarketTotal = s.DetailedMarketTotal.Add(s.MarketExpenseSubtotal)
	s.FoodTotal = s.DetailedMealTotal.Add(s.MealExpenseSubtotal)
	s.TotalSpent = s.AllGenericExpenseTotal.Add(s.DetailedMealTotal)
	s.Remaining = s.TotalAvailable.Sub(s.TotalSpent)
	s.Distribution = distribution(s)

	return s
}

// Compute is ComputeSnapshot over a whole Ledger.
func (l Ledger) Compute() FinancialSnapshot {
	return ComputeSnapshot(l.Cash, l.Expenses, l.Market, l.Meals, l.Friends)
}

// isPoolIncome reports whether a friend transaction is a weekly deposit into
// the pool. Both conditions are required.
func isPoolIncome(f core.FriendTransaction) bool {
	return f.Category.IsWeekAmount() && f.Direction == core.Paid
}

func distribution(s FinancialSnapshot) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, 3)
	for _, c := range []core.CategoryAmount{
		{Name: DistMarket, Amount: s.MarketTotal},
		{Name: DistFood, Amount: s.FoodTotal},
		{Name: DistMisc, Amount: s.MiscExpenseSubtotal},
	} {
		if c.Amount.Cents > 0 {
			out = append(out, c)
		}
	}
	return out
}

// IsEmpty reports whether the ledger holds no records at all.
func (l Ledger) IsEmpty() bool {
	return len(l.Cash) == 0 && len(l.Expenses) == 0 && len(l.Market) == 0 &&
		len(l.Meals) == 0 && len(l.Friends) == 0 && len(l.Budgets) == 0
}
