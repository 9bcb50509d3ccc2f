package sheets

import (
	"strconv"
	"time"

	"kharcha/internal/core"
)

// Columns is the width of the mirrored table.
const Columns = 5

// Table lays the snapshot out as rows of at most Columns cells: a title row,
// the totals, then one row per budget. Amounts are numbers in major units.
func Table(s Snapshot) [][]any {
	snap := s.Report.Snapshot
	refreshed := ""
	if !s.RefreshedAt.IsZero() {
		refreshed = s.RefreshedAt.UTC().Format(time.RFC3339)
	}
	status := "ok"
	if s.Stale {
		status = "stale"
	}

	rows := [][]any{
		{"Kharcha snapshot", refreshed, "generation", strconv.FormatUint(s.Generation, 10), status},
		{},
		{"Metric", "Amount"},
	}
	totals := []struct {
		name string
		m    core.Money
	}{
		{"Direct cash", snap.DirectCashTotal},
		{"Friend contribution", snap.FriendContribution},
		{"Total available", snap.TotalAvailable},
		{"Market expenses", snap.MarketExpenseSubtotal},
		{"Meal expenses", snap.MealExpenseSubtotal},
		{"Misc expenses", snap.MiscExpenseSubtotal},
		{"Detailed market", snap.DetailedMarketTotal},
		{"Detailed meals", snap.DetailedMealTotal},
		{"Market total", snap.MarketTotal},
		{"Food total", snap.FoodTotal},
		{"Total spent", snap.TotalSpent},
		{"Remaining", snap.Remaining},
		{"Friend dues", snap.FriendDues},
		{"Cost per person", s.Report.PerPerson.CostPerPerson},
	}
	for _, t := range totals {
		rows = append(rows, []any{t.name, amount(t.m)})
	}
	rows = append(rows, []any{"Friends", s.Report.PerPerson.FriendCount})

	if len(s.Report.Budgets) > 0 {
		rows = append(rows, []any{}, []any{"Budget", "Limit", "Spent", "Percent", "Status"})
		for _, b := range s.Report.Budgets {
			rows = append(rows, []any{
				b.Budget.Name,
				amount(b.Budget.Amount),
				amount(b.Spent),
				b.Percent,
				string(b.Severity()),
			})
		}
	}
	return rows
}

func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
