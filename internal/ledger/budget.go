package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
)

// Severity thresholds in percent, applied by presentation.
const (
	WarningPercent  = 75.0
	CriticalPercent = 90.0
)

type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// BudgetProgress is the spend matched against one budget.
type BudgetProgress struct {
	Budget     core.Budget `json:"budget"`
	Spent      core.Money  `json:"spent"`
	Percent    float64     `json:"percent"`
	OverBudget bool        `json:"over_budget"`
}

// Severity classifies Percent: >= 90 is critical, > 75 is warning.
func (p BudgetProgress) Severity() Severity {
	switch {
	case p.Percent >= CriticalPercent:
		return SeverityCritical
	case p.Percent > WarningPercent:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// MatchBudgetProgress links expenses and purchases to budgets by name.
//
// A generic expense counts toward a budget when its title or details contain
// the budget name, case-insensitively. A market purchase counts when its item
// name or note does. There is no foreign key: one record may feed several
// budgets whose names overlap.
func MatchBudgetProgress(budgets []core.Budget, expenses []core.GenericExpense, market []core.MarketPurchase) []BudgetProgress {
	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		needle := strings.ToLower(strings.TrimSpace(b.Name))
		var spent core.Money
		if needle != "" {
			for _, e := range expenses {
				if containsFold(e.Title, needle) || containsFold(e.Details, needle) {
					spent = spent.Add(e.Amount.OrZero())
				}
			}
			for _, p := range market {
				if containsFold(p.ItemName, needle) || containsFold(p.Note, needle) {
					spent = spent.Add(p.Cost.OrZero())
				}
			}
		}
		ceiling := b.Amount.OrZero()
		out = append(out, BudgetProgress{
			Budget:     b,
			Spent:      spent,
			Percent:    percentOf(spent, ceiling),
			OverBudget: spent.Cents > ceiling.Cents,
		})
	}
	return out
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// percentOf returns spent/ceiling*100 clamped to [0,100]. A zero ceiling is
// fully used as soon as anything is spent.
func percentOf(spent, ceiling core.Money) float64 {
	if ceiling.Cents <= 0 {
		if spent.Cents > 0 {
			return 100
		}
		return 0
	}
	p, _ := decimal.NewFromInt(spent.Cents).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(ceiling.Cents)).Float64()
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
