// Package assistant renders the ledger as plain text for a chat assistant's
// system prompt. The model call itself lives outside this module.
package assistant

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"text/template"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

// Record limits for the context.
const (
	MaxExpenses = 50
	MaxMeals    = 20
)

//go:embed context.tmpl
var contextTemplate string

var tmpl = template.Must(template.New("context").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(contextTemplate))

type view struct {
	Now      string
	Currency string
	Snapshot ledger.FinancialSnapshot
	Per      ledger.PerPerson
	Expenses []core.GenericExpense
	Meals    []core.MealRecord
	Friends  []core.FriendTransaction
	Budgets  []ledger.BudgetProgress
}

// Builder renders assistant context in a fixed currency.
type Builder struct {
	currency string
	now      func() time.Time
}

func NewBuilder(currency string) *Builder {
	return &Builder{currency: currency, now: time.Now}
}

// Build renders l and its report. Only the newest MaxExpenses expenses and
// MaxMeals meals are included.
func (b *Builder) Build(l ledger.Ledger, r ledger.Report) (string, error) {
	v := view{
		Now:      b.now().Format("Mon Jan 02 2006"),
		Currency: b.currency,
		Snapshot: r.Snapshot,
		Per:      r.PerPerson,
		Expenses: newest(l.Expenses, MaxExpenses, func(e core.GenericExpense) time.Time { return e.OccurredAt }),
		Meals:    newest(l.Meals, MaxMeals, func(m core.MealRecord) time.Time { return m.OccurredAt }),
		Friends:  l.Friends,
		Budgets:  r.Budgets,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render assistant context: %w", err)
	}
	return buf.String(), nil
}

// newest returns up to n items sorted by descending time, without modifying in.
func newest[T any](in []T, n int, at func(T) time.Time) []T {
	out := append([]T(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
