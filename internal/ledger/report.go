package ledger

// Report is everything presentation needs from one ledger read.
type Report struct {
	Snapshot  FinancialSnapshot `json:"snapshot"`
	Budgets   []BudgetProgress  `json:"budgets"`
	PerPerson PerPerson         `json:"per_person"`
}

// Summarize runs the engine, the budget matcher and the allocator over l.
func Summarize(l Ledger) Report {
	snap := l.Compute()
	return Report{
		Snapshot:  snap,
		Budgets:   MatchBudgetProgress(l.Budgets, l.Expenses, l.Market),
		PerPerson: AllocatePerPerson(snap.TotalSpent, l.Friends),
	}
}
