package ledger

import (
	"strings"

	"kharcha/internal/core"
)

// PerPerson is a coarse per-capita share of total spend. It divides by the
// number of distinct friends on record, not by actual meal headcounts; use
// core.MealRecord.CostPerPerson for meal-level splits.
type PerPerson struct {
	CostPerPerson core.Money `json:"cost_per_person"`
	FriendCount   int        `json:"friend_count"`
}

// AllocatePerPerson divides totalSpent by the distinct friend names in
// friends. Names are trimmed and lowercased before de-duplication and blank
// names are ignored.
func AllocatePerPerson(totalSpent core.Money, friends []core.FriendTransaction) PerPerson {
	seen := make(map[string]struct{}, len(friends))
	for _, f := range friends {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}
	n := len(seen)
	if n == 0 {
		return PerPerson{}
	}
	return PerPerson{
		CostPerPerson: totalSpent.Div(int64(n)),
		FriendCount:   n,
	}
}
