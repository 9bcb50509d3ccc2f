package ledger

import (
	"reflect"
	"testing"

	"kharcha/internal/core"
)

func money(units int64) core.Money { return core.NewMoney(units) }

func TestComputeSnapshotEmpty(t *testing.T) {
	s := ComputeSnapshot(nil, nil, nil, nil, nil)
	zero := core.Money{}
	for name, v := range map[string]core.Money{
		"DirectCashTotal":    s.DirectCashTotal,
		"FriendContribution": s.FriendContribution,
		"TotalAvailable":     s.TotalAvailable,
		"MarketTotal":        s.MarketTotal,
		"FoodTotal":          s.FoodTotal,
		"TotalSpent":         s.TotalSpent,
		"Remaining":          s.Remaining,
		"FriendDues":         s.FriendDues,
	} {
		if v != zero {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
	if len(s.Distribution) != 0 {
		t.Errorf("expected empty distribution, got %v", s.Distribution)
	}
}

func TestComputeSnapshotEndToEnd(t *testing.T) {
	s := ComputeSnapshot(
		[]core.CashInflow{{Amount: money(500)}},
		[]core.GenericExpense{{Title: "Biryani", Category: core.CategoryMeal, Amount: money(200)}},
		[]core.MarketPurchase{{ItemName: "Onions", Cost: money(100)}},
		[]core.MealRecord{{MealType: core.Dinner, Cost: money(150), PeopleCount: 3}},
		[]core.FriendTransaction{{Name: "Ali", Category: core.FriendWeekAmount, Direction: core.Paid, Status: core.Settled, Amount: money(300)}},
	)

	checks := []struct {
		name string
		got  core.Money
		want core.Money
	}{
		{"TotalAvailable", s.TotalAvailable, money(800)},
		{"FoodTotal", s.FoodTotal, money(350)},
		{"MarketTotal", s.MarketTotal, money(100)},
		{"TotalSpent", s.TotalSpent, money(350)},
		{"Remaining", s.Remaining, money(450)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestComputeSnapshotMarketExclusion(t *testing.T) {
	s := ComputeSnapshot(
		nil,
		[]core.GenericExpense{{Title: "Veg", Category: core.CategoryMarket, Amount: money(300)}},
		[]core.MarketPurchase{{ItemName: "Rice", Cost: money(500)}},
		nil, nil,
	)
	if s.MarketTotal != money(800) {
		t.Fatalf("MarketTotal = %v, want 800", s.MarketTotal)
	}
	if s.TotalSpent != money(300) {
		t.Fatalf("TotalSpent = %v, want 300", s.TotalSpent)
	}
	if s.Remaining != money(-300) {
		t.Fatalf("Remaining = %v, want -300", s.Remaining)
	}
}

func TestComputeSnapshotFriendRules(t *testing.T) {
	tests := []struct {
		name         string
		tx           core.FriendTransaction
		contribution core.Money
		dues         core.Money
	}{
		{
			name:         "week amount borrowed is neither income nor due",
			tx:           core.FriendTransaction{Category: core.FriendWeekAmount, Direction: core.Borrowed, Status: core.Pending, Amount: money(1000)},
			contribution: core.Money{},
			dues:         core.Money{},
		},
		{
			name:         "week amount paid is income",
			tx:           core.FriendTransaction{Category: core.FriendWeekAmount, Direction: core.Paid, Status: core.Pending, Amount: money(1000)},
			contribution: money(1000),
			dues:         core.Money{},
		},
		{
			name:         "pending general borrowed is owed to the pool",
			tx:           core.FriendTransaction{Category: core.FriendGeneral, Direction: core.Borrowed, Status: core.Pending, Amount: money(250)},
			contribution: core.Money{},
			dues:         money(250),
		},
		{
			name:         "pending general paid reduces dues",
			tx:           core.FriendTransaction{Category: core.FriendGeneral, Direction: core.Paid, Status: core.Pending, Amount: money(250)},
			contribution: core.Money{},
			dues:         money(-250),
		},
		{
			name:         "settled general is ignored",
			tx:           core.FriendTransaction{Category: core.FriendGeneral, Direction: core.Borrowed, Status: core.Settled, Amount: money(250)},
			contribution: core.Money{},
			dues:         core.Money{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeSnapshot(nil, nil, nil, nil, []core.FriendTransaction{tt.tx})
			if s.FriendContribution != tt.contribution {
				t.Errorf("FriendContribution = %v, want %v", s.FriendContribution, tt.contribution)
			}
			if s.FriendDues != tt.dues {
				t.Errorf("FriendDues = %v, want %v", s.FriendDues, tt.dues)
			}
		})
	}
}

func TestComputeSnapshotMalformedAmounts(t *testing.T) {
	s := ComputeSnapshot(
		[]core.CashInflow{{Amount: money(100)}, {Amount: core.Money{Cents: -500}}},
		[]core.GenericExpense{{Category: core.CategoryMisc, Amount: core.Money{Cents: -1}}, {Category: "Travel", Amount: money(20)}},
		nil, nil, nil,
	)
	if s.DirectCashTotal != money(100) {
		t.Fatalf("DirectCashTotal = %v, want 100", s.DirectCashTotal)
	}
	if s.MiscExpenseSubtotal != money(20) {
		t.Fatalf("MiscExpenseSubtotal = %v, want 20", s.MiscExpenseSubtotal)
	}
}

func TestComputeSnapshotDistribution(t *testing.T) {
	s := ComputeSnapshot(nil,
		[]core.GenericExpense{{Category: core.CategoryFriend, Amount: money(40)}},
		[]core.MarketPurchase{{Cost: money(10)}},
		nil, nil,
	)
	want := []core.CategoryAmount{
		{Name: DistMarket, Amount: money(10)},
		{Name: DistMisc, Amount: money(40)},
	}
	if !reflect.DeepEqual(s.Distribution, want) {
		t.Fatalf("Distribution = %v, want %v", s.Distribution, want)
	}
}

func TestComputeSnapshotAdditive(t *testing.T) {
	a := Ledger{
		Cash:     []core.CashInflow{{Amount: money(10)}},
		Expenses: []core.GenericExpense{{Category: core.CategoryMeal, Amount: money(3)}},
		Market:   []core.MarketPurchase{{Cost: core.Money{Cents: 333}}},
		Meals:    []core.MealRecord{{Cost: money(7), PeopleCount: 2}},
		Friends:  []core.FriendTransaction{{Name: "a", Category: core.FriendWeekAmount, Direction: core.Paid, Amount: money(5)}},
	}
	b := Ledger{
		Cash:     []core.CashInflow{{Amount: core.Money{Cents: 1}}},
		Expenses: []core.GenericExpense{{Category: core.CategoryMarket, Amount: money(4)}, {Category: core.CategoryMisc, Amount: money(1)}},
		Meals:    []core.MealRecord{{Cost: money(2), PeopleCount: 1}},
		Friends:  []core.FriendTransaction{{Name: "b", Direction: core.Borrowed, Status: core.Pending, Amount: money(8)}},
	}
	union := Ledger{
		Cash:     append(append([]core.CashInflow{}, b.Cash...), a.Cash...),
		Expenses: append(append([]core.GenericExpense{}, b.Expenses...), a.Expenses...),
		Market:   append(append([]core.MarketPurchase{}, b.Market...), a.Market...),
		Meals:    append(append([]core.MealRecord{}, b.Meals...), a.Meals...),
		Friends:  append(append([]core.FriendTransaction{}, b.Friends...), a.Friends...),
	}
	sa, sb, su := a.Compute(), b.Compute(), union.Compute()

	pairs := []struct {
		name       string
		x, y, want core.Money
	}{
		{"DirectCashTotal", sa.DirectCashTotal, sb.DirectCashTotal, su.DirectCashTotal},
		{"FriendContribution", sa.FriendContribution, sb.FriendContribution, su.FriendContribution},
		{"AllGenericExpenseTotal", sa.AllGenericExpenseTotal, sb.AllGenericExpenseTotal, su.AllGenericExpenseTotal},
		{"DetailedMarketTotal", sa.DetailedMarketTotal, sb.DetailedMarketTotal, su.DetailedMarketTotal},
		{"DetailedMealTotal", sa.DetailedMealTotal, sb.DetailedMealTotal, su.DetailedMealTotal},
		{"TotalSpent", sa.TotalSpent, sb.TotalSpent, su.TotalSpent},
		{"Remaining", sa.Remaining, sb.Remaining, su.Remaining},
		{"FriendDues", sa.FriendDues, sb.FriendDues, su.FriendDues},
	}
	for _, p := range pairs {
		if got := p.x.Add(p.y); got != p.want {
			t.Errorf("%s: %v + %v = %v, union gave %v", p.name, p.x, p.y, got, p.want)
		}
	}
}

func TestComputeSnapshotIdempotent(t *testing.T) {
	l := Ledger{
		Cash:     []core.CashInflow{{Amount: money(500)}},
		Expenses: []core.GenericExpense{{Category: core.CategoryMeal, Amount: money(200)}},
		Market:   []core.MarketPurchase{{Cost: money(100)}},
	}
	first := l.Compute()
	second := l.Compute()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ: %+v vs %+v", first, second)
	}
}
