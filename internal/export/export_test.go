package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

var day = time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC)

func sampleLedger() ledger.Ledger {
	return ledger.Ledger{
		Cash: []core.CashInflow{{ID: "c1", Amount: core.NewMoney(800), OccurredAt: day}},
		Expenses: []core.GenericExpense{
			{ID: "e1", Title: "Gas cylinder, refill", Amount: core.Money{Cents: 12550}, Category: core.CategoryMisc, OccurredAt: day},
		},
		Meals: []core.MealRecord{
			{ID: "m1", MealType: core.Dinner, DishName: "Daal", CookedBy: "Ali", Cost: core.NewMoney(300), PeopleCount: 3, OccurredAt: day},
			{ID: "m2", MealType: core.Lunch, CookedBy: "Sara", Cost: core.NewMoney(90), OccurredAt: day},
		},
		Market: []core.MarketPurchase{
			{ID: "p1", ItemName: "Rice", Buyer: "Omar", Cost: core.NewMoney(600), OccurredAt: day},
		},
		Friends: []core.FriendTransaction{
			{ID: "f1", Name: "Bilal", Amount: core.NewMoney(500), Direction: core.Paid, Status: core.Settled, OccurredAt: day},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleLedger())

	want := [][]string{
		{"Expense", "Gas cylinder, refill", "125.50", "2024-03-04", "Misc"},
		{"Meal", "Daal (Dinner cooked by Ali)", "300.00", "2024-03-04", "Split: 3"},
		{"Meal", "Lunch cooked by Sara", "90.00", "2024-03-04", "Split: 1"},
		{"Market", "Rice", "600.00", "2024-03-04", "Buyer: Omar"},
		{"Friend", "Bilal (paid)", "500.00", "2024-03-04", "Settled"},
	}
	if len(rows) != len(want) {
		t.Fatalf("Rows() returned %d rows, want %d", len(rows), len(want))
	}
	for i, r := range rows {
		got := r.strings()
		for j := range got {
			if got[j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, got[j], want[i][j])
			}
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := FormatXLSX.Filename(day); got != "kharcha_export_2024-03-04.xlsx" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	b, err := Render(FormatCSV, Rows(sampleLedger()))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want header plus 5", len(records))
	}
	if records[0][4] != "Category/Person" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != "Gas cylinder, refill" {
		t.Errorf("embedded comma not preserved: %q", records[1][1])
	}
}

func TestWriteXLSX(t *testing.T) {
	b, err := Render(FormatXLSX, Rows(sampleLedger()))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	if rows[0][0] != "Type" || rows[4][0] != "Market" {
		t.Errorf("unexpected rows: %v", rows)
	}
	if v, err := strconv.ParseFloat(rows[4][2], 64); err != nil || v != 600 {
		t.Errorf("amount cell = %q, want numeric 600", rows[4][2])
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	if _, err := Render(FormatXLSX, nil); err != nil {
		t.Fatalf("Render() of empty ledger error = %v", err)
	}
}

func TestExporter_CachesPerGeneration(t *testing.T) {
	e := NewExporter(time.Minute)
	ctx := context.Background()
	l := sampleLedger()

	first, err := e.Export(ctx, 7, l, FormatCSV)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	l.Expenses = nil
	cached, err := e.Export(ctx, 7, l, FormatCSV)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.Equal(first, cached) {
		t.Error("same generation should be served from cache")
	}

	fresh, err := e.Export(ctx, 8, l, FormatCSV)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if bytes.Equal(first, fresh) {
		t.Error("new generation should be rendered again")
	}
	if st := e.Cache().Stats(); st.Size != 2 || st.Hits != 1 {
		t.Errorf("cache stats = %+v, want size 2 and 1 hit", st)
	}
}
