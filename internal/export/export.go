// Package export renders the ledger as a flat table for spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is the download name for an export taken at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("kharcha_export_%s.%s", t.Format("2006-01-02"), f)
}

// Header is the first row of every export.
var Header = []string{"Type", "Details", "Amount", "Date", "Category/Person"}

const sheetName = "Ledger"

// Row is one ledger record flattened for export.
type Row struct {
	Type     string
	Details  string
	Amount   core.Money
	Date     time.Time
	Category string
}

func (r Row) strings() []string {
	return []string{r.Type, r.Details, r.Amount.String(), formatDate(r.Date), r.Category}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// Rows flattens expenses, meals, market purchases and friend transactions,
// in that order.
func Rows(l ledger.Ledger) []Row {
	rows := make([]Row, 0, len(l.Expenses)+len(l.Meals)+len(l.Market)+len(l.Friends))
	for _, e := range l.Expenses {
		rows = append(rows, Row{"Expense", e.Title, e.Amount, e.OccurredAt, string(e.Category)})
	}
	for _, m := range l.Meals {
		details := string(m.MealType) + " cooked by " + m.CookedBy
		if m.DishName != "" {
			details = m.DishName + " (" + details + ")"
		}
		rows = append(rows, Row{"Meal", details, m.Cost, m.OccurredAt, "Split: " + strconv.Itoa(m.Headcount())})
	}
	for _, p := range l.Market {
		rows = append(rows, Row{"Market", p.ItemName, p.Cost, p.OccurredAt, "Buyer: " + p.Buyer})
	}
	for _, f := range l.Friends {
		rows = append(rows, Row{"Friend", f.Name + " (" + string(f.Direction) + ")", f.Amount, f.OccurredAt, string(f.Status)})
	}
	return rows
}

// Write renders rows in format f to w.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// Render is Write into a byte slice.
func Render(f Format, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook. Amounts are numeric cells so
// spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Type, r.Details, r.Amount.Decimal().InexactFloat64(), formatDate(r.Date), r.Category}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(rows) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
		if err != nil {
			return fmt.Errorf("amount style: %w", err)
		}
		last := fmt.Sprintf("C%d", len(rows)+1)
		if err := f.SetCellStyle(sheetName, "C2", last, style); err != nil {
			return fmt.Errorf("apply amount style: %w", err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "B", 40); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
