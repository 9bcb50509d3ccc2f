// Package core holds the ledger entities and their money type.
//
// Amounts are kept as int64 minor units (paisa for PKR, cents for EUR) so sums
// never drift. Parsing, division and formatting go through shopspring/decimal.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of decimal places kept for every amount.
const minorDigits = 2

// ParseAmount parses an amount in major units. Dot and comma are both
// accepted as the decimal separator and the result is rounded half away from
// zero to minor units. Sign checks are left to request validation.
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m, ok := fromDecimal(d)
	if !ok {
		return Money{}, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return m, nil
}

// NewMoney builds a Money from whole units, e.g. NewMoney(500) is 500.00.
func NewMoney(units int64) Money {
	return Money{Cents: units * 100}
}

// MoneyFromDecimal rounds d half away from zero to minor units.
func MoneyFromDecimal(d decimal.Decimal) Money {
	m, _ := fromDecimal(d)
	return m
}

func fromDecimal(d decimal.Decimal) (Money, bool) {
	shifted := d.Shift(minorDigits).Round(0)
	if shifted.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || shifted.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money{}, false
	}
	return Money{Cents: shifted.IntPart()}, true
}

// MoneyFromStored converts a raw minor-unit value read from storage into Money.
//
// Anything that is missing, non-numeric or negative yields zero and ok=false so
// callers can log the offending record and keep aggregating.
func MoneyFromStored(v any) (Money, bool) {
	switch x := v.(type) {
	case nil:
		return Money{}, false
	case int64:
		return nonNegative(Money{Cents: x})
	case int:
		return nonNegative(Money{Cents: int64(x)})
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt64/2 {
			return Money{}, false
		}
		return nonNegative(Money{Cents: int64(math.Round(x))})
	case []byte:
		return MoneyFromStored(string(x))
	case string:
		s := strings.TrimSpace(x)
		if cents, err := strconv.ParseInt(s, 10, 64); err == nil {
			return nonNegative(Money{Cents: cents})
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Money{}, false
		}
		m, ok := fromDecimal(d.Shift(-minorDigits))
		if !ok {
			return Money{}, false
		}
		return nonNegative(m)
	default:
		return Money{}, false
	}
}

func nonNegative(m Money) (Money, bool) {
	if m.Cents < 0 {
		return Money{}, false
	}
	return m, true
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -minorDigits)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// OrZero returns m, or zero when m is negative. Amounts never carry a sign.
func (m Money) OrZero() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// Div splits m into n equal shares rounded to minor units. n < 1 yields zero.
func (m Money) Div(n int64) Money {
	if n < 1 {
		return Money{}
	}
	return MoneyFromDecimal(m.Decimal().Div(decimal.NewFromInt(n)))
}

// String formats the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// Format renders the amount with a currency prefix, e.g. "PKR 1234.50".
func (m Money) Format(currency string) string {
	if currency == "" {
		return m.String()
	}
	return currency + " " + m.String()
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string in major units.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
