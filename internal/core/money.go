// Package core holds the domain model and the pure formula library.
//
// Money is stored in integer minor units (paise) so sums stay exact.
// Decimal values only exist at the JSON boundary, where shopspring/decimal
// does the parsing and formatting.
package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units. It is signed: adjustments and
// credit-card balances can go negative, transaction amounts cannot.
type Money struct {
	Cents int64
}

// NewMoney builds a Money from whole units and minor units.
func NewMoney(units, cents int64) Money {
	return Money{Cents: units*100 + cents}
}

// ParseAmount converts a decimal string ("1234.50") into minor units,
// rounding anything beyond the second decimal half away from zero.
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmount)
	}
	return fromDecimal(d), nil
}

func fromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// String formats the amount as a plain decimal, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON emits the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Legacy
// spreadsheet exports quote their amounts, the app's own persistence does
// not, so both shapes round-trip.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		m.Cents = 0
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case float64:
		// Re-parse the original token through decimal to avoid float drift.
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("parse amount %s: %w", data, ErrInvalidAmount)
		}
		*m = fromDecimal(d)
		return nil
	default:
		return fmt.Errorf("parse amount %s: %w", data, ErrInvalidAmount)
	}
}

// SumMoney folds a slice of amounts.
func SumMoney(amounts []Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
