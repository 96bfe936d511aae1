package money

import (
	"database/sql/driver"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. All monetary fields and price arithmetic
// go through this type so nothing in the billing path touches float math.
// Amounts are non-negative; the constructors enforce it.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{}

func New(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return Money{}, fmt.Errorf("negative amount %q", value)
	}
	return Money{d: d}, nil
}

// MustNew is for literals in seeds and tests.
func MustNew(value string) Money {
	m, err := New(value)
	if err != nil {
		panic(err)
	}
	return m
}

func FromFloat(value float64) (Money, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Money{}, fmt.Errorf("amount is not a finite number")
	}
	if value < 0 {
		return Money{}, fmt.Errorf("negative amount %v", value)
	}
	return Money{d: decimal.NewFromFloat(value)}, nil
}

func FromCents(cents int64) Money {
	return Money{d: decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))}
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// PercentOf returns pct% of the amount, unrounded.
func (m Money) PercentOf(pct int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))}
}

// Round2 rounds to two decimal places, half up (half away from zero).
// This is the single rounding mode used for every tax and fee figure.
func (m Money) Round2() Money {
	return Money{d: m.d.Round(2)}
}

// Cents converts to the payment processor's minor-unit representation.
// Amounts with sub-cent precision are rejected rather than silently rounded.
func (m Money) Cents() (int64, error) {
	scaled := m.d.Mul(decimal.NewFromInt(100))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", m.d.String())
	}
	return scaled.IntPart(), nil
}

func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) Value() (driver.Value, error) {
	return m.d.Value()
}

func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	if d.IsNegative() {
		return fmt.Errorf("negative amount %s in database", d.String())
	}
	m.d = d
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	if d.IsNegative() {
		return fmt.Errorf("negative amount %s", d.String())
	}
	m.d = d
	return nil
}

// GormDataType tells the migrator which column type to use.
func (Money) GormDataType() string {
	return "numeric(12,2)"
}
