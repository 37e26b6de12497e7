/*
money.go - Integer-cent money with decimal rate arithmetic

PURPOSE:
  All monetary values in the engine are integer minor units (cents).
  Statutory rates and hour quantities are decimal.Decimal; products of
  money and rates are rounded back to cents exactly once, at the
  statutory computation boundary, using banker's rounding.

WHY INTEGER CENTS?
  Run totals must be bit-identical across recomputation. Summing cents
  is associative and drift-free; summing floats is neither. Decimal is
  used only for intermediate products (rate x base) so scale is never
  lost before the single rounding step.

ROUNDING POLICY:
  - RoundBank (half-to-even) to the cent at every statutory computation
  - Never round intermediate sums
  - Division (salary / periods) also rounds half-to-even

SEE ALSO:
  - deductions.go: Cap clamping works on cents directly
  - aggregate.go: Totals are plain int64 sums
*/
package payroll

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount in integer cents
// =============================================================================

// Money is a monetary amount in cents. The zero value is $0.00.
type Money struct {
	cents int64
}

// Cents constructs Money from an integer number of cents.
func Cents(n int64) Money { return Money{cents: n} }

// MoneyFromDecimal converts a dollar-denominated decimal to Money,
// rounding half-to-even to the cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{cents: d.Shift(2).RoundBank(0).IntPart()}
}

// MustParseMoney parses a dollar string like "2307.69". Panics on bad
// input; intended for statutory constants and tests.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad money literal %q: %v", s, err))
	}
	return MoneyFromDecimal(d)
}

func (m Money) Cents() int64             { return m.cents }
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(m.cents).Shift(-2) }

func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }
func (m Money) Neg() Money        { return Money{cents: -m.cents} }

func (m Money) IsZero() bool     { return m.cents == 0 }
func (m Money) IsNegative() bool { return m.cents < 0 }
func (m Money) IsPositive() bool { return m.cents > 0 }

func (m Money) LessThan(o Money) bool    { return m.cents < o.cents }
func (m Money) GreaterThan(o Money) bool { return m.cents > o.cents }

func (m Money) Min(o Money) Money {
	if m.cents < o.cents {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.cents > o.cents {
		return m
	}
	return o
}

// ClampNonNegative floors the amount at zero.
func (m Money) ClampNonNegative() Money {
	if m.cents < 0 {
		return Money{}
	}
	return m
}

// MulRate multiplies by a statutory rate (e.g. 0.0595) and rounds
// half-to-even to the cent.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(rate))
}

// MulHours multiplies an hourly rate by an hour quantity and rounds
// half-to-even to the cent.
func (m Money) MulHours(hours decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(hours))
}

// DivInt divides by an integer (e.g. periods per year) and rounds
// half-to-even to the cent.
func (m Money) DivInt(n int) Money {
	return MoneyFromDecimal(m.Decimal().Div(decimal.NewFromInt(int64(n))))
}

// DivHours returns the per-hour rate for an amount spread over the
// given hours. Used for the salaried hourly-rate equivalent; the
// result is NOT rounded to the cent so downstream products keep scale.
func (m Money) DivHours(hours decimal.Decimal) decimal.Decimal {
	return m.Decimal().Div(hours)
}

// String formats as a plain dollar amount, e.g. "2307.69" or "-15.00".
func (m Money) String() string { return m.Decimal().StringFixed(2) }

// MarshalJSON encodes the amount as an integer cent count, keeping
// persistence loss-free.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.cents, 10)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.cents = n
	return nil
}

// SumMoney folds a slice of amounts. Order-independent by construction.
func SumMoney(amounts []Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
