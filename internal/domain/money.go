package domain

import (
	"github.com/shopspring/decimal"
)

const moneyScale = 2

// Money is a non-negative amount fixed at two decimal places.
// Rounding is half away from zero.
type Money struct {
	amount decimal.Decimal
}

// ZeroMoney is the zero amount
var ZeroMoney = Money{amount: decimal.Zero.Round(moneyScale)}

// NewMoney validates a raw amount. A nil amount is reported as missing.
func NewMoney(raw *decimal.Decimal, path string) Result[Money] {
	if path == "" {
		path = "value"
	}
	if raw == nil {
		return FailWith[Money](CodeMoneyRequired, "amount is required", path)
	}
	if raw.IsNegative() {
		return FailWith[Money](CodeMoneyNonNegative, "amount must not be negative", path)
	}
	return Ok(MoneyFromRaw(*raw))
}

// MoneyFromRaw rounds a trusted amount to two decimal places without validation
func MoneyFromRaw(raw decimal.Decimal) Money {
	return Money{amount: raw.Round(moneyScale)}
}

// MustMoney parses a decimal literal, panicking on malformed input
func MustMoney(s string) Money {
	return MoneyFromRaw(decimal.RequireFromString(s))
}

// Decimal returns the underlying amount
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return MoneyFromRaw(m.amount.Add(other.amount))
}

// Mul returns m multiplied by an integer factor
func (m Money) Mul(factor int) Money {
	return MoneyFromRaw(m.amount.Mul(decimal.NewFromInt(int64(factor))))
}

// MulDecimal returns m multiplied by a decimal factor, rounded to cents
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return MoneyFromRaw(m.amount.Mul(factor))
}

// Cmp compares rounded amounts, returning -1, 0 or +1
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// LessThan reports whether m < other
func (m Money) LessThan(other Money) bool {
	return m.Cmp(other) < 0
}

// Equal compares amounts regardless of internal representation
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// String renders the amount with exactly two decimals
func (m Money) String() string {
	return m.amount.StringFixed(moneyScale)
}

// MarshalJSON renders the amount as a JSON number with two decimals
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}
