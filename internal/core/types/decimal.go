// Package types provides common numeric aliases and helpers.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is a monetary amount with full precision.
type Money = decimal.Decimal

// Quantity is a line quantity. Stored as NUMERIC(20,4).
type Quantity = decimal.Decimal

// Rate is a percentage (tax, discount) or a conversion/exchange factor.
type Rate = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoneyFromString parses a monetary amount.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses s and panics on error. Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Percent returns amount×rate/100.
func Percent(amount Money, rate Rate) Money {
	return amount.Mul(rate).Div(hundred)
}

// Sum adds all values.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// RoundMoney rounds to 2 places for display and export.
func RoundMoney(m Money) Money {
	return m.Round(2)
}
