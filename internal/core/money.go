// Package core provides the domain model of the expense tracker.
//
// This file contains the fixed-point types used for currency amounts and
// percentages. Both are backed by shopspring/decimal and always carry two
// decimal places when serialized.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for amounts and percentages.
const Scale = 2

var (
	minAmount = decimal.New(1, -Scale)
	// maxAmount mirrors a DECIMAL(12,2) column.
	maxAmount = decimal.New(1, 10).Sub(minAmount)
	hundred   = decimal.NewFromInt(100)
)

// Amount is a positive currency value with two decimal places.
type Amount struct {
	decimal.Decimal
}

// ParseAmount parses a decimal string and rounds it to two places.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (half away from zero)
//	ParseAmount("0.001")  -> error, rounds to zero
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	a := Amount{d.Round(Scale)}
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	return a, nil
}

// NewAmountFromCents builds an amount from an integer number of cents.
func NewAmountFromCents(cents int64) Amount {
	return Amount{decimal.New(cents, -Scale)}
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cents returns the amount as an integer number of cents.
func (a Amount) Cents() int64 {
	return a.Decimal.Shift(Scale).Round(0).IntPart()
}

// Validate enforces 0.01 <= amount < 10^10.
func (a Amount) Validate() error {
	if a.Decimal.LessThan(minAmount) || a.Decimal.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

func (a Amount) String() string {
	return a.Decimal.StringFixed(Scale)
}

// MarshalJSON writes the amount as a bare JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.StringFixed(Scale)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// Percent is a signed percentage rounded to two decimal places.
type Percent struct {
	decimal.Decimal
}

func NewPercent(d decimal.Decimal) Percent {
	return Percent{d.Round(Scale)}
}

func (p Percent) String() string {
	return p.Decimal.StringFixed(Scale)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.StringFixed(Scale)), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	return p.Decimal.UnmarshalJSON(b)
}

// PercentageChange computes round((current-previous)/previous*100, 2).
// A zero previous total yields 100 when current is positive and 0 otherwise.
func PercentageChange(current, previous Amount) Percent {
	if previous.Decimal.Sign() <= 0 {
		if current.Decimal.Sign() > 0 {
			return Percent{hundred}
		}
		return Percent{decimal.Zero}
	}
	diff := current.Decimal.Sub(previous.Decimal)
	return Percent{diff.Mul(hundred).DivRound(previous.Decimal, Scale)}
}

// AverageOfNonZero averages the non-zero totals, rounded to two places.
// ok is false when every total is zero.
func AverageOfNonZero(totals ...Amount) (avg Amount, ok bool) {
	sum := decimal.Zero
	n := int64(0)
	for _, t := range totals {
		if t.Decimal.Sign() == 0 {
			continue
		}
		sum = sum.Add(t.Decimal)
		n++
	}
	if n == 0 || sum.Sign() == 0 {
		return Amount{decimal.Zero}, false
	}
	return Amount{sum.DivRound(decimal.NewFromInt(n), Scale)}, true
}

// SumAmounts adds amounts without the positivity constraint; the result may be zero.
func SumAmounts(amounts ...Amount) Amount {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a.Decimal)
	}
	return Amount{sum}
}
