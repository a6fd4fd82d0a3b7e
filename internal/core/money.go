// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts as they appear
// in bill exports and converting between cents and yuan representations.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

var amountCleaner = strings.NewReplacer(
	"¥", "",
	"￥", "",
	",", "",
	"=", "",
	" ", "",
	"\u00a0", "",
	"(", "-",
	")", "",
)

// ParseAmount converts an exported amount string to non-negative cents.
//
// Currency signs, thousands separators and spreadsheet "=" prefixes are
// stripped, accounting parentheses are read as a sign, and the absolute
// value is rounded half away from zero to two decimals.
//
// Examples:
//
//	ParseAmount("¥23.50")    -> 2350, nil
//	ParseAmount("-1,234.5")  -> 123450, nil
//	ParseAmount("(12.345)")  -> 1235, nil
//	ParseAmount("abc")       -> 0, ErrInvalidAmount
//	ParseAmount("1e20")      -> 0, ErrInvalidAmount (does not fit in cents)
func ParseAmount(s string) (int64, error) {
	s = amountCleaner.Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Abs().Round(2).Shift(2)
	if !d.IsInteger() || d.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}

// String formats the amount with exactly two decimals, e.g. "23.50".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Yuan returns the value as a float64 for display and charting.
// Use cents for calculations to avoid floating-point drift.
func (m Money) Yuan() float64 {
	return decimal.New(m.Cents, -2).InexactFloat64()
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m minus o; the result may be negative (net flows).
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}
