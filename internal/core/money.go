// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimal.Decimal rounded to cents. This file contains
// functions for parsing user and sheet input and formatting amounts for
// display in component descriptors.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied amount to a positive decimal rounded
// half-up to cents.
//
// A leading "$" and thousands separators are accepted. A single comma with
// at most two digits after it and no dot is read as a decimal separator.
//
// Examples:
//
//	ParseAmount("4200")      -> 4200.00
//	ParseAmount("$4,200.50") -> 4200.50
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("12.345")    -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseSignedAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount without the sign restriction. Used for
// transaction rows where outflows are negative.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	switch {
	case strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && len(s)-strings.Index(s, ",")-1 <= 2:
		// Decimal comma
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// FormatUSD renders d as a dollar amount with thousands separators. Whole
// amounts are printed without cents.
//
//	FormatUSD(4200)    -> "$4,200"
//	FormatUSD(4200.5)  -> "$4,200.50"
//	FormatUSD(-12.3)   -> "-$12.30"
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	d = d.Round(2)

	var whole, frac string
	if d.Equal(d.Truncate(0)) {
		whole = d.Truncate(0).String()
	} else {
		fixed := d.StringFixed(2)
		dot := strings.IndexByte(fixed, '.')
		whole, frac = fixed[:dot], fixed[dot:]
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + frac
}

// Percent returns part/total*100 rounded to the nearest integer. A zero total
// yields zero.
func Percent(part, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(part.Div(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// Share returns pct percent of total rounded to cents.
func Share(total decimal.Decimal, pct int) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}
