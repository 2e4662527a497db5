package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Date struct {
		time.Time
	}

	// Transaction is one record from a linked account. Positive amounts are
	// inflows, negative amounts are outflows.
	Transaction struct {
		Date        Date
		Description string
		Amount      decimal.Decimal
		Category    string
		Account     string
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// MonthKey returns the "YYYY-MM" bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// IsInflow reports whether the transaction brings money in.
func (t Transaction) IsInflow() bool {
	return t.Amount.IsPositive()
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if !t.IsInflow() && strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// NormalizeCategory lowercases and trims a category name and collapses
// inner whitespace to underscores.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}
