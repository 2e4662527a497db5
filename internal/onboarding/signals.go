package onboarding

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// DetectedIncome is a monthly income figure inferred from linked accounts.
type DetectedIncome struct {
	Amount     decimal.Decimal `json:"amount"`
	Confidence float64         `json:"confidence"`
	Source     string          `json:"source"`
}

// DetectedSignals bundles everything the detection provider could infer for
// a user. A nil Income or empty Expenses means no signal. Degraded marks a
// fetch that failed or timed out, so callers should not cache it.
type DetectedSignals struct {
	Income         *DetectedIncome            `json:"income,omitempty"`
	Expenses       map[string]decimal.Decimal `json:"expenses,omitempty"`
	AccountsLinked bool                       `json:"accountsLinked"`
	FetchedAt      time.Time                  `json:"fetchedAt"`
	Degraded       bool                       `json:"degraded,omitempty"`
}

func (s *DetectedSignals) HasIncome() bool {
	return s != nil && s.Income != nil && s.Income.Amount.IsPositive()
}

func (s *DetectedSignals) HasExpenses() bool {
	return s != nil && len(s.Expenses) > 0
}

// Fresh reports whether s was fetched successfully less than ttl before now.
func (s *DetectedSignals) Fresh(now time.Time, ttl time.Duration) bool {
	return s != nil && !s.Degraded && now.Sub(s.FetchedAt) < ttl
}

// Clone returns a deep copy. It is nil-safe.
func (s *DetectedSignals) Clone() *DetectedSignals {
	if s == nil {
		return nil
	}
	out := *s
	if s.Income != nil {
		inc := *s.Income
		out.Income = &inc
	}
	out.Expenses = maps.Clone(s.Expenses)
	return &out
}
