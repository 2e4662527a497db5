// Package detection infers financial signals (monthly income, recurring
// expenses, linked accounts) from a user's transaction history. Detection
// is best effort: callers get "no signal" rather than an error.
package detection

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/devintruefi/91825truefi-sub000/internal/core"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
)

// TransactionSource returns the raw transaction history of a user.
type TransactionSource interface {
	Transactions(ctx context.Context, userID string) ([]core.Transaction, error)
}

// Provider answers the three detection questions. A nil result with a nil
// error means nothing was detected.
type Provider interface {
	DetectedIncome(ctx context.Context, userID string) (*onboarding.DetectedIncome, error)
	DetectedExpenses(ctx context.Context, userID string) (map[string]decimal.Decimal, error)
	AccountsLinked(ctx context.Context, userID string) (bool, error)
}

// None is the provider used when detection is disabled.
type None struct{}

var _ Provider = None{}

func (None) DetectedIncome(context.Context, string) (*onboarding.DetectedIncome, error) {
	return nil, nil
}

func (None) DetectedExpenses(context.Context, string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (None) AccountsLinked(context.Context, string) (bool, error) {
	return false, nil
}
