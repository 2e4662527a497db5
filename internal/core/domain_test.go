package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := []Transaction{
		{Date: NewDate(2025, 1, 1), Description: "Payroll", Amount: decimal.NewFromInt(4200)},
		{Date: NewDate(2025, 1, 3), Description: "Rent", Amount: decimal.NewFromInt(-1500), Category: "housing"},
	}
	for i, tx := range good {
		if err := tx.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	bads := []Transaction{
		{Date: Date{}, Description: "a", Amount: decimal.NewFromInt(1)},
		{Date: NewDate(2025, 1, 1), Description: "", Amount: decimal.NewFromInt(1)},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: decimal.Zero},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: decimal.NewFromInt(-1), Category: " "},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("  Dining  Out "); got != "dining_out" {
		t.Fatalf("got %q", got)
	}
	if got := NewDate(2025, 3, 9).MonthKey(); got != "2025-03" {
		t.Fatalf("MonthKey = %q", got)
	}
}
