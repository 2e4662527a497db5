package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Month      string // YYYY-MM
	Inflow     decimal.Decimal
	Outflow    decimal.Decimal
	ByCategory []CategoryAmount
}

// SortByAmountDesc orders categories by amount, largest first, breaking ties
// by name so output is stable.
func SortByAmountDesc(items []CategoryAmount) {
	slices.SortFunc(items, func(a, b CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// SummarizeByMonth buckets transactions by calendar month, oldest first.
// Outflows are reported as positive amounts and grouped by normalized
// category.
func SummarizeByMonth(txs []Transaction) []MonthOverview {
	type bucket struct {
		ov   MonthOverview
		cats map[string]decimal.Decimal
	}
	buckets := map[string]*bucket{}
	for _, tx := range txs {
		key := tx.Date.MonthKey()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{ov: MonthOverview{Month: key}, cats: map[string]decimal.Decimal{}}
			buckets[key] = b
		}
		if tx.IsInflow() {
			b.ov.Inflow = b.ov.Inflow.Add(tx.Amount)
			continue
		}
		out := tx.Amount.Abs()
		b.ov.Outflow = b.ov.Outflow.Add(out)
		cat := NormalizeCategory(tx.Category)
		b.cats[cat] = b.cats[cat].Add(out)
	}

	out := make([]MonthOverview, 0, len(buckets))
	for _, b := range buckets {
		for name, amt := range b.cats {
			b.ov.ByCategory = append(b.ov.ByCategory, CategoryAmount{Name: name, Amount: amt})
		}
		SortByAmountDesc(b.ov.ByCategory)
		out = append(out, b.ov)
	}
	slices.SortFunc(out, func(a, b MonthOverview) int { return cmp.Compare(a.Month, b.Month) })
	return out
}
