package detection

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/devintruefi/91825truefi-sub000/internal/core"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
)

const DefaultLookbackMonths = 3

// Money moved between a user's own accounts is neither income nor spending.
var ignoredCategories = map[string]bool{
	"transfer":  true,
	"transfers": true,
}

// Analyzer turns transactions into signals over the last LookbackMonths
// complete calendar months. The current month is ignored because it is
// partial.
type Analyzer struct {
	LookbackMonths int
	Now            func() time.Time
}

func (a Analyzer) months() int {
	if a.LookbackMonths < 1 {
		return DefaultLookbackMonths
	}
	return a.LookbackMonths
}

func (a Analyzer) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// window returns the month keys considered, e.g. {"2025-03","2025-04","2025-05"}
// when now is in June 2025 and the lookback is 3.
func (a Analyzer) window() map[string]bool {
	now := a.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make(map[string]bool, a.months())
	for i := 1; i <= a.months(); i++ {
		keys[first.AddDate(0, -i, 0).Format("2006-01")] = true
	}
	return keys
}

func (a Analyzer) overviews(txs []core.Transaction) []core.MonthOverview {
	window := a.window()
	kept := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !window[tx.Date.MonthKey()] || ignoredCategories[core.NormalizeCategory(tx.Category)] {
			continue
		}
		kept = append(kept, tx)
	}
	return core.SummarizeByMonth(kept)
}

// Income averages inflows over the months that had any. Confidence is the
// share of the window with observed income. The source is the description
// that contributed the most.
func (a Analyzer) Income(txs []core.Transaction) *onboarding.DetectedIncome {
	var total decimal.Decimal
	observed := 0
	for _, ov := range a.overviews(txs) {
		if ov.Inflow.IsPositive() {
			total = total.Add(ov.Inflow)
			observed++
		}
	}
	if observed == 0 {
		return nil
	}

	window := a.window()
	bySource := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.IsInflow() && window[tx.Date.MonthKey()] && !ignoredCategories[core.NormalizeCategory(tx.Category)] {
			bySource[tx.Description] = bySource[tx.Description].Add(tx.Amount)
		}
	}
	sources := make([]core.CategoryAmount, 0, len(bySource))
	for desc, amt := range bySource {
		sources = append(sources, core.CategoryAmount{Name: desc, Amount: amt})
	}
	core.SortByAmountDesc(sources)

	confidence := math.Min(1, float64(observed)/float64(a.months()))
	return &onboarding.DetectedIncome{
		Amount:     total.Div(decimal.NewFromInt(int64(observed))).Round(2),
		Confidence: math.Round(confidence*100) / 100,
		Source:     sources[0].Name,
	}
}

// Expenses averages outflows per category over the whole window, so a
// category seen in one month out of three counts for a third.
func (a Analyzer) Expenses(txs []core.Transaction) map[string]decimal.Decimal {
	sums := map[string]decimal.Decimal{}
	for _, ov := range a.overviews(txs) {
		for _, c := range ov.ByCategory {
			sums[c.Name] = sums[c.Name].Add(c.Amount)
		}
	}
	if len(sums) == 0 {
		return nil
	}
	months := decimal.NewFromInt(int64(a.months()))
	out := make(map[string]decimal.Decimal, len(sums))
	for name, sum := range sums {
		if avg := sum.Div(months).Round(2); avg.IsPositive() {
			out[name] = avg
		}
	}
	return out
}

// TransactionProvider implements Provider on top of a TransactionSource.
// Concurrent questions about the same user share one source read.
type TransactionProvider struct {
	source   TransactionSource
	analyzer Analyzer
	group    singleflight.Group
}

var _ Provider = (*TransactionProvider)(nil)

func NewTransactionProvider(source TransactionSource, analyzer Analyzer) *TransactionProvider {
	return &TransactionProvider{source: source, analyzer: analyzer}
}

func (p *TransactionProvider) load(ctx context.Context, userID string) ([]core.Transaction, error) {
	v, err, _ := p.group.Do(userID, func() (any, error) {
		return p.source.Transactions(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Transaction), nil
}

func (p *TransactionProvider) DetectedIncome(ctx context.Context, userID string) (*onboarding.DetectedIncome, error) {
	txs, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.analyzer.Income(txs), nil
}

func (p *TransactionProvider) DetectedExpenses(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	txs, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.analyzer.Expenses(txs), nil
}

// AccountsLinked reports whether any transaction arrived through a named
// account feed.
func (p *TransactionProvider) AccountsLinked(ctx context.Context, userID string) (bool, error) {
	txs, err := p.load(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, tx := range txs {
		if tx.Account != "" {
			return true, nil
		}
	}
	return false, nil
}
