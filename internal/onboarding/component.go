package onboarding

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/devintruefi/91825truefi-sub000/internal/core"
)

// Option ids used by the income-resolution policy.
const (
	OptionUseDetected = "use_detected"
	OptionManualEntry = "manual_entry"
	OptionSkip        = "skip"
)

// Sources reported on pie slices.
const (
	SourceDetected  = "detected"
	SourceEstimated = "estimated"
	SourceDefault   = "default"
)

// ComponentDescriptor is the renderer-agnostic description of the current
// step, enriched with runtime data.
type ComponentDescriptor struct {
	StepID      StepID         `json:"stepId"`
	Label       string         `json:"label"`
	Prompt      string         `json:"prompt"`
	Kind        ComponentKind  `json:"component"`
	Options     []Option       `json:"options,omitempty"`
	Fields      []Field        `json:"fields,omitempty"`
	Slider      *SliderSpec    `json:"slider,omitempty"`
	Slices      []PieSlice     `json:"slices,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	SkipAllowed bool           `json:"skipAllowed"`
}

// PieSlice is one segment of a pie-chart component.
type PieSlice struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  int             `json:"percent"`
	Source   string          `json:"source"`
}

// BudgetSplit is a needs/wants/savings allocation in whole percents.
type BudgetSplit struct {
	Needs   int
	Wants   int
	Savings int
}

// DefaultBudgetSplit is the 50/30/20 rule.
var DefaultBudgetSplit = BudgetSplit{Needs: 50, Wants: 30, Savings: 20}

// ExpenseShare is the default share of monthly income assumed for a category
// when nothing was detected.
type ExpenseShare struct {
	Category string
	Percent  int
}

var defaultExpenseShares = []ExpenseShare{
	{Category: "housing", Percent: 30},
	{Category: "groceries", Percent: 12},
	{Category: "transportation", Percent: 10},
	{Category: "utilities", Percent: 6},
	{Category: "insurance", Percent: 5},
	{Category: "dining_out", Percent: 5},
	{Category: "entertainment", Percent: 4},
	{Category: "shopping", Percent: 4},
}

var needCategories = []string{
	"housing", "rent", "mortgage", "groceries", "utilities", "transportation",
	"insurance", "healthcare", "childcare", "debt_payments", "education",
}

// Builder turns the static definition of the current step into a
// ComponentDescriptor using detected signals.
type Builder struct {
	catalog *Catalog
	split   BudgetSplit
	shares  []ExpenseShare
}

type BuilderOption func(*Builder)

// WithBudgetSplit sets the fallback allocation used when no expenses were
// detected. Splits that do not add up to 100 are ignored.
func WithBudgetSplit(split BudgetSplit) BuilderOption {
	return func(b *Builder) {
		if split.Needs+split.Wants+split.Savings == 100 {
			b.split = split
		}
	}
}

// WithExpenseShares replaces the default expense categories.
func WithExpenseShares(shares []ExpenseShare) BuilderOption {
	return func(b *Builder) {
		if len(shares) > 0 {
			b.shares = slices.Clone(shares)
		}
	}
}

func NewBuilder(catalog *Catalog, opts ...BuilderOption) *Builder {
	b := &Builder{
		catalog: catalog,
		split:   DefaultBudgetSplit,
		shares:  defaultExpenseShares,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build describes the current step of state. signals may be nil, in which
// case the signals cached on the state are used; no signal at all selects
// the manual-entry and default branches. It returns nil once onboarding is
// complete or when the current step is not in the catalog.
func (b *Builder) Build(state OnboardingState, signals *DetectedSignals) *ComponentDescriptor {
	if state.IsComplete() {
		return nil
	}
	def, err := b.catalog.StepConfig(state.CurrentStep)
	if err != nil {
		return nil
	}
	if signals == nil {
		signals = state.Detected
	}

	d := &ComponentDescriptor{
		StepID:      def.ID,
		Label:       def.Label,
		Prompt:      def.Prompt,
		Kind:        def.Component,
		Options:     def.Options,
		Fields:      def.Fields,
		Slider:      def.Slider,
		SkipAllowed: def.SkipAllowed,
	}

	switch def.ID {
	case StepIncomeCapture:
		b.incomeOptions(d, signals)
	case StepAccountLinking:
		d.Data = map[string]any{"linked": signals != nil && signals.AccountsLinked}
	case StepMonthlyExpenses:
		b.expenseSlices(d, state, signals)
	case StepBudgetReview:
		b.budgetSlices(d, state, signals)
	case StepEmergencyFund:
		if total, ok := b.monthlyExpenses(state, signals); ok {
			d.Data = map[string]any{
				"monthlyExpenses":    total.StringFixed(2),
				"monthlyExpensesFmt": core.FormatUSD(total),
			}
		}
	case StepWrapUp:
		d.Data = map[string]any{"answered": len(state.AnsweredSteps())}
	}
	return d
}

// incomeOptions applies the income-resolution policy. A manual-entry path
// and a skip path are always present; the detected option only appears when
// a positive income was detected.
func (b *Builder) incomeOptions(d *ComponentDescriptor, signals *DetectedSignals) {
	manual := Option{ID: OptionManualEntry, Label: "Enter it manually", Value: OptionManualEntry}
	skip := Option{ID: OptionSkip, Label: "Skip for now", Value: OptionSkip}
	d.Fields = []Field{{Name: "amount", Label: "Monthly income", Type: "currency", Placeholder: "$0"}}

	if !signals.HasIncome() {
		manual.Primary = true
		d.Options = []Option{manual, skip}
		return
	}

	inc := signals.Income
	d.Options = []Option{
		{
			ID:          OptionUseDetected,
			Label:       fmt.Sprintf("Use detected income: %s", core.FormatUSD(inc.Amount)),
			Description: fmt.Sprintf("Based on %s, %d%% confidence", inc.Source, int(inc.Confidence*100)),
			Primary:     true,
			Value:       inc.Amount.StringFixed(2),
		},
		manual,
		skip,
	}
	d.Data = map[string]any{
		"detectedIncome": inc.Amount.StringFixed(2),
		"confidence":     inc.Confidence,
		"source":         inc.Source,
	}
}

func (b *Builder) expenseSlices(d *ComponentDescriptor, state OnboardingState, signals *DetectedSignals) {
	if signals.HasExpenses() {
		items := make([]core.CategoryAmount, 0, len(signals.Expenses))
		total := decimal.Zero
		for cat, amt := range signals.Expenses {
			items = append(items, core.CategoryAmount{Name: cat, Amount: amt})
			total = total.Add(amt)
		}
		core.SortByAmountDesc(items)
		for _, it := range items {
			d.Slices = append(d.Slices, PieSlice{
				Category: it.Name,
				Amount:   it.Amount,
				Percent:  core.Percent(it.Amount, total),
				Source:   SourceDetected,
			})
		}
		d.Data = map[string]any{"total": total.StringFixed(2), "source": SourceDetected}
		return
	}

	income, _, ok := ResolvedMonthlyIncome(state, signals)
	source := SourceEstimated
	if !ok {
		income = decimal.Zero
		source = SourceDefault
	}
	total := decimal.Zero
	for _, sh := range b.shares {
		amt := core.Share(income, sh.Percent)
		total = total.Add(amt)
		d.Slices = append(d.Slices, PieSlice{
			Category: sh.Category,
			Amount:   amt,
			Percent:  sh.Percent,
			Source:   source,
		})
	}
	d.Data = map[string]any{"total": total.StringFixed(2), "source": source}
}

// budgetSlices proposes a needs/wants/savings allocation. Detected expenses
// are classified into needs and wants with savings as the remainder of
// income; otherwise the configured split is applied to income.
func (b *Builder) budgetSlices(d *ComponentDescriptor, state OnboardingState, signals *DetectedSignals) {
	income, _, hasIncome := ResolvedMonthlyIncome(state, signals)

	if signals.HasExpenses() {
		needs, wants := decimal.Zero, decimal.Zero
		for cat, amt := range signals.Expenses {
			if slices.Contains(needCategories, core.NormalizeCategory(cat)) {
				needs = needs.Add(amt)
			} else {
				wants = wants.Add(amt)
			}
		}
		base := needs.Add(wants)
		savings := decimal.Zero
		if hasIncome && income.GreaterThan(base) {
			savings = income.Sub(base)
			base = income
		}
		d.Slices = []PieSlice{
			{Category: "needs", Amount: needs, Percent: core.Percent(needs, base), Source: SourceDetected},
			{Category: "wants", Amount: wants, Percent: core.Percent(wants, base), Source: SourceDetected},
			{Category: "savings", Amount: savings, Percent: core.Percent(savings, base), Source: SourceDetected},
		}
		d.Data = map[string]any{"source": SourceDetected, "income": income.StringFixed(2)}
		return
	}

	if !hasIncome {
		income = decimal.Zero
	}
	d.Slices = []PieSlice{
		{Category: "needs", Amount: core.Share(income, b.split.Needs), Percent: b.split.Needs, Source: SourceDefault},
		{Category: "wants", Amount: core.Share(income, b.split.Wants), Percent: b.split.Wants, Source: SourceDefault},
		{Category: "savings", Amount: core.Share(income, b.split.Savings), Percent: b.split.Savings, Source: SourceDefault},
	}
	d.Data = map[string]any{
		"source": SourceDefault,
		"income": income.StringFixed(2),
		"split":  fmt.Sprintf("%d/%d/%d", b.split.Needs, b.split.Wants, b.split.Savings),
	}
}

func (b *Builder) monthlyExpenses(state OnboardingState, signals *DetectedSignals) (decimal.Decimal, bool) {
	if signals.HasExpenses() {
		total := decimal.Zero
		for _, amt := range signals.Expenses {
			total = total.Add(amt)
		}
		return total, true
	}
	income, _, ok := ResolvedMonthlyIncome(state, signals)
	if !ok {
		return decimal.Zero, false
	}
	pct := 0
	for _, sh := range b.shares {
		pct += sh.Percent
	}
	return core.Share(income, pct), true
}

// incomeAnswer is the payload shape of the income step.
type incomeAnswer struct {
	Choice string          `json:"choice"`
	Amount json.RawMessage `json:"amount"`
}

// ResolvedMonthlyIncome returns the monthly income to plan with and where it
// came from. A manual answer wins over detection; "use_detected" or an
// unanswered step fall back to the detected signal.
func ResolvedMonthlyIncome(state OnboardingState, signals *DetectedSignals) (decimal.Decimal, string, bool) {
	if signals == nil {
		signals = state.Detected
	}
	if raw, ok := state.Payload(StepIncomeCapture); ok {
		var ans incomeAnswer
		if err := json.Unmarshal(raw, &ans); err == nil {
			switch ans.Choice {
			case OptionSkip:
				return decimal.Zero, "", false
			case OptionUseDetected:
			default:
				if amt, ok := parseAmountJSON(ans.Amount); ok {
					return amt, "user", true
				}
			}
		}
	}
	if signals.HasIncome() {
		return signals.Income.Amount, signals.Income.Source, true
	}
	return decimal.Zero, "", false
}

func parseAmountJSON(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	amt, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, false
	}
	return amt, true
}
