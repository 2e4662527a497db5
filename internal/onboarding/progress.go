package onboarding

import "slices"

// ProgressSummary is a view over an OnboardingState. It is recomputed on
// every request and never stored.
type ProgressSummary struct {
	OrderedSteps    []StepID `json:"orderedSteps"`
	Completed       []StepID `json:"completed"`
	Current         StepID   `json:"current"`
	RemainingCount  int      `json:"remainingCount"`
	ItemsCollected  int      `json:"itemsCollected"`
	PercentComplete int      `json:"percentComplete"`
	NextStep        *StepID  `json:"nextStep"`
	NextLabel       string   `json:"nextLabel,omitempty"`
}

// CalculateProgress summarises how far along the flow a user is. Only
// recorded answers count as collected items, and the percentage is floored
// so it never overstates completion.
func (c *Catalog) CalculateProgress(completed []StepID, current StepID) (ProgressSummary, error) {
	idx, ok := c.index[current]
	if !ok {
		return ProgressSummary{}, &UnknownStepError{ID: current}
	}

	total := len(c.order)
	items := len(completed)
	summary := ProgressSummary{
		OrderedSteps:    slices.Clone(c.order),
		Completed:       slices.Clone(completed),
		Current:         current,
		RemainingCount:  total - idx - 1,
		ItemsCollected:  items,
		PercentComplete: items * 100 / total,
	}
	if summary.Completed == nil {
		summary.Completed = []StepID{}
	}

	if next, ok := c.Next(current); ok {
		summary.NextStep = &next
		summary.NextLabel = c.defs[next].Label
	}
	return summary, nil
}
