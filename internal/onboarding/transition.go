package onboarding

import (
	"fmt"
	"slices"
)

// ValidateTransition reports whether moving the step pointer from one step
// to another is allowed given the completed set. It returns nil for a valid
// transition and a *TransitionError otherwise. Rules are checked in order:
// unknown step, prerequisites, backward movement, then skip eligibility of
// every step jumped over.
func (c *Catalog) ValidateTransition(from, to StepID, completed []StepID) error {
	toIdx, ok := c.index[to]
	if !ok {
		return &TransitionError{
			Kind:   TransitionUnknownStep,
			From:   from,
			To:     to,
			Step:   to,
			Reason: fmt.Sprintf("unknown step %q", string(to)),
		}
	}
	fromIdx, ok := c.index[from]
	if !ok {
		return &TransitionError{
			Kind:   TransitionUnknownStep,
			From:   from,
			To:     to,
			Step:   from,
			Reason: fmt.Sprintf("unknown step %q", string(from)),
		}
	}

	for _, req := range c.defs[to].RequiresPrevious {
		if !slices.Contains(completed, req) {
			return &TransitionError{
				Kind:   TransitionPrerequisiteMissing,
				From:   from,
				To:     to,
				Step:   req,
				Reason: fmt.Sprintf("prerequisite missing: %q requires %q", string(to), string(req)),
			}
		}
	}

	switch {
	case toIdx < fromIdx:
		return &TransitionError{
			Kind:   TransitionBackward,
			From:   from,
			To:     to,
			Step:   to,
			Reason: fmt.Sprintf("backward navigation not allowed: %q -> %q", string(from), string(to)),
		}
	case toIdx == fromIdx, toIdx == fromIdx+1:
		return nil
	}

	for _, skipped := range c.order[fromIdx+1 : toIdx] {
		if !c.defs[skipped].SkipAllowed {
			return &TransitionError{
				Kind:   TransitionIllegalSkip,
				From:   from,
				To:     to,
				Step:   skipped,
				Reason: fmt.Sprintf("cannot skip required step %q", string(skipped)),
			}
		}
	}
	return nil
}
