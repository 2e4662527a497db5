package onboarding

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// AdvanceContext carries the external facts the skip resolver may consult.
type AdvanceContext struct {
	AccountsLinked bool
}

func (c AdvanceContext) redundant(rule SkipRule) bool {
	switch rule {
	case SkipWhenAccountsLinked:
		return c.AccountsLinked
	default:
		return false
	}
}

// Machine is the onboarding state machine. It holds no per-session data and
// is safe for concurrent use; callers serialize access to a given session.
type Machine struct {
	catalog *Catalog
	now     func() time.Time
	tokens  TokenSource
}

type MachineOption func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// WithTokenSource overrides how instance ids and nonces are generated.
func WithTokenSource(tokens TokenSource) MachineOption {
	return func(m *Machine) { m.tokens = tokens }
}

func NewMachine(catalog *Catalog, opts ...MachineOption) *Machine {
	m := &Machine{
		catalog: catalog,
		now:     time.Now,
		tokens:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Catalog() *Catalog {
	return m.catalog
}

// Start creates the initial state for a session, positioned at the first
// catalog step with a fresh instance.
func (m *Machine) Start(userID, sessionID string) OnboardingState {
	now := m.now().UTC()
	first := m.catalog.Initial()
	return OnboardingState{
		UserID:          userID,
		SessionID:       sessionID,
		CurrentStep:     first,
		CurrentInstance: NewStepInstance(first, m.tokens, now),
		CompletedSteps:  []StepID{},
		StepPayloads:    map[StepID]json.RawMessage{},
		StartedAt:       now,
		LastUpdated:     now,
	}
}

// Advance records payload as the answer to the current step and moves the
// pointer to the next step chosen by the skip resolver.
//
// On the terminal step the answer is recorded and CompletedAt is set, but
// the pointer does not move and the terminal step is not added to the
// completed set. When the transition is rejected the original state is
// returned untouched together with a *TransitionError.
func (m *Machine) Advance(state OnboardingState, payload json.RawMessage, actx AdvanceContext) (OnboardingState, error) {
	if !m.catalog.Contains(state.CurrentStep) {
		return state, &UnknownStepError{ID: state.CurrentStep}
	}

	now := m.now().UTC()
	next := state.Clone()
	if next.StepPayloads == nil {
		next.StepPayloads = map[StepID]json.RawMessage{}
	}
	next.StepPayloads[state.CurrentStep] = slices.Clone(payload)

	target, ok := m.ResolveNext(state.CurrentStep, actx)
	if !ok {
		if next.CompletedAt == nil {
			next.CompletedAt = &now
		}
		next.LastUpdated = now
		return next, nil
	}

	if !slices.Contains(next.CompletedSteps, state.CurrentStep) {
		next.CompletedSteps = append(next.CompletedSteps, state.CurrentStep)
	}

	if err := m.catalog.ValidateTransition(state.CurrentStep, target, next.CompletedSteps); err != nil {
		return state, err
	}

	next.CurrentStep = target
	next.CurrentInstance = NewStepInstance(target, m.tokens, now)
	next.LastUpdated = now
	return next, nil
}

// ResolveNext returns the step that follows from, bypassing skip-allowed
// steps that actx marks as redundant. It returns false when from is the
// terminal step.
func (m *Machine) ResolveNext(from StepID, actx AdvanceContext) (StepID, bool) {
	candidate, ok := m.catalog.Next(from)
	if !ok {
		return "", false
	}
	for {
		def := m.catalog.defs[candidate]
		if !def.SkipAllowed || !actx.redundant(def.SkipWhen) {
			return candidate, true
		}
		after, ok := m.catalog.Next(candidate)
		if !ok {
			return candidate, true
		}
		candidate = after
	}
}

// Reissue mints a new instance for the current step, invalidating the one
// the client holds. Used after a rejected answer so that the retry is
// correlated with a fresh visit.
func (m *Machine) Reissue(state OnboardingState) OnboardingState {
	now := m.now().UTC()
	next := state.Clone()
	next.CurrentInstance = NewStepInstance(state.CurrentStep, m.tokens, now)
	next.LastUpdated = now
	return next
}

// Progress is a convenience over Catalog.CalculateProgress for a state.
func (m *Machine) Progress(state OnboardingState) (ProgressSummary, error) {
	return m.catalog.CalculateProgress(state.CompletedSteps, state.CurrentStep)
}
