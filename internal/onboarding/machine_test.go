package onboarding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return NewMachine(DefaultCatalog(), WithClock(clock), WithTokenSource(sequentialTokens()))
}

func mockPayload(id StepID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"answer":%q}`, string(id)))
}

func TestMachine_Start(t *testing.T) {
	m := newTestMachine(t)

	s := m.Start("user-1", "sess-1")

	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "sess-1", s.SessionID)
	assert.Equal(t, StepPrivacyConsent, s.CurrentStep)
	assert.Equal(t, s.CurrentStep, s.CurrentInstance.StepID)
	assert.NotEmpty(t, s.CurrentInstance.InstanceID)
	assert.NotEmpty(t, s.CurrentInstance.Nonce)
	assert.Empty(t, s.CompletedSteps)
	assert.False(t, s.IsComplete())
	assert.False(t, s.StartedAt.IsZero())
}

func TestMachine_HappyPath(t *testing.T) {
	m := newTestMachine(t)
	c := m.Catalog()
	s := m.Start("user-1", "sess-1")

	for _, id := range c.StepOrder() {
		require.Equal(t, id, s.CurrentStep)
		next, err := m.Advance(s, mockPayload(id), AdvanceContext{})
		require.NoError(t, err, "advancing %s", id)
		assert.Equal(t, next.CurrentStep, next.CurrentInstance.StepID)
		s = next
	}

	assert.Len(t, s.CompletedSteps, c.Len()-1)
	assert.Equal(t, c.StepOrder()[:c.Len()-1], s.CompletedSteps)
	assert.Equal(t, c.Terminal(), s.CurrentStep)
	assert.True(t, s.IsComplete())
	assert.Len(t, s.StepPayloads, c.Len())

	p, err := m.Progress(s)
	require.NoError(t, err)
	assert.Nil(t, p.NextStep)
	assert.Less(t, p.PercentComplete, 100)
}

func TestMachine_AdvanceIssuesFreshInstance(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")

	next, err := m.Advance(s, mockPayload(s.CurrentStep), AdvanceContext{})
	require.NoError(t, err)

	assert.Equal(t, StepWelcome, next.CurrentInstance.StepID)
	assert.NotEqual(t, s.CurrentInstance.InstanceID, next.CurrentInstance.InstanceID)
	assert.NotEqual(t, s.CurrentInstance.Nonce, next.CurrentInstance.Nonce)
	assert.True(t, next.LastUpdated.After(s.LastUpdated))
}

func TestMachine_IdempotentResubmission(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")
	for i := 0; i < 4; i++ {
		var err error
		s, err = m.Advance(s, mockPayload(s.CurrentStep), AdvanceContext{})
		require.NoError(t, err)
	}

	payload := json.RawMessage(`{"value":"family"}`)
	first, err1 := m.Advance(s, payload, AdvanceContext{})
	second, err2 := m.Advance(s, payload, AdvanceContext{})

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.CurrentStep, second.CurrentStep)
	assert.Equal(t, first.CompletedSteps, second.CompletedSteps)
	assert.Equal(t, first.StepPayloads, second.StepPayloads)
}

func TestMachine_DoesNotMutateInput(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")
	before := s.Clone()

	_, err := m.Advance(s, mockPayload(s.CurrentStep), AdvanceContext{})
	require.NoError(t, err)

	assert.Equal(t, before, s)
}

func TestMachine_RejectedTransitionLeavesStateUnchanged(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")
	// A state that reached pay_structure without income_capture on record,
	// e.g. restored from an old snapshot.
	s.CurrentStep = StepPayStructure
	s.CurrentInstance = NewStepInstance(StepPayStructure, sequentialTokens(), time.Now())
	s.CompletedSteps = []StepID{StepPrivacyConsent, StepWelcome}
	original := s.Clone()

	got, err := m.Advance(s, json.RawMessage(`{"value":"monthly"}`), AdvanceContext{})

	require.Error(t, err)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TransitionPrerequisiteMissing, te.Kind)
	assert.Equal(t, StepIncomeCapture, te.Step)

	assert.Equal(t, original, got)
	assert.NotContains(t, got.StepPayloads, StepPayStructure)
	assert.NotContains(t, got.CompletedSteps, StepPayStructure)
}

func TestMachine_AdvanceUnknownCurrentStep(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")
	s.CurrentStep = "ghost"

	got, err := m.Advance(s, nil, AdvanceContext{})
	assert.ErrorIs(t, err, ErrUnknownStep)
	assert.Equal(t, s, got)
}

func TestMachine_TerminalStep(t *testing.T) {
	m := newTestMachine(t)
	c := m.Catalog()
	s := m.Start("u", "s")
	for s.CurrentStep != c.Terminal() {
		var err error
		s, err = m.Advance(s, mockPayload(s.CurrentStep), AdvanceContext{})
		require.NoError(t, err)
	}
	require.False(t, s.IsComplete())
	instance := s.CurrentInstance

	done, err := m.Advance(s, json.RawMessage(`{"value":"finish"}`), AdvanceContext{})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, c.Terminal(), done.CurrentStep)
	assert.Equal(t, instance, done.CurrentInstance)
	assert.NotContains(t, done.CompletedSteps, c.Terminal())

	again, err := m.Advance(done, json.RawMessage(`{"value":"finish"}`), AdvanceContext{})
	require.NoError(t, err)
	assert.Equal(t, *done.CompletedAt, *again.CompletedAt)
	assert.Equal(t, done.CompletedSteps, again.CompletedSteps)
}

func TestMachine_SkipsRedundantStepsWhenLinked(t *testing.T) {
	m := newTestMachine(t)
	c := m.Catalog()
	s := m.Start("u", "s")
	for s.CurrentStep != StepBudgetReview {
		var err error
		s, err = m.Advance(s, mockPayload(s.CurrentStep), AdvanceContext{})
		require.NoError(t, err)
	}

	next, ok := m.ResolveNext(StepBudgetReview, AdvanceContext{AccountsLinked: true})
	require.True(t, ok)
	assert.Equal(t, StepEmergencyFund, next)

	linked, err := m.Advance(s, mockPayload(StepBudgetReview), AdvanceContext{AccountsLinked: true})
	require.NoError(t, err)
	assert.Equal(t, StepEmergencyFund, linked.CurrentStep)
	assert.NotContains(t, linked.CompletedSteps, StepAssetsLiabilities)
	assert.NotContains(t, linked.CompletedSteps, StepDebtsDetail)

	assert.NoError(t, c.ValidateTransition(StepBudgetReview, StepEmergencyFund, linked.CompletedSteps))

	unlinked, err := m.Advance(s, mockPayload(StepBudgetReview), AdvanceContext{})
	require.NoError(t, err)
	assert.Equal(t, StepAssetsLiabilities, unlinked.CurrentStep)
}

func TestMachine_SkipAllowedWithoutRuleIsNotBypassed(t *testing.T) {
	m := newTestMachine(t)

	next, ok := m.ResolveNext(StepIncomeCapture, AdvanceContext{AccountsLinked: true})
	require.True(t, ok)
	assert.Equal(t, StepPayStructure, next)

	next, ok = m.ResolveNext(StepGoalsTimeline, AdvanceContext{AccountsLinked: true})
	require.True(t, ok)
	assert.Equal(t, StepNotificationsOptIn, next)

	_, ok = m.ResolveNext(StepWrapUp, AdvanceContext{})
	assert.False(t, ok)
}

func TestMachine_ForwardOnlyUnderRandomContexts(t *testing.T) {
	m := newTestMachine(t)
	c := m.Catalog()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 25; run++ {
		s := m.Start("u", fmt.Sprintf("s-%d", run))
		for i := 0; i < 60 && !s.IsComplete(); i++ {
			actx := AdvanceContext{AccountsLinked: rng.Intn(2) == 0}
			next, err := m.Advance(s, mockPayload(s.CurrentStep), actx)
			require.NoError(t, err)

			from, _ := c.Index(s.CurrentStep)
			to, _ := c.Index(next.CurrentStep)
			require.GreaterOrEqual(t, to, from)
			require.Equal(t, next.CurrentStep, next.CurrentInstance.StepID)

			seen := map[StepID]bool{}
			for _, id := range next.CompletedSteps {
				require.False(t, seen[id], "duplicate %s", id)
				require.True(t, c.Contains(id))
				seen[id] = true
			}
			s = next
		}
		require.True(t, s.IsComplete())
	}
}

func TestMachine_Reissue(t *testing.T) {
	m := newTestMachine(t)
	s := m.Start("u", "s")

	r := m.Reissue(s)

	assert.Equal(t, s.CurrentStep, r.CurrentStep)
	assert.Equal(t, s.CurrentStep, r.CurrentInstance.StepID)
	assert.NotEqual(t, s.CurrentInstance.InstanceID, r.CurrentInstance.InstanceID)
	assert.Equal(t, s.CompletedSteps, r.CompletedSteps)

	err := ValidateStepInstance(r.CurrentInstance, ReceivedInstance{
		StepID:     s.CurrentStep,
		InstanceID: s.CurrentInstance.InstanceID,
	})
	assert.ErrorIs(t, err, ErrOutOfSync)
}
