package onboarding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completedBefore returns every step that precedes id in order.
func completedBefore(c *Catalog, id StepID) []StepID {
	idx, _ := c.Index(id)
	return c.StepOrder()[:idx]
}

func TestValidateTransition_Rules(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name      string
		from, to  StepID
		completed []StepID
		kind      TransitionKind
		reason    string
	}{
		{
			name:      "same step",
			from:      StepMainGoal,
			to:        StepMainGoal,
			completed: completedBefore(c, StepMainGoal),
		},
		{
			name:      "next step",
			from:      StepMainGoal,
			to:        StepLifeStage,
			completed: completedBefore(c, StepLifeStage),
		},
		{
			name:      "unknown target",
			from:      StepMainGoal,
			to:        "main-goal",
			completed: completedBefore(c, StepMainGoal),
			kind:      TransitionUnknownStep,
			reason:    `unknown step "main-goal"`,
		},
		{
			name:      "missing prerequisite",
			from:      StepPrivacyConsent,
			to:        StepWelcome,
			completed: nil,
			kind:      TransitionPrerequisiteMissing,
			reason:    `prerequisite missing: "welcome" requires "privacy_consent"`,
		},
		{
			name:      "skip over skippable steps",
			from:      StepBudgetReview,
			to:        StepEmergencyFund,
			completed: completedBefore(c, StepAssetsLiabilities),
		},
		{
			name:      "skip over required step",
			from:      StepLifeStage,
			to:        StepJurisdiction,
			completed: completedBefore(c, StepDependents),
			kind:      TransitionIllegalSkip,
			reason:    `cannot skip required step "dependents"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateTransition(tt.from, tt.to, tt.completed)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransition)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.reason, te.Reason)
		})
	}
}

func TestValidateTransition_BackwardJump(t *testing.T) {
	c := DefaultCatalog()
	order := c.StepOrder()
	from, to := order[5], order[2]

	err := c.ValidateTransition(from, to, order[:5])
	require.Error(t, err)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TransitionBackward, te.Kind)
	assert.Contains(t, te.Reason, "backward")
}

func TestValidateTransition_PrerequisitesEnforced(t *testing.T) {
	c := DefaultCatalog()

	checked := 0
	for _, id := range c.StepOrder() {
		def, err := c.StepConfig(id)
		require.NoError(t, err)
		if len(def.RequiresPrevious) == 0 {
			continue
		}
		checked++

		for _, req := range def.RequiresPrevious {
			completed := []StepID{}
			for _, done := range completedBefore(c, id) {
				if done != req {
					completed = append(completed, done)
				}
			}
			from := id
			if idx, _ := c.Index(id); idx > 0 {
				from = c.StepOrder()[idx-1]
			}

			err := c.ValidateTransition(from, id, completed)
			var te *TransitionError
			require.True(t, errors.As(err, &te), "%s without %s", id, req)
			assert.Equal(t, TransitionPrerequisiteMissing, te.Kind)
			assert.Equal(t, req, te.Step)
			assert.Contains(t, te.Reason, string(req))
		}
	}
	assert.Greater(t, checked, 0)
}

func TestValidateTransition_PrerequisiteCheckedBeforeDirection(t *testing.T) {
	c := DefaultCatalog()

	err := c.ValidateTransition(StepJurisdiction, StepWelcome, nil)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TransitionPrerequisiteMissing, te.Kind)
}
