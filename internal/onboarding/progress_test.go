package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateProgress_Initial(t *testing.T) {
	c := DefaultCatalog()

	p, err := c.CalculateProgress(nil, StepPrivacyConsent)
	require.NoError(t, err)

	assert.Equal(t, 0, p.ItemsCollected)
	assert.Equal(t, 0, p.PercentComplete)
	assert.Equal(t, c.Len()-1, p.RemainingCount)
	assert.Equal(t, []StepID{}, p.Completed)
	assert.Equal(t, c.StepOrder(), p.OrderedSteps)
	require.NotNil(t, p.NextStep)
	assert.Equal(t, StepWelcome, *p.NextStep)
	assert.Equal(t, "Welcome", p.NextLabel)
}

func TestCalculateProgress_FloorAndMonotonic(t *testing.T) {
	c := DefaultCatalog()
	order := c.StepOrder()
	n := len(order)

	prev := -1
	for k := 0; k < n; k++ {
		p, err := c.CalculateProgress(order[:k], order[k])
		require.NoError(t, err)

		assert.Equal(t, k, p.ItemsCollected)
		assert.Equal(t, 100*k/n, p.PercentComplete, "k=%d", k)
		assert.GreaterOrEqual(t, p.PercentComplete, prev)
		assert.Less(t, p.PercentComplete, 100)
		assert.Equal(t, n-k-1, p.RemainingCount)
		prev = p.PercentComplete
	}
}

func TestCalculateProgress_Terminal(t *testing.T) {
	c := DefaultCatalog()
	order := c.StepOrder()

	p, err := c.CalculateProgress(order[:len(order)-1], StepWrapUp)
	require.NoError(t, err)

	assert.Nil(t, p.NextStep)
	assert.Empty(t, p.NextLabel)
	assert.Equal(t, 0, p.RemainingCount)
	assert.Equal(t, 95, p.PercentComplete)
}

func TestCalculateProgress_DoesNotAliasInput(t *testing.T) {
	c := DefaultCatalog()
	completed := []StepID{StepPrivacyConsent}

	p, err := c.CalculateProgress(completed, StepWelcome)
	require.NoError(t, err)
	p.Completed[0] = StepWrapUp

	assert.Equal(t, StepPrivacyConsent, completed[0])
}

func TestCalculateProgress_UnknownCurrent(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.CalculateProgress(nil, "nope")
	assert.ErrorIs(t, err, ErrUnknownStep)
}
