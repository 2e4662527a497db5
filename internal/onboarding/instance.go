package onboarding

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepInstance correlates one issuance of a step with the answer the client
// sends back for it. A new instance is minted every time a step is entered.
type StepInstance struct {
	StepID     StepID    `json:"stepId"`
	InstanceID string    `json:"instanceId"`
	Nonce      string    `json:"nonce"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ReceivedInstance is what a client claims to be answering. Nonce is
// optional.
type ReceivedInstance struct {
	StepID     StepID
	InstanceID string
	Nonce      string
}

// TokenSource produces opaque unique tokens.
type TokenSource func() string

// NewStepInstance mints an instance for step using tokens for both the
// instance id and the nonce.
func NewStepInstance(step StepID, tokens TokenSource, now time.Time) StepInstance {
	if tokens == nil {
		tokens = uuid.NewString
	}
	return StepInstance{
		StepID:     step,
		InstanceID: tokens(),
		Nonce:      tokens(),
		CreatedAt:  now.UTC(),
	}
}

// ValidateStepInstance checks that received targets exactly the expected
// instance. It must run before Advance; a non-nil *SyncError means the
// client has to resync and the state must not be touched.
func ValidateStepInstance(expected StepInstance, received ReceivedInstance) error {
	if received.StepID != expected.StepID {
		return &SyncError{
			Kind:           SyncStepMismatch,
			ExpectedStepID: expected.StepID,
			ReceivedStepID: received.StepID,
			Reason: fmt.Sprintf("step mismatch: expected %q, received %q",
				string(expected.StepID), string(received.StepID)),
		}
	}
	if received.InstanceID != expected.InstanceID {
		return &SyncError{
			Kind:           SyncStaleInstance,
			ExpectedStepID: expected.StepID,
			ReceivedStepID: received.StepID,
			Reason:         fmt.Sprintf("stale instance for step %q", string(expected.StepID)),
		}
	}
	if received.Nonce != "" && received.Nonce != expected.Nonce {
		return &SyncError{
			Kind:           SyncNonceMismatch,
			ExpectedStepID: expected.StepID,
			ReceivedStepID: received.StepID,
			Reason:         fmt.Sprintf("nonce mismatch for step %q", string(expected.StepID)),
		}
	}
	return nil
}
