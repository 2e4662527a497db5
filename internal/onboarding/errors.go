package onboarding

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStep matches any *UnknownStepError.
	ErrUnknownStep = errors.New("unknown step")
	// ErrInvalidTransition matches any *TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrOutOfSync matches any *SyncError.
	ErrOutOfSync = errors.New("out of sync")
)

// UnknownStepError reports a step id that is not part of the catalog.
type UnknownStepError struct {
	ID StepID
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q", string(e.ID))
}

func (e *UnknownStepError) Is(target error) bool {
	return target == ErrUnknownStep
}

// TransitionKind classifies a rejected transition.
type TransitionKind string

const (
	TransitionUnknownStep         TransitionKind = "unknown_step"
	TransitionPrerequisiteMissing TransitionKind = "prerequisite_missing"
	TransitionBackward            TransitionKind = "backward"
	TransitionIllegalSkip         TransitionKind = "illegal_skip"
)

// TransitionError is a business-level rejection of a step transition. The
// state it was raised against is left unchanged.
type TransitionError struct {
	Kind TransitionKind
	From StepID
	To   StepID
	// Step is the step the rule tripped on: the missing prerequisite or the
	// required step that would have been skipped.
	Step   StepID
	Reason string
}

func (e *TransitionError) Error() string {
	return e.Reason
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// SyncKind classifies a step-instance mismatch.
type SyncKind string

const (
	SyncStepMismatch  SyncKind = "step_mismatch"
	SyncStaleInstance SyncKind = "stale_instance"
	SyncNonceMismatch SyncKind = "nonce_mismatch"
)

// SyncError means the client answered a step or instance the server is not
// waiting on. Clients must re-fetch the current state instead of retrying.
type SyncError struct {
	Kind           SyncKind
	ExpectedStepID StepID
	ReceivedStepID StepID
	Reason         string
}

func (e *SyncError) Error() string {
	return e.Reason
}

func (e *SyncError) Is(target error) bool {
	return target == ErrOutOfSync
}
