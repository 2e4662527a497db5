package onboarding

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// OnboardingState is the aggregate root of one onboarding session. It is
// owned by the Machine and only changes through Advance and Reissue.
type OnboardingState struct {
	UserID          string                     `json:"userId"`
	SessionID       string                     `json:"sessionId"`
	CurrentStep     StepID                     `json:"currentStep"`
	CurrentInstance StepInstance               `json:"currentInstance"`
	CompletedSteps  []StepID                   `json:"completedSteps"`
	StepPayloads    map[StepID]json.RawMessage `json:"stepPayloads"`
	Detected        *DetectedSignals           `json:"detected,omitempty"`
	// Version is bumped by the store on every successful save and used for
	// optimistic concurrency.
	Version     int64      `json:"version"`
	StartedAt   time.Time  `json:"startedAt"`
	LastUpdated time.Time  `json:"lastUpdated"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy, so callers can mutate the result without
// touching the receiver.
func (s OnboardingState) Clone() OnboardingState {
	out := s
	out.CompletedSteps = slices.Clone(s.CompletedSteps)
	if s.StepPayloads != nil {
		out.StepPayloads = make(map[StepID]json.RawMessage, len(s.StepPayloads))
		for k, v := range s.StepPayloads {
			out.StepPayloads[k] = slices.Clone(v)
		}
	}
	out.Detected = s.Detected.Clone()
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// IsComplete reports whether the terminal step has been answered.
func (s OnboardingState) IsComplete() bool {
	return s.CompletedAt != nil
}

func (s OnboardingState) HasCompleted(id StepID) bool {
	return slices.Contains(s.CompletedSteps, id)
}

// Payload returns the recorded answer for id, if any.
func (s OnboardingState) Payload(id StepID) (json.RawMessage, bool) {
	p, ok := s.StepPayloads[id]
	return p, ok
}

// WithDetected returns a copy of s carrying signals as its cached
// detection result.
func (s OnboardingState) WithDetected(signals *DetectedSignals) OnboardingState {
	out := s.Clone()
	out.Detected = signals.Clone()
	return out
}

// Key identifies a session across stores.
type Key struct {
	UserID    string
	SessionID string
}

func (s OnboardingState) Key() Key {
	return Key{UserID: s.UserID, SessionID: s.SessionID}
}

func (k Key) String() string {
	return k.UserID + "/" + k.SessionID
}

// AnsweredSteps lists the steps with a recorded payload, sorted by id.
func (s OnboardingState) AnsweredSteps() []StepID {
	return slices.Sorted(maps.Keys(s.StepPayloads))
}
