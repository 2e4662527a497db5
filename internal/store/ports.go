// Package store defines the persistence ports the onboarding service depends
// on. Implementations live in sub-packages (memory, redis) and in
// internal/storage (SQLite).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
)

var (
	// ErrNotFound is returned when no state exists for a user/session.
	ErrNotFound = errors.New("onboarding state not found")
	// ErrConflict is returned by Save when another writer committed first.
	// The caller decides whether to reload and retry.
	ErrConflict = errors.New("onboarding state version conflict")
	// ErrInvalidKey is returned for an empty user or session id.
	ErrInvalidKey = errors.New("invalid onboarding state key")
)

// Ports for outbound adapters.
type (
	// StateStore persists one OnboardingState per (userId, sessionId).
	//
	// Save performs an optimistic-concurrency upsert: state.Version must equal
	// the stored version (0 when the state has never been saved), otherwise
	// ErrConflict is returned. On success the returned state carries the new
	// version.
	StateStore interface {
		Load(ctx context.Context, userID, sessionID string) (onboarding.OnboardingState, error)
		Save(ctx context.Context, state onboarding.OnboardingState) (onboarding.OnboardingState, error)
		Delete(ctx context.Context, userID, sessionID string) error
		Ping(ctx context.Context) error
	}

	// AnswerLog is the append-only audit trail of accepted answers. It is
	// never read back by the onboarding flow.
	AnswerLog interface {
		Record(ctx context.Context, rec AnswerRecord) error
	}

	// AnswerReader lists recorded answers for support tooling.
	AnswerReader interface {
		ListAnswers(ctx context.Context, userID, sessionID string) ([]AnswerRecord, error)
	}

	// SessionLister enumerates the sessions stored for a user.
	SessionLister interface {
		Sessions(ctx context.Context, userID string) ([]string, error)
	}
)

// AnswerRecord is one accepted answer. ID makes recording idempotent across
// redeliveries.
type AnswerRecord struct {
	ID         string            `json:"id" db:"id"`
	UserID     string            `json:"userId" db:"user_id"`
	SessionID  string            `json:"sessionId" db:"session_id"`
	StepID     onboarding.StepID `json:"stepId" db:"step_id"`
	Answer     json.RawMessage   `json:"answer" db:"answer"`
	RecordedAt time.Time         `json:"recordedAt" db:"recorded_at"`
}

// ValidateKey rejects empty identifiers.
func ValidateKey(userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return ErrInvalidKey
	}
	return nil
}
