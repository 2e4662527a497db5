// Package memory provides in-process implementations of the store ports.
// State is lost on restart; intended for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

// Store keeps states and the answer log in maps guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	states  map[onboarding.Key]onboarding.OnboardingState
	answers []store.AnswerRecord
	seen    map[string]struct{}
}

var (
	_ store.StateStore    = (*Store)(nil)
	_ store.AnswerLog     = (*Store)(nil)
	_ store.AnswerReader  = (*Store)(nil)
	_ store.SessionLister = (*Store)(nil)
)

func New() *Store {
	return &Store{
		states: make(map[onboarding.Key]onboarding.OnboardingState),
		seen:   make(map[string]struct{}),
	}
}

func (s *Store) Load(_ context.Context, userID, sessionID string) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[onboarding.Key{UserID: userID, SessionID: sessionID}]
	if !ok {
		return onboarding.OnboardingState{}, store.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *Store) Save(_ context.Context, state onboarding.OnboardingState) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(state.UserID, state.SessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := state.Key()
	var current int64
	if existing, ok := s.states[key]; ok {
		current = existing.Version
	}
	if state.Version != current {
		return onboarding.OnboardingState{}, store.ErrConflict
	}

	saved := state.Clone()
	saved.Version = current + 1
	s.states[key] = saved
	return saved.Clone(), nil
}

func (s *Store) Delete(_ context.Context, userID, sessionID string) error {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := onboarding.Key{UserID: userID, SessionID: sessionID}
	if _, ok := s.states[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.states, key)
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Record appends rec unless a record with the same ID was already stored.
func (s *Store) Record(_ context.Context, rec store.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID != "" {
		if _, dup := s.seen[rec.ID]; dup {
			return nil
		}
		s.seen[rec.ID] = struct{}{}
	}
	rec.Answer = slices.Clone(rec.Answer)
	s.answers = append(s.answers, rec)
	return nil
}

func (s *Store) ListAnswers(_ context.Context, userID, sessionID string) ([]store.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.AnswerRecord
	for _, rec := range s.answers {
		if rec.UserID == userID && rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Sessions(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.states {
		if k.UserID == userID {
			out = append(out, k.SessionID)
		}
	}
	slices.Sort(out)
	return out, nil
}
