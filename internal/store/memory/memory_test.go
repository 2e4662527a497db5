package memory

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

func newState(t *testing.T) onboarding.OnboardingState {
	t.Helper()
	return onboarding.NewMachine(onboarding.DefaultCatalog()).Start("user-1", "default")
}

func TestStore_LoadNotFound(t *testing.T) {
	s := New()
	_, err := s.Load(context.Background(), "nobody", "default")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_InvalidKey(t *testing.T) {
	s := New()
	_, err := s.Load(context.Background(), "", "default")
	assert.ErrorIs(t, err, store.ErrInvalidKey)

	st := newState(t)
	st.SessionID = ""
	_, err = s.Save(context.Background(), st)
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := New()
	ctx := context.Background()
	st := newState(t)

	saved, err := s.Save(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	loaded, err := s.Load(ctx, st.UserID, st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	// Mutating the loaded copy must not leak into the store.
	loaded.CompletedSteps = append(loaded.CompletedSteps, onboarding.StepWelcome)
	again, err := s.Load(ctx, st.UserID, st.SessionID)
	require.NoError(t, err)
	assert.Empty(t, again.CompletedSteps)
}

func TestStore_SaveConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	st := newState(t)

	first, err := s.Save(ctx, st)
	require.NoError(t, err)

	// A second writer holding the never-saved state loses.
	_, err = s.Save(ctx, st)
	assert.ErrorIs(t, err, store.ErrConflict)

	second, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)

	_, err = s.Save(ctx, first)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_ConcurrentSavesOneWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	base, err := s.Save(ctx, newState(t))
	require.NoError(t, err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Save(ctx, base); err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, store.ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), conflicts.Load())
}

func TestStore_Delete(t *testing.T) {
	s := New()
	ctx := context.Background()
	st := newState(t)
	_, err := s.Save(ctx, st)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, st.UserID, st.SessionID))
	_, err = s.Load(ctx, st.UserID, st.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, st.UserID, st.SessionID), store.ErrNotFound)
}

func TestStore_RecordIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := store.AnswerRecord{
		ID:         "ans-1",
		UserID:     "user-1",
		SessionID:  "default",
		StepID:     onboarding.StepWelcome,
		Answer:     json.RawMessage(`{"value":"start"}`),
		RecordedAt: time.Now(),
	}

	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Record(ctx, store.AnswerRecord{ID: "ans-2", UserID: "user-2", SessionID: "default"}))

	got, err := s.ListAnswers(ctx, "user-1", "default")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, onboarding.StepWelcome, got[0].StepID)
	assert.JSONEq(t, `{"value":"start"}`, string(got[0].Answer))
}

func TestStore_Sessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := onboarding.NewMachine(onboarding.DefaultCatalog())
	for _, sess := range []string{"tablet", "default"} {
		_, err := s.Save(ctx, m.Start("user-1", sess))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, m.Start("user-2", "default"))
	require.NoError(t, err)

	got, err := s.Sessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "tablet"}, got)
}
