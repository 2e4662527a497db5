package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "onboarding.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, dbPath
}

func newMockRepo(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "sqlite")), mock
}

func startState(userID, sessionID string) onboarding.OnboardingState {
	return onboarding.NewMachine(onboarding.DefaultCatalog()).Start(userID, sessionID)
}

func TestSQLiteRepository_SaveLoadRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	st := startState("user-1", "default")
	st.StepPayloads[onboarding.StepPrivacyConsent] = json.RawMessage(`{"value":"accepted"}`)

	saved, err := repo.Save(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	loaded, err := repo.Load(ctx, "user-1", "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, st.CurrentStep, loaded.CurrentStep)
	assert.Equal(t, st.CurrentInstance.InstanceID, loaded.CurrentInstance.InstanceID)
	assert.JSONEq(t, `{"value":"accepted"}`, string(loaded.StepPayloads[onboarding.StepPrivacyConsent]))
}

func TestSQLiteRepository_OptimisticConcurrency(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	st := startState("user-1", "default")

	v1, err := repo.Save(ctx, st)
	require.NoError(t, err)

	_, err = repo.Save(ctx, st)
	assert.ErrorIs(t, err, store.ErrConflict, "second insert of a new state")

	v2, err := repo.Save(ctx, v1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Version)

	_, err = repo.Save(ctx, v1)
	assert.ErrorIs(t, err, store.ErrConflict, "stale version")
}

func TestSQLiteRepository_NotFoundAndDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, "user-1", "default")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "user-1", "default"), store.ErrNotFound)

	_, err = repo.Save(ctx, startState("user-1", "default"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "user-1", "default"))

	_, err = repo.Load(ctx, "user-1", "default")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteRepository_InvalidKey(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Load(context.Background(), "", "default")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}

func TestSQLiteRepository_SessionsAndStepCounts(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	m := onboarding.NewMachine(onboarding.DefaultCatalog())

	for _, key := range []onboarding.Key{
		{UserID: "user-1", SessionID: "phone"},
		{UserID: "user-1", SessionID: "default"},
		{UserID: "user-2", SessionID: "default"},
	} {
		_, err := repo.Save(ctx, m.Start(key.UserID, key.SessionID))
		require.NoError(t, err)
	}
	advanced, err := m.Advance(m.Start("user-3", "default"), json.RawMessage(`{}`), onboarding.AdvanceContext{})
	require.NoError(t, err)
	_, err = repo.Save(ctx, advanced)
	require.NoError(t, err)

	sessions, err := repo.Sessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "phone"}, sessions)

	counts, err := repo.StepCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, StepCount{StepID: onboarding.StepPrivacyConsent, Count: 3}, counts[0])
	assert.Equal(t, StepCount{StepID: onboarding.StepWelcome, Count: 1}, counts[1])
}

func TestSQLiteRepository_RecordIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	recs := []store.AnswerRecord{
		{ID: "a-2", UserID: "user-1", SessionID: "default", StepID: onboarding.StepWelcome, Answer: json.RawMessage(`{"value":"start"}`), RecordedAt: base.Add(time.Second)},
		{ID: "a-1", UserID: "user-1", SessionID: "default", StepID: onboarding.StepPrivacyConsent, Answer: json.RawMessage(`{"value":"accepted"}`), RecordedAt: base},
		{ID: "a-1", UserID: "user-1", SessionID: "default", StepID: onboarding.StepPrivacyConsent, Answer: json.RawMessage(`{"value":"changed"}`), RecordedAt: base},
	}
	for _, rec := range recs {
		require.NoError(t, repo.Record(ctx, rec))
	}

	got, err := repo.ListAnswers(ctx, "user-1", "default")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-1", got[0].ID)
	assert.JSONEq(t, `{"value":"accepted"}`, string(got[0].Answer))
	assert.True(t, base.Equal(got[0].RecordedAt))
	assert.Equal(t, "a-2", got[1].ID)
}

func TestSQLiteRepository_RecordRequiresID(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.Record(context.Background(), store.AnswerRecord{UserID: "u", SessionID: "s"})
	assert.Error(t, err)
}

func TestMigrations_VersionAndRollback(t *testing.T) {
	repo, dbPath := newTestRepo(t)
	require.NoError(t, repo.Close())

	version, dirty, err := MigrationVersion(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, RollbackMigrations(dbPath, 1))
	version, _, err = MigrationVersion(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, RunMigrations(dbPath))
	require.NoError(t, RunMigrations(dbPath), "re-running is a no-op")

	assert.Error(t, RollbackMigrations(dbPath, 0))
}

func TestSQLiteRepository_LoadQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, state FROM onboarding_states`)).
		WithArgs("user-1", "default").
		WillReturnError(errors.New("disk I/O error"))

	_, err := repo.Load(context.Background(), "user-1", "default")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_LoadCorruptState(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"version", "state"}).AddRow(int64(3), "{not json")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version, state FROM onboarding_states`)).
		WithArgs("user-1", "default").
		WillReturnRows(rows)

	_, err := repo.Load(context.Background(), "user-1", "default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_UpdateWithStaleVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	st := startState("user-1", "default")
	st.Version = 4

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE onboarding_states`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Save(context.Background(), st)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_SaveExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO onboarding_states`)).
		WillReturnError(errors.New("database is locked"))

	_, err := repo.Save(context.Background(), startState("user-1", "default"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
