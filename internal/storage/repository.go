// Package storage is the SQLite persistence layer: onboarding states with
// optimistic versioning and the append-only answer log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sqlx.DB
}

var (
	_ store.StateStore    = (*SQLiteRepository)(nil)
	_ store.AnswerLog     = (*SQLiteRepository)(nil)
	_ store.AnswerReader  = (*SQLiteRepository)(nil)
	_ store.SessionLister = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db}, nil
}

// NewWithDB wraps an already opened database. Migrations are not run.
func NewWithDB(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type stateRow struct {
	Version int64  `db:"version"`
	State   string `db:"state"`
}

func (r *SQLiteRepository) Load(ctx context.Context, userID, sessionID string) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}

	var row stateRow
	err := r.db.GetContext(ctx, &row,
		`SELECT version, state FROM onboarding_states WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return onboarding.OnboardingState{}, store.ErrNotFound
	}
	if err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("load state: %w", err)
	}

	var st onboarding.OnboardingState
	if err := json.Unmarshal([]byte(row.State), &st); err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("decode state: %w", err)
	}
	st.Version = row.Version
	return st, nil
}

// Save inserts a new row when state.Version is 0 and otherwise updates the
// row only if its version is unchanged. Zero affected rows means another
// writer got there first.
func (r *SQLiteRepository) Save(ctx context.Context, state onboarding.OnboardingState) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(state.UserID, state.SessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}

	saved := state.Clone()
	saved.Version = state.Version + 1
	data, err := json.Marshal(saved)
	if err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("encode state: %w", err)
	}

	var completedAt sql.NullString
	if saved.CompletedAt != nil {
		completedAt = sql.NullString{String: saved.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}
	updatedAt := saved.LastUpdated.UTC().Format(timeLayout)

	var res sql.Result
	if state.Version == 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO onboarding_states (user_id, session_id, version, current_step, completed_at, state, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, session_id) DO NOTHING`,
			saved.UserID, saved.SessionID, saved.Version, string(saved.CurrentStep), completedAt, string(data), updatedAt)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE onboarding_states
			 SET version = ?, current_step = ?, completed_at = ?, state = ?, updated_at = ?
			 WHERE user_id = ? AND session_id = ? AND version = ?`,
			saved.Version, string(saved.CurrentStep), completedAt, string(data), updatedAt,
			saved.UserID, saved.SessionID, state.Version)
	}
	if err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("save state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("save state rows affected: %w", err)
	}
	if n == 0 {
		return onboarding.OnboardingState{}, store.ErrConflict
	}

	slog.DebugContext(ctx, "Onboarding state saved to SQLite",
		"user_id", saved.UserID,
		"session_id", saved.SessionID,
		"step_id", saved.CurrentStep,
		"version", saved.Version)

	return saved, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, sessionID string) error {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM onboarding_states WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete state rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Sessions(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT session_id FROM onboarding_states WHERE user_id = ? ORDER BY session_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// StepCount is the number of in-progress sessions parked on a step.
type StepCount struct {
	StepID onboarding.StepID `db:"current_step"`
	Count  int               `db:"n"`
}

// StepCounts groups unfinished sessions by current step, busiest first.
func (r *SQLiteRepository) StepCounts(ctx context.Context) ([]StepCount, error) {
	var out []StepCount
	err := r.db.SelectContext(ctx, &out,
		`SELECT current_step, COUNT(*) AS n
		 FROM onboarding_states
		 WHERE completed_at IS NULL
		 GROUP BY current_step
		 ORDER BY n DESC, current_step`)
	if err != nil {
		return nil, fmt.Errorf("count steps: %w", err)
	}
	return out, nil
}

// Record stores rec. A record whose ID is already present is ignored so
// redelivered queue messages are harmless.
func (r *SQLiteRepository) Record(ctx context.Context, rec store.AnswerRecord) error {
	if err := store.ValidateKey(rec.UserID, rec.SessionID); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.New("answer record id is required")
	}
	answer := string(rec.Answer)
	if answer == "" {
		answer = "null"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO answer_log (id, user_id, session_id, step_id, answer, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionID, string(rec.StepID), answer, rec.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

type answerRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	SessionID  string `db:"session_id"`
	StepID     string `db:"step_id"`
	Answer     string `db:"answer"`
	RecordedAt string `db:"recorded_at"`
}

func (r *SQLiteRepository) ListAnswers(ctx context.Context, userID, sessionID string) ([]store.AnswerRecord, error) {
	var rows []answerRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, session_id, step_id, answer, recorded_at
		 FROM answer_log
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY recorded_at, id`,
		userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	out := make([]store.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		recordedAt, err := time.Parse(timeLayout, row.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at for answer %s: %w", row.ID, err)
		}
		out = append(out, store.AnswerRecord{
			ID:         row.ID,
			UserID:     row.UserID,
			SessionID:  row.SessionID,
			StepID:     onboarding.StepID(row.StepID),
			Answer:     json.RawMessage(row.Answer),
			RecordedAt: recordedAt,
		})
	}
	return out, nil
}
