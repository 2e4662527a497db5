// Package redis provides a Redis-backed state store and answer log.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

const (
	defaultTTL    = 30 * 24 * time.Hour
	defaultPrefix = "onboarding:"
)

// Store keeps each OnboardingState as a JSON document under
// <prefix>state:<user>:<session> and uses WATCH for optimistic saves.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var (
	_ store.StateStore    = (*Store)(nil)
	_ store.AnswerLog     = (*Store)(nil)
	_ store.AnswerReader  = (*Store)(nil)
	_ store.SessionLister = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long an untouched session is kept. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) stateKey(userID, sessionID string) string {
	return fmt.Sprintf("%sstate:%s:%s", s.prefix, userID, sessionID)
}

func (s *Store) sessionsKey(userID string) string {
	return fmt.Sprintf("%ssessions:%s", s.prefix, userID)
}

func (s *Store) answersKey(userID, sessionID string) string {
	return fmt.Sprintf("%sanswers:%s:%s", s.prefix, userID, sessionID)
}

func (s *Store) answerIDsKey(userID, sessionID string) string {
	return fmt.Sprintf("%sanswer_ids:%s:%s", s.prefix, userID, sessionID)
}

func (s *Store) Load(ctx context.Context, userID, sessionID string) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}
	data, err := s.client.Get(ctx, s.stateKey(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return onboarding.OnboardingState{}, store.ErrNotFound
		}
		return onboarding.OnboardingState{}, fmt.Errorf("redis get failed: %w", err)
	}
	var st onboarding.OnboardingState
	if err := json.Unmarshal(data, &st); err != nil {
		return onboarding.OnboardingState{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return st, nil
}

// Save writes state if the stored version still equals state.Version. The
// read-compare-write runs inside WATCH/MULTI so a concurrent writer makes
// the transaction fail with ErrConflict.
func (s *Store) Save(ctx context.Context, state onboarding.OnboardingState) (onboarding.OnboardingState, error) {
	if err := store.ValidateKey(state.UserID, state.SessionID); err != nil {
		return onboarding.OnboardingState{}, err
	}
	key := s.stateKey(state.UserID, state.SessionID)
	var saved onboarding.OnboardingState

	txf := func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get failed: %w", err)
		default:
			var existing struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal state: %w", err)
			}
			current = existing.Version
		}
		if state.Version != current {
			return store.ErrConflict
		}

		saved = state.Clone()
		saved.Version = current + 1
		payload, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			idx := s.sessionsKey(state.UserID)
			pipe.SAdd(ctx, idx, state.SessionID)
			if s.ttl > 0 {
				pipe.Expire(ctx, idx, s.ttl)
			}
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return onboarding.OnboardingState{}, store.ErrConflict
		}
		if errors.Is(err, store.ErrConflict) {
			return onboarding.OnboardingState{}, err
		}
		return onboarding.OnboardingState{}, fmt.Errorf("redis save failed: %w", err)
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	if err := store.ValidateKey(userID, sessionID); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	delCmd := pipe.Del(ctx, s.stateKey(userID, sessionID))
	pipe.SRem(ctx, s.sessionsKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if delCmd.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Sessions lists the session ids stored for a user.
func (s *Store) Sessions(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.sessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// recordScript pushes an answer and marks its ID as seen in one atomic step.
// The ID is added only after the push succeeds, so a failed push leaves the
// record retryable.
var recordScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// Record appends rec to the session's answer list. Records whose ID was
// already seen are dropped.
func (s *Store) Record(ctx context.Context, rec store.AnswerRecord) error {
	if err := store.ValidateKey(rec.UserID, rec.SessionID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	answersKey := s.answersKey(rec.UserID, rec.SessionID)
	if rec.ID == "" {
		if err := s.client.RPush(ctx, answersKey, data).Err(); err != nil {
			return fmt.Errorf("redis rpush failed: %w", err)
		}
		return nil
	}
	keys := []string{s.answerIDsKey(rec.UserID, rec.SessionID), answersKey}
	if err := recordScript.Run(ctx, s.client, keys, rec.ID, data).Err(); err != nil {
		return fmt.Errorf("redis record answer failed: %w", err)
	}
	return nil
}

func (s *Store) ListAnswers(ctx context.Context, userID, sessionID string) ([]store.AnswerRecord, error) {
	raw, err := s.client.LRange(ctx, s.answersKey(userID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	out := make([]store.AnswerRecord, 0, len(raw))
	for _, item := range raw {
		var rec store.AnswerRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answer: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
