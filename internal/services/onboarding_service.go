package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/metrics"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

const (
	ActionSubmit     = "submit"
	DefaultSessionID = "default"
)

// ErrInvalidRequest marks a malformed client request.
var ErrInvalidRequest = errors.New("invalid request")

// SignalSource resolves detection signals for a user. Implementations never
// fail; they return empty signals instead.
type SignalSource interface {
	Signals(ctx context.Context, userID string) *onboarding.DetectedSignals
	TTL() time.Duration
}

// SubmitRequest is one answer for the step instance the client holds.
type SubmitRequest struct {
	Action     string          `json:"action"`
	UserID     string          `json:"userId"`
	SessionID  string          `json:"sessionId"`
	StepID     string          `json:"stepId"`
	InstanceID string          `json:"instanceId"`
	Nonce      string          `json:"nonce,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// View is what the client renders: the current step and everything needed
// to draw it. Submit and resync return the same shape.
type View struct {
	UserID         string                          `json:"userId"`
	SessionID      string                          `json:"sessionId"`
	CurrentStep    onboarding.StepID               `json:"currentStep"`
	StepInstance   onboarding.StepInstance         `json:"stepInstance"`
	StepConfig     *onboarding.ComponentDescriptor `json:"stepConfig"`
	Progress       onboarding.ProgressSummary      `json:"progress"`
	CompletedSteps []onboarding.StepID             `json:"completedSteps"`
	Complete       bool                            `json:"complete"`
	CompletedAt    *time.Time                      `json:"completedAt,omitempty"`
	Version        int64                           `json:"version"`
}

// CatalogEntry describes one step for clients and tooling.
type CatalogEntry struct {
	ID          onboarding.StepID        `json:"id"`
	Label       string                   `json:"label"`
	Component   onboarding.ComponentKind `json:"component"`
	SkipAllowed bool                     `json:"skipAllowed"`
	Requires    []onboarding.StepID      `json:"requires,omitempty"`
}

// OnboardingService drives the state machine against persistence. Requests
// for one session are serialized in-process; across processes the store's
// version check rejects the loser with store.ErrConflict.
type OnboardingService struct {
	machine *onboarding.Machine
	builder *onboarding.Builder
	states  store.StateStore
	answers store.AnswerLog
	signals SignalSource
	logger  *log.StructuredLogger
	locks   *keyedMutex
	now     func() time.Time
	newID   func() string
}

type Option func(*OnboardingService)

func WithAnswerLog(l store.AnswerLog) Option {
	return func(s *OnboardingService) { s.answers = l }
}

func WithSignals(src SignalSource) Option {
	return func(s *OnboardingService) { s.signals = src }
}

func WithBuilder(b *onboarding.Builder) Option {
	return func(s *OnboardingService) { s.builder = b }
}

func WithLogger(l *log.Logger) Option {
	return func(s *OnboardingService) { s.logger = log.NewStructuredLogger(l.WithComponent(log.ComponentOnboarding)) }
}

func WithClock(now func() time.Time) Option {
	return func(s *OnboardingService) { s.now = now }
}

// WithIDSource overrides how answer record ids are generated.
func WithIDSource(newID func() string) Option {
	return func(s *OnboardingService) { s.newID = newID }
}

func NewOnboardingService(machine *onboarding.Machine, states store.StateStore, opts ...Option) *OnboardingService {
	s := &OnboardingService{
		machine: machine,
		states:  states,
		logger:  log.NewStructuredLogger(log.Discard()),
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = onboarding.NewBuilder(machine.Catalog())
	}
	return s
}

// Catalog lists the steps in order.
func (s *OnboardingService) Catalog() []CatalogEntry {
	c := s.machine.Catalog()
	out := make([]CatalogEntry, 0, c.Len())
	for _, id := range c.StepOrder() {
		def, err := c.StepConfig(id)
		if err != nil {
			continue
		}
		out = append(out, CatalogEntry{
			ID:          def.ID,
			Label:       def.Label,
			Component:   def.Component,
			SkipAllowed: def.SkipAllowed,
			Requires:    def.RequiresPrevious,
		})
	}
	return out
}

// Current returns the session's view, creating the session on first use.
func (s *OnboardingService) Current(ctx context.Context, userID, sessionID string) (View, error) {
	sessionID = defaultSession(sessionID)
	if userID == "" {
		return View{}, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}

	unlock := s.locks.Lock(onboarding.Key{UserID: userID, SessionID: sessionID})
	defer unlock()

	state, err := s.states.Load(ctx, userID, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		state = s.machine.Start(userID, sessionID)
		state, _ = s.refreshSignals(ctx, state)
		saved, err := s.states.Save(ctx, state)
		if errors.Is(err, store.ErrConflict) {
			// Created concurrently by another process; use theirs.
			if state, err = s.states.Load(ctx, userID, sessionID); err != nil {
				return View{}, fmt.Errorf("load state: %w", err)
			}
			return s.view(state)
		}
		if err != nil {
			return View{}, fmt.Errorf("save state: %w", err)
		}
		s.logger.Logger().InfoContext(ctx, "Onboarding session started",
			log.FieldUserID, userID,
			log.FieldSessionID, sessionID,
			log.FieldStepID, string(saved.CurrentStep))
		return s.view(saved)
	case err != nil:
		return View{}, fmt.Errorf("load state: %w", err)
	}

	if refreshed, changed := s.refreshSignals(ctx, state); changed {
		saved, err := s.states.Save(ctx, refreshed)
		switch {
		case err == nil:
			state = saved
		case errors.Is(err, store.ErrConflict):
			// Keep the loaded state; the other writer's copy wins.
		default:
			return View{}, fmt.Errorf("save state: %w", err)
		}
	}
	return s.view(state)
}

// Submit validates the client's instance, advances the machine and persists
// the result. Errors are *onboarding.SyncError (resync), wrapped
// ErrInvalidRequest, *onboarding.TransitionError (the returned View then
// carries a fresh instance for the same step), store.ErrConflict, or an
// internal failure.
func (s *OnboardingService) Submit(ctx context.Context, req SubmitRequest) (View, error) {
	req.SessionID = defaultSession(req.SessionID)
	stepID, err := s.validateRequest(req)
	if err != nil {
		metrics.RecordSubmission(req.StepID, metrics.OutcomeBadRequest)
		return View{}, err
	}

	unlock := s.locks.Lock(onboarding.Key{UserID: req.UserID, SessionID: req.SessionID})
	defer unlock()

	state, err := s.states.Load(ctx, req.UserID, req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		// No session yet: the client must fetch one before answering.
		serr := &onboarding.SyncError{
			Kind:           onboarding.SyncStaleInstance,
			ExpectedStepID: s.machine.Catalog().Initial(),
			ReceivedStepID: stepID,
			Reason:         "no onboarding session; resync required",
		}
		s.reject(ctx, req, log.ErrorTypeOutOfSync, metrics.OutcomeOutOfSync, serr)
		return View{}, serr
	}
	if err != nil {
		metrics.RecordSubmission(string(stepID), metrics.OutcomeError)
		return View{}, fmt.Errorf("load state: %w", err)
	}

	if state.IsComplete() {
		// The terminal instance stays current after completion; answering it
		// again must not overwrite the final payload.
		serr := &onboarding.SyncError{
			Kind:           onboarding.SyncStaleInstance,
			ExpectedStepID: state.CurrentStep,
			ReceivedStepID: stepID,
			Reason:         "onboarding already completed; resync required",
		}
		s.reject(ctx, req, log.ErrorTypeOutOfSync, metrics.OutcomeOutOfSync, serr)
		return View{}, serr
	}

	received := onboarding.ReceivedInstance{StepID: stepID, InstanceID: req.InstanceID, Nonce: req.Nonce}
	if err := onboarding.ValidateStepInstance(state.CurrentInstance, received); err != nil {
		s.reject(ctx, req, log.ErrorTypeOutOfSync, metrics.OutcomeOutOfSync, err)
		return View{}, err
	}

	state, _ = s.refreshSignals(ctx, state)
	actx := onboarding.AdvanceContext{AccountsLinked: accountsLinked(state, stepID, req.Payload)}

	next, err := s.machine.Advance(state, req.Payload, actx)
	if err != nil {
		var te *onboarding.TransitionError
		if !errors.As(err, &te) {
			metrics.RecordSubmission(string(stepID), metrics.OutcomeError)
			return View{}, fmt.Errorf("advance: %w", err)
		}
		s.reject(ctx, req, log.ErrorTypeTransition, metrics.OutcomeInvalid, err)
		reissued, saveErr := s.states.Save(ctx, s.machine.Reissue(state))
		if saveErr != nil {
			if errors.Is(saveErr, store.ErrConflict) {
				return View{}, saveErr
			}
			return View{}, fmt.Errorf("save state: %w", saveErr)
		}
		view, viewErr := s.view(reissued)
		if viewErr != nil {
			return View{}, viewErr
		}
		return view, err
	}

	saved, err := s.states.Save(ctx, next)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.reject(ctx, req, log.ErrorTypeConflict, metrics.OutcomeConflict, err)
			return View{}, err
		}
		metrics.RecordSubmission(string(stepID), metrics.OutcomeError)
		return View{}, fmt.Errorf("save state: %w", err)
	}

	s.recordAnswer(ctx, req, stepID)
	s.recordSkipped(state.CurrentStep, saved.CurrentStep)

	outcome := metrics.OutcomeAdvanced
	if saved.IsComplete() {
		outcome = metrics.OutcomeCompleted
	}
	metrics.RecordSubmission(string(stepID), outcome)
	s.logger.LogStepAdvanced(ctx, req.UserID, req.SessionID, string(stepID), string(saved.CurrentStep), saved.Version)

	return s.view(saved)
}

// Reset deletes the session so the next Current starts over.
func (s *OnboardingService) Reset(ctx context.Context, userID, sessionID string) error {
	sessionID = defaultSession(sessionID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	unlock := s.locks.Lock(onboarding.Key{UserID: userID, SessionID: sessionID})
	defer unlock()

	if err := s.states.Delete(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	s.logger.Logger().InfoContext(ctx, "Onboarding session reset",
		log.FieldUserID, userID,
		log.FieldSessionID, sessionID)
	return nil
}

// Ready reports whether the state store is reachable.
func (s *OnboardingService) Ready(ctx context.Context) error {
	return s.states.Ping(ctx)
}

func (s *OnboardingService) validateRequest(req SubmitRequest) (onboarding.StepID, error) {
	if req.Action != "" && req.Action != ActionSubmit {
		return "", fmt.Errorf("%w: unsupported action %q", ErrInvalidRequest, req.Action)
	}
	if req.UserID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if req.InstanceID == "" {
		return "", fmt.Errorf("%w: instanceId is required", ErrInvalidRequest)
	}
	stepID, err := s.machine.Catalog().ParseStepID(req.StepID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		return "", fmt.Errorf("%w: payload is not valid JSON", ErrInvalidRequest)
	}
	return stepID, nil
}

// refreshSignals attaches fresh detection signals when the cached ones are
// missing or older than the source's TTL.
func (s *OnboardingService) refreshSignals(ctx context.Context, state onboarding.OnboardingState) (onboarding.OnboardingState, bool) {
	if s.signals == nil || state.IsComplete() {
		return state, false
	}
	if state.Detected.Fresh(s.now(), s.signals.TTL()) {
		return state, false
	}
	return state.WithDetected(s.signals.Signals(ctx, state.UserID)), true
}

// accountsLinked is true when detection saw a linked account or the user
// just confirmed (or earlier confirmed) a connection on the linking step.
func accountsLinked(state onboarding.OnboardingState, step onboarding.StepID, payload json.RawMessage) bool {
	if state.Detected != nil && state.Detected.AccountsLinked {
		return true
	}
	raw, ok := state.Payload(onboarding.StepAccountLinking)
	if step == onboarding.StepAccountLinking {
		raw, ok = payload, true
	}
	if !ok {
		return false
	}
	var answer struct {
		Linked bool `json:"linked"`
	}
	return json.Unmarshal(raw, &answer) == nil && answer.Linked
}

func (s *OnboardingService) recordAnswer(ctx context.Context, req SubmitRequest, stepID onboarding.StepID) {
	if s.answers == nil {
		return
	}
	rec := store.AnswerRecord{
		ID:         s.newID(),
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		StepID:     stepID,
		Answer:     req.Payload,
		RecordedAt: s.now().UTC(),
	}
	if err := s.answers.Record(ctx, rec); err != nil {
		// The state is already committed; the audit trail is best effort.
		s.logger.LogError(ctx, "Failed to record answer", err, log.ComponentAnswerLog, log.OpRecord,
			log.NewFields().WithSession(req.UserID, req.SessionID).WithStep(string(stepID), ""))
	}
}

func (s *OnboardingService) recordSkipped(from, to onboarding.StepID) {
	c := s.machine.Catalog()
	i, ok1 := c.Index(from)
	j, ok2 := c.Index(to)
	if !ok1 || !ok2 {
		return
	}
	order := c.StepOrder()
	for k := i + 1; k < j; k++ {
		metrics.RecordSkipped(string(order[k]))
	}
}

func (s *OnboardingService) reject(ctx context.Context, req SubmitRequest, errorType, outcome string, err error) {
	metrics.RecordSubmission(req.StepID, outcome)
	s.logger.LogRejected(ctx, req.UserID, req.SessionID, req.StepID, errorType, err)
}

func (s *OnboardingService) view(state onboarding.OnboardingState) (View, error) {
	progress, err := s.machine.Progress(state)
	if err != nil {
		return View{}, fmt.Errorf("progress: %w", err)
	}
	completed := state.CompletedSteps
	if completed == nil {
		completed = []onboarding.StepID{}
	}
	return View{
		UserID:         state.UserID,
		SessionID:      state.SessionID,
		CurrentStep:    state.CurrentStep,
		StepInstance:   state.CurrentInstance,
		StepConfig:     s.builder.Build(state, state.Detected),
		Progress:       progress,
		CompletedSteps: completed,
		Complete:       state.IsComplete(),
		CompletedAt:    state.CompletedAt,
		Version:        state.Version,
	}, nil
}

func defaultSession(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}
