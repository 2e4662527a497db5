// Package worker drains the answer queue into the durable answer log.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devintruefi/91825truefi-sub000/internal/amqp"
	"github.com/devintruefi/91825truefi-sub000/internal/metrics"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

// Consumer delivers queued answer messages to a handler until ctx ends.
type Consumer interface {
	ConsumeAnswers(ctx context.Context, handler func(context.Context, *amqp.AnswerRecordedMessage) error) error
}

// AnswerWorker writes queued answers to an AnswerLog. The log ignores
// duplicate ids, so redelivered messages are safe to process again.
type AnswerWorker struct {
	log store.AnswerLog
}

func NewAnswerWorker(log store.AnswerLog) *AnswerWorker {
	return &AnswerWorker{log: log}
}

// HandleAnswerMessage records a single queued answer.
func (w *AnswerWorker) HandleAnswerMessage(ctx context.Context, msg *amqp.AnswerRecordedMessage) error {
	if err := w.log.Record(ctx, msg.Record()); err != nil {
		metrics.RecordAnswer("worker", "error")
		return fmt.Errorf("record answer %s: %w", msg.ID, err)
	}
	metrics.RecordAnswer("worker", "success")

	slog.InfoContext(ctx, "Answer recorded",
		"id", msg.ID,
		"user_id", msg.UserID,
		"session_id", msg.SessionID,
		"step_id", msg.StepID)
	return nil
}

// Run consumes until ctx is cancelled. Cancellation is a clean stop.
func (w *AnswerWorker) Run(ctx context.Context, c Consumer) error {
	err := c.ConsumeAnswers(ctx, w.HandleAnswerMessage)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
