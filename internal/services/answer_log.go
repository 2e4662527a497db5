package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devintruefi/91825truefi-sub000/internal/amqp"
	"github.com/devintruefi/91825truefi-sub000/internal/metrics"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

// Publisher sends answers to the queue consumed by the answer-log worker.
type Publisher interface {
	PublishAnswerRecorded(ctx context.Context, msg *amqp.AnswerRecordedMessage) error
}

// AnswerRecorder is the AnswerLog used by the service. With a publisher it
// queues answers and only writes directly when publishing fails; without
// one it writes straight to the direct log.
type AnswerRecorder struct {
	publisher Publisher
	direct    store.AnswerLog
}

var _ store.AnswerLog = (*AnswerRecorder)(nil)

func NewAnswerRecorder(publisher Publisher, direct store.AnswerLog) *AnswerRecorder {
	return &AnswerRecorder{publisher: publisher, direct: direct}
}

func (r *AnswerRecorder) Record(ctx context.Context, rec store.AnswerRecord) error {
	if r.publisher != nil {
		err := r.publisher.PublishAnswerRecorded(ctx, amqp.NewAnswerRecordedMessage(rec))
		if err == nil {
			metrics.RecordAnswer("queued", "success")
			return nil
		}
		metrics.RecordAnswer("queued", "error")
		slog.WarnContext(ctx, "Failed to queue answer, writing directly",
			"id", rec.ID,
			"step_id", rec.StepID,
			"error", err)
	}

	if r.direct == nil {
		return errors.New("no answer log configured")
	}
	if err := r.direct.Record(ctx, rec); err != nil {
		metrics.RecordAnswer("direct", "error")
		return fmt.Errorf("record answer: %w", err)
	}
	metrics.RecordAnswer("direct", "success")
	return nil
}
