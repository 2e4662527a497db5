package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

// AnswerRecordedMessage carries one accepted answer to the answer-log worker.
// ID doubles as the AMQP message id so redeliveries can be deduplicated.
type AnswerRecordedMessage struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	SessionID  string          `json:"sessionId"`
	StepID     string          `json:"stepId"`
	Answer     json.RawMessage `json:"answer"`
	RecordedAt time.Time       `json:"recordedAt"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewAnswerRecordedMessage(rec store.AnswerRecord) *AnswerRecordedMessage {
	return &AnswerRecordedMessage{
		ID:         rec.ID,
		UserID:     rec.UserID,
		SessionID:  rec.SessionID,
		StepID:     string(rec.StepID),
		Answer:     rec.Answer,
		RecordedAt: rec.RecordedAt,
		Timestamp:  time.Now(),
	}
}

// Record converts the message back into an answer record.
func (m *AnswerRecordedMessage) Record() store.AnswerRecord {
	return store.AnswerRecord{
		ID:         m.ID,
		UserID:     m.UserID,
		SessionID:  m.SessionID,
		StepID:     onboarding.StepID(m.StepID),
		Answer:     m.Answer,
		RecordedAt: m.RecordedAt,
	}
}

func (m *AnswerRecordedMessage) Validate() error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if m.UserID == "" || m.SessionID == "" {
		return errors.New("user and session ids are required")
	}
	if m.StepID == "" {
		return errors.New("step id is required")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *AnswerRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnswerRecordedMessageFromJSON(data []byte) (*AnswerRecordedMessage, error) {
	var msg AnswerRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
