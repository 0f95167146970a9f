package queue

import (
	"encoding/json"
	"time"
)

const (
	EvaluationQueue = "evaluation"
	ReportQueue     = "report"
)

// Job is the unit stored in Redis. Attempt counts attempts already started.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	BackoffMs   int64           `json:"backoffMs"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	LastError   string          `json:"lastError,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

type EnqueueOptions struct {
	MaxAttempts int
	Backoff     time.Duration
}

type EvaluationPayload struct {
	AnswerID     uint   `json:"answerId"`
	SessionID    uint   `json:"sessionId"`
	QuestionType string `json:"questionType"`
}

type ReportPayload struct {
	SessionID uint `json:"sessionId"`
}
