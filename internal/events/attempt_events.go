package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptFinished EventType = "attempt.finished"
)

// AttemptEvent is the envelope placed on the attempt events topic.
type AttemptEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// AttemptFinishedEvent notifies downstream consumers (recruiting dashboards,
// notification pipelines) that an attempt reached its terminal state.
type AttemptFinishedEvent struct {
	Token           string     `json:"token"`
	ExamKey         string     `json:"exam_key"`
	CandidateID     uint       `json:"candidate_id"`
	Percentage      int        `json:"percentage"`
	Recommend       bool       `json:"recommend"`
	ForceCollected  bool       `json:"force_collected"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
}

// NewAttemptFinishedEvent wraps the payload in a fresh envelope.
func NewAttemptFinishedEvent(data AttemptFinishedEvent) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.New().String(),
		Type:      EventAttemptFinished,
		Source:    "attempt-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
