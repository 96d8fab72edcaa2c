package pipeline

import (
	"context"
	"encoding/json"
)

// EventKind classifies a streamed job event.
type EventKind string

const (
	EventProgress       EventKind = "progress"
	EventReviewRequired EventKind = "review-required"
	EventComplete       EventKind = "complete"
	EventError          EventKind = "error"
)

// Event is one entry of a job's streamed event feed. It mirrors the progress
// log: the stream is a view over persisted entries, not the source of truth.
type Event struct {
	JobID      int64           `json:"jobId"`
	Kind       EventKind       `json:"kind"`
	Step       string          `json:"step,omitempty"`
	StepStatus string          `json:"stepStatus,omitempty"`
	Message    string          `json:"message,omitempty"`
	Progress   int             `json:"progress"`
	JobStatus  Status          `json:"jobStatus"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Notifier relays job events toward stream subscribers. Implementations must
// not block; delivery is best effort since the progress log is authoritative.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
