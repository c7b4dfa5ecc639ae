// Package wideevent records one structured event per logical unit of work and
// delivers it through a prioritized chain of transports: the primary backend,
// a direct analytics-store insert, and finally a bounded durable queue that is
// retried on the next process start.
package wideevent

import (
	"context"
	"encoding/json"
)

const (
	// DefaultEventType is the event type of a fresh or reset logger.
	DefaultEventType = "page_action"

	// EventTypePanic is set by Recover.
	EventTypePanic = "panic"

	// QueueKey is the local storage key holding undelivered events.
	QueueKey = "wide_events_queue"

	// DefaultQueueCapacity bounds the durable queue.
	DefaultQueueCapacity = 100

	// maxStackLen is the number of characters of a stack kept by LogError.
	maxStackLen = 500
)

// Attribute keys written by LogError, Recover and the click/submit helpers.
const (
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
	AttrErrorStack   = "error.stack"
	AttrFilename     = "filename"
	AttrLineno       = "lineno"
	AttrClick        = "click"
	AttrSubmit       = "submit"
)

// WideEvent is the unit of telemetry. A built event is never mutated.
type WideEvent struct {
	TraceID    string         `json:"trace_id"`
	EventType  string         `json:"event_type"`
	UserID     string         `json:"user_id"`
	DurationMs int64          `json:"duration_ms"`
	Error      bool           `json:"error"`
	Attributes map[string]any `json:"attributes"`
}

// AttributesJSON encodes the attributes map, using "{}" for an empty map.
func (e WideEvent) AttributesJSON() (string, error) {
	if len(e.Attributes) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(e.Attributes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sender delivers a single event and reports whether it was accepted.
type Sender interface {
	Send(ctx context.Context, event WideEvent) error
}

// Beaconer transmits an event without waiting for, or reacting to, the outcome.
type Beaconer interface {
	Beacon(event WideEvent)
}
