package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"docledger/internal/wideevent"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no shift overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "amqp closed", err: fmt.Errorf("publish: %w", amqp091.ErrClosed), expected: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: true},
		{name: "message channel closed", err: errors.New("message channel closed"), expected: true},
		{name: "EOF error", err: errors.New("unexpected EOF"), expected: true},
		{name: "broken pipe error", err: errors.New("write: broken pipe"), expected: true},
		{name: "context canceled", err: context.Canceled, expected: false},
		{name: "validation error", err: errors.New("invalid input"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestEventMessageJSON(t *testing.T) {
	msg := NewEventMessage(wideevent.WideEvent{
		TraceID:    "abc",
		EventType:  "page_view",
		UserID:     "u-42",
		DurationMs: 7,
		Attributes: map[string]any{"path": "/documents"},
	}, "00-abc-0123456789abcdef-01")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := EventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("EventMessageFromJSON: %v", err)
	}
	if got.Event.TraceID != "abc" || got.Event.Attributes["path"] != "/documents" {
		t.Errorf("decoded event = %+v", got.Event)
	}
	if got.Traceparent != msg.Traceparent {
		t.Errorf("traceparent = %q", got.Traceparent)
	}

	if _, err := EventMessageFromJSON([]byte("{")); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestPublishWithoutChannel(t *testing.T) {
	c := &Client{exchangeName: "x", queueName: "q"}
	err := c.PublishEvent(context.Background(), NewEventMessage(wideevent.WideEvent{TraceID: "a"}, ""))
	if err == nil {
		t.Fatal("expected error without a channel")
	}
	if !isConnectionError(err) {
		t.Errorf("error %v should be treated as a connection error", err)
	}
}
