package amqp

import (
	"encoding/json"
	"time"

	"docledger/internal/wideevent"
)

// EventMessage carries one accepted wide event from the relay's HTTP handler
// to the analytics consumer.
type EventMessage struct {
	Event       wideevent.WideEvent `json:"event"`
	Traceparent string              `json:"traceparent,omitempty"`
	ReceivedAt  time.Time           `json:"received_at"`
}

// NewEventMessage wraps event, stamping the receive time
func NewEventMessage(event wideevent.WideEvent, traceparent string) *EventMessage {
	return &EventMessage{
		Event:       event,
		Traceparent: traceparent,
		ReceivedAt:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
