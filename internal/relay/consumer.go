package relay

import (
	"context"
	"fmt"
	"time"

	"docledger/internal/amqp"
	applog "docledger/internal/log"
	"docledger/internal/wideevent"
)

// Consumer writes queued events to the analytics store.
type Consumer struct {
	sink   wideevent.Sender
	logger *applog.Logger
}

func NewConsumer(sink wideevent.Sender, logger *applog.Logger) *Consumer {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Consumer{sink: sink, logger: logger.WithComponent(applog.ComponentAMQP)}
}

// HandleEventMessage inserts one event. An error makes the broker redeliver it.
func (c *Consumer) HandleEventMessage(ctx context.Context, msg *amqp.EventMessage) error {
	if err := c.sink.Send(ctx, msg.Event); err != nil {
		return fmt.Errorf("insert event %s: %w", msg.Event.TraceID, err)
	}

	c.logger.DebugContext(ctx, "Inserted queued wide event",
		applog.FieldTraceID, msg.Event.TraceID,
		applog.FieldEventType, msg.Event.EventType,
		applog.FieldTraceparent, msg.Traceparent,
		applog.FieldOperation, applog.OpConsume,
		"queued_for_ms", time.Since(msg.ReceivedAt).Milliseconds())
	return nil
}
