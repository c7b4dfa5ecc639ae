package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldTraceID     = "trace_id"
	FieldTraceparent = "traceparent"
	FieldEventType   = "event_type"
	FieldUserID      = "user_id"
	FieldTransport   = "transport"
	FieldQueueLength = "queue_length"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWideEvent = "wide_event"
	ComponentTransport = "transport"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRelay     = "relay"
)

// Operations defines standard operation names
const (
	OpFlush    = "flush"
	OpBeacon   = "beacon"
	OpEnqueue  = "enqueue"
	OpRetry    = "retry"
	OpIngest   = "ingest"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEvent adds wide event identification fields
func (f LogFields) WithEvent(traceID, eventType, userID string) LogFields {
	f[FieldTraceID] = traceID
	f[FieldEventType] = eventType
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}