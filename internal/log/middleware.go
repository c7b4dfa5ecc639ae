package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// Middleware puts logger in each request context for handlers to pick up
// with FromContext.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or an app logger on the slog
// default handler when ctx has none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// RequestFields tags the request logger with the request id and, when the
// caller sent a traceparent, the wide event's trace id.
func RequestFields(extract func(*http.Request) (requestID, traceID string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID, traceID := extract(r)
			args := []any{FieldRequestID, requestID}
			if traceID != "" {
				args = append(args, FieldTraceID, traceID)
			}
			logger := FromContext(r.Context()).With(args...)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the relay's ingest records. Records go to the
// request logger when ctx has one, so they carry the request fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) target(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger.WithComponent(sl.logger.component)
	}
	return sl.logger
}

// LogEventIngested records a wide event accepted by the relay.
func (sl *StructuredLogger) LogEventIngested(ctx context.Context, traceID, eventType, userID string, durationMs int64, hadError bool) {
	fields := NewFields().
		WithEvent(traceID, eventType, userID).
		WithOperation(OpIngest).
		ToSlice()
	fields = append(fields, "event_duration_ms", durationMs, "event_error", hadError)

	sl.target(ctx).InfoContext(ctx, "Wide event ingested", fields...)
}

// LogEventRejected records a wide event the relay could not hand to its sink.
func (sl *StructuredLogger) LogEventRejected(ctx context.Context, traceID, eventType, userID string, err error) {
	fields := NewFields().
		WithEvent(traceID, eventType, userID).
		WithOperation(OpIngest).
		WithError(err)

	sl.target(ctx).ErrorContext(ctx, "Failed to forward wide event", fields.ToSlice()...)
}
