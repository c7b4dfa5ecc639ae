package wideevent

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "docledger/internal/log"
)

// Logger accumulates one wide event. All methods are safe for concurrent use
// and never panic, including on a nil *Logger.
type Logger struct {
	client *Client

	mu         sync.Mutex
	traceID    string
	start      time.Time
	userID     string
	eventType  string
	attributes map[string]any
	hasError   bool
}

// TraceID returns the trace id of the current lifecycle.
func (l *Logger) TraceID() string {
	if l == nil {
		return ""
	}
	var id string
	l.guard("trace_id", func() {
		l.mu.Lock()
		id = l.traceID
		l.mu.Unlock()
	})
	return id
}

// Traceparent returns a traceparent header value with a fresh span id on
// every call.
func (l *Logger) Traceparent() string {
	if l == nil {
		return ""
	}
	var tp string
	l.guard("traceparent", func() {
		traceID := l.TraceID()
		tp = FormatTraceparent(traceID, newSpanID(l.client.random, l.client.now()))
	})
	return tp
}

func (l *Logger) SetUser(userID string) {
	l.mutate("set_user", func() { l.userID = userID })
}

func (l *Logger) SetEventType(eventType string) {
	l.mutate("set_event_type", func() { l.eventType = eventType })
}

// Log sets key to value; a repeated key overwrites the earlier value.
func (l *Logger) Log(key string, value any) {
	l.mutate("log", func() { l.attributes[key] = value })
}

func (l *Logger) LogClick(target string) {
	l.Log(AttrClick, target)
}

func (l *Logger) LogSubmit(form string) {
	l.Log(AttrSubmit, form)
}

// LogError marks the event as failed for the rest of the lifecycle and records
// the error's type, message and a stack of at most 500 characters. The stack
// is the one carried by err or anything it wraps, otherwise the stack of the
// LogError call. A nil error is ignored.
func (l *Logger) LogError(err error) {
	if err == nil {
		return
	}
	site := callers(1)
	l.mutate("log_error", func() {
		l.recordErrorLocked(errorTypeName(err), err.Error(), errorStack(err, site))
	})
}

// Recover turns a panic in progress into a failed event of type EventTypePanic,
// flushes it and panics again with the same value. It must be deferred
// directly:
//
//	defer l.Recover(ctx)
func (l *Logger) Recover(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	l.recordPanic(ctx, r, panicSite(callers(0)))
	panic(r)
}

func (l *Logger) recordPanic(ctx context.Context, r any, site []runtime.Frame) {
	if l.detached() {
		return
	}
	l.mutate("recover", func() {
		typeName, msg := "panic", fmt.Sprint(r)
		if err, ok := r.(error); ok {
			typeName, msg = errorTypeName(err), err.Error()
		}
		l.eventType = EventTypePanic
		l.recordErrorLocked(typeName, msg, formatFrames(site))
		if len(site) > 0 {
			l.attributes[AttrFilename] = site[0].File
			l.attributes[AttrLineno] = site[0].Line
		}
	})
	l.Flush(ctx)
}

func (l *Logger) recordErrorLocked(typeName, msg, stack string) {
	l.hasError = true
	l.attributes[AttrErrorType] = typeName
	l.attributes[AttrErrorMessage] = msg
	l.attributes[AttrErrorStack] = truncate(stack, maxStackLen)
}

// Flush builds the event and delivers it, returning after the event was
// accepted by a transport or queued.
func (l *Logger) Flush(ctx context.Context) {
	if l.detached() {
		return
	}
	l.client.untrack(l)
	if !l.guard(applog.OpFlush, func() { l.client.deliver(ctx, l.build()) }) {
		l.guard(applog.OpEnqueue, func() { l.client.enqueue(ctx, l.build()) })
	}
}

// FlushAsync snapshots the event now and delivers it in the background. The
// returned channel is closed once delivery was attempted.
func (l *Logger) FlushAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if l.detached() {
		close(done)
		return done
	}
	l.client.untrack(l)

	var event WideEvent
	if !l.guard(applog.OpFlush, func() { event = l.build() }) {
		close(done)
		return done
	}

	c := l.client
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		if !guard(c.logger, applog.OpFlush, func() { c.deliver(ctx, event) }) {
			guard(c.logger, applog.OpEnqueue, func() { c.enqueue(ctx, event) })
		}
	}()
	return done
}

// FlushAndReset flushes in the background and immediately starts a new lifecycle.
func (l *Logger) FlushAndReset(ctx context.Context) <-chan struct{} {
	done := l.FlushAsync(ctx)
	l.Reset()
	return done
}

// Beacon hands the event to the fire-and-forget transport used at shutdown.
// There is no fallback: without a beacon transport, or once the beacon was
// issued, the outcome is never looked at.
func (l *Logger) Beacon() {
	if l.detached() {
		return
	}
	l.client.untrack(l)
	if l.client.beacon == nil {
		l.client.logger.Debug("Dropped wide event, no beacon transport",
			applog.FieldOperation, applog.OpBeacon,
			applog.FieldTraceID, l.TraceID())
		return
	}
	l.guard(applog.OpBeacon, func() { l.client.beacon.Beacon(l.build()) })
}

// Discard ends the current lifecycle without sending it. The Client stops
// holding the logger for Unload until the next Reset.
func (l *Logger) Discard() {
	if l.detached() {
		return
	}
	l.client.untrack(l)
}

// Reset starts a new lifecycle: new trace id, restarted timer, default event
// type, no attributes, no error. The user id is kept. Reset does not flush.
func (l *Logger) Reset() {
	if l == nil {
		return
	}
	l.guard("reset", func() {
		func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.resetLocked()
		}()
		l.client.track(l)
	})
}

func (l *Logger) resetLocked() {
	now := l.client.now()
	l.traceID = newID(l.client.random, now)
	l.start = now
	l.eventType = DefaultEventType
	l.attributes = make(map[string]any)
	l.hasError = false
}

func (l *Logger) build() WideEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	duration := l.client.now().Sub(l.start).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return WideEvent{
		TraceID:    l.traceID,
		EventType:  l.eventType,
		UserID:     l.userID,
		DurationMs: duration,
		Error:      l.hasError,
		Attributes: maps.Clone(l.attributes),
	}
}

func (l *Logger) mutate(op string, fn func()) {
	if l == nil {
		return
	}
	l.guard(op, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		fn()
	})
}

// detached reports a nil or zero Logger that was not created by a Client.
func (l *Logger) detached() bool {
	return l == nil || l.client == nil
}

func (l *Logger) guard(op string, fn func()) bool {
	var logger *applog.Logger
	if l.client != nil {
		logger = l.client.logger
	}
	return guard(logger, op, fn)
}

func errorTypeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func errorStack(err error, site []runtime.Frame) string {
	if stack, ok := carriedStack(err); ok {
		return stack
	}
	return formatFrames(site)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
