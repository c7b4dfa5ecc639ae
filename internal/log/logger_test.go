package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentWideEvent)

	logger.Warn("queued event for retry", FieldTraceID, "abc")

	out := buf.String()
	if !strings.Contains(out, "component=wide_event") {
		t.Errorf("expected component in output, got %q", out)
	}
	if !strings.Contains(out, "trace_id=abc") {
		t.Errorf("expected trace_id in output, got %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentApp).WithComponent(ComponentRelay)

	if logger.Component() != ComponentRelay {
		t.Errorf("Component() = %q, want %q", logger.Component(), ComponentRelay)
	}
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithEvent("t1", "page_view", "").
		WithError(errors.New("boom")).
		WithOperation(OpFlush)

	if fields[FieldTraceID] != "t1" || fields[FieldEventType] != "page_view" {
		t.Errorf("unexpected event fields: %v", fields)
	}
	if _, ok := fields[FieldUserID]; ok {
		t.Errorf("empty user id should not be recorded: %v", fields)
	}
	if fields[FieldError] != "boom" {
		t.Errorf("error field = %v, want boom", fields[FieldError])
	}
	if got := len(fields.ToSlice()); got != 2*len(fields) {
		t.Errorf("ToSlice() length = %d, want %d", got, 2*len(fields))
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Errorf("FromContext() did not return the middleware logger")
	}
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Errorf("FromContext() without logger should fall back to the app component")
	}
}

func TestLogEventIngested(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentRelay))

	sl.LogEventIngested(context.Background(), "t1", "page_view", "u-42", 12, false)

	out := buf.String()
	for _, want := range []string{"trace_id=t1", "event_type=page_view", "user_id=u-42", "operation=ingest"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentStorage})

	logger.Debug("opened store", "backend", "sqlite")

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"component":"storage"`) {
		t.Errorf("expected JSON record with component, got %q", out)
	}
	if strings.Count(out, `"component"`) != 1 {
		t.Errorf("component should appear once, got %q", out)
	}
}

func TestNewDefaultsComponent(t *testing.T) {
	if got := New(Config{Output: &bytes.Buffer{}}).Component(); got != ComponentApp {
		t.Errorf("Component() = %q, want %q", got, ComponentApp)
	}
	Discard().Info("dropped")
}

func TestRequestFieldsTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentRelay)
	sl := NewStructuredLogger(base)

	h := Middleware(base)(RequestFields(func(r *http.Request) (string, string) {
		return "req_1", r.Header.Get("X-Trace")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sl.LogEventRejected(r.Context(), "t9", "page_view", "", errors.New("broker down"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	req.Header.Set("X-Trace", "t9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"request_id=req_1", "trace_id=t9", "component=relay", `error="broker down"`, "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/events", nil))
	if strings.Count(buf.String(), "trace_id=") != 1 {
		t.Errorf("trace_id should only come from the event when the request has none: %q", buf.String())
	}
}
