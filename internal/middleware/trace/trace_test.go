package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantTrace string
		wantSpan  string
		wantOK    bool
	}{
		{
			name:      "hex ids",
			header:    "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTrace: "4bf92f3577b34da6a3ce929d0e0e4736",
			wantSpan:  "00f067aa0ba902b7",
			wantOK:    true,
		},
		{
			name:      "base-36 fallback ids",
			header:    "00-k3j2h1g0mzlr8q2x-k3j2h1g0mzlr8q2x-01",
			wantTrace: "k3j2h1g0mzlr8q2x",
			wantSpan:  "k3j2h1g0mzlr8q2x",
			wantOK:    true,
		},
		{name: "empty", header: "", wantOK: false},
		{name: "wrong version", header: "01-abc-def-01", wantOK: false},
		{name: "too few parts", header: "00-abc-01", wantOK: false},
		{name: "uppercase", header: "00-ABC-def-01", wantOK: false},
		{name: "bad flags", header: "00-abc-def-1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traceID, spanID, ok := ParseTraceparent(tt.header)
			if ok != tt.wantOK || traceID != tt.wantTrace || spanID != tt.wantSpan {
				t.Errorf("ParseTraceparent(%q) = %q, %q, %v; want %q, %q, %v",
					tt.header, traceID, spanID, ok, tt.wantTrace, tt.wantSpan, tt.wantOK)
			}
		})
	}
}

func TestMiddlewareStoresIDs(t *testing.T) {
	m := NewMiddleware(func(r *http.Request) string { return "127.0.0.1" })

	var requestID, traceID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		traceID = GetTraceID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rr.Code)
	}
	if !strings.HasPrefix(requestID, "req_") {
		t.Errorf("request id = %q", requestID)
	}
	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %q", traceID)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	metrics := m.GetMetrics()
	if metrics.TotalRequests != 2 || metrics.TracedRequests != 1 {
		t.Errorf("metrics = %+v, want 2 total and 1 traced", metrics)
	}
}
