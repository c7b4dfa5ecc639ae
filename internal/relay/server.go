// Package relay is the receiving side of the wide event pipeline. It accepts
// events and web-vitals samples over HTTP and forwards events to the
// analytics store, either directly or through an AMQP queue.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"docledger/internal/amqp"
	applog "docledger/internal/log"
	"docledger/internal/middleware/trace"
	"docledger/internal/transport"
	"docledger/internal/wideevent"
)

const (
	// Routes match the client's API base URL of "<host>/api".
	EventsRoute  = "/api" + transport.EventsPath
	VitalsRoute  = "/api" + transport.VitalsPath
	maxBodyBytes = 1 << 20
)

// Publisher queues accepted events for asynchronous ingestion.
type Publisher interface {
	PublishEvent(ctx context.Context, msg *amqp.EventMessage) error
}

type Server struct {
	http.Server
	publisher  Publisher
	sink       wideevent.Sender
	logger     *applog.Logger
	structured *applog.StructuredLogger
	trace      *trace.Middleware
}

// NewServer builds the relay. When publisher is nil accepted events are
// written to sink inline.
func NewServer(addr string, publisher Publisher, sink wideevent.Sender, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentRelay)

	s := &Server{
		publisher:  publisher,
		sink:       sink,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
		trace:      trace.NewMiddleware(clientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+EventsRoute, s.handleEvent)
	mux.HandleFunc("POST "+VitalsRoute, s.handleVitals)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           applog.Middleware(logger)(s.trace.Middleware(requestLogger(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event wideevent.WideEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if strings.TrimSpace(event.TraceID) == "" {
		writeError(w, http.StatusBadRequest, "trace_id is required")
		return
	}
	if strings.TrimSpace(event.EventType) == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	if err := s.forward(ctx, event, r.Header.Get(transport.TraceparentHeader)); err != nil {
		s.structured.LogEventRejected(ctx, event.TraceID, event.EventType, event.UserID, err)
		writeError(w, http.StatusServiceUnavailable, "event sink unavailable")
		return
	}

	s.structured.LogEventIngested(ctx, event.TraceID, event.EventType, event.UserID, event.DurationMs, event.Error)
	writeJSON(w, http.StatusAccepted, map[string]string{"trace_id": event.TraceID})
}

func (s *Server) forward(ctx context.Context, event wideevent.WideEvent, traceparent string) error {
	if s.publisher != nil {
		return s.publisher.PublishEvent(ctx, amqp.NewEventMessage(event, traceparent))
	}
	if s.sink == nil {
		return errors.New("no event sink configured")
	}
	return s.sink.Send(ctx, event)
}

func (s *Server) handleVitals(w http.ResponseWriter, r *http.Request) {
	var m transport.Metric
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&m); err != nil || m.Metric == "" {
		writeError(w, http.StatusBadRequest, "invalid metric body")
		return
	}

	s.logger.InfoContext(r.Context(), "Web vital reported",
		"metric", m.Metric,
		"value", m.Value,
		"page", m.Page,
		applog.FieldTraceID, trace.GetTraceID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.publisher == nil && s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "no event sink configured")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

// Metrics exposes the request counters of the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.GetMetrics()
}

// requestLogger tags the context logger with the ids the trace middleware found.
func requestLogger(next http.Handler) http.Handler {
	return applog.RequestFields(func(r *http.Request) (string, string) {
		return trace.GetRequestID(r.Context()), trace.GetTraceID(r.Context())
	})(next)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
