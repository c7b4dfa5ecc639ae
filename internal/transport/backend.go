package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	applog "docledger/internal/log"
	"docledger/internal/wideevent"
)

// EventsPath is appended to the API base URL for event delivery.
const EventsPath = "/events"

// Backend delivers events to the primary API. It is both the primary Sender
// and the shutdown Beaconer.
type Backend struct {
	url    string
	client *http.Client
	tokens TokenSource
	logger *applog.Logger
}

// NewBackend targets {apiBase}/events. tokens may be nil.
func NewBackend(apiBase string, client *http.Client, tokens TokenSource, logger *applog.Logger) *Backend {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Backend{
		url:    joinURL(apiBase, EventsPath),
		client: client,
		tokens: tokens,
		logger: logger.WithComponent(applog.ComponentTransport),
	}
}

// Send implements wideevent.Sender.
func (b *Backend) Send(ctx context.Context, event wideevent.WideEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.tokens != nil {
		if token := b.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return do(b.client, req, "backend")
}

// Beacon implements wideevent.Beaconer: a single detached POST whose outcome
// is never inspected. No credentials are attached.
func (b *Backend) Beacon(event wideevent.WideEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	go func() {
		req, err := http.NewRequest(http.MethodPost, b.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if err := do(b.client, req, "beacon"); err != nil {
			b.logger.Debug("Beacon not delivered",
				applog.FieldTraceID, event.TraceID,
				applog.FieldError, err)
		}
	}()
}
