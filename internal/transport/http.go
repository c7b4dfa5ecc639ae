// Package transport implements the HTTP senders behind the wide event
// delivery chain.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docledger/internal/storage"
)

// TokenKey is the local storage key of the session bearer token.
const TokenKey = "token"

// NewHTTPClient returns the client shared by all senders. A zero timeout
// leaves requests unbounded.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// TokenSource yields the bearer token at delivery time; "" means none.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StorageToken reads the bearer token from local storage on every call.
type StorageToken struct {
	Store storage.Local
	Key   string
}

func (s StorageToken) Token(ctx context.Context) string {
	if s.Store == nil {
		return ""
	}
	key := s.Key
	if key == "" {
		key = TokenKey
	}
	token, ok, err := s.Store.GetItem(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return token
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Status   string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.Endpoint, e.Status)
}

// do sends req and treats any 2xx as success. The body is drained so the
// connection can be reused.
func do(client *http.Client, req *http.Request, endpoint string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: endpoint, Status: resp.Status, Code: resp.StatusCode}
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
