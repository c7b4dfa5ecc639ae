package transport

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TraceparentHeader carries the W3C trace context.
const TraceparentHeader = "traceparent"

// Attribute keys recorded for failed API calls.
const (
	AttrAPIErrorURL     = "api.error.url"
	AttrAPIErrorStatus  = "api.error.status"
	AttrAPIErrorMessage = "api.error.message"
)

// RequestLogger is the wide event an API call belongs to. *wideevent.Logger
// satisfies it.
type RequestLogger interface {
	Traceparent() string
	Log(key string, value any)
}

// TraceRoundTripper stamps outbound requests with a traceparent header so the
// backend can correlate its spans with the current wide event, and records
// each call on that event: "api.<method>.<path>" with the latency in ms for
// 2xx responses, the api.error.* keys otherwise.
type TraceRoundTripper struct {
	Base   http.RoundTripper
	Source RequestLogger
	Now    func() time.Time
}

func (t *TraceRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil {
		return base.RoundTrip(req)
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}

	r := req
	if tp := t.Source.Traceparent(); tp != "" {
		r = req.Clone(req.Context())
		r.Header.Set(TraceparentHeader, tp)
	}

	start := now()
	resp, err := base.RoundTrip(r)
	switch {
	case err != nil:
		t.logFailure(req, 0, err.Error())
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		t.logFailure(req, resp.StatusCode, fmt.Sprintf("request failed with status code %d", resp.StatusCode))
	default:
		t.Source.Log(CallKey(req), now().Sub(start).Milliseconds())
	}
	return resp, err
}

func (t *TraceRoundTripper) logFailure(req *http.Request, status int, msg string) {
	t.Source.Log(AttrAPIErrorURL, req.URL.Path)
	if status != 0 {
		t.Source.Log(AttrAPIErrorStatus, status)
	}
	t.Source.Log(AttrAPIErrorMessage, msg)
}

// CallKey is the attribute key of a successful call's latency.
func CallKey(req *http.Request) string {
	return "api." + strings.ToLower(req.Method) + "." + req.URL.Path
}
