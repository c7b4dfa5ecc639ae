package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"docledger/internal/wideevent"
)

// TimestampLayout is the analytics store's DateTime64(3) text format.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Row source literals written by the client-side fallback path.
const (
	FallbackService = "frontend"
	FallbackSource  = "frontend_fallback"
)

// Analytics inserts events directly into a columnar analytics store over its
// HTTP interface, one TabSeparated row per event.
type Analytics struct {
	baseURL string
	table   string
	service string
	source  string
	client  *http.Client
	now     func() time.Time
}

func NewAnalytics(baseURL, table string, client *http.Client) *Analytics {
	if client == nil {
		client = http.DefaultClient
	}
	if table == "" {
		table = "events"
	}
	return &Analytics{
		baseURL: baseURL,
		table:   table,
		service: FallbackService,
		source:  FallbackSource,
		client:  client,
		now:     time.Now,
	}
}

// WithSource returns a copy that labels rows with service and source.
func (a *Analytics) WithSource(service, source string) *Analytics {
	cp := *a
	cp.service = service
	cp.source = source
	return &cp
}

// InsertQuery is the statement sent in the query string.
func (a *Analytics) InsertQuery() string {
	return fmt.Sprintf("INSERT INTO %s FORMAT TabSeparated", a.table)
}

// Send implements wideevent.Sender.
func (a *Analytics) Send(ctx context.Context, event wideevent.WideEvent) error {
	row, err := FormatRow(event, a.now(), a.service, a.source)
	if err != nil {
		return fmt.Errorf("format row: %w", err)
	}

	endpoint := strings.TrimSuffix(a.baseURL, "/") + "/?query=" + url.QueryEscape(a.InsertQuery())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(row))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return do(a.client, req, "analytics")
}

// FormatRow renders event as one TabSeparated row:
// trace_id, timestamp, service, source, event_type, user_id, duration_ms,
// error (1/0), attributes JSON.
func FormatRow(event wideevent.WideEvent, ts time.Time, service, source string) (string, error) {
	attrs, err := event.AttributesJSON()
	if err != nil {
		return "", err
	}
	errFlag := "0"
	if event.Error {
		errFlag = "1"
	}
	fields := []string{
		event.TraceID,
		ts.UTC().Format(TimestampLayout),
		service,
		source,
		event.EventType,
		event.UserID,
		strconv.FormatInt(event.DurationMs, 10),
		errFlag,
		attrs,
	}
	for i, f := range fields {
		fields[i] = tsvEscaper.Replace(f)
	}
	return strings.Join(fields, "\t"), nil
}

var tsvEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)
