package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// VitalsPath is appended to the API base URL for web-vitals samples.
const VitalsPath = "/metrics/web-vitals"

// Metric is one page performance sample.
type Metric struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Page   string  `json:"page"`
}

// Vitals reports page performance samples. Reports are fire-and-forget.
type Vitals struct {
	url    string
	client *http.Client
}

func NewVitals(apiBase string, client *http.Client) *Vitals {
	if client == nil {
		client = http.DefaultClient
	}
	return &Vitals{url: joinURL(apiBase, VitalsPath), client: client}
}

// Report posts the sample in the background and ignores the outcome. The
// returned channel is closed when the attempt ends.
func (v *Vitals) Report(ctx context.Context, name string, value float64, page string) <-chan struct{} {
	done := make(chan struct{})
	body, err := json.Marshal(Metric{Metric: name, Value: value, Page: page})
	if err != nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, v.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		_ = do(v.client, req, "vitals")
	}()
	return done
}
