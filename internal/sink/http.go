package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wal2http/wal2http/internal/event"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTP delivers events as an application/json POST to a single webhook
// endpoint.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP builds an HTTP sink posting to url with a bounded client timeout.
func NewHTTP(url string) *HTTP {
	return &HTTP{
		url:    url,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (h *HTTP) Deliver(ctx context.Context, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return &PermanentError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}

// classifyStatus maps an HTTP response status to a delivery outcome per
// spec.md §4.5: 2xx succeeds, 408/429/5xx are worth retrying, other 4xx are
// not.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return &TransientError{Err: fmt.Errorf("unexpected status %d", status)}
	case status >= 400:
		return &PermanentError{Err: fmt.Errorf("unexpected status %d", status)}
	default:
		return &TransientError{Err: fmt.Errorf("unexpected status %d", status)}
	}
}
