package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wal2http/wal2http/internal/event"
)

// hook0Payload is the envelope Hook0 expects for an ingested event:
// https://documentation.hook0.com — application scoping, an event type used
// for subscription routing, label filters, and the opaque JSON payload.
type hook0Payload struct {
	ApplicationID string        `json:"application_id"`
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Labels    map[string]string `json:"labels"`
	Payload   event.Event       `json:"payload"`
	PayloadContentType string  `json:"payload_content_type"`
}

// Hook0 delivers events to a Hook0 application via its event ingestion API,
// authenticating with a bearer token.
type Hook0 struct {
	apiURL        string
	applicationID string
	apiToken      string
	client        *http.Client
}

// NewHook0 builds a Hook0 sink posting to apiURL, scoped to applicationID
// and authenticated with apiToken.
func NewHook0(apiURL, applicationID, apiToken string) *Hook0 {
	return &Hook0{
		apiURL:        apiURL,
		applicationID: applicationID,
		apiToken:      apiToken,
		client:        &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (h *Hook0) Deliver(ctx context.Context, ev event.Event) error {
	payload := hook0Payload{
		ApplicationID:       h.applicationID,
		EventID:             ev.CorrelationID,
		EventType:           "wal2http." + ev.Kind,
		Labels:              map[string]string{"schema": ev.Schema, "table": ev.Table},
		Payload:             ev,
		PayloadContentType: "application/json",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &PermanentError{Err: err}
	}

	url := fmt.Sprintf("%s/event?application_id=%s", h.apiURL, h.applicationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiToken)

	resp, err := h.client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}
