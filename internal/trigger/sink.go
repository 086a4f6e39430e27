// Package trigger is the Trigger Sink: the outbound edge that turns a fired
// component into an HTTP call against the conversational front end.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Sink delivers a fired component to the front end that owns the user's
// conversation.
type Sink interface {
	Deliver(ctx context.Context, userID string, component *domain.Component) error
}

// HTTPSink POSTs to /conversations/{user_id}/trigger_intent?output_channel=...
// A 2xx response means the front end accepted the trigger; anything else is
// a delivery failure the worker retries with backoff.
type HTTPSink struct {
	baseURL       string
	outputChannel string
	client        *http.Client
}

// NewHTTPSink builds a Sink against baseURL. timeout bounds a single POST;
// spec.md §6 requires 60s here since the front end's own reply can involve
// an LLM round trip, far slower than an ordinary API call.
func NewHTTPSink(baseURL, outputChannel string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		baseURL:       baseURL,
		outputChannel: outputChannel,
		client:        &http.Client{Timeout: timeout},
	}
}

type triggerPayload struct {
	Name string `json:"name"`
}

func (s *HTTPSink) Deliver(ctx context.Context, userID string, component *domain.Component) error {
	url := fmt.Sprintf("%s/conversations/%s/trigger_intent?output_channel=%s", s.baseURL, userID, s.outputChannel)

	data, err := json.Marshal(triggerPayload{Name: component.Trigger})
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("contact front end: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("front end returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry wraps a Deliver call in exponential backoff, bounded by
// maxElapsed, so transient front-end unavailability does not drop a fire.
func DeliverWithRetry(ctx context.Context, sink Sink, userID string, component *domain.Component, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	bctx := backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		return sink.Deliver(ctx, userID, component)
	}, bctx)
}
