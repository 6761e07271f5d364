package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultPostHogHost = "https://us.i.posthog.com"

	captureTimeout = 10 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// PostHog posts events to the PostHog capture endpoint.
type PostHog struct {
	apiKey     string
	host       string
	httpClient *http.Client
}

// NewPostHog creates a capture client. An empty host selects the US cloud.
func NewPostHog(apiKey, host string) *PostHog {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultPostHogHost
	}
	return &PostHog{
		apiKey:     apiKey,
		host:       host,
		httpClient: &http.Client{Timeout: captureTimeout},
	}
}

type capturePayload struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	UUID       string         `json:"uuid,omitempty"`
}

// Capture sends one event. HTTP 429 is retried with exponential backoff;
// other failures are returned to the caller.
func (p *PostHog) Capture(ctx context.Context, ev Event) error {
	payload := capturePayload{
		APIKey:     p.apiKey,
		Event:      ev.Name,
		DistinctID: ev.DistinctID,
		Properties: ev.Properties,
		UUID:       ev.ID,
	}
	if !ev.Timestamp.IsZero() {
		payload.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		err := p.doCapture(ctx, body)
		if err == nil {
			return nil
		}
		if !isRateLimit(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

func (p *PostHog) doCapture(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/capture/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "folio")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
