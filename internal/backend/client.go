package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/folio/internal/cache"
	"github.com/kalambet/folio/internal/profile"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultRevalidate  = 60 * time.Second
	maxResponseSize    = 5 << 20 // 5MB
	userAgent          = "Portfolio-App/1.0"
	msgSuccess         = "Portfolio Fetched successfully!"
	msgNotConfigured   = "API URL not configured"
	msgInvalidJSON     = "Invalid JSON response"
	msgInvalidStruct   = "Invalid response structure"
	msgTransportFailed = "An error occurred while fetching the portfolio!"
)

// FetchResult is the outcome of one Fetch. Success is authoritative: Data
// must not be read when Success is false.
type FetchResult struct {
	Success bool
	Data    *profile.Raw
	Message string
	Err     error
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	// Development disables the revalidation cache entirely.
	Development bool

	// Cache holds successful payloads for Revalidate. Nil disables caching.
	Cache cache.Store

	// Revalidate is the window during which a cached payload is served.
	Revalidate time.Duration

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches tenant profiles from the portfolio backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	development bool
	cache       cache.Store
	revalidate  time.Duration
	group       singleflight.Group
	logger      *slog.Logger
}

// NewClient creates a backend client rooted at baseURL. An empty baseURL
// is allowed; every Fetch then reports the missing configuration.
func NewClient(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	revalidate := opts.Revalidate
	if revalidate <= 0 {
		revalidate = defaultRevalidate
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:  hc,
		development: opts.Development,
		cache:       opts.Cache,
		revalidate:  revalidate,
		logger:      slog.Default(),
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Fetch performs a single GET <base>/<username>. It never returns a Go
// error or panics on backend failures; every outcome is a FetchResult.
func (c *Client) Fetch(ctx context.Context, username string) FetchResult {
	if c.baseURL == "" {
		return FetchResult{Message: msgNotConfigured, Err: ErrNotConfigured}
	}

	var (
		data json.RawMessage
		res  FetchResult
	)
	if c.cacheEnabled() {
		data, res = c.fetchShared(ctx, username)
	} else {
		data, res = c.roundTrip(ctx, username)
	}
	if !res.Success {
		return res
	}

	var raw profile.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return FetchResult{Message: msgInvalidStruct, Err: fmt.Errorf("%w: %w", errInvalidStructure, err)}
	}
	return FetchResult{Success: true, Data: &raw, Message: msgSuccess}
}

// Invalidate drops any cached payload for username.
func (c *Client) Invalidate(ctx context.Context, username string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, cacheKey(username))
}

func (c *Client) cacheEnabled() bool {
	return !c.development && c.cache != nil
}

// fetchShared serves from the revalidation cache and collapses concurrent
// misses for the same username into one upstream request. The shared
// request is detached from any single caller's cancellation.
func (c *Client) fetchShared(ctx context.Context, username string) (json.RawMessage, FetchResult) {
	key := cacheKey(username)
	if b, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("profile cache hit", "username", username)
		return b, FetchResult{Success: true}
	}

	type shared struct {
		data json.RawMessage
		res  FetchResult
	}
	ch := c.group.DoChan(key, func() (any, error) {
		data, res := c.roundTrip(context.WithoutCancel(ctx), username)
		if res.Success {
			if err := c.cache.Set(context.WithoutCancel(ctx), key, data, c.revalidate); err != nil {
				c.logger.Warn("profile cache set failed", "username", username, "error", err)
			}
		}
		return shared{data: data, res: res}, nil
	})

	select {
	case <-ctx.Done():
		return nil, transportFailure(ctx.Err())
	case r := <-ch:
		s := r.Val.(shared)
		return s.data, s.res
	}
}

// roundTrip issues the HTTP request and validates the envelope. On success
// it returns the raw "data" object.
func (c *Client) roundTrip(ctx context.Context, username string) (json.RawMessage, FetchResult) {
	fullURL := c.baseURL + "/" + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, transportFailure(fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("profile fetch failed", "username", username, "error", err)
		return nil, transportFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportFailure(fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("profile fetched",
		"username", username,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, FetchResult{
			Message: fmt.Sprintf("API request failed with status %d", resp.StatusCode),
			Err:     &StatusError{StatusCode: resp.StatusCode, Body: string(body)},
		}
	}

	return parseEnvelope(body)
}

func parseEnvelope(body []byte) (json.RawMessage, FetchResult) {
	var doc json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, FetchResult{Message: msgInvalidJSON, Err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}

	invalid := FetchResult{Message: msgInvalidStruct, Err: errInvalidStructure}
	if !isObject(doc) {
		return nil, invalid
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, invalid
	}
	data, ok := env["data"]
	if !ok || !isObject(data) {
		return nil, invalid
	}
	return data, FetchResult{Success: true}
}

func isObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func transportFailure(err error) FetchResult {
	return FetchResult{Message: msgTransportFailed, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.development {
		req.Header.Set("Cache-Control", "no-store")
	}
}

func cacheKey(username string) string {
	return "profile:" + username
}
