// Package httpx is the outbound JSON client used by the MCP server and the
// CLI to reach a running hub. It retries transient transport failures with
// exponential backoff; HTTP error statuses are returned to the caller, who
// knows whether a 404 means a bad pose name or a wrong base URL.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tjamescouch/personas/internal/logging"
)

const (
	// DefaultTimeoutMs bounds one attempt, not the whole retry loop.
	DefaultTimeoutMs = 5000
	// DefaultAttempts is how many times a request is tried before giving up.
	DefaultAttempts = 3
)

// Client posts JSON payloads to one hub instance.
type Client struct {
	BaseURL   string
	AuthToken string
	TimeoutMs int
	Attempts  int

	// HTTP is the underlying client; nil means a per-call client with the
	// attempt timeout, matching TimeoutMs behaviour.
	HTTP *http.Client
}

// New returns a client for the hub at baseURL with default retry settings.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		TimeoutMs: DefaultTimeoutMs,
		Attempts:  DefaultAttempts,
	}
}

// PostJSON posts body to path with retry/backoff and returns the response.
// Caller must close resp.Body.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte, correlationID string) (*http.Response, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	timeoutMs := c.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	url := c.BaseURL + path

	for i := 0; i < attempts; i++ {
		ctxReq, cancelReq := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		req, rerr := http.NewRequestWithContext(ctxReq, "POST", url, bytes.NewReader(body))
		if rerr != nil {
			logging.Debugw("postJSON: new request error", "err", rerr, "correlation_id", correlationID)
			cancelReq()
			return nil, rerr
		}
		req.Header.Set("Content-Type", "application/json")
		if c.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.AuthToken)
		}

		var resp *http.Response
		var err error
		if c.HTTP != nil {
			resp, err = c.HTTP.Do(req)
		} else {
			tmp := &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond}
			resp, err = tmp.Do(req)
		}
		cancelReq()
		if err != nil {
			logging.Debugw("postJSON: attempt failed", "attempt", i+1, "url", url, "err", err, "correlation_id", correlationID)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if i < attempts-1 {
				time.Sleep(time.Duration(200*(1<<i)) * time.Millisecond)
				continue
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("no response from %s", url)
}

// PostValue marshals v, posts it to path and decodes the JSON reply into
// out (skipped when out is nil). Non-2xx statuses become errors carrying
// the response body.
func (c *Client) PostValue(ctx context.Context, path string, v interface{}, out interface{}, correlationID string) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.PostJSON(ctx, path, body, correlationID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
