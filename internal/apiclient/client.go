// Package apiclient is the single point of outbound requests to the todo
// backend. It attaches the session's bearer token, unwraps response
// envelopes and tears the session down on 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/session"
)

// Auth endpoints answer 401 for bad credentials; those errors go back to
// the caller instead of tearing the session down.
var authExempt = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// Client is a thin JSON client for the todo REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   session.Store
	logger     *log.Logger

	mu             gosync.Mutex
	onUnauthorized func()
	tornDown       bool
	tornDownToken  string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the backend at baseURL. Every request is
// abandoned after timeout.
func New(baseURL string, timeout time.Duration, sessions session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sessions: sessions,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to run after a 401 cleared the session.
// It runs at most once per session.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Get performs an HTTP GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do builds the request, attaches the bearer token, and decodes the
// response into out when it is non-nil. A response wrapped in the
// backend's {status, message, data} envelope is unwrapped first.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	sess, err := c.sessions.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if sess.HasToken() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", requestID, "err", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode == http.StatusUnauthorized && !authExempt[pathOnly(path)] {
		c.teardown(ctx, sess.Token)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(unwrap(respBody), out); err != nil {
		return fmt.Errorf("decoding response for %s: %w", op, err)
	}
	return nil
}

// teardown clears the session and fires the unauthorized callback once per
// session. Concurrent 401s for the same token only tear down once, and a
// 401 for a token that is no longer stored leaves the newer session alone.
func (c *Client) teardown(ctx context.Context, token string) {
	if cur, err := c.sessions.Get(ctx); err == nil && cur.Token != token {
		c.logger.Debug("ignoring 401 for a replaced session")
		return
	}

	c.mu.Lock()
	if c.tornDown && (token == "" || token == c.tornDownToken) {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	c.tornDownToken = token
	fn := c.onUnauthorized
	c.mu.Unlock()

	c.logger.Warn("session rejected by backend, signing out")
	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Error("clearing session after 401", "err", err)
	}
	if fn != nil {
		fn()
	}
}

func pathOnly(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
