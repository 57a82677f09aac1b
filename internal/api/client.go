// Package api is the REST client for the Aetherium backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
)

const (
	DefaultTimeout    = 30 * time.Second
	TaskCreateTimeout = 120 * time.Second

	maxErrorBody = 4 << 10
)

// CallLogger receives one record per finished call.
type CallLogger interface {
	LogAPICall(method, url string, status int, duration time.Duration, data map[string]any)
}

// Client issues JSON requests against the backend. Every call takes the
// caller's context, so a view that goes away can cancel what it started.
type Client struct {
	base        string
	http        *http.Client
	timeout     time.Duration
	taskTimeout time.Duration
	log         CallLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeouts overrides the default and task creation timeouts.
func WithTimeouts(def, taskCreate time.Duration) Option {
	return func(c *Client) {
		if def > 0 {
			c.timeout = def
		}
		if taskCreate > 0 {
			c.taskTimeout = taskCreate
		}
	}
}

// WithCallLogger records every call on l.
func WithCallLogger(l CallLogger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client rooted at baseURL (for example http://localhost:8000/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(baseURL, "/"),
		http:        &http.Client{},
		timeout:     DefaultTimeout,
		taskTimeout: TaskCreateTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root all paths are resolved against.
func (c *Client) BaseURL() string { return c.base }

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
	// quiet skips the call log; used by log ingestion itself.
	quiet bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.base + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return &internal.APIError{Method: req.method, Path: req.path, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return &internal.APIError{Method: req.method, Path: req.path, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	internal.LogDebug("API Request: %s %s", req.method, req.path)
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.record(req, 0, time.Since(start), map[string]any{"error": err.Error()})
		return &internal.APIError{Method: req.method, Path: req.path, Err: unwrapURLError(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.record(req, resp.StatusCode, elapsed, map[string]any{"error": err.Error()})
		return &internal.APIError{Method: req.method, Path: req.path, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := errorDetail(data)
		c.record(req, resp.StatusCode, elapsed, map[string]any{"responseData": detail})
		return &internal.APIError{
			Method: req.method,
			Path:   req.path,
			Status: resp.StatusCode,
			Detail: detail,
			Err:    fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
		}
	}
	c.record(req, resp.StatusCode, elapsed, map[string]any{"responseSize": len(data)})

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &internal.ParseError{Source: "api", Key: req.method + " " + req.path, Err: err}
	}
	return nil
}

func (c *Client) record(req request, status int, elapsed time.Duration, data map[string]any) {
	if c.log == nil || req.quiet {
		return
	}
	c.log.LogAPICall(req.method, req.path, status, elapsed, data)
}

// unwrapURLError keeps the context error visible to errors.Is.
func unwrapURLError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// errorDetail extracts {"detail": ...} from an error body, falling back to
// the trimmed body text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil {
				return s
			}
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body}, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body}, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path}, out)
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
