package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/aetherium/aetherium-cli/internal/logstore"
)

// ShellExec runs command on the backend host and returns its output.
func (c *Client) ShellExec(ctx context.Context, command string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	err := c.post(ctx, "/shell_exec", map[string]string{"command": command}, &out)
	return out.Output, err
}

// ExecuteCode runs a snippet in the backend sandbox.
func (c *Client) ExecuteCode(ctx context.Context, code, language string) (CodeResult, error) {
	var out CodeResult
	err := c.post(ctx, "/execute_code", map[string]string{"code": code, "language": language}, &out)
	return out, err
}

func (c *Client) CacheStats(ctx context.Context) (CacheStats, error) {
	var out CacheStats
	err := c.get(ctx, "/cache/stats", nil, &out)
	return out, err
}

// ClearExpiredCache returns the backend's summary message.
func (c *Client) ClearExpiredCache(ctx context.Context) (string, error) {
	return c.message(ctx, "/cache/expired")
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) (string, error) {
	return c.message(ctx, "/cache/all")
}

func (c *Client) message(ctx context.Context, path string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.delete(ctx, path, &out)
	return out.Message, err
}

// SimilarPrompts looks up cached prompts close to prompt.
func (c *Client) SimilarPrompts(ctx context.Context, prompt string) ([]map[string]any, error) {
	var out []map[string]any
	err := c.list(ctx, "/cache/similar", url.Values{"prompt": {prompt}}, "similar", &out)
	return out, err
}

// Download copies a generated artifact to w.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/downloads/"+url.PathEscape(filename), nil, &raw); err != nil {
		return 0, err
	}
	return w.Write(raw)
}

func (c *Client) About(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/about", nil, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.get(ctx, "/health", nil, &out)
	return out, err
}

func (c *Client) SubmitFeedback(ctx context.Context, f Feedback) error {
	return c.post(ctx, "/feedback", f, nil)
}

// SubmitLog ships one client log entry. It is never recorded through the
// call logger, otherwise a failing upload would log itself forever.
func (c *Client) SubmitLog(ctx context.Context, entry logstore.Entry) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/logs", body: entry, quiet: true}, nil)
}
