package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// CreateTask submits a task. It runs under the longer task creation timeout.
func (c *Client) CreateTask(ctx context.Context, in CreateTaskRequest) (CreateTaskResponse, error) {
	var out CreateTaskResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/tasks",
		body:    in,
		timeout: c.taskTimeout,
	}, &out)
	return out, err
}

// ListTasks returns the task list; params become query parameters.
func (c *Client) ListTasks(ctx context.Context, params url.Values) ([]TaskRecord, error) {
	var out []TaskRecord
	err := c.list(ctx, "/tasks", params, "tasks", &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, id string) (TaskRecord, error) {
	var out TaskRecord
	err := c.get(ctx, "/tasks/"+url.PathEscape(id), nil, &out)
	return out, err
}

// OrchestrateTask asks the backend to split a task into subtasks.
func (c *Client) OrchestrateTask(ctx context.Context, id string) (TaskRecord, error) {
	var out TaskRecord
	err := c.post(ctx, "/tasks/"+url.PathEscape(id)+"/orchestrate", nil, &out)
	return out, err
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	err := c.list(ctx, "/agents", nil, "agents", &out)
	return out, err
}

func (c *Client) AgentStatus(ctx context.Context) (AgentStatus, error) {
	var out AgentStatus
	err := c.get(ctx, "/agents/status", nil, &out)
	return out, err
}

func (c *Client) GetAgent(ctx context.Context, id string) (Agent, error) {
	var out Agent
	err := c.get(ctx, "/agents/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ControlAgent sends an action such as start, stop or restart.
func (c *Client) ControlAgent(ctx context.Context, id, action string) error {
	return c.post(ctx, "/agents/"+url.PathEscape(id)+"/control", map[string]string{"action": action}, nil)
}

func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var out []Provider
	err := c.list(ctx, "/providers", nil, "providers", &out)
	return out, err
}

func (c *Client) ProviderMetrics(ctx context.Context) (ProviderMetrics, error) {
	var out ProviderMetrics
	err := c.get(ctx, "/providers/metrics", nil, &out)
	return out, err
}

func (c *Client) GetProvider(ctx context.Context, id string) (Provider, error) {
	var out Provider
	err := c.get(ctx, "/providers/"+url.PathEscape(id), nil, &out)
	return out, err
}

// SwitchProvider makes id the active provider.
func (c *Client) SwitchProvider(ctx context.Context, id string) error {
	return c.post(ctx, "/providers/switch/"+url.PathEscape(id), nil, nil)
}

// list decodes either a bare JSON array or an object wrapping the array
// under key.
func (c *Client) list(ctx context.Context, path string, params url.Values, key string, out any) error {
	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return err
	}
	return decodeList(raw, key, out)
}

func decodeList(raw json.RawMessage, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return err
		}
		inner, ok := wrapper[key]
		if !ok || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
			return nil
		}
		raw = inner
	}
	return json.Unmarshal(raw, out)
}
