package api

import (
	"context"
	"encoding/json"
	"net/url"
)

// WorkspaceFiles lists the workspace tree.
func (c *Client) WorkspaceFiles(ctx context.Context) ([]WorkspaceFile, error) {
	var out []WorkspaceFile
	err := c.list(ctx, "/workspace/files", nil, "files", &out)
	return out, err
}

// GeneratedFiles lists files produced by agents.
func (c *Client) GeneratedFiles(ctx context.Context) ([]WorkspaceFile, error) {
	var out []WorkspaceFile
	err := c.list(ctx, "/workspace/generated-files", nil, "files", &out)
	return out, err
}

// ReadFile returns the content of path.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	err := c.get(ctx, "/workspace/files/"+escapePath(path), nil, &out)
	return out.Content, err
}

// WriteFile replaces the content of an existing file.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	return c.put(ctx, "/workspace/files/"+escapePath(path), map[string]string{"content": content}, nil)
}

// CreateFile creates a new file; an existing name fails with a 409 APIError.
func (c *Client) CreateFile(ctx context.Context, in CreateFileInput) error {
	return c.post(ctx, "/workspace/files", in, nil)
}

// CreateWorkspace creates a named workspace and returns its id.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (string, error) {
	var out struct {
		ID          ID `json:"id"`
		WorkspaceID ID `json:"workspace_id"`
	}
	if err := c.post(ctx, "/workspace/workspaces", map[string]string{"name": name}, &out); err != nil {
		return "", err
	}
	if out.WorkspaceID != "" {
		return string(out.WorkspaceID), nil
	}
	return string(out.ID), nil
}

// WorkspaceFilesIn lists the files of one workspace.
func (c *Client) WorkspaceFilesIn(ctx context.Context, workspaceID string) ([]WorkspaceFile, error) {
	var out []WorkspaceFile
	err := c.list(ctx, "/workspace/workspaces/"+url.PathEscape(workspaceID)+"/files", nil, "files", &out)
	return out, err
}

// SemanticSearch runs an embedding search in a workspace.
func (c *Client) SemanticSearch(ctx context.Context, query, workspaceID string) ([]SearchResult, error) {
	var out []SearchResult
	body := map[string]string{"query": query, "workspace_id": workspaceID}
	var raw json.RawMessage
	if err := c.post(ctx, "/workspace/search/semantic", body, &raw); err != nil {
		return nil, err
	}
	err := decodeList(raw, "results", &out)
	return out, err
}

// VCSDiff returns the uncommitted diff of a workspace checkout.
func (c *Client) VCSDiff(ctx context.Context, workspacePath string) (string, error) {
	var out struct {
		Diff string `json:"diff"`
	}
	err := c.get(ctx, "/workspace/vcs/diff", url.Values{"workspace_path": {workspacePath}}, &out)
	return out.Diff, err
}

// VCSCommit commits the workspace checkout.
func (c *Client) VCSCommit(ctx context.Context, workspacePath, message string) (map[string]any, error) {
	var out map[string]any
	body := map[string]string{"workspace_path": workspacePath, "message": message}
	err := c.post(ctx, "/workspace/vcs/commit", body, &out)
	return out, err
}

// CommitSuggestions asks for commit messages describing diff.
func (c *Client) CommitSuggestions(ctx context.Context, diff string) ([]string, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/workspace/vcs/commit-suggestions", url.Values{"diff": {diff}}, &raw); err != nil {
		return nil, err
	}
	var out []string
	err := decodeList(raw, "suggestions", &out)
	return out, err
}
