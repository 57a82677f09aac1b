package api

import (
	"context"
	"net/url"
)

// Projects

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := c.list(ctx, "/projects", nil, "projects", &out)
	return out, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var out Project
	err := c.get(ctx, "/projects/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (Project, error) {
	var out Project
	err := c.post(ctx, "/projects", in, &out)
	return out, err
}

func (c *Client) UpdateProject(ctx context.Context, id string, in ProjectInput) (Project, error) {
	var out Project
	err := c.put(ctx, "/projects/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.delete(ctx, "/projects/"+url.PathEscape(id), nil)
}

// Repositories

func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var out []Repository
	err := c.list(ctx, "/repositories", nil, "repositories", &out)
	return out, err
}

func (c *Client) CreateRepository(ctx context.Context, in RepositoryInput) (Repository, error) {
	var out Repository
	err := c.post(ctx, "/repositories", in, &out)
	return out, err
}

func (c *Client) GetRepository(ctx context.Context, id string) (Repository, error) {
	var out Repository
	err := c.get(ctx, "/repositories/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) RepositoryFiles(ctx context.Context, id string) ([]WorkspaceFile, error) {
	var out []WorkspaceFile
	err := c.list(ctx, "/repositories/"+url.PathEscape(id)+"/files", nil, "files", &out)
	return out, err
}

func (c *Client) SyncRepository(ctx context.Context, id string) error {
	return c.post(ctx, "/repositories/"+url.PathEscape(id)+"/sync", nil, nil)
}

// CreatePullRequest returns the backend's reply verbatim.
func (c *Client) CreatePullRequest(ctx context.Context, id string, in PullRequestInput) (map[string]any, error) {
	var out map[string]any
	err := c.post(ctx, "/repositories/"+url.PathEscape(id)+"/pull-request", in, &out)
	return out, err
}

// GitHub

// ConnectGitHub stores a personal access token on the backend.
func (c *Client) ConnectGitHub(ctx context.Context, token string) (GitHubStatus, error) {
	var out GitHubStatus
	err := c.post(ctx, "/github/connect", map[string]string{"token": token}, &out)
	return out, err
}

func (c *Client) GitHubStatus(ctx context.Context) (GitHubStatus, error) {
	var out GitHubStatus
	err := c.get(ctx, "/github/connection/status", nil, &out)
	return out, err
}

func (c *Client) GitHubRepos(ctx context.Context) ([]Repository, error) {
	var out []Repository
	err := c.list(ctx, "/github/user/repos", nil, "repositories", &out)
	return out, err
}

func (c *Client) CreateGitHubRepo(ctx context.Context, in RepositoryInput) (Repository, error) {
	var out Repository
	err := c.post(ctx, "/github/create-repo", in, &out)
	return out, err
}

// DeployToGitHub pushes generated files; body is passed through.
func (c *Client) DeployToGitHub(ctx context.Context, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.post(ctx, "/github/deploy", body, &out)
	return out, err
}

// Security

func (c *Client) ListPolicies(ctx context.Context) ([]SecurityPolicy, error) {
	var out []SecurityPolicy
	err := c.list(ctx, "/security/policies", nil, "policies", &out)
	return out, err
}

func (c *Client) CreatePolicy(ctx context.Context, in SecurityPolicy) (SecurityPolicy, error) {
	var out SecurityPolicy
	err := c.post(ctx, "/security/policies", in, &out)
	return out, err
}

// UpdatePolicy applies a partial update.
func (c *Client) UpdatePolicy(ctx context.Context, id string, fields map[string]any) (SecurityPolicy, error) {
	var out SecurityPolicy
	err := c.patch(ctx, "/security/policies/"+url.PathEscape(id), fields, &out)
	return out, err
}

func (c *Client) DeletePolicy(ctx context.Context, id string) error {
	return c.delete(ctx, "/security/policies/"+url.PathEscape(id), nil)
}

func (c *Client) ListScans(ctx context.Context) ([]Scan, error) {
	var out []Scan
	err := c.list(ctx, "/security/scans", nil, "scans", &out)
	return out, err
}

func (c *Client) CreateScan(ctx context.Context, in ScanInput) (Scan, error) {
	var out Scan
	err := c.post(ctx, "/security/scans", in, &out)
	return out, err
}

// Prompts

func (c *Client) ListPrompts(ctx context.Context, params url.Values) ([]Prompt, error) {
	var out []Prompt
	err := c.list(ctx, "/prompts", params, "prompts", &out)
	return out, err
}

func (c *Client) CreatePrompt(ctx context.Context, in Prompt) (Prompt, error) {
	var out Prompt
	err := c.post(ctx, "/prompts", in, &out)
	return out, err
}

func (c *Client) UpdatePrompt(ctx context.Context, id string, in Prompt) (Prompt, error) {
	var out Prompt
	err := c.put(ctx, "/prompts/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	return c.delete(ctx, "/prompts/"+url.PathEscape(id), nil)
}

// Intelligence

func (c *Client) ListAnalyses(ctx context.Context) ([]Analysis, error) {
	var out []Analysis
	err := c.list(ctx, "/intelligence/analyses", nil, "analyses", &out)
	return out, err
}

func (c *Client) Analyze(ctx context.Context, in AnalyzeInput) (Analysis, error) {
	var out Analysis
	err := c.post(ctx, "/intelligence/analyze", in, &out)
	return out, err
}

// Integrations

func (c *Client) ListIntegrations(ctx context.Context) ([]Integration, error) {
	var out []Integration
	err := c.list(ctx, "/integrations", nil, "integrations", &out)
	return out, err
}

func (c *Client) CreateIntegration(ctx context.Context, in Integration) (Integration, error) {
	var out Integration
	err := c.post(ctx, "/integrations", in, &out)
	return out, err
}

func (c *Client) UpdateIntegration(ctx context.Context, id string, in Integration) (Integration, error) {
	var out Integration
	err := c.put(ctx, "/integrations/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) SyncIntegration(ctx context.Context, id string) error {
	return c.post(ctx, "/integrations/"+url.PathEscape(id)+"/sync", nil, nil)
}

// Observability

func (c *Client) ListMetrics(ctx context.Context) ([]Metric, error) {
	var out []Metric
	err := c.list(ctx, "/observability/metrics", nil, "metrics", &out)
	return out, err
}

func (c *Client) RecordMetric(ctx context.Context, m Metric) error {
	return c.post(ctx, "/observability/metrics", m, nil)
}
