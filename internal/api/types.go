package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aetherium/aetherium-cli/internal"
)

// ID is a resource identifier. The backend emits both numbers and strings.
type ID string

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits integers as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Task creation and listing

type CreateTaskRequest struct {
	Description string         `json:"description"`
	Type        string         `json:"type,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// CreateTaskResponse is the reply to POST /tasks. Chat replies may carry the
// answer inline as {response, type}.
type CreateTaskResponse struct {
	TaskID   ID     `json:"task_id"`
	ID       ID     `json:"id"`
	Response string `json:"response"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

// Identifier returns task_id, falling back to id.
func (r CreateTaskResponse) Identifier() string {
	if r.TaskID != "" {
		return string(r.TaskID)
	}
	return string(r.ID)
}

// Direct reports whether the reply already holds the answer.
func (r CreateTaskResponse) Direct() bool {
	return r.Response != "" && r.Type != ""
}

type Project struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	RepositoryURL string `json:"repository_url,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type ProjectInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	RepositoryURL string `json:"repository_url,omitempty"`
	Status        string `json:"status,omitempty"`
}

type Provider struct {
	ID            ID      `json:"id"`
	ProviderID    string  `json:"provider_id"`
	Name          string  `json:"name"`
	Model         string  `json:"model"`
	Status        string  `json:"status"`
	Latency       float64 `json:"latency"`
	SuccessRate   float64 `json:"success_rate"`
	TotalRequests int64   `json:"total_requests"`
	CostEstimate  float64 `json:"cost_estimate"`
	TokensUsed    int64   `json:"tokens_used"`
	LastUsed      string  `json:"last_used,omitempty"`
	Active        bool    `json:"isActive"`
}

// Key is what /providers/switch/{id} expects.
func (p Provider) Key() string {
	if p.ProviderID != "" {
		return p.ProviderID
	}
	return string(p.ID)
}

type ProviderMetrics struct {
	TotalRequests   int64      `json:"totalRequests"`
	SuccessRate     float64    `json:"successRate"`
	AvgResponseTime float64    `json:"avgResponseTime"`
	TotalCost       float64    `json:"totalCost"`
	Providers       []Provider `json:"providers"`
}

type Agent struct {
	ID      ID     `json:"id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Health  string `json:"health,omitempty"`
}

type AgentStatus struct {
	Agents []Agent      `json:"agents"`
	Tasks  []TaskRecord `json:"tasks"`
}

// TaskRecord is the wire form of a task. Progress is a percentage.
type TaskRecord struct {
	ID          ID        `json:"id"`
	Description string    `json:"description"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Progress    float64   `json:"progress,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

type Subtask struct {
	ID          ID     `json:"id,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	AgentType   string `json:"agent_type,omitempty"`
}

// Record converts the wire form into the model the reconcile layer patches.
func (t TaskRecord) Record() internal.TaskRecord {
	out := internal.TaskRecord{
		ID:          string(t.ID),
		Description: t.Description,
		Type:        t.Type,
		Status:      t.Status,
		Progress:    t.Progress,
		CreatedAt:   t.CreatedAt,
	}
	for _, st := range t.Subtasks {
		out.Subtasks = append(out.Subtasks, internal.Subtask{
			ID:          string(st.ID),
			Description: st.Description,
			Status:      st.Status,
			AgentType:   st.AgentType,
		})
	}
	return out
}

// Records converts a task list.
func Records(tasks []TaskRecord) []internal.TaskRecord {
	out := make([]internal.TaskRecord, len(tasks))
	for i, t := range tasks {
		out[i] = t.Record()
	}
	return out
}

type Repository struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language,omitempty"`
	URL         string `json:"html_url,omitempty"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	Watchers    int    `json:"watchers_count"`
	Private     bool   `json:"private"`
}

type RepositoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

type PullRequestInput struct {
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
	Head   string `json:"head,omitempty"`
	Base   string `json:"base,omitempty"`
	Branch string `json:"branch,omitempty"`
}

type GitHubStatus struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
}

type SecurityPolicy struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Rules       []any    `json:"rules,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

type Finding struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type Scan struct {
	ID          ID        `json:"id"`
	Type        string    `json:"type"`
	Target      string    `json:"target"`
	Status      string    `json:"status"`
	Findings    []Finding `json:"findings,omitempty"`
	StartedAt   string    `json:"started_at,omitempty"`
	CompletedAt string    `json:"completed_at,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
}

type ScanInput struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type Prompt struct {
	ID        ID       `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Favorite  bool     `json:"is_favorite"`
	CreatedAt string   `json:"created_at,omitempty"`
}

type Analysis struct {
	ID        ID             `json:"id"`
	Type      string         `json:"type"`
	Target    string         `json:"target"`
	Status    string         `json:"status"`
	CreatedAt string         `json:"created_at,omitempty"`
	Results   map[string]any `json:"results,omitempty"`
}

type AnalyzeInput struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type Integration struct {
	ID        ID             `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type Metric struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Status    string  `json:"status,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

type Alert struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type CacheStats struct {
	Hits              int64   `json:"cache_hits"`
	Misses            int64   `json:"cache_misses"`
	Size              int64   `json:"cache_size"`
	Expired           int64   `json:"expired_entries"`
	TotalRequests     int64   `json:"total_requests"`
	SuccessRate       float64 `json:"success_rate"`
	CPUUsage          float64 `json:"cpu_usage"`
	MemoryUsage       float64 `json:"memory_usage"`
	AvgResponseTime   float64 `json:"avg_response_time"`
	ActiveConnections int64   `json:"active_connections"`
	Uptime            string  `json:"uptime,omitempty"`
	Alerts            []Alert `json:"alerts,omitempty"`
}

// HitRate is hits over lookups, zero when nothing was looked up.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type WorkspaceFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
	Content  string `json:"content,omitempty"`
}

type CreateFileInput struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Content  string `json:"content"`
}

type SearchResult struct {
	Path    string  `json:"path"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
}

type CodeResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

// Output joins stdout and stderr the way the run panel shows them.
func (r CodeResult) Output() string {
	switch {
	case r.Stdout != "" && r.Stderr != "":
		return r.Stdout + "\n" + r.Stderr
	case r.Stderr != "":
		return r.Stderr
	case r.Stdout == "" && r.Error != "":
		return r.Error
	default:
		return r.Stdout
	}
}

type Health struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type Feedback struct {
	Rating   int    `json:"rating,omitempty"`
	Comment  string `json:"comment"`
	Category string `json:"category,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}
