package internal

import (
	"path/filepath"
	"strings"
)

// TaskRecord mirrors a server-owned task
type TaskRecord struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Progress    float64   `json:"progress,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
}

// Subtask is one step of an orchestrated task
type Subtask struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	AgentType   string `json:"agent_type,omitempty"`
}

// Task statuses observed on the wire.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Terminal reports whether no further status changes are expected.
func (t TaskRecord) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

var languageByExtension = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"py":   "python",
	"java": "java",
	"cpp":  "cpp",
	"c":    "c",
	"cs":   "csharp",
	"go":   "go",
	"rs":   "rust",
	"php":  "php",
	"rb":   "ruby",
	"html": "html",
	"css":  "css",
	"scss": "scss",
	"json": "json",
	"xml":  "xml",
	"yaml": "yaml",
	"yml":  "yaml",
	"md":   "markdown",
	"sh":   "shell",
	"sql":  "sql",
}

// LanguageFromPath guesses a syntax name from a file extension.
func LanguageFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "text"
}

// ExtensionForLanguage is the inverse used when naming exported code blocks.
func ExtensionForLanguage(language string) string {
	switch strings.ToLower(language) {
	case "python", "py":
		return "py"
	case "javascript", "js", "node":
		return "js"
	case "typescript":
		return "ts"
	case "", "text":
		return "txt"
	default:
		return strings.ToLower(language)
	}
}
