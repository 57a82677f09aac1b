package internal

import "strings"

// DefaultView is shown when no view, or an unknown one, is requested.
const DefaultView = "chat"

// View is one dashboard screen.
type View struct {
	Name    string
	Title   string
	Command string
}

// Views lists the dashboard screens in navigation order. Command is the
// CLI command that renders the screen.
var Views = []View{
	{Name: "chat", Title: "Chat", Command: "chat"},
	{Name: "agents", Title: "Agents", Command: "agents"},
	{Name: "providers", Title: "Providers", Command: "providers"},
	{Name: "workspace", Title: "Workspace", Command: "workspace"},
	{Name: "orchestrator", Title: "Task Orchestrator", Command: "tasks"},
	{Name: "projects", Title: "Projects", Command: "projects"},
	{Name: "repositories", Title: "Repositories", Command: "repos"},
	{Name: "observability", Title: "Observability", Command: "observability"},
	{Name: "security", Title: "Security", Command: "security"},
	{Name: "prompts", Title: "Prompt Studio", Command: "prompts"},
	{Name: "intelligence", Title: "Code Intelligence", Command: "intelligence"},
	{Name: "integrations", Title: "Integrations", Command: "integrations"},
	{Name: "logging", Title: "Logging", Command: "logs"},
}

// ResolveView maps a route such as "#agents" or "agents" to its view.
// Unknown and empty routes resolve to the chat view.
func ResolveView(route string) View {
	name := strings.TrimPrefix(strings.TrimSpace(route), "#")
	for _, v := range Views {
		if v.Name == name {
			return v
		}
	}
	return Views[0]
}
