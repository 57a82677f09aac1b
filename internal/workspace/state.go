package workspace

import (
	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/reconcile"
)

// Defaults for a fresh workspace.
const (
	DefaultSidebarView = "explorer"
	DefaultPanelView   = "terminal"
	DefaultWorkspace   = "local"
)

// Tab is an open editor tab.
type Tab struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	IsDirty  bool   `json:"isDirty"`
	Language string `json:"language"`
}

// State is the persisted workspaceState blob. Field names follow the keys
// the dashboard has always written so existing state keeps loading.
type State struct {
	AssistantMessages []internal.ConversationTurn `json:"aiAgentMessages"`
	OpenTabs          []Tab                       `json:"openTabs"`
	ActiveTabID       string                      `json:"activeTabId,omitempty"`
	FileContents      map[string]string           `json:"fileContents"`
	OriginalContents  map[string]string           `json:"originalContents"`
	ExpandedFolders   []string                    `json:"expandedFolders"`
	SidebarView       string                      `json:"sidebarView"`
	PanelView         string                      `json:"panelView"`
	TerminalOutput    string                      `json:"terminalOutput"`
	TerminalCommand   string                      `json:"terminalCommand"`
	CurrentAITaskID   string                      `json:"currentAiTaskId,omitempty"`
	AIThinking        bool                        `json:"isAiThinking"`
	ShowDiff          bool                        `json:"showDiff"`
	ActiveWorkspace   string                      `json:"activeWorkspace"`
}

// NewState returns the state of a workspace nobody has touched.
func NewState() State {
	return State{
		FileContents:     map[string]string{},
		OriginalContents: map[string]string{},
		SidebarView:      DefaultSidebarView,
		PanelView:        DefaultPanelView,
		ActiveWorkspace:  DefaultWorkspace,
	}
}

// normalize fills in anything an older or partial blob left out.
func (s *State) normalize() {
	if s.FileContents == nil {
		s.FileContents = map[string]string{}
	}
	if s.OriginalContents == nil {
		s.OriginalContents = map[string]string{}
	}
	if s.SidebarView == "" {
		s.SidebarView = DefaultSidebarView
	}
	if s.PanelView == "" {
		s.PanelView = DefaultPanelView
	}
	if s.ActiveWorkspace == "" {
		s.ActiveWorkspace = DefaultWorkspace
	}
}

func (s *State) tab(id string) (int, bool) {
	for i, t := range s.OpenTabs {
		if t.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *State) tabByPath(path string) (int, bool) {
	for i, t := range s.OpenTabs {
		if t.Path == path {
			return i, true
		}
	}
	return -1, false
}

func (s *State) assistant() reconcile.Assistant {
	return reconcile.Assistant{
		Messages:      s.AssistantMessages,
		CurrentTaskID: s.CurrentAITaskID,
		Thinking:      s.AIThinking,
	}
}

func (s *State) setAssistant(a reconcile.Assistant) {
	s.AssistantMessages = a.Messages
	s.CurrentAITaskID = a.CurrentTaskID
	s.AIThinking = a.Thinking
}

func (s State) clone() State {
	out := s
	out.AssistantMessages = internal.CloneTurns(s.AssistantMessages)
	out.OpenTabs = append([]Tab(nil), s.OpenTabs...)
	out.ExpandedFolders = append([]string(nil), s.ExpandedFolders...)
	out.FileContents = make(map[string]string, len(s.FileContents))
	for k, v := range s.FileContents {
		out.FileContents[k] = v
	}
	out.OriginalContents = make(map[string]string, len(s.OriginalContents))
	for k, v := range s.OriginalContents {
		out.OriginalContents[k] = v
	}
	return out
}
