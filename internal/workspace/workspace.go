// Package workspace is the workspace view: the file tree, open tabs with
// edited and original contents, the terminal panel and the AI assistant
// side panel. Everything but the file listing survives a restart.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/logstore"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/google/uuid"
)

// ErrThinking is returned by Ask while the assistant is still answering.
var ErrThinking = errors.New("assistant is still answering")

// ErrNoFile is returned when an operation needs an open file and there is none.
var ErrNoFile = errors.New("no file open")

// Backend is the subset of the REST client the workspace uses.
type Backend interface {
	WorkspaceFiles(ctx context.Context) ([]api.WorkspaceFile, error)
	GeneratedFiles(ctx context.Context) ([]api.WorkspaceFile, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	CreateFile(ctx context.Context, in api.CreateFileInput) error
	SemanticSearch(ctx context.Context, query, workspaceID string) ([]api.SearchResult, error)
	ShellExec(ctx context.Context, command string) (string, error)
	CreateTask(ctx context.Context, in api.CreateTaskRequest) (api.CreateTaskResponse, error)
	GetProject(ctx context.Context, id string) (api.Project, error)
}

// Channel is the subset of the realtime channel the workspace uses.
type Channel interface {
	Subscribe(filter realtime.Filter, handler realtime.Handler) (unsubscribe func())
	SubscribeTask(taskID string) error
}

// Deps are the collaborators a Workspace is built from.
type Deps struct {
	Backend Backend
	Channel Channel
	Store   *internal.Store
	Notes   *notify.Broker
	Logs    *logstore.Store
}

// Workspace is safe for concurrent use.
type Workspace struct {
	backend Backend
	channel Channel
	store   *internal.Store
	notes   *notify.Broker
	logs    *logstore.Store
	now     func() time.Time
	newID   func() string

	mu          sync.Mutex
	state       State
	project     *api.Project
	files       []api.WorkspaceFile
	generated   []api.WorkspaceFile
	listeners   []func()
	unsubscribe func()
}

// New restores the persisted workspace state. A missing or unreadable
// blob yields a fresh workspace.
func New(deps Deps) *Workspace {
	w := &Workspace{
		backend: deps.Backend,
		channel: deps.Channel,
		store:   deps.Store,
		notes:   deps.Notes,
		logs:    deps.Logs,
		now:     time.Now,
		newID:   func() string { return "tab-" + uuid.NewString() },
		state:   NewState(),
	}
	if w.notes == nil {
		w.notes = notify.NewBroker()
	}
	if w.logs == nil {
		w.logs = logstore.New()
	}
	if w.store != nil {
		var st State
		ok, err := w.store.GetJSON(internal.KeyWorkspaceState, &st)
		switch {
		case err != nil:
			w.logs.Warn("Failed to load workspace state", map[string]any{"error": err.Error()})
		case ok:
			st.normalize()
			w.state = st
		}
	}
	return w
}

// OnChange registers fn to run after every state change.
func (w *Workspace) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Workspace) changed() {
	w.mu.Lock()
	listeners := append([]func(){}, w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// update runs fn under the lock, persists and notifies listeners.
func (w *Workspace) update(fn func(s *State)) {
	w.mu.Lock()
	fn(&w.state)
	w.persistLocked()
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) persistLocked() {
	if w.store == nil {
		return
	}
	if err := w.store.SetJSON(internal.KeyWorkspaceState, w.state); err != nil {
		internal.LogWarn("Failed to save workspace state: %v", err)
	}
}

// State returns a copy of the persisted state.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// Attach starts routing assistant output from the channel.
func (w *Workspace) Attach() {
	if w.channel == nil {
		return
	}
	unsub := w.channel.Subscribe(realtime.Filter{Types: []string{realtime.TypeOutput}}, w.HandleMessage)
	w.mu.Lock()
	prev := w.unsubscribe
	w.unsubscribe = unsub
	w.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Detach stops routing frames.
func (w *Workspace) Detach() {
	w.mu.Lock()
	unsub := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// HandleMessage applies one realtime frame to the assistant panel.
func (w *Workspace) HandleMessage(msg realtime.Message) {
	w.mu.Lock()
	a := w.state.assistant()
	changed := a.Apply(msg, w.now())
	if changed {
		w.state.setAssistant(a)
		w.persistLocked()
	}
	w.mu.Unlock()
	if changed {
		w.changed()
	}
}

// LoadFiles fetches the workspace file listing.
func (w *Workspace) LoadFiles(ctx context.Context) ([]api.WorkspaceFile, error) {
	files, err := w.backend.WorkspaceFiles(ctx)
	if err != nil {
		w.notes.Error("Failed to load workspace files")
		return nil, err
	}
	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	w.changed()
	return files, nil
}

// LoadGenerated fetches files produced by completed tasks.
func (w *Workspace) LoadGenerated(ctx context.Context) ([]api.WorkspaceFile, error) {
	files, err := w.backend.GeneratedFiles(ctx)
	if err != nil {
		w.notes.Error("Failed to load generated files")
		return nil, err
	}
	w.mu.Lock()
	w.generated = files
	w.mu.Unlock()
	w.changed()
	return files, nil
}

// Files returns the last fetched listing.
func (w *Workspace) Files() []api.WorkspaceFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]api.WorkspaceFile(nil), w.files...)
}

// Generated returns the last fetched generated-files listing.
func (w *Workspace) Generated() []api.WorkspaceFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]api.WorkspaceFile(nil), w.generated...)
}

// OpenFile activates the tab for p, fetching the file when no tab has it yet.
func (w *Workspace) OpenFile(ctx context.Context, p string) (Tab, error) {
	w.mu.Lock()
	if i, ok := w.state.tabByPath(p); ok {
		tab := w.state.OpenTabs[i]
		w.state.ActiveTabID = tab.ID
		w.persistLocked()
		w.mu.Unlock()
		w.changed()
		return tab, nil
	}
	w.mu.Unlock()

	content, err := w.backend.ReadFile(ctx, p)
	if err != nil {
		w.notes.Error("Failed to load file content")
		return Tab{}, err
	}
	tab := Tab{
		ID:       w.newID(),
		Path:     p,
		Name:     path.Base(p),
		Language: internal.LanguageFromPath(p),
	}
	w.update(func(s *State) {
		if i, ok := s.tabByPath(p); ok {
			tab = s.OpenTabs[i]
		} else {
			s.OpenTabs = append(s.OpenTabs, tab)
			s.FileContents[p] = content
			s.OriginalContents[p] = content
		}
		s.ActiveTabID = tab.ID
		s.ShowDiff = false
	})
	return tab, nil
}

// Tabs returns the open tabs in order.
func (w *Workspace) Tabs() []Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Tab(nil), w.state.OpenTabs...)
}

// ActiveTab returns the active tab, if any.
func (w *Workspace) ActiveTab() (Tab, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeLocked()
}

func (w *Workspace) activeLocked() (Tab, bool) {
	if i, ok := w.state.tab(w.state.ActiveTabID); ok {
		return w.state.OpenTabs[i], true
	}
	return Tab{}, false
}

// Activate switches to an already open tab.
func (w *Workspace) Activate(id string) error {
	w.mu.Lock()
	_, ok := w.state.tab(id)
	w.mu.Unlock()
	if !ok {
		return &internal.ValidationError{Field: "tab", Message: fmt.Sprintf("no open tab %q", id)}
	}
	w.update(func(s *State) { s.ActiveTabID = id })
	return nil
}

// Content returns the edited content of an open file.
func (w *Workspace) Content(p string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.state.FileContents[p]
	return c, ok
}

// CloseTab closes id. Closing the active tab activates the last remaining one.
func (w *Workspace) CloseTab(id string) {
	w.update(func(s *State) {
		i, ok := s.tab(id)
		if !ok {
			return
		}
		closed := s.OpenTabs[i]
		s.OpenTabs = append(s.OpenTabs[:i:i], s.OpenTabs[i+1:]...)
		delete(s.FileContents, closed.Path)
		delete(s.OriginalContents, closed.Path)
		if s.ActiveTabID == id {
			s.ActiveTabID = ""
			if n := len(s.OpenTabs); n > 0 {
				s.ActiveTabID = s.OpenTabs[n-1].ID
			}
		}
	})
}

// CloseAll closes every tab and drops their contents.
func (w *Workspace) CloseAll() {
	w.update(func(s *State) {
		s.OpenTabs = nil
		s.ActiveTabID = ""
		s.FileContents = map[string]string{}
		s.OriginalContents = map[string]string{}
		s.ShowDiff = false
	})
	w.notes.Success("All tabs closed")
}

// Edit replaces the content of the active file. The tab is dirty while
// the content differs from what was loaded or last saved.
func (w *Workspace) Edit(content string) error {
	w.mu.Lock()
	tab, ok := w.activeLocked()
	w.mu.Unlock()
	if !ok {
		return ErrNoFile
	}
	w.update(func(s *State) {
		s.FileContents[tab.Path] = content
		if i, ok := s.tab(tab.ID); ok {
			s.OpenTabs[i].IsDirty = content != s.OriginalContents[tab.Path]
		}
	})
	return nil
}

// SaveFile writes p, or the active file when p is empty, and marks it clean.
func (w *Workspace) SaveFile(ctx context.Context, p string) error {
	w.mu.Lock()
	if p == "" {
		if tab, ok := w.activeLocked(); ok {
			p = tab.Path
		}
	}
	content, ok := w.state.FileContents[p]
	w.mu.Unlock()
	if p == "" || !ok {
		return ErrNoFile
	}

	if err := w.backend.WriteFile(ctx, p, content); err != nil {
		w.notes.Error("Failed to save file")
		return err
	}
	w.update(func(s *State) {
		s.OriginalContents[p] = content
		if i, ok := s.tabByPath(p); ok {
			s.OpenTabs[i].IsDirty = false
		}
	})
	w.notes.Success("File saved successfully")
	return nil
}

// Revert drops unsaved edits to the active file.
func (w *Workspace) Revert() error {
	w.mu.Lock()
	tab, ok := w.activeLocked()
	w.mu.Unlock()
	if !ok {
		return ErrNoFile
	}
	w.update(func(s *State) {
		s.FileContents[tab.Path] = s.OriginalContents[tab.Path]
		if i, ok := s.tab(tab.ID); ok {
			s.OpenTabs[i].IsDirty = false
		}
		s.ShowDiff = false
	})
	return nil
}

// Diff compares the loaded and edited versions of p, or the active file.
func (w *Workspace) Diff(p string) ([]DiffLine, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p == "" {
		if tab, ok := w.activeLocked(); ok {
			p = tab.Path
		}
	}
	edited, ok := w.state.FileContents[p]
	if !ok {
		return nil, ErrNoFile
	}
	return LineDiff(w.state.OriginalContents[p], edited), nil
}

// ToggleDiff flips the diff flag.
func (w *Workspace) ToggleDiff() bool {
	var on bool
	w.update(func(s *State) {
		s.ShowDiff = !s.ShowDiff
		on = s.ShowDiff
	})
	return on
}

// CreateFile creates an empty file named name under dir and opens it.
func (w *Workspace) CreateFile(ctx context.Context, dir, name string) (Tab, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tab{}, &internal.ValidationError{Field: "filename", Message: "is required"}
	}
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if err := w.backend.CreateFile(ctx, api.CreateFileInput{Path: dir, Filename: name}); err != nil {
		w.notes.Error("Failed to create file")
		return Tab{}, err
	}
	w.notes.Success(fmt.Sprintf("File %q created successfully", name))
	_, _ = w.LoadFiles(ctx)
	return w.OpenFile(ctx, path.Join(dir, name))
}

// Expanded reports whether folder p is open in the tree.
func (w *Workspace) Expanded(p string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.state.ExpandedFolders {
		if f == p {
			return true
		}
	}
	return false
}

// ToggleFolder opens or closes folder p.
func (w *Workspace) ToggleFolder(p string) {
	w.update(func(s *State) {
		for i, f := range s.ExpandedFolders {
			if f == p {
				s.ExpandedFolders = append(s.ExpandedFolders[:i:i], s.ExpandedFolders[i+1:]...)
				return
			}
		}
		s.ExpandedFolders = append(s.ExpandedFolders, p)
	})
}

// CollapseAll closes every folder.
func (w *Workspace) CollapseAll() {
	w.update(func(s *State) { s.ExpandedFolders = nil })
	w.notes.Success("All folders collapsed")
}

// ExpandAll opens every folder in the loaded listing.
func (w *Workspace) ExpandAll() {
	w.mu.Lock()
	folders := folderPaths(w.files)
	w.mu.Unlock()
	w.update(func(s *State) { s.ExpandedFolders = folders })
	w.notes.Success("All folders expanded")
}

func folderPaths(files []api.WorkspaceFile) []string {
	seen := map[string]bool{}
	for _, f := range files {
		if f.Type == "directory" || f.Type == "folder" {
			seen[strings.Trim(f.Path, "/")] = true
		}
		for dir := path.Dir(strings.Trim(f.Path, "/")); dir != "." && dir != "/"; dir = path.Dir(dir) {
			seen[dir] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Search runs a semantic search over the active workspace.
func (w *Workspace) Search(ctx context.Context, query string) ([]api.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	w.mu.Lock()
	ws := w.state.ActiveWorkspace
	w.mu.Unlock()
	results, err := w.backend.SemanticSearch(ctx, query, ws)
	if err != nil {
		w.notes.Error("Search failed")
		return nil, err
	}
	return results, nil
}

// Run executes command in the terminal panel and returns the appended output.
func (w *Workspace) Run(ctx context.Context, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	var appended string
	out, err := w.backend.ShellExec(ctx, command)
	if err != nil {
		detail := "Command failed"
		var apiErr *internal.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
		appended = fmt.Sprintf("\n$ %s\nError: %s", command, detail)
	} else {
		appended = fmt.Sprintf("\n$ %s\n%s", command, out)
	}
	w.update(func(s *State) {
		s.TerminalOutput += appended
		s.TerminalCommand = ""
	})
	return appended
}

// ClearTerminal empties the terminal panel.
func (w *Workspace) ClearTerminal() {
	w.update(func(s *State) { s.TerminalOutput = "" })
}

// OpenProject switches the assistant's context to a project workspace.
func (w *Workspace) OpenProject(ctx context.Context, id string) error {
	project, err := w.backend.GetProject(ctx, id)
	if err != nil {
		w.notes.Error("Failed to open project workspace")
		return err
	}
	w.mu.Lock()
	w.project = &project
	w.mu.Unlock()
	w.update(func(s *State) { s.ActiveWorkspace = "project-" + id })
	w.notes.Success("Switched to project workspace")
	return nil
}

// Ask sends text to the assistant as an ai_chat task. The reply arrives
// on the channel; a second question before it does returns ErrThinking.
func (w *Workspace) Ask(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return &internal.ValidationError{Field: "message", Message: "must not be empty"}
	}

	w.mu.Lock()
	if w.state.AIThinking {
		w.mu.Unlock()
		return ErrThinking
	}
	taskCtx := map[string]any{
		"type":       "ai_chat",
		"activeFile": nil,
		"workspace":  w.state.ActiveWorkspace,
	}
	if tab, ok := w.activeLocked(); ok {
		taskCtx["activeFile"] = tab.Path
	}
	if w.project != nil {
		content = fmt.Sprintf("About project %q: %s", w.project.Name, content)
		taskCtx["project"] = *w.project
	}
	w.state.AssistantMessages = append(w.state.AssistantMessages, internal.ConversationTurn{
		Role:      internal.RoleUser,
		Content:   content,
		Timestamp: w.now(),
	})
	w.state.AIThinking = true
	w.persistLocked()
	w.mu.Unlock()
	w.changed()

	resp, err := w.backend.CreateTask(ctx, api.CreateTaskRequest{Description: content, Context: taskCtx})
	if err != nil {
		w.notes.Error("Aetherium agent error: " + err.Error())
		w.update(func(s *State) {
			s.AIThinking = false
			s.CurrentAITaskID = ""
		})
		return err
	}

	taskID := resp.Identifier()
	direct := resp.Direct()
	w.update(func(s *State) {
		if direct {
			s.AssistantMessages = append(s.AssistantMessages, internal.ConversationTurn{
				Role:      internal.RoleAssistant,
				Content:   resp.Response,
				Timestamp: w.now(),
				TaskID:    taskID,
			})
			s.AIThinking = false
			return
		}
		s.CurrentAITaskID = taskID
	})
	if !direct && taskID != "" && w.channel != nil {
		if err := w.channel.SubscribeTask(taskID); err != nil {
			internal.LogWarn("subscribe_task %s not sent: %v", taskID, err)
		}
	}
	return nil
}

// StopThinking gives up on the pending answer so a new question can be asked.
func (w *Workspace) StopThinking() {
	w.update(func(s *State) {
		s.AIThinking = false
		s.CurrentAITaskID = ""
	})
}

// Messages returns the assistant conversation.
func (w *Workspace) Messages() []internal.ConversationTurn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return internal.CloneTurns(w.state.AssistantMessages)
}

// Thinking reports whether the assistant is answering.
func (w *Workspace) Thinking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.AIThinking
}

// Clear resets the workspace and removes the persisted blob.
func (w *Workspace) Clear() {
	w.mu.Lock()
	w.state = NewState()
	w.project = nil
	if w.store != nil {
		if err := w.store.Delete(internal.KeyWorkspaceState); err != nil {
			internal.LogWarn("Failed to clear workspace state: %v", err)
		}
	}
	w.mu.Unlock()
	w.changed()
	w.notes.Success("Workspace state cleared")
}
