package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/workspace"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	wsDir       string
	wsFromFile  string
	wsCloseAll  bool
	wsProject   string
	askTimeout  time.Duration
	wsClearTerm bool
)

var (
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dirtyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// workspaceCmd represents the workspace screen
var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Workspace files, tabs, terminal and AI assistant",
	Long: `Work with the backend workspace.

Open files become tabs whose edits are kept locally until saved. The
terminal output and the assistant conversation are kept between runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printWorkspaceSummary(a.out, newWorkspace(a))
			return nil
		})
	},
}

var wsFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "List workspace files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			files, err := ws.LoadFiles(ctx)
			if err != nil {
				return err
			}
			printFiles(a.out, files, ws.Expanded)
			return nil
		})
	},
}

var wsGeneratedCmd = &cobra.Command{
	Use:   "generated",
	Short: "List files produced by completed tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			files, err := newWorkspace(a).LoadGenerated(ctx)
			if err != nil {
				return err
			}
			printFiles(a.out, files, nil)
			return nil
		})
	},
}

var wsOpenCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Open a file in a tab and print its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			tab, err := ws.OpenFile(ctx, args[0])
			if err != nil {
				return err
			}
			content, _ := ws.Content(tab.Path)
			fmt.Fprintln(a.out, headerStyle.Render(tab.Name)+" "+idStyle.Render(tab.Language))
			fmt.Fprintln(a.out, content)
			return nil
		})
	},
}

var wsTabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List open tabs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printTabs(a.out, newWorkspace(a))
			return nil
		})
	},
}

var wsActivateCmd = &cobra.Command{
	Use:   "activate <tab-id|path>",
	Short: "Switch to an open tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			return ws.Activate(resolveTab(ws, args[0]))
		})
	},
}

var wsCloseCmd = &cobra.Command{
	Use:   "close [tab-id|path]",
	Short: "Close a tab (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			if wsCloseAll {
				ws.CloseAll()
				return nil
			}
			id := ""
			if len(args) == 1 {
				id = resolveTab(ws, args[0])
			} else if tab, ok := ws.ActiveTab(); ok {
				id = tab.ID
			}
			if id == "" {
				return workspace.ErrNoFile
			}
			ws.CloseTab(id)
			return nil
		})
	},
}

var wsEditCmd = &cobra.Command{
	Use:   "edit [path]",
	Short: "Replace the content of a tab from a file or stdin",
	Long: `Replace the edited content of a tab. The new content is read from
--from-file or, without it, from stdin. Nothing is written to the backend
until "workspace save".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if wsFromFile != "" {
			data, err = os.ReadFile(wsFromFile)
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read new content: %w", err)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			if len(args) == 1 {
				if _, err := ws.OpenFile(ctx, args[0]); err != nil {
					return err
				}
			}
			if err := ws.Edit(string(data)); err != nil {
				return err
			}
			if tab, ok := ws.ActiveTab(); ok && tab.IsDirty {
				fmt.Fprintln(a.out, dirtyStyle.Render("● ")+tab.Path+idStyle.Render(" has unsaved changes"))
			}
			return nil
		})
	},
}

var wsDiffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Show unsaved changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p := ""
			if len(args) == 1 {
				p = args[0]
			}
			lines, err := newWorkspace(a).Diff(p)
			if err != nil {
				return err
			}
			printDiff(a.out, lines)
			return nil
		})
	},
}

var wsSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Write a tab back to the workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p := ""
			if len(args) == 1 {
				p = args[0]
			}
			return newWorkspace(a).SaveFile(ctx, p)
		})
	},
}

var wsRevertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Drop unsaved changes to the active tab",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return newWorkspace(a).Revert()
		})
	},
}

var wsNewCmd = &cobra.Command{
	Use:   "new <filename>",
	Short: "Create an empty file and open it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			_, err := newWorkspace(a).CreateFile(ctx, wsDir, args[0])
			return err
		})
	},
}

var wsFoldersCmd = &cobra.Command{
	Use:       "folders [expand|collapse|toggle <path>]",
	Short:     "Show or change expanded folders",
	Args:      cobra.MaximumNArgs(2),
	ValidArgs: []string{"expand", "collapse", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			switch {
			case len(args) == 0:
			case args[0] == "expand":
				if _, err := ws.LoadFiles(ctx); err != nil {
					return err
				}
				ws.ExpandAll()
			case args[0] == "collapse":
				ws.CollapseAll()
			case args[0] == "toggle" && len(args) == 2:
				ws.ToggleFolder(strings.Trim(args[1], "/"))
			default:
				return &internal.ValidationError{Field: "action", Message: "use expand, collapse or toggle <path>"}
			}
			folders := ws.State().ExpandedFolders
			if len(folders) == 0 {
				fmt.Fprintln(a.out, idStyle.Render("No expanded folders"))
			}
			for _, f := range folders {
				fmt.Fprintln(a.out, "▾ "+f+"/")
			}
			return nil
		})
	},
}

var wsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			results, err := newWorkspace(a).Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				empty(a.out, "matches")
				return nil
			}
			t := newTable(a.out, "Score", "Path", "Snippet")
			for _, r := range results {
				t.row(countStyle.Render(fmt.Sprintf("%.2f", r.Score)), r.Path, clip(r.Snippet, 60))
			}
			t.flush()
			return nil
		})
	},
}

var wsRunCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a shell command in the workspace terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := newWorkspace(a).Run(ctx, strings.Join(args, " "))
			fmt.Fprintln(a.out, strings.TrimPrefix(out, "\n"))
			return nil
		})
	},
}

var wsTerminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Print (or clear) the terminal panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ws := newWorkspace(a)
			if wsClearTerm {
				ws.ClearTerminal()
				return nil
			}
			out := ws.State().TerminalOutput
			if out == "" {
				fmt.Fprintln(a.out, idStyle.Render("Terminal is empty"))
				return nil
			}
			fmt.Fprintln(a.out, strings.TrimPrefix(out, "\n"))
			return nil
		})
	},
}

var wsAskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the workspace assistant about the open file or project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.connect(ctx)
			ws := newWorkspace(a)
			ws.Attach()
			defer ws.Detach()
			if wsProject != "" {
				if err := ws.OpenProject(ctx, wsProject); err != nil {
					return err
				}
			}
			reply, err := askAndWait(ctx, ws, strings.Join(args, " "), askTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, assistantMessageStyle.Render("Aetherium"))
			fmt.Fprintln(a.out, reply.Content)
			return nil
		})
	},
}

var wsMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Print the assistant conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printTurns(a, newWorkspace(a).Messages())
			return nil
		})
	},
}

var wsProjectCmd = &cobra.Command{
	Use:   "project <project-id>",
	Short: "Switch the assistant to a project workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return newWorkspace(a).OpenProject(ctx, args[0])
		})
	},
}

var wsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget tabs, edits, terminal output and assistant messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			newWorkspace(a).Clear()
			return nil
		})
	},
}

func newWorkspace(a *app) *workspace.Workspace {
	return workspace.New(workspace.Deps{
		Backend: a.client,
		Channel: a.channel,
		Store:   a.store,
		Notes:   a.notes,
		Logs:    a.logs,
	})
}

// askAndWait asks the assistant and blocks until it answers, the timeout
// passes or ctx ends.
func askAndWait(ctx context.Context, ws *workspace.Workspace, text string, timeout time.Duration) (internal.ConversationTurn, error) {
	changed := make(chan struct{}, 1)
	ws.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	before := len(ws.Messages())
	if err := ws.Ask(ctx, text); err != nil {
		return internal.ConversationTurn{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for ws.Thinking() {
		select {
		case <-changed:
		case <-timer.C:
			ws.StopThinking()
			return internal.ConversationTurn{}, fmt.Errorf("no reply within %s", timeout)
		case <-ctx.Done():
			ws.StopThinking()
			return internal.ConversationTurn{}, ctx.Err()
		}
	}
	msgs := ws.Messages()
	if len(msgs) > before+1 && msgs[len(msgs)-1].Role == internal.RoleAssistant {
		return msgs[len(msgs)-1], nil
	}
	return internal.ConversationTurn{}, fmt.Errorf("assistant finished without a reply")
}

func resolveTab(ws *workspace.Workspace, ref string) string {
	for _, t := range ws.Tabs() {
		if t.ID == ref || t.Path == ref {
			return t.ID
		}
	}
	return ref
}

func printWorkspaceSummary(out io.Writer, ws *workspace.Workspace) {
	st := ws.State()
	field(out, "Workspace", st.ActiveWorkspace)
	field(out, "Open tabs", fmt.Sprint(len(st.OpenTabs)))
	if tab, ok := ws.ActiveTab(); ok {
		field(out, "Active", tab.Path)
	}
	field(out, "Assistant messages", fmt.Sprint(len(st.AssistantMessages)))
	if st.AIThinking {
		field(out, "Assistant", statusStyle("running")+" task "+st.CurrentAITaskID)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render("Tip: `aetherium workspace --help` lists the file, tab and assistant commands"))
}

func printFiles(out io.Writer, files []api.WorkspaceFile, expanded func(string) bool) {
	if len(files) == 0 {
		empty(out, "files")
		return
	}
	heading(out, "Found %d file(s)", len(files))
	t := newTable(out, "Path", "Type", "Size", "Modified")
	for _, f := range files {
		p := f.Path
		if p == "" {
			p = f.Name
		}
		kind := f.Type
		if kind == "directory" || kind == "folder" {
			marker := "▸ "
			if expanded != nil && expanded(strings.Trim(p, "/")) {
				marker = "▾ "
			}
			p = marker + p
		}
		size := ""
		if f.Size > 0 {
			size = humanize.Bytes(uint64(f.Size))
		}
		t.row(p, kind, size, whenString(f.Modified))
	}
	t.flush()
}

func printTabs(out io.Writer, ws *workspace.Workspace) {
	tabs := ws.Tabs()
	if len(tabs) == 0 {
		empty(out, "open tabs")
		return
	}
	active, _ := ws.ActiveTab()
	t := newTable(out, "", "Name", "Path", "Language", "ID")
	for _, tab := range tabs {
		mark := " "
		if tab.ID == active.ID {
			mark = "*"
		}
		name := tab.Name
		if tab.IsDirty {
			name = dirtyStyle.Render("● ") + name
		}
		t.row(mark, name, tab.Path, tab.Language, idStyle.Render(tab.ID))
	}
	t.flush()
}

func printDiff(out io.Writer, lines []workspace.DiffLine) {
	if !workspace.Changed(lines) {
		fmt.Fprintln(out, idStyle.Render("No changes"))
		return
	}
	for _, l := range lines {
		text := l.Prefix() + l.Content
		switch l.Kind {
		case workspace.LineAdded:
			text = addedStyle.Render(text)
		case workspace.LineRemoved:
			text = removedStyle.Render(text)
		}
		fmt.Fprintln(out, text)
	}
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(
		wsFilesCmd, wsGeneratedCmd, wsOpenCmd, wsTabsCmd, wsActivateCmd, wsCloseCmd,
		wsEditCmd, wsDiffCmd, wsSaveCmd, wsRevertCmd, wsNewCmd, wsFoldersCmd,
		wsSearchCmd, wsRunCmd, wsTerminalCmd, wsAskCmd, wsMessagesCmd, wsProjectCmd, wsClearCmd,
	)
	wsNewCmd.Flags().StringVar(&wsDir, "dir", "", "Directory to create the file in")
	wsEditCmd.Flags().StringVar(&wsFromFile, "from-file", "", "Read the new content from this local file")
	wsCloseCmd.Flags().BoolVar(&wsCloseAll, "all", false, "Close every tab")
	wsTerminalCmd.Flags().BoolVar(&wsClearTerm, "clear", false, "Clear the terminal panel")
	wsAskCmd.Flags().StringVar(&wsProject, "project", "", "Ask about this project")
	wsAskCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "How long to wait for the reply")
}
