package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/chat"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	footerLines   = 3
	statusEvery   = time.Second
	defaultWidth  = 80
	defaultHeight = 24
)

// Options configure the chat model.
type Options struct {
	Session *chat.Session
	Notes   *notify.Broker
	// Status reports the realtime connection state for the indicator.
	Status func() realtime.State
	Theme  string
}

type sessionChangedMsg struct{}

type notesChangedMsg []notify.Notification

type statusTickMsg struct{}

type submitDoneMsg struct{ err error }

type terminalMsg string

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx      context.Context
	session  *chat.Session
	notes    *notify.Broker
	status   func() realtime.State
	events   chan tea.Msg
	styles   Styles
	markdown Markdown

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width    int
	height   int
	state    realtime.State
	notices  []notify.Notification
	terminal []string
	showHelp bool
}

// New builds the chat model. Session and note changes made on other
// goroutines reach the model through an internal event channel.
func New(ctx context.Context, opts Options) Model {
	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "Message Aetherium… (/help for commands)"
	input.CharLimit = 8000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := opts.Theme
	if theme == "" {
		theme = ThemeDark
	}
	status := opts.Status
	if status == nil {
		status = func() realtime.State { return realtime.Disconnected }
	}
	notes := opts.Notes
	if notes == nil {
		notes = notify.NewBroker()
	}

	m := Model{
		ctx:      ctx,
		session:  opts.Session,
		notes:    notes,
		status:   status,
		events:   make(chan tea.Msg, 64),
		styles:   NewStyles(theme),
		input:    input,
		viewport: viewport.New(defaultWidth, defaultHeight-footerLines-4),
		spinner:  sp,
		width:    defaultWidth,
		height:   defaultHeight,
		state:    status(),
		notices:  notes.List(),
	}
	m.spinner.Style = m.styles.Assistant
	m.markdown = NewMarkdown(theme, defaultWidth-4)

	events := m.events
	post := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	}
	opts.Session.OnChange(func() { post(sessionChangedMsg{}) })
	notes.OnChange(func(list []notify.Notification) { post(notesChangedMsg(list)) })
	m.refresh()
	return m
}

func waitEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(statusEvery, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// Init starts the cursor, spinner, event pump and status poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitEvent(m.events), statusTick())
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-footerLines-4)
		m.input.Width = max(10, msg.Width-6)
		m.markdown = NewMarkdown(m.styles.Theme, msg.Width-4)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			return m, m.handleInput(text)
		}

	case sessionChangedMsg:
		m.refresh()
		return m, waitEvent(m.events)

	case notesChangedMsg:
		m.notices = msg
		return m, waitEvent(m.events)

	case statusTickMsg:
		m.state = m.status()
		return m, statusTick()

	case submitDoneMsg:
		switch {
		case errors.Is(msg.err, chat.ErrAwaiting):
			m.notes.Warning("Please wait for the current response")
		case internal.IsValidation(msg.err):
		case msg.err != nil:
			m.notes.Error(msg.err.Error())
		}
		return m, nil

	case terminalMsg:
		m.terminal = append(m.terminal, string(msg))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.session.Awaiting() {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleInput(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil
	case strings.HasPrefix(text, "!"):
		return m.shellCmd(strings.TrimSpace(text[1:]))
	case strings.HasPrefix(text, "/"):
		return m.command(text)
	}
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: session.Submit(ctx, text)}
	}
}

func (m *Model) shellCmd(command string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return terminalMsg(session.Shell(ctx, command))
	}
}

// command runs a slash command. Errors surface as notifications.
func (m *Model) command(text string) tea.Cmd {
	fields := strings.Fields(text)
	name, args := fields[0], fields[1:]
	s := m.session

	switch name {
	case "/quit", "/exit":
		return tea.Quit
	case "/help":
		m.showHelp = !m.showHelp
	case "/save":
		if !s.SaveCurrent() {
			m.notes.Info("Nothing to save yet")
		}
	case "/new":
		s.StartNew()
		m.terminal = nil
	case "/clear":
		s.Clear()
		m.terminal = nil
	case "/stop":
		s.StopWaiting()
	case "/history":
		m.terminal = append(m.terminal, historyListing(s.SavedChats()))
	case "/load", "/delete":
		if len(args) != 1 {
			m.notes.Warning("Usage: " + name + " <chat-id>")
			break
		}
		if name == "/delete" {
			s.DeleteChat(args[0])
		} else if err := s.LoadChat(args[0]); err != nil {
			m.notes.Error("Chat not found")
		}
	case "/copy":
		if len(args) == 0 {
			_ = s.CopyConversation()
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || s.CopyMessage(n-1) != nil {
			m.notes.Warning("Usage: /copy [message-number]")
		}
	case "/run":
		return m.runBlock(args)
	case "/export":
		return m.exportBlock(args)
	default:
		m.notes.Warning("Unknown command " + name)
	}
	m.refresh()
	return nil
}

// lastBlock finds code block n (1-based) of the latest assistant reply.
func (m *Model) lastBlock(n int) (chat.CodeBlock, bool) {
	turns := m.session.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != internal.RoleAssistant || turns[i].Pending() {
			continue
		}
		blocks := chat.CodeBlocks(turns[i].Content)
		if n < 1 || n > len(blocks) {
			return chat.CodeBlock{}, false
		}
		return blocks[n-1], true
	}
	return chat.CodeBlock{}, false
}

func (m *Model) runBlock(args []string) tea.Cmd {
	n := 1
	if len(args) > 0 {
		n, _ = strconv.Atoi(args[0])
	}
	blk, ok := m.lastBlock(n)
	if !ok {
		m.notes.Warning("No such code block")
		return nil
	}
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		res, _ := session.RunCode(ctx, blk.Code, blk.Language)
		return terminalMsg(fmt.Sprintf("\n▶ %s block #%d (exit %d)\n%s", blk.Language, n, res.ExitCode, res.Output()))
	}
}

func (m *Model) exportBlock(args []string) tea.Cmd {
	if len(args) == 0 {
		m.notes.Warning("Usage: /export <block-number> [filename] [dir]")
		return nil
	}
	n, _ := strconv.Atoi(args[0])
	blk, ok := m.lastBlock(n)
	if !ok {
		m.notes.Warning("No such code block")
		return nil
	}
	filename := chat.DefaultExportName(blk.Language, time.Now())
	if len(args) > 1 {
		filename = args[1]
	}
	dir := ""
	if len(args) > 2 {
		dir = args[2]
	}
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		_ = session.ExportCode(ctx, filename, dir, blk.Code)
		return nil
	}
}

func historyListing(saved []internal.SavedChat) string {
	if len(saved) == 0 {
		return "No saved chats"
	}
	var b strings.Builder
	b.WriteString("Saved chats:")
	for _, c := range saved {
		fmt.Fprintf(&b, "\n  %s  %s  (%d messages)", c.ID, c.Title, len(c.Messages))
	}
	return b.String()
}

const helpText = `Commands:
  /save                 save this chat to history
  /new                  save and start a new chat
  /clear                clear the conversation
  /history              list saved chats
  /load <id>            open a saved chat
  /delete <id>          remove a saved chat
  /copy [n]             copy message n, or the whole conversation
  /run [n]              run code block n of the last reply
  /export <n> [file]    export code block n to the workspace
  /stop                 stop waiting for a reply
  !<command>            run a shell command on the backend
  /quit                 exit`

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	pending := m.spinner.View() + " Thinking…"
	content := RenderTurns(m.session.Turns(), m.styles, m.markdown, m.viewport.Width-2, pending)
	for _, t := range m.terminal {
		content += "\n" + m.styles.Terminal.Render(strings.TrimPrefix(t, "\n"))
	}
	if m.showHelp {
		content += "\n" + m.styles.Muted.Render(helpText)
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if atBottom || m.session.Awaiting() {
		m.viewport.GotoBottom()
	}
}

// View draws the screen.
func (m Model) View() string {
	header := StatusLine(m.state, m.session.ChatID(), m.styles)
	input := m.styles.Input.Width(max(10, m.width-2)).Render(m.input.View())
	footer := Footer(m.notices, footerLines, m.width)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), input, footer)
}
