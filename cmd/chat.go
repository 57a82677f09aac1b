package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/chat"
	"github.com/aetherium/aetherium-cli/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	chatTimeout time.Duration
	chatNew     bool
)

var (
	userMessageStyle      = titleStyle
	assistantMessageStyle = headerStyle.Padding(0)
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat view",
	Long: `Chat with the Aetherium assistant.

Messages become backend tasks; replies stream in over the realtime channel.
The conversation survives restarts and can be saved to history.

Inside the view type /help for commands (save, history, run code blocks, ...).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !internal.IsTerminal() {
			return fmt.Errorf("the chat view needs a terminal; use `aetherium chat send` instead")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.quiet()
			internal.SetQuiet()
			a.start(ctx)

			session := newChatSession(a)
			session.Attach()
			defer session.Detach()
			if chatNew {
				session.StartNew()
			}

			model := tui.New(ctx, tui.Options{
				Session: session,
				Notes:   a.notes,
				Status:  a.channel.State,
				Theme:   tui.LoadTheme(a.store),
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			_, err := p.Run()
			internal.SetVerbose(verbose)
			return err
		})
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.connect(ctx)
			session := newChatSession(a)
			session.Attach()
			defer session.Detach()

			reply, err := sendAndWait(ctx, session, text, chatTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, assistantMessageStyle.Render("Aetherium"))
			fmt.Fprintln(a.out, reply.Content)
			if blocks := chat.CodeBlocks(reply.Content); len(blocks) > 0 {
				fmt.Fprintln(a.out, idStyle.Render(fmt.Sprintf("%d code block(s); open `aetherium chat` and use /run to execute", len(blocks))))
			}
			return nil
		})
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printTurns(a, newChatSession(a).Turns())
			return nil
		})
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current conversation (history is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			newChatSession(a).Clear()
			a.notes.Success("Conversation cleared")
			return nil
		})
	},
}

var chatSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current conversation to history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if !newChatSession(a).SaveCurrent() {
				a.notes.Info("Nothing to save yet")
			}
			return nil
		})
	},
}

var chatCopyCmd = &cobra.Command{
	Use:   "copy [message-number]",
	Short: "Copy a message, or the whole conversation, to the clipboard",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			session := newChatSession(a)
			if len(args) == 0 {
				return session.CopyConversation()
			}
			var n int
			if _, err := fmt.Sscan(args[0], &n); err != nil {
				return &internal.ValidationError{Field: "message-number", Message: "must be a number"}
			}
			return session.CopyMessage(n - 1)
		})
	},
}

func newChatSession(a *app) *chat.Session {
	return chat.New(chat.Deps{
		Backend: a.client,
		Channel: a.channel,
		Store:   a.store,
		Notes:   a.notes,
		Logs:    a.logs,
	})
}

// sendAndWait submits text and blocks until the reply lands, the timeout
// passes or ctx ends. On timeout the session stops waiting so the next
// message is not refused.
func sendAndWait(ctx context.Context, session *chat.Session, text string, timeout time.Duration) (internal.ConversationTurn, error) {
	changed := make(chan struct{}, 1)
	session.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	start := len(session.Turns())
	if err := session.Submit(ctx, text); err != nil {
		return internal.ConversationTurn{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for session.Awaiting() {
		select {
		case <-changed:
		case <-timer.C:
			session.StopWaiting()
			return internal.ConversationTurn{}, fmt.Errorf("no reply within %s", timeout)
		case <-ctx.Done():
			session.StopWaiting()
			return internal.ConversationTurn{}, ctx.Err()
		}
	}

	turns := session.Turns()
	for i := len(turns) - 1; i >= start; i-- {
		if turns[i].Role == internal.RoleAssistant && !turns[i].Pending() {
			return turns[i], nil
		}
	}
	return internal.ConversationTurn{}, fmt.Errorf("task finished without output")
}

func printTurns(a *app, turns []internal.ConversationTurn) {
	if len(turns) == 0 {
		fmt.Fprintln(a.out, idStyle.Render("No messages yet"))
		return
	}
	for i, t := range turns {
		label := assistantMessageStyle.Render(t.Speaker())
		if t.Role == internal.RoleUser {
			label = userMessageStyle.Render(t.Speaker())
		}
		stamp := ""
		if !t.Timestamp.IsZero() {
			stamp = " " + dateStyle.Render(t.Timestamp.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(a.out, "%s %s%s\n", idStyle.Render(fmt.Sprintf("#%d", i+1)), label, stamp)
		content := t.Content
		if t.Pending() {
			content = idStyle.Render("(waiting for reply)")
		}
		fmt.Fprintln(a.out, content)
		fmt.Fprintln(a.out)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatSendCmd, chatShowCmd, chatClearCmd, chatSaveCmd, chatCopyCmd)
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Save the current conversation and start a new one")
	chatSendCmd.Flags().DurationVar(&chatTimeout, "timeout", 2*time.Minute, "How long to wait for the reply")
}
