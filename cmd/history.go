package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/chat"
	"github.com/aetherium/aetherium-cli/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved chats",
	Long:  `List, view, load, delete and export chats saved to history.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			saved := newChatSession(a).SavedChats()
			if len(saved) == 0 {
				empty(a.out, "saved chats")
				return nil
			}
			heading(a.out, "Found %d saved chat(s)", len(saved))
			t := newTable(a.out, "ID", "Title", "Messages", "Saved")
			for _, c := range saved {
				t.row(idStyle.Render(c.ID), clip(c.Title, 50), countStyle.Render(strconv.Itoa(len(c.Messages))), when(c.Timestamp))
			}
			t.flush()
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, idStyle.Render("Tip: `aetherium history load <id>` reopens a chat"))
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			c, err := findSaved(newChatSession(a), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(c.Title))
			fmt.Fprintln(a.out, dateStyle.Render(fmt.Sprintf("Saved %s · %d messages", c.Timestamp.Local().Format("2006-01-02 15:04"), len(c.Messages))))
			fmt.Fprintln(a.out)
			printTurns(a, c.Messages)
			return nil
		})
	},
}

var historyLoadCmd = &cobra.Command{
	Use:   "load <chat-id>",
	Short: "Make a saved chat the current conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := newChatSession(a).LoadChat(args[0]); err != nil {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Remove a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			session := newChatSession(a)
			if _, err := findSaved(session, args[0]); err != nil {
				return err
			}
			session.DeleteChat(args[0])
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every saved chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.store.Delete(internal.KeySavedChats); err != nil {
				return err
			}
			a.notes.Success("Chat history cleared")
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [chat-id]",
	Short: "Export saved chats to files",
	Long: `Export saved chats to jsonl, md, yaml or json files.

Without an id every saved chat is exported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			session := newChatSession(a)
			chats := session.SavedChats()
			if len(args) == 1 {
				c, err := findSaved(session, args[0])
				if err != nil {
					return err
				}
				chats = []internal.SavedChat{c}
			}
			if len(chats) == 0 {
				empty(a.out, "saved chats")
				return nil
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			var written int
			err := internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d chat(s)", len(chats)), func() error {
				for i := range chats {
					path, err := writeExport(&chats[i], exporter)
					if err != nil {
						return err
					}
					internal.LogDebug("exported %s", path)
					written++
				}
				return nil
			})
			if err != nil {
				return err
			}
			a.logs.LogUserAction("history_export", map[string]any{"format": format, "count": written})
			internal.PrintSuccess(fmt.Sprintf("Exported %d chat(s) to %s", written, outputDir))
			return nil
		})
	},
}

func writeExport(c *internal.SavedChat, exporter export.Exporter) (string, error) {
	path := filepath.Join(outputDir, export.Filename(c, exporter))
	f, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	defer f.Close()
	if err := exporter.Export(c, f); err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return path, nil
}

func findSaved(session *chat.Session, id string) (internal.SavedChat, error) {
	for _, c := range session.SavedChats() {
		if c.ID == id {
			return c, nil
		}
	}
	return internal.SavedChat{}, fmt.Errorf("%w: %s", chat.ErrChatNotFound, id)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyLoadCmd, historyDeleteCmd, historyClearCmd, historyExportCmd)
	historyExportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	historyExportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
}
