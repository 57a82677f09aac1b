package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/logstore"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	logsLimit int
	logsLevel string
)

var levelStyles = map[logstore.Level]lipgloss.Style{
	logstore.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	logstore.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	logstore.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	logstore.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// logsCmd represents the logging screen: the client-side event log kept
// across invocations in the state database.
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Client event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logsShowCmd.RunE(cmd, args)
	},
}

var logsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the newest log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			entries := a.logs.Recent(logsLimit)
			if logsLevel != "" {
				threshold, err := logstore.ParseLevel(logsLevel)
				if err != nil {
					return &internal.ValidationError{Field: "level", Message: err.Error()}
				}
				entries = filterLevel(entries, threshold)
			}
			printEntries(a.out, entries)
			return nil
		})
	},
}

var logsQueryCmd = &cobra.Command{
	Use:   "query <level>",
	Short: "Print every entry at or above a level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := logstore.ParseLevel(args[0])
		if err != nil {
			return &internal.ValidationError{Field: "level", Message: err.Error()}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printEntries(a.out, a.logs.Query(threshold))
			return nil
		})
	},
}

var logsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the log as JSON to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 0 {
				return a.logs.Export(a.out)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return &internal.ExportError{Format: "json", Path: args[0], Err: err}
			}
			if err := a.logs.Export(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return &internal.ExportError{Format: "json", Path: args[0], Err: err}
			}
			internal.PrintSuccess(fmt.Sprintf("Exported %d log entries to %s", a.logs.Len(), args[0]))
			return nil
		})
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.logs.Clear()
			a.notes.Success("Logs cleared")
			return nil
		})
	},
}

var logsLevelCmd = &cobra.Command{
	Use:   "level [DEBUG|INFO|WARN|ERROR]",
	Short: "Show or set the recording threshold",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 0 {
				field(a.out, "Level", a.logs.Level().String())
				return nil
			}
			l, err := logstore.ParseLevel(args[0])
			if err != nil {
				return &internal.ValidationError{Field: "level", Message: err.Error()}
			}
			if err := a.store.Set(internal.KeyLogLevel, l.String()); err != nil {
				return err
			}
			a.logs.SetLevel(l)
			a.notes.Success("Log level set to " + l.String())
			return nil
		})
	},
}

func filterLevel(entries []logstore.Entry, threshold logstore.Level) []logstore.Entry {
	var out []logstore.Entry
	for _, e := range entries {
		if e.Level >= threshold {
			out = append(out, e)
		}
	}
	return out
}

func printEntries(out io.Writer, entries []logstore.Entry) {
	if len(entries) == 0 {
		empty(out, "log entries")
		return
	}
	for _, e := range entries {
		level := levelStyles[e.Level].Render(fmt.Sprintf("%-5s", e.Level))
		fmt.Fprintf(out, "%s %s %s", dateStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")), level, e.Message)
		if len(e.Data) > 0 {
			if data, err := json.Marshal(e.Data); err == nil {
				fmt.Fprintf(out, " %s", dateStyle.Render(string(data)))
			}
		}
		fmt.Fprintln(out)
	}
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsShowCmd, logsQueryCmd, logsExportCmd, logsClearCmd, logsLevelCmd)
	for _, c := range []*cobra.Command{logsCmd, logsShowCmd} {
		c.Flags().IntVarP(&logsLimit, "limit", "n", logstore.DefaultRecent, "Number of entries to print")
		c.Flags().StringVar(&logsLevel, "level", "", "Only entries at or above this level")
	}
}
