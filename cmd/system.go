package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	runLanguage      string
	feedbackRating   int
	feedbackCategory string
	feedbackTask     string
	downloadOutput   string
)

// languageByExt maps file extensions to sandbox languages for run.
var languageByExt = map[string]string{
	".py": "python",
	".js": "javascript",
	".ts": "typescript",
	".go": "go",
	".sh": "bash",
	".rb": "ruby",
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend's health",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			h, err := a.client.Health(ctx)
			if err != nil {
				a.notes.Error("Backend unreachable")
				return err
			}
			field(a.out, "Backend", a.client.BaseURL())
			field(a.out, "Status", statusStyle(h.Status))
			if h.Version != "" {
				field(a.out, "Version", h.Version)
			}
			if len(h.Details) > 0 {
				printReply(a.out, h.Details)
			}
			return nil
		})
	},
}

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show information about the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			info, err := a.client.About(ctx)
			if err != nil {
				return err
			}
			field(a.out, "Client", fmt.Sprintf("aetherium %s (%s)", version, commit))
			printReply(a.out, info)
			return nil
		})
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a shell command on the backend host",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.logs.LogUserAction("shell_exec", map[string]any{"command": command})
			out, err := a.client.ShellExec(ctx, command)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)
			if out != "" && !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(a.out)
			}
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a source file in the backend sandbox",
	Long: `Execute a source file in the backend sandbox. The language is taken
from --language, else guessed from the file extension.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		lang := runLanguage
		if lang == "" {
			lang = languageByExt[strings.ToLower(filepath.Ext(args[0]))]
		}
		if lang == "" {
			return &internal.ValidationError{Field: "language", Message: "cannot be guessed from " + filepath.Base(args[0]) + "; pass --language"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var res api.CodeResult
			err := internal.ShowProgress(ctx, "Running "+filepath.Base(args[0]), func() error {
				var err error
				res, err = a.client.ExecuteCode(ctx, string(code), lang)
				return err
			})
			if err != nil {
				return err
			}
			if out := res.Output(); out != "" {
				fmt.Fprintln(a.out, strings.TrimRight(out, "\n"))
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("exited with status %d", res.ExitCode)
			}
			return nil
		})
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <comment>",
	Short: "Send feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if feedbackRating < 0 || feedbackRating > 5 {
			return &internal.ValidationError{Field: "rating", Message: "must be between 1 and 5"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			err := a.client.SubmitFeedback(ctx, api.Feedback{
				Rating:   feedbackRating,
				Comment:  args[0],
				Category: feedbackCategory,
				TaskID:   feedbackTask,
			})
			if err != nil {
				a.notes.Error("Failed to send feedback")
				return err
			}
			a.notes.Success("Thanks for the feedback")
			return nil
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <filename>",
	Short: "Download a generated artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := downloadOutput
		if dest == "" {
			dest = filepath.Base(args[0])
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			f, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", dest, err)
			}
			n, err := a.client.Download(ctx, args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(dest)
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Saved %s (%s)", dest, humanize.Bytes(uint64(n))))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd, aboutCmd, execCmd, runCmd, feedbackCmd, downloadCmd)
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "", "Sandbox language")
	feedbackCmd.Flags().IntVar(&feedbackRating, "rating", 0, "Rating from 1 to 5")
	feedbackCmd.Flags().StringVar(&feedbackCategory, "category", "general", "Feedback category")
	feedbackCmd.Flags().StringVar(&feedbackTask, "task", "", "Task the feedback is about")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Destination file")
}
