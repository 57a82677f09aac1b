package cmd

import (
	"context"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/tui"
	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:   "theme [dark|light|toggle]",
	Short: "Show or change the color theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			current := tui.LoadTheme(a.store)
			if len(args) == 0 {
				field(a.out, "Theme", current)
				return nil
			}
			next := args[0]
			switch next {
			case "toggle":
				next = tui.Toggle(current)
			case tui.ThemeDark, tui.ThemeLight:
			default:
				return &internal.ValidationError{Field: "theme", Message: "must be dark, light or toggle"}
			}
			if err := tui.SaveTheme(a.store, next); err != nil {
				return err
			}
			a.logs.LogUserAction("theme_change", map[string]any{"from": current, "to": next})
			field(a.out, "Theme", next)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
