package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/spf13/cobra"
)

var listViews bool

// openCmd navigates by dashboard route. It resolves the route to a view and
// runs the command that renders it; screens that only group subcommands
// open their list.
var openCmd = &cobra.Command{
	Use:   "open [#view]",
	Short: "Open a dashboard view by route",
	Long: `Open a dashboard view by route, such as "#agents" or "security".

Unknown routes open the chat view. Without a route the last opened view is
shown again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listViews {
			t := newTable(cmd.OutOrStdout(), "Route", "View", "Command")
			for _, v := range internal.Views {
				t.row("#"+v.Name, v.Title, "aetherium "+v.Command)
			}
			t.flush()
			return nil
		}

		route := ""
		if len(args) == 1 {
			route = args[0]
		}
		view, err := rememberView(route)
		if err != nil {
			return err
		}
		internal.LogDebug("route %q -> %s", route, view.Name)

		target, err := viewCommand(view)
		if err != nil {
			return err
		}
		target.SetContext(cmd.Context())
		return target.RunE(target, nil)
	},
}

// rememberView resolves route, falling back to the saved view when route is
// empty, and saves the result.
func rememberView(route string) (internal.View, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0755); err != nil {
		return internal.View{}, fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := internal.OpenStore(cfg.StatePath)
	if err != nil {
		return internal.View{}, fmt.Errorf("failed to open state: %w", err)
	}
	defer store.Close()

	if route == "" {
		if last, ok, err := store.Get(internal.KeyLastView); err == nil && ok {
			route = last
		}
	}
	view := internal.ResolveView(route)
	if err := store.Set(internal.KeyLastView, view.Name); err != nil {
		internal.LogWarn("Failed to save view: %v", err)
	}
	return view, nil
}

func viewCommand(view internal.View) (*cobra.Command, error) {
	target, _, err := rootCmd.Find([]string{view.Command})
	if err != nil || target == rootCmd {
		return nil, fmt.Errorf("no command for view %s", view.Name)
	}
	if target.RunE == nil {
		list, _, err := target.Find([]string{"list"})
		if err != nil || list == target || list.RunE == nil {
			return nil, fmt.Errorf("view %s has no default listing", view.Name)
		}
		target = list
	}
	return target, nil
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().BoolVar(&listViews, "list", false, "List the available routes")
}
