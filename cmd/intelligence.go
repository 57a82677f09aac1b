package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var analysisType string

// intelligenceCmd represents the code intelligence screen
var intelligenceCmd = &cobra.Command{
	Use:   "intelligence",
	Short: "Code intelligence analyses",
}

var intelligenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			analyses, err := a.client.ListAnalyses(ctx)
			if err != nil {
				a.notes.Error("Failed to load analyses")
				return err
			}
			if len(analyses) == 0 {
				empty(a.out, "analyses")
				return nil
			}
			heading(a.out, "Found %d analysis(es)", len(analyses))
			t := newTable(a.out, "ID", "Type", "Target", "Status", "Created")
			for _, an := range analyses {
				t.row(idStyle.Render(an.ID.String()), an.Type, clip(an.Target, 40), statusStyle(an.Status), whenString(an.CreatedAt))
			}
			t.flush()
			return nil
		})
	},
}

var intelligenceAnalyzeCmd = &cobra.Command{
	Use:   "analyze <target>",
	Short: "Analyze a file, repository or snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			an, err := a.client.Analyze(ctx, api.AnalyzeInput{Type: analysisType, Target: args[0]})
			if err != nil {
				a.notes.Error("Analysis failed")
				return err
			}
			a.notes.Success("Analysis complete")
			field(a.out, "Analysis", an.ID.String())
			field(a.out, "Status", statusStyle(an.Status))
			if len(an.Results) == 0 {
				return nil
			}
			fmt.Fprintln(a.out)
			return printResults(a, an.Results)
		})
	},
}

// printResults renders free-form analysis results as YAML, which reads
// better than JSON for nested maps.
func printResults(a *app, results map[string]any) error {
	// round-trip through JSON so numbers keep their wire form
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func init() {
	rootCmd.AddCommand(intelligenceCmd)
	intelligenceCmd.AddCommand(intelligenceListCmd, intelligenceAnalyzeCmd)
	intelligenceAnalyzeCmd.Flags().StringVar(&analysisType, "type", "code_quality", "Analysis type")
}
