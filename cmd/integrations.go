package cmd

import (
	"context"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
)

var (
	integrationType   string
	integrationConfig map[string]string
)

// integrationsCmd represents the integrations screen
var integrationsCmd = &cobra.Command{
	Use:   "integrations",
	Short: "Third-party integrations",
}

var integrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			list, err := a.client.ListIntegrations(ctx)
			if err != nil {
				a.notes.Error("Failed to load integrations")
				return err
			}
			if len(list) == 0 {
				empty(a.out, "integrations")
				return nil
			}
			heading(a.out, "Found %d integration(s)", len(list))
			t := newTable(a.out, "ID", "Name", "Type", "Status", "Created")
			for _, in := range list {
				t.row(idStyle.Render(in.ID.String()), in.Name, in.Type, statusStyle(in.Status), whenString(in.CreatedAt))
			}
			t.flush()
			return nil
		})
	},
}

var integrationsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Add an integration",
	Long: `Add an integration. Settings are passed as repeated --set key=value
flags and sent as the integration's config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(integrationType) == "" {
			return &internal.ValidationError{Field: "type", Message: "is required"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			in := api.Integration{Name: args[0], Type: integrationType}
			if len(integrationConfig) > 0 {
				in.Config = make(map[string]any, len(integrationConfig))
				for k, v := range integrationConfig {
					in.Config[k] = v
				}
			}
			created, err := a.client.CreateIntegration(ctx, in)
			if err != nil {
				a.notes.Error("Failed to create integration")
				return err
			}
			a.notes.Success("Integration created successfully")
			field(a.out, "Integration", created.ID.String())
			return nil
		})
	},
}

var integrationsSyncCmd = &cobra.Command{
	Use:   "sync <integration-id>",
	Short: "Sync an integration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			err := internal.ShowProgress(ctx, "Syncing integration", func() error {
				return a.client.SyncIntegration(ctx, args[0])
			})
			if err != nil {
				a.notes.Error("Failed to sync integration")
				return err
			}
			a.notes.Success("Integration synced successfully")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(integrationsCmd)
	integrationsCmd.AddCommand(integrationsListCmd, integrationsCreateCmd, integrationsSyncCmd)
	integrationsCreateCmd.Flags().StringVarP(&integrationType, "type", "t", "", "Integration type (slack, jira, webhook, ...)")
	integrationsCreateCmd.Flags().StringToStringVar(&integrationConfig, "set", nil, "Config entry as key=value (repeatable)")
}
