package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var agentActions = []string{"start", "stop", "restart"}

// agentsCmd represents the agents screen
var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect and control agents",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			agents, err := a.client.ListAgents(ctx)
			if err != nil {
				a.notes.Error("Failed to load agents")
				return err
			}
			if len(agents) == 0 {
				empty(a.out, "agents")
				return nil
			}
			heading(a.out, "Found %d agent(s)", len(agents))
			t := newTable(a.out, "ID", "Type", "Status", "Health", "Version")
			for _, ag := range agents {
				t.row(idStyle.Render(ag.ID.String()), ag.Type, statusStyle(ag.Status), ag.Health, ag.Version)
			}
			t.flush()
			return nil
		})
	},
}

var agentsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status with the tasks they are working on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			st, err := a.client.AgentStatus(ctx)
			if err != nil {
				a.notes.Error("Failed to load agent status")
				return err
			}
			field(a.out, "Agents", countStyle.Render(fmt.Sprint(len(st.Agents))))
			active := 0
			for _, ag := range st.Agents {
				if strings.EqualFold(ag.Status, "active") || strings.EqualFold(ag.Status, "running") {
					active++
				}
			}
			field(a.out, "Active", countStyle.Render(fmt.Sprint(active)))
			fmt.Fprintln(a.out)
			records := make([]internal.TaskRecord, 0, len(st.Tasks))
			for _, t := range st.Tasks {
				records = append(records, t.Record())
			}
			printTasks(a.out, records)
			return nil
		})
	},
}

var agentsControlCmd = &cobra.Command{
	Use:       "control <agent-id> <start|stop|restart>",
	Short:     "Send a control action to an agent",
	Args:      cobra.ExactArgs(2),
	ValidArgs: agentActions,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, action := args[0], strings.ToLower(args[1])
		if !contains(agentActions, action) {
			return &internal.ValidationError{Field: "action", Message: "must be one of " + strings.Join(agentActions, ", ")}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.client.ControlAgent(ctx, id, action); err != nil {
				a.notes.Error(fmt.Sprintf("Failed to %s agent", action))
				return err
			}
			a.logs.LogUserAction("agent_control", map[string]any{"agentId": id, "action": action})
			a.notes.Success(fmt.Sprintf("Agent %s: %s sent", id, action))
			return nil
		})
	},
}

// providersCmd represents the providers screen
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Model providers and their metrics",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			providers, err := a.client.ListProviders(ctx)
			if err != nil {
				a.notes.Error("Failed to load providers")
				return err
			}
			if len(providers) == 0 {
				empty(a.out, "providers")
				return nil
			}
			heading(a.out, "Found %d provider(s)", len(providers))
			t := newTable(a.out, "", "Key", "Name", "Model", "Status", "Latency", "Success", "Requests")
			for _, p := range providers {
				mark := " "
				if p.Active {
					mark = countStyle.Render("*")
				}
				t.row(mark, idStyle.Render(p.Key()), p.Name, p.Model, statusStyle(p.Status),
					fmt.Sprintf("%.0fms", p.Latency), percent(p.SuccessRate), humanize.Comma(p.TotalRequests))
			}
			t.flush()
			return nil
		})
	},
}

var providersMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show aggregate provider metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			m, err := a.client.ProviderMetrics(ctx)
			if err != nil {
				a.notes.Error("Failed to load provider metrics")
				return err
			}
			field(a.out, "Total requests", humanize.Comma(m.TotalRequests))
			field(a.out, "Success rate", percent(m.SuccessRate))
			field(a.out, "Avg response", fmt.Sprintf("%.0fms", m.AvgResponseTime))
			field(a.out, "Total cost", "$"+humanize.CommafWithDigits(m.TotalCost, 2))
			if len(m.Providers) == 0 {
				return nil
			}
			fmt.Fprintln(a.out)
			t := newTable(a.out, "Provider", "Requests", "Tokens", "Cost", "Last used")
			for _, p := range m.Providers {
				t.row(p.Key(), humanize.Comma(p.TotalRequests), humanize.Comma(p.TokensUsed),
					"$"+humanize.CommafWithDigits(p.CostEstimate, 2), whenString(p.LastUsed))
			}
			t.flush()
			return nil
		})
	},
}

var providersSwitchCmd = &cobra.Command{
	Use:   "switch <provider>",
	Short: "Make a provider the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.client.SwitchProvider(ctx, args[0]); err != nil {
				a.notes.Error("Failed to switch provider")
				return err
			}
			a.logs.LogUserAction("provider_switch", map[string]any{"providerId": args[0]})
			a.notes.Success("Switched to " + args[0])
			return nil
		})
	},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(agentsCmd, providersCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsStatusCmd, agentsControlCmd)
	providersCmd.AddCommand(providersListCmd, providersMetricsCmd, providersSwitchCmd)
}
