package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	policyDescription string
	policySeverity    string
	scanType          string
)

var severities = []string{"low", "medium", "high", "critical"}

// securityCmd represents the security screen. Without a subcommand it
// shows policies and recent scans side by side.
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Security policies and scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var policies []api.SecurityPolicy
			var scans []api.Scan
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				policies, err = a.client.ListPolicies(gctx)
				return err
			})
			g.Go(func() error {
				var err error
				scans, err = a.client.ListScans(gctx)
				return err
			})
			if err := g.Wait(); err != nil {
				a.notes.Error("Failed to load security data")
				return err
			}
			printPolicies(a.out, policies)
			fmt.Fprintln(a.out)
			printScans(a.out, scans)
			return nil
		})
	},
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List security policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			policies, err := a.client.ListPolicies(ctx)
			if err != nil {
				a.notes.Error("Failed to load security policies")
				return err
			}
			printPolicies(a.out, policies)
			return nil
		})
	},
}

var policyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a security policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sev := strings.ToLower(policySeverity)
		if !contains(severities, sev) {
			return &internal.ValidationError{Field: "severity", Message: "must be one of " + strings.Join(severities, ", ")}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.client.CreatePolicy(ctx, api.SecurityPolicy{Name: args[0], Description: policyDescription, Severity: sev})
			if err != nil {
				a.notes.Error("Failed to create security policy")
				return err
			}
			a.notes.Success("Security policy created")
			field(a.out, "Policy", p.ID.String())
			return nil
		})
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set <policy-id>",
	Short: "Change a policy's severity or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := map[string]any{}
		if cmd.Flags().Changed("severity") {
			sev := strings.ToLower(policySeverity)
			if !contains(severities, sev) {
				return &internal.ValidationError{Field: "severity", Message: "must be one of " + strings.Join(severities, ", ")}
			}
			fields["severity"] = sev
		}
		if cmd.Flags().Changed("description") {
			fields["description"] = policyDescription
		}
		if len(fields) == 0 {
			return &internal.ValidationError{Field: "flags", Message: "nothing to update"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.client.UpdatePolicy(ctx, args[0], fields); err != nil {
				a.notes.Error("Failed to update security policy")
				return err
			}
			a.notes.Success("Security policy updated")
			return nil
		})
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <policy-id>",
	Short: "Delete a security policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.client.DeletePolicy(ctx, args[0]); err != nil {
				a.notes.Error("Failed to delete security policy")
				return err
			}
			a.notes.Success("Security policy deleted")
			return nil
		})
	},
}

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List security scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			scans, err := a.client.ListScans(ctx)
			if err != nil {
				a.notes.Error("Failed to load security scans")
				return err
			}
			printScans(a.out, scans)
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Start a security scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			s, err := a.client.CreateScan(ctx, api.ScanInput{Type: scanType, Target: args[0]})
			if err != nil {
				a.notes.Error("Failed to start security scan")
				return err
			}
			a.notes.Success("Security scan started")
			field(a.out, "Scan", s.ID.String())
			field(a.out, "Status", statusStyle(s.Status))
			return nil
		})
	},
}

func printPolicies(out io.Writer, policies []api.SecurityPolicy) {
	if len(policies) == 0 {
		empty(out, "security policies")
		return
	}
	heading(out, "Found %d policy(ies)", len(policies))
	t := newTable(out, "ID", "Name", "Severity", "Rules", "Updated")
	for _, p := range policies {
		updated := p.UpdatedAt
		if updated == "" {
			updated = p.CreatedAt
		}
		t.row(idStyle.Render(p.ID.String()), p.Name, severityStyle(p.Severity), fmt.Sprint(len(p.Rules)), whenString(updated))
	}
	t.flush()
}

func printScans(out io.Writer, scans []api.Scan) {
	if len(scans) == 0 {
		empty(out, "security scans")
		return
	}
	heading(out, "Found %d scan(s)", len(scans))
	t := newTable(out, "ID", "Type", "Target", "Status", "Findings", "Started")
	for _, s := range scans {
		t.row(idStyle.Render(s.ID.String()), s.Type, clip(s.Target, 40), statusStyle(s.Status), findingsSummary(s.Findings), whenString(s.StartedAt))
	}
	t.flush()
}

func findingsSummary(findings []api.Finding) string {
	if len(findings) == 0 {
		return countStyle.Render("0")
	}
	counts := map[string]int{}
	for _, f := range findings {
		counts[strings.ToLower(f.Severity)]++
	}
	var parts []string
	for i := len(severities) - 1; i >= 0; i-- {
		if n := counts[severities[i]]; n > 0 {
			parts = append(parts, severityStyle(fmt.Sprintf("%d %s", n, severities[i])))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprint(len(findings))
	}
	return strings.Join(parts, " ")
}

func severityStyle(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "high"):
		return removedStyle.Render(s)
	case strings.Contains(lower, "medium"):
		return dirtyStyle.Render(s)
	default:
		return dateStyle.Render(s)
	}
}

func init() {
	rootCmd.AddCommand(securityCmd)
	securityCmd.AddCommand(policiesCmd, scansCmd, scanCmd)
	policiesCmd.AddCommand(policyCreateCmd, policySetCmd, policyDeleteCmd)
	for _, c := range []*cobra.Command{policyCreateCmd, policySetCmd} {
		c.Flags().StringVarP(&policyDescription, "description", "d", "", "Policy description")
		c.Flags().StringVar(&policySeverity, "severity", "medium", "Severity (low, medium, high, critical)")
	}
	scanCmd.Flags().StringVar(&scanType, "type", "vulnerability", "Scan type")
}
