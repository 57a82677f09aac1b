package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	clearExpired bool
	similarLimit int
)

// observabilityCmd represents the observability screen: backend metrics
// and response cache statistics.
var observabilityCmd = &cobra.Command{
	Use:     "observability",
	Aliases: []string{"metrics"},
	Short:   "Backend metrics and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var metrics []api.Metric
			var stats api.CacheStats
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				metrics, err = a.client.ListMetrics(gctx)
				return err
			})
			g.Go(func() error {
				var err error
				stats, err = a.client.CacheStats(gctx)
				return err
			})
			if err := g.Wait(); err != nil {
				a.notes.Error("Failed to load metrics")
				return err
			}
			printCacheStats(a.out, stats)
			fmt.Fprintln(a.out)
			printMetrics(a.out, metrics)
			return nil
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Response cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			stats, err := a.client.CacheStats(ctx)
			if err != nil {
				return err
			}
			printCacheStats(a.out, stats)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the response cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var msg string
			var err error
			if clearExpired {
				msg, err = a.client.ClearExpiredCache(ctx)
			} else {
				msg, err = a.client.ClearCache(ctx)
			}
			if err != nil {
				a.notes.Error("Failed to clear cache")
				return err
			}
			if msg == "" {
				msg = "Cache cleared"
			}
			a.notes.Success(msg)
			return nil
		})
	},
}

var cacheSimilarCmd = &cobra.Command{
	Use:   "similar <prompt>",
	Short: "Find cached prompts similar to a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			similar, err := a.client.SimilarPrompts(ctx, args[0])
			if err != nil {
				return err
			}
			if len(similar) == 0 {
				empty(a.out, "similar prompts")
				return nil
			}
			if similarLimit > 0 && len(similar) > similarLimit {
				similar = similar[:similarLimit]
			}
			for i, s := range similar {
				if i > 0 {
					fmt.Fprintln(a.out)
				}
				printReply(a.out, s)
			}
			return nil
		})
	},
}

func printCacheStats(out io.Writer, s api.CacheStats) {
	fmt.Fprintln(out, headerStyle.Render("Cache"))
	field(out, "Entries", humanize.Comma(s.Size))
	field(out, "Hits", humanize.Comma(s.Hits))
	field(out, "Misses", humanize.Comma(s.Misses))
	field(out, "Hit rate", percent(s.HitRate()*100))
	field(out, "Expired", humanize.Comma(s.Expired))
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("System"))
	field(out, "Requests", humanize.Comma(s.TotalRequests))
	field(out, "Success rate", percent(s.SuccessRate))
	field(out, "Avg response", fmt.Sprintf("%.0f ms", s.AvgResponseTime))
	field(out, "CPU", percent(s.CPUUsage))
	field(out, "Memory", percent(s.MemoryUsage))
	field(out, "Connections", humanize.Comma(s.ActiveConnections))
	if s.Uptime != "" {
		field(out, "Uptime", s.Uptime)
	}
	if len(s.Alerts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render("Alerts"))
		for _, al := range s.Alerts {
			fmt.Fprintf(out, "  %s %s\n", severityStyle(al.Severity), al.Message)
		}
	}
}

func printMetrics(out io.Writer, metrics []api.Metric) {
	if len(metrics) == 0 {
		empty(out, "metrics")
		return
	}
	heading(out, "Found %d metric(s)", len(metrics))
	t := newTable(out, "Name", "Value", "Status", "Recorded")
	for _, m := range metrics {
		t.row(m.Name, countStyle.Render(humanize.Ftoa(m.Value)), statusStyle(m.Status), whenString(m.Timestamp))
	}
	t.flush()
}

func init() {
	rootCmd.AddCommand(observabilityCmd)
	observabilityCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd, cacheSimilarCmd)
	cacheClearCmd.Flags().BoolVar(&clearExpired, "expired", false, "Only drop expired entries")
	cacheSimilarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 5, "Maximum matches to print")
}
