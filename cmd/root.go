package cmd

import (
	"fmt"
	"os"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	originFlag string
	devFlag    bool
	statePath  string
	apiFlag    string
	wsFlag     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// cfg is loaded once per invocation by the root command's pre-run hook.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aetherium",
	Short: "Terminal client for the Aetherium agent platform",
	Long: `A terminal client for the Aetherium multi-agent platform.

It talks to the Aetherium backend over REST and a realtime websocket channel
and keeps its own state (chat history, workspace, theme, client log) in a
local sqlite file.

Screens:
  • chat           Interactive chat with the assistant
  • tasks          Task orchestrator with live progress
  • workspace      Files, tabs, terminal and the AI assistant panel
  • agents, providers, projects, repos, security, prompts,
    intelligence, integrations, observability, logs
  • health, about, exec, run, download, feedback, theme

Quick Start:
  aetherium chat                          # Open the chat view
  aetherium chat send "write a parser"    # One-shot question
  aetherium tasks list                    # Show tasks
  aetherium open '#orchestrator'          # Open a view by route`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// applyFlagOverrides lets explicitly set flags win over file and environment.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("origin") {
		c.Origin = originFlag
	}
	if flags.Changed("dev") {
		c.Dev = devFlag
	}
	if flags.Changed("state") {
		c.StatePath = statePath
	}
	if flags.Changed("api") {
		c.APIBase = apiFlag
	}
	if flags.Changed("ws") {
		c.WebSocketURL = wsFlag
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		internal.Sync()
		os.Exit(1)
	}
	internal.Sync()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&originFlag, "origin", "", "Dashboard origin the dev endpoints derive from")
	rootCmd.PersistentFlags().BoolVar(&devFlag, "dev", false, "Use origin-relative endpoints")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Path to the local state database")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "REST base URL override (for example http://localhost:8000/api)")
	rootCmd.PersistentFlags().StringVar(&wsFlag, "ws", "", "Websocket endpoint override")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
