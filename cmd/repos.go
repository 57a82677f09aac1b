package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
)

var (
	repoDescription string
	repoPrivate     bool
	prBody          string
	prHead          string
	prBase          string
	githubToken     string
)

// reposCmd represents the repositories screen
var reposCmd = &cobra.Command{
	Use:     "repos",
	Aliases: []string{"repositories"},
	Short:   "Repositories and the GitHub connection",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			repos, err := a.client.ListRepositories(ctx)
			if err != nil {
				a.notes.Error("Failed to load repositories")
				return err
			}
			printRepos(a.out, repos)
			return nil
		})
	},
}

var reposFilesCmd = &cobra.Command{
	Use:   "files <repo-id>",
	Short: "List a repository's files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			files, err := a.client.RepositoryFiles(ctx, args[0])
			if err != nil {
				return err
			}
			printFiles(a.out, files, nil)
			return nil
		})
	},
}

var reposCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			r, err := a.client.CreateRepository(ctx, repoInput(args[0]))
			if err != nil {
				a.notes.Error("Failed to create repository")
				return err
			}
			a.notes.Success("Repository created successfully")
			field(a.out, "Repository", r.ID.String())
			return nil
		})
	},
}

var reposSyncCmd = &cobra.Command{
	Use:   "sync <repo-id>",
	Short: "Sync a repository with its remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			err := internal.ShowProgress(ctx, "Syncing repository", func() error {
				return a.client.SyncRepository(ctx, args[0])
			})
			if err != nil {
				a.notes.Error("Failed to sync repository")
				return err
			}
			a.notes.Success("Repository synced successfully")
			return nil
		})
	},
}

var reposPRCmd = &cobra.Command{
	Use:   "pr <repo-id> <title>",
	Short: "Open a pull request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			reply, err := a.client.CreatePullRequest(ctx, args[0], api.PullRequestInput{
				Title: args[1],
				Body:  prBody,
				Head:  prHead,
				Base:  prBase,
			})
			if err != nil {
				a.notes.Error("Failed to create pull request")
				return err
			}
			a.notes.Success("Pull request created successfully")
			printReply(a.out, reply)
			return nil
		})
	},
}

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "GitHub connection",
}

var githubConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a GitHub account with a personal access token",
	Long: `Connect a GitHub account. The token is read from --token or the
GITHUB_TOKEN environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := githubToken
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		if token == "" {
			return &internal.ValidationError{Field: "token", Message: "is required (--token or GITHUB_TOKEN)"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			st, err := a.client.ConnectGitHub(ctx, token)
			if err != nil {
				a.notes.Error("Failed to connect GitHub")
				return err
			}
			a.notes.Success("GitHub connected")
			printGitHubStatus(a.out, st)
			return nil
		})
	},
}

var githubStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the GitHub connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			st, err := a.client.GitHubStatus(ctx)
			if err != nil {
				return err
			}
			printGitHubStatus(a.out, st)
			return nil
		})
	},
}

var githubReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List the connected account's repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			repos, err := a.client.GitHubRepos(ctx)
			if err != nil {
				a.notes.Error("Failed to load GitHub repositories")
				return err
			}
			printRepos(a.out, repos)
			return nil
		})
	},
}

var githubCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a repository on GitHub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			r, err := a.client.CreateGitHubRepo(ctx, repoInput(args[0]))
			if err != nil {
				a.notes.Error("Failed to create GitHub repository")
				return err
			}
			a.notes.Success("GitHub repository created")
			if r.URL != "" {
				field(a.out, "URL", r.URL)
			}
			return nil
		})
	},
}

func repoInput(name string) api.RepositoryInput {
	return api.RepositoryInput{Name: name, Description: repoDescription, Private: repoPrivate}
}

func printRepos(out io.Writer, repos []api.Repository) {
	if len(repos) == 0 {
		empty(out, "repositories")
		return
	}
	heading(out, "Found %d repositories", len(repos))
	t := newTable(out, "ID", "Name", "Language", "Stars", "Forks", "Visibility")
	for _, r := range repos {
		vis := "public"
		if r.Private {
			vis = "private"
		}
		t.row(idStyle.Render(r.ID.String()), r.Name, r.Language, countStyle.Render(fmt.Sprint(r.Stars)), fmt.Sprint(r.Forks), dateStyle.Render(vis))
	}
	t.flush()
}

func printGitHubStatus(out io.Writer, st api.GitHubStatus) {
	if !st.Connected {
		field(out, "GitHub", statusStyle("inactive")+" not connected")
		return
	}
	field(out, "GitHub", statusStyle("connected")+" as "+st.Username)
}

// printReply prints a free-form backend reply as sorted key/value lines.
func printReply(out io.Writer, reply map[string]any) {
	keys := make([]string, 0, len(reply))
	for k := range reply {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(out, strings.ReplaceAll(k, "_", " "), fmt.Sprint(reply[k]))
	}
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.AddCommand(reposListCmd, reposFilesCmd, reposCreateCmd, reposSyncCmd, reposPRCmd, githubCmd)
	githubCmd.AddCommand(githubConnectCmd, githubStatusCmd, githubReposCmd, githubCreateCmd)
	for _, c := range []*cobra.Command{reposCreateCmd, githubCreateCmd} {
		c.Flags().StringVarP(&repoDescription, "description", "d", "", "Repository description")
		c.Flags().BoolVar(&repoPrivate, "private", false, "Create a private repository")
	}
	reposPRCmd.Flags().StringVar(&prBody, "body", "", "Pull request body")
	reposPRCmd.Flags().StringVar(&prHead, "head", "", "Branch with the changes")
	reposPRCmd.Flags().StringVar(&prBase, "base", "main", "Branch to merge into")
	githubConnectCmd.Flags().StringVar(&githubToken, "token", "", "GitHub personal access token")
}
