package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
)

var (
	promptCategory  string
	promptTags      []string
	promptFromFile  string
	promptFavorites bool
)

var favoriteStyle = dirtyStyle

// promptsCmd represents the prompt library screen
var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt library",
}

var promptsListCmd = &cobra.Command{
	Use:   "list [search]",
	Short: "List prompts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		if len(args) == 1 {
			params.Set("search", args[0])
		}
		if promptCategory != "" {
			params.Set("category", promptCategory)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			prompts, err := a.client.ListPrompts(ctx, params)
			if err != nil {
				a.notes.Error("Failed to load prompts")
				return err
			}
			if promptFavorites {
				kept := prompts[:0]
				for _, p := range prompts {
					if p.Favorite {
						kept = append(kept, p)
					}
				}
				prompts = kept
			}
			if len(prompts) == 0 {
				empty(a.out, "prompts")
				return nil
			}
			heading(a.out, "Found %d prompt(s)", len(prompts))
			t := newTable(a.out, "", "ID", "Title", "Category", "Tags")
			for _, p := range prompts {
				star := " "
				if p.Favorite {
					star = favoriteStyle.Render("★")
				}
				t.row(star, idStyle.Render(p.ID.String()), clip(p.Title, 40), p.Category, dateStyle.Render(strings.Join(p.Tags, ", ")))
			}
			t.flush()
			return nil
		})
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <prompt-id>",
	Short: "Print a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := findPrompt(ctx, a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(p.Title))
			if p.Category != "" {
				field(a.out, "Category", p.Category)
			}
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, p.Content)
			return nil
		})
	},
}

var promptsCreateCmd = &cobra.Command{
	Use:   "create <title> [content]",
	Short: "Add a prompt to the library",
	Long: `Add a prompt. The content is the second argument, or the contents of
--from-file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := ""
		if len(args) == 2 {
			content = args[1]
		} else if promptFromFile != "" {
			data, err := os.ReadFile(promptFromFile)
			if err != nil {
				return fmt.Errorf("failed to read prompt: %w", err)
			}
			content = string(data)
		}
		if strings.TrimSpace(content) == "" {
			return &internal.ValidationError{Field: "content", Message: "must not be empty"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.client.CreatePrompt(ctx, api.Prompt{
				Title:    args[0],
				Content:  content,
				Category: promptCategory,
				Tags:     promptTags,
			})
			if err != nil {
				a.notes.Error("Failed to create prompt")
				return err
			}
			a.notes.Success("Prompt created successfully")
			field(a.out, "Prompt", p.ID.String())
			return nil
		})
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <prompt-id>",
	Short: "Remove a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.client.DeletePrompt(ctx, args[0]); err != nil {
				a.notes.Error("Failed to delete prompt")
				return err
			}
			a.notes.Success("Prompt deleted successfully")
			return nil
		})
	},
}

var promptsFavoriteCmd = &cobra.Command{
	Use:   "favorite <prompt-id>",
	Short: "Toggle a prompt's favorite mark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := findPrompt(ctx, a, args[0])
			if err != nil {
				return err
			}
			p.Favorite = !p.Favorite
			if _, err := a.client.UpdatePrompt(ctx, args[0], p); err != nil {
				a.notes.Error("Failed to update prompt")
				return err
			}
			if p.Favorite {
				a.notes.Success("Added to favorites")
			} else {
				a.notes.Success("Removed from favorites")
			}
			return nil
		})
	},
}

// findPrompt looks id up in the library; the backend has no single-prompt read.
func findPrompt(ctx context.Context, a *app, id string) (api.Prompt, error) {
	prompts, err := a.client.ListPrompts(ctx, nil)
	if err != nil {
		return api.Prompt{}, err
	}
	for _, p := range prompts {
		if p.ID.String() == id {
			return p, nil
		}
	}
	return api.Prompt{}, fmt.Errorf("prompt %s not found", id)
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd, promptsCreateCmd, promptsDeleteCmd, promptsFavoriteCmd)
	promptsListCmd.Flags().StringVar(&promptCategory, "category", "", "Only this category")
	promptsListCmd.Flags().BoolVar(&promptFavorites, "favorites", false, "Only favorites")
	promptsCreateCmd.Flags().StringVar(&promptCategory, "category", "", "Prompt category")
	promptsCreateCmd.Flags().StringSliceVar(&promptTags, "tag", nil, "Tag (repeatable)")
	promptsCreateCmd.Flags().StringVar(&promptFromFile, "from-file", "", "Read the prompt content from a file")
}
