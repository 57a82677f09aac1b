package cmd

import (
	"context"
	"fmt"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/spf13/cobra"
)

var (
	projectDescription string
	projectRepo        string
	projectStatus      string
)

// projectsCmd represents the projects screen
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			projects, err := a.client.ListProjects(ctx)
			if err != nil {
				a.notes.Error("Failed to load projects")
				return err
			}
			if len(projects) == 0 {
				empty(a.out, "projects")
				return nil
			}
			heading(a.out, "Found %d project(s)", len(projects))
			t := newTable(a.out, "ID", "Name", "Status", "Description", "Created")
			for _, p := range projects {
				t.row(idStyle.Render(p.ID.String()), p.Name, statusStyle(p.Status), clip(p.Description, 40), whenString(p.CreatedAt))
			}
			t.flush()
			return nil
		})
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.client.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(p.Name))
			field(a.out, "ID", p.ID.String())
			field(a.out, "Status", statusStyle(p.Status))
			field(a.out, "Description", p.Description)
			if p.RepositoryURL != "" {
				field(a.out, "Repository", p.RepositoryURL)
			}
			return nil
		})
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.client.CreateProject(ctx, api.ProjectInput{
				Name:          args[0],
				Description:   projectDescription,
				RepositoryURL: projectRepo,
				Status:        projectStatus,
			})
			if err != nil {
				a.notes.Error("Failed to create project")
				return err
			}
			a.notes.Success("Project created successfully")
			field(a.out, "Project", p.ID.String())
			return nil
		})
	},
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Update a project's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if !flags.Changed("name") && !flags.Changed("description") && !flags.Changed("repo") && !flags.Changed("status") {
			return &internal.ValidationError{Field: "flags", Message: "nothing to update"}
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			current, err := a.client.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			in := api.ProjectInput{
				Name:          current.Name,
				Description:   current.Description,
				RepositoryURL: current.RepositoryURL,
				Status:        current.Status,
			}
			if flags.Changed("name") {
				in.Name, _ = flags.GetString("name")
			}
			if flags.Changed("description") {
				in.Description = projectDescription
			}
			if flags.Changed("repo") {
				in.RepositoryURL = projectRepo
			}
			if flags.Changed("status") {
				in.Status = projectStatus
			}
			if _, err := a.client.UpdateProject(ctx, args[0], in); err != nil {
				a.notes.Error("Failed to update project")
				return err
			}
			a.notes.Success("Project updated successfully")
			return nil
		})
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.client.DeleteProject(ctx, args[0]); err != nil {
				a.notes.Error("Failed to delete project")
				return err
			}
			a.notes.Success("Project deleted successfully")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd, projectsShowCmd, projectsCreateCmd, projectsUpdateCmd, projectsDeleteCmd)
	for _, c := range []*cobra.Command{projectsCreateCmd, projectsUpdateCmd} {
		c.Flags().StringVarP(&projectDescription, "description", "d", "", "Project description")
		c.Flags().StringVar(&projectRepo, "repo", "", "Repository URL")
		c.Flags().StringVar(&projectStatus, "status", "", "Project status")
	}
	projectsUpdateCmd.Flags().String("name", "", "New project name")
}
