package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/tasks"
	"github.com/spf13/cobra"
)

var (
	taskType     string
	taskStatus   string
	taskWatch    bool
	watchTimeout time.Duration
)

// tasksCmd represents the task orchestrator screen
var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"orchestrator"},
	Short:   "Task orchestrator",
	Long: `Create tasks, start orchestration and follow progress live.

Status, progress and subtask updates arrive over the realtime channel.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			params := url.Values{}
			if taskStatus != "" {
				params.Set("status", taskStatus)
			}
			var records []internal.TaskRecord
			err := internal.ShowProgress(ctx, "Loading tasks", func() error {
				list, err := a.client.ListTasks(ctx, params)
				if err != nil {
					return err
				}
				for _, t := range list {
					records = append(records, t.Record())
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to load tasks: %w", err)
			}
			printTasks(a.out, records)
			return nil
		})
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task with its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			t, err := a.client.GetTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load task: %w", err)
			}
			printTask(a.out, t.Record())
			return nil
		})
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			board := tasks.NewBoard(a.client, a.notes)
			if !taskWatch {
				id, err := board.Create(ctx, args[0], taskType)
				if err != nil {
					return err
				}
				field(a.out, "Task", id)
				if id != "" {
					internal.PrintInfo("Follow it with: aetherium tasks watch " + id)
				}
				return nil
			}

			var id string
			err := internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
				{Message: "Creating task", Fn: func() (err error) {
					id, err = board.Create(ctx, args[0], taskType)
					return err
				}},
				{Message: "Loading tasks", Fn: func() error { return board.Load(ctx) }},
			})
			if err != nil {
				return err
			}
			field(a.out, "Task", id)
			if id == "" {
				return nil
			}
			return watchTask(ctx, a, board, id)
		})
	},
}

var tasksOrchestrateCmd = &cobra.Command{
	Use:   "orchestrate <task-id>",
	Short: "Plan subtasks for a task and hand them to agents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			board := tasks.NewBoard(a.client, a.notes)
			if !taskWatch {
				return board.Orchestrate(ctx, args[0])
			}
			err := internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
				{Message: "Orchestrating " + args[0], Fn: func() error { return board.Orchestrate(ctx, args[0]) }},
				{Message: "Loading tasks", Fn: func() error { return board.Load(ctx) }},
			})
			if err != nil {
				return err
			}
			return watchTask(ctx, a, board, args[0])
		})
	},
}

var tasksWatchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Follow a task until it completes or fails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			board := tasks.NewBoard(a.client, a.notes)
			if err := board.Load(ctx); err != nil {
				return err
			}
			return watchTask(ctx, a, board, args[0])
		})
	},
}

// watchTask prints the selected task whenever a frame patches it.
func watchTask(ctx context.Context, a *app, board *tasks.Board, id string) error {
	if !board.Loaded() {
		if err := board.Load(ctx); err != nil {
			return err
		}
	}
	if !a.connect(ctx) {
		return fmt.Errorf("realtime channel unavailable, cannot watch task %s", id)
	}

	last := ""
	remove := board.OnChange(func() {
		t, ok := board.Selected()
		if !ok {
			return
		}
		line := progressLine(t)
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(a.out, line)
	})
	defer remove()

	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}
	err := board.Watch(ctx, a.channel, id)
	if t, ok := board.Selected(); ok && t.Terminal() {
		printTask(a.out, t)
		if out, ok := board.Output(id); ok {
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, out.Render())
		}
		return nil
	}
	if err == context.DeadlineExceeded {
		return fmt.Errorf("task %s still running after %s", id, watchTimeout)
	}
	return err
}

func progressLine(t internal.TaskRecord) string {
	done := 0
	for _, st := range t.Subtasks {
		if st.Status == internal.TaskStatusCompleted {
			done++
		}
	}
	line := fmt.Sprintf("%s %s %s", idStyle.Render(shortID(t.ID)), statusStyle(t.Status), percent(t.Progress))
	if len(t.Subtasks) > 0 {
		line += dateStyle.Render(fmt.Sprintf(" (%d/%d subtasks)", done, len(t.Subtasks)))
	}
	return line
}

func printTasks(out io.Writer, records []internal.TaskRecord) {
	if len(records) == 0 {
		empty(out, "tasks")
		return
	}
	heading(out, "Found %d task(s)", len(records))
	t := newTable(out, "ID", "Description", "Type", "Status", "Progress", "Created")
	for _, r := range records {
		t.row(idStyle.Render(shortID(r.ID)), clip(r.Description, 50), r.Type, statusStyle(r.Status), countStyle.Render(percent(r.Progress)), whenString(r.CreatedAt))
	}
	t.flush()
}

func printTask(out io.Writer, t internal.TaskRecord) {
	fmt.Fprintln(out, headerStyle.Render(clip(t.Description, 70)))
	field(out, "ID", t.ID)
	field(out, "Type", t.Type)
	field(out, "Status", statusStyle(t.Status))
	field(out, "Progress", percent(t.Progress))
	if t.CreatedAt != "" {
		field(out, "Created", whenString(t.CreatedAt))
	}
	if len(t.Subtasks) == 0 {
		return
	}
	fmt.Fprintln(out)
	tbl := newTable(out, "#", "Subtask", "Agent", "Status")
	for i, st := range t.Subtasks {
		tbl.row(fmt.Sprint(i+1), clip(st.Description, 60), st.AgentType, statusStyle(st.Status))
	}
	tbl.flush()
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksCreateCmd, tasksOrchestrateCmd, tasksWatchCmd)
	tasksListCmd.Flags().StringVar(&taskStatus, "status", "", "Only list tasks with this status")
	tasksCreateCmd.Flags().StringVarP(&taskType, "type", "t", tasks.DefaultType, "Task type")
	for _, c := range []*cobra.Command{tasksCreateCmd, tasksOrchestrateCmd} {
		c.Flags().BoolVarP(&taskWatch, "watch", "w", false, "Follow the task after starting it")
	}
	for _, c := range []*cobra.Command{tasksCreateCmd, tasksOrchestrateCmd, tasksWatchCmd} {
		c.Flags().DurationVar(&watchTimeout, "timeout", 0, "Stop watching after this long (0 waits indefinitely)")
	}
}
