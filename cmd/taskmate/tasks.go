package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/model"
	"taskmate/internal/repository"
	"taskmate/internal/stats"
	"taskmate/internal/store"
	"taskmate/internal/tasksync"
)

// workspace is the signed-in view the task subcommands operate on.
type workspace struct {
	client  *store.Client
	tasks   *tasksync.Synchronizer
	loc     *time.Location
	backend *repository.Backend
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	backend, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	var sessions auth.Source = auth.StaticSource{}
	if cfg.UserID != "" {
		sessions = auth.StaticSource{User: &model.User{ID: cfg.UserID}}
	}
	client := store.NewClient(backend.Tasks, sessions)
	return &workspace{client: client, tasks: tasksync.New(client), loc: cfg.Location, backend: backend}, nil
}

// load runs the initial fetch and surfaces its error.
func (w *workspace) load(ctx context.Context) error {
	w.tasks.Activate(ctx)
	if state := w.tasks.Snapshot(); state.Err != "" {
		return fmt.Errorf("%s", state.Err)
	}
	return nil
}

// resolve finds a task by id, or by a unique prefix or suffix of it as
// printed by list.
func (w *workspace) resolve(ref string) (model.Task, error) {
	if task, ok := w.tasks.Find(ref); ok {
		return task, nil
	}
	var matches []model.Task
	for _, task := range w.tasks.Snapshot().Tasks {
		if strings.HasPrefix(task.ID, ref) || strings.HasSuffix(task.ID, ref) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("%q matches %d tasks", ref, len(matches))
	}
}

func withWorkspace(run func(cmd *cobra.Command, args []string, w *workspace) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.backend.Close()
		return run(cmd, args, w)
	}
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the tasks of TASKMATE_USER_ID from the terminal",
	}

	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksAddCmd())
	cmd.AddCommand(tasksDoneCmd())
	cmd.AddCommand(tasksRemoveCmd())
	cmd.AddCommand(tasksStatsCmd())
	cmd.AddCommand(tasksCalendarCmd())

	return cmd
}

func tasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			ctx := cmd.Context()
			category, _ := cmd.Flags().GetString("category")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")

			var (
				tasks []model.Task
				err   error
			)
			switch {
			case from != "" || to != "":
				start, end, perr := parseRange(from, to, w.loc)
				if perr != nil {
					return perr
				}
				tasks, err = w.client.GetTasksByDateRange(ctx, start, end)
			case category != "":
				tasks, err = w.client.GetTasksByCategory(ctx, category)
			default:
				if err := w.load(ctx); err != nil {
					return err
				}
				tasks = w.tasks.Snapshot().Tasks
			}
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks, w.loc)
			return nil
		}),
	}

	cmd.Flags().StringP("category", "c", "", "Only tasks in this category")
	cmd.Flags().String("from", "", "Due on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Due on or before this date (YYYY-MM-DD)")

	return cmd
}

func tasksAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			ctx := cmd.Context()
			if err := w.load(ctx); err != nil {
				return err
			}

			desc, _ := cmd.Flags().GetString("desc")
			due, _ := cmd.Flags().GetString("due")
			priority, _ := cmd.Flags().GetString("priority")
			category, _ := cmd.Flags().GetString("category")
			custom, _ := cmd.Flags().GetString("custom")

			p, err := model.ParsePriority(priority)
			if err != nil {
				return err
			}
			fields := model.TaskFields{
				Title:    strings.Join(args, " "),
				Priority: p,
				DueDate:  today(w.loc),
			}
			if desc != "" {
				fields.Description = &desc
			}
			if due != "" {
				d, err := time.ParseInLocation("2006-01-02", due, w.loc)
				if err != nil {
					return fmt.Errorf("due: %w", err)
				}
				fields.DueDate = d
			}
			resolved := model.ResolveCategory(category, custom)
			fields.Category = &resolved

			task := w.tasks.Add(ctx, fields)
			if task == nil {
				return fmt.Errorf("%s", w.tasks.Snapshot().Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", task.ID)
			return nil
		}),
	}

	cmd.Flags().StringP("desc", "d", "", "Description")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD, default today)")
	cmd.Flags().StringP("priority", "p", string(model.PriorityMedium), "low, medium or high")
	cmd.Flags().StringP("category", "c", model.CategoryPersonal, "Category ("+strings.Join(model.Categories, ", ")+")")
	cmd.Flags().String("custom", "", "Category name when --category is Other")

	return cmd
}

func tasksDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			ctx := cmd.Context()
			if err := w.load(ctx); err != nil {
				return err
			}
			task, err := w.resolve(args[0])
			if err != nil {
				return err
			}
			updated := w.tasks.ToggleComplete(ctx, task.ID)
			if updated == nil {
				return fmt.Errorf("%s", w.tasks.Snapshot().Err)
			}
			state := "open"
			if updated.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", updated.Title, state)
			return nil
		}),
	}
}

func tasksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			ctx := cmd.Context()
			if err := w.load(ctx); err != nil {
				return err
			}
			task, err := w.resolve(args[0])
			if err != nil {
				return err
			}
			if !w.tasks.Remove(ctx, task.ID) {
				return fmt.Errorf("%s", w.tasks.Snapshot().Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", task.Title)
			return nil
		}),
	}
}

func tasksStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			if err := w.load(cmd.Context()); err != nil {
				return err
			}
			tasks := w.tasks.Snapshot().Tasks
			s := stats.Summarize(tasks)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Task Statistics")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "  %-12s %d\n", "Total:", s.Total)
			fmt.Fprintf(out, "  %-12s %d\n", "Completed:", s.Completed)
			fmt.Fprintf(out, "  %-12s %d\n", "Pending:", s.Pending())
			fmt.Fprintf(out, "  %-12s %.1f%%\n", "Rate:", s.CompletionRate)

			fmt.Fprintln(out, "\nBy priority:")
			for _, g := range stats.GroupByPriority(tasks) {
				fmt.Fprintf(out, "  %-12s %d\n", g.Label+":", len(g.Tasks))
			}
			fmt.Fprintln(out, "\nBy category:")
			for _, g := range stats.GroupByCategory(tasks) {
				fmt.Fprintf(out, "  %-12s %d\n", g.Label+":", len(g.Tasks))
			}
			return nil
		}),
	}
}

func tasksCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "Show tasks by due day for a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, args []string, w *workspace) error {
			anchor := time.Now().In(w.loc)
			if len(args) == 1 {
				m, err := time.ParseInLocation("2006-01", args[0], w.loc)
				if err != nil {
					return fmt.Errorf("month: %w", err)
				}
				anchor = m
			}
			first, last := stats.MonthBounds(anchor, w.loc)
			tasks, err := w.client.GetTasksByDateRange(cmd.Context(), first, last)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, anchor.Format("January 2006"))
			days := stats.GroupByDate(tasks, w.loc)
			if len(days) == 0 {
				fmt.Fprintln(out, "  (nothing due)")
			}
			for _, day := range days {
				fmt.Fprintf(out, "\n%s\n", day.Date.Format("Mon 02"))
				for _, task := range day.Tasks {
					fmt.Fprintf(out, "  %s %s\n", checkbox(task), task.Title)
				}
			}
			return nil
		}),
	}
}

func printTasks(out io.Writer, tasks []model.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	for _, task := range tasks {
		category := task.CategoryName()
		if category == "" {
			category = model.Uncategorized
		}
		fmt.Fprintf(out, "%s %s  %-40s %-6s %-12s %s\n",
			checkbox(task), shortID(task.ID), task.Title, task.Priority, category, task.DueDate.In(loc).Format("2006-01-02"))
	}
}

func checkbox(task model.Task) string {
	if task.Completed {
		return "[x]"
	}
	return "[ ]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// parseRange reads inclusive date bounds. A missing bound is open.
func parseRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, loc)
	if from != "" {
		d, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return start, end, fmt.Errorf("from: %w", err)
		}
		start = d
	}
	if to != "" {
		d, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return start, end, fmt.Errorf("to: %w", err)
		}
		end = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return start, end, nil
}
