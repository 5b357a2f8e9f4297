package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/backend"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/pressure"
	"github.com/overlax/overlax/internal/validation"
)

func newTasksCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tasks, err := a.fetchTasks(ctx)
			if err != nil {
				return err
			}
			if !all {
				tasks = pendingByDeadline(tasks)
			}
			printTaskTable(a.out, tasks, a.cfg.Location(), a.now())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List tasks whose deadline has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tasks, err := a.fetchTasks(ctx)
			if err != nil {
				return err
			}
			printHistory(a.out, assistant.History(tasks, a.now()), a.cfg.Location())
			return nil
		},
	}
}

func newPressureCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "pressure",
		Short: "Show your deadline pressure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tasks, err := a.fetchTasks(ctx)
			if err != nil {
				return err
			}
			settings, err := a.backend().PressureSettings(ctx, a.cfg.UID)
			if err != nil {
				return err
			}

			report := pressure.Build(tasks, *settings, category, a.now(), a.cfg.Location())
			printPressure(a, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only count tasks in this category")
	cmd.AddCommand(newPressureSetCmd(a))
	return cmd
}

func printPressure(a *app, r pressure.Report) {
	loc := a.cfg.Location()

	fmt.Fprintf(a.out, "%s: %s (%d pending, %.0f%%)\n", r.Category, strings.ToUpper(string(r.Level)), r.Count, r.Gauge)
	fmt.Fprintf(a.out, "Thresholds: low %d, medium %d, high %d, critical %d\n",
		r.Settings.Low, r.Settings.Medium, r.Settings.High, r.Settings.Critical)
	fmt.Fprintf(a.out, "Active %d, due today %d, overlapping %d, completed %d\n",
		r.Stats.Active, r.Stats.Today, r.Stats.Overlap, r.Stats.Completed)
	if r.Next != nil {
		fmt.Fprintf(a.out, "Next: %s, %s\n", r.Next.Title, formatDeadline(r.Next.Deadline, loc))
	}
	for _, s := range r.Suggestions {
		marker := "-"
		if s.Urgent {
			marker = "!"
		}
		fmt.Fprintf(a.out, "%s %s\n", marker, s.Text)
	}
}

func newPressureSetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set <low> <medium> <high> <critical>",
		Short:   "Change the pressure thresholds",
		Example: "  overlax pressure set 3 5 7 10",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}

			var levels [4]int
			for i, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("threshold %q is not a number", arg)
				}
				levels[i] = n
			}
			settings := models.PressureSettings{
				UserID:   a.cfg.UID,
				Low:      levels[0],
				Medium:   levels[1],
				High:     levels[2],
				Critical: levels[3],
			}
			if err := validation.ValidatePressureSettings(settings); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := a.backend().SavePressureSettings(ctx, settings); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Pressure thresholds saved")
			return nil
		},
	}
	return cmd
}

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add, complete or delete a task",
	}
	cmd.AddCommand(newTaskAddCmd(a), newTaskDoneCmd(a), newTaskRemoveCmd(a))
	return cmd
}

func newTaskAddCmd(a *app) *cobra.Command {
	var category, deadline string

	cmd := &cobra.Command{
		Use:     "add <title>",
		Short:   "Add a task",
		Example: `  overlax task add "Physics essay" --category Academic --due "2026-03-12 18:00"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			task, err := a.createTask(ctx, a.backend(), strings.Join(args, " "), category, deadline)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %q due %s (%s)\n", task.Title, formatDeadline(task.Deadline, a.cfg.Location()), task.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category name")
	cmd.Flags().StringVarP(&deadline, "due", "d", "", "deadline as "+deadlineLayout+" or a date")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func newTaskDoneCmd(a *app) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			task, err := a.backend().SetCompleted(ctx, args[0], !undo)
			if err != nil {
				return notFoundAsTask(err, args[0])
			}
			state := "done"
			if undo {
				state = "pending"
			}
			fmt.Fprintf(a.out, "Marked %q %s\n", task.Title, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task pending again")
	return cmd
}

func newTaskRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := a.backend().DeleteTask(ctx, args[0]); err != nil {
				return notFoundAsTask(err, args[0])
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newTelegramCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Show whether Telegram digests are connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			status, err := a.backend().TelegramStatus(ctx, a.cfg.UID)
			if err != nil {
				return err
			}
			if !status.Connected || status.ChatID == nil {
				fmt.Fprintln(a.out, "Telegram: not connected")
				return nil
			}
			fmt.Fprintf(a.out, "Telegram: connected to chat %d\n", *status.ChatID)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "connect <chat-id>",
		Short: "Link the chat id given by the bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := validation.ParseChatID(args[0]); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			link, err := a.backend().ConnectTelegram(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Connected to chat %d\n", link.ChatID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "digest",
		Short: "Send a digest to the linked chat now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			jobID, err := a.backend().RequestDigest(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Digest queued (%s)\n", jobID)
			return nil
		},
	})
	return cmd
}

// createTask validates the fields and creates the task.
func (a *app) createTask(ctx context.Context, client *backend.Client, title, category, deadline string) (*models.Task, error) {
	due, err := parseDeadline(deadline, a.cfg.Location())
	if err != nil {
		return nil, err
	}

	req := models.CreateTaskRequest{
		UserID:   a.cfg.UID,
		Title:    validation.SanitizeText(title),
		Category: strings.TrimSpace(category),
		Deadline: due,
	}
	if req.Category == "" {
		req.Category = models.UncategorizedName
	}
	if err := validation.Validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	return client.CreateTask(ctx, req)
}

func notFoundAsTask(err error, id string) error {
	if backend.IsNotFound(err) {
		return fmt.Errorf("no task with id %s", id)
	}
	return err
}
