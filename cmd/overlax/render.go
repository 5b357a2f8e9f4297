package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/models"
)

const (
	deadlineLayout = "2006-01-02 15:04"
	commandTimeout = 30 * time.Second
)

// commandContext bounds a one-shot command and cancels it on Ctrl-C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// parseDeadline reads a deadline in loc. A bare date means the end of that day.
func parseDeadline(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(deadlineLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t.Add(23*time.Hour + 59*time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q, use %q", value, deadlineLayout)
}

func formatDeadline(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2 15:04")
}

// pendingByDeadline returns the incomplete tasks, earliest deadline first.
func pendingByDeadline(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if !task.IsDone() {
			out = append(out, task)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// pickTask resolves a 1-based position in listed.
func pickTask(listed []models.Task, arg string) (models.Task, error) {
	if len(listed) == 0 {
		return models.Task{}, errors.New("list tasks first with /tasks")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(listed) {
		return models.Task{}, fmt.Errorf("pick a task number between 1 and %d", len(listed))
	}
	return listed[n-1], nil
}

func printTaskTable(out io.Writer, tasks []models.Task, loc *time.Location, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tCATEGORY\tDEADLINE\tSTATUS\tID")
	for i, task := range tasks {
		category := task.Category
		if category == "" {
			category = models.UncategorizedName
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, task.Title, category, formatDeadline(task.Deadline, loc), taskStatus(task, now), task.ID)
	}
	_ = w.Flush()
}

func taskStatus(task models.Task, now time.Time) string {
	switch {
	case task.IsDone():
		return "done"
	case task.Deadline.Before(now):
		return "overdue"
	default:
		return "pending"
	}
}

func printHistory(out io.Writer, entries []assistant.HistoryEntry, loc *time.Location) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No past deadlines")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tCATEGORY\tDEADLINE\tRESULT")
	for _, e := range entries {
		category := e.Task.Category
		if category == "" {
			category = models.UncategorizedName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Task.Title, category, formatDeadline(e.Task.Deadline, loc), e.Label())
	}
	_ = w.Flush()
}
