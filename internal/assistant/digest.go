package assistant

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/overlax/overlax/internal/models"
)

// MsgDigestClear is sent when nothing is due today and nothing is overdue.
const MsgDigestClear = "Nothing due today and nothing overdue. Enjoy your day! 🎉"

// Digest summarizes today's and overdue tasks for push delivery.
func Digest(tasks []models.Task, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now, loc)

	var due []models.Task
	for _, task := range dueBetween(tasks, today, addDays(today, 1)) {
		if !task.IsDone() {
			due = append(due, task)
		}
	}
	overdue := overdueTasks(tasks, today)

	if len(due) == 0 && len(overdue) == 0 {
		return MsgDigestClear
	}

	var sections []string
	if len(due) > 0 {
		sections = append(sections, fmt.Sprintf("📅 Due today (%d):\n%s",
			len(due), FormatTaskList(due, FieldCategory|FieldTime, loc, now)))
	}
	if len(overdue) > 0 {
		sections = append(sections, fmt.Sprintf("⚠️ Overdue (%d):\n%s",
			len(overdue), FormatTaskList(overdue, FieldCategory|FieldOverdue, loc, now)))
	}
	return "Your Overlax digest\n\n" + strings.Join(sections, "\n\n")
}

// HistoryEntry is a task whose deadline has passed
type HistoryEntry struct {
	Task models.Task
	Done bool
}

// Label is "Done" for completed tasks and "Missed" otherwise.
func (e HistoryEntry) Label() string {
	if e.Done {
		return "Done"
	}
	return "Missed"
}

// History returns tasks with deadlines before now, newest first.
func History(tasks []models.Task, now time.Time) []HistoryEntry {
	var out []HistoryEntry
	for _, task := range tasks {
		if task.Deadline.Before(now) {
			out = append(out, HistoryEntry{Task: task, Done: task.IsDone()})
		}
	}
	slices.SortStableFunc(out, func(a, b HistoryEntry) int {
		return b.Task.Deadline.Compare(a.Task.Deadline)
	})
	return out
}
