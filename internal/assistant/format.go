package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/overlax/overlax/internal/models"
)

// Field selects which columns FormatTaskList renders after the title
type Field uint8

const (
	FieldCategory Field = 1 << iota
	FieldDate
	FieldTime
	FieldStatus
	FieldOverdue
)

const (
	dateLayout = "Mon, Jan 2"
	timeLayout = "3:04 PM"

	glyphDone    = "✅"
	glyphPending = "⏳"
)

// FormatTaskList renders tasks as a numbered list, one task per line.
// now is only consulted for FieldOverdue.
func FormatTaskList(tasks []models.Task, fields Field, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	for i, task := range tasks {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, task.Title)

		if fields&FieldCategory != 0 {
			category := task.Category
			if category == "" {
				category = models.UncategorizedName
			}
			fmt.Fprintf(&b, " (%s)", category)
		}

		deadline := task.Deadline.In(loc)
		if fields&FieldDate != 0 {
			b.WriteString(" · ")
			b.WriteString(deadline.Format(dateLayout))
		}
		if fields&FieldTime != 0 {
			b.WriteString(" · ")
			b.WriteString(deadline.Format(timeLayout))
		}
		if fields&FieldOverdue != 0 {
			b.WriteString(" · ")
			b.WriteString(pluralize(daysLate(now, task.Deadline), "day"))
			b.WriteString(" overdue")
		}
		if fields&FieldStatus != 0 {
			b.WriteByte(' ')
			b.WriteString(statusGlyph(task))
		}
	}
	return b.String()
}

func statusGlyph(task models.Task) string {
	if task.IsDone() {
		return glyphDone
	}
	return glyphPending
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
