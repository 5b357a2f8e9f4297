package assistant

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/overlax/overlax/internal/models"
)

const (
	categoryListLimit = 8
	allListLimit      = 10

	weekDays   = 7
	urgentDays = 3
)

// Canned replies
const (
	MsgLoginRequired = "Please log in first so I can look at your tasks. 🔐"
	MsgRefreshing    = "Refreshing your tasks... 🔄"

	msgTodayEmpty    = "No tasks due today. Enjoy your free time! 🎉"
	msgTomorrowEmpty = "Nothing due tomorrow. You're all clear! ✨"
	msgOverdueEmpty  = "No overdue tasks. Great job staying on track! ✅"
	msgCategoryEmpty = "No %s tasks found. You're all clear! 👌"
	msgAllEmpty      = "You don't have any tasks yet. Say \"add task\" to create one!"
	msgWeekEmpty     = "Nothing coming up in the next 7 days. You're all clear! 🌴"
	msgUrgentEmpty   = "No urgent tasks right now. You're all clear! 😌"
)

const listFields = FieldCategory | FieldDate | FieldTime | FieldStatus

// query is the per-utterance state shared by rule predicates and handlers
type query struct {
	text          string
	tasks         []models.Task
	authenticated bool
	now           time.Time
	today         time.Time
	loc           *time.Location
}

type rule struct {
	intent Intent
	match  func(q *query) bool
	handle func(r *Router, q *query) Result
}

func keywordMatch(keywords []string) func(q *query) bool {
	return func(q *query) bool {
		return containsAny(q.text, keywords)
	}
}

func defaultRules() []rule {
	return []rule{
		{
			intent: IntentLoginRequired,
			match: func(q *query) bool {
				return !q.authenticated && containsAny(q.text, taskRelatedKeywords)
			},
			handle: func(_ *Router, _ *query) Result {
				return reply(IntentLoginRequired, MsgLoginRequired)
			},
		},
		{
			intent: IntentAddTask,
			match:  keywordMatch(addTaskKeywords),
			handle: func(_ *Router, _ *query) Result {
				return Result{Kind: KindShowAddForm, Intent: IntentAddTask}
			},
		},
		{
			intent: IntentRefresh,
			match:  keywordMatch(refreshKeywords),
			handle: func(r *Router, _ *query) Result {
				if r.refresher != nil {
					r.refresher.Refresh()
				}
				return reply(IntentRefresh, MsgRefreshing)
			},
		},
		{intent: IntentToday, match: keywordMatch(todayKeywords), handle: handleToday},
		{intent: IntentTomorrow, match: keywordMatch(tomorrowKeywords), handle: handleTomorrow},
		{intent: IntentOverdue, match: keywordMatch(overdueKeywords), handle: handleOverdue},
		{
			intent: IntentCategory,
			match: func(q *query) bool {
				_, ok := matchCategory(q.text)
				return ok
			},
			handle: handleCategory,
		},
		{intent: IntentAll, match: keywordMatch(allKeywords), handle: handleAll},
		{intent: IntentWeek, match: keywordMatch(weekKeywords), handle: handleWeek},
		{intent: IntentUrgent, match: keywordMatch(urgentKeywords), handle: handleUrgent},
	}
}

func reply(intent Intent, text string) Result {
	return Result{Kind: KindReply, Intent: intent, Text: text}
}

func handleToday(_ *Router, q *query) Result {
	tasks := dueBetween(q.tasks, q.today, addDays(q.today, 1))
	if len(tasks) == 0 {
		return reply(IntentToday, msgTodayEmpty)
	}
	return reply(IntentToday, fmt.Sprintf("📅 You have %s due today:\n%s",
		pluralize(len(tasks), "task"), FormatTaskList(tasks, FieldCategory|FieldTime|FieldStatus, q.loc, q.now)))
}

func handleTomorrow(_ *Router, q *query) Result {
	start := addDays(q.today, 1)
	tasks := dueBetween(q.tasks, start, addDays(start, 1))
	if len(tasks) == 0 {
		return reply(IntentTomorrow, msgTomorrowEmpty)
	}
	return reply(IntentTomorrow, fmt.Sprintf("📆 You have %s due tomorrow:\n%s",
		pluralize(len(tasks), "task"), FormatTaskList(tasks, FieldCategory|FieldTime|FieldStatus, q.loc, q.now)))
}

func handleOverdue(_ *Router, q *query) Result {
	tasks := overdueTasks(q.tasks, q.today)
	if len(tasks) == 0 {
		return reply(IntentOverdue, msgOverdueEmpty)
	}
	return reply(IntentOverdue, fmt.Sprintf("⚠️ You have %s overdue:\n%s",
		pluralize(len(tasks), "task"), FormatTaskList(tasks, FieldCategory|FieldDate|FieldOverdue, q.loc, q.now)))
}

func handleCategory(_ *Router, q *query) Result {
	name, _ := matchCategory(q.text)
	needle := strings.ToLower(name)

	var matched []models.Task
	for _, task := range q.tasks {
		if strings.Contains(strings.ToLower(task.Category), needle) {
			matched = append(matched, task)
		}
	}
	if len(matched) == 0 {
		return reply(IntentCategory, fmt.Sprintf(msgCategoryEmpty, name))
	}

	sortByDeadline(matched)
	pending := countPending(matched)
	shown := matched[:min(len(matched), categoryListLimit)]

	text := fmt.Sprintf("📂 %s tasks (%d pending):\n%s", name, pending, FormatTaskList(shown, listFields, q.loc, q.now))
	if rest := len(matched) - len(shown); rest > 0 {
		text += fmt.Sprintf("\n...and %d more", rest)
	}
	return reply(IntentCategory, text)
}

func handleAll(_ *Router, q *query) Result {
	if len(q.tasks) == 0 {
		return reply(IntentAll, msgAllEmpty)
	}

	all := slices.Clone(q.tasks)
	sortByDeadline(all)
	pending := countPending(all)
	shown := all[:min(len(all), allListLimit)]

	text := fmt.Sprintf("📋 You have %s (%d completed, %d pending):\n%s",
		pluralize(len(all), "task"), len(all)-pending, pending, FormatTaskList(shown, listFields, q.loc, q.now))
	if rest := len(all) - len(shown); rest > 0 {
		text += fmt.Sprintf("\n...and %d more", rest)
	}
	return reply(IntentAll, text)
}

func handleWeek(_ *Router, q *query) Result {
	tasks := pendingBetween(q.tasks, q.today, addDays(q.today, weekDays+1))
	if len(tasks) == 0 {
		return reply(IntentWeek, msgWeekEmpty)
	}
	return reply(IntentWeek, fmt.Sprintf("🗓️ You have %s coming up this week:\n%s",
		pluralize(len(tasks), "task"), FormatTaskList(tasks, FieldCategory|FieldDate|FieldTime, q.loc, q.now)))
}

func handleUrgent(_ *Router, q *query) Result {
	end := addDays(q.today, urgentDays+1)
	var tasks []models.Task
	for _, task := range q.tasks {
		if !task.IsDone() && task.Deadline.Before(end) {
			tasks = append(tasks, task)
		}
	}
	if len(tasks) == 0 {
		return reply(IntentUrgent, msgUrgentEmpty)
	}
	sortByDeadline(tasks)
	return reply(IntentUrgent, fmt.Sprintf("🔥 You have %s that need attention:\n%s",
		pluralize(len(tasks), "urgent task"), FormatTaskList(tasks, FieldCategory|FieldDate|FieldTime, q.loc, q.now)))
}

// dueBetween returns tasks with deadlines in [from, to), completed or not.
func dueBetween(tasks []models.Task, from, to time.Time) []models.Task {
	var out []models.Task
	for _, task := range tasks {
		if within(task.Deadline, from, to) {
			out = append(out, task)
		}
	}
	sortByDeadline(out)
	return out
}

func pendingBetween(tasks []models.Task, from, to time.Time) []models.Task {
	var out []models.Task
	for _, task := range tasks {
		if !task.IsDone() && within(task.Deadline, from, to) {
			out = append(out, task)
		}
	}
	sortByDeadline(out)
	return out
}

func overdueTasks(tasks []models.Task, today time.Time) []models.Task {
	var out []models.Task
	for _, task := range tasks {
		if !task.IsDone() && task.Deadline.Before(today) {
			out = append(out, task)
		}
	}
	sortByDeadline(out)
	return out
}

func countPending(tasks []models.Task) int {
	n := 0
	for _, task := range tasks {
		if !task.IsDone() {
			n++
		}
	}
	return n
}

// sortByDeadline sorts in place; callers only pass slices they own.
func sortByDeadline(tasks []models.Task) {
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		return a.Deadline.Compare(b.Deadline)
	})
}
