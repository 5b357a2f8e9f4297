// Package pressure scores how crowded a user's upcoming deadlines are.
package pressure

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/overlax/overlax/internal/models"
)

// Level is a named stress band
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

const (
	// AllCategories disables the category filter in Build.
	AllCategories = "All"

	maxSuggestions = 5
	urgentDays     = 2
	gaugeHeadroom  = 5
)

// Suggestion types
const (
	SuggestionConflict = "conflict"
	SuggestionUrgent   = "urgent"
)

// Suggestion is a scheduling hint shown next to the gauge
type Suggestion struct {
	Type   string   `json:"type"`
	Text   string   `json:"text"`
	Tasks  []string `json:"tasks,omitempty"`
	Urgent bool     `json:"urgent"`
}

// DashboardStats are the counters of the task dashboard
type DashboardStats struct {
	Active    int `json:"active"`
	Today     int `json:"today"`
	Overlap   int `json:"overlap"`
	Completed int `json:"completed"`
}

// Report is everything the pressure view renders
type Report struct {
	UserID      string                  `json:"uid,omitempty"`
	Category    string                  `json:"category"`
	Count       int                     `json:"count"`
	Level       Level                   `json:"level"`
	Gauge       float64                 `json:"gauge"`
	Settings    models.PressureSettings `json:"settings"`
	Suggestions []Suggestion            `json:"suggestions"`
	Stats       DashboardStats          `json:"stats"`
	Next        *models.Task            `json:"next,omitempty"`
}

// Count returns the number of pending tasks whose deadline falls today or later.
func Count(tasks []models.Task, now time.Time, loc *time.Location) int {
	today := startOfDay(now, loc)
	n := 0
	for _, task := range tasks {
		if task.IsDone() || task.Deadline.IsZero() {
			continue
		}
		if !startOfDay(task.Deadline, loc).Before(today) {
			n++
		}
	}
	return n
}

// LevelFor maps a pending count onto the user's ladder.
func LevelFor(count int, settings models.PressureSettings) Level {
	switch {
	case count <= settings.Low:
		return LevelLow
	case count <= settings.Medium:
		return LevelMedium
	case count <= settings.High:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Gauge returns the fill percentage of the pressure meter.
func Gauge(count int, settings models.PressureSettings) float64 {
	return math.Min(float64(count)/float64(settings.Critical+gaugeHeadroom)*100, 100)
}

// Suggestions lists same-day conflicts followed by tasks due within two days.
func Suggestions(tasks []models.Task, now time.Time, loc *time.Location) []Suggestion {
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[time.Time][]models.Task)
	for _, task := range pending(tasks) {
		key := startOfDay(task.Deadline, loc)
		byDay[key] = append(byDay[key], task)
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var out []Suggestion
	named := make(map[string]bool)
	for _, d := range days {
		onDay := byDay[d]
		if len(onDay) < 2 {
			continue
		}
		titles := make([]string, 0, len(onDay))
		for _, task := range onDay {
			titles = append(titles, task.Title)
			named[task.Title] = true
		}
		out = append(out, Suggestion{
			Type:   SuggestionConflict,
			Text:   fmt.Sprintf("%d tasks overlap on %s - Consider rescheduling some tasks", len(onDay), d.Format("Jan 2")),
			Tasks:  titles,
			Urgent: daysUntil(now, d) <= urgentDays,
		})
	}

	urgent := pending(tasks)
	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].Deadline.Before(urgent[j].Deadline) })
	for _, task := range urgent {
		n := daysUntil(now, task.Deadline)
		if n < 0 || n > urgentDays || named[task.Title] {
			continue
		}
		out = append(out, Suggestion{
			Type:   SuggestionUrgent,
			Text:   fmt.Sprintf("%q is due %s", task.Title, dueIn(n)),
			Urgent: true,
		})
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// Stats computes the dashboard counters. Tasks past their deadline count as completed.
func Stats(tasks []models.Task, now time.Time, loc *time.Location) DashboardStats {
	var stats DashboardStats
	today := startOfDay(now, loc)
	tomorrow := today.AddDate(0, 0, 1)

	for _, task := range tasks {
		overdue := !task.Deadline.IsZero() && task.Deadline.Before(now)
		if task.IsDone() || overdue {
			stats.Completed++
			continue
		}
		stats.Active++
		if !task.Deadline.Before(today) && task.Deadline.Before(tomorrow) {
			stats.Today++
		}
	}
	if stats.Today >= 2 {
		stats.Overlap = stats.Today
	}
	return stats
}

// Build assembles a report for tasks in category. An empty category or AllCategories keeps every task.
func Build(tasks []models.Task, settings models.PressureSettings, category string, now time.Time, loc *time.Location) Report {
	if loc == nil {
		loc = time.Local
	}
	if category == "" {
		category = AllCategories
	}

	filtered := filterCategory(tasks, category)
	count := Count(filtered, now, loc)

	return Report{
		UserID:      settings.UserID,
		Category:    category,
		Count:       count,
		Level:       LevelFor(count, settings),
		Gauge:       Gauge(count, settings),
		Settings:    settings,
		Suggestions: Suggestions(filtered, now, loc),
		Stats:       Stats(filtered, now, loc),
		Next:        nextTask(filtered, now),
	}
}

func filterCategory(tasks []models.Task, category string) []models.Task {
	if strings.EqualFold(category, AllCategories) {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if strings.EqualFold(task.Category, category) {
			out = append(out, task)
		}
	}
	return out
}

func pending(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if !task.IsDone() && !task.Deadline.IsZero() {
			out = append(out, task)
		}
	}
	return out
}

func nextTask(tasks []models.Task, now time.Time) *models.Task {
	var next *models.Task
	for i := range tasks {
		task := tasks[i]
		if task.IsDone() || !task.Deadline.After(now) {
			continue
		}
		if next == nil || task.Deadline.Before(next.Deadline) {
			next = &task
		}
	}
	return next
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// daysUntil rounds the remaining time up to whole days.
func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func dueIn(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
