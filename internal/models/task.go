package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatusDone is the legacy completion marker some clients still send.
const TaskStatusDone = "done"

// FileRef describes a file attached to a task.
type FileRef struct {
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Type         string `json:"type"`
}

// Task represents a user-owned work item with a deadline
type Task struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"uid,omitempty"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed"`
	File      *FileRef  `json:"file,omitempty"`
}

// IsDone reports whether the task has been completed.
func (t Task) IsDone() bool {
	return t.Completed
}

// taskWire accepts both the canonical and the legacy field names.
type taskWire struct {
	ID        string    `json:"_id"`
	AltID     string    `json:"id"`
	UserID    string    `json:"uid"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed"`
	Status    string    `json:"status"`
	File      *FileRef  `json:"file"`
}

// UnmarshalJSON folds the legacy `status: "done"` flag into Completed.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode task: %w", err)
	}

	id := w.ID
	if id == "" {
		id = w.AltID
	}

	*t = Task{
		ID:        id,
		UserID:    w.UserID,
		Title:     w.Title,
		Category:  w.Category,
		Deadline:  w.Deadline,
		Completed: w.Completed || strings.EqualFold(w.Status, TaskStatusDone),
		File:      w.File,
	}
	return nil
}

// CloneTasks returns a copy of tasks that shares no mutable state with the input.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, task := range tasks {
		out[i] = task
		if task.File != nil {
			f := *task.File
			out[i].File = &f
		}
	}
	return out
}

// CreateTaskRequest is the body sent to create a task
type CreateTaskRequest struct {
	UserID   string    `json:"uid" validate:"required"`
	Title    string    `json:"title" validate:"required,min=1,max=200"`
	Category string    `json:"category" validate:"max=100"`
	Deadline time.Time `json:"deadline" validate:"required"`
}

// UpdateTaskRequest is the body sent to patch a task; nil fields are left unchanged
type UpdateTaskRequest struct {
	Title     *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Category  *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}
