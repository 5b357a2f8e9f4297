package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/overlax/overlax/internal/models"
)

// TaskRepository reads tasks written by the REST backend
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, uid, title, COALESCE(category, ''), deadline, completed, COALESCE(status, ''), file`

// TasksByUser returns all tasks of uid ordered by deadline
func (r *TaskRepository) TasksByUser(ctx context.Context, uid string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE uid = $1 ORDER BY deadline ASC`

	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

type rowIterator interface {
	scanner
	Next() bool
	Err() error
}

func collectTasks(rows rowIterator) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// scanTask reads one row in taskColumns order. Rows written with the legacy
// status column count as completed.
func scanTask(row scanner) (models.Task, error) {
	var (
		task     models.Task
		status   string
		fileJSON []byte
	)
	if err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Category, &task.Deadline, &task.Completed, &status, &fileJSON); err != nil {
		return models.Task{}, err
	}

	if strings.EqualFold(status, models.TaskStatusDone) {
		task.Completed = true
	}
	if len(fileJSON) > 0 && string(fileJSON) != "null" {
		var file models.FileRef
		if err := json.Unmarshal(fileJSON, &file); err != nil {
			return models.Task{}, fmt.Errorf("failed to unmarshal file: %w", err)
		}
		task.File = &file
	}
	return task, nil
}
