package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/overlax/overlax/internal/models"
)

// fakeRows replays rows in taskColumns order
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	f.pos++
	return f.pos <= len(f.rows)
}

func (f *fakeRows) Err() error { return f.err }

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("expected %d columns, got %d", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		case *[]byte:
			if v != nil {
				*d = []byte(v.(string))
			}
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestCollectTasks(t *testing.T) {
	t.Parallel()

	deadline := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rows     *fakeRows
		validate func(t *testing.T, tasks []models.Task, err error)
	}{
		{
			name: "plain and legacy rows",
			rows: &fakeRows{rows: [][]any{
				{"t1", "u1", "Essay", "Academic", deadline, false, "", nil},
				{"t2", "u1", "Report", "", deadline, false, "done", `{"originalName":"r.pdf","path":"uploads/r.pdf","type":"application/pdf"}`},
			}},
			validate: func(t *testing.T, tasks []models.Task, err error) {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				want := []models.Task{
					{ID: "t1", UserID: "u1", Title: "Essay", Category: "Academic", Deadline: deadline},
					{
						ID: "t2", UserID: "u1", Title: "Report", Deadline: deadline, Completed: true,
						File: &models.FileRef{OriginalName: "r.pdf", Path: "uploads/r.pdf", Type: "application/pdf"},
					},
				}
				if diff := cmp.Diff(want, tasks); diff != "" {
					t.Errorf("Tasks mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "json null file",
			rows: &fakeRows{rows: [][]any{{"t1", "u1", "Essay", "", deadline, true, "", "null"}}},
			validate: func(t *testing.T, tasks []models.Task, err error) {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if tasks[0].File != nil {
					t.Errorf("Expected no file, got %+v", tasks[0].File)
				}
			},
		},
		{
			name: "malformed file",
			rows: &fakeRows{rows: [][]any{{"t1", "u1", "Essay", "", deadline, false, "", "{"}}},
			validate: func(t *testing.T, tasks []models.Task, err error) {
				if err == nil {
					t.Error("Expected error for malformed file column")
				}
			},
		},
		{
			name: "iteration error",
			rows: &fakeRows{err: sql.ErrConnDone},
			validate: func(t *testing.T, tasks []models.Task, err error) {
				if !errors.Is(err, sql.ErrConnDone) {
					t.Errorf("Expected wrapped iteration error, got %v", err)
				}
			},
		},
		{
			name: "no rows",
			rows: &fakeRows{},
			validate: func(t *testing.T, tasks []models.Task, err error) {
				if err != nil || len(tasks) != 0 {
					t.Errorf("Expected empty result, got %v, %v", tasks, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tasks, err := collectTasks(tt.rows)
			tt.validate(t, tasks, err)
		})
	}
}
