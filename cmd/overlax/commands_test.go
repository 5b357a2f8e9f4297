package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/overlax/overlax/internal/clientconfig"
	"github.com/overlax/overlax/internal/models"
)

// fakeBackend serves the task routes the commands use
type fakeBackend struct {
	tasks      []models.Task
	categories []models.Category
	created    []models.CreateTaskRequest
}

func (b *fakeBackend) server(t *testing.T) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc("/api/tasks/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tasks": b.tasks})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.created = append(b.created, req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task": models.Task{ID: "new", Title: req.Title, Category: req.Category, Deadline: req.Deadline},
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/categories/{uid}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"categories": b.categories})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		var c models.Category
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.ID = "c-new"
		_ = json.NewEncoder(w).Encode(map[string]any{"category": c})
	}).Methods(http.MethodPost)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func runCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, cfg clientconfig.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := clientconfig.Save(path, &cfg); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoginLogout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "overlax", "config.json")

	out, err := runCommand(t, path, "login", "--api", "http://api.test/", "--uid", "u1", "--token", "tok", "--timezone", "UTC")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Logged in as u1 on http://api.test") {
		t.Errorf("Unexpected output %q", out)
	}

	cfg, err := clientconfig.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.APIURL != "http://api.test" || cfg.UID != "u1" || cfg.Token != "tok" || cfg.Timezone != "UTC" {
		t.Errorf("Unexpected config %+v", cfg)
	}

	if _, err := runCommand(t, path, "logout"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cfg, err = clientconfig.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Authenticated() || cfg.APIURL != "http://api.test" {
		t.Errorf("Expected credentials cleared and URL kept, got %+v", cfg)
	}
}

func TestLogin_RequiresCredentials(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := runCommand(t, path, "login", "--uid", "u1"); err == nil {
		t.Error("Expected error without a token")
	}
}

func TestTasksCmd(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(72 * time.Hour)
	backend := &fakeBackend{tasks: []models.Task{
		{ID: "t1", Title: "Essay", Category: "Academic", Deadline: future},
		{ID: "t2", Title: "Gym", Category: "Personal", Deadline: future.Add(-time.Hour), Completed: true},
	}}
	server := backend.server(t)
	path := writeConfig(t, clientconfig.Config{APIURL: server.URL, UID: "u1", Token: "tok", Timezone: "UTC"})

	tests := []struct {
		name     string
		args     []string
		validate func(t *testing.T, out string)
	}{
		{
			name: "pending only",
			args: []string{"tasks"},
			validate: func(t *testing.T, out string) {
				if !strings.Contains(out, "Essay") || strings.Contains(out, "Gym") {
					t.Errorf("Expected only the pending task, got %q", out)
				}
			},
		},
		{
			name: "all",
			args: []string{"tasks", "--all"},
			validate: func(t *testing.T, out string) {
				if !strings.Contains(out, "Essay") || !strings.Contains(out, "Gym") {
					t.Errorf("Expected both tasks, got %q", out)
				}
			},
		},
		{
			name: "history is empty for future deadlines",
			args: []string{"history"},
			validate: func(t *testing.T, out string) {
				if out != "No past deadlines\n" {
					t.Errorf("Expected no history, got %q", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, path, tt.args...)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.validate(t, out)
		})
	}
}

func TestTasksCmd_NotLoggedIn(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, clientconfig.Config{APIURL: "http://127.0.0.1:1"})
	_, err := runCommand(t, path, "tasks")
	if err == nil || err.Error() != errNotLoggedIn.Error() {
		t.Errorf("Expected not-logged-in error, got %v", err)
	}
}

func TestTaskAddCmd(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	server := backend.server(t)
	path := writeConfig(t, clientconfig.Config{APIURL: server.URL, UID: "u1", Token: "tok", Timezone: "UTC"})

	out, err := runCommand(t, path, "task", "add", "Physics", "essay", "--due", "2026-03-12 18:00")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, `Added "Physics essay"`) {
		t.Errorf("Unexpected output %q", out)
	}

	if len(backend.created) != 1 {
		t.Fatalf("Expected one created task, got %d", len(backend.created))
	}
	req := backend.created[0]
	if req.UserID != "u1" || req.Category != models.UncategorizedName {
		t.Errorf("Unexpected request %+v", req)
	}
	if want := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC); !req.Deadline.Equal(want) {
		t.Errorf("Expected deadline %v, got %v", want, req.Deadline)
	}

	if _, err := runCommand(t, path, "task", "add", "x", "--due", "soon"); err == nil {
		t.Error("Expected error for an invalid deadline")
	}
}

func TestCategoriesCmd(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{categories: []models.Category{{ID: "c1", Name: "Academic", Icon: "book"}}}
	server := backend.server(t)
	path := writeConfig(t, clientconfig.Config{APIURL: server.URL, UID: "u1", Token: "tok"})

	out, err := runCommand(t, path, "categories")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Academic") || !strings.Contains(out, "c1") {
		t.Errorf("Expected the category listed, got %q", out)
	}

	out, err = runCommand(t, path, "categories", "add", "Side", "project", "--icon", "rocket")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "Added category Side project (c-new)\n" {
		t.Errorf("Unexpected output %q", out)
	}

	if _, err := runCommand(t, path, "categories", "add", "uncategorized"); err == nil {
		t.Error("Expected the reserved name to be rejected")
	}
}
