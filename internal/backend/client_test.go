package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/overlax/overlax/internal/models"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc("/api/tasks/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"missing token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"tasks":[{"_id":"t1","title":"Essay","category":"Academic","deadline":"2026-03-10T18:00:00Z","status":"done"}]}`))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateTaskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		completed := req.Completed != nil && *req.Completed
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task": models.Task{ID: mux.Vars(r)["id"], Title: "Essay", Completed: completed},
		})
	}).Methods(http.MethodPatch)
	r.HandleFunc("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	}).Methods(http.MethodDelete)
	r.HandleFunc("/api/pressure-settings/{uid}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"settings":{"uid":"u1","low":2,"medium":4,"high":6,"critical":9}},"timestamp":"2026-03-10T00:00:00Z"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/connect-telegram", func(w http.ResponseWriter, r *http.Request) {
		var req models.ConnectTelegramRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ChatID != "-100987" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"uid":"u1","chatId":-100987,"linked_at":"2026-03-10T00:00:00Z"},"timestamp":"2026-03-10T00:00:00Z"}`))
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/telegram/digest", func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"data":{"job_id":"job-1"},"timestamp":"2026-03-10T00:00:00Z"}`))
	}).Methods(http.MethodPost)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Tasks(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	client := NewClient(server.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}))

	tasks, err := client.Tasks(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []models.Task{{
		ID:        "t1",
		Title:     "Essay",
		Category:  "Academic",
		Deadline:  time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC),
		Completed: true,
	}}
	if diff := cmp.Diff(want, tasks); diff != "" {
		t.Errorf("Tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	_, err := NewClient(server.URL, nil).Tasks(context.Background(), "u1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "missing token" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}

func TestClient_SetCompleted(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	task, err := NewClient(server.URL, nil).SetCompleted(context.Background(), "t9", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if task.ID != "t9" || !task.Completed {
		t.Errorf("Expected completed task t9, got %+v", task)
	}
}

func TestClient_DeleteNotFound(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	err := NewClient(server.URL, nil).DeleteTask(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 APIError, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("Expected IsNotFound to see through wrapping")
	}
	if apiErr.Message != "not_found" {
		t.Errorf("Expected error code as message, got %q", apiErr.Message)
	}
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	settings, err := NewClient(server.URL+"/", nil).PressureSettings(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := &models.PressureSettings{UserID: "u1", Low: 2, Medium: 4, High: 6, Critical: 9}
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("Settings mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Telegram(t *testing.T) {
	t.Parallel()

	server := newTestBackend(t)
	client := NewClient(server.URL, nil)

	link, err := client.ConnectTelegram(context.Background(), "-100987")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if link.ChatID != -100987 || link.UserID != "u1" {
		t.Errorf("Unexpected link %+v", link)
	}

	jobID, err := client.RequestDigest(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("Expected job-1, got %q", jobID)
	}
}
