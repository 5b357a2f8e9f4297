package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.yaml")
	doc := "openapi: 3.0.3\ninfo:\n  title: Overlax API\n  version: 1.0.0\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("Failed to write spec: %v", err)
	}
	h := NewOpenAPIHandler(path)

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h.ServeYAML(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
		if w.Code != http.StatusOK || w.Body.String() != doc {
			t.Errorf("Expected document as stored, got %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h.ServeJSON(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		info, _ := body["info"].(map[string]any)
		if info["title"] != "Overlax API" {
			t.Errorf("Expected title to survive conversion, got %v", body["info"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		NewOpenAPIHandler(filepath.Join(dir, "nope.yaml")).ServeYAML(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}
