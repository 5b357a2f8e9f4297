package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		validate func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			},
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				if w.Code != http.StatusOK {
					t.Errorf("Expected status 200, got %d", w.Code)
				}
			},
		},
		{
			name: "panic recovered",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			},
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				if w.Code != http.StatusInternalServerError {
					t.Errorf("Expected status 500, got %d", w.Code)
				}
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
				}

				var body ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if body.Success {
					t.Error("Expected success to be false")
				}
				if body.Message != "An unexpected error occurred" {
					t.Errorf("Expected generic message, got '%s'", body.Message)
				}
				if body.Path != "/test" {
					t.Errorf("Expected path '/test', got '%s'", body.Path)
				}
				if body.Timestamp == "" {
					t.Error("Expected timestamp to be set")
				}
			},
		},
		{
			name: "nil map panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var nilMap map[string]string
				nilMap["key"] = "value"
			},
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				if w.Code != http.StatusInternalServerError {
					t.Errorf("Expected status 500, got %d", w.Code)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			ErrorHandler(zap.NewNop())(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			tt.validate(t, w)
		})
	}
}

func TestErrorHandler_AbortPropagates(t *testing.T) {
	t.Parallel()

	handler := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to be re-raised, got %v", got)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil))
	t.Error("Expected panic")
}
