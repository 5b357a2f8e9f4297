package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/pressure"
)

// TaskSource loads a user's tasks
type TaskSource interface {
	Tasks(ctx context.Context, uid string) ([]models.Task, error)
}

// PressureHandler serves pressure thresholds and reports
type PressureHandler struct {
	settings database.PressureSettingsStore
	tasks    TaskSource
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewPressureHandler creates a new pressure handler
func NewPressureHandler(settings database.PressureSettingsStore, tasks TaskSource, loc *time.Location, logger *zap.Logger) *PressureHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PressureHandler{settings: settings, tasks: tasks, loc: loc, now: time.Now, logger: logger}
}

// RegisterRoutes registers pressure routes
func (h *PressureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/pressure-settings/{uid}", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/pressure-settings", h.SaveSettings).Methods(http.MethodPost)
	r.HandleFunc("/api/pressure/{uid}", h.Report).Methods(http.MethodGet)
}

// loadSettings returns the saved thresholds or the defaults.
func (h *PressureHandler) loadSettings(ctx context.Context, uid string) (*models.PressureSettings, error) {
	settings, err := h.settings.Get(ctx, uid)
	if errors.Is(err, database.ErrNotFound) {
		return models.DefaultPressureSettings(uid), nil
	}
	return settings, err
}

// GetSettings returns the caller's thresholds
func (h *PressureHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	if !requireOwner(w, r, uid) {
		return
	}

	settings, err := h.loadSettings(r.Context(), uid)
	if err != nil {
		h.logger.Error("failed_to_load_pressure_settings", zap.String("user_id", uid), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load pressure settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// SaveSettings stores the caller's thresholds
func (h *PressureHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SavePressureSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Settings.UserID = req.UserID
	if !validateBody(w, &req) {
		return
	}
	if !requireOwner(w, r, req.UserID) {
		return
	}

	settings := req.Settings
	if err := h.settings.Upsert(r.Context(), &settings); err != nil {
		h.logger.Error("failed_to_save_pressure_settings", zap.String("user_id", req.UserID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save pressure settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// Report returns the pressure gauge, suggestions and counters for the caller
func (h *PressureHandler) Report(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	if !requireOwner(w, r, uid) {
		return
	}

	settings, err := h.loadSettings(r.Context(), uid)
	if err != nil {
		h.logger.Error("failed_to_load_pressure_settings", zap.String("user_id", uid), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load pressure settings")
		return
	}

	tasks, err := h.tasks.Tasks(r.Context(), uid)
	if err != nil {
		h.logger.Error("failed_to_load_tasks", zap.String("user_id", uid), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load tasks")
		return
	}

	category := r.URL.Query().Get("category")
	respondJSON(w, http.StatusOK, pressure.Build(tasks, *settings, category, h.now(), h.loc))
}
