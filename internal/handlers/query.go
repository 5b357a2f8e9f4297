package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/models"
)

// SnapshotSource serves cached per-user task snapshots
type SnapshotSource interface {
	Tasks(ctx context.Context, uid string) ([]models.Task, error)
	Invalidate(uid string)
}

// QueryHandler answers chat utterances from the caller's task snapshot
type QueryHandler struct {
	snapshots SnapshotSource
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewQueryHandler creates a new query handler. loc sets day boundaries and rendering.
func NewQueryHandler(snapshots SnapshotSource, loc *time.Location, logger *zap.Logger) *QueryHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{snapshots: snapshots, loc: loc, now: time.Now, logger: logger}
}

// RegisterRoutes registers query routes
func (h *QueryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/ai/query", h.Query).Methods(http.MethodPost)
}

// Query routes one utterance. Deferred results carry no text; the client then streams from /api/ai/chat.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.SmartQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tasks, err := h.snapshots.Tasks(r.Context(), user.UID)
	if err != nil {
		h.logger.Error("failed_to_load_task_snapshot", zap.String("user_id", user.UID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load tasks")
		return
	}

	uid := user.UID
	router := assistant.NewRouter(
		assistant.WithLocation(h.loc),
		assistant.WithClock(h.now),
		assistant.WithRefresher(assistant.RefresherFunc(func() { h.snapshots.Invalidate(uid) })),
	)
	result := router.Route(assistant.Input{
		Utterance:     req.Message,
		Tasks:         tasks,
		Authenticated: true,
	})

	respondJSON(w, http.StatusOK, models.SmartQueryResponse{
		Kind:   string(result.Kind),
		Intent: string(result.Intent),
		Text:   result.Text,
	})
}
