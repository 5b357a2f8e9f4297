package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/queue"
	"github.com/overlax/overlax/internal/validation"
)

// TelegramHandler links Telegram chats and requests digests
type TelegramHandler struct {
	links     database.TelegramLinkStore
	jobs      queue.Enqueuer
	digestTTL time.Duration
	logger    *zap.Logger
}

// NewTelegramHandler creates a new telegram handler. jobs may be nil when no queue is configured.
func NewTelegramHandler(links database.TelegramLinkStore, jobs queue.Enqueuer, digestTTL time.Duration, logger *zap.Logger) *TelegramHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramHandler{links: links, jobs: jobs, digestTTL: digestTTL, logger: logger}
}

// RegisterRoutes registers telegram routes
func (h *TelegramHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/telegram/status/{uid}", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/connect-telegram", h.Connect).Methods(http.MethodPost)
	r.HandleFunc("/api/telegram/digest", h.Digest).Methods(http.MethodPost)
}

// Status reports whether the caller has a linked chat
func (h *TelegramHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	if !requireOwner(w, r, uid) {
		return
	}

	link, err := h.links.Get(r.Context(), uid)
	if errors.Is(err, database.ErrNotFound) {
		respondJSON(w, http.StatusOK, models.TelegramStatus{Connected: false})
		return
	}
	if err != nil {
		h.logger.Error("failed_to_load_telegram_link", zap.String("user_id", uid), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load Telegram status")
		return
	}

	chatID := link.ChatID
	respondJSON(w, http.StatusOK, models.TelegramStatus{Connected: true, ChatID: &chatID})
}

// Connect links the caller to the chat id handed over by the bot
func (h *TelegramHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.ConnectTelegramRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chatID, err := validation.ParseChatID(req.ChatID)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	link, err := h.links.Link(r.Context(), user.UID, chatID)
	if err != nil {
		h.logger.Error("failed_to_link_telegram_chat", zap.String("user_id", user.UID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to connect Telegram")
		return
	}

	h.logger.Info("telegram_chat_linked", zap.String("user_id", user.UID))
	respondJSON(w, http.StatusOK, link)
}

// Digest enqueues an immediate digest for the caller
func (h *TelegramHandler) Digest(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.jobs == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Digests are not enabled")
		return
	}

	if _, err := h.links.Get(r.Context(), user.UID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusConflict, "Conflict", "Telegram is not connected")
			return
		}
		h.logger.Error("failed_to_load_telegram_link", zap.String("user_id", user.UID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load Telegram status")
		return
	}

	job := queue.NewDigestJob(user.UID, "manual", h.digestTTL)
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed_to_enqueue_digest", zap.String("user_id", user.UID), zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to queue digest")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID.String()})
}
