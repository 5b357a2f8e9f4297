package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/request"
	"github.com/overlax/overlax/internal/services/ai"
	"github.com/overlax/overlax/internal/stream"
)

// ChatPath is the streaming chat endpoint
const ChatPath = "/api/ai/chat"

// ChatHandler relays chat turns to the model as an event stream
type ChatHandler struct {
	relay  ai.Relay
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(relay ai.Relay, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{relay: relay, logger: logger}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(ChatPath, h.Chat).Methods(http.MethodPost)
}

// Chat streams the model reply as data frames terminated by [DONE].
// A failure before the first fragment is reported as a JSON 502.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// A verified token outranks the uid in the body.
	uid := req.UID
	if authed := request.UID(r); authed != "" {
		uid = authed
	}

	requestID := uuid.NewString()
	ctx := ai.WithRequestID(r.Context(), requestID)
	flusher, _ := w.(http.Flusher)

	started := false
	emit := func(content string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
			w.WriteHeader(http.StatusOK)
			started = true
		}
		frame, err := stream.EncodeDelta(content)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := h.relay.StreamChat(ctx, ai.ChatInput{
		Message:   req.Message,
		UserID:    uid,
		TaskCount: req.TaskCount,
	}, emit)

	if err != nil {
		if ctx.Err() != nil {
			h.logger.Debug("chat_client_disconnected", zap.String("request_id", requestID))
			return
		}

		h.logger.Warn("chat_relay_failed",
			zap.String("request_id", requestID),
			zap.Bool("started", started),
			zap.Bool("rate_limited", ai.IsRateLimitError(err)),
			zap.String("error", logpkg.SanitizeError(err)),
		)

		if !started {
			if ai.IsRateLimitError(err) {
				delay := ai.GetRetryDelay(err, 0)
				if apiErr := ai.ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil {
					delay = *apiErr.RetryAfter
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())))
			}
			respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The AI service is unavailable. Please try again.")
			return
		}

		// Headers are gone; dropping the connection keeps a partial reply from looking complete.
		panic(http.ErrAbortHandler)
	}

	if _, err := w.Write(stream.DoneFrame()); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}
