package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/telemetry"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds a whole streamed completion
	DefaultTimeout = 2 * time.Minute
)

// ErrEmptyReply is returned when the model stream ends without any content
var ErrEmptyReply = errors.New("model returned an empty reply")

// ChatInput is one user turn relayed to the model
type ChatInput struct {
	Message   string
	UserID    string
	TaskCount int
}

// Relay streams a model reply. emit is called once per content fragment, in order;
// an error returned by emit aborts the stream.
type Relay interface {
	StreamChat(ctx context.Context, in ChatInput, emit func(string) error) error
}

// RelayConfig configures an OpenAIRelay
type RelayConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Logger    *zap.Logger
	DebugMode bool
}

// OpenAIRelay implements Relay on an OpenAI-compatible chat completions API
type OpenAIRelay struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIRelay creates a relay. Extra request options are appended after the defaults.
func NewOpenAIRelay(cfg RelayConfig, opts ...option.RequestOption) *OpenAIRelay {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	}

	return &OpenAIRelay{
		client:    openai.NewClient(append(base, opts...)...),
		model:     cfg.Model,
		logger:    cfg.Logger,
		debugMode: cfg.DebugMode,
	}
}

// SystemPrompt is the instruction sent ahead of every user turn.
func SystemPrompt(taskCount int) string {
	var b strings.Builder
	b.WriteString("You are Overlax, a friendly assistant that helps students and professionals manage tasks and deadlines. ")
	b.WriteString("Keep answers short and practical. Use plain text with simple bullet points when listing steps.")
	switch {
	case taskCount == 1:
		b.WriteString("\n\nThe user currently has 1 task.")
	case taskCount > 1:
		fmt.Fprintf(&b, "\n\nThe user currently has %d tasks.", taskCount)
	}
	return b.String()
}

// StreamChat sends in to the model and forwards content fragments to emit.
func (r *OpenAIRelay) StreamChat(ctx context.Context, in ChatInput, emit func(string) error) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ai.stream_chat")
	span.SetAttributes(
		attribute.String("ai.model", r.model),
		attribute.Int("ai.task_count", in.TaskCount),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	requestID := ExtractRequestID(ctx)
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(in.TaskCount)),
			openai.UserMessage(in.Message),
		},
	}

	if r.debugMode {
		r.logger.Debug("llm_api_request",
			zap.String("operation", "stream_chat"),
			zap.String("model", r.model),
			zap.String("prompt_preview", SanitizePrompt(in.Message, false)),
			zap.String("user_id", HashUserID(in.UserID)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	stream := r.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var reply strings.Builder
	fragments := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		fragments++
		reply.WriteString(content)
		if err := emit(content); err != nil {
			return fmt.Errorf("failed to forward reply: %w", err)
		}
	}
	latency := time.Since(start)
	span.SetAttributes(attribute.Int("ai.fragments", fragments))

	if err := stream.Err(); err != nil {
		if r.debugMode {
			r.logger.Debug("llm_api_error",
				zap.String("operation", "stream_chat"),
				zap.String("model", r.model),
				zap.Error(err),
				zap.Int("fragments", fragments),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return fmt.Errorf("failed to stream chat: %w", apiErr)
		}
		return fmt.Errorf("failed to stream chat: %w", err)
	}

	if fragments == 0 {
		return ErrEmptyReply
	}

	if r.debugMode {
		r.logger.Debug("llm_api_response",
			zap.String("operation", "stream_chat"),
			zap.String("model", r.model),
			zap.Int("response_length", reply.Len()),
			zap.String("response_preview", SanitizeResponse(reply.String(), false)),
			zap.Int("fragments", fragments),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return nil
}
