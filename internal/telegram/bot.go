// Package telegram is a minimal Telegram Bot API client used for digests.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxMessageLength is the Bot API limit for one text message, in UTF-16 units.
const MaxMessageLength = 4096

// APIError is returned when Telegram rejects a call
type APIError struct {
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API error %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram API error %d: %s", e.StatusCode, e.Description)
}

// Retryable reports whether the call may succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsBlocked reports whether the user blocked the bot or the chat no longer exists.
func IsBlocked(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusForbidden
}

// Bot is the Telegram Bot API client.
type Bot struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

// NewBot creates a new Telegram Bot client with the given token.
func NewBot(token string) *Bot {
	return &Bot{
		token:      token,
		apiURL:     fmt.Sprintf("https://api.telegram.org/bot%s", token),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetAPIURL overrides the default Telegram API URL for testing purposes.
func (b *Bot) SetAPIURL(url string) {
	b.apiURL = url
}

// Configured reports whether a token was supplied.
func (b *Bot) Configured() bool {
	return b != nil && b.token != ""
}

// SendMessage sends a plain text message to a Telegram chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.SendMessageWithMode(ctx, chatID, text, "")
}

// SendMessageWithMode sends a message with optional parse mode (e.g. "Markdown").
func (b *Bot) SendMessageWithMode(ctx context.Context, chatID int64, text, parseMode string) error {
	payload := SendMessageRequest{
		ChatID:                chatID,
		Text:                  truncate(text, MaxMessageLength),
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	}
	return b.call(ctx, "sendMessage", payload)
}

func (b *Bot) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", b.apiURL, method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiResp APIResponse
	decodeErr := json.Unmarshal(raw, &apiResp)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && apiResp.OK {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Description: apiResp.Description}
	if decodeErr != nil && len(raw) > 0 {
		apiErr.Description = string(raw)
	}
	if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}

// truncate cuts text to at most n runes, marking the cut with an ellipsis.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}
