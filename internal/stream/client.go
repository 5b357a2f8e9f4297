package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/overlax/overlax/internal/models"
)

const chatPath = "/api/ai/chat"

// StatusError is returned when the chat endpoint answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts a message to the chat endpoint and assembles the streamed reply
type Client struct {
	baseURL    string
	httpClient *http.Client
	assembler  *Assembler
}

// NewClient creates a streaming chat client. A nil token source sends no
// Authorization header. The client has no overall timeout; cancel the context instead.
func NewClient(baseURL string, ts oauth2.TokenSource, assembler *Assembler) *Client {
	httpClient := &http.Client{}
	if ts != nil {
		httpClient.Transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}
	if assembler == nil {
		assembler = &Assembler{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		assembler:  assembler,
	}
}

// Stream sends req and returns the assembled reply. onUpdate sees the full text so far.
func (c *Client) Stream(ctx context.Context, req models.ChatRequest, onUpdate func(full string)) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return c.assembler.Assemble(ctx, resp.Body, onUpdate)
}
