// Package backend is a client for the Overlax REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/overlax/overlax/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Profile is the signed-in user's profile
type Profile struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// Client talks to the REST backend with a bearer token
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. ts supplies the Firebase ID token; nil sends requests anonymously.
func NewClient(baseURL string, ts oauth2.TokenSource) *Client {
	httpClient := &http.Client{Timeout: defaultTimeout}
	if ts != nil {
		httpClient.Transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Tasks fetches all tasks of uid.
func (c *Client) Tasks(ctx context.Context, uid string) ([]models.Task, error) {
	var resp struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(uid), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return resp.Tasks, nil
}

// Categories fetches all categories of uid.
func (c *Client) Categories(ctx context.Context, uid string) ([]models.Category, error) {
	var resp struct {
		Categories []models.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/categories/"+url.PathEscape(uid), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return resp.Categories, nil
}

// CreateTask creates a task and returns it as stored.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var resp struct {
		Task models.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &resp.Task, nil
}

// UpdateTask patches a task.
func (c *Client) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	var resp struct {
		Task models.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &resp.Task, nil
}

// SetCompleted marks a task done or pending.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) (*models.Task, error) {
	return c.UpdateTask(ctx, id, models.UpdateTaskRequest{Completed: &completed})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, category models.Category) (*models.Category, error) {
	var resp struct {
		Category models.Category `json:"category"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/categories", category, &resp); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &resp.Category, nil
}

// DeleteCategory removes a category; the backend moves its tasks to Uncategorized.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/user/profile", nil, &p); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &p, nil
}

// TelegramStatus reports whether uid has linked a Telegram chat.
func (c *Client) TelegramStatus(ctx context.Context, uid string) (*models.TelegramStatus, error) {
	var status models.TelegramStatus
	if err := c.do(ctx, http.MethodGet, "/api/telegram/status/"+url.PathEscape(uid), nil, &status); err != nil {
		return nil, fmt.Errorf("failed to fetch telegram status: %w", err)
	}
	return &status, nil
}

// ConnectTelegram links uid's account to chatID.
func (c *Client) ConnectTelegram(ctx context.Context, chatID string) (*models.TelegramLink, error) {
	var link models.TelegramLink
	body := models.ConnectTelegramRequest{ChatID: chatID}
	if err := c.do(ctx, http.MethodPost, "/api/connect-telegram", body, &link); err != nil {
		return nil, fmt.Errorf("failed to connect telegram: %w", err)
	}
	return &link, nil
}

// RequestDigest asks the backend to send a digest to the linked chat now and
// returns the queued job id.
func (c *Client) RequestDigest(ctx context.Context) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/telegram/digest", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to request digest: %w", err)
	}
	return resp.JobID, nil
}

// PressureSettings fetches uid's thresholds.
func (c *Client) PressureSettings(ctx context.Context, uid string) (*models.PressureSettings, error) {
	var resp struct {
		Settings *models.PressureSettings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pressure-settings/"+url.PathEscape(uid), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch pressure settings: %w", err)
	}
	if resp.Settings == nil {
		return models.DefaultPressureSettings(uid), nil
	}
	return resp.Settings, nil
}

// SavePressureSettings stores thresholds.
func (c *Client) SavePressureSettings(ctx context.Context, settings models.PressureSettings) error {
	body := models.SavePressureSettingsRequest{UserID: settings.UserID, Settings: settings}
	if err := c.do(ctx, http.MethodPost, "/api/pressure-settings", body, nil); err != nil {
		return fmt.Errorf("failed to save pressure settings: %w", err)
	}
	return nil
}

// do sends a JSON request. Responses wrapped in the server envelope
// ({"success":true,"data":...}) are unwrapped before decoding into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && len(env.Data) > 0 {
		raw = env.Data
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	return msg
}
