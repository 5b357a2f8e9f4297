package ai

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExtractAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		validate func(*testing.T, *APIError)
	}{
		{
			name: "nil",
			err:  nil,
			validate: func(t *testing.T, got *APIError) {
				if got != nil {
					t.Errorf("Expected nil, got %+v", got)
				}
			},
		},
		{
			name: "unrelated error",
			err:  errors.New("connection reset"),
			validate: func(t *testing.T, got *APIError) {
				if got != nil {
					t.Errorf("Expected nil, got %+v", got)
				}
			},
		},
		{
			name: "rate limit in message",
			err:  errors.New(`POST "/chat/completions": 429 Too Many Requests {"message":"slow down","type":"requests","code":"rate_limit_exceeded"}`),
			validate: func(t *testing.T, got *APIError) {
				if got == nil || got.StatusCode != 429 || got.IsPermanent {
					t.Fatalf("Expected transient 429, got %+v", got)
				}
				if got.Message != "slow down" || got.Code != "rate_limit_exceeded" {
					t.Errorf("Expected parsed details, got %+v", got)
				}
				if got.RetryAfter == nil || *got.RetryAfter != time.Minute {
					t.Errorf("Expected default retry of 1m, got %v", got.RetryAfter)
				}
			},
		},
		{
			name: "quota exhausted",
			err:  errors.New(`429 {"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}`),
			validate: func(t *testing.T, got *APIError) {
				if got == nil || !got.IsPermanent {
					t.Fatalf("Expected permanent error, got %+v", got)
				}
				if *got.RetryAfter != time.Hour {
					t.Errorf("Expected 1h retry, got %v", *got.RetryAfter)
				}
			},
		},
		{
			name: "already extracted",
			err:  fmt.Errorf("wrapped: %w", &APIError{StatusCode: 500, Message: "boom"}),
			validate: func(t *testing.T, got *APIError) {
				if got == nil || got.StatusCode != 500 {
					t.Errorf("Expected wrapped APIError, got %+v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, ExtractAPIError(tt.err))
		})
	}
}

func TestGetRetryDelay(t *testing.T) {
	t.Parallel()

	rateLimited := &APIError{StatusCode: 429, Message: "slow down"}
	quota := &APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true}
	other := errors.New("bad gateway")

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{"rate limit first attempt", rateLimited, 0, time.Minute},
		{"rate limit backoff", rateLimited, 2, 4 * time.Minute},
		{"rate limit capped", rateLimited, 9, 15 * time.Minute},
		{"quota first attempt", quota, 0, time.Hour},
		{"quota capped", quota, 30, 24 * time.Hour},
		{"generic", other, 1, 10 * time.Second},
		{"generic capped", other, 50, 5 * time.Minute},
		{"negative attempt", other, -3, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetRetryDelay(tt.err, tt.attempt); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSanitizePrompt(t *testing.T) {
	t.Parallel()

	long := make([]byte, MaxPreviewLength+50)
	for i := range long {
		long[i] = 'a'
	}

	if got := SanitizePrompt("line\x00one\x1b", false); got != "lineone" {
		t.Errorf("Expected control characters to be removed, got %q", got)
	}
	if got := SanitizePrompt(string(long), false); len(got) != MaxPreviewLength+3 {
		t.Errorf("Expected preview to be truncated, got length %d", len(got))
	}
	if got := SanitizeResponse(string(long), true); got != string(long) {
		t.Error("Expected full log mode to keep content")
	}
	if HashUserID("u1") == "u1" || len(HashUserID("u1")) != 16 {
		t.Errorf("Unexpected hash %q", HashUserID("u1"))
	}
}
