package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"github.com/overlax/overlax/internal/models"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Frame
	}{
		{"blank", "   ", Frame{Kind: FrameSkip}},
		{"done", "data: [DONE]", Frame{Kind: FrameDone}},
		{"bare end", "[END]", Frame{Kind: FrameDone}},
		{"data end", "data: [END]", Frame{Kind: FrameDone}},
		{"done with trailing cr", "data: [DONE]\r", Frame{Kind: FrameDone}},
		{"delta", `data: {"choices":[{"delta":{"content":"Hi"}}]}`, Frame{Kind: FrameDelta, Content: "Hi"}},
		{"delta keeps inner spaces", `data: {"choices":[{"delta":{"content":" there "}}]}`, Frame{Kind: FrameDelta, Content: " there "}},
		{"role only chunk", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, Frame{Kind: FrameSkip}},
		{"no choices", `data: {"choices":[]}`, Frame{Kind: FrameSkip}},
		{"malformed", `data: {"choices":[`, Frame{Kind: FrameInvalid, Content: `{"choices":[`}},
		{"raw", "plain text", Frame{Kind: FrameRaw, Content: "plain text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, ParseLine(tt.line)); diff != "" {
				t.Errorf("Frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeDelta_RoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeDelta("ক \"quoted\"\n")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasSuffix(string(encoded), "\n\n") {
		t.Errorf("Expected frame separator, got %q", encoded)
	}

	frame := ParseLine(strings.TrimSuffix(string(encoded), "\n\n"))
	if frame.Kind != FrameDelta || frame.Content != "ক \"quoted\"\n" {
		t.Errorf("Unexpected frame %+v", frame)
	}
}

func TestAssembler_Assemble(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		fallbackRaw bool
		want        string
		wantUpdates []string
	}{
		{
			name: "two deltas then done",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n" +
				"data: [DONE]\n",
			want:        "AB",
			wantUpdates: []string{"A", "AB"},
		},
		{
			name: "malformed frame between valid frames",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n" +
				"data: {not json}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n\n" +
				"data: [DONE]\n\n",
			want:        "AB",
			wantUpdates: []string{"A", "AB"},
		},
		{
			name: "frames after done are ignored",
			input: "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n" +
				"data: [DONE]\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n",
			want:        "A",
			wantUpdates: []string{"A"},
		},
		{
			name:        "eof without sentinel",
			input:       "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}",
			want:        "A",
			wantUpdates: []string{"A"},
		},
		{
			name:        "raw lines ignored by default",
			input:       "hello\ndata: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n[END]\n",
			want:        "A",
			wantUpdates: []string{"A"},
		},
		{
			name:        "raw fallback enabled",
			input:       "hello \ndata: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n[END]\n",
			fallbackRaw: true,
			want:        "helloA",
			wantUpdates: []string{"hello", "helloA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			asm := &Assembler{FallbackRaw: tt.fallbackRaw}
			var updates []string
			got, err := asm.Assemble(context.Background(), strings.NewReader(tt.input), func(full string) {
				updates = append(updates, full)
			})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if diff := cmp.Diff(tt.wantUpdates, updates); diff != "" {
				t.Errorf("Updates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssembler_Cancelled(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n"))
		_, _ = pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n"))
		_ = pw.Close()
	}()

	// Cancel as soon as the first fragment is rendered.
	got, err := (&Assembler{}).Assemble(ctx, pr, func(string) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if got != "A" {
		t.Errorf("Expected partial text 'A', got %q", got)
	}
}

func TestClient_Stream(t *testing.T) {
	t.Parallel()

	type captured struct {
		auth string
		body models.ChatRequest
	}
	received := make(chan captured, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ai/chat" {
			http.NotFound(w, r)
			return
		}
		var c captured
		c.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		received <- c

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			frame, _ := EncodeDelta(part)
			_, _ = w.Write(frame)
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write(DoneFrame())
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "id-token"}), nil)

	got, err := client.Stream(context.Background(), models.ChatRequest{Message: "hi", UID: "u1", TaskCount: 3}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("Expected 'Hello', got %q", got)
	}
	c := <-received
	if c.auth != "Bearer id-token" {
		t.Errorf("Expected bearer token, got %q", c.auth)
	}
	want := models.ChatRequest{Message: "hi", UID: "u1", TaskCount: 3}
	if diff := cmp.Diff(want, c.body); diff != "" {
		t.Errorf("Request body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_StreamNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).Stream(context.Background(), models.ChatRequest{Message: "hi"}, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", statusErr.StatusCode)
	}
	if statusErr.Body != "upstream unavailable" {
		t.Errorf("Expected body snippet, got %q", statusErr.Body)
	}
}

func TestClient_StreamAbortedMidway(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frame, _ := EncodeDelta("partial")
		_, _ = w.Write(frame)
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	var updates []string
	got, err := NewClient(server.URL, nil, nil).Stream(context.Background(), models.ChatRequest{Message: "hi"}, func(full string) {
		updates = append(updates, full)
	})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Expected unexpected EOF, got %v", err)
	}
	if got != "partial" {
		t.Errorf("Expected text received before the abort, got %q", got)
	}
	if diff := cmp.Diff([]string{"partial"}, updates); diff != "" {
		t.Errorf("Updates mismatch (-want +got):\n%s", diff)
	}
}
