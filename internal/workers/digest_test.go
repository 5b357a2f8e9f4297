package workers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/queue"
	"github.com/overlax/overlax/internal/telegram"
)

var fixedNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type mockTaskReader struct {
	tasks []models.Task
	err   error
}

func (m *mockTaskReader) TasksByUser(ctx context.Context, uid string) ([]models.Task, error) {
	return m.tasks, m.err
}

type mockLinkStore struct {
	mu       sync.Mutex
	links    map[string]int64
	unlinked []string
	listErr  error
}

func newMockLinkStore(links map[string]int64) *mockLinkStore {
	return &mockLinkStore{links: links}
}

func (m *mockLinkStore) Get(ctx context.Context, uid string) (*models.TelegramLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chatID, ok := m.links[uid]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &models.TelegramLink{UserID: uid, ChatID: chatID}, nil
}

func (m *mockLinkStore) Link(ctx context.Context, uid string, chatID int64) (*models.TelegramLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[uid] = chatID
	return &models.TelegramLink{UserID: uid, ChatID: chatID}, nil
}

func (m *mockLinkStore) Unlink(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, uid)
	m.unlinked = append(m.unlinked, uid)
	return nil
}

func (m *mockLinkStore) ListLinked(ctx context.Context) ([]models.TelegramLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.TelegramLink, 0, len(m.links))
	for uid, chatID := range m.links {
		out = append(out, models.TelegramLink{UserID: uid, ChatID: chatID})
	}
	return out, nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type mockSender struct {
	sent []sentMessage
	err  error
}

func (m *mockSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type mockQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (m *mockQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

func newTestWorker(links *mockLinkStore, sender *mockSender, q queue.Enqueuer) *DigestWorker {
	tasks := &mockTaskReader{tasks: []models.Task{
		{ID: "1", Title: "Essay", Category: "Academic", Deadline: fixedNow.Add(6 * time.Hour)},
		{ID: "2", Title: "Report", Category: "Work", Deadline: fixedNow.Add(-48 * time.Hour)},
	}}
	w := NewDigestWorker(tasks, links, sender, q, time.UTC, nil)
	w.now = func() time.Time { return fixedNow }
	return w
}

func TestDigestWorker_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		links    map[string]int64
		sendErr  error
		queueErr error
		retries  int
		wantErr  bool
		validate func(*testing.T, *mockMessage, *mockSender, *mockLinkStore, *mockQueue)
	}{
		{
			name:  "sends digest to linked chat",
			links: map[string]int64{"u1": 42},
			validate: func(t *testing.T, msg *mockMessage, sender *mockSender, _ *mockLinkStore, _ *mockQueue) {
				if !msg.acked {
					t.Error("Expected message to be acked")
				}
				if len(sender.sent) != 1 || sender.sent[0].chatID != 42 {
					t.Fatalf("Expected one message to chat 42, got %+v", sender.sent)
				}
				text := sender.sent[0].text
				if !strings.Contains(text, "Essay") || !strings.Contains(text, "Report") {
					t.Errorf("Expected due and overdue tasks in digest, got %q", text)
				}
			},
		},
		{
			name:  "unlinked user is acked and skipped",
			links: map[string]int64{},
			validate: func(t *testing.T, msg *mockMessage, sender *mockSender, _ *mockLinkStore, _ *mockQueue) {
				if !msg.acked || msg.nacked {
					t.Error("Expected ack without nack")
				}
				if len(sender.sent) != 0 {
					t.Errorf("Expected nothing to be sent, got %+v", sender.sent)
				}
			},
		},
		{
			name:    "blocked chat is unlinked",
			links:   map[string]int64{"u1": 42},
			sendErr: &telegram.APIError{StatusCode: http.StatusForbidden, Description: "Forbidden: bot was blocked by the user"},
			validate: func(t *testing.T, msg *mockMessage, _ *mockSender, links *mockLinkStore, _ *mockQueue) {
				if !msg.acked {
					t.Error("Expected message to be acked")
				}
				if len(links.unlinked) != 1 || links.unlinked[0] != "u1" {
					t.Errorf("Expected u1 to be unlinked, got %v", links.unlinked)
				}
			},
		},
		{
			name:    "flood wait is re-enqueued with retry_after",
			links:   map[string]int64{"u1": 42},
			sendErr: &telegram.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 5 * time.Minute},
			wantErr: true,
			validate: func(t *testing.T, msg *mockMessage, _ *mockSender, _ *mockLinkStore, q *mockQueue) {
				if !msg.acked || msg.nacked {
					t.Error("Expected original message to be acked after re-enqueue")
				}
				if len(q.jobs) != 1 {
					t.Fatalf("Expected one re-enqueued job, got %d", len(q.jobs))
				}
				job := q.jobs[0]
				if job.RetryCount != 1 || job.NotBefore == nil {
					t.Fatalf("Expected delayed retry, got %+v", job)
				}
				if wait := time.Until(*job.NotBefore); wait < 4*time.Minute {
					t.Errorf("Expected retry_after to be honoured, got %v", wait)
				}
			},
		},
		{
			name:     "network error requeued when re-enqueue fails",
			links:    map[string]int64{"u1": 42},
			sendErr:  errors.New("connection reset"),
			queueErr: errors.New("broker down"),
			wantErr:  true,
			validate: func(t *testing.T, msg *mockMessage, _ *mockSender, _ *mockLinkStore, _ *mockQueue) {
				if msg.acked || !msg.nacked || !msg.requeue {
					t.Errorf("Expected nack with requeue, got %+v", msg)
				}
			},
		},
		{
			name:    "bad request goes to DLQ",
			links:   map[string]int64{"u1": 42},
			sendErr: &telegram.APIError{StatusCode: http.StatusBadRequest, Description: "chat not found"},
			wantErr: true,
			validate: func(t *testing.T, msg *mockMessage, _ *mockSender, _ *mockLinkStore, q *mockQueue) {
				if !msg.nacked || msg.requeue {
					t.Errorf("Expected nack without requeue, got %+v", msg)
				}
				if len(q.jobs) != 0 {
					t.Error("Expected no retry for permanent failure")
				}
			},
		},
		{
			name:    "retries exhausted goes to DLQ",
			links:   map[string]int64{"u1": 42},
			sendErr: &telegram.APIError{StatusCode: http.StatusBadGateway},
			retries: queue.DefaultMaxRetries,
			wantErr: true,
			validate: func(t *testing.T, msg *mockMessage, _ *mockSender, _ *mockLinkStore, q *mockQueue) {
				if !msg.nacked || msg.requeue || len(q.jobs) != 0 {
					t.Errorf("Expected dead-lettering, got msg=%+v jobs=%d", msg, len(q.jobs))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			links := newMockLinkStore(tt.links)
			sender := &mockSender{err: tt.sendErr}
			q := &mockQueue{err: tt.queueErr}
			w := newTestWorker(links, sender, q)

			job := queue.NewDigestJob("u1", "schedule", 0)
			job.RetryCount = tt.retries
			msg := &mockMessage{job: job}

			err := w.ProcessJob(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			tt.validate(t, msg, sender, links, q)
		})
	}
}

func TestDigestWorker_UnknownJobType(t *testing.T) {
	t.Parallel()

	w := newTestWorker(newMockLinkStore(map[string]int64{}), &mockSender{}, &mockQueue{})
	msg := &mockMessage{job: queue.NewJob("task_analysis", "u1")}

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Error("Expected error for unknown job type")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected unknown job to be dead-lettered, got %+v", msg)
	}
}

func TestDigestWorker_ClearDay(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	w := NewDigestWorker(&mockTaskReader{}, newMockLinkStore(map[string]int64{"u1": 1}), sender, nil, time.UTC, nil)
	if err := w.Process(context.Background(), queue.NewDigestJob("u1", "manual", 0)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].text != assistant.MsgDigestClear {
		t.Errorf("Expected clear-day message, got %+v", sender.sent)
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{"first attempt", errors.New("x"), 0, 30 * time.Second},
		{"second attempt", errors.New("x"), 1, time.Minute},
		{"capped", errors.New("x"), 8, 10 * time.Minute},
		{"negative attempt", errors.New("x"), -1, 30 * time.Second},
		{"retry_after wins", &telegram.APIError{StatusCode: 429, RetryAfter: 2 * time.Minute}, 0, 2 * time.Minute},
		{"backoff wins", &telegram.APIError{StatusCode: 429, RetryAfter: time.Second}, 2, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RetryDelay(tt.err, tt.attempt); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
