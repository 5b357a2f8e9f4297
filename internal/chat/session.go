// Package chat runs one conversation: local routing first, the remote stream otherwise.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/stream"
)

// WelcomeMessage is the first AI message of every session.
const WelcomeMessage = "Hi! I'm Overlax AI. Ask me what's due today, or anything else on your mind."

var (
	// ErrBusy is returned when a message is sent while a reply is still streaming.
	ErrBusy = errors.New("chat: a reply is still in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat: session closed")
)

// Streamer sends a message to the remote assistant and streams the reply
type Streamer interface {
	Stream(ctx context.Context, req models.ChatRequest, onUpdate func(full string)) (string, error)
}

// TaskSource provides the current task snapshot
type TaskSource interface {
	Tasks() []models.Task
}

// TaskSourceFunc adapts a function to TaskSource
type TaskSourceFunc func() []models.Task

// Tasks calls f.
func (f TaskSourceFunc) Tasks() []models.Task {
	return f()
}

// OutcomeKind describes what Send did
type OutcomeKind string

const (
	OutcomeIgnored     OutcomeKind = "ignored"
	OutcomeReply       OutcomeKind = "reply"
	OutcomeShowAddForm OutcomeKind = "show_add_form"
	OutcomeStreamed    OutcomeKind = "streamed"
	OutcomeFailed      OutcomeKind = "failed"
)

// Outcome is the result of one Send
type Outcome struct {
	Kind    OutcomeKind
	Intent  assistant.Intent
	Message models.ChatMessage
	// Err holds the stream failure for OutcomeFailed; the message already shows FailureMessage.
	Err error
}

// Session holds the message list of one conversation
type Session struct {
	router   *assistant.Router
	streamer Streamer
	tasks    TaskSource
	logger   *zap.Logger
	newID    func() string

	mu            sync.Mutex
	uid           string
	authenticated bool
	messages      []models.ChatMessage
	streaming     bool
	observers     []func(models.ChatMessage)

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Session
type Option func(*Session)

// WithIdentity sets the signed-in user.
func WithIdentity(uid string, authenticated bool) Option {
	return func(s *Session) {
		s.uid = uid
		s.authenticated = authenticated
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSession creates a session and appends the welcome message
func NewSession(router *assistant.Router, streamer Streamer, tasks TaskSource, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		router:   router,
		streamer: streamer,
		tasks:    tasks,
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.messages = append(s.messages, models.ChatMessage{ID: s.newID(), Text: WelcomeMessage, Sender: models.SenderAI})
	return s
}

// SetIdentity updates the signed-in user, e.g. after login or logout.
func (s *Session) SetIdentity(uid string, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = uid
	s.authenticated = authenticated
}

// OnUpdate registers fn to be called whenever a message is added or its text changes.
func (s *Session) OnUpdate(fn func(models.ChatMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Messages returns a copy of the message list.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Busy reports whether a reply is in progress.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Close cancels any in-flight stream. Later sends return ErrClosed.
func (s *Session) Close() {
	s.cancel()
}

// Send handles one user message. Blank input is ignored; a send while another
// is in progress returns ErrBusy and leaves the message list untouched.
func (s *Session) Send(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{Kind: OutcomeIgnored}, nil
	}
	if s.ctx.Err() != nil {
		return Outcome{Kind: OutcomeIgnored}, ErrClosed
	}

	release, ok := s.acquire()
	if !ok {
		return Outcome{Kind: OutcomeIgnored}, ErrBusy
	}
	defer release()

	s.mu.Lock()
	uid, authenticated := s.uid, s.authenticated
	s.mu.Unlock()

	s.append(models.ChatMessage{ID: s.newID(), Text: text, Sender: models.SenderUser})

	snapshot := s.tasks.Tasks()
	result := s.router.Route(assistant.Input{
		Utterance:     text,
		Tasks:         snapshot,
		Authenticated: authenticated,
	})

	s.logger.Debug("chat_routed",
		zap.String("intent", string(result.Intent)),
		zap.String("kind", string(result.Kind)),
		zap.String("utterance", logger.SanitizeUtterance(text)))

	switch result.Kind {
	case assistant.KindReply:
		msg := s.append(models.ChatMessage{ID: s.newID(), Text: result.Text, Sender: models.SenderAI})
		return Outcome{Kind: OutcomeReply, Intent: result.Intent, Message: msg}, nil
	case assistant.KindShowAddForm:
		return Outcome{Kind: OutcomeShowAddForm, Intent: result.Intent}, nil
	}

	return s.stream(ctx, models.ChatRequest{Message: text, UID: uid, TaskCount: len(snapshot)}), nil
}

func (s *Session) stream(ctx context.Context, req models.ChatRequest) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	aiID := ""
	update := func(full string) {
		aiID = s.upsert(aiID, full)
	}

	reply, err := s.streamer.Stream(ctx, req, update)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		s.logger.Warn("chat_stream_failed", zap.Error(err))
		aiID = s.upsert(aiID, stream.FailureMessage)
		return Outcome{
			Kind:    OutcomeFailed,
			Intent:  assistant.IntentNone,
			Message: models.ChatMessage{ID: aiID, Text: stream.FailureMessage, Sender: models.SenderAI},
			Err:     err,
		}
	}

	aiID = s.upsert(aiID, reply)
	return Outcome{
		Kind:    OutcomeStreamed,
		Intent:  assistant.IntentNone,
		Message: models.ChatMessage{ID: aiID, Text: reply, Sender: models.SenderAI},
	}
}

// acquire takes the in-flight guard. The returned release must be deferred.
func (s *Session) acquire() (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return nil, false
	}
	s.streaming = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.streaming = false
			s.mu.Unlock()
		})
	}, true
}

func (s *Session) append(msg models.ChatMessage) models.ChatMessage {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	observers := s.observers
	s.mu.Unlock()

	notify(observers, msg)
	return msg
}

// upsert creates the AI message on first use and replaces its text afterwards.
func (s *Session) upsert(id, text string) string {
	s.mu.Lock()
	var msg models.ChatMessage
	found := false
	if id != "" {
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].ID == id {
				if s.messages[i].Text == text {
					s.mu.Unlock()
					return id
				}
				s.messages[i].Text = text
				msg = s.messages[i]
				found = true
				break
			}
		}
	}
	if !found {
		msg = models.ChatMessage{ID: s.newID(), Text: text, Sender: models.SenderAI}
		s.messages = append(s.messages, msg)
	}
	observers := s.observers
	s.mu.Unlock()

	notify(observers, msg)
	return msg.ID
}

func notify(observers []func(models.ChatMessage), msg models.ChatMessage) {
	for _, fn := range observers {
		fn(msg)
	}
}
