// Package taskstore keeps the task snapshot shared by the chat and the views,
// and the machinery that keeps it fresh.
package taskstore

import (
	"slices"
	"sync"

	"github.com/overlax/overlax/internal/models"
)

// EventType names a change to the task collection
type EventType string

const (
	EventTaskAdded   EventType = "taskAdded"
	EventTaskUpdated EventType = "taskUpdated"
	EventTaskDeleted EventType = "taskDeleted"
	EventRefreshed   EventType = "refreshed"
)

// Event is published whenever tasks change
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"uid,omitempty"`
	TaskID string    `json:"taskId,omitempty"`
}

// IsMutation reports whether the event describes a change that invalidates the snapshot.
func (e Event) IsMutation() bool {
	switch e.Type {
	case EventTaskAdded, EventTaskUpdated, EventTaskDeleted:
		return true
	default:
		return false
	}
}

const subscriberBuffer = 16

// Store holds the current task and category snapshot and fans out change events
type Store struct {
	mu         sync.RWMutex
	tasks      []models.Task
	categories []models.Category

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{subs: make(map[int]chan Event)}
}

// Tasks returns a copy of the task snapshot.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneTasks(s.tasks)
}

// Categories returns a copy of the category snapshot.
func (s *Store) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// Replace swaps in a freshly fetched snapshot and publishes EventRefreshed.
func (s *Store) Replace(tasks []models.Task, categories []models.Category) {
	s.mu.Lock()
	s.tasks = models.CloneTasks(tasks)
	if categories != nil {
		s.categories = slices.Clone(categories)
	}
	s.mu.Unlock()

	s.Publish(Event{Type: EventRefreshed})
}

// Subscribe returns a channel of future events and a func that ends the subscription.
// Slow subscribers drop events rather than block publishers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber.
func (s *Store) Publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
