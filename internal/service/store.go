package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/capitalize-ai/campuschat/internal/model"
)

var (
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationClosed is returned when appending to a closed conversation.
	ErrConversationClosed = errors.New("conversation closed")
)

// ConversationStore persists whole conversation documents.
type ConversationStore interface {
	// Get returns the conversation or an error wrapping ErrConversationNotFound.
	Get(ctx context.Context, id string) (*model.Conversation, error)
	// Put creates or replaces a conversation.
	Put(ctx context.Context, conv *model.Conversation) error
	// List returns every stored conversation in no particular order.
	List(ctx context.Context) ([]*model.Conversation, error)
}

// EventLog receives every stored message and lifecycle event.
type EventLog interface {
	PublishMessage(ctx context.Context, conversationID string, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// MemoryStore is a ConversationStore kept in process memory. It stores
// copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

var _ ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*model.Conversation)}
}

// Get implements ConversationStore.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return clone(conv), nil
}

// Put implements ConversationStore.
func (s *MemoryStore) Put(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = clone(conv)
	return nil
}

// List implements ConversationStore.
func (s *MemoryStore) List(ctx context.Context) ([]*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, clone(conv))
	}
	return out, nil
}

func clone(conv *model.Conversation) *model.Conversation {
	c := *conv
	c.Messages = append([]model.Message(nil), conv.Messages...)
	return &c
}

// MemoryEventLog records published entries in memory.
type MemoryEventLog struct {
	mu       sync.Mutex
	messages []model.Message
	events   []model.ConversationEvent
}

var _ EventLog = (*MemoryEventLog)(nil)

// NewMemoryEventLog creates an empty event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

// PublishMessage implements EventLog.
func (l *MemoryEventLog) PublishMessage(ctx context.Context, conversationID string, msg *model.Message) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, *msg)
	return uint64(len(l.messages) + len(l.events)), nil
}

// PublishEvent implements EventLog.
func (l *MemoryEventLog) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return uint64(len(l.messages) + len(l.events)), nil
}

// Events returns the recorded events in publish order.
func (l *MemoryEventLog) Events() []model.ConversationEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.ConversationEvent(nil), l.events...)
}

// MessageCount returns the number of recorded messages.
func (l *MemoryEventLog) MessageCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
