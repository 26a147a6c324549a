package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/campuschat/internal/model"
)

const (
	// StreamName is the name of the chat message log stream.
	StreamName = "CHATS"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"
)

// StreamManager appends conversation messages and lifecycle events to the
// CHATS stream.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{js: client.JetStream()}
}

// EnsureStream creates the CHATS stream when it does not exist yet.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	if _, err := m.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Chat messages and conversation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(conversationID string, sender model.Sender) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, conversationID, sender)
}

// EventSubject returns the subject for an event.
func EventSubject(conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, conversationID, eventType)
}

// PublishMessage appends a message to the log.
func (m *StreamManager) PublishMessage(ctx context.Context, conversationID string, msg *model.Message) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.js.Publish(ctx, MessageSubject(conversationID, msg.Sender), data, jetstream.WithMsgID(msg.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}
	return ack.Sequence, nil
}

// PublishEvent appends a conversation event to the log.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.js.Publish(ctx, EventSubject(event.ConversationID, event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack.Sequence, nil
}
