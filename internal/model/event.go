package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeCreated    EventType = "created"
	EventTypeClosed     EventType = "closed"
	EventTypeReplyError EventType = "reply_error"
)

// ConversationEvent records a lifecycle change of a conversation alongside
// its messages.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
