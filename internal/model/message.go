package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MessageStatus tracks delivery of a message.
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Message is one entry of a conversation.
type Message struct {
	ID        string          `json:"message_id"`
	Sender    Sender          `json:"sender"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Status    MessageStatus   `json:"status"`
	Metadata  MessageMetadata `json:"metadata"`
}

// MessageMetadata is optional per-message context.
type MessageMetadata struct {
	InputType       string   `json:"input_type,omitempty"`
	Device          string   `json:"device,omitempty"`
	ResponseTimeMs  *int64   `json:"response_time_ms,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// AppendMessageRequest is the body of POST /chat/{id}/message.
type AppendMessageRequest struct {
	Sender   Sender          `json:"sender"`
	Content  string          `json:"content"`
	Metadata MessageMetadata `json:"metadata"`
}

// WebhookRequest is the body posted to the dialogue webhook.
type WebhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// WebhookResponse is one bot utterance returned by the dialogue webhook.
type WebhookResponse struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// TrackerEvent is posted to reset the dialogue tracker of a session.
type TrackerEvent struct {
	Event string `json:"event"`
}
