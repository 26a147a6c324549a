// Package model defines the wire types shared by the chat client and the
// conversation API.
package model

import (
	"time"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a server-tracked chat session between one user and the
// assistant.
type Conversation struct {
	ID           string               `json:"conversation_id"`
	StartedAt    time.Time            `json:"started_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Participants Participants         `json:"participants"`
	Metadata     ConversationMetadata `json:"metadata"`
	Messages     []Message            `json:"messages"`
	Status       ConversationStatus   `json:"status"`
	Summary      Summary              `json:"summary"`
}

// DefaultAssistant is the assistant identity attached to new conversations.
var DefaultAssistant = AIParticipant{
	AIID:    "campus-assistant",
	Name:    "Campus Assistant",
	Version: "1.0",
}

// Participants holds exactly one user and one assistant identity.
type Participants struct {
	User UserParticipant `json:"user"`
	AI   AIParticipant   `json:"ai"`
}

// UserParticipant identifies the human side of a conversation.
type UserParticipant struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// AIParticipant identifies the assistant side of a conversation.
type AIParticipant struct {
	AIID    string `json:"ai_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ConversationMetadata is the free-form context attached to a conversation.
type ConversationMetadata struct {
	Platform  string              `json:"platform"`
	Language  string              `json:"language"`
	SessionID string              `json:"session_id"`
	Context   ConversationContext `json:"context"`
}

// ConversationContext carries the topic and the user's timezone.
type ConversationContext struct {
	Topic        string `json:"topic"`
	UserTimezone string `json:"user_timezone"`
}

// Summary is derived from Messages and is only eventually consistent with it.
type Summary struct {
	TotalMessages        int        `json:"total_messages"`
	LastMessageID        string     `json:"last_message_id"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
}

// IsClosed reports whether the conversation no longer accepts messages.
func (c *Conversation) IsClosed() bool {
	return c.Status == ConversationClosed
}

// Title renders "<user> & <assistant>" for view headers.
func (c *Conversation) Title() string {
	user := c.Participants.User.DisplayName
	if user == "" {
		user = c.Participants.User.Username
	}
	if c.Participants.AI.Name == "" {
		return user
	}
	return user + " & " + c.Participants.AI.Name
}

// Summarize recomputes Summary from Messages.
func (c *Conversation) Summarize() {
	c.Summary = Summary{TotalMessages: len(c.Messages)}
	if n := len(c.Messages); n > 0 {
		last := c.Messages[n-1]
		ts := last.Timestamp
		c.Summary.LastMessageID = last.ID
		c.Summary.LastMessageTimestamp = &ts
	}
}

// CreateConversationRequest is the body of POST /conversation and POST /chat.
type CreateConversationRequest struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
	Platform    string `json:"platform"`
	Language    string `json:"language"`
	Topic       string `json:"topic"`
	Timezone    string `json:"timezone"`
}

// ConversationSummary is one row of the recent-chats listing.
type ConversationSummary struct {
	ID                   string             `json:"conversation_id"`
	Title                string             `json:"title"`
	Topic                string             `json:"topic"`
	LastMessage          string             `json:"last_message"`
	LastMessageTimestamp *time.Time         `json:"last_message_timestamp,omitempty"`
	TotalMessages        int                `json:"total_messages"`
	Status               ConversationStatus `json:"status"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// SummaryOf builds the listing row for a conversation.
func SummaryOf(c *Conversation) ConversationSummary {
	s := ConversationSummary{
		ID:                   c.ID,
		Title:                c.Title(),
		Topic:                c.Metadata.Context.Topic,
		LastMessageTimestamp: c.Summary.LastMessageTimestamp,
		TotalMessages:        c.Summary.TotalMessages,
		Status:               c.Status,
		UpdatedAt:            c.UpdatedAt,
	}
	if n := len(c.Messages); n > 0 {
		s.LastMessage = c.Messages[n-1].Content
	}
	return s
}

// RecentsPage describes one page of the recent-chats listing.
type RecentsPage struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HasMore reports whether pages after Page exist.
func (p RecentsPage) HasMore() bool {
	return p.Page < p.TotalPages
}

// NewRecentsPage computes total pages for a listing of total items.
func NewRecentsPage(page, perPage, total int) RecentsPage {
	pages := 1
	if perPage > 0 && total > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return RecentsPage{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// RecentChatsResponse is the body of GET /recent-chats. Pagination is
// optional on the wire.
type RecentChatsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Pagination    *RecentsPage          `json:"pagination,omitempty"`
}
