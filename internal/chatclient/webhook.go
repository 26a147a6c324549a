package chatclient

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// WebhookBackend adapts the stateless intent-webhook dialogue service to the
// Client interface. The service keeps no message history, so conversations
// are transcripts synthesized from each round trip and held in memory for the
// lifetime of the backend. Message ids are local and never stable across
// backends.
type WebhookBackend struct {
	http      *httpTransport
	logger    *logger.Logger
	assistant model.AIParticipant
	now       func() time.Time

	mu          sync.Mutex
	transcripts map[string]*model.Conversation
}

var _ Client = (*WebhookBackend)(nil)

// NewWebhookBackend creates a client for the dialogue service at baseURL.
func NewWebhookBackend(baseURL string, identity Identity, opts ...Option) *WebhookBackend {
	o := buildOptions(opts)
	return &WebhookBackend{
		http:        newHTTPTransport(baseURL, o.httpClient, identity.Token),
		logger:      o.logger.With(zap.String("backend", BackendWebhook)),
		assistant:   o.assistant,
		now:         o.now,
		transcripts: make(map[string]*model.Conversation),
	}
}

// CreateConversation resets the dialogue tracker for a fresh session id and
// sends the initial message.
func (b *WebhookBackend) CreateConversation(ctx context.Context, params CreateParams) (conv *model.Conversation, err error) {
	ctx, done := observe(ctx, BackendWebhook, "createConversation")
	defer func() { done(err) }()

	if err := params.validate(); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := b.restart(ctx, sessionID); err != nil {
		return nil, err
	}

	now := b.now()
	conv = &model.Conversation{
		ID:        sessionID,
		StartedAt: now,
		UpdatedAt: now,
		Participants: model.Participants{
			User: model.UserParticipant{
				UserID:      params.UserID,
				Username:    params.Username,
				DisplayName: params.DisplayName,
			},
			AI: b.assistant,
		},
		Metadata: model.ConversationMetadata{
			Platform:  params.Metadata.Platform,
			Language:  params.Metadata.Language,
			SessionID: sessionID,
			Context: model.ConversationContext{
				Topic:        params.Metadata.Topic,
				UserTimezone: params.Metadata.Timezone,
			},
		},
		Messages: []model.Message{},
		Status:   model.ConversationActive,
	}

	if text := strings.TrimSpace(params.InitialMessage); text != "" {
		replies, err := b.exchange(ctx, "createConversation", sessionID, text)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, b.userMessage(text, model.MessageMetadata{}))
		conv.Messages = append(conv.Messages, b.botMessages(replies)...)
	}
	conv.Summarize()

	b.mu.Lock()
	b.transcripts[sessionID] = conv
	b.mu.Unlock()

	b.logger.Debug("dialogue session started", zap.String("session_id", sessionID))
	return copyConversation(conv), nil
}

// FetchConversation returns the locally held transcript.
func (b *WebhookBackend) FetchConversation(ctx context.Context, conversationID string) (conv *model.Conversation, err error) {
	_, done := observe(ctx, BackendWebhook, "fetchConversation")
	defer func() { done(err) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	held, ok := b.transcripts[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(held), nil
}

// AppendMessage sends a user utterance and records it together with the bot
// replies. Only user messages can be sent through the webhook.
func (b *WebhookBackend) AppendMessage(ctx context.Context, conversationID string, sender model.Sender, content string, metadata model.MessageMetadata) (msg *model.Message, err error) {
	ctx, done := observe(ctx, BackendWebhook, "appendMessage")
	defer func() { done(err) }()

	if sender != model.SenderUser {
		return nil, &ValidationError{Field: "sender", Reason: "webhook accepts user messages only"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "empty"}
	}

	b.mu.Lock()
	held, ok := b.transcripts[conversationID]
	closed := ok && held.IsClosed()
	b.mu.Unlock()

	if !ok {
		return nil, &ServerError{Op: "appendMessage", Status: http.StatusNotFound, Message: "unknown session"}
	}
	if closed {
		return nil, &ServerError{Op: "appendMessage", Status: http.StatusConflict, Message: "conversation is closed"}
	}

	replies, err := b.exchange(ctx, "appendMessage", conversationID, content)
	if err != nil {
		return nil, err
	}

	user := b.userMessage(content, metadata)

	b.mu.Lock()
	// The transcript may have been replaced while the request was in flight.
	if held, ok = b.transcripts[conversationID]; ok {
		held.Messages = append(held.Messages, user)
		held.Messages = append(held.Messages, b.botMessages(replies)...)
		held.UpdatedAt = b.now()
		held.Summarize()
	}
	b.mu.Unlock()

	return &user, nil
}

// ListRecent pages through the transcripts of userID, most recently updated
// first.
func (b *WebhookBackend) ListRecent(ctx context.Context, userID string, page, perPage int) (items []model.ConversationSummary, p model.RecentsPage, err error) {
	_, done := observe(ctx, BackendWebhook, "listRecent")
	defer func() { done(err) }()

	if page < 1 {
		return nil, model.RecentsPage{}, &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	perPage = normalizePerPage(perPage)

	b.mu.Lock()
	var all []model.ConversationSummary
	for _, conv := range b.transcripts {
		if userID == "" || conv.Participants.User.UserID == userID {
			all = append(all, model.SummaryOf(conv))
		}
	}
	b.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	p = model.NewRecentsPage(page, perPage, len(all))
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	items = append([]model.ConversationSummary{}, all[start:end]...)
	return items, p, nil
}

func (b *WebhookBackend) restart(ctx context.Context, sessionID string) error {
	path := "/conversations/" + url.PathEscape(sessionID) + "/tracker/events"
	_, err := b.http.do(ctx, "createConversation", http.MethodPost, path, model.TrackerEvent{Event: "restart"}, nil)
	if err != nil {
		b.logger.Warn("failed to restart dialogue tracker", zap.String("session_id", sessionID), zap.Error(err))
	}
	return err
}

func (b *WebhookBackend) exchange(ctx context.Context, op, sessionID, text string) ([]model.WebhookResponse, error) {
	var replies []model.WebhookResponse
	_, err := b.http.do(ctx, op, http.MethodPost, "/webhooks/rest/webhook", model.WebhookRequest{
		Sender:  sessionID,
		Message: text,
	}, &replies)
	if err != nil {
		b.logger.Warn("webhook exchange failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return replies, nil
}

func (b *WebhookBackend) userMessage(text string, metadata model.MessageMetadata) model.Message {
	return model.Message{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Content:   text,
		Timestamp: b.now(),
		Status:    model.StatusSent,
		Metadata:  metadata,
	}
}

func (b *WebhookBackend) botMessages(replies []model.WebhookResponse) []model.Message {
	msgs := make([]model.Message, 0, len(replies))
	for _, r := range replies {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		msgs = append(msgs, model.Message{
			ID:        uuid.NewString(),
			Sender:    model.SenderAI,
			Content:   r.Text,
			Timestamp: b.now(),
			Status:    model.StatusSent,
		})
	}
	return msgs
}

func copyConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Messages = append([]model.Message(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []model.Message{}
	}
	return &out
}
