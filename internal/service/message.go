package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/llm"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/metrics"
)

// DefaultSystemPrompt frames assistant replies.
const DefaultSystemPrompt = "You are Campus Assistant, a friendly helper for university students. " +
	"Answer questions about campus life, courses and services briefly and clearly."

// MessageService handles message operations.
type MessageService struct {
	conversations *ConversationService
	llmClient     llm.Client
	logger        *logger.Logger
	system        string
	historyLimit  int
	now           func() time.Time
}

// MessageOption configures a MessageService.
type MessageOption func(*MessageService)

// WithSystemPrompt overrides the assistant system prompt.
func WithSystemPrompt(prompt string) MessageOption {
	return func(s *MessageService) { s.system = prompt }
}

// WithHistoryLimit caps how many trailing messages are sent to the model.
func WithHistoryLimit(n int) MessageOption {
	return func(s *MessageService) { s.historyLimit = n }
}

// WithMessageClock overrides the time source.
func WithMessageClock(now func() time.Time) MessageOption {
	return func(s *MessageService) { s.now = now }
}

// NewMessageService creates a new message service. llmClient may be nil, in
// which case no assistant replies are generated.
func NewMessageService(conversations *ConversationService, llmClient llm.Client, log *logger.Logger, opts ...MessageOption) *MessageService {
	s := &MessageService{
		conversations: conversations,
		llmClient:     llmClient,
		logger:        log,
		system:        DefaultSystemPrompt,
		historyLimit:  20,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores a message and returns the stored copy. A user message is
// followed by an assistant reply when a model is configured; a failed reply
// is logged and does not fail the append.
func (s *MessageService) Append(ctx context.Context, conversationID string, req *model.AppendMessageRequest) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "service.AppendMessage", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer span.End()

	sender := req.Sender
	if sender == "" {
		sender = model.SenderUser
	}

	msg := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Sender:    sender,
		Content:   req.Content,
		Timestamp: s.now().UTC(),
		Status:    model.StatusSent,
		Metadata:  req.Metadata,
	}

	conv, err := s.conversations.appendMessage(ctx, conversationID, msg)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if sender == model.SenderUser && s.llmClient != nil {
		s.reply(ctx, conv)
	}

	return msg, nil
}

func (s *MessageService) reply(ctx context.Context, conv *model.Conversation) {
	provider := s.llmClient.Name()
	start := time.Now()

	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		System:   s.system,
		Messages: s.history(conv.Messages),
	})
	duration := time.Since(start)
	if err == nil && resp.Content == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		metrics.RecordReply(provider, "error", duration.Seconds())
		s.logger.Warn("assistant reply failed",
			zap.String("conversation_id", conv.ID),
			zap.String("provider", provider),
			zap.Error(err),
		)
		s.conversations.publishEvent(ctx, &model.ConversationEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			UserID:         conv.Participants.User.UserID,
			Type:           model.EventTypeReplyError,
			Reason:         err.Error(),
			Metadata:       map[string]any{"provider": provider},
			CreatedAt:      s.now().UTC(),
		})
		return
	}
	metrics.RecordReply(provider, "success", duration.Seconds())

	elapsed := duration.Milliseconds()
	reply := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Sender:    model.SenderAI,
		Content:   resp.Content,
		Timestamp: s.now().UTC(),
		Status:    model.StatusSent,
		Metadata:  model.MessageMetadata{ResponseTimeMs: &elapsed},
	}
	if _, err := s.conversations.appendMessage(ctx, conv.ID, reply); err != nil {
		s.logger.Warn("failed to store assistant reply",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("assistant replied",
		zap.String("conversation_id", conv.ID),
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
	)
}

// history converts the trailing messages of a transcript into model turns.
func (s *MessageService) history(messages []model.Message) []llm.ChatMessage {
	if s.historyLimit > 0 && len(messages) > s.historyLimit {
		messages = messages[len(messages)-s.historyLimit:]
	}
	out := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Sender == model.SenderAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Content})
	}
	// providers expect the first turn to come from the user
	for len(out) > 0 && out[0].Role == llm.RoleAssistant {
		out = out[1:]
	}
	return out
}
