// Package service provides the conversation API's business logic.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/metrics"
)

var tracer = otel.Tracer("github.com/capitalize-ai/campuschat/internal/service")

// DefaultPerPage is the recent-chats page size when none is requested.
const DefaultPerPage = 20

// ConversationService handles conversation operations.
type ConversationService struct {
	store     ConversationStore
	events    EventLog
	logger    *logger.Logger
	assistant model.AIParticipant
	now       func() time.Time

	// serializes read-modify-write cycles against the store
	mu sync.Mutex
}

// ConversationOption configures a ConversationService.
type ConversationOption func(*ConversationService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ConversationOption {
	return func(s *ConversationService) { s.now = now }
}

// WithAssistant overrides the assistant identity of new conversations.
func WithAssistant(a model.AIParticipant) ConversationOption {
	return func(s *ConversationService) { s.assistant = a }
}

// NewConversationService creates a new conversation service.
func NewConversationService(store ConversationStore, events EventLog, log *logger.Logger, opts ...ConversationOption) *ConversationService {
	s := &ConversationService{
		store:     store,
		events:    events,
		logger:    log,
		assistant: model.DefaultAssistant,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a conversation. A non-empty req.Message is stored as the
// first user message.
func (s *ConversationService) Create(ctx context.Context, req *model.CreateConversationRequest) (*model.Conversation, error) {
	ctx, span := tracer.Start(ctx, "service.CreateConversation", trace.WithAttributes(
		attribute.String("user_id", req.UserID),
	))
	defer span.End()

	now := s.now().UTC()
	username := req.Username
	if username == "" {
		username = req.UserID
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = username
	}

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		StartedAt: now,
		UpdatedAt: now,
		Participants: model.Participants{
			User: model.UserParticipant{
				UserID:      req.UserID,
				Username:    username,
				DisplayName: displayName,
			},
			AI: s.assistant,
		},
		Metadata: model.ConversationMetadata{
			Platform:  req.Platform,
			Language:  req.Language,
			SessionID: uuid.NewString(),
			Context: model.ConversationContext{
				Topic:        req.Topic,
				UserTimezone: req.Timezone,
			},
		},
		Messages: []model.Message{},
		Status:   model.ConversationActive,
	}

	var first *model.Message
	if req.Message != "" {
		first = &model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Sender:    model.SenderUser,
			Content:   req.Message,
			Timestamp: now,
			Status:    model.StatusSent,
			Metadata:  model.MessageMetadata{InputType: "text", Device: req.Platform},
		}
		conv.Messages = append(conv.Messages, *first)
	}
	conv.Summarize()

	if err := s.store.Put(ctx, conv); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store conversation: %w", err)
	}

	s.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Type:           model.EventTypeCreated,
		Metadata:       map[string]any{"platform": req.Platform, "topic": req.Topic},
		CreatedAt:      now,
	})
	if first != nil {
		s.publishMessage(ctx, conv.ID, first)
	}

	metrics.ConversationsTotal.WithLabelValues(req.Platform).Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", req.UserID),
	)

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListRecent returns one page of a user's conversations, most recently
// updated first. Pages past the end are empty.
func (s *ConversationService) ListRecent(ctx context.Context, userID string, page, perPage int) ([]model.ConversationSummary, model.RecentsPage, error) {
	ctx, span := tracer.Start(ctx, "service.ListRecent", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", page),
	))
	defer span.End()

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	all, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, model.RecentsPage{}, fmt.Errorf("failed to list conversations: %w", err)
	}

	owned := make([]*model.Conversation, 0, len(all))
	for _, conv := range all {
		if conv.Participants.User.UserID == userID {
			owned = append(owned, conv)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		if owned[i].UpdatedAt.Equal(owned[j].UpdatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	pagination := model.NewRecentsPage(page, perPage, len(owned))
	items := []model.ConversationSummary{}
	start := (page - 1) * perPage
	if start < len(owned) {
		end := start + perPage
		if end > len(owned) {
			end = len(owned)
		}
		for _, conv := range owned[start:end] {
			items = append(items, model.SummaryOf(conv))
		}
	}
	return items, pagination, nil
}

// Close marks a conversation closed. Closing twice is not an error.
func (s *ConversationService) Close(ctx context.Context, conversationID, reason string) (*model.Conversation, error) {
	ctx, span := tracer.Start(ctx, "service.CloseConversation", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
	))
	defer span.End()

	var wasClosed bool
	conv, err := s.update(ctx, conversationID, func(c *model.Conversation) error {
		wasClosed = c.IsClosed()
		c.Status = model.ConversationClosed
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !wasClosed {
		s.publishEvent(ctx, &model.ConversationEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conv.ID,
			UserID:         conv.Participants.User.UserID,
			Type:           model.EventTypeClosed,
			Reason:         reason,
			CreatedAt:      conv.UpdatedAt,
		})
		s.logger.Info("conversation closed", zap.String("conversation_id", conv.ID))
	}
	return conv, nil
}

// appendMessage stores msg at the end of an active conversation.
func (s *ConversationService) appendMessage(ctx context.Context, conversationID string, msg *model.Message) (*model.Conversation, error) {
	conv, err := s.update(ctx, conversationID, func(c *model.Conversation) error {
		if c.IsClosed() {
			return fmt.Errorf("%w: %s", ErrConversationClosed, conversationID)
		}
		c.Messages = append(c.Messages, *msg)
		c.UpdatedAt = msg.Timestamp
		c.Summarize()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMessage(ctx, conversationID, msg)
	metrics.MessagesTotal.WithLabelValues(string(msg.Sender)).Inc()
	return conv, nil
}

func (s *ConversationService) update(ctx context.Context, conversationID string, fn func(*model.Conversation) error) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := fn(conv); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to store conversation: %w", err)
	}
	return conv, nil
}

// The log is an audit trail; the store stays authoritative when it fails.
func (s *ConversationService) publishMessage(ctx context.Context, conversationID string, msg *model.Message) {
	if _, err := s.events.PublishMessage(ctx, conversationID, msg); err != nil {
		s.logger.Warn("failed to publish message",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (s *ConversationService) publishEvent(ctx context.Context, event *model.ConversationEvent) {
	if _, err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("conversation_id", event.ConversationID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
