package chatclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// ResourceBackend talks to the conversation REST API.
type ResourceBackend struct {
	http   *httpTransport
	logger *logger.Logger
}

var _ Client = (*ResourceBackend)(nil)

// NewResourceBackend creates a client for the conversation API at baseURL.
// The identity token, when present, is sent as a bearer token.
func NewResourceBackend(baseURL string, identity Identity, opts ...Option) *ResourceBackend {
	o := buildOptions(opts)
	return &ResourceBackend{
		http:   newHTTPTransport(baseURL, o.httpClient, identity.Token),
		logger: o.logger.With(zap.String("backend", BackendResource)),
	}
}

// CreateConversation handles POST /conversation.
func (b *ResourceBackend) CreateConversation(ctx context.Context, params CreateParams) (conv *model.Conversation, err error) {
	ctx, done := observe(ctx, BackendResource, "createConversation")
	defer func() { done(err) }()

	if err := params.validate(); err != nil {
		return nil, err
	}

	req := model.CreateConversationRequest{
		UserID:      params.UserID,
		Username:    params.Username,
		DisplayName: params.DisplayName,
		Message:     params.InitialMessage,
		Platform:    params.Metadata.Platform,
		Language:    params.Metadata.Language,
		Topic:       params.Metadata.Topic,
		Timezone:    params.Metadata.Timezone,
	}

	path := "/conversation"
	if params.ReplacesID != "" {
		path = "/chat"
	}

	conv = &model.Conversation{}
	if _, err := b.http.do(ctx, "createConversation", http.MethodPost, path, req, conv); err != nil {
		b.logger.Warn("create conversation failed", zap.String("user_id", params.UserID), zap.Error(err))
		return nil, err
	}
	if conv.ID == "" {
		return nil, &ServerError{Op: "createConversation", Status: http.StatusOK, Message: "response has no conversation_id"}
	}

	b.logger.Debug("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// FetchConversation handles GET /chat/{id}.
func (b *ResourceBackend) FetchConversation(ctx context.Context, conversationID string) (conv *model.Conversation, err error) {
	ctx, done := observe(ctx, BackendResource, "fetchConversation")
	defer func() { done(err) }()

	if strings.TrimSpace(conversationID) == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "required"}
	}

	conv = &model.Conversation{}
	status, err := b.http.do(ctx, "fetchConversation", http.MethodGet, "/chat/"+url.PathEscape(conversationID), nil, conv)
	if err != nil {
		var se *ServerError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if conv.ID == "" {
		return nil, &ServerError{Op: "fetchConversation", Status: status, Message: "response has no conversation_id"}
	}
	return conv, nil
}

// AppendMessage handles POST /chat/{id}/message.
func (b *ResourceBackend) AppendMessage(ctx context.Context, conversationID string, sender model.Sender, content string, metadata model.MessageMetadata) (msg *model.Message, err error) {
	ctx, done := observe(ctx, BackendResource, "appendMessage")
	defer func() { done(err) }()

	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "empty"}
	}

	req := model.AppendMessageRequest{
		Sender:   sender,
		Content:  content,
		Metadata: metadata,
	}

	msg = &model.Message{}
	path := "/chat/" + url.PathEscape(conversationID) + "/message"
	if _, err := b.http.do(ctx, "appendMessage", http.MethodPost, path, req, msg); err != nil {
		b.logger.Warn("append message failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

// ListRecent handles GET /recent-chats. A response without pagination is
// treated as a single complete page.
func (b *ResourceBackend) ListRecent(ctx context.Context, userID string, page, perPage int) (items []model.ConversationSummary, p model.RecentsPage, err error) {
	ctx, done := observe(ctx, BackendResource, "listRecent")
	defer func() { done(err) }()

	if page < 1 {
		return nil, model.RecentsPage{}, &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	perPage = normalizePerPage(perPage)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("user_id", userID)

	var resp model.RecentChatsResponse
	if _, err := b.http.do(ctx, "listRecent", http.MethodGet, "/recent-chats?"+q.Encode(), nil, &resp); err != nil {
		return nil, model.RecentsPage{}, err
	}

	items = resp.Conversations
	if items == nil {
		items = []model.ConversationSummary{}
	}

	if resp.Pagination == nil {
		p = model.RecentsPage{Page: page, PerPage: perPage, Total: len(items), TotalPages: 1}
	} else {
		p = *resp.Pagination
	}
	return items, p, nil
}
