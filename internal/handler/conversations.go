// Package handler provides HTTP handlers for the conversation API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/middleware"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/service"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

const maxPerPage = 100

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /conversation and POST /chat
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(ctx)
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !middleware.CanAccess(ctx, req.UserID) {
		writeError(w, http.StatusForbidden, "user_id does not match token")
		return
	}
	if req.Message != "" {
		if err := middleware.ValidateMessageContent(req.Message); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conv, err := h.service.Create(ctx, &req)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// Get handles GET /chat/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Close handles DELETE /chat/{id}. The conversation is kept but accepts no
// further messages.
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.load(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Close(r.Context(), conv.ID, r.URL.Query().Get("reason"))
	if err != nil {
		status, msg := serviceStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to close conversation", zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// ListRecent handles GET /recent-chats?user_id=&page=&per_page=
func (h *ConversationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = middleware.GetUserID(ctx)
	}
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !middleware.CanAccess(ctx, userID) {
		writeError(w, http.StatusForbidden, "user_id does not match token")
		return
	}

	page := intQuery(r, "page", 1, 0)
	perPage := intQuery(r, "per_page", service.DefaultPerPage, maxPerPage)

	items, pagination, err := h.service.ListRecent(ctx, userID, page, perPage)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, &model.RecentChatsResponse{
		Conversations: items,
		Pagination:    &pagination,
	})
}

// load resolves {id} to a conversation the caller may access, writing the
// error response otherwise. Malformed ids cannot exist and are reported as
// not found.
func (h *ConversationHandler) load(w http.ResponseWriter, r *http.Request) (*model.Conversation, bool) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}

	conv, err := h.service.Get(ctx, conversationID)
	if err != nil {
		status, msg := serviceStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to load conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		}
		writeError(w, status, msg)
		return nil, false
	}

	if !middleware.CanAccess(ctx, conv.Participants.User.UserID) {
		writeError(w, http.StatusForbidden, "conversation belongs to another user")
		return nil, false
	}
	return conv, true
}
