package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/middleware"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/service"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messages      *service.MessageService
	conversations *ConversationHandler
	logger        *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, conversations *ConversationHandler, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages:      msgSvc,
		conversations: conversations,
		logger:        log,
	}
}

// Append handles POST /chat/{id}/message
func (h *MessageHandler) Append(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversations.load(w, r)
	if !ok {
		return
	}

	var req model.AppendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateSender(req.Sender); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messages.Append(r.Context(), conv.ID, &req)
	if err != nil {
		status, text := serviceStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to append message", zap.String("conversation_id", conv.ID), zap.Error(err))
		}
		writeError(w, status, text)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
