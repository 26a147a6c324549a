package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/campuschat/internal/model"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID. IDs are opaque; only
// their size and alphabet are checked.
func ValidateConversationID(id string) error {
	if id == "" {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("conversation ID exceeds maximum length")
	}
	for _, r := range id {
		if !isIDRune(r) {
			return errors.New("invalid conversation ID format")
		}
	}
	return nil
}

// ValidateUserID validates a user ID.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("user_id is required")
	}
	if len(id) > 128 {
		return errors.New("user_id exceeds maximum length")
	}
	return nil
}

// ValidateSender validates a message sender. Empty means user.
func ValidateSender(s model.Sender) error {
	switch s {
	case "", model.SenderUser, model.SenderAI:
		return nil
	}
	return errors.New("sender must be user or ai")
}

func isIDRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
