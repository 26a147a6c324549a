// Package controller turns user intents into session and paginator calls and
// their state into view models and navigation.
package controller

import (
	"strings"
	"time"
)

// Routes understood by the navigator.
const (
	RouteRecents = "/recents"
	RouteNewChat = "/chat/new"
	chatPrefix   = "/chat/"
)

// ChatRoute returns the route of a conversation.
func ChatRoute(conversationID string) string {
	return chatPrefix + conversationID
}

// ParseChatRoute extracts the conversation id from a chat route. The new
// chat route yields an empty id.
func ParseChatRoute(route string) (string, bool) {
	if !strings.HasPrefix(route, chatPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(route, chatPrefix)
	if id == "" || id == "new" {
		return "", true
	}
	return id, true
}

// Navigator moves between screens.
type Navigator interface {
	Push(route string)
	Replace(route string)
	Back()
}

// Renderer receives every new view model.
type Renderer[M any] interface {
	Render(M)
}

// RenderFunc adapts a function to a Renderer.
type RenderFunc[M any] func(M)

// Render calls f(m).
func (f RenderFunc[M]) Render(m M) { f(m) }

const clockLayout = "15:04"

func clock(ts time.Time, loc *time.Location) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(loc).Format(clockLayout)
}
