package chatclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/model"
)

func newResource(t *testing.T, h http.HandlerFunc) (*chatclient.ResourceBackend, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return chatclient.NewResourceBackend(srv.URL, chatclient.Identity{ID: "u1", Token: "tok"}), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestResourceCreateConversation(t *testing.T) {
	var got model.CreateConversationRequest
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversation", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, model.Conversation{ID: "c1", Status: model.ConversationActive})
	})

	conv, err := client.CreateConversation(context.Background(), chatclient.CreateParams{
		UserID:         "u1",
		Username:       "ada",
		DisplayName:    "Ada",
		InitialMessage: "Hello",
		Metadata:       chatclient.CreateMetadata{Platform: "mobile", Language: "en-US", Topic: "general", Timezone: "Europe/Berlin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "Hello", got.Message)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, "general", got.Topic)
}

func TestResourceCreateRequiresUser(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})

	_, err := client.CreateConversation(context.Background(), chatclient.CreateParams{})
	var ve *chatclient.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "user_id", ve.Field)
}

func TestResourceFetchNotFound(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/unknown-id", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
	})

	_, err := client.FetchConversation(context.Background(), "unknown-id")
	assert.True(t, chatclient.IsNotFound(err))
	assert.False(t, chatclient.IsRetryable(err))
}

func TestResourceFetchServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"internal", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"forbidden", http.StatusForbidden, false},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "boom"})
			})

			_, err := client.FetchConversation(context.Background(), "c1")
			var se *chatclient.ServerError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, "boom", se.Message)
			assert.Equal(t, tt.retryable, chatclient.IsRetryable(err))
			assert.False(t, chatclient.IsNotFound(err))
		})
	}
}

func TestResourceTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := chatclient.NewResourceBackend(url, chatclient.Identity{ID: "u1"},
		chatclient.WithHTTPClient(&http.Client{Timeout: time.Second}))

	_, err := client.FetchConversation(context.Background(), "c1")
	var te *chatclient.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, chatclient.IsRetryable(err))
}

func TestResourceAppendMessage(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/c1/message", r.URL.Path)
		var req model.AppendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.SenderUser, req.Sender)
		assert.Equal(t, "text", req.Metadata.InputType)
		writeJSON(w, http.StatusOK, model.Message{
			ID:      "m1",
			Sender:  req.Sender,
			Content: req.Content,
			Status:  model.StatusSent,
		})
	})

	msg, err := client.AppendMessage(context.Background(), "c1", model.SenderUser, "Hello",
		model.MessageMetadata{InputType: "text", Device: "cli"})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "Hello", msg.Content)
}

func TestResourceAppendClosedConversation(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conversation is closed"})
	})

	_, err := client.AppendMessage(context.Background(), "c1", model.SenderUser, "hi", model.MessageMetadata{})
	var se *chatclient.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Status)
	assert.False(t, se.Retryable())
}

func TestResourceAppendRejectsEmptyContent(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})

	_, err := client.AppendMessage(context.Background(), "c1", model.SenderUser, "   ", model.MessageMetadata{})
	var ve *chatclient.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestResourceListRecentSynthesizesPagination(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recent-chats", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"conversations": []model.ConversationSummary{{ID: "A"}, {ID: "B"}},
		})
	})

	items, page, err := client.ListRecent(context.Background(), "u1", 1, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, model.RecentsPage{Page: 1, PerPage: 20, Total: 2, TotalPages: 1}, page)
}

func TestResourceListRecentUsesServerPagination(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.RecentChatsResponse{
			Conversations: []model.ConversationSummary{{ID: "C"}},
			Pagination:    &model.RecentsPage{Page: 2, PerPage: 1, Total: 3, TotalPages: 3},
		})
	})

	items, page, err := client.ListRecent(context.Background(), "u1", 2, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasMore())
}

func TestResourceMalformedResponse(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := client.FetchConversation(context.Background(), "c1")
	var se *chatclient.ServerError
	require.ErrorAs(t, err, &se)
	assert.False(t, chatclient.IsRetryable(err))
}

func TestResourceFetchRequiresConversationID(t *testing.T) {
	for _, body := range []string{"", "{}"} {
		client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(body))
		})

		_, err := client.FetchConversation(context.Background(), "c2")
		var se *chatclient.ServerError
		require.ErrorAs(t, err, &se, "body %q", body)
		assert.Equal(t, http.StatusOK, se.Status)
		assert.Contains(t, se.Message, "conversation_id")
		assert.False(t, chatclient.IsRetryable(err))
		assert.False(t, chatclient.IsNotFound(err))
	}
}

func TestResourceCreateReplacingUnknownPostsToChat(t *testing.T) {
	client, _ := newResource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		writeJSON(w, http.StatusCreated, model.Conversation{ID: "c2", Status: model.ConversationActive})
	})

	conv, err := client.CreateConversation(context.Background(), chatclient.CreateParams{
		UserID:         "u1",
		InitialMessage: "Hello",
		ReplacesID:     "unknown-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "c2", conv.ID)
}
