package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKeys(t *testing.T) {
	c, err := FromKeys(ProviderAnthropic, "", "")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = FromKeys(ProviderAnthropic, "", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = FromKeys(ProviderOpenAI, "ak-test", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = FromKeys("", "ak-test", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = NewClient("bard", "key")
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "The library opens at 8."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL
	c := NewOpenAIClientWithConfig(cfg)

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		System:   "Be brief.",
		Messages: []ChatMessage{{Role: RoleUser, Content: "When does the library open?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The library opens at 8.", resp.Content)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, "stop", resp.StopReason)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
}

func TestAnthropicComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Room 204."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 9, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient("ak-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		System: "Be brief.",
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "Where is the lab?"},
			{Role: RoleAssistant, Content: "Which lab?"},
			{Role: RoleUser, Content: "Chemistry"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Room 204.", resp.Content)
	assert.Equal(t, 9, resp.TokensIn)
	assert.Equal(t, 3, resp.TokensOut)
	assert.Equal(t, "end_turn", resp.StopReason)

	assert.Equal(t, string(DefaultAnthropicModel), got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
	assert.NotNil(t, got["system"])
}

func TestRequireKeys(t *testing.T) {
	_, err := NewAnthropicClient("")
	assert.Error(t, err)
	_, err = NewOpenAIClient("")
	assert.Error(t, err)
}
