package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecentsPage(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		wantPages            int
	}{
		{"empty", 1, 20, 0, 1},
		{"exact", 1, 10, 20, 2},
		{"remainder", 2, 10, 21, 3},
		{"no per page", 1, 0, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRecentsPage(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.total, p.Total)
		})
	}
	assert.True(t, NewRecentsPage(1, 10, 11).HasMore())
	assert.False(t, NewRecentsPage(2, 10, 11).HasMore())
}

func TestSummarizeAndSummaryOf(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := &Conversation{
		ID: "c1",
		Participants: Participants{
			User: UserParticipant{UserID: "u1", DisplayName: "Ada"},
			AI:   AIParticipant{Name: "Campus Assistant"},
		},
		Metadata: ConversationMetadata{Context: ConversationContext{Topic: "general"}},
		Messages: []Message{
			{ID: "m1", Sender: SenderUser, Content: "Hello", Timestamp: now},
			{ID: "m2", Sender: SenderAI, Content: "Hi Ada", Timestamp: now.Add(time.Second)},
		},
		Status: ConversationActive,
	}
	c.Summarize()

	assert.Equal(t, 2, c.Summary.TotalMessages)
	assert.Equal(t, "m2", c.Summary.LastMessageID)
	require.NotNil(t, c.Summary.LastMessageTimestamp)

	s := SummaryOf(c)
	assert.Equal(t, "Ada & Campus Assistant", s.Title)
	assert.Equal(t, "Hi Ada", s.LastMessage)
	assert.Equal(t, "general", s.Topic)
}

func TestRecentChatsResponseWithoutPagination(t *testing.T) {
	var resp RecentChatsResponse
	err := json.Unmarshal([]byte(`{"conversations":[{"conversation_id":"a"}]}`), &resp)
	require.NoError(t, err)
	assert.Nil(t, resp.Pagination)
	assert.Len(t, resp.Conversations, 1)
}
