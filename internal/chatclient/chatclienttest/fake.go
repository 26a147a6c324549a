// Package chatclienttest provides an in-memory chatclient.Client for tests.
package chatclienttest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/model"
)

// Fake stores conversations in memory. Each operation can be overridden with
// a hook, and counts are recorded per operation.
type Fake struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	order         []string
	nextID        int
	now           time.Time

	// Hooks run instead of the default behavior when set.
	CreateFunc func(ctx context.Context, params chatclient.CreateParams) (*model.Conversation, error)
	FetchFunc  func(ctx context.Context, id string) (*model.Conversation, error)
	AppendFunc func(ctx context.Context, id string, sender model.Sender, content string) (*model.Message, error)
	ListFunc   func(ctx context.Context, userID string, page, perPage int) ([]model.ConversationSummary, model.RecentsPage, error)

	// Gate, when non-nil, blocks AppendMessage until a value is received.
	Gate chan struct{}
	// Entered receives a value when AppendMessage starts, if non-nil.
	Entered chan struct{}

	Creates []chatclient.CreateParams
	Fetches []string
	Appends []string
	Lists   []int
}

var _ chatclient.Client = (*Fake)(nil)

// NewFake returns an empty fake whose clock starts at a fixed instant.
func NewFake() *Fake {
	return &Fake{
		conversations: make(map[string]*model.Conversation),
		now:           time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC),
	}
}

// Tick returns a strictly increasing timestamp.
func (f *Fake) Tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

// Seed stores a conversation as if it existed on the server.
func (f *Fake) Seed(conv *model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *conv
	c.Messages = append([]model.Message(nil), conv.Messages...)
	f.conversations[c.ID] = &c
	f.order = append(f.order, c.ID)
}

// Conversation returns a copy of the stored conversation.
func (f *Fake) Conversation(id string) *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil
	}
	out := *c
	out.Messages = append([]model.Message(nil), c.Messages...)
	return &out
}

// Counts returns the number of create, fetch and append calls.
func (f *Fake) Counts() (creates, fetches, appends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Creates), len(f.Fetches), len(f.Appends)
}

// CreateConversation records the call and stores a conversation seeded with
// the initial message.
func (f *Fake) CreateConversation(ctx context.Context, params chatclient.CreateParams) (*model.Conversation, error) {
	f.mu.Lock()
	f.Creates = append(f.Creates, params)
	hook := f.CreateFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("c%d", f.nextID)
	ts := f.Tick()
	conv := &model.Conversation{
		ID:        id,
		StartedAt: ts,
		UpdatedAt: ts,
		Participants: model.Participants{
			User: model.UserParticipant{UserID: params.UserID, Username: params.Username, DisplayName: params.DisplayName},
			AI:   model.DefaultAssistant,
		},
		Metadata: model.ConversationMetadata{
			Platform:  params.Metadata.Platform,
			Language:  params.Metadata.Language,
			SessionID: id,
			Context:   model.ConversationContext{Topic: params.Metadata.Topic, UserTimezone: params.Metadata.Timezone},
		},
		Status: model.ConversationActive,
	}
	if params.InitialMessage != "" {
		conv.Messages = append(conv.Messages, model.Message{
			ID:        id + "-m0",
			Sender:    model.SenderUser,
			Content:   params.InitialMessage,
			Timestamp: ts,
			Status:    model.StatusSent,
		})
	}
	conv.Summarize()
	f.conversations[id] = conv
	f.order = append(f.order, id)

	out := *conv
	out.Messages = append([]model.Message(nil), conv.Messages...)
	return &out, nil
}

// FetchConversation returns a copy of the stored conversation or ErrNotFound.
func (f *Fake) FetchConversation(ctx context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	f.Fetches = append(f.Fetches, id)
	hook := f.FetchFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, id)
	}

	if c := f.Conversation(id); c != nil {
		return c, nil
	}
	return nil, chatclient.ErrNotFound
}

// AppendMessage stores a user message with a server-style id.
func (f *Fake) AppendMessage(ctx context.Context, id string, sender model.Sender, content string, metadata model.MessageMetadata) (*model.Message, error) {
	f.mu.Lock()
	f.Appends = append(f.Appends, content)
	hook := f.AppendFunc
	entered, gate := f.Entered, f.Gate
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &chatclient.TransportError{Op: "appendMessage", Err: ctx.Err()}
		}
	}
	if hook != nil {
		return hook(ctx, id, sender, content)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, &chatclient.ServerError{Op: "appendMessage", Status: 404}
	}
	if conv.IsClosed() {
		return nil, &chatclient.ServerError{Op: "appendMessage", Status: 409, Message: "conversation is closed"}
	}
	msg := model.Message{
		ID:        fmt.Sprintf("m%d", len(conv.Messages)),
		Sender:    sender,
		Content:   content,
		Timestamp: f.Tick(),
		Status:    model.StatusSent,
		Metadata:  metadata,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
	conv.Summarize()
	return &msg, nil
}

// ListRecent pages through stored conversations, newest first.
func (f *Fake) ListRecent(ctx context.Context, userID string, page, perPage int) ([]model.ConversationSummary, model.RecentsPage, error) {
	f.mu.Lock()
	f.Lists = append(f.Lists, page)
	hook := f.ListFunc
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, userID, page, perPage)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.ConversationSummary
	for _, id := range f.order {
		all = append(all, model.SummaryOf(f.conversations[id]))
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	if perPage <= 0 {
		perPage = chatclient.DefaultPerPage
	}
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], model.NewRecentsPage(page, perPage, len(all)), nil
}
