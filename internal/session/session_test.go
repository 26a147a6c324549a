package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/chatclient/chatclienttest"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/session"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

var ada = chatclient.Identity{ID: "u1", Username: "ada", DisplayName: "Ada"}

func newSession(t *testing.T, client chatclient.Client) *session.Session {
	t.Helper()
	clock := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s := session.New(client, ada,
		session.WithLogger(logger.NewNop()),
		session.WithMetadata(chatclient.CreateMetadata{Platform: "mobile", Language: "en-US", Topic: "general", Timezone: "UTC"}),
		session.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	t.Cleanup(s.Close)
	return s
}

func contents(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestOpenFetchesExisting(t *testing.T) {
	fake := chatclienttest.NewFake()
	fake.Seed(&model.Conversation{
		ID:       "c9",
		Status:   model.ConversationActive,
		Messages: []model.Message{{ID: "m1", Sender: model.SenderUser, Content: "hi", Timestamp: fake.Tick()}},
	})
	s := newSession(t, fake)

	require.NoError(t, s.Open(context.Background(), "c9"))

	snap := s.Snapshot()
	assert.Equal(t, session.Ready, snap.State)
	assert.Equal(t, session.OpenFetched, snap.Outcome)
	assert.Equal(t, "c9", snap.ConversationID)
	assert.Equal(t, []string{"hi"}, contents(snap.Messages))
	assert.Equal(t, model.StatusSent, snap.Messages[0].Status)

	creates, fetches, _ := fake.Counts()
	assert.Equal(t, 0, creates)
	assert.Equal(t, 1, fetches)
}

func TestOpenCreatesOnMiss(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)

	var snaps []session.Snapshot
	s.Subscribe(func(snap session.Snapshot) { snaps = append(snaps, snap) })

	require.NoError(t, s.Open(context.Background(), "unknown-id"))

	creates, fetches, _ := fake.Counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, fetches)

	snap := s.Snapshot()
	assert.Equal(t, session.Ready, snap.State)
	assert.Equal(t, session.OpenCreatedOnMiss, snap.Outcome)
	assert.NotEmpty(t, snap.ConversationID)
	assert.NoError(t, snap.Err)

	for _, sn := range snaps {
		assert.NotEqual(t, session.Error, sn.State, "a miss is never shown as an error")
	}

	params := fake.Creates[0]
	assert.Equal(t, session.DefaultGreeting, params.InitialMessage)
	assert.Equal(t, "u1", params.UserID)
	assert.Equal(t, "general", params.Metadata.Topic)
	assert.Equal(t, "unknown-id", params.ReplacesID)
}

func TestOpenFetchWithoutIDIsAnError(t *testing.T) {
	fake := chatclienttest.NewFake()
	fake.FetchFunc = func(ctx context.Context, id string) (*model.Conversation, error) {
		return nil, &chatclient.ServerError{Op: "fetchConversation", Status: 200, Message: "response has no conversation_id"}
	}
	s := newSession(t, fake)

	err := s.Open(context.Background(), "c9")
	assert.ErrorIs(t, err, session.ErrFetchFailed)
	assert.Equal(t, session.Error, s.State())
	assert.Empty(t, s.ConversationID())

	creates, _, _ := fake.Counts()
	assert.Equal(t, 0, creates)
}

func TestOpenCreateFailure(t *testing.T) {
	fake := chatclienttest.NewFake()
	fake.CreateFunc = func(ctx context.Context, params chatclient.CreateParams) (*model.Conversation, error) {
		return nil, &chatclient.ServerError{Op: "createConversation", Status: 500}
	}
	s := newSession(t, fake)

	err := s.Open(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrCreateFailed)
	assert.True(t, chatclient.IsRetryable(err))
	assert.Equal(t, session.Error, s.State())
}

func TestOpenFetchFailureThenRetryOpen(t *testing.T) {
	fake := chatclienttest.NewFake()
	fake.Seed(&model.Conversation{ID: "c9", Status: model.ConversationActive})
	fake.FetchFunc = func(ctx context.Context, id string) (*model.Conversation, error) {
		return nil, &chatclient.TransportError{Op: "fetchConversation", Err: errors.New("offline")}
	}
	s := newSession(t, fake)

	err := s.Open(context.Background(), "c9")
	assert.ErrorIs(t, err, session.ErrFetchFailed)
	assert.NotErrorIs(t, err, session.ErrCreateFailed)
	assert.Equal(t, session.Error, s.State())

	fake.FetchFunc = nil
	require.NoError(t, s.RetryOpen(context.Background()))
	assert.Equal(t, session.Ready, s.State())
	assert.Equal(t, "c9", s.ConversationID())

	creates, _, _ := fake.Counts()
	assert.Equal(t, 0, creates)
}

func TestRetryOpenRequiresError(t *testing.T) {
	s := newSession(t, chatclienttest.NewFake())
	assert.Error(t, s.RetryOpen(context.Background()))
}

// Open with no id, then one successful send.
func TestFreshConversationThenSend(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, ""))
	assert.Equal(t, "c1", s.ConversationID())
	assert.Equal(t, session.OpenCreatedFresh, s.Snapshot().Outcome)

	require.NoError(t, s.Send(ctx, "Hello"))

	view := s.View()
	assert.Equal(t, []string{"Hello", "Hello"}, contents(view))
	assert.Equal(t, "m1", view[1].ID)
	for _, m := range view {
		assert.Equal(t, model.StatusSent, m.Status)
	}
	assert.Equal(t, session.Ready, s.State())
}

func TestSendRejectsBlankAndNotReady(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()

	assert.ErrorIs(t, s.Send(ctx, "hi"), session.ErrSendRejected, "not opened yet")

	require.NoError(t, s.Open(ctx, ""))
	assert.ErrorIs(t, s.Send(ctx, "   \n"), session.ErrSendRejected)

	_, _, appends := fake.Counts()
	assert.Equal(t, 0, appends)
}

// Two sends back to back while the first is unresolved.
func TestSecondSendWhileInFlightIsRejected(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, ""))

	fake.Entered = make(chan struct{})
	fake.Gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.Send(ctx, "x") }()
	<-fake.Entered

	view := s.View()
	require.Len(t, view, 2)
	assert.Equal(t, model.StatusPending, view[1].Status, "optimistic entry is visible before the response")
	assert.Contains(t, view[1].ID, session.TempIDPrefix)
	assert.True(t, s.Snapshot().IsSending())

	err := s.Send(ctx, "x")
	assert.ErrorIs(t, err, session.ErrSendRejected)

	close(fake.Gate)
	require.NoError(t, <-done)

	_, _, appends := fake.Counts()
	assert.Equal(t, 1, appends)
	assert.Equal(t, []string{"Hello", "x"}, contents(s.View()))
}

func TestFailedSendIsKeptAndRetried(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, ""))

	fake.AppendFunc = func(ctx context.Context, id string, sender model.Sender, content string) (*model.Message, error) {
		return nil, &chatclient.TransportError{Op: "appendMessage", Err: errors.New("offline")}
	}
	err := s.Send(ctx, "lost")
	require.Error(t, err)
	assert.Equal(t, session.Ready, s.State())

	view := s.View()
	require.Len(t, view, 2)
	failed := view[1]
	assert.Equal(t, "lost", failed.Content)
	assert.Equal(t, model.StatusFailed, failed.Status)

	// A later send of another message must not drop the failed entry.
	fake.AppendFunc = nil
	require.NoError(t, s.Send(ctx, "second"))
	view = s.View()
	assert.Equal(t, []string{"Hello", "second", "lost"}, contents(view))
	assert.Equal(t, model.StatusFailed, view[2].Status)

	require.NoError(t, s.Retry(ctx, failed.ID))
	view = s.View()
	assert.Equal(t, []string{"Hello", "second", "lost"}, contents(view))
	for _, m := range view {
		assert.Equal(t, model.StatusSent, m.Status)
	}

	assert.ErrorIs(t, s.Retry(ctx, failed.ID), session.ErrSendRejected, "entry is resolved")
}

func TestViewOrdersCanonicalByTimestamp(t *testing.T) {
	fake := chatclienttest.NewFake()
	base := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	fake.Seed(&model.Conversation{
		ID:     "c9",
		Status: model.ConversationActive,
		Messages: []model.Message{
			{ID: "b", Content: "second", Timestamp: base.Add(2 * time.Minute)},
			{ID: "a", Content: "first", Timestamp: base.Add(time.Minute)},
			{ID: "c", Content: "tie", Timestamp: base.Add(2 * time.Minute)},
		},
	})
	s := newSession(t, fake)
	require.NoError(t, s.Open(context.Background(), "c9"))

	assert.Equal(t, []string{"first", "second", "tie"}, contents(s.View()))
	assert.Equal(t, []string{"tie", "second", "first"}, contents(s.Reversed()))
}

func TestSendReconcilesOutOfOrderServerTimestamps(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, ""))

	early := time.Date(2024, 9, 1, 8, 59, 0, 0, time.UTC)
	fake.AppendFunc = func(ctx context.Context, id string, sender model.Sender, content string) (*model.Message, error) {
		return &model.Message{ID: "mx", Sender: sender, Content: content, Timestamp: early, Status: model.StatusSent}, nil
	}
	fake.FetchFunc = func(ctx context.Context, id string) (*model.Conversation, error) {
		return nil, &chatclient.ServerError{Op: "fetchConversation", Status: 503}
	}

	require.NoError(t, s.Send(ctx, "late"))

	view := s.View()
	assert.Equal(t, []string{"late", "Hello"}, contents(view), "canonical order follows server timestamps")
	assert.Equal(t, "mx", view[0].ID)
	assert.Equal(t, session.Ready, s.State(), "a failed refetch keeps the merged state")
}

func TestRefetchPicksUpReplies(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, ""))

	fake.AppendFunc = func(ctx context.Context, id string, sender model.Sender, content string) (*model.Message, error) {
		fake.AppendFunc = nil
		msg, err := fake.AppendMessage(ctx, id, sender, content, model.MessageMetadata{})
		if err != nil {
			return nil, err
		}
		_, err = fake.AppendMessage(ctx, id, model.SenderAI, "Hi Ada", model.MessageMetadata{})
		return msg, err
	}

	require.NoError(t, s.Send(ctx, "Hello again"))
	assert.Equal(t, []string{"Hello", "Hello again", "Hi Ada"}, contents(s.View()))
}

func TestSendOnClosedConversation(t *testing.T) {
	fake := chatclienttest.NewFake()
	fake.Seed(&model.Conversation{ID: "c9", Status: model.ConversationClosed})
	s := newSession(t, fake)
	require.NoError(t, s.Open(context.Background(), "c9"))

	assert.ErrorIs(t, s.Send(context.Background(), "hi"), session.ErrSendRejected)
}

func TestResultsAfterCloseAreDiscarded(t *testing.T) {
	fake := chatclienttest.NewFake()
	s := newSession(t, fake)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, ""))

	var mu sync.Mutex
	notified := 0
	s.Subscribe(func(session.Snapshot) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	fake.Entered = make(chan struct{})
	fake.Gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Send(ctx, "bye") }()
	<-fake.Entered

	s.Close()
	mu.Lock()
	before := notified
	mu.Unlock()

	close(fake.Gate)
	assert.ErrorIs(t, <-done, session.ErrClosed)

	mu.Lock()
	assert.Equal(t, before, notified)
	mu.Unlock()
	assert.Equal(t, session.Sending, s.State())
}

func TestUnsubscribe(t *testing.T) {
	s := newSession(t, chatclienttest.NewFake())
	calls := 0
	cancel := s.Subscribe(func(session.Snapshot) { calls++ })
	cancel()

	require.NoError(t, s.Open(context.Background(), ""))
	assert.Equal(t, 0, calls)
}
