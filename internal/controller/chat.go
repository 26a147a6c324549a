package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/session"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// User-facing messages.
const (
	MsgSignInRequired = "Please sign in to create a new chat"
	MsgCreateFailed   = "Could not start a new chat. Please try again."
	MsgFetchFailed    = "Could not load this chat. Please try again."
	MsgOpenRejected   = "This chat is not available."
	MsgClosed         = "This conversation is closed."
)

// MessageView is one rendered chat line.
type MessageView struct {
	ID        string
	Sender    model.Sender
	Content   string
	Time      string
	Status    model.MessageStatus
	Retryable bool
}

// ChatViewModel is everything the chat screen renders.
type ChatViewModel struct {
	ConversationID string
	Title          string
	Subtitle       string
	Messages       []MessageView
	IsSending      bool
	Loading        bool
	Error          string
	CanRetryOpen   bool
	SendEnabled    bool
}

// ChatConfig holds the collaborators of a ChatViewController.
type ChatConfig struct {
	Client    chatclient.Client
	Identity  chatclient.Identity
	Metadata  chatclient.CreateMetadata
	Navigator Navigator
	Renderer  Renderer[ChatViewModel]
	Logger    *logger.Logger
	Location  *time.Location
	// SessionOptions are passed to every session the controller opens.
	SessionOptions []session.Option
}

// ChatViewController drives one chat screen. It owns at most one session.
type ChatViewController struct {
	cfg ChatConfig

	mu          sync.Mutex
	session     *session.Session
	unsubscribe func()
}

// NewChatViewController returns a controller with no open session.
func NewChatViewController(cfg ChatConfig) *ChatViewController {
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ChatViewController{cfg: cfg}
}

// OnOpen opens conversationID, or a new conversation when it is empty.
// After a conversation is created the route is replaced with its id.
func (c *ChatViewController) OnOpen(ctx context.Context, conversationID string) {
	if conversationID == "" && !c.cfg.Identity.SignedIn() {
		c.cfg.Renderer.Render(ChatViewModel{Error: MsgSignInRequired})
		c.cfg.Navigator.Back()
		return
	}

	opts := append([]session.Option{
		session.WithLogger(c.cfg.Logger),
		session.WithMetadata(c.cfg.Metadata),
	}, c.cfg.SessionOptions...)
	s := session.New(c.cfg.Client, c.cfg.Identity, opts...)

	c.mu.Lock()
	c.detachLocked()
	c.session = s
	c.unsubscribe = s.Subscribe(func(snap session.Snapshot) {
		c.cfg.Renderer.Render(c.viewModel(snap))
	})
	c.mu.Unlock()

	if err := s.Open(ctx, conversationID); err != nil {
		if !errors.Is(err, session.ErrClosed) {
			c.cfg.Logger.Warn("open chat failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
		return
	}

	snap := s.Snapshot()
	switch snap.Outcome {
	case session.OpenCreatedFresh, session.OpenCreatedOnMiss:
		c.cfg.Navigator.Replace(ChatRoute(snap.ConversationID))
	}
}

// OnSend sends text. Rejected sends are ignored; failed sends stay visible
// as failed entries.
func (c *ChatViewController) OnSend(ctx context.Context, text string) {
	s := c.current()
	if s == nil {
		return
	}
	if err := s.Send(ctx, text); err != nil && !errors.Is(err, session.ErrSendRejected) {
		c.cfg.Logger.Debug("send did not complete", zap.Error(err))
	}
}

// OnRetry re-sends a failed entry.
func (c *ChatViewController) OnRetry(ctx context.Context, entryID string) {
	s := c.current()
	if s == nil {
		return
	}
	if err := s.Retry(ctx, entryID); err != nil && !errors.Is(err, session.ErrSendRejected) {
		c.cfg.Logger.Debug("retry did not complete", zap.String("entry_id", entryID), zap.Error(err))
	}
}

// OnRetryOpen repeats a failed open.
func (c *ChatViewController) OnRetryOpen(ctx context.Context) {
	s := c.current()
	if s == nil {
		return
	}
	if err := s.RetryOpen(ctx); err != nil {
		c.cfg.Logger.Debug("retry open did not complete", zap.Error(err))
		return
	}
	snap := s.Snapshot()
	if snap.Outcome == session.OpenCreatedFresh || snap.Outcome == session.OpenCreatedOnMiss {
		c.cfg.Navigator.Replace(ChatRoute(snap.ConversationID))
	}
}

// OnBack closes the session and leaves the screen.
func (c *ChatViewController) OnBack() {
	c.mu.Lock()
	c.detachLocked()
	c.mu.Unlock()
	c.cfg.Navigator.Back()
}

// View returns the view model of the current session.
func (c *ChatViewController) View() ChatViewModel {
	s := c.current()
	if s == nil {
		return ChatViewModel{}
	}
	return c.viewModel(s.Snapshot())
}

func (c *ChatViewController) current() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *ChatViewController) detachLocked() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
}

func (c *ChatViewController) viewModel(snap session.Snapshot) ChatViewModel {
	vm := ChatViewModel{
		ConversationID: snap.ConversationID,
		Title:          snap.Title,
		Subtitle:       snap.Topic,
		IsSending:      snap.State == session.Sending,
		Loading:        snap.State == session.Loading,
		SendEnabled:    snap.State == session.Ready && snap.Status != model.ConversationClosed,
		Messages:       make([]MessageView, 0, len(snap.Messages)),
	}
	for _, m := range snap.Messages {
		vm.Messages = append(vm.Messages, MessageView{
			ID:        m.ID,
			Sender:    m.Sender,
			Content:   m.Content,
			Time:      clock(m.Timestamp, c.cfg.Location),
			Status:    m.Status,
			Retryable: m.Status == model.StatusFailed,
		})
	}

	switch {
	case snap.State == session.Error:
		vm.Error = openErrorText(snap.Err)
		vm.CanRetryOpen = chatclient.IsRetryable(snap.Err)
	case snap.Status == model.ConversationClosed:
		vm.Error = MsgClosed
	}
	return vm
}

func openErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrCreateFailed):
		return MsgCreateFailed
	case errors.Is(err, session.ErrFetchFailed) && chatclient.IsRetryable(err):
		return MsgFetchFailed
	default:
		return MsgOpenRejected
	}
}
