// Package session holds the state of one open conversation: the canonical
// message sequence, optimistic entries and synchronization status.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/metrics"
)

// DefaultGreeting seeds conversations created by Open.
const DefaultGreeting = "Hello"

// TempIDPrefix marks ids assigned to optimistic entries.
const TempIDPrefix = "local-"

// State is the synchronization status of a session.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Sending
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OpenOutcome records how Open obtained its conversation.
type OpenOutcome int

const (
	OpenPending OpenOutcome = iota
	// OpenFetched means the requested conversation existed.
	OpenFetched
	// OpenCreatedFresh means no id was requested and one was created.
	OpenCreatedFresh
	// OpenCreatedOnMiss means the requested id was unknown and a new
	// conversation replaced it.
	OpenCreatedOnMiss
)

func (o OpenOutcome) String() string {
	switch o {
	case OpenFetched:
		return "fetched"
	case OpenCreatedFresh:
		return "created_fresh"
	case OpenCreatedOnMiss:
		return "created_on_miss"
	default:
		return "pending"
	}
}

var (
	// ErrCreateFailed wraps a failed create during Open.
	ErrCreateFailed = errors.New("create conversation failed")
	// ErrFetchFailed wraps a failed fetch during Open other than a miss.
	ErrFetchFailed = errors.New("fetch conversation failed")
	// ErrSendRejected is returned when Send or Retry is a no-op.
	ErrSendRejected = errors.New("send rejected")
	// ErrClosed is returned when a result arrives after Close.
	ErrClosed = errors.New("session closed")
)

// Snapshot is an immutable copy of the session handed to subscribers.
type Snapshot struct {
	State          State
	Outcome        OpenOutcome
	ConversationID string
	Title          string
	Topic          string
	Status         model.ConversationStatus
	Messages       []model.Message
	Err            error
}

// IsSending reports whether a send is in flight.
func (s Snapshot) IsSending() bool {
	return s.State == Sending
}

// Session tracks one conversation. All methods are safe for concurrent use;
// network calls run without holding the lock.
type Session struct {
	client   chatclient.Client
	identity chatclient.Identity
	metadata chatclient.CreateMetadata
	greeting string
	logger   *logger.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       State
	outcome     OpenOutcome
	requestedID string
	conv        *model.Conversation
	canonical   []model.Message
	optimistic  []model.Message
	err         error
	closed      bool
	subscribers map[int]func(Snapshot)
	nextSub     int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the time source for optimistic entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetadata sets the context sent when a conversation is created.
func WithMetadata(m chatclient.CreateMetadata) Option {
	return func(s *Session) { s.metadata = m }
}

// WithGreeting overrides the initial message of created conversations.
func WithGreeting(text string) Option {
	return func(s *Session) { s.greeting = text }
}

// New returns an uninitialized session for identity.
func New(client chatclient.Client, identity chatclient.Identity, opts ...Option) *Session {
	s := &Session{
		client:      client,
		identity:    identity,
		greeting:    DefaultGreeting,
		logger:      logger.Global(),
		now:         time.Now,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Open loads conversationID, or creates a conversation when the id is empty
// or unknown to the backend. A miss is not an error; a failed create is.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Loading || s.state == Sending {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("open while %s", state)
	}
	s.state = Loading
	s.outcome = OpenPending
	s.requestedID = conversationID
	s.optimistic = nil
	s.err = nil
	s.mu.Unlock()
	s.notify()

	conv, outcome, err := s.load(ctx, conversationID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state = Error
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.setConversation(conv)
	s.outcome = outcome
	s.state = Ready
	s.mu.Unlock()

	s.logger.Debug("session opened",
		zap.String("conversation_id", conv.ID),
		zap.String("outcome", outcome.String()),
	)
	s.notify()
	return nil
}

// RetryOpen re-runs Open with the last requested id. It is only valid from
// the Error state.
func (s *Session) RetryOpen(ctx context.Context) error {
	s.mu.Lock()
	state, id := s.state, s.requestedID
	s.mu.Unlock()
	if state != Error {
		return fmt.Errorf("retry open while %s", state)
	}
	return s.Open(ctx, id)
}

func (s *Session) load(ctx context.Context, conversationID string) (*model.Conversation, OpenOutcome, error) {
	if conversationID == "" {
		conv, err := s.create(ctx, "")
		return conv, OpenCreatedFresh, err
	}

	conv, err := s.client.FetchConversation(ctx, conversationID)
	switch {
	case err == nil:
		return conv, OpenFetched, nil
	case chatclient.IsNotFound(err):
		s.logger.Info("conversation not found, creating a new one", zap.String("conversation_id", conversationID))
		conv, err := s.create(ctx, conversationID)
		return conv, OpenCreatedOnMiss, err
	default:
		s.logger.Warn("fetch conversation failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil, OpenPending, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
}

func (s *Session) create(ctx context.Context, replacesID string) (*model.Conversation, error) {
	conv, err := s.client.CreateConversation(ctx, chatclient.CreateParams{
		UserID:         s.identity.ID,
		Username:       s.identity.Username,
		DisplayName:    s.identity.DisplayName,
		InitialMessage: s.greeting,
		Metadata:       s.metadata,
		ReplacesID:     replacesID,
	})
	if err != nil {
		s.logger.Warn("create conversation failed", zap.String("user_id", s.identity.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	return conv, nil
}

// Send appends text as an optimistic entry and delivers it. It is a no-op
// returning ErrSendRejected when text is blank, a send is in flight, or the
// session is not Ready. A delivery failure leaves the entry marked failed.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty message", ErrSendRejected)
	}

	s.mu.Lock()
	if err := s.acceptLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	entry := model.Message{
		ID:        TempIDPrefix + uuid.NewString(),
		Sender:    model.SenderUser,
		Content:   text,
		Timestamp: s.now(),
		Status:    model.StatusPending,
	}
	s.optimistic = append(s.optimistic, entry)
	s.state = Sending
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, entry)
}

// Retry re-sends a failed optimistic entry through the same path as Send.
func (s *Session) Retry(ctx context.Context, entryID string) error {
	s.mu.Lock()
	if err := s.acceptLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.indexOptimistic(entryID)
	if i < 0 || s.optimistic[i].Status != model.StatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: no failed entry %q", ErrSendRejected, entryID)
	}
	s.optimistic[i].Status = model.StatusPending
	s.optimistic[i].Timestamp = s.now()
	entry := s.optimistic[i]
	s.state = Sending
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, entry)
}

func (s *Session) acceptLocked() error {
	switch {
	case s.closed:
		return fmt.Errorf("%w: %w", ErrSendRejected, ErrClosed)
	case s.state == Sending:
		return fmt.Errorf("%w: send in flight", ErrSendRejected)
	case s.state != Ready:
		return fmt.Errorf("%w: session is %s", ErrSendRejected, s.state)
	case s.conv != nil && s.conv.IsClosed():
		return fmt.Errorf("%w: conversation is closed", ErrSendRejected)
	}
	return nil
}

func (s *Session) deliver(ctx context.Context, entry model.Message) error {
	s.mu.Lock()
	conversationID := s.conv.ID
	s.mu.Unlock()

	msg, err := s.client.AppendMessage(ctx, conversationID, entry.Sender, entry.Content, model.MessageMetadata{
		InputType: "text",
		Device:    s.metadata.Platform,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		if i := s.indexOptimistic(entry.ID); i >= 0 {
			s.optimistic[i].Status = model.StatusFailed
		}
		s.state = Ready
		s.mu.Unlock()

		metrics.SessionSendsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("send failed", zap.String("conversation_id", conversationID), zap.Error(err))
		s.notify()
		return err
	}
	s.reconcile(*msg, entry.ID)
	s.mu.Unlock()
	s.notify()

	metrics.SessionSendsTotal.WithLabelValues("sent").Inc()
	s.refetch(ctx, conversationID)
	return nil
}

// reconcile replaces the optimistic entry matching msg by sender, content
// and nearest timestamp. When nothing matches, the entry that was sent is
// resolved instead.
func (s *Session) reconcile(msg model.Message, sentID string) {
	match := -1
	var best time.Duration
	for i, e := range s.optimistic {
		if e.Status != model.StatusPending || e.Sender != msg.Sender || e.Content != msg.Content {
			continue
		}
		d := e.Timestamp.Sub(msg.Timestamp)
		if d < 0 {
			d = -d
		}
		if match < 0 || d < best {
			match, best = i, d
		}
	}
	if match < 0 {
		match = s.indexOptimistic(sentID)
	}
	if match >= 0 {
		s.optimistic = append(s.optimistic[:match], s.optimistic[match+1:]...)
	}

	if msg.Status == "" {
		msg.Status = model.StatusSent
	}
	for _, m := range s.canonical {
		if m.ID != "" && m.ID == msg.ID {
			return
		}
	}
	s.canonical = append(s.canonical, msg)
	sortByTimestamp(s.canonical)
}

// refetch replaces the canonical sequence with the server copy so replies
// and the summary are picked up. On failure the merged state is kept.
func (s *Session) refetch(ctx context.Context, conversationID string) {
	conv, err := s.client.FetchConversation(ctx, conversationID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.logger.Warn("refetch after send failed, keeping local state",
			zap.String("conversation_id", conversationID), zap.Error(err))
	} else {
		s.setConversation(conv)
	}
	s.state = Ready
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setConversation(conv *model.Conversation) {
	s.conv = conv
	s.canonical = make([]model.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Status == "" {
			m.Status = model.StatusSent
		}
		s.canonical = append(s.canonical, m)
	}
	sortByTimestamp(s.canonical)
}

func (s *Session) indexOptimistic(id string) int {
	for i, e := range s.optimistic {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Close detaches the session. Results of calls still in flight are
// discarded when they arrive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = make(map[int]func(Snapshot))
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the id of the loaded conversation, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return ""
	}
	return s.conv.ID
}

// View returns canonical messages in timestamp order followed by unresolved
// optimistic entries.
func (s *Session) View() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Reversed returns View newest first for bottom-anchored surfaces.
func (s *Session) Reversed() []model.Message {
	v := s.View()
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
	return v
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) viewLocked() []model.Message {
	out := make([]model.Message, 0, len(s.canonical)+len(s.optimistic))
	out = append(out, s.canonical...)
	return append(out, s.optimistic...)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Outcome:  s.outcome,
		Messages: s.viewLocked(),
		Err:      s.err,
	}
	if s.conv != nil {
		snap.ConversationID = s.conv.ID
		snap.Title = s.conv.Title()
		snap.Topic = s.conv.Metadata.Context.Topic
		snap.Status = s.conv.Status
	}
	return snap
}

func (s *Session) notify() {
	s.mu.Lock()
	if s.closed || len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func sortByTimestamp(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
