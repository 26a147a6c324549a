// Package recents pages through the signed-in user's conversations.
package recents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/metrics"
)

var (
	// ErrBusy is returned when a load is already in flight.
	ErrBusy = errors.New("recents: load in flight")
	// ErrExhausted is returned by LoadMore after the last page.
	ErrExhausted = errors.New("recents: no more pages")
)

// Snapshot is a copy of the paginator state.
type Snapshot struct {
	Items      []model.ConversationSummary
	Page       model.RecentsPage
	Loading    bool
	Refreshing bool
	Err        error
}

// HasMore reports whether LoadMore would issue a request.
func (s Snapshot) HasMore() bool {
	return s.Page.HasMore()
}

// Paginator holds the pages loaded so far. Only one load runs at a time.
type Paginator struct {
	client  chatclient.Client
	userID  string
	perPage int
	logger  *logger.Logger

	mu          sync.Mutex
	items       []model.ConversationSummary
	seen        map[string]struct{}
	page        model.RecentsPage
	loading     bool
	refreshing  bool
	inFlight    bool
	err         error
	subscribers []func(Snapshot)
}

// New returns an empty paginator. perPage <= 0 selects the default.
func New(client chatclient.Client, userID string, perPage int, log *logger.Logger) *Paginator {
	if perPage <= 0 {
		perPage = chatclient.DefaultPerPage
	}
	if log == nil {
		log = logger.Global()
	}
	return &Paginator{
		client:  client,
		userID:  userID,
		perPage: perPage,
		logger:  log.With(zap.String("component", "recents")),
		seen:    make(map[string]struct{}),
	}
}

// Subscribe registers fn to receive a snapshot after every change.
func (p *Paginator) Subscribe(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Load fetches page. Page 1 replaces the held items, later pages append
// items not already held.
func (p *Paginator) Load(ctx context.Context, page int) error {
	kind := "more"
	if page == 1 {
		kind = "initial"
	}
	return p.load(ctx, page, kind)
}

// Refresh reloads page 1 under the refreshing flag.
func (p *Paginator) Refresh(ctx context.Context) error {
	return p.load(ctx, 1, "refresh")
}

// LoadMore fetches the page after the last one loaded.
func (p *Paginator) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	busy, next, more := p.inFlight, p.page.Page+1, p.page.HasMore()
	p.mu.Unlock()

	if busy {
		return ErrBusy
	}
	if !more {
		return ErrExhausted
	}
	return p.load(ctx, next, "more")
}

// DismissError clears the last load error.
func (p *Paginator) DismissError() {
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	p.notify()
}

// Snapshot returns the current state.
func (p *Paginator) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Paginator) load(ctx context.Context, page int, kind string) error {
	if page < 1 {
		return &chatclient.ValidationError{Field: "page", Reason: "must be at least 1"}
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrBusy
	}
	p.inFlight = true
	p.refreshing = kind == "refresh"
	p.loading = !p.refreshing
	p.mu.Unlock()
	p.notify()

	items, meta, err := p.client.ListRecent(ctx, p.userID, page, p.perPage)

	p.mu.Lock()
	p.inFlight, p.loading, p.refreshing = false, false, false
	if err != nil {
		p.err = fmt.Errorf("load recent conversations: %w", err)
		p.mu.Unlock()

		metrics.RecentsLoadsTotal.WithLabelValues(kind, "failed").Inc()
		p.logger.Warn("recents load failed", zap.Int("page", page), zap.Error(err))
		p.notify()
		return err
	}

	if page == 1 {
		p.items = p.items[:0:0]
		p.seen = make(map[string]struct{}, len(items))
		p.page = meta
	} else if meta.Page >= p.page.Page {
		p.page = meta
	}
	for _, it := range items {
		if _, dup := p.seen[it.ID]; dup {
			continue
		}
		p.seen[it.ID] = struct{}{}
		p.items = append(p.items, it)
	}
	p.err = nil
	p.mu.Unlock()

	metrics.RecentsLoadsTotal.WithLabelValues(kind, "ok").Inc()
	p.logger.Debug("recents page loaded",
		zap.Int("page", meta.Page),
		zap.Int("total_pages", meta.TotalPages),
		zap.Int("items", len(items)),
	)
	p.notify()
	return nil
}

func (p *Paginator) snapshotLocked() Snapshot {
	return Snapshot{
		Items:      append([]model.ConversationSummary(nil), p.items...),
		Page:       p.page,
		Loading:    p.loading,
		Refreshing: p.refreshing,
		Err:        p.err,
	}
}

func (p *Paginator) notify() {
	p.mu.Lock()
	snap := p.snapshotLocked()
	subs := make([]func(Snapshot), len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
