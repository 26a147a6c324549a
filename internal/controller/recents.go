package controller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/recents"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// MsgRecentsFailed is shown over stale data when a page load fails.
const MsgRecentsFailed = "Could not load your conversations."

// RecentRow is one rendered conversation in the recents list.
type RecentRow struct {
	ID          string
	Title       string
	Topic       string
	LastMessage string
	Time        string
	Closed      bool
}

// RecentsViewModel is everything the recents screen renders.
type RecentsViewModel struct {
	Rows       []RecentRow
	Loading    bool
	Refreshing bool
	HasMore    bool
	Error      string
}

// RecentsViewController drives the recents screen.
type RecentsViewController struct {
	paginator *recents.Paginator
	nav       Navigator
	renderer  Renderer[RecentsViewModel]
	logger    *logger.Logger
	loc       *time.Location
}

// NewRecentsViewController subscribes renderer to paginator.
func NewRecentsViewController(p *recents.Paginator, nav Navigator, renderer Renderer[RecentsViewModel], log *logger.Logger, loc *time.Location) *RecentsViewController {
	if log == nil {
		log = logger.Global()
	}
	if loc == nil {
		loc = time.Local
	}
	c := &RecentsViewController{paginator: p, nav: nav, renderer: renderer, logger: log, loc: loc}
	p.Subscribe(func(snap recents.Snapshot) {
		renderer.Render(c.viewModel(snap))
	})
	return c
}

// OnOpen loads the first page.
func (c *RecentsViewController) OnOpen(ctx context.Context) {
	c.ignore(c.paginator.Load(ctx, 1))
}

// OnRefresh reloads the first page.
func (c *RecentsViewController) OnRefresh(ctx context.Context) {
	c.ignore(c.paginator.Refresh(ctx))
}

// OnEndReached loads the next page if there is one.
func (c *RecentsViewController) OnEndReached(ctx context.Context) {
	c.ignore(c.paginator.LoadMore(ctx))
}

// OnSelect opens a conversation.
func (c *RecentsViewController) OnSelect(conversationID string) {
	c.nav.Push(ChatRoute(conversationID))
}

// OnNewChat opens the new chat screen.
func (c *RecentsViewController) OnNewChat() {
	c.nav.Push(RouteNewChat)
}

// OnDismissError hides the error banner.
func (c *RecentsViewController) OnDismissError() {
	c.paginator.DismissError()
}

// View returns the current view model.
func (c *RecentsViewController) View() RecentsViewModel {
	return c.viewModel(c.paginator.Snapshot())
}

func (c *RecentsViewController) ignore(err error) {
	if err == nil || errors.Is(err, recents.ErrBusy) || errors.Is(err, recents.ErrExhausted) {
		return
	}
	c.logger.Debug("recents load did not complete", zap.Error(err))
}

func (c *RecentsViewController) viewModel(snap recents.Snapshot) RecentsViewModel {
	vm := RecentsViewModel{
		Rows:       make([]RecentRow, 0, len(snap.Items)),
		Loading:    snap.Loading,
		Refreshing: snap.Refreshing,
		HasMore:    snap.HasMore(),
	}
	if snap.Err != nil {
		vm.Error = MsgRecentsFailed
	}
	for _, it := range snap.Items {
		row := RecentRow{
			ID:          it.ID,
			Title:       it.Title,
			Topic:       it.Topic,
			LastMessage: it.LastMessage,
			Closed:      it.Status == model.ConversationClosed,
		}
		ts := it.UpdatedAt
		if it.LastMessageTimestamp != nil {
			ts = *it.LastMessageTimestamp
		}
		row.Time = clock(ts, c.loc)
		if row.Title == "" {
			row.Title = it.ID
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm
}
