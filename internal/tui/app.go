// Package tui renders the recents list and the chat view in the terminal and
// forwards key presses to the controllers as intents.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/controller"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/recents"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// Config holds what the screens need.
type Config struct {
	Client   chatclient.Client
	Identity chatclient.Identity
	Metadata chatclient.CreateMetadata
	PerPage  int
	Logger   *logger.Logger
	Location *time.Location
}

// Model is the root bubbletea model. It keeps a route stack; the top route
// decides which screen is shown.
type Model struct {
	ctx    context.Context
	bridge *bridge

	chat    *controller.ChatViewController
	recents *controller.RecentsViewController

	stack     []string
	chatVM    controller.ChatViewModel
	recentsVM controller.RecentsViewModel
	cursor    int
	input     textinput.Model
	width     int
	height    int
	quitting  bool
}

// NewModel builds the screens and starts at route.
func NewModel(ctx context.Context, cfg Config, route string) Model {
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}
	b := &bridge{}

	chat := controller.NewChatViewController(controller.ChatConfig{
		Client:    cfg.Client,
		Identity:  cfg.Identity,
		Metadata:  cfg.Metadata,
		Navigator: b,
		Renderer:  b.chatRenderer(),
		Logger:    cfg.Logger,
		Location:  cfg.Location,
	})
	paginator := recents.New(cfg.Client, cfg.Identity.ID, cfg.PerPage, cfg.Logger)
	list := controller.NewRecentsViewController(paginator, b, b.recentsRenderer(), cfg.Logger, cfg.Location)

	in := textinput.New()
	in.Placeholder = "Type a message..."
	in.CharLimit = 2000

	return Model{
		ctx:     ctx,
		bridge:  b,
		chat:    chat,
		recents: list,
		stack:   []string{route},
		input:   in,
		width:   100,
		height:  30,
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, cfg Config, route string) error {
	m := NewModel(ctx, cfg, route)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.bridge.attach(p.Send)
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.open(m.top()), textinput.Blink)
}

func (m Model) top() string {
	if len(m.stack) == 0 {
		return ""
	}
	return m.stack[len(m.stack)-1]
}

func (m Model) onChat() bool {
	_, ok := controller.ParseChatRoute(m.top())
	return ok
}

// open enters route. Controller calls run as commands because they post
// back into the program.
func (m *Model) open(route string) tea.Cmd {
	if id, ok := controller.ParseChatRoute(route); ok {
		m.chatVM = controller.ChatViewModel{Loading: true}
		m.input.Reset()
		focus := m.input.Focus()
		return tea.Batch(focus, m.intent(func(ctx context.Context) { m.chat.OnOpen(ctx, id) }))
	}
	m.input.Blur()
	return m.intent(m.recents.OnOpen)
}

func (m Model) intent(fn func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx)
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case navMsg:
		return m.navigate(msg)

	case chatViewMsg:
		m.chatVM = controller.ChatViewModel(msg)
		return m, nil

	case recentsViewMsg:
		m.recentsVM = controller.RecentsViewModel(msg)
		if m.cursor >= len(m.recentsVM.Rows) {
			m.cursor = max(0, len(m.recentsVM.Rows)-1)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.onChat() {
			return m.updateChat(msg)
		}
		return m.updateRecents(msg)
	}

	if m.onChat() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) navigate(msg navMsg) (tea.Model, tea.Cmd) {
	switch msg.op {
	case navPush:
		m.stack = append(m.stack, msg.route)
		return m, m.open(msg.route)
	case navReplace:
		if len(m.stack) > 0 {
			m.stack[len(m.stack)-1] = msg.route
		}
		return m, nil
	case navBack:
		if len(m.stack) > 0 {
			m.stack = m.stack[:len(m.stack)-1]
		}
		if len(m.stack) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		if m.onChat() {
			return m, m.open(m.top())
		}
		m.input.Blur()
		return m, m.intent(m.recents.OnRefresh)
	}
	return m, nil
}

func (m Model) updateRecents(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.recentsVM.Rows
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
		if m.cursor >= len(rows)-1 && m.recentsVM.HasMore && !m.recentsVM.Loading {
			return m, m.intent(m.recents.OnEndReached)
		}

	case "enter":
		if len(rows) > 0 {
			id := rows[m.cursor].ID
			return m, m.intent(func(context.Context) { m.recents.OnSelect(id) })
		}

	case "n":
		return m, m.intent(func(context.Context) { m.recents.OnNewChat() })

	case "r":
		return m, m.intent(m.recents.OnRefresh)

	case "x":
		return m, m.intent(func(context.Context) { m.recents.OnDismissError() })
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.intent(func(context.Context) { m.chat.OnBack() })

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || !m.chatVM.SendEnabled {
			return m, nil
		}
		m.input.Reset()
		return m, m.intent(func(ctx context.Context) { m.chat.OnSend(ctx, text) })

	case "ctrl+r":
		if m.chatVM.CanRetryOpen {
			return m, m.intent(m.chat.OnRetryOpen)
		}
		if id := lastFailed(m.chatVM.Messages); id != "" {
			return m, m.intent(func(ctx context.Context) { m.chat.OnRetry(ctx, id) })
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func lastFailed(msgs []controller.MessageView) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == model.StatusFailed {
			return msgs[i].ID
		}
	}
	return ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.onChat() {
		return renderChat(m.chatVM, m.input.View(), m.width, m.height)
	}
	return renderRecents(m.recentsVM, m.cursor, m.width, m.height)
}
