package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/capitalize-ai/campuschat/internal/controller"
)

type navOp int

const (
	navPush navOp = iota
	navReplace
	navBack
)

type navMsg struct {
	op    navOp
	route string
}

type chatViewMsg controller.ChatViewModel

type recentsViewMsg controller.RecentsViewModel

// bridge delivers controller output to the running program. Controllers
// call it from command goroutines.
type bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (b *bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *bridge) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (b *bridge) Push(route string)    { b.post(navMsg{op: navPush, route: route}) }
func (b *bridge) Replace(route string) { b.post(navMsg{op: navReplace, route: route}) }
func (b *bridge) Back()                { b.post(navMsg{op: navBack}) }

func (b *bridge) chatRenderer() controller.Renderer[controller.ChatViewModel] {
	return controller.RenderFunc[controller.ChatViewModel](func(vm controller.ChatViewModel) {
		b.post(chatViewMsg(vm))
	})
}

func (b *bridge) recentsRenderer() controller.Renderer[controller.RecentsViewModel] {
	return controller.RenderFunc[controller.RecentsViewModel](func(vm controller.RecentsViewModel) {
		b.post(recentsViewMsg(vm))
	})
}
