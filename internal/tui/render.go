package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/capitalize-ai/campuschat/internal/controller"
	"github.com/capitalize-ai/campuschat/internal/model"
)

func renderRecents(vm controller.RecentsViewModel, cursor, width, height int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Recent chats"))
	switch {
	case vm.Refreshing:
		b.WriteString(dimStyle.Render("  refreshing..."))
	case vm.Loading:
		b.WriteString(dimStyle.Render("  loading..."))
	}
	b.WriteString("\n")

	if vm.Error != "" {
		b.WriteString(errorStyle.Render(vm.Error+"  (x to dismiss)") + "\n")
	}

	if len(vm.Rows) == 0 && !vm.Loading && !vm.Refreshing {
		b.WriteString(dimStyle.Render("  No conversations yet. Press n to start one.") + "\n")
	}

	visible := max(1, height-4)
	offset := 0
	if cursor >= visible {
		offset = cursor - visible + 1
	}
	end := min(len(vm.Rows), offset+visible)
	for i := offset; i < end; i++ {
		b.WriteString(renderRow(vm.Rows[i], i == cursor, width) + "\n")
	}
	if vm.HasMore && end == len(vm.Rows) {
		b.WriteString(dimStyle.Render("  more below...") + "\n")
	}

	b.WriteString(helpStyle.Render("  Enter: open  n: new chat  r: refresh  q: quit"))
	return b.String()
}

func renderRow(row controller.RecentRow, selected bool, width int) string {
	line := fmt.Sprintf("%-5s  %s", row.Time, row.Title)
	if row.Closed {
		line += " (closed)"
	}
	if row.LastMessage != "" {
		line += " - " + row.LastMessage
	}
	line = truncate(line, max(10, width-2))
	if selected {
		return lipgloss.PlaceHorizontal(width, lipgloss.Left, selectedStyle.Render(line))
	}
	return normalStyle.Render(line)
}

func renderChat(vm controller.ChatViewModel, input string, width, height int) string {
	var b strings.Builder

	title := vm.Title
	if title == "" {
		title = "Chat"
	}
	b.WriteString(titleStyle.Render(title))
	if vm.Subtitle != "" {
		b.WriteString(subtitleStyle.Render("  " + vm.Subtitle))
	}
	b.WriteString("\n")

	if vm.Error != "" {
		banner := vm.Error
		if vm.CanRetryOpen {
			banner += "  (ctrl+r to retry)"
		}
		b.WriteString(errorStyle.Render(banner) + "\n")
	}

	if vm.Loading {
		b.WriteString(dimStyle.Render("  loading conversation...") + "\n")
	}

	// Bottom-anchored: keep the newest lines that fit.
	var lines []string
	for _, msg := range vm.Messages {
		lines = append(lines, messageLines(msg, width)...)
	}
	visible := max(1, height-5)
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	for i := len(lines); i < visible; i++ {
		b.WriteString("\n")
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}

	if vm.IsSending {
		b.WriteString(dimStyle.Render("  sending...") + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(input + "\n")
	b.WriteString(helpStyle.Render("  Enter: send  ctrl+r: retry  Esc: back"))
	return b.String()
}

func messageLines(msg controller.MessageView, width int) []string {
	label := userStyle.Render(" You ")
	if msg.Sender == model.SenderAI {
		label = assistantStyle.Render(" Assistant ")
	}
	head := dimStyle.Render(msg.Time) + " " + label

	body := lipgloss.NewStyle().Width(max(10, width-4)).Render(msg.Content)
	switch msg.Status {
	case model.StatusPending:
		body = pendingStyle.Render(body)
	case model.StatusFailed:
		body += "\n" + failedStyle.Render("failed to send, ctrl+r to retry")
	}

	lines := []string{head}
	for _, l := range strings.Split(body, "\n") {
		lines = append(lines, "  "+l)
	}
	return lines
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-2]) + ".."
}
