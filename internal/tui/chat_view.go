package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/taskdeck/internal/chat"
)

func (m model) updateChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.screen = screenTasks
		m.chatInput.Blur()
		return m, nil
	case "esc":
		m.screen = screenTasks
		m.chatInput.Blur()
		return m, nil

	case "enter":
		// One reply in flight at a time; Enter is a no-op while waiting.
		if m.waiting {
			return m, nil
		}
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" {
			return m, nil
		}
		m.chatInput.SetValue("")
		m.waiting = true
		return m, tea.Batch(m.sendChatCmd(text), m.spin.Tick)
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) chatView() string {
	var b strings.Builder

	identityName := "you"
	if identity, ok := m.app.Sessions.CurrentIdentity(); ok && identity.Name != "" {
		identityName = identity.Name
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	turns := m.app.Chat.Transcript()
	if len(turns) == 0 {
		b.WriteString(hintStyle.Render("no messages yet, ask the assistant about your tasks"))
		b.WriteString("\n")
	}
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			b.WriteString(promptStyle.Render(identityName + ": "))
			b.WriteString(turn.Content)
		default:
			b.WriteString(titleStyle.Render("assistant:"))
			b.WriteString("\n")
			b.WriteString(renderMarkdown(turn.Content, width))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.waiting {
		b.WriteString(m.spin.View())
		b.WriteString(hintStyle.Render(" waiting for the assistant..."))
		b.WriteString("\n")
	}
	b.WriteString(promptStyle.Render("> "))
	b.WriteString(m.chatInput.View())
	b.WriteString("\n")

	return b.String()
}
