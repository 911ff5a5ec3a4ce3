package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/notify"
)

const sidebarWidth = 24

// setupRouter wires the notification router once the user is known. The
// unread callback mutates conversation state directly; routing always
// happens on the program loop, so no locking is needed.
func (a *App) setupRouter() {
	bell := terminalBell{}
	a.router = notify.NewRouter(a.user.ID, a.toasts, a.store.Active, a.log,
		notify.WithSounder(bell),
		notify.WithUnreadCounter(func(chatID uuid.UUID) {
			if conv := a.conversationByID(chatID); conv != nil {
				conv.UnreadCount++
			}
		}),
	)
}

// terminalBell rings the terminal bell as the alert sound. Terminals that
// ignore BEL simply stay silent.
type terminalBell struct{}

func (terminalBell) Play() error {
	fmt.Print("\a")
	return nil
}

// renderChat rebuilds the chat viewport from the active feed
func (a *App) renderChat() {
	conv := a.currentConversation()
	if conv == nil {
		a.chat.SetContent("")
		return
	}
	feed := a.store.Feed(conv.ID)
	if feed == nil {
		a.chat.SetContent("")
		return
	}

	var b strings.Builder
	if feed.HasMore() {
		b.WriteString(a.styles.Timestamp.Render("-- pgup for older messages --"))
		b.WriteString("\n")
	}
	for _, m := range feed.Messages() {
		senderStyle := a.styles.Sender
		name := a.senderName(m.SenderID)
		if a.user != nil && m.SenderID == a.user.ID {
			senderStyle = a.styles.OwnSender
			name = "you"
		}

		content := m.Content
		if a.user != nil && m.MentionsUser(a.user.ID) {
			content = a.styles.MentionText.Render(content)
		}

		b.WriteString(fmt.Sprintf("%s %s %s\n",
			a.styles.Timestamp.Render(m.Timestamp.Local().Format("15:04")),
			senderStyle.Render(name+":"),
			content,
		))
	}
	a.chat.SetContent(b.String())
	a.chat.GotoBottom()
}

// senderName resolves a sender id against the directory
func (a *App) senderName(id uuid.UUID) string {
	for _, c := range a.directory {
		if c.ID == id {
			return c.DisplayName
		}
	}
	return id.String()[:8]
}

// View renders the full frame
func (a *App) View() string {
	if a.user == nil {
		return a.statusLine()
	}

	sidebar := a.renderSidebar()
	chatPane := lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.chat.View(),
		a.renderInput(),
	)
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", chatPane)

	frame := lipgloss.JoinVertical(lipgloss.Left, main, a.statusLine())

	if toasts := a.renderToasts(); toasts != "" {
		frame = lipgloss.JoinVertical(lipgloss.Left, toasts, frame)
	}
	return frame
}

func (a *App) renderSidebar() string {
	var b strings.Builder
	b.WriteString(a.styles.ChatHeader.Render("Conversations"))
	b.WriteString("\n")
	for i, c := range a.conversations {
		name := c.Name
		if name == "" {
			name = "direct chat"
		}
		line := name
		if c.UnreadCount > 0 {
			line = fmt.Sprintf("%s %s", name, a.styles.UnreadBadge.Render(fmt.Sprintf("(%d)", c.UnreadCount)))
		}
		if i == a.convIndex {
			line = a.styles.SidebarActive.Render("> " + line)
		} else {
			line = a.styles.Sidebar.Render("  " + line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(b.String())
}

func (a *App) renderHeader() string {
	conv := a.currentConversation()
	if conv == nil {
		return a.styles.ChatHeader.Render("no conversation selected")
	}
	name := conv.Name
	if name == "" {
		name = "direct chat"
	}
	return a.styles.ChatHeader.Render(name)
}

func (a *App) renderInput() string {
	box := a.styles.InputBox.Render(a.input.View())
	if a.query == nil || !a.query.IsOpen() {
		return box
	}

	var b strings.Builder
	for i, c := range a.query.Candidates() {
		if i == a.query.SelectedIndex() {
			b.WriteString(a.styles.PopupSelected.Render("> " + c.DisplayName))
		} else {
			b.WriteString("  " + c.DisplayName)
		}
		b.WriteString("\n")
	}
	popup := a.styles.Popup.Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, popup, box)
}

func (a *App) renderToasts() string {
	active := a.toasts.Active()
	if len(active) == 0 {
		return ""
	}
	parts := make([]string, 0, len(active))
	for _, t := range active {
		style := a.styles.Toast
		prefix := ""
		if t.IsMention {
			style = a.styles.ToastMention
			prefix = "@ "
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s%s: %s", prefix, t.SenderName, t.Body)))
	}
	return lipgloss.JoinVertical(lipgloss.Right, parts...)
}

func (a *App) statusLine() string {
	style := a.styles.StatusBar
	if a.statusError {
		style = a.styles.StatusError
	}
	state := a.connState
	if state == "" {
		state = "offline"
	}
	return style.Render(fmt.Sprintf("[%s] %s", state, a.status))
}
