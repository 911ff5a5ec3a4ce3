package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/teamline-chat/teamline/internal/history"
	"github.com/teamline-chat/teamline/internal/mention"
)

// Update is the single event-processing thread of control: transport events,
// timers, and key presses all pass through here sequentially.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.chat.Width = msg.Width - sidebarWidth - 4
		a.chat.Height = msg.Height - 6
		a.input.Width = msg.Width - sidebarWidth - 8
		a.renderChat()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case loggedInMsg:
		if msg.err != nil {
			a.setStatus("login failed: "+msg.err.Error(), true)
			return a, nil
		}
		a.user = msg.user
		a.setStatus("logged in as "+a.user.GetDisplayName(), false)
		a.setupRouter()
		if err := a.connectSession(a.api.Token()); err != nil {
			a.setStatus("connect failed: "+err.Error(), true)
			return a, nil
		}
		return a, tea.Batch(a.fetchConversationsCmd(), a.fetchDirectoryCmd())

	case conversationsMsg:
		if msg.err != nil {
			a.setStatus("failed to load conversations: "+msg.err.Error(), true)
			return a, nil
		}
		a.conversations = msg.conversations
		return a, nil

	case directoryMsg:
		if msg.err != nil {
			a.setStatus("failed to load user directory: "+msg.err.Error(), true)
			return a, nil
		}
		a.directory = msg.candidates
		if a.query != nil {
			a.query.SetDirectory(a.directory)
		}
		return a, nil

	case messageNewMsg:
		// merge into the open window regardless of routing outcome; the
		// router decides only about toasts, sound, and counters
		a.store.MergePush(msg.msg)
		if a.router != nil {
			a.router.Route(msg.msg, msg.sender)
		}
		a.renderChat()
		return a, a.waitEvent()

	case connStateMsg:
		a.connState = msg.state
		return a, a.waitEvent()

	case historyLoadedMsg:
		switch {
		case msg.err == history.ErrStaleResponse:
			// navigated away while the fetch was in flight; drop it
		case msg.err != nil:
			a.setStatus("failed to load history (press r to retry)", true)
		default:
			a.renderChat()
		}
		return a, nil

	case sentMsg:
		if msg.err != nil {
			a.setStatus("send failed: "+msg.err.Error(), true)
		} else {
			a.renderChat()
		}
		return a, nil

	case sweepMsg:
		// drop expired toasts from view
		return a, a.sweepCmd()
	}

	return a, nil
}

func (a *App) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		a.manager.Shutdown()
		return a, tea.Quit
	}

	// ctrl+t acts on the newest toast: dismiss it and jump to its
	// conversation
	if key.Type == tea.KeyCtrlT {
		active := a.toasts.Active()
		if len(active) == 0 {
			return a, nil
		}
		chatID, ok := a.toasts.Click(active[len(active)-1].ID)
		if !ok {
			return a, nil
		}
		for i, c := range a.conversations {
			if c.ID == chatID {
				a.convIndex = i
				return a, a.openConversation(c)
			}
		}
		return a, nil
	}

	if a.focus == FocusSidebar {
		return a.handleSidebarKey(key)
	}
	return a.handleInputKey(key)
}

func (a *App) handleSidebarKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if a.convIndex > 0 {
			a.convIndex--
		}
	case "down", "j":
		if a.convIndex < len(a.conversations)-1 {
			a.convIndex++
		}
	case "enter":
		if conv := a.currentConversation(); conv != nil {
			return a, a.openConversation(conv)
		}
	}
	return a, nil
}

func (a *App) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	// the candidate list owns navigation keys while open
	if a.query != nil && a.query.IsOpen() {
		if k, ok := mentionKey(key); ok {
			commit, handled := a.query.HandleKey(k)
			if commit != nil {
				text, cursor := a.query.Commit(a.input.Value(), *commit)
				a.input.SetValue(text)
				a.input.SetCursor(cursor)
			}
			if handled {
				return a, nil
			}
		}
	}

	switch key.Type {
	case tea.KeyEsc:
		// leave the conversation; in-flight fetches for it become stale
		a.store.Close()
		a.focus = FocusSidebar
		a.input.Blur()
		return a, nil

	case tea.KeyEnter:
		return a, a.submitInput()

	case tea.KeyPgUp:
		conv := a.currentConversation()
		if conv == nil {
			return a, nil
		}
		feed := a.store.Feed(conv.ID)
		if feed != nil && feed.HasMore() {
			return a, a.loadHistoryCmd(feed, false)
		}
		return a, nil
	}

	if key.String() == "r" && a.statusError {
		if conv := a.currentConversation(); conv != nil {
			if feed := a.store.Feed(conv.ID); feed != nil {
				a.setStatus("", false)
				return a, a.loadHistoryCmd(feed, !feed.Loaded())
			}
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(key)
	if a.query != nil {
		a.query.Update(a.input.Value(), a.input.Position())
	}
	return a, cmd
}

// submitInput sends the composed message with its resolved mentions
func (a *App) submitInput() tea.Cmd {
	content := a.input.Value()
	if content == "" {
		return nil
	}
	conv := a.currentConversation()
	if conv == nil {
		return nil
	}
	feed := a.store.Feed(conv.ID)
	if feed == nil {
		return nil
	}

	mentions := mention.ParseOutgoing(content, a.directory)
	a.input.SetValue("")
	if a.query != nil {
		a.query.Update("", 0)
	}
	return a.sendCmd(feed, content, mentions)
}

// mentionKey maps terminal keys to candidate-list actions
func mentionKey(key tea.KeyMsg) (mention.Key, bool) {
	switch key.Type {
	case tea.KeyUp:
		return mention.KeyUp, true
	case tea.KeyDown:
		return mention.KeyDown, true
	case tea.KeyEnter:
		return mention.KeyEnter, true
	case tea.KeyTab:
		return mention.KeyTab, true
	case tea.KeyEsc:
		return mention.KeyEscape, true
	}
	return 0, false
}

func (a *App) setStatus(msg string, isErr bool) {
	a.status = msg
	a.statusError = isErr
}
