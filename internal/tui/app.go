package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/history"
	"github.com/teamline-chat/teamline/internal/mention"
	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/notify"
	"github.com/teamline-chat/teamline/internal/protocol"
	"github.com/teamline-chat/teamline/internal/rest"
	"github.com/teamline-chat/teamline/internal/session"
)

// Config holds what the app needs to reach the backend
type Config struct {
	ServerAddr string
	Email      string
	Password   string
	PageSize   int
	ToastTTL   time.Duration
}

// FocusArea represents which pane has keyboard focus
type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusInput
)

// App is the bubbletea model hosting the messaging core: the session's
// pushed events, the pagination store, the mention engine, and the
// notification router all meet here on the single program loop.
type App struct {
	width  int
	height int
	focus  FocusArea
	styles Styles
	log    zerolog.Logger

	cfg     Config
	manager *session.Manager
	sess    *session.Session
	api     *rest.Client
	store   *history.Store
	router  *notify.Router
	toasts  *notify.ToastQueue

	user          *models.User
	conversations []*models.Conversation
	convIndex     int
	directory     []models.MentionCandidate
	query         *mention.Query

	input textinput.Model
	chat  viewport.Model

	status      string
	statusError bool
	connState   string

	// session callbacks run off the program loop; they hand events to it
	// through this channel
	events chan tea.Msg
}

// --- messages delivered to Update ---

type loggedInMsg struct {
	user *models.User
	err  error
}

type directoryMsg struct {
	candidates []models.MentionCandidate
	err        error
}

type conversationsMsg struct {
	conversations []*models.Conversation
	err           error
}

type messageNewMsg struct {
	msg    *models.Message
	sender models.SenderSummary
}

type connStateMsg struct{ state string }

type historyLoadedMsg struct {
	chatID uuid.UUID
	err    error
}

type sentMsg struct{ err error }

type sweepMsg time.Time

// NewApp creates the application model
func NewApp(cfg Config, log zerolog.Logger) *App {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Width = 50

	chat := viewport.New(80, 20)

	api := rest.New(cfg.ServerAddr, log)
	return &App{
		cfg:     cfg,
		styles:  DefaultStyles(),
		log:     log.With().Str("component", "tui").Logger(),
		manager: session.NewManager(cfg.ServerAddr, log),
		api:     api,
		store:   history.NewStore(api, cfg.PageSize),
		toasts:  notify.NewToastQueue(cfg.ToastTTL),
		input:   input,
		chat:    chat,
		focus:   FocusSidebar,
		events:  make(chan tea.Msg, 64),
		status:  "connecting...",
	}
}

// Init starts the login flow and the toast sweep ticker
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.loginCmd(), a.waitEvent(), a.sweepCmd())
}

// loginCmd authenticates over REST; the live session comes up afterwards
func (a *App) loginCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		user, err := a.api.Login(ctx, a.cfg.Email, a.cfg.Password)
		return loggedInMsg{user: user, err: err}
	}
}

// waitEvent pulls the next session-sourced event onto the program loop
func (a *App) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return <-a.events
	}
}

func (a *App) sweepCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return sweepMsg(t)
	})
}

func (a *App) fetchDirectoryCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		candidates, err := a.api.FetchUserDirectory(ctx)
		return directoryMsg{candidates: candidates, err: err}
	}
}

func (a *App) fetchConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conversations, err := a.api.FetchConversations(ctx)
		return conversationsMsg{conversations: conversations, err: err}
	}
}

func (a *App) loadHistoryCmd(feed *history.Feed, initial bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		if initial {
			err = feed.LoadInitial(ctx)
		} else {
			err = feed.LoadOlder(ctx)
		}
		return historyLoadedMsg{chatID: feed.ChatID(), err: err}
	}
}

func (a *App) sendCmd(feed *history.Feed, content string, mentions []uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := feed.Send(ctx, content, mentions)
		return sentMsg{err: err}
	}
}

// connectSession brings up the live transport and wires the event channels
func (a *App) connectSession(token string) error {
	sess, err := a.manager.Connect(a.user.ID, token)
	if err != nil {
		return err
	}
	a.sess = sess

	sess.On(protocol.EventMessageNew, func(env *protocol.Envelope) {
		msg, sender, err := session.MessageNew(env)
		if err != nil {
			a.log.Warn().Err(err).Msg("bad message payload")
			return
		}
		a.events <- messageNewMsg{msg: msg, sender: sender}
	})
	sess.On(protocol.EventConnect, func(env *protocol.Envelope) {
		a.events <- connStateMsg{state: "connected"}
	})
	sess.On(protocol.EventDisconnect, func(env *protocol.Envelope) {
		a.events <- connStateMsg{state: "disconnected"}
	})
	sess.On(protocol.EventReconnecting, func(env *protocol.Envelope) {
		a.events <- connStateMsg{state: "reconnecting"}
	})
	return nil
}

// currentConversation returns the highlighted conversation, or nil
func (a *App) currentConversation() *models.Conversation {
	if a.convIndex < 0 || a.convIndex >= len(a.conversations) {
		return nil
	}
	return a.conversations[a.convIndex]
}

// conversationByID finds a conversation in the loaded list
func (a *App) conversationByID(id uuid.UUID) *models.Conversation {
	for _, c := range a.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// openConversation makes the highlighted conversation active: history is
// established, its unread count clears, and pushes for it stop toasting
func (a *App) openConversation(conv *models.Conversation) tea.Cmd {
	feed := a.store.Open(conv.ID)
	conv.UnreadCount = 0
	a.focus = FocusInput
	a.input.Focus()

	a.query = mention.NewQuery(a.user.ID, conv.IsGroup(), a.directory)

	if !feed.Loaded() {
		return a.loadHistoryCmd(feed, true)
	}
	a.renderChat()
	return nil
}
