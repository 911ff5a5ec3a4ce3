package notify

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
)

// recentEventLimit bounds the redelivery-suppression set. 500 ids covers any
// realistic redelivery window without unbounded growth.
const recentEventLimit = 500

// Outcome classifies how an incoming message event was routed
type Outcome int

const (
	// OutcomeIgnored: self-echo, no side effects
	OutcomeIgnored Outcome = iota
	// OutcomeSuppressed: the conversation is open; merged silently
	OutcomeSuppressed
	// OutcomeNotified: toast, sound, desktop notification, unread counter
	OutcomeNotified
	// OutcomeDuplicate: event id already processed
	OutcomeDuplicate
)

// String returns a human-readable outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeNotified:
		return "notified"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Sounder plays the alert sound. Best-effort: autoplay restrictions may make
// it fail, and the failure is swallowed.
type Sounder interface {
	Play() error
}

// DesktopNotifier raises an OS-level notification. Best-effort: a failure to
// display is silently ignored.
type DesktopNotifier interface {
	Notify(title, body string) error
}

// Router decides, for each pushed message event, whether to surface a toast,
// play a sound, raise a desktop notification, and bump the unread counter.
// Events are consumed idempotently: a redelivered id produces no second
// round of side effects.
type Router struct {
	currentUser uuid.UUID
	toasts      *ToastQueue
	seen        *lru.Cache[uuid.UUID, struct{}]

	activeChat func() (uuid.UUID, bool)
	bumpUnread func(chatID uuid.UUID)
	sounder    Sounder
	desktop    DesktopNotifier
	log        zerolog.Logger
}

// RouterOption configures optional side-effect ports
type RouterOption func(*Router)

// WithSounder installs the alert-sound port
func WithSounder(s Sounder) RouterOption {
	return func(r *Router) { r.sounder = s }
}

// WithDesktopNotifier installs the OS-notification port
func WithDesktopNotifier(d DesktopNotifier) RouterOption {
	return func(r *Router) { r.desktop = d }
}

// WithUnreadCounter installs the unread-counter callback
func WithUnreadCounter(bump func(chatID uuid.UUID)) RouterOption {
	return func(r *Router) { r.bumpUnread = bump }
}

// NewRouter creates a notification router. activeChat reports which
// conversation the user is currently viewing, if any.
func NewRouter(currentUser uuid.UUID, toasts *ToastQueue, activeChat func() (uuid.UUID, bool), log zerolog.Logger, opts ...RouterOption) *Router {
	seen, _ := lru.New[uuid.UUID, struct{}](recentEventLimit)
	r := &Router{
		currentUser: currentUser,
		toasts:      toasts,
		seen:        seen,
		activeChat:  activeChat,
		log:         log.With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Toasts returns the router's toast queue
func (r *Router) Toasts() *ToastQueue {
	return r.toasts
}

// Route classifies one incoming message event and dispatches its side
// effects. All mutation happens on the single event-processing thread of
// control, so the recent-id set needs no locking beyond the cache's own.
func (r *Router) Route(msg *models.Message, sender models.SenderSummary) Outcome {
	if _, dup := r.seen.Get(msg.ID); dup {
		return OutcomeDuplicate
	}
	r.seen.Add(msg.ID, struct{}{})

	if msg.SenderID == r.currentUser {
		return OutcomeIgnored
	}

	// viewing the conversation counts as having read it
	if chatID, ok := r.activeChat(); ok && chatID == msg.ChatID {
		return OutcomeSuppressed
	}

	isMention := msg.MentionsUser(r.currentUser)

	r.toasts.Push(Toast{
		ChatID:     msg.ChatID,
		SenderName: sender.DisplayName,
		Body:       msg.Content,
		IsMention:  isMention,
	})

	if r.bumpUnread != nil {
		r.bumpUnread(msg.ChatID)
	}
	if r.desktop != nil {
		if err := r.desktop.Notify(sender.DisplayName, msg.Content); err != nil {
			r.log.Debug().Err(err).Msg("desktop notification failed")
		}
	}
	if r.sounder != nil {
		if err := r.sounder.Play(); err != nil {
			r.log.Debug().Err(err).Msg("alert sound failed")
		}
	}

	return OutcomeNotified
}
