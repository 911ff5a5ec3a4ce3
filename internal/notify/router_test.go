package notify_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/notify"
)

type recordingSounder struct {
	plays int
	err   error
}

func (s *recordingSounder) Play() error {
	s.plays++
	return s.err
}

type recordingDesktop struct {
	titles []string
	err    error
}

func (d *recordingDesktop) Notify(title, _ string) error {
	d.titles = append(d.titles, title)
	return d.err
}

type routerFixture struct {
	router  *notify.Router
	toasts  *notify.ToastQueue
	me      uuid.UUID
	active  uuid.UUID
	viewing bool
	sound   *recordingSounder
	desktop *recordingDesktop
	unread  map[uuid.UUID]int
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		me:      uuid.New(),
		toasts:  notify.NewToastQueue(0),
		sound:   &recordingSounder{},
		desktop: &recordingDesktop{},
		unread:  make(map[uuid.UUID]int),
	}
	f.router = notify.NewRouter(f.me, f.toasts,
		func() (uuid.UUID, bool) { return f.active, f.viewing },
		zerolog.Nop(),
		notify.WithSounder(f.sound),
		notify.WithDesktopNotifier(f.desktop),
		notify.WithUnreadCounter(func(chatID uuid.UUID) { f.unread[chatID]++ }),
	)
	return f
}

func incoming(chatID, senderID uuid.UUID, mentions ...uuid.UUID) (*models.Message, models.SenderSummary) {
	msg := models.NewMessage(chatID, senderID, "hello there", mentions)
	return msg, models.SenderSummary{ID: senderID, DisplayName: "Alice"}
}

func TestRouteSelfEchoHasNoSideEffects(t *testing.T) {
	f := newRouterFixture(t)
	msg, sender := incoming(uuid.New(), f.me)

	require.Equal(t, notify.OutcomeIgnored, f.router.Route(msg, sender))
	require.Empty(t, f.toasts.Active())
	require.Zero(t, f.sound.plays)
	require.Empty(t, f.desktop.titles)
	require.Empty(t, f.unread)
}

func TestRouteSuppressesActiveConversation(t *testing.T) {
	f := newRouterFixture(t)
	chatID := uuid.New()
	f.active, f.viewing = chatID, true
	msg, sender := incoming(chatID, uuid.New())

	require.Equal(t, notify.OutcomeSuppressed, f.router.Route(msg, sender))
	require.Empty(t, f.toasts.Active())
	require.Zero(t, f.sound.plays)
	require.Empty(t, f.unread)
}

func TestRouteNotifiesBackgroundConversation(t *testing.T) {
	f := newRouterFixture(t)
	f.active, f.viewing = uuid.New(), true
	chatID := uuid.New()
	msg, sender := incoming(chatID, uuid.New())

	require.Equal(t, notify.OutcomeNotified, f.router.Route(msg, sender))

	active := f.toasts.Active()
	require.Len(t, active, 1)
	require.Equal(t, chatID, active[0].ChatID)
	require.Equal(t, "Alice", active[0].SenderName)
	require.False(t, active[0].IsMention)

	require.Equal(t, 1, f.sound.plays)
	require.Equal(t, []string{"Alice"}, f.desktop.titles)
	require.Equal(t, 1, f.unread[chatID])
}

func TestRouteMarksMentionToasts(t *testing.T) {
	f := newRouterFixture(t)
	msg, sender := incoming(uuid.New(), uuid.New(), f.me)

	require.Equal(t, notify.OutcomeNotified, f.router.Route(msg, sender))
	active := f.toasts.Active()
	require.Len(t, active, 1)
	require.True(t, active[0].IsMention)
}

func TestRouteDuplicateEventIsNoOp(t *testing.T) {
	f := newRouterFixture(t)
	msg, sender := incoming(uuid.New(), uuid.New())

	require.Equal(t, notify.OutcomeNotified, f.router.Route(msg, sender))
	require.Equal(t, notify.OutcomeDuplicate, f.router.Route(msg, sender))

	require.Len(t, f.toasts.Active(), 1)
	require.Equal(t, 1, f.sound.plays)
	require.Equal(t, 1, f.unread[msg.ChatID])
}

func TestRouteSwallowsSideEffectFailures(t *testing.T) {
	f := newRouterFixture(t)
	f.sound.err = errors.New("no audio device")
	f.desktop.err = errors.New("notifications denied")
	msg, sender := incoming(uuid.New(), uuid.New())

	require.Equal(t, notify.OutcomeNotified, f.router.Route(msg, sender))
	require.Len(t, f.toasts.Active(), 1, "toast still lands when sound and desktop fail")
}
