package notify_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/notify"
)

func TestToastExpiresAfterTTL(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	q := notify.NewToastQueue(notify.DefaultToastTTL,
		notify.WithClock(func() time.Time { return clock }))

	id := q.Push(notify.Toast{ChatID: uuid.New(), SenderName: "Alice", Body: "hi"})
	require.Len(t, q.Active(), 1)

	clock = base.Add(11 * time.Second)
	require.Len(t, q.Active(), 1, "toast is still visible just under the ttl")

	clock = base.Add(12*time.Second + time.Millisecond)
	require.Empty(t, q.Active())

	// an expired toast never reappears
	clock = base
	require.Empty(t, q.Active())
	require.False(t, q.Dismiss(id))
}

func TestToastDismiss(t *testing.T) {
	q := notify.NewToastQueue(0)
	id := q.Push(notify.Toast{ChatID: uuid.New(), Body: "one"})
	q.Push(notify.Toast{ChatID: uuid.New(), Body: "two"})

	require.True(t, q.Dismiss(id))
	require.False(t, q.Dismiss(id), "second dismiss of the same id is a no-op")

	active := q.Active()
	require.Len(t, active, 1)
	require.Equal(t, "two", active[0].Body)
}

func TestToastClickNavigatesAndDismisses(t *testing.T) {
	q := notify.NewToastQueue(0)
	chatID := uuid.New()
	id := q.Push(notify.Toast{ChatID: chatID, Body: "ping"})

	got, ok := q.Click(id)
	require.True(t, ok)
	require.Equal(t, chatID, got)
	require.Empty(t, q.Active())

	_, ok = q.Click(id)
	require.False(t, ok)
}

func TestToastArrivalOrderPreserved(t *testing.T) {
	q := notify.NewToastQueue(0)
	q.Push(notify.Toast{Body: "first"})
	q.Push(notify.Toast{Body: "second"})
	q.Push(notify.Toast{Body: "third"})

	active := q.Active()
	require.Len(t, active, 3)
	require.Equal(t, "first", active[0].Body)
	require.Equal(t, "third", active[2].Body)
}

func TestToastNextExpiry(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	q := notify.NewToastQueue(5*time.Second,
		notify.WithClock(func() time.Time { return clock }))

	_, ok := q.NextExpiry()
	require.False(t, ok)

	q.Push(notify.Toast{Body: "x"})
	at, ok := q.NextExpiry()
	require.True(t, ok)
	require.Equal(t, base.Add(5*time.Second), at)
}
