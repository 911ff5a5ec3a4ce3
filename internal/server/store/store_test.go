package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/server/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedConversation(t *testing.T, s *store.Store) (*models.User, *models.Conversation) {
	t.Helper()
	u := models.NewUser("alice", "alice@example.com")
	u.PasswordHash = "x"
	require.NoError(t, s.CreateUser(u))

	c := &models.Conversation{
		ID:             uuid.New(),
		Kind:           models.ConversationGroup,
		Name:           "#general",
		ParticipantIDs: []uuid.UUID{u.ID},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateConversation(c))
	return u, c
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)

	u := models.NewUser("alice", "alice@example.com")
	u.DisplayName = "Alice"
	u.PasswordHash = "hash"
	require.NoError(t, s.CreateUser(u))

	got, err := s.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "Alice", got.DisplayName)

	_, err = s.GetUserByEmail("nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionTokenResolution(t *testing.T) {
	s := newTestStore(t)
	u, _ := seedConversation(t, s)

	require.NoError(t, s.CreateSession("tokenhash", u.ID))

	got, err := s.GetSessionUser("tokenhash")
	require.NoError(t, err)
	require.Equal(t, u.ID, got)

	_, err = s.GetSessionUser("wrong")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	u, c := seedConversation(t, s)

	got, err := s.GetConversation(c.ID)
	require.NoError(t, err)
	require.Equal(t, "#general", got.Name)
	require.True(t, got.IsGroup())
	require.Equal(t, []uuid.UUID{u.ID}, got.ParticipantIDs)

	list, err := s.ListConversationsForUser(u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListMessagesKeysetPagination(t *testing.T) {
	s := newTestStore(t)
	u, c := seedConversation(t, s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var all []*models.Message
	for i := 0; i < 45; i++ {
		m := models.NewMessage(c.ID, u.ID, "m", nil)
		m.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateMessage(m))
		all = append(all, m)
	}

	// newest page, ascending order
	page, err := s.ListMessages(c.ID, 20, nil)
	require.NoError(t, err)
	require.Len(t, page, 20)
	require.Equal(t, all[25].ID, page[0].ID)
	require.Equal(t, all[44].ID, page[19].ID)

	// older page anchored at the oldest message of the first page
	cursor := page[0].ID
	page, err = s.ListMessages(c.ID, 20, &cursor)
	require.NoError(t, err)
	require.Len(t, page, 20)
	require.Equal(t, all[5].ID, page[0].ID)
	require.Equal(t, all[24].ID, page[19].ID)

	// final short page
	cursor = page[0].ID
	page, err = s.ListMessages(c.ID, 20, &cursor)
	require.NoError(t, err)
	require.Len(t, page, 5)
	require.Equal(t, all[0].ID, page[0].ID)
}

func TestListMessagesTiebreaksEqualTimestamps(t *testing.T) {
	s := newTestStore(t)
	u, c := seedConversation(t, s)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		m := models.NewMessage(c.ID, u.ID, "m", nil)
		m.Timestamp = ts
		require.NoError(t, s.CreateMessage(m))
	}

	page, err := s.ListMessages(c.ID, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)

	cursor := page[0].ID
	older, err := s.ListMessages(c.ID, 3, &cursor)
	require.NoError(t, err)
	require.Len(t, older, 3)

	// no message appears on both pages
	seen := map[uuid.UUID]bool{}
	for _, m := range append(older, page...) {
		require.False(t, seen[m.ID])
		seen[m.ID] = true
	}
}

func TestMessagePersistsMentionsAndReply(t *testing.T) {
	s := newTestStore(t)
	u, c := seedConversation(t, s)

	parent := models.NewMessage(c.ID, u.ID, "parent", nil)
	require.NoError(t, s.CreateMessage(parent))

	mentioned := uuid.New()
	reply := models.NewMessage(c.ID, u.ID, "reply", []uuid.UUID{mentioned})
	reply.ReplyTo = &parent.ID
	require.NoError(t, s.CreateMessage(reply))

	got, err := s.GetMessage(reply.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{mentioned}, got.Mentions)
	require.NotNil(t, got.ReplyTo)
	require.Equal(t, parent.ID, *got.ReplyTo)

	_, err = s.GetMessage(uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListDirectory(t *testing.T) {
	s := newTestStore(t)

	a := models.NewUser("alice", "alice@example.com")
	a.DisplayName = "Alice"
	a.PasswordHash = "x"
	b := models.NewUser("bob", "bob@example.com")
	b.PasswordHash = "x"
	require.NoError(t, s.CreateUser(a))
	require.NoError(t, s.CreateUser(b))

	dir, err := s.ListDirectory()
	require.NoError(t, err)
	require.Len(t, dir, 2)
	require.Equal(t, "Alice", dir[0].DisplayName)
	require.Equal(t, "bob", dir[1].DisplayName, "username backfills a missing display name")
}
