package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/history"
	"github.com/teamline-chat/teamline/internal/models"
)

// fakeFetcher serves a fixed backlog of messages, newest pages first, the
// way the REST layer does
type fakeFetcher struct {
	backlog  []*models.Message // ascending
	byID     map[uuid.UUID]*models.Message
	fetchErr error
	calls    int
}

func newFakeFetcher(chatID uuid.UUID, total int) *fakeFetcher {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeFetcher{byID: make(map[uuid.UUID]*models.Message)}
	for i := 0; i < total; i++ {
		m := msgAt(chatID, base.Add(time.Duration(i)*time.Minute))
		f.backlog = append(f.backlog, m)
		f.byID[m.ID] = m
	}
	return f
}

func (f *fakeFetcher) FetchMessages(ctx context.Context, chatID uuid.UUID, limit int, cursor string) (history.Page, error) {
	f.calls++
	if f.fetchErr != nil {
		return history.Page{}, f.fetchErr
	}

	end := len(f.backlog)
	if cursor != "" {
		end = 0
		for i, m := range f.backlog {
			if m.ID.String() == cursor {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := f.backlog[start:end]
	next := ""
	if len(page) > 0 {
		next = page[0].ID.String()
	}
	out := make([]*models.Message, len(page))
	copy(out, page)
	return history.Page{Messages: out, NextCursor: next}, nil
}

func (f *fakeFetcher) FetchMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, history.ErrMessageUnavailable
}

func (f *fakeFetcher) SendMessage(ctx context.Context, chatID uuid.UUID, content string, mentions []uuid.UUID) (*models.Message, error) {
	m := models.NewMessage(chatID, uuid.New(), content, mentions)
	f.backlog = append(f.backlog, m)
	f.byID[m.ID] = m
	return m, nil
}

func TestFeedInitialLoadEstablishesWindow(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 50)
	feed := history.NewFeed(chatID, fetcher, 20, nil)

	require.NoError(t, feed.LoadInitial(context.Background()))
	require.Len(t, feed.Messages(), 20)
	require.True(t, feed.HasMore())

	// most recent 20, ascending
	got := feed.Messages()
	require.Equal(t, fetcher.backlog[30].ID, got[0].ID)
	require.Equal(t, fetcher.backlog[49].ID, got[19].ID)

	// repeated initial load is a no-op
	calls := fetcher.calls
	require.NoError(t, feed.LoadInitial(context.Background()))
	require.Equal(t, calls, fetcher.calls)
}

func TestFeedBackwardPaginationToExhaustion(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 45)
	feed := history.NewFeed(chatID, fetcher, 20, nil)

	require.NoError(t, feed.LoadInitial(context.Background()))
	require.NoError(t, feed.LoadOlder(context.Background()))
	require.Len(t, feed.Messages(), 40)
	require.True(t, feed.HasMore())

	// last page is short: 5 messages, which marks the history exhausted
	require.NoError(t, feed.LoadOlder(context.Background()))
	require.Len(t, feed.Messages(), 45)
	require.False(t, feed.HasMore())

	// once exhausted, further calls do not hit the fetcher
	calls := fetcher.calls
	require.NoError(t, feed.LoadOlder(context.Background()))
	require.Equal(t, calls, fetcher.calls)

	// no duplicates, ascending throughout
	got := feed.Messages()
	seen := make(map[uuid.UUID]struct{})
	for i, m := range got {
		_, dup := seen[m.ID]
		require.False(t, dup, "duplicate id at %d", i)
		seen[m.ID] = struct{}{}
		if i > 0 {
			require.True(t, got[i-1].Before(m))
		}
	}
}

func TestFeedLivePushRaceIsFetchOrderIndependent(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 10)
	feed := history.NewFeed(chatID, fetcher, 20, nil)

	// the push for the newest message lands before the fetch completes
	newest := fetcher.backlog[len(fetcher.backlog)-1]
	require.True(t, feed.Merge(newest))

	require.NoError(t, feed.LoadInitial(context.Background()))
	require.Len(t, feed.Messages(), 10, "fetch must deduplicate the pushed message")

	// and a push arriving after the fetch is equally a no-op
	require.False(t, feed.Merge(newest))
}

func TestFeedRejectsMessagesForOtherConversations(t *testing.T) {
	chatID := uuid.New()
	feed := history.NewFeed(chatID, newFakeFetcher(chatID, 0), 20, nil)
	require.False(t, feed.Merge(msgAt(uuid.New(), time.Now())))
}

func TestFeedStaleResponseIsDiscarded(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 30)
	active := true
	feed := history.NewFeed(chatID, fetcher, 20, func(uuid.UUID) bool { return active })

	require.NoError(t, feed.LoadInitial(context.Background()))

	// user navigates away while the next page is in flight
	active = false
	err := feed.LoadOlder(context.Background())
	require.ErrorIs(t, err, history.ErrStaleResponse)
	require.Len(t, feed.Messages(), 20, "stale page must not be applied")
}

func TestFeedFetchErrorPreservesWindow(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 30)
	feed := history.NewFeed(chatID, fetcher, 20, nil)
	require.NoError(t, feed.LoadInitial(context.Background()))

	fetcher.fetchErr = errors.New("boom")
	err := feed.LoadOlder(context.Background())

	var fetchErr *history.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Len(t, feed.Messages(), 20, "already-merged messages survive the failure")
	require.True(t, feed.HasMore(), "a failed page can be retried")
}

func TestFeedResolveReply(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 30)
	feed := history.NewFeed(chatID, fetcher, 20, nil)
	require.NoError(t, feed.LoadInitial(context.Background()))

	// in-window target resolves locally
	local := feed.Messages()[0]
	got, err := feed.ResolveReply(context.Background(), local.ID)
	require.NoError(t, err)
	require.Equal(t, local.ID, got.ID)

	// out-of-window target resolves through the by-id fetch
	older := fetcher.backlog[0]
	got, err = feed.ResolveReply(context.Background(), older.ID)
	require.NoError(t, err)
	require.Equal(t, older.ID, got.ID)

	// unavailable target degrades without error
	got, err = feed.ResolveReply(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreStaleGuardTracksActiveConversation(t *testing.T) {
	chatA := uuid.New()
	chatB := uuid.New()
	store := history.NewStore(newFakeFetcher(chatA, 0), 20)

	store.Open(chatA)
	require.True(t, store.IsActive(chatA))

	store.Open(chatB)
	require.False(t, store.IsActive(chatA))
	require.True(t, store.IsActive(chatB))

	store.Close()
	require.False(t, store.IsActive(chatB))
	_, ok := store.Active()
	require.False(t, ok)
}

func TestStoreMergePush(t *testing.T) {
	chatID := uuid.New()
	fetcher := newFakeFetcher(chatID, 0)
	store := history.NewStore(fetcher, 20)

	// no feed opened yet: the push has nowhere to land
	m := msgAt(chatID, time.Now())
	require.False(t, store.MergePush(m))

	store.Open(chatID)
	require.True(t, store.MergePush(m))
	require.False(t, store.MergePush(m), "redelivery is a no-op")
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, pageSize, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{10, 0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, history.TotalPages(tc.total, tc.pageSize),
			"TotalPages(%d, %d)", tc.total, tc.pageSize)
	}
}
