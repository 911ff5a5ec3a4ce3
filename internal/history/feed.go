package history

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// DefaultPageSize is the number of messages fetched per page
const DefaultPageSize = 20

// Page is one page of message history from the REST layer
type Page struct {
	Messages   []*models.Message
	NextCursor string
}

// ErrMessageUnavailable reports that a by-id lookup found nothing. Reply
// resolution treats this as a degraded display case, not a failure.
var ErrMessageUnavailable = errors.New("history: message unavailable")

// Fetcher is the consumed REST contract for message history. An empty cursor
// means "most recent page".
type Fetcher interface {
	FetchMessages(ctx context.Context, chatID uuid.UUID, limit int, cursor string) (Page, error)
	FetchMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	SendMessage(ctx context.Context, chatID uuid.UUID, content string, mentions []uuid.UUID) (*models.Message, error)
}

// Feed maintains the message window for one conversation: initial load,
// backward pagination, and live-push merge. A guard installed by the owning
// Store discards pagination results that resolve after the user navigated
// away.
type Feed struct {
	chatID   uuid.UUID
	fetcher  Fetcher
	pageSize int
	guard    func(uuid.UUID) bool

	mu      sync.Mutex
	window  *Window
	cursor  string
	hasMore bool
	loaded  bool
}

// NewFeed creates a feed for one conversation. A zero pageSize uses the
// default; a nil guard means results are always applied.
func NewFeed(chatID uuid.UUID, fetcher Fetcher, pageSize int, guard func(uuid.UUID) bool) *Feed {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Feed{
		chatID:   chatID,
		fetcher:  fetcher,
		pageSize: pageSize,
		guard:    guard,
		window:   NewWindow(),
	}
}

// ChatID returns the conversation this feed belongs to
func (f *Feed) ChatID() uuid.UUID {
	return f.chatID
}

// Messages returns the held messages, oldest first
func (f *Feed) Messages() []*models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window.Messages()
}

// HasMore reports whether older history may remain on the server
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Loaded reports whether the initial page has been fetched
func (f *Feed) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// LoadInitial fetches the most recent page and establishes the window and
// its cursor. Calling it again is a no-op once the window is established.
func (f *Feed) LoadInitial(ctx context.Context) error {
	f.mu.Lock()
	if f.loaded {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	page, err := f.fetcher.FetchMessages(ctx, f.chatID, f.pageSize, "")
	if err != nil {
		return &FetchError{Op: "initial load", Err: err}
	}
	if f.stale() {
		return ErrStaleResponse
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.window.MergeAll(page.Messages)
	f.cursor = page.NextCursor
	f.hasMore = len(page.Messages) >= f.pageSize && page.NextCursor != ""
	f.loaded = true
	return nil
}

// LoadOlder fetches up to one page of messages strictly older than the
// cursor and prepends them. A short page marks the history exhausted;
// callers stop requesting further pages.
func (f *Feed) LoadOlder(ctx context.Context) error {
	f.mu.Lock()
	if !f.loaded || !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	cursor := f.cursor
	f.mu.Unlock()

	page, err := f.fetcher.FetchMessages(ctx, f.chatID, f.pageSize, cursor)
	if err != nil {
		return &FetchError{Op: "load older", Err: err}
	}
	if f.stale() {
		return ErrStaleResponse
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.window.MergeAll(page.Messages)
	f.cursor = page.NextCursor
	f.hasMore = len(page.Messages) >= f.pageSize && page.NextCursor != ""
	return nil
}

// Merge applies a live-pushed message. Returns false when the id was already
// present, which happens when a push races the REST fetch of the same
// message.
func (f *Feed) Merge(m *models.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ChatID != f.chatID {
		return false
	}
	return f.window.Merge(m)
}

// Send posts a message through the REST contract and merges the
// server-assigned result locally. The later self-echo push deduplicates by
// id.
func (f *Feed) Send(ctx context.Context, content string, mentions []uuid.UUID) (*models.Message, error) {
	msg, err := f.fetcher.SendMessage(ctx, f.chatID, content, mentions)
	if err != nil {
		return nil, &FetchError{Op: "send", Err: err}
	}
	f.Merge(msg)
	return msg, nil
}

// ResolveReply looks up the target of a reply reference: the local window
// first, then a direct by-id fetch. An unavailable target returns (nil, nil);
// the UI degrades to "original message unavailable".
func (f *Feed) ResolveReply(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	local := f.window.Get(id)
	f.mu.Unlock()
	if local != nil {
		return local, nil
	}

	msg, err := f.fetcher.FetchMessageByID(ctx, id)
	if errors.Is(err, ErrMessageUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, &FetchError{Op: "reply lookup", Err: err}
	}
	return msg, nil
}

func (f *Feed) stale() bool {
	return f.guard != nil && !f.guard(f.chatID)
}

// TotalPages returns how many pages a conversation of the given size spans.
// The formula is ceil(total/pageSize), applied uniformly at every call site.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
