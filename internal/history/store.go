package history

import (
	"sync"

	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// Store owns the per-conversation feeds and tracks which conversation the
// user is currently viewing. Feeds created here carry a guard bound to the
// active conversation, so a pagination fetch that resolves after navigation
// is discarded as stale.
type Store struct {
	fetcher  Fetcher
	pageSize int

	mu        sync.Mutex
	feeds     map[uuid.UUID]*Feed
	active    uuid.UUID
	hasActive bool
}

// NewStore creates a feed store. A zero pageSize uses the default.
func NewStore(fetcher Fetcher, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		fetcher:  fetcher,
		pageSize: pageSize,
		feeds:    make(map[uuid.UUID]*Feed),
	}
}

// Open marks a conversation as the active one and returns its feed,
// creating it on first open
func (s *Store) Open(chatID uuid.UUID) *Feed {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = chatID
	s.hasActive = true

	f, ok := s.feeds[chatID]
	if !ok {
		f = NewFeed(chatID, s.fetcher, s.pageSize, s.IsActive)
		s.feeds[chatID] = f
	}
	return f
}

// Close clears the active conversation; in-flight fetches for it become
// stale
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasActive = false
}

// Active returns the currently viewed conversation, if any
func (s *Store) Active() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.hasActive
}

// IsActive reports whether the given conversation is the one being viewed
func (s *Store) IsActive(chatID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasActive && s.active == chatID
}

// Feed returns the feed for a conversation if one has been opened, else nil
func (s *Store) Feed(chatID uuid.UUID) *Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[chatID]
}

// MergePush applies a live-pushed message to its conversation's feed, if
// one has been opened locally. Returns true when the message was new to the
// window.
func (s *Store) MergePush(m *models.Message) bool {
	s.mu.Lock()
	f := s.feeds[m.ChatID]
	s.mu.Unlock()

	if f == nil {
		return false
	}
	return f.Merge(m)
}
