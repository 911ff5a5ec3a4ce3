package history

import (
	"sort"

	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// Window is the locally held, ordered subset of a conversation's message
// history. Messages are kept ascending by (timestamp, id) and deduplicated
// by id: a live push racing the REST fetch for the same message collapses to
// a single entry regardless of arrival order. The window extends at the
// older end via cursor fetches and at the newer end via live pushes.
type Window struct {
	messages []*models.Message
	ids      map[uuid.UUID]struct{}
}

// NewWindow creates an empty message window
func NewWindow() *Window {
	return &Window{ids: make(map[uuid.UUID]struct{})}
}

// Len returns the number of messages held locally
func (w *Window) Len() int {
	return len(w.messages)
}

// Messages returns the held messages, oldest first. The slice is shared;
// callers must not mutate it.
func (w *Window) Messages() []*models.Message {
	return w.messages
}

// Oldest returns the oldest locally held message, or nil when empty. Its id
// is the pagination cursor.
func (w *Window) Oldest() *models.Message {
	if len(w.messages) == 0 {
		return nil
	}
	return w.messages[0]
}

// Newest returns the newest locally held message, or nil when empty
func (w *Window) Newest() *models.Message {
	if len(w.messages) == 0 {
		return nil
	}
	return w.messages[len(w.messages)-1]
}

// Contains reports whether a message id is already held
func (w *Window) Contains(id uuid.UUID) bool {
	_, ok := w.ids[id]
	return ok
}

// Get returns the held message with the given id, or nil
func (w *Window) Get(id uuid.UUID) *models.Message {
	if !w.Contains(id) {
		return nil
	}
	for _, m := range w.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Merge inserts a message at its sorted position. Returns false without
// modifying the window when the id is already present, making merge
// idempotent under redelivery and fetch/push races.
func (w *Window) Merge(m *models.Message) bool {
	if _, ok := w.ids[m.ID]; ok {
		return false
	}
	w.ids[m.ID] = struct{}{}

	// common case: live push newer than everything held
	if len(w.messages) == 0 || w.messages[len(w.messages)-1].Before(m) {
		w.messages = append(w.messages, m)
		return true
	}

	i := sort.Search(len(w.messages), func(i int) bool {
		return m.Before(w.messages[i])
	})
	w.messages = append(w.messages, nil)
	copy(w.messages[i+1:], w.messages[i:])
	w.messages[i] = m
	return true
}

// MergeAll merges a batch and returns how many messages were new
func (w *Window) MergeAll(batch []*models.Message) int {
	added := 0
	for _, m := range batch {
		if w.Merge(m) {
			added++
		}
	}
	return added
}
