package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultToastTTL is how long a toast stays visible unless dismissed
const DefaultToastTTL = 12 * time.Second

// Toast is a transient notification surfaced outside the conversation view
type Toast struct {
	ID         uuid.UUID
	ChatID     uuid.UUID
	SenderName string
	Body       string
	IsMention  bool // presentation priority only
	CreatedAt  time.Time
}

// ToastQueue is the append-only ordered collection of visible toasts.
// Entries expire after the TTL or go away on explicit dismissal; an expired
// entry never reappears.
type ToastQueue struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries []Toast
}

// ToastOption configures a toast queue
type ToastOption func(*ToastQueue)

// WithClock replaces the queue's time source. Expiry is measured against it.
func WithClock(now func() time.Time) ToastOption {
	return func(q *ToastQueue) { q.now = now }
}

// NewToastQueue creates a toast queue. A zero ttl uses the default.
func NewToastQueue(ttl time.Duration, opts ...ToastOption) *ToastQueue {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	q := &ToastQueue{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends a toast and returns its id
func (q *ToastQueue) Push(t Toast) uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.now()
	}
	q.entries = append(q.entries, t)
	return t.ID
}

// Active sweeps expired entries and returns the visible toasts in arrival
// order
func (q *ToastQueue) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-q.ttl)
	kept := q.entries[:0]
	for _, t := range q.entries {
		if t.CreatedAt.After(cutoff) {
			kept = append(kept, t)
		}
	}
	q.entries = kept

	out := make([]Toast, len(q.entries))
	copy(out, q.entries)
	return out
}

// Dismiss removes a toast immediately. Returns false if the id is not
// present.
func (q *ToastQueue) Dismiss(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.entries {
		if t.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Click dismisses a toast and returns the conversation to navigate to. This
// is the only cross-component effect the queue produces.
func (q *ToastQueue) Click(id uuid.UUID) (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.entries {
		if t.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return t.ChatID, true
		}
	}
	return uuid.Nil, false
}

// NextExpiry returns when the oldest visible toast expires, for scheduling
// the next sweep. Returns false when the queue is empty.
func (q *ToastQueue) NextExpiry() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].CreatedAt.Add(q.ttl), true
}
