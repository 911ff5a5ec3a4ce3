package mention

import (
	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// Key is a keyboard action the candidate list responds to while open
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyEnter
	KeyTab
	KeyEscape
)

// Query is the ephemeral per-input-field mention state. It exists while an
// @-trigger is active and is discarded on commit, escape, or loss of the
// trigger condition. Mentions are a group-chat feature: a query for a direct
// conversation never opens.
type Query struct {
	currentUser uuid.UUID
	isGroup     bool
	directory   []models.MentionCandidate

	open       bool
	dismissed  bool // escape pressed; stays closed until the trigger changes
	trigger    Trigger
	cursor     int
	candidates []models.MentionCandidate
	selected   int
}

// NewQuery creates mention state for one input field
func NewQuery(currentUser uuid.UUID, isGroup bool, directory []models.MentionCandidate) *Query {
	return &Query{
		currentUser: currentUser,
		isGroup:     isGroup,
		directory:   directory,
	}
}

// SetDirectory replaces the candidate directory
func (q *Query) SetDirectory(directory []models.MentionCandidate) {
	q.directory = directory
}

// Update recomputes the mention state from the current text and cursor
// position. Changing the search text resets the selection to the top; an
// empty candidate list closes the popup.
func (q *Query) Update(text string, cursor int) {
	if !q.isGroup {
		q.close()
		return
	}

	t, ok := Detect(text, cursor)
	if !ok {
		q.close()
		q.dismissed = false
		return
	}

	if q.dismissed {
		// escape keeps the popup closed while the same trigger persists
		if t.Offset == q.trigger.Offset {
			q.trigger = t
			return
		}
		q.dismissed = false
	}

	searchChanged := !q.open || t.Search != q.trigger.Search
	q.trigger = t
	q.cursor = cursor
	q.candidates = Filter(q.directory, t.Search, q.currentUser)

	if len(q.candidates) == 0 {
		q.open = false
		return
	}
	q.open = true
	if searchChanged || q.selected >= len(q.candidates) {
		q.selected = 0
	}
}

// IsOpen reports whether the candidate list is visible. Keyboard events are
// intercepted only while open and non-empty.
func (q *Query) IsOpen() bool {
	return q.open && len(q.candidates) > 0
}

// Candidates returns the filtered candidate list
func (q *Query) Candidates() []models.MentionCandidate {
	return q.candidates
}

// SelectedIndex returns the highlighted candidate index
func (q *Query) SelectedIndex() int {
	return q.selected
}

// Selected returns the highlighted candidate
func (q *Query) Selected() (models.MentionCandidate, bool) {
	if !q.IsOpen() {
		return models.MentionCandidate{}, false
	}
	return q.candidates[q.selected], true
}

// HandleKey processes a keyboard action. It returns the committed candidate
// for Enter/Tab, and handled=true whenever the key must not fall through to
// the text area. Keys arriving while the list is closed are never handled.
func (q *Query) HandleKey(k Key) (commit *models.MentionCandidate, handled bool) {
	if !q.IsOpen() {
		return nil, false
	}

	switch k {
	case KeyDown:
		if q.selected < len(q.candidates)-1 {
			q.selected++
		}
		return nil, true

	case KeyUp:
		if q.selected > 0 {
			q.selected--
		}
		return nil, true

	case KeyEnter, KeyTab:
		c := q.candidates[q.selected]
		q.close()
		return &c, true

	case KeyEscape:
		q.close()
		q.dismissed = true
		return nil, true
	}
	return nil, false
}

// Commit splices the candidate into the text and discards the query state.
// Returns the new text and cursor position.
func (q *Query) Commit(text string, c models.MentionCandidate) (string, int) {
	t, cursor := q.trigger, q.cursor
	q.close()
	return Commit(text, t, cursor, c.DisplayName)
}

func (q *Query) close() {
	q.open = false
	q.candidates = nil
	q.selected = 0
}
