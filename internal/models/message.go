package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message. Messages are immutable once
// created; windows only append, prepend, or evict them.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    uuid.UUID   `json:"chat_id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Content   string      `json:"content"`
	Mentions  []uuid.UUID `json:"mentions,omitempty"` // user IDs mentioned, parsed at send time
	Timestamp time.Time   `json:"timestamp"`
	ReplyTo   *uuid.UUID  `json:"reply_to,omitempty"` // weak reference, lookup-only
}

// NewMessage creates a new message with a server-assigned ID
func NewMessage(chatID, senderID uuid.UUID, content string, mentions []uuid.UUID) *Message {
	return &Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Mentions:  mentions,
		Timestamp: time.Now().UTC(),
	}
}

// IsReply returns true if this message references another message
func (m *Message) IsReply() bool {
	return m.ReplyTo != nil
}

// MentionsUser returns true if the given user appears in the mention list
func (m *Message) MentionsUser(userID uuid.UUID) bool {
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// Before reports whether m sorts strictly before other. Messages order by
// timestamp ascending with ID as the tiebreak, so ordering stays
// deterministic under clock skew.
func (m *Message) Before(other *Message) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return bytes.Compare(m.ID[:], other.ID[:]) < 0
}
