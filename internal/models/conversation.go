package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationKind distinguishes one-to-one chats from group chats
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation represents a direct or group chat
type Conversation struct {
	ID             uuid.UUID        `json:"id"`
	Kind           ConversationKind `json:"kind"`
	Name           string           `json:"name,omitempty"` // group name; empty for direct chats
	ParticipantIDs []uuid.UUID      `json:"participant_ids"`
	UnreadCount    int              `json:"unread_count"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewConversation creates a new conversation
func NewConversation(kind ConversationKind, name string, participants []uuid.UUID) *Conversation {
	return &Conversation{
		ID:             uuid.New(),
		Kind:           kind,
		Name:           name,
		ParticipantIDs: participants,
		CreatedAt:      time.Now().UTC(),
	}
}

// IsGroup returns true for group conversations
func (c *Conversation) IsGroup() bool {
	return c.Kind == ConversationGroup
}

// HasParticipant returns true if the user is a member of the conversation
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
