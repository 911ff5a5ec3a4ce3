package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/protocol"
)

// Hub maintains the set of connected clients and pushes message:new
// dispatches to conversation participants. The sender's own client is
// included on purpose: the client core treats the self-echo as its signal
// that the message is live.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	seq   int64
	seqMu sync.Mutex
}

// NewHub creates a new hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run processes register/unregister requests until the channel closes
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			// one live transport per user: a new connection replaces the old
			if prev, ok := h.clients[c.UserID]; ok {
				close(prev.send)
			}
			h.clients[c.UserID] = c
			h.mu.Unlock()
			h.log.Info().Stringer("user_id", c.UserID).Msg("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.UserID]; ok && cur == c {
				delete(h.clients, c.UserID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info().Stringer("user_id", c.UserID).Msg("client disconnected")
		}
	}
}

// nextSeq returns the next dispatch sequence number
func (h *Hub) nextSeq() int64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	h.seq++
	return h.seq
}

// PushMessage dispatches a message:new event to every participant of the
// conversation with a live connection
func (h *Hub) PushMessage(conv *models.Conversation, msg *models.Message, sender models.SenderSummary, nonce string) {
	payload := &protocol.MessageNewPayload{Message: msg, Sender: sender, Nonce: nonce}
	env, err := protocol.NewDispatch(protocol.EventMessageNew, h.nextSeq(), payload)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build dispatch")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range conv.ParticipantIDs {
		c, ok := h.clients[userID]
		if !ok {
			continue
		}
		select {
		case c.send <- env:
		default:
			h.log.Warn().Stringer("user_id", userID).Msg("send buffer full, dropping dispatch")
		}
	}
}
