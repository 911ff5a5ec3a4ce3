package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/protocol"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameSize      = 512 * 1024
	sendBufferSize    = 256
	heartbeatInterval = 45000 // milliseconds, advertised in HELLO
)

// Client represents one connected WebSocket peer on the dev server
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	api  *API
	send chan *protocol.Envelope
	log  zerolog.Logger

	UserID        uuid.UUID
	User          *models.User
	authenticated bool
}

// NewClient creates a client for an upgraded connection
func NewClient(conn *websocket.Conn, hub *Hub, api *API, log zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		api:  api,
		send: make(chan *protocol.Envelope, sendBufferSize),
		log:  log.With().Str("component", "ws-client").Logger(),
	}
}

// ReadPump reads frames from the peer until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		if c.authenticated {
			c.hub.unregister <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError(protocol.ErrorCodeInvalidPayload, "invalid frame format")
			continue
		}
		c.handleEnvelope(&env)
	}
}

// WritePump writes queued frames and pings to the peer
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				c.log.Warn().Err(err).Msg("failed to marshal frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendHello sends the initial HELLO frame with the heartbeat interval
func (c *Client) SendHello() {
	env, err := protocol.NewEnvelope(protocol.OpHello, &protocol.HelloPayload{HeartbeatInterval: heartbeatInterval})
	if err != nil {
		return
	}
	c.queue(env)
}

func (c *Client) handleEnvelope(env *protocol.Envelope) {
	switch env.Op {
	case protocol.OpIdentify:
		c.handleIdentify(env)

	case protocol.OpHeartbeat:
		ack, err := protocol.NewEnvelope(protocol.OpHeartbeatAck, nil)
		if err == nil {
			c.queue(ack)
		}

	case protocol.OpSendMessage:
		if !c.authenticated {
			c.sendError(protocol.ErrorCodeUnauthorized, "not authenticated")
			return
		}
		var payload protocol.SendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			c.sendError(protocol.ErrorCodeInvalidPayload, "invalid message payload")
			return
		}
		if _, err := c.api.CreateMessage(c.User, payload.ChatID, payload.Content, payload.Mentions, payload.ReplyTo, payload.Nonce); err != nil {
			c.sendError(protocol.ErrorCodeInvalidPayload, err.Error())
		}
	}
}

func (c *Client) handleIdentify(env *protocol.Envelope) {
	var payload protocol.IdentifyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		c.sendError(protocol.ErrorCodeInvalidPayload, "invalid identify payload")
		return
	}

	user, err := c.api.Authenticate(payload.Token)
	if err != nil {
		env, _ := protocol.NewEnvelope(protocol.OpInvalidSession, nil)
		if env != nil {
			c.queue(env)
		}
		return
	}

	c.User = user
	c.UserID = user.ID
	c.authenticated = true
	c.hub.register <- c

	conversations, err := c.api.store.ListConversationsForUser(user.ID)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load conversations for ready")
	}
	ready, err := protocol.NewEnvelope(protocol.OpReady, &protocol.ReadyPayload{
		SessionID:     uuid.New().String(),
		User:          user,
		Conversations: conversations,
	})
	if err == nil {
		c.queue(ready)
	}
}

func (c *Client) sendError(code int, msg string) {
	env, err := protocol.NewEnvelope(protocol.OpDispatch, &protocol.ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	c.queue(env)
}

func (c *Client) queue(env *protocol.Envelope) {
	select {
	case c.send <- env:
	default:
	}
}
