package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/protocol"
)

// Status represents the lifecycle state of a session's transport
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

// String returns a human-readable representation of the status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ErrNotConnected is returned when a send is attempted without a live
// transport
var ErrNotConnected = errors.New("session: not connected")

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 54 * time.Second
	maxFrameSize     = 512 * 1024 // 512KB
	sendBufferSize   = 256
	defaultHeartbeat = 45 * time.Second
)

// Session owns the single live transport for one authenticated user. It
// receives pushed frames, routes dispatches through its event table, and
// recovers from transport failures with backoff. Construct through
// Manager.Connect, which enforces the one-session-per-user invariant.
type Session struct {
	userID uuid.UUID
	addr   string
	token  string

	dispatch *dispatcher
	backoff  *Backoff
	log      zerolog.Logger

	conn      *websocket.Conn
	send      chan *protocol.Envelope
	done      chan struct{}
	status    Status
	sessionID string
	lastSeq   int64
	retries   int
	closed    bool // user-requested teardown; disables reconnect

	heartbeat *time.Ticker

	mu sync.RWMutex
}

func newSession(userID uuid.UUID, addr, token string, log zerolog.Logger) *Session {
	return &Session{
		userID:   userID,
		addr:     addr,
		token:    token,
		dispatch: newDispatcher(),
		backoff:  DefaultBackoff(),
		log:      log.With().Str("component", "session").Stringer("user_id", userID).Logger(),
		status:   StatusDisconnected,
	}
}

// UserID returns the authenticated user this session belongs to
func (s *Session) UserID() uuid.UUID {
	return s.userID
}

// Status returns the current transport status
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// On registers the handler for a named event channel. Registering a channel
// that already has a handler replaces it; events are never delivered twice.
// While the transport is down the registration is buffered and applied on
// reconnect.
func (s *Session) On(event protocol.EventType, h Handler) {
	s.dispatch.on(event, h)
}

// Off removes the handler for a named event channel
func (s *Session) Off(event protocol.EventType) {
	s.dispatch.off(event)
}

// connect dials the server and starts the pumps. Callers hold no lock.
func (s *Session) connect() error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	u, err := url.Parse(s.addr)
	if err != nil {
		s.setStatus(StatusDisconnected)
		return fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		s.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.send = make(chan *protocol.Envelope, sendBufferSize)
	s.done = make(chan struct{})
	s.status = StatusConnected
	s.mu.Unlock()

	// come out of buffered mode before any frames arrive
	s.dispatch.setBuffered(false)

	go s.readPump()
	go s.writePump()

	return s.identify()
}

// Disconnect releases the transport and clears all channel subscriptions.
// The session does not reconnect after an explicit disconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	wasConnected := s.status == StatusConnected
	s.status = StatusDisconnected
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}

	if wasConnected {
		s.dispatch.dispatch(protocol.EventDisconnect, &protocol.Envelope{Type: protocol.EventDisconnect})
	}
	s.dispatch.clear()
}

// Send queues a frame for delivery
func (s *Session) Send(env *protocol.Envelope) error {
	s.mu.RLock()
	connected := s.status == StatusConnected
	send := s.send
	s.mu.RUnlock()

	if !connected || send == nil {
		return ErrNotConnected
	}
	select {
	case send <- env:
		return nil
	default:
		return fmt.Errorf("session: send buffer full")
	}
}

// SendMessage sends a chat message over the live transport
func (s *Session) SendMessage(chatID uuid.UUID, content string, mentions []uuid.UUID, replyTo *uuid.UUID) error {
	payload := &protocol.SendMessagePayload{
		ChatID:   chatID,
		Content:  content,
		Mentions: mentions,
		ReplyTo:  replyTo,
		Nonce:    uuid.New().String(),
	}
	env, err := protocol.NewEnvelope(protocol.OpSendMessage, payload)
	if err != nil {
		return err
	}
	return s.Send(env)
}

// identify sends the IDENTIFY frame to authenticate the transport
func (s *Session) identify() error {
	env, err := protocol.NewEnvelope(protocol.OpIdentify, &protocol.IdentifyPayload{Token: s.token})
	if err != nil {
		return err
	}
	return s.Send(env)
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// readPump reads frames from the WebSocket until it fails or is closed
func (s *Session) readPump() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	defer s.handleDrop()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn().Err(err).Msg("failed to parse frame")
			continue
		}
		s.handleEnvelope(&env)
	}
}

// writePump writes queued frames and pings to the WebSocket
func (s *Session) writePump() {
	s.mu.RLock()
	conn := s.conn
	send := s.send
	done := s.done
	s.mu.RUnlock()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to marshal frame")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// handleEnvelope processes an incoming frame
func (s *Session) handleEnvelope(env *protocol.Envelope) {
	if env.Seq != nil {
		s.mu.Lock()
		s.lastSeq = *env.Seq
		s.mu.Unlock()
	}

	switch env.Op {
	case protocol.OpHello:
		s.handleHello(env)

	case protocol.OpHeartbeatAck:
		// connection is healthy

	case protocol.OpReady:
		s.handleReady(env)

	case protocol.OpInvalidSession:
		s.log.Error().Msg("server rejected session token")
		s.Disconnect()

	case protocol.OpReconnect:
		// server asked us to cycle the transport; the read pump exit
		// triggers the normal reconnect path
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}

	case protocol.OpDispatch:
		s.dispatch.dispatch(env.Type, env)
	}
}

// handleHello starts the heartbeat at the server-advertised interval
func (s *Session) handleHello(env *protocol.Envelope) {
	var payload protocol.HelloPayload
	interval := defaultHeartbeat
	if err := json.Unmarshal(env.Data, &payload); err == nil && payload.HeartbeatInterval > 0 {
		interval = time.Duration(payload.HeartbeatInterval) * time.Millisecond
	}

	s.mu.Lock()
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.heartbeat = time.NewTicker(interval)
	ticker := s.heartbeat
	done := s.done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				s.sendHeartbeat()
			case <-done:
				return
			}
		}
	}()
}

// handleReady marks the session established and surfaces the connect event
func (s *Session) handleReady(env *protocol.Envelope) {
	var payload protocol.ReadyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse ready payload")
		return
	}

	s.mu.Lock()
	s.sessionID = payload.SessionID
	s.retries = 0
	s.mu.Unlock()

	s.log.Info().Str("session_id", payload.SessionID).Msg("session ready")
	s.dispatch.dispatch(protocol.EventConnect, env)
}

func (s *Session) sendHeartbeat() {
	s.mu.RLock()
	seq := s.lastSeq
	s.mu.RUnlock()

	env, err := protocol.NewEnvelope(protocol.OpHeartbeat, &protocol.HeartbeatPayload{LastSequence: &seq})
	if err != nil {
		return
	}
	s.Send(env)
}

// handleDrop runs when the read pump exits. An explicit Disconnect stops
// here; anything else is a transport failure and enters the reconnect loop.
func (s *Session) handleDrop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status = StatusDisconnected
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()

	// subscription changes made while offline are buffered until the
	// transport is back
	s.dispatch.setBuffered(true)
	s.dispatch.dispatch(protocol.EventReconnecting, &protocol.Envelope{Type: protocol.EventReconnecting})

	go s.reconnectLoop()
}

// reconnectLoop retries the transport with exponential backoff. Exhausting
// the retry budget leaves the session disconnected; the UI falls back to
// manual refresh.
func (s *Session) reconnectLoop() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		attempt := s.retries
		s.retries++
		s.mu.Unlock()

		if !s.backoff.ShouldRetry(attempt) {
			s.log.Error().Int("attempts", attempt).Msg("reconnect budget exhausted")
			s.dispatch.dispatch(protocol.EventDisconnect, &protocol.Envelope{Type: protocol.EventDisconnect})
			return
		}

		delay := s.backoff.NextDelay(attempt)
		s.log.Info().Dur("delay", delay).Int("attempt", attempt+1).Msg("reconnecting")
		time.Sleep(delay)

		if err := s.connect(); err == nil {
			return
		}
	}
}

// Ready decodes a READY payload from a connect-event frame. Returns nil if
// the frame carries no payload (synthesized lifecycle events).
func Ready(env *protocol.Envelope) *protocol.ReadyPayload {
	if env == nil || env.Data == nil {
		return nil
	}
	var payload protocol.ReadyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil
	}
	return &payload
}

// MessageNew decodes a message:new dispatch payload
func MessageNew(env *protocol.Envelope) (*models.Message, models.SenderSummary, error) {
	var payload protocol.MessageNewPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, models.SenderSummary{}, fmt.Errorf("failed to parse message payload: %w", err)
	}
	return payload.Message, payload.Sender, nil
}
