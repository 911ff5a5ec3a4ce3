package session

import (
	"sync"

	"github.com/teamline-chat/teamline/internal/protocol"
)

// Handler processes a dispatched frame for one event channel
type Handler func(env *protocol.Envelope)

// pendingOp is a subscription change made while the session was offline.
// Ops are buffered in order and replayed once the transport is back.
type pendingOp struct {
	event   protocol.EventType
	handler Handler // nil means unregister
}

// dispatcher routes dispatch frames to at most one handler per event channel.
// Re-registering an event replaces the previous handler rather than stacking
// it; a stacked handler would mean duplicate delivery of every event.
type dispatcher struct {
	mu       sync.Mutex
	handlers map[protocol.EventType]Handler
	pending  []pendingOp
	buffered bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		handlers: make(map[protocol.EventType]Handler),
	}
}

// setBuffered switches the dispatcher between live and buffered mode.
// Leaving buffered mode replays pending ops in registration order.
func (d *dispatcher) setBuffered(buffered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffered = buffered
	if buffered {
		return
	}
	for _, op := range d.pending {
		if op.handler == nil {
			delete(d.handlers, op.event)
		} else {
			d.handlers[op.event] = op.handler
		}
	}
	d.pending = nil
}

// on registers (or replaces) the handler for an event channel
func (d *dispatcher) on(event protocol.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buffered {
		d.pending = append(d.pending, pendingOp{event: event, handler: h})
		return
	}
	d.handlers[event] = h
}

// off removes the handler for an event channel
func (d *dispatcher) off(event protocol.EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buffered {
		d.pending = append(d.pending, pendingOp{event: event})
		return
	}
	delete(d.handlers, event)
}

// clear drops all handlers and pending ops
func (d *dispatcher) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[protocol.EventType]Handler)
	d.pending = nil
}

// dispatch invokes the handler registered for the frame's event channel,
// if any. Unhandled events are dropped.
func (d *dispatcher) dispatch(event protocol.EventType, env *protocol.Envelope) {
	d.mu.Lock()
	h := d.handlers[event]
	d.mu.Unlock()

	if h != nil {
		h(env)
	}
}
