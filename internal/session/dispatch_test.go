package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/protocol"
)

func TestDispatcherReplacesHandlerOnReregister(t *testing.T) {
	d := newDispatcher()

	first, second := 0, 0
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { first++ })
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { second++ })

	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})

	require.Zero(t, first, "a replaced handler must never fire")
	require.Equal(t, 1, second, "exactly one invocation per dispatch")
}

func TestDispatcherOffUnregisters(t *testing.T) {
	d := newDispatcher()

	calls := 0
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { calls++ })
	d.off(protocol.EventMessageNew)

	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})
	require.Zero(t, calls)
}

func TestDispatcherDropsUnhandledEvents(t *testing.T) {
	d := newDispatcher()
	// no handler registered; must not panic
	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})
}

func TestDispatcherBuffersOpsWhileOffline(t *testing.T) {
	d := newDispatcher()
	d.setBuffered(true)

	calls := 0
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { calls++ })

	// ops are held until the transport comes back
	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})
	require.Zero(t, calls)

	d.setBuffered(false)
	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})
	require.Equal(t, 1, calls)
}

func TestDispatcherReplaysBufferedOpsInOrder(t *testing.T) {
	d := newDispatcher()
	d.setBuffered(true)

	early, late := 0, 0
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { early++ })
	d.off(protocol.EventMessageNew)
	d.on(protocol.EventMessageNew, func(*protocol.Envelope) { late++ })
	d.setBuffered(false)

	d.dispatch(protocol.EventMessageNew, &protocol.Envelope{})
	require.Zero(t, early)
	require.Equal(t, 1, late, "the last buffered op wins after replay")
}

func TestDispatcherClear(t *testing.T) {
	d := newDispatcher()

	calls := 0
	d.on(protocol.EventConnect, func(*protocol.Envelope) { calls++ })
	d.clear()

	d.dispatch(protocol.EventConnect, &protocol.Envelope{})
	require.Zero(t, calls)
}
