// Package transport abstracts the peer-to-peer channel the session
// coordinator runs over: reliable, ordered, point-to-point. Two
// implementations exist: an in-memory network for local play and tests, and
// a websocket relay client for networked play.
package transport

import "context"

// EventKind discriminates transport events.
type EventKind int

const (
	// EventOpen reports the locally assigned transport address.
	EventOpen EventKind = iota
	// EventIncomingConn carries a newly accepted inbound connection.
	EventIncomingConn
	// EventData carries one message received on a connection.
	EventData
	// EventClose reports that a connection closed.
	EventClose
	// EventError reports a transport-level failure.
	EventError
)

// Event is delivered on the transport's event channel. Per-connection order
// is preserved; there is no cross-connection ordering guarantee.
type Event struct {
	Kind EventKind
	Addr string // local address (EventOpen) or the remote peer's address
	Conn Conn
	Data []byte
	Err  error
}

// Conn is one open point-to-point channel to a remote peer.
type Conn interface {
	RemoteAddr() string
	Send(data []byte) error
	Close() error
}

// Transport is the peer transport capability consumed by the coordinator.
type Transport interface {
	// Initialize opens the local transport identity and returns the assigned
	// address. Idempotent: a second call returns the existing address.
	Initialize(ctx context.Context, preferredAddr string) (string, error)
	// Connect opens a channel to a remote peer, blocking until it is
	// established or ctx expires.
	Connect(ctx context.Context, remoteAddr string) (Conn, error)
	// Events is the single ordered stream of transport callbacks.
	Events() <-chan Event
	Close() error
}
