package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Network is an in-process peer network. Every transport created from it can
// reach every other by address. Used for local (single-device) sessions and
// for protocol tests.
type Network struct {
	mu     sync.Mutex
	peers  map[string]*MemTransport
	nextID int
}

func NewNetwork() *Network {
	return &Network{peers: make(map[string]*MemTransport)}
}

// NewTransport creates an unbound transport on this network. It joins the
// network when Initialize is called.
func (n *Network) NewTransport() *MemTransport {
	return &MemTransport{
		net:    n,
		events: make(chan Event, 256),
		conns:  make(map[*memConn]bool),
	}
}

// MemTransport is the in-memory Transport implementation.
type MemTransport struct {
	net    *Network
	mu     sync.Mutex
	addr   string
	closed bool
	conns  map[*memConn]bool
	events chan Event
}

func (t *MemTransport) Initialize(_ context.Context, preferredAddr string) (string, error) {
	t.mu.Lock()
	if t.addr != "" {
		addr := t.addr
		t.mu.Unlock()
		return addr, nil
	}
	t.mu.Unlock()

	t.net.mu.Lock()
	addr := preferredAddr
	if addr == "" || t.net.peers[addr] != nil {
		t.net.nextID++
		addr = fmt.Sprintf("peer-%d", t.net.nextID)
	}
	t.net.peers[addr] = t
	t.net.mu.Unlock()

	t.mu.Lock()
	t.addr = addr
	t.mu.Unlock()

	t.events <- Event{Kind: EventOpen, Addr: addr}
	return addr, nil
}

func (t *MemTransport) Connect(_ context.Context, remoteAddr string) (Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("transporte cerrado")
	}
	localAddr := t.addr
	t.mu.Unlock()
	if localAddr == "" {
		return nil, errors.New("transporte no inicializado")
	}

	t.net.mu.Lock()
	remote := t.net.peers[remoteAddr]
	t.net.mu.Unlock()
	if remote == nil {
		return nil, fmt.Errorf("peer desconocido: %s", remoteAddr)
	}

	local := &memConn{t: t, remoteAddr: remoteAddr}
	far := &memConn{t: remote, remoteAddr: localAddr}
	local.peer = far
	far.peer = local

	t.mu.Lock()
	t.conns[local] = true
	t.mu.Unlock()
	remote.mu.Lock()
	remote.conns[far] = true
	remote.mu.Unlock()

	remote.events <- Event{Kind: EventIncomingConn, Addr: localAddr, Conn: far}
	return local, nil
}

func (t *MemTransport) Events() <-chan Event { return t.events }

func (t *MemTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := make([]*memConn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	addr := t.addr
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	t.net.mu.Lock()
	delete(t.net.peers, addr)
	t.net.mu.Unlock()
	return nil
}

// memConn is one endpoint of an in-memory connection pair.
type memConn struct {
	t          *MemTransport
	peer       *memConn
	remoteAddr string
	mu         sync.Mutex
	closed     bool
}

func (c *memConn) RemoteAddr() string { return c.remoteAddr }

func (c *memConn) Send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("conexión cerrada")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.peer.t.events <- Event{Kind: EventData, Addr: c.peer.remoteAddr, Conn: c.peer, Data: buf}
	return nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.t.mu.Lock()
	delete(c.t.conns, c)
	c.t.mu.Unlock()

	// Notify the far side once.
	c.peer.mu.Lock()
	peerWasClosed := c.peer.closed
	c.peer.closed = true
	c.peer.mu.Unlock()
	if !peerWasClosed {
		c.peer.t.mu.Lock()
		delete(c.peer.t.conns, c.peer)
		c.peer.t.mu.Unlock()
		c.peer.t.events <- Event{Kind: EventClose, Addr: c.peer.remoteAddr, Conn: c.peer}
	}
	return nil
}
