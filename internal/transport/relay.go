package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const connectTimeout = 10 * time.Second

// WSTransport implements Transport over a single websocket to the relay
// server. Logical peer connections are multiplexed as envelopes; the relay
// assigns the local address and forwards by destination.
type WSTransport struct {
	url string
	log zerolog.Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	addr    string
	closed  bool
	pending map[string]chan error // Connect calls awaiting accept
	conns   map[string]*wsConn

	events chan Event
	send   chan []byte
	quit   chan struct{}

	initMu   sync.Mutex
	initDone chan struct{}
	initErr  error
}

func NewWSTransport(url string, log zerolog.Logger) *WSTransport {
	return &WSTransport{
		url:     url,
		log:     log.With().Str("component", "transport").Logger(),
		pending: make(map[string]chan error),
		conns:   make(map[string]*wsConn),
		events:  make(chan Event, 256),
		send:    make(chan []byte, 256),
		quit:    make(chan struct{}),
	}
}

// Initialize dials the relay and waits for the assigned address. Concurrent
// callers share a single in-flight initialization.
func (t *WSTransport) Initialize(ctx context.Context, preferredAddr string) (string, error) {
	t.initMu.Lock()
	if t.initDone == nil {
		t.initDone = make(chan struct{})
		t.mu.Lock()
		t.initErr = nil
		t.mu.Unlock()
		go t.dial(ctx, preferredAddr)
	}
	done := t.initDone
	t.initMu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr, t.initErr
}

func (t *WSTransport) dial(ctx context.Context, preferredAddr string) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		t.mu.Lock()
		t.initErr = fmt.Errorf("conectando al relay %s: %w", t.url, err)
		t.mu.Unlock()
		// Reset so a later Initialize starts a fresh dial instead of
		// reporting this attempt's error forever.
		t.initMu.Lock()
		done := t.initDone
		t.initDone = nil
		t.initMu.Unlock()
		close(done)
		return
	}
	t.mu.Lock()
	t.ws = ws
	t.mu.Unlock()

	go t.writePump()
	t.enqueue(Envelope{Type: EnvHello, From: preferredAddr})
	go t.readPump()
}

func (t *WSTransport) Connect(ctx context.Context, remoteAddr string) (Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("transporte cerrado")
	}
	if t.addr == "" {
		t.mu.Unlock()
		return nil, errors.New("transporte no inicializado")
	}
	if c, ok := t.conns[remoteAddr]; ok {
		t.mu.Unlock()
		return c, nil
	}
	ch := make(chan error, 1)
	t.pending[remoteAddr] = ch
	t.mu.Unlock()

	t.enqueue(Envelope{Type: EnvConnect, To: remoteAddr})

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	select {
	case err := <-ch:
		if err != nil {
			return nil, err
		}
	case <-timer.C:
		t.dropPending(remoteAddr)
		return nil, fmt.Errorf("tiempo agotado conectando con %s", remoteAddr)
	case <-ctx.Done():
		t.dropPending(remoteAddr)
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.conns[remoteAddr]
	if c == nil {
		return nil, fmt.Errorf("conexión con %s perdida durante el saludo", remoteAddr)
	}
	return c, nil
}

func (t *WSTransport) dropPending(remoteAddr string) {
	t.mu.Lock()
	delete(t.pending, remoteAddr)
	t.mu.Unlock()
}

func (t *WSTransport) Events() <-chan Event { return t.events }

func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ws := t.ws
	t.mu.Unlock()
	close(t.quit)
	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (t *WSTransport) enqueue(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		t.log.Error().Err(err).Str("type", env.Type).Msg("error codificando envelope")
		return
	}
	// send is never closed; after Close the writePump drains nothing and the
	// buffer absorbs stragglers.
	select {
	case t.send <- data:
	case <-t.quit:
	default:
		t.log.Warn().Str("type", env.Type).Msg("cola de envío llena, envelope descartado")
	}
}

func (t *WSTransport) writePump() {
	for {
		select {
		case <-t.quit:
			return
		case data := <-t.send:
			t.mu.Lock()
			ws := t.ws
			t.mu.Unlock()
			if ws == nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				t.log.Error().Err(err).Msg("error de escritura hacia el relay")
				return
			}
		}
	}
}

func (t *WSTransport) readPump() {
	for {
		t.mu.Lock()
		ws := t.ws
		closed := t.closed
		t.mu.Unlock()
		if ws == nil || closed {
			return
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.handleRelayLost(err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.log.Warn().Err(err).Msg("envelope malformado del relay")
			continue
		}
		t.handleEnvelope(env)
	}
}

func (t *WSTransport) handleEnvelope(env Envelope) {
	switch env.Type {
	case EnvWelcome:
		t.mu.Lock()
		t.addr = env.From
		t.mu.Unlock()
		t.initMu.Lock()
		if t.initDone != nil {
			select {
			case <-t.initDone:
			default:
				close(t.initDone)
			}
		}
		t.initMu.Unlock()
		t.events <- Event{Kind: EventOpen, Addr: env.From}

	case EnvConnect:
		// Inbound logical channel: accept at transport level; the session
		// layer decides whether the peer may actually join.
		c := t.ensureConn(env.From)
		t.enqueue(Envelope{Type: EnvAccept, To: env.From})
		t.events <- Event{Kind: EventIncomingConn, Addr: env.From, Conn: c}

	case EnvAccept:
		t.ensureConn(env.From)
		t.mu.Lock()
		ch := t.pending[env.From]
		delete(t.pending, env.From)
		t.mu.Unlock()
		if ch != nil {
			ch <- nil
		}

	case EnvData:
		t.mu.Lock()
		c := t.conns[env.From]
		t.mu.Unlock()
		if c == nil {
			t.log.Debug().Str("from", env.From).Msg("datos de un peer sin conexión, ignorados")
			return
		}
		t.events <- Event{Kind: EventData, Addr: env.From, Conn: c, Data: env.Payload}

	case EnvClose, EnvGone:
		t.mu.Lock()
		c := t.conns[env.From]
		delete(t.conns, env.From)
		ch := t.pending[env.From]
		delete(t.pending, env.From)
		t.mu.Unlock()
		if ch != nil {
			ch <- fmt.Errorf("el peer %s rechazó la conexión", env.From)
		}
		if c != nil {
			t.events <- Event{Kind: EventClose, Addr: env.From, Conn: c}
		}

	case EnvError:
		t.mu.Lock()
		ch := t.pending[env.From]
		delete(t.pending, env.From)
		t.mu.Unlock()
		err := errors.New(env.Error)
		if ch != nil {
			ch <- err
			return
		}
		t.events <- Event{Kind: EventError, Err: err}

	default:
		t.log.Warn().Str("type", env.Type).Msg("tipo de envelope desconocido")
	}
}

// handleRelayLost fails every open logical connection: without the relay
// there is no path to any peer.
func (t *WSTransport) handleRelayLost(cause error) {
	t.mu.Lock()
	wasClosed := t.closed
	conns := make([]*wsConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[string]*wsConn)
	for addr, ch := range t.pending {
		ch <- fmt.Errorf("relay perdido: %w", cause)
		delete(t.pending, addr)
	}
	t.mu.Unlock()

	for _, c := range conns {
		t.events <- Event{Kind: EventClose, Addr: c.remote, Conn: c}
	}
	if !wasClosed {
		t.events <- Event{Kind: EventError, Err: cause}
	}
}

func (t *WSTransport) ensureConn(remote string) *wsConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[remote]; ok {
		return c
	}
	c := &wsConn{t: t, remote: remote}
	t.conns[remote] = c
	return c
}

// wsConn is a logical connection relayed over the shared websocket.
type wsConn struct {
	t      *WSTransport
	remote string
}

func (c *wsConn) RemoteAddr() string { return c.remote }

func (c *wsConn) Send(data []byte) error {
	c.t.mu.Lock()
	_, open := c.t.conns[c.remote]
	closed := c.t.closed
	c.t.mu.Unlock()
	if closed || !open {
		return fmt.Errorf("conexión con %s cerrada", c.remote)
	}
	c.t.enqueue(Envelope{Type: EnvData, To: c.remote, Payload: json.RawMessage(data)})
	return nil
}

func (c *wsConn) Close() error {
	c.t.mu.Lock()
	_, open := c.t.conns[c.remote]
	delete(c.t.conns, c.remote)
	c.t.mu.Unlock()
	if open {
		c.t.enqueue(Envelope{Type: EnvClose, To: c.remote})
	}
	return nil
}
