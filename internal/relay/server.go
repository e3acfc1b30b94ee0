// Package relay implements the rendezvous side of the system: it assigns
// transport addresses to peers, forwards envelopes between them over
// websockets, and serves the matchmaking directory the peers advertise
// open rooms in.
package relay

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/ignacio82/ahorcado/internal/transport"
)

// Server relays envelopes between connected peers.
type Server struct {
	log      zerolog.Logger
	rooms    *RoomStore
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
	// links tracks which peers have exchanged a connect, so survivors can be
	// told when one of them drops.
	links map[string]map[string]bool
}

func NewServer(log zerolog.Logger, rooms *RoomStore) *Server {
	return &Server{
		log:   log.With().Str("component", "relay").Logger(),
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
		links: make(map[string]map[string]bool),
	}
}

// Router wires the websocket endpoint and the directory routes.
func (s *Server) Router() *httprouter.Router {
	mux := httprouter.New()
	mux.GET("/ws", s.serveWS)
	mux.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})
	s.rooms.registerRoutes(mux)
	return mux
}

// peer is one websocket-connected transport endpoint. closed is guarded by
// the server mutex so nothing writes to send after it is closed.
type peer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("error al actualizar a WebSocket")
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, 256)}
	go p.writePump(s.log)
	s.readPump(p)
}

func (p *peer) writePump(log zerolog.Logger) {
	defer p.conn.Close()
	for data := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("peer", p.id).Msg("error de escritura")
			return
		}
	}
	p.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Server) readPump(p *peer) {
	defer s.dropPeer(p)
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("peer", p.id).Msg("lectura de WebSocket terminada")
			}
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warn().Err(err).Msg("envelope malformado, ignorado")
			continue
		}
		s.handleEnvelope(p, env)
	}
}

func (s *Server) handleEnvelope(p *peer, env transport.Envelope) {
	if p.id == "" {
		// First envelope must be a hello; anything else has no source address.
		if env.Type != transport.EnvHello {
			s.log.Warn().Str("type", env.Type).Msg("envelope antes del hello, descartado")
			return
		}
		s.registerPeer(p, env.From)
		return
	}

	// The relay owns source attribution.
	env.From = p.id

	switch env.Type {
	case transport.EnvConnect, transport.EnvAccept, transport.EnvData, transport.EnvClose:
		s.forward(p, env)
	case transport.EnvHello:
		// Re-hello from a registered peer: repeat the welcome, address is stable.
		s.sendTo(p, transport.Envelope{Type: transport.EnvWelcome, From: p.id})
	default:
		s.log.Warn().Str("type", env.Type).Str("peer", p.id).Msg("tipo de envelope desconocido")
	}
}

func (s *Server) registerPeer(p *peer, preferred string) {
	s.mu.Lock()
	id := preferred
	if id == "" || s.peers[id] != nil {
		id = newAddr()
	}
	p.id = id
	s.peers[id] = p
	total := len(s.peers)
	s.mu.Unlock()

	s.log.Info().Str("peer", id).Int("total", total).Msg("peer registrado")
	s.sendTo(p, transport.Envelope{Type: transport.EnvWelcome, From: id})
}

func (s *Server) forward(from *peer, env transport.Envelope) {
	s.mu.Lock()
	dst := s.peers[env.To]
	if dst != nil && env.Type == transport.EnvConnect {
		s.link(from.id, env.To)
	}
	s.mu.Unlock()

	if dst == nil {
		s.sendTo(from, transport.Envelope{
			Type:  transport.EnvError,
			From:  env.To,
			Error: "peer no encontrado: " + env.To,
		})
		return
	}
	s.sendTo(dst, env)
}

// link records both directions; caller holds s.mu.
func (s *Server) link(a, b string) {
	if s.links[a] == nil {
		s.links[a] = make(map[string]bool)
	}
	if s.links[b] == nil {
		s.links[b] = make(map[string]bool)
	}
	s.links[a][b] = true
	s.links[b][a] = true
}

func (s *Server) dropPeer(p *peer) {
	if p.id == "" {
		p.conn.Close()
		return
	}
	s.mu.Lock()
	p.closed = true
	delete(s.peers, p.id)
	linked := s.links[p.id]
	delete(s.links, p.id)
	var survivors []*peer
	for other := range linked {
		delete(s.links[other], p.id)
		if sp := s.peers[other]; sp != nil {
			survivors = append(survivors, sp)
		}
	}
	total := len(s.peers)
	s.mu.Unlock()

	close(p.send)
	// A vanished host leaves a stale listing; drop it right away instead of
	// waiting for the TTL.
	s.rooms.Delete(p.id)

	for _, sp := range survivors {
		s.sendTo(sp, transport.Envelope{Type: transport.EnvGone, From: p.id})
	}
	s.log.Info().Str("peer", p.id).Int("total", total).Msg("peer desconectado")
}

func (s *Server) sendTo(p *peer, env transport.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("error codificando envelope")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.send <- data:
	default:
		s.log.Warn().Str("peer", p.id).Msg("canal de envío bloqueado, envelope descartado")
	}
}

// newAddr returns a compact random peer address.
func newAddr() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return "p-" + hex.EncodeToString(b[:])
}
