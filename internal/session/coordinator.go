// Package session contains the peer session coordinator: it negotiates the
// host/client role, owns the join/leave protocol, dispatches messages,
// replicates the authoritative state and drives the turn-based game to
// completion. A single event loop processes every transport event and user
// action to completion before the next, so state mutations never interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ignacio82/ahorcado/internal/directory"
	"github.com/ignacio82/ahorcado/internal/relay"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
	"github.com/ignacio82/ahorcado/internal/words"
)

// GameType identifies this game in the matchmaking directory.
const GameType = "ahorcado"

const (
	DefaultMinPlayers = 2
	DefaultMaxPlayers = 4
)

var ErrBusy = errors.New("ya hay una sesión en curso")

// Directory is the matchmaking contract the coordinator consumes.
type Directory interface {
	ListOpenRooms(ctx context.Context, gameType string, f directory.Filter) ([]relay.RoomEntry, error)
	InsertRoom(ctx context.Context, entry relay.RoomEntry) error
	UpdateRoom(ctx context.Context, roomID string, upd relay.RoomUpdate) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// ResultRecorder persists finished-game results. Optional.
type ResultRecorder interface {
	RecordResult(scores []rules.PlayerScore, winners []string) error
}

// Profile is the joining player's display identity.
type Profile struct {
	Name  string
	Icon  string
	Color string
}

// connStatus is the lifecycle of one connection entry.
type connStatus int

const (
	statusPendingRequest connStatus = iota // we initiated, join request in flight
	statusAwaitingRequest                  // inbound, waiting for its join request
	statusActive
)

// connEntry maps one open connection to its player. Host-only bookkeeping,
// never replicated.
type connEntry struct {
	conn         transport.Conn
	playerGameID int
	status       connStatus
}

type actionKind int

const (
	actGuess actionKind = iota
	actClue
	actReady
	actStartGame
	actStartLocal
	actChat
	actBecomeHost
	actRegisterHostConn
	actLeave
)

type action struct {
	kind       actionKind
	letter     string
	text       string
	ready      bool
	profile    Profile
	settings   state.Settings
	conn       transport.Conn
	names      []string
	difficulty words.Difficulty
	reply      chan error
}

// Coordinator orchestrates one game session.
type Coordinator struct {
	log      zerolog.Logger
	store    *state.Store
	engine   *rules.Engine
	tr       transport.Transport
	dir      Directory
	cb       Callbacks
	recorder ResultRecorder

	actions chan action
	quit    chan struct{}
	once    sync.Once

	// Memoized peer initialization: all callers await the same in-flight
	// attempt.
	initMu      sync.Mutex
	initPending chan struct{}
	initErr     error
	localAddr   string

	// Loop-owned; touched only from run().
	isHost     bool
	myPlayerID int
	conns      map[transport.Conn]*connEntry
	hostConn   transport.Conn

	refreshCancel context.CancelFunc
}

// New builds a coordinator and starts its event loop. dir and recorder may
// be nil for purely local sessions.
func New(store *state.Store, engine *rules.Engine, tr transport.Transport, dir Directory, cb Callbacks, log zerolog.Logger) *Coordinator {
	if cb == nil {
		cb = NopCallbacks{}
	}
	c := &Coordinator{
		log:        log.With().Str("component", "session").Logger(),
		store:      store,
		engine:     engine,
		tr:         tr,
		dir:        dir,
		cb:         cb,
		actions:    make(chan action, 64),
		quit:       make(chan struct{}),
		myPlayerID: -1,
		conns:      make(map[transport.Conn]*connEntry),
	}
	go c.run()
	return c
}

// SetResultRecorder wires an optional results store; the host records each
// finished game.
func (c *Coordinator) SetResultRecorder(r ResultRecorder) { c.recorder = r }

// Store exposes the session state for read-only UI access.
func (c *Coordinator) Store() *state.Store { return c.store }

// LocalAddr returns the assigned transport address, "" before initialization.
func (c *Coordinator) LocalAddr() string {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.localAddr
}

// IsHost reports whether this peer holds the authoritative state.
func (c *Coordinator) IsHost() bool { return c.store.Networked() && c.store.Room().HostAddress == c.LocalAddr() }

// Close stops the event loop and the transport.
func (c *Coordinator) Close() error {
	c.once.Do(func() { close(c.quit) })
	return c.tr.Close()
}

// run is the single-threaded event loop: each transport event or user action
// runs to completion (mutate, then broadcast) before the next is dequeued.
func (c *Coordinator) run() {
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.tr.Events():
			c.handleTransportEvent(ev)
		case act := <-c.actions:
			c.handleAction(act)
		}
	}
}

func (c *Coordinator) handleAction(act action) {
	var err error
	switch act.kind {
	case actBecomeHost:
		err = c.becomeHost(act.profile, act.settings)
	case actRegisterHostConn:
		err = c.registerHostConn(act.conn, act.profile)
	case actStartLocal:
		err = c.startLocal(act.names, act.difficulty)
	case actStartGame:
		err = c.startNetworkedGame()
	case actReady:
		c.applyReady(act.ready)
	case actGuess:
		c.submitGuess(act.letter)
	case actClue:
		c.submitClue()
	case actChat:
		c.submitChat(act.text)
	case actLeave:
		c.leave()
	}
	if act.reply != nil {
		act.reply <- err
	}
}

func (c *Coordinator) dispatch(act action) error {
	act.reply = make(chan error, 1)
	select {
	case c.actions <- act:
	case <-c.quit:
		return errors.New("sesión cerrada")
	}
	select {
	case err := <-act.reply:
		return err
	case <-c.quit:
		return errors.New("sesión cerrada")
	}
}

func (c *Coordinator) enqueue(act action) {
	select {
	case c.actions <- act:
	case <-c.quit:
	}
}

// --- public API: lifecycle ---

// EnsurePeerInitialized idempotently opens the local transport identity.
// Concurrent callers share one pending initialization.
func (c *Coordinator) EnsurePeerInitialized(ctx context.Context) (string, error) {
	c.initMu.Lock()
	if c.localAddr != "" {
		addr := c.localAddr
		c.initMu.Unlock()
		return addr, nil
	}
	if c.initPending == nil {
		c.initPending = make(chan struct{})
		go func() {
			addr, err := c.tr.Initialize(context.Background(), "")
			c.initMu.Lock()
			c.localAddr = addr
			c.initErr = err
			pending := c.initPending
			c.initPending = nil
			c.initMu.Unlock()
			close(pending)
		}()
	}
	pending := c.initPending
	c.initMu.Unlock()

	select {
	case <-pending:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.localAddr, c.initErr
}

// HostRoom creates a room with this peer as the authoritative host and
// advertises it in the directory.
func (c *Coordinator) HostRoom(ctx context.Context, profile Profile, settings state.Settings) error {
	if c.store.RoomState() != state.RoomIdle {
		return ErrBusy
	}
	c.store.SetRoomState(state.RoomCreating)

	if _, err := c.EnsurePeerInitialized(ctx); err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return fmt.Errorf("inicializando transporte: %w", err)
	}

	if err := c.dispatch(action{kind: actBecomeHost, profile: profile, settings: settings}); err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return err
	}

	c.advertiseRoom(settings)
	c.cb.ShowLobby(true)
	return nil
}

// JoinRoom connects to a host and requests to enter its room. Acceptance or
// rejection arrives asynchronously through the callbacks.
func (c *Coordinator) JoinRoom(ctx context.Context, roomAddr string, profile Profile) error {
	if c.store.RoomState() != state.RoomIdle {
		return ErrBusy
	}
	c.store.SetRoomState(state.RoomConnecting)
	return c.joinConnected(ctx, roomAddr, profile)
}

func (c *Coordinator) joinConnected(ctx context.Context, roomAddr string, profile Profile) error {
	if _, err := c.EnsurePeerInitialized(ctx); err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return fmt.Errorf("inicializando transporte: %w", err)
	}
	conn, err := c.tr.Connect(ctx, roomAddr)
	if err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return fmt.Errorf("conectando con la sala %s: %w", roomAddr, err)
	}
	return c.dispatch(action{kind: actRegisterHostConn, conn: conn, profile: profile})
}

// SeekMatch queries the directory for a suitable open room and joins it, or
// becomes the host of a fresh room when none exists.
func (c *Coordinator) SeekMatch(ctx context.Context, profile Profile, settings state.Settings) error {
	if c.store.RoomState() != state.RoomIdle {
		return ErrBusy
	}
	if c.dir == nil {
		return errors.New("sin directorio de salas configurado")
	}
	c.store.SetRoomState(state.RoomSeekingMatch)

	rooms, err := c.dir.ListOpenRooms(ctx, GameType, directory.Filter{Difficulty: settings.Difficulty})
	if err != nil {
		c.store.SetRoomState(state.RoomIdle)
		c.cb.NetworkError("no se pudo buscar salas: "+err.Error(), false)
		return fmt.Errorf("buscando salas: %w", err)
	}

	if len(rooms) > 0 {
		c.store.SetRoomState(state.RoomConnecting)
		return c.joinConnected(ctx, rooms[0].HostAddress, profile)
	}

	c.log.Info().Msg("sin salas abiertas, este peer será el host")
	c.store.SetRoomState(state.RoomCreating)
	if _, err := c.EnsurePeerInitialized(ctx); err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return fmt.Errorf("inicializando transporte: %w", err)
	}
	if err := c.dispatch(action{kind: actBecomeHost, profile: profile, settings: settings}); err != nil {
		c.store.SetRoomState(state.RoomIdle)
		return err
	}
	c.advertiseRoom(settings)
	c.cb.ShowLobby(true)
	return nil
}

// StartLocalGame begins a non-networked round on this device. An empty name
// list falls back to a single synthetic player.
func (c *Coordinator) StartLocalGame(names []string, difficulty words.Difficulty) error {
	if len(names) == 0 {
		names = []string{"Jugador 1"}
	}
	return c.dispatch(action{kind: actStartLocal, names: names, difficulty: difficulty})
}

// StartGame begins the networked round. Host only; everyone must be ready.
func (c *Coordinator) StartGame() error {
	return c.dispatch(action{kind: actStartGame})
}

// SetReady toggles this player's ready flag.
func (c *Coordinator) SetReady(ready bool) {
	c.enqueue(action{kind: actReady, ready: ready})
}

// SubmitGuess plays a letter for the current turn.
func (c *Coordinator) SubmitGuess(letter string) {
	c.enqueue(action{kind: actGuess, letter: letter})
}

// RequestClue asks for the round's single clue.
func (c *Coordinator) RequestClue() {
	c.enqueue(action{kind: actClue})
}

// SendChat relays a lobby chat line through the host.
func (c *Coordinator) SendChat(text string) {
	c.enqueue(action{kind: actChat, text: text})
}

// Leave tears the session down: stops the directory refresh, removes the
// listing best-effort and returns to the pre-session screen.
func (c *Coordinator) Leave() {
	_ = c.dispatch(action{kind: actLeave})
}

// --- directory plumbing ---

func (c *Coordinator) advertiseRoom(settings state.Settings) {
	if c.dir == nil {
		return
	}
	room := c.store.Room()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.dir.InsertRoom(ctx, relay.RoomEntry{
		RoomID:         room.RoomID,
		HostAddress:    room.HostAddress,
		GameType:       GameType,
		Status:         relay.RoomStatusOpen,
		MaxPlayers:     room.MaxPlayers,
		CurrentPlayers: len(room.Players),
		Settings:       settings,
	})
	if err != nil {
		// Degraded mode: the room works, it just cannot be discovered.
		c.log.Warn().Err(err).Msg("no se pudo publicar la sala en el directorio")
		c.cb.NetworkError("no se pudo publicar la sala: "+err.Error(), false)
		return
	}
	c.startRefresher(room.RoomID)
}

// startRefresher keeps the directory listing alive while hosting. The
// directory expires silent entries, so a crashed host cleans up after itself.
func (c *Coordinator) startRefresher(roomID string) {
	ctx, cancel := context.WithCancel(context.Background())
	c.refreshCancel = cancel
	go func() {
		ticker := time.NewTicker(directory.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rctx, rcancel := context.WithTimeout(ctx, 10*time.Second)
				if err := c.dir.UpdateRoom(rctx, roomID, relay.RoomUpdate{}); err != nil {
					c.log.Warn().Err(err).Msg("no se pudo refrescar la sala en el directorio")
				}
				rcancel()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Coordinator) stopRefresher() {
	if c.refreshCancel != nil {
		c.refreshCancel()
		c.refreshCancel = nil
	}
}

// updateListing patches the room's directory entry in the background.
func (c *Coordinator) updateListing(upd relay.RoomUpdate) {
	if c.dir == nil || !c.isHost {
		return
	}
	roomID := c.store.Room().RoomID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.dir.UpdateRoom(ctx, roomID, upd); err != nil {
			c.log.Warn().Err(err).Msg("no se pudo actualizar la sala en el directorio")
		}
	}()
}
