package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/session"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
	"github.com/ignacio82/ahorcado/internal/words"
)

type fixedDict struct {
	word, def string
}

func (d fixedDict) WordsForDifficulty(words.Difficulty) []words.Entry {
	return []words.Entry{{Word: d.word, Definition: d.def, Difficulty: words.DifficultyEasy}}
}

// recorder captures every callback on buffered channels so tests can await
// the asynchronous protocol flow.
type recorder struct {
	showLobby chan bool
	lobby     chan struct{}
	started   chan protocol.GameStartedPayload
	guesses   chan rules.GuessResult
	synced    chan struct{}
	clues     chan string
	over      chan protocol.GameOverPayload
	chats     chan [2]string
	netErrs   chan string
	critical  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		showLobby: make(chan bool, 32),
		lobby:     make(chan struct{}, 32),
		started:   make(chan protocol.GameStartedPayload, 32),
		guesses:   make(chan rules.GuessResult, 32),
		synced:    make(chan struct{}, 64),
		clues:     make(chan string, 32),
		over:      make(chan protocol.GameOverPayload, 32),
		chats:     make(chan [2]string, 32),
		netErrs:   make(chan string, 32),
		critical:  make(chan struct{}, 32),
	}
}

func (r *recorder) ShowLobby(isHost bool)                        { r.showLobby <- isHost }
func (r *recorder) LobbyUpdated()                                { r.lobby <- struct{}{} }
func (r *recorder) GameStarted(s protocol.GameStartedPayload)    { r.started <- s }
func (r *recorder) GuessApplied(res rules.GuessResult)           { r.guesses <- res }
func (r *recorder) FullStateSynced()                             { r.synced <- struct{}{} }
func (r *recorder) ClueRevealed(clue string)                     { r.clues <- clue }
func (r *recorder) GameOver(data protocol.GameOverPayload)       { r.over <- data }
func (r *recorder) ChatReceived(from, message string)            { r.chats <- [2]string{from, message} }
func (r *recorder) NetworkError(message string, critical bool)   { r.netErrs <- message }
func (r *recorder) CriticalDisconnect()                          { r.critical <- struct{}{} }

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("no llegó %s", what)
		panic("unreachable")
	}
}

func newPeer(t *testing.T, net *transport.Network, word string) (*session.Coordinator, *recorder, *state.Store) {
	t.Helper()
	store := state.NewStore()
	eng := rules.NewEngine(store, fixedDict{word: word, def: "una pista"})
	rec := newRecorder()
	coord := session.New(store, eng, net.NewTransport(), nil, rec, zerolog.Nop())
	t.Cleanup(func() { _ = coord.Close() })
	return coord, rec, store
}

func startTwoPlayerGame(t *testing.T, net *transport.Network, word string) (host, client *session.Coordinator, hui, cui *recorder, hstore, cstore *state.Store) {
	t.Helper()
	ctx := context.Background()

	host, hui, hstore = newPeer(t, net, word)
	client, cui, cstore = newPeer(t, net, word)

	require.NoError(t, host.HostRoom(ctx, session.Profile{Name: "Ana"}, state.Settings{Difficulty: words.DifficultyEasy}))
	assert.True(t, recv(t, hui.showLobby, "el lobby del host"))

	require.NoError(t, client.JoinRoom(ctx, host.LocalAddr(), session.Profile{Name: "Beto"}))
	assert.False(t, recv(t, cui.showLobby, "el lobby del cliente"))

	host.SetReady(true)
	client.SetReady(true)
	require.Eventually(t, func() bool {
		players := hstore.Players()
		if len(players) != 2 {
			return false
		}
		for _, p := range players {
			if !p.IsReady {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "los dos jugadores listos")

	require.NoError(t, host.StartGame())
	recv(t, hui.started, "el inicio en el host")
	payload := recv(t, cui.started, "el inicio en el cliente")
	assert.Equal(t, len([]rune(word)), payload.WordLength)
	return
}

func TestNetworkedGameToCompletion(t *testing.T) {
	net := transport.NewNetwork()
	host, client, hui, cui, hstore, cstore := startTwoPlayerGame(t, net, "SOL")

	// Ana (id 0) empieza.
	host.SubmitGuess("s")
	recv(t, hui.guesses, "el resultado de la s en el host")
	res := recv(t, cui.guesses, "el resultado de la s en el cliente")
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.NextPlayerID)

	client.SubmitGuess("o")
	res = recv(t, hui.guesses, "el resultado de la o")
	assert.True(t, res.Correct)
	assert.Equal(t, 0, res.NextPlayerID)

	host.SubmitGuess("l")
	over := recv(t, hui.over, "el fin de partida en el host")
	assert.Equal(t, protocol.OverReasonWordSolved, over.Reason)
	require.Len(t, over.Winners, 1)
	assert.Equal(t, "Ana", over.Winners[0].Name)
	assert.Equal(t, "SOL", over.FinalWord)

	overC := recv(t, cui.over, "el fin de partida en el cliente")
	assert.Equal(t, protocol.OverReasonWordSolved, overC.Reason)

	require.Eventually(t, func() bool { return !cstore.GameActive() }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, hstore.GameActive())
}

func TestJoinRejectedWhileGameInProgress(t *testing.T) {
	net := transport.NewNetwork()
	host, _, _, _, _, _ := startTwoPlayerGame(t, net, "SOL")

	tarde, tui, tstore := newPeer(t, net, "SOL")
	require.NoError(t, tarde.JoinRoom(context.Background(), host.LocalAddr(), session.Profile{Name: "Carla"}))

	msg := recv(t, tui.netErrs, "el rechazo")
	assert.Contains(t, msg, protocol.RejectGameInProgress)
	require.Eventually(t, func() bool { return tstore.RoomState() == state.RoomIdle }, 2*time.Second, 10*time.Millisecond)
}

func TestOutOfTurnGuessIsDiscarded(t *testing.T) {
	net := transport.NewNetwork()
	_, client, _, _, hstore, _ := startTwoPlayerGame(t, net, "SOL")

	// Es el turno de Ana (id 0); Beto intenta igual.
	client.SubmitGuess("s")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, hstore.GuessedLetters(), "el intento fuera de turno no toca el estado")
	assert.True(t, hstore.GameActive())
	assert.Equal(t, 0, hstore.CurrentPlayerID())
}

func TestClueSharedWithEveryone(t *testing.T) {
	net := transport.NewNetwork()
	host, _, hui, cui, hstore, _ := startTwoPlayerGame(t, net, "SOL")

	host.RequestClue()
	assert.Equal(t, "una pista", recv(t, hui.clues, "la pista en el host"))
	assert.Equal(t, "una pista", recv(t, cui.clues, "la pista en el cliente"))
	assert.True(t, hstore.ClueUsed())
}

func TestDepartureRenumbersAndEndsShortRounds(t *testing.T) {
	net := transport.NewNetwork()
	ctx := context.Background()

	host, hui, hstore := newPeer(t, net, "SOL")
	c1, c1ui, _ := newPeer(t, net, "SOL")
	c2, c2ui, _ := newPeer(t, net, "SOL")

	require.NoError(t, host.HostRoom(ctx, session.Profile{Name: "Ana"}, state.Settings{Difficulty: words.DifficultyEasy}))
	recv(t, hui.showLobby, "el lobby del host")
	require.NoError(t, c1.JoinRoom(ctx, host.LocalAddr(), session.Profile{Name: "Beto"}))
	recv(t, c1ui.showLobby, "el lobby de Beto")
	require.NoError(t, c2.JoinRoom(ctx, host.LocalAddr(), session.Profile{Name: "Carla"}))
	recv(t, c2ui.showLobby, "el lobby de Carla")

	host.SetReady(true)
	c1.SetReady(true)
	c2.SetReady(true)
	require.Eventually(t, func() bool {
		players := hstore.Players()
		if len(players) != 3 {
			return false
		}
		for _, p := range players {
			if !p.IsReady {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, host.StartGame())
	recv(t, hui.started, "el inicio")

	// Con tres jugadores, una salida deja dos y la ronda sigue.
	c1.Leave()
	require.Eventually(t, func() bool {
		players := hstore.Players()
		return len(players) == 2 && players[0].GameID == 0 && players[1].GameID == 1
	}, 2*time.Second, 10*time.Millisecond, "los ids quedan densos tras la salida")
	assert.True(t, hstore.GameActive())
	assert.Equal(t, "Carla", hstore.Players()[1].Name)

	// La segunda salida baja de dos jugadores y fuerza el final.
	c2.Leave()
	over := recv(t, hui.over, "el final por desconexión")
	assert.Equal(t, protocol.OverReasonDisconnect, over.Reason)
	assert.False(t, hstore.GameActive())
}

func TestHostDepartureIsCritical(t *testing.T) {
	net := transport.NewNetwork()
	host, _, _, cui, _, cstore := startTwoPlayerGame(t, net, "SOL")

	host.Leave()

	over := recv(t, cui.over, "el aviso de cierre")
	assert.Equal(t, protocol.OverReasonHostLeft, over.Reason)
	recv(t, cui.critical, "la desconexión crítica")
	require.Eventually(t, func() bool { return cstore.RoomState() == state.RoomIdle }, 2*time.Second, 10*time.Millisecond)
}

func TestLocalGame(t *testing.T) {
	net := transport.NewNetwork()
	coord, rec, store := newPeer(t, net, "GATO")

	require.NoError(t, coord.StartLocalGame([]string{"Ana", "Beto"}, words.DifficultyEasy))
	payload := recv(t, rec.started, "el inicio local")
	assert.Equal(t, 4, payload.WordLength)
	assert.False(t, store.Networked())

	// Pasa y juega: el turno manda, no hay id propio.
	coord.SubmitGuess("g")
	res := recv(t, rec.guesses, "la primera letra")
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.NextPlayerID)

	coord.SubmitGuess("a")
	recv(t, rec.guesses, "la segunda letra")
	coord.SubmitGuess("t")
	recv(t, rec.guesses, "la tercera letra")
	coord.SubmitGuess("o")
	over := recv(t, rec.over, "el final")
	assert.Equal(t, protocol.OverReasonWordSolved, over.Reason)
	require.Len(t, over.Winners, 1)
	assert.Equal(t, "Beto", over.Winners[0].Name, "resolvió quien jugó la última letra")
}

func TestStartLocalGameWithoutNames(t *testing.T) {
	net := transport.NewNetwork()
	coord, rec, store := newPeer(t, net, "SOL")

	require.NoError(t, coord.StartLocalGame(nil, words.DifficultyEasy))
	recv(t, rec.started, "el inicio")
	players := store.Players()
	require.Len(t, players, 1)
	assert.Equal(t, "Jugador 1", players[0].Name)
}

func TestChatRelayedThroughHost(t *testing.T) {
	net := transport.NewNetwork()
	_, client, hui, _, _, _ := startTwoPlayerGame(t, net, "SOL")

	client.SendChat("hola a todos")
	msg := recv(t, hui.chats, "el chat en el host")
	assert.Equal(t, "Beto", msg[0])
	assert.Equal(t, "hola a todos", msg[1])
}

func TestHostRoomWhileBusy(t *testing.T) {
	net := transport.NewNetwork()
	host, _, _, _, _, _ := startTwoPlayerGame(t, net, "SOL")

	err := host.HostRoom(context.Background(), session.Profile{Name: "Ana"}, state.Settings{})
	assert.ErrorIs(t, err, session.ErrBusy)
}

func TestDuplicateJoinRequestIgnored(t *testing.T) {
	net := transport.NewNetwork()
	ctx := context.Background()

	host, hui, hstore := newPeer(t, net, "SOL")
	require.NoError(t, host.HostRoom(ctx, session.Profile{Name: "Ana"}, state.Settings{Difficulty: words.DifficultyEasy}))
	recv(t, hui.showLobby, "el lobby del host")

	// Peer crudo que habla el protocolo directamente sobre el transporte.
	raw := net.NewTransport()
	t.Cleanup(func() { _ = raw.Close() })
	_, err := raw.Initialize(ctx, "")
	require.NoError(t, err)
	conn, err := raw.Connect(ctx, host.LocalAddr())
	require.NoError(t, err)

	join, err := protocol.Encode(protocol.KindJoinRequest, protocol.JoinRequestPayload{Name: "Beto"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(join))

	require.Eventually(t, func() bool {
		return len(hstore.Players()) == 2
	}, 2*time.Second, 10*time.Millisecond, "el ingreso de Beto")

	// El mismo joinRequest otra vez sobre la misma conexión no debe acuñar
	// un segundo jugador con la misma dirección.
	require.NoError(t, conn.Send(join))
	time.Sleep(100 * time.Millisecond)

	players := hstore.Players()
	require.Len(t, players, 2)
	seen := map[string]bool{}
	for _, p := range players {
		assert.False(t, seen[p.Addr], "dirección repetida en la sala: %s", p.Addr)
		seen[p.Addr] = true
	}
}
