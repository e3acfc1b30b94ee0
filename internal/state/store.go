package state

import (
	"strings"
	"sync"

	"github.com/ignacio82/ahorcado/internal/utils"
)

// Store is the session state store. The coordinator (and the rules engine it
// invokes) are the only writers; the UI collaborator only reads. The mutex
// keeps reads from other goroutines safe while the coordinator's event loop
// runs mutations to completion one at a time.
type Store struct {
	mu sync.Mutex

	networked bool
	roomState RoomState

	// Network room view (meta; players held separately below).
	room Room

	players []Player

	// Per-round guess state, shared by the local and networked views.
	currentWord     string // display form, uppercase
	normalizedWord  string // derived, cached on every word change
	definition      string
	guessedLetters  []string // normalized lowercase, deduplicated, insertion order
	clueUsed        bool
	currentPlayerID int
	gameActive      bool
	turnCounter     int
}

func NewStore() *Store {
	return &Store{
		roomState:       RoomIdle,
		currentPlayerID: -1,
	}
}

// --- room lifecycle ---

func (s *Store) RoomState() RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomState
}

func (s *Store) SetRoomState(rs RoomState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomState = rs
}

func (s *Store) Networked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networked
}

// Room returns a deep copy of the network room view, players included.
func (s *Store) Room() Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomLocked()
}

func (s *Store) roomLocked() Room {
	out := s.room
	out.State = s.roomState
	out.TurnCounter = s.turnCounter
	out.Players = make([]Player, len(s.players))
	copy(out.Players, s.players)
	return out
}

// SetNetworkRoomData replaces the room view wholesale and marks the session
// as networked. The incoming room is cloned so no caller retains aliases.
func (s *Store) SetNetworkRoomData(room Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := room.Clone()
	s.players = r.Players
	r.Players = nil
	s.room = r
	s.roomState = r.State
	s.turnCounter = r.TurnCounter
	s.networked = true
}

// --- players ---

// Players returns a copy of the player list in turn order.
func (s *Store) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, len(s.players))
	copy(out, s.players)
	return out
}

func (s *Store) SetPlayers(players []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make([]Player, len(players))
	copy(s.players, players)
}

func (s *Store) PlayerByAddr(addr string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.Addr == addr {
			return p, true
		}
	}
	return Player{}, false
}

func (s *Store) PlayerByID(id int) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.GameID == id {
			return p, true
		}
	}
	return Player{}, false
}

// UpdatePlayer applies fn to the player with the given id, in place.
func (s *Store) UpdatePlayer(id int, fn func(*Player)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.players {
		if s.players[i].GameID == id {
			fn(&s.players[i])
			return true
		}
	}
	return false
}

// AddPlayer appends a player, assigning the next dense game id, and returns
// the id.
func (s *Store) AddPlayer(p Player) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.GameID = len(s.players)
	s.players = append(s.players, p)
	return p.GameID
}

// RemovePlayerByAddr drops the player with the given transport address and
// renumbers the survivors densely from 0, preserving relative order.
func (s *Store) RemovePlayerByAddr(addr string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.players {
		if p.Addr == addr {
			s.players = append(s.players[:i], s.players[i+1:]...)
			for j := range s.players {
				s.players[j].GameID = j
			}
			return p, true
		}
	}
	return Player{}, false
}

// --- guess state ---

func (s *Store) CurrentWord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentWord
}

// SetCurrentWord stores the word in uppercase display form and derives its
// normalized form as a side effect.
func (s *Store) SetCurrentWord(word, definition string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentWord = strings.ToUpper(strings.TrimSpace(word))
	s.normalizedWord = utils.NormalizeString(word)
	s.definition = definition
}

func (s *Store) NormalizedWord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalizedWord
}

func (s *Store) Definition() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.definition
}

func (s *Store) GuessedLetters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.guessedLetters))
	copy(out, s.guessedLetters)
	return out
}

// SetGuessedLetters replaces the guessed set, lowercasing and deduplicating.
func (s *Store) SetGuessedLetters(letters []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guessedLetters = s.guessedLetters[:0]
	seen := make(map[string]bool, len(letters))
	for _, l := range letters {
		l = strings.ToLower(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		s.guessedLetters = append(s.guessedLetters, l)
	}
}

// AddGuessedLetter appends a normalized letter. Returns false when the letter
// was already present; the set only grows within a round.
func (s *Store) AddGuessedLetter(letter string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter = strings.ToLower(letter)
	for _, l := range s.guessedLetters {
		if l == letter {
			return false
		}
	}
	s.guessedLetters = append(s.guessedLetters, letter)
	return true
}

func (s *Store) ClueUsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clueUsed
}

func (s *Store) SetClueUsed(used bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clueUsed = used
}

func (s *Store) CurrentPlayerID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPlayerID
}

func (s *Store) SetCurrentPlayerID(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlayerID = id
}

func (s *Store) GameActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameActive
}

// SetGameActive toggles the play phase. The derived room state stays
// consistent with the documented transitions: activating enters playing,
// deactivating a playing room enters game_over.
func (s *Store) SetGameActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameActive = active
	if active {
		s.roomState = RoomPlaying
	} else if s.roomState == RoomPlaying {
		s.roomState = RoomGameOver
	}
}

// IncrementTurnCounter bumps the host-owned monotonic counter.
func (s *Store) IncrementTurnCounter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnCounter++
	return s.turnCounter
}

func (s *Store) TurnCounter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCounter
}

// --- cross-cutting resets ---

// ResetGameFlowState clears the per-round guess state, leaving room and
// players in place. The room returns to the lobby phase when it was playing
// or finished.
func (s *Store) ResetGameFlowState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentWord = ""
	s.normalizedWord = ""
	s.definition = ""
	s.guessedLetters = nil
	s.clueUsed = false
	s.currentPlayerID = -1
	s.gameActive = false
	if s.roomState == RoomPlaying || s.roomState == RoomGameOver {
		s.roomState = RoomLobby
	}
}

// ResetFullLocalStateForNewScreen returns the store to the pre-session idle
// state, dropping the room, the players and all round state.
func (s *Store) ResetFullLocalStateForNewScreen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networked = false
	s.room = Room{}
	s.players = nil
	s.currentWord = ""
	s.normalizedWord = ""
	s.definition = ""
	s.guessedLetters = nil
	s.clueUsed = false
	s.currentPlayerID = -1
	s.gameActive = false
	s.turnCounter = 0
	s.roomState = RoomIdle
}

// --- snapshots ---

// Snapshot captures the complete room+game state for broadcast.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	letters := make([]string, len(s.guessedLetters))
	copy(letters, s.guessedLetters)
	return Snapshot{
		Room: s.roomLocked(),
		Game: GameSnapshot{
			Word:            s.currentWord,
			Definition:      s.definition,
			GuessedLetters:  letters,
			ClueUsed:        s.clueUsed,
			CurrentPlayerID: s.currentPlayerID,
			Active:          s.gameActive,
		},
	}
}

// ApplySnapshot overwrites the replica wholesale with the host's snapshot.
// Clients never merge; this keeps reconciliation trivially idempotent.
func (s *Store) ApplySnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := snap.Room.Clone()
	s.players = r.Players
	r.Players = nil
	s.room = r
	s.roomState = r.State
	s.turnCounter = r.TurnCounter
	s.networked = true

	s.currentWord = strings.ToUpper(strings.TrimSpace(snap.Game.Word))
	s.normalizedWord = utils.NormalizeString(snap.Game.Word)
	s.definition = snap.Game.Definition
	s.guessedLetters = nil
	seen := make(map[string]bool, len(snap.Game.GuessedLetters))
	for _, l := range snap.Game.GuessedLetters {
		l = strings.ToLower(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		s.guessedLetters = append(s.guessedLetters, l)
	}
	s.clueUsed = snap.Game.ClueUsed
	s.currentPlayerID = snap.Game.CurrentPlayerID
	s.gameActive = snap.Game.Active
}
