// Package state holds the single in-process representation of room and game
// state: authoritative on the host, a replica overwritten wholesale on each
// snapshot on clients. All getters return defensive copies so the coordinator,
// the wire payloads and the UI never alias the same slices.
package state

import (
	"github.com/ignacio82/ahorcado/internal/words"
)

// RoomState is the lifecycle phase of a session.
type RoomState string

const (
	RoomIdle              RoomState = "idle"
	RoomCreating          RoomState = "creating_room"
	RoomSeekingMatch      RoomState = "seeking_match"
	RoomConnecting        RoomState = "connecting_to_lobby"
	RoomAwaitingApproval  RoomState = "awaiting_join_approval"
	RoomLobby             RoomState = "lobby"
	RoomPlaying           RoomState = "playing"
	RoomGameOver          RoomState = "game_over"
)

// Settings are the host-chosen room options.
type Settings struct {
	Difficulty words.Difficulty `json:"difficulty"`
}

// Player is one participant, local or remote. GameID is dense and unique
// within the room; the stable identity is Addr plus the profile fields.
type Player struct {
	GameID            int    `json:"gameId"`
	Addr              string `json:"addr"`
	Name              string `json:"name"`
	Icon              string `json:"icon"`
	Color             string `json:"color"`
	IsReady           bool   `json:"isReady"`
	IsConnected       bool   `json:"isConnected"`
	Score             int    `json:"score"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
}

// Room describes one game session. RoomID equals the host's transport address
// and never changes for the lifetime of the room.
type Room struct {
	RoomID      string    `json:"roomId"`
	HostAddress string    `json:"hostAddress"`
	MinPlayers  int       `json:"minPlayers"`
	MaxPlayers  int       `json:"maxPlayers"`
	Settings    Settings  `json:"settings"`
	State       RoomState `json:"state"`
	TurnCounter int       `json:"turnCounter"`
	Players     []Player  `json:"players"`
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	out := r
	out.Players = make([]Player, len(r.Players))
	copy(out.Players, r.Players)
	return out
}

// GameSnapshot is the per-round guess state as carried in a full-state
// broadcast.
type GameSnapshot struct {
	Word            string   `json:"word"`
	Definition      string   `json:"definition"`
	GuessedLetters  []string `json:"guessedLetters"`
	ClueUsed        bool     `json:"clueUsed"`
	CurrentPlayerID int      `json:"currentPlayerId"`
	Active          bool     `json:"active"`
}

// Snapshot is the complete serialized room+game state a host pushes to all
// peers for authoritative reconciliation.
type Snapshot struct {
	Room Room         `json:"room"`
	Game GameSnapshot `json:"game"`
}
