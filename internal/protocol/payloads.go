package protocol

import (
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/state"
)

// Join rejection reasons.
const (
	RejectRoomFull       = "room_full"
	RejectGameInProgress = "game_in_progress"
)

// Game-over reasons.
const (
	OverReasonWordSolved   = "word_solved"
	OverReasonAttemptsOut  = "attempts_exhausted"
	OverReasonDisconnect   = "disconnect_insufficient_players"
	OverReasonHostLeft     = "host_left"
)

// JoinRequestPayload is a client's request to enter a room.
type JoinRequestPayload struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// JoinAcceptedPayload assigns the joiner its player id and seeds its replica.
type JoinAcceptedPayload struct {
	YourPlayerID int            `json:"yourPlayerId"`
	Snapshot     state.Snapshot `json:"roomSnapshot"`
}

type JoinRejectedPayload struct {
	Reason string `json:"reason"`
}

type PlayerReadyPayload struct {
	PlayerID int  `json:"playerId"`
	IsReady  bool `json:"isReady"`
}

// PlayerLeftPayload is informational; a full-state broadcast always follows.
type PlayerLeftPayload struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
}

// GameStartedPayload initializes a client's local game view. It carries only
// the word's length; clients receive the word itself through the state
// snapshots that follow, so peers are trusted not to peek.
type GameStartedPayload struct {
	Settings         state.Settings `json:"settings"`
	WordLength       int            `json:"wordLength"`
	GuessedLetters   []string       `json:"guessedLetters"`
	Players          []state.Player `json:"playersInOrder"`
	StartingPlayerID int            `json:"startingPlayerId"`
}

type LetterGuessPayload struct {
	Letter   string `json:"letter"`
	PlayerID int    `json:"playerId"`
}

type ClueRequestPayload struct {
	PlayerID int `json:"playerId"`
}

// GuessResultPayload drives incremental UI feedback between snapshots.
type GuessResultPayload = rules.GuessResult

type ClueProvidedPayload struct {
	Clue     string `json:"clue"`
	ClueUsed bool   `json:"clueUsed"`
}

// FullStatePayload is the authoritative reconciliation snapshot. Clients
// overwrite their replica wholesale, never merge.
type FullStatePayload = state.Snapshot

// GameOverPayload is the terminal notification for a round.
type GameOverPayload struct {
	Winners     []state.Player      `json:"winnerData"`
	IsTie       bool                `json:"isTie"`
	FinalScores []rules.PlayerScore `json:"finalScores"`
	FinalWord   string              `json:"finalWord"`
	Reason      string              `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ChatPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}
