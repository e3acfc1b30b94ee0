package session

import (
	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/rules"
)

// Callbacks is the notification surface exposed to the UI collaborator.
// All callbacks are invoked from the coordinator's event loop and must not
// block; the UI only reads state through the store.
type Callbacks interface {
	ShowLobby(isHost bool)
	LobbyUpdated()
	GameStarted(snapshot protocol.GameStartedPayload)
	GuessApplied(result rules.GuessResult)
	FullStateSynced()
	ClueRevealed(clue string)
	GameOver(data protocol.GameOverPayload)
	ChatReceived(from, message string)
	NetworkError(message string, critical bool)
	CriticalDisconnect()
}

// NopCallbacks discards every notification. Embed it to implement only the
// callbacks a UI cares about.
type NopCallbacks struct{}

func (NopCallbacks) ShowLobby(bool)                           {}
func (NopCallbacks) LobbyUpdated()                            {}
func (NopCallbacks) GameStarted(protocol.GameStartedPayload)  {}
func (NopCallbacks) GuessApplied(rules.GuessResult)           {}
func (NopCallbacks) FullStateSynced()                         {}
func (NopCallbacks) ClueRevealed(string)                      {}
func (NopCallbacks) GameOver(protocol.GameOverPayload)        {}
func (NopCallbacks) ChatReceived(string, string)              {}
func (NopCallbacks) NetworkError(string, bool)                {}
func (NopCallbacks) CriticalDisconnect()                      {}
