// Package protocol defines the closed set of messages hosts and clients
// exchange. Every message travels as an envelope {type, payload}; handlers
// switch exhaustively on Kind and treat anything else as a protocol error.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind tags one message type on the wire.
type Kind string

const (
	KindJoinRequest   Kind = "joinRequest"
	KindJoinAccepted  Kind = "joinAccepted"
	KindJoinRejected  Kind = "joinRejected"
	KindPlayerReady   Kind = "playerReadyChanged"
	KindPlayerLeft    Kind = "playerLeft"
	KindGameStarted   Kind = "gameStarted"
	KindLetterGuess   Kind = "letterGuess"
	KindClueRequest   Kind = "clueRequest"
	KindGuessResult   Kind = "guessResult"
	KindClueProvided  Kind = "clueProvided"
	KindFullGameState Kind = "fullGameState"
	KindGameOver      Kind = "gameOverAnnouncement"
	KindError         Kind = "errorMessage"
	KindChat          Kind = "chatMessage"
)

// Message is the wire envelope.
type Message struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a payload in an envelope and serializes it.
func Encode(kind Kind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("codificando payload %s: %w", kind, err)
	}
	msg := Message{Type: kind, Payload: raw}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("codificando mensaje %s: %w", kind, err)
	}
	return data, nil
}

// DecodeMessage parses an envelope from the wire.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("mensaje malformado: %w", err)
	}
	return msg, nil
}
