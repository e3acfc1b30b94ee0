package transport

import "encoding/json"

// Envelope is the relay wire format. The relay server routes by To and
// rewrites From on every inbound envelope, so peers cannot spoof a source.
type Envelope struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Envelope types understood by the relay and its clients.
const (
	EnvHello   = "hello"   // client -> relay: request an address
	EnvWelcome = "welcome" // relay -> client: assigned address in From
	EnvConnect = "connect" // open a logical channel to To
	EnvAccept  = "accept"  // channel accepted by the remote peer
	EnvData    = "data"    // application payload for To
	EnvClose   = "close"   // peer closed the logical channel
	EnvGone    = "gone"    // relay -> client: the peer in From disconnected
	EnvError   = "error"   // relay -> client: routing failure
)
