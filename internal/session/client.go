package session

import (
	"encoding/json"
	"fmt"

	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
)

// registerHostConn records the freshly opened connection to the host and
// sends the join request over it. Acceptance arrives asynchronously.
func (c *Coordinator) registerHostConn(conn transport.Conn, profile Profile) error {
	c.hostConn = conn
	c.conns[conn] = &connEntry{conn: conn, playerGameID: -1, status: statusPendingRequest}
	c.store.SetRoomState(state.RoomAwaitingApproval)

	data, err := protocol.Encode(protocol.KindJoinRequest, protocol.JoinRequestPayload{
		Name:  profile.Name,
		Icon:  profile.Icon,
		Color: profile.Color,
	})
	if err == nil {
		err = conn.Send(data)
	}
	if err != nil {
		delete(c.conns, conn)
		c.hostConn = nil
		_ = conn.Close()
		c.store.SetRoomState(state.RoomIdle)
		return fmt.Errorf("enviando solicitud de ingreso: %w", err)
	}
	c.log.Info().Str("host", conn.RemoteAddr()).Msg("solicitud de ingreso enviada")
	return nil
}

func (c *Coordinator) handleClientMessage(conn transport.Conn, msg protocol.Message) {
	if conn != c.hostConn {
		c.log.Warn().Str("remoto", conn.RemoteAddr()).Msg("mensaje de un peer que no es el host")
		return
	}

	switch msg.Type {
	case protocol.KindJoinAccepted:
		entry := c.conns[conn]
		if entry == nil || entry.status != statusPendingRequest {
			c.log.Warn().Msg("joinAccepted sin solicitud pendiente")
			return
		}
		var p protocol.JoinAcceptedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("joinAccepted malformado")
			return
		}
		entry.status = statusActive
		c.myPlayerID = p.YourPlayerID
		c.store.ApplySnapshot(p.Snapshot)
		c.log.Info().Int("id", p.YourPlayerID).Msg("ingreso aceptado")
		c.cb.ShowLobby(false)

	case protocol.KindJoinRejected:
		var p protocol.JoinRejectedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("joinRejected malformado")
			return
		}
		c.log.Warn().Str("motivo", p.Reason).Msg("ingreso rechazado")
		c.teardown()
		c.cb.NetworkError("ingreso rechazado: "+p.Reason, false)

	case protocol.KindGameStarted:
		var p protocol.GameStartedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("gameStarted malformado")
			return
		}
		c.cb.GameStarted(p)

	case protocol.KindGuessResult:
		var p protocol.GuessResultPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("guessResult malformado")
			return
		}
		c.cb.GuessApplied(p)

	case protocol.KindClueProvided:
		var p protocol.ClueProvidedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("clueProvided malformado")
			return
		}
		c.store.SetClueUsed(p.ClueUsed)
		c.cb.ClueRevealed(p.Clue)

	case protocol.KindFullGameState:
		var snap protocol.FullStatePayload
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			c.log.Warn().Err(err).Msg("fullGameState malformado")
			return
		}
		c.applySnapshot(snap)

	case protocol.KindPlayerLeft:
		var p protocol.PlayerLeftPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("playerLeft malformado")
			return
		}
		c.log.Info().Str("jugador", p.Name).Msg("un jugador dejó la sala")

	case protocol.KindGameOver:
		var p protocol.GameOverPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("gameOverAnnouncement malformado")
			return
		}
		c.store.SetGameActive(false)
		c.cb.GameOver(p)

	case protocol.KindError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("errorMessage malformado")
			return
		}
		c.cb.NetworkError(p.Message, false)

	case protocol.KindChat:
		var p protocol.ChatPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("chatMessage malformado")
			return
		}
		c.cb.ChatReceived(p.From, p.Message)

	default:
		c.log.Warn().Str("tipo", string(msg.Type)).Msg("mensaje inesperado para un cliente")
	}
}

// applySnapshot overwrites the replica wholesale and re-derives the local
// player id: departures renumber ids, so only the transport address is stable.
func (c *Coordinator) applySnapshot(snap state.Snapshot) {
	c.store.ApplySnapshot(snap)
	if p, ok := c.store.PlayerByAddr(c.LocalAddr()); ok {
		c.myPlayerID = p.GameID
	}
	c.cb.FullStateSynced()
}

// hostLost is the unrecoverable path: the authoritative state is gone, so the
// session resets to the pre-session screen.
func (c *Coordinator) hostLost() {
	c.log.Error().Msg("se perdió la conexión con el host")
	c.teardown()
	c.cb.CriticalDisconnect()
}
