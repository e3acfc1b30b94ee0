package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
	"github.com/ignacio82/ahorcado/internal/words"
)

func (c *Coordinator) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpen:
		c.log.Info().Str("addr", ev.Addr).Msg("transporte listo")
	case transport.EventIncomingConn:
		c.acceptIncoming(ev.Conn)
	case transport.EventData:
		msg, err := protocol.DecodeMessage(ev.Data)
		if err != nil {
			c.log.Warn().Err(err).Str("remoto", ev.Conn.RemoteAddr()).Msg("mensaje descartado")
			return
		}
		if c.isHost {
			c.handleHostMessage(ev.Conn, msg)
		} else {
			c.handleClientMessage(ev.Conn, msg)
		}
	case transport.EventClose:
		c.handleClose(ev.Conn)
	case transport.EventError:
		if ev.Err != nil {
			c.log.Error().Err(ev.Err).Msg("error de transporte")
			c.cb.NetworkError(ev.Err.Error(), false)
		}
	}
}

func (c *Coordinator) acceptIncoming(conn transport.Conn) {
	if !c.isHost {
		c.log.Warn().Str("remoto", conn.RemoteAddr()).Msg("conexión entrante rechazada, este peer no es host")
		_ = conn.Close()
		return
	}
	c.conns[conn] = &connEntry{conn: conn, playerGameID: -1, status: statusAwaitingRequest}
	c.log.Info().Str("remoto", conn.RemoteAddr()).Msg("conexión entrante, esperando solicitud de ingreso")
}

func (c *Coordinator) handleClose(conn transport.Conn) {
	entry, ok := c.conns[conn]
	if !ok {
		return
	}
	delete(c.conns, conn)
	if !c.isHost {
		if conn == c.hostConn {
			c.hostLost()
		}
		return
	}
	c.hostHandleDeparture(entry)
}

// --- shared user actions ---

func (c *Coordinator) startLocal(names []string, difficulty words.Difficulty) error {
	if rs := c.store.RoomState(); rs != state.RoomIdle && rs != state.RoomGameOver {
		return ErrBusy
	}
	players := make([]state.Player, len(names))
	for i, name := range names {
		players[i] = state.Player{GameID: i, Name: name, IsConnected: true}
	}
	if err := c.engine.InitializeRound(players, difficulty); err != nil {
		return fmt.Errorf("iniciando partida local: %w", err)
	}
	c.log.Info().Int("jugadores", len(players)).Str("dificultad", string(difficulty)).Msg("partida local iniciada")
	c.cb.GameStarted(c.gameStartedPayload(state.Settings{Difficulty: difficulty}))
	return nil
}

func (c *Coordinator) applyReady(ready bool) {
	if !c.store.Networked() {
		return
	}
	if c.isHost {
		c.setPlayerReady(c.myPlayerID, ready)
		return
	}
	c.sendToHost(protocol.KindPlayerReady, protocol.PlayerReadyPayload{PlayerID: c.myPlayerID, IsReady: ready})
}

func (c *Coordinator) submitGuess(letter string) {
	if c.isHost || !c.store.Networked() {
		id := c.myPlayerID
		if !c.store.Networked() {
			// Pass-and-play: whoever holds the turn is at the device.
			id = c.store.CurrentPlayerID()
		}
		c.hostApplyGuess(id, letter, nil)
		return
	}
	c.sendToHost(protocol.KindLetterGuess, protocol.LetterGuessPayload{Letter: letter, PlayerID: c.myPlayerID})
}

func (c *Coordinator) submitClue() {
	if c.isHost || !c.store.Networked() {
		id := c.myPlayerID
		if !c.store.Networked() {
			id = c.store.CurrentPlayerID()
		}
		c.hostApplyClue(id, nil)
		return
	}
	c.sendToHost(protocol.KindClueRequest, protocol.ClueRequestPayload{PlayerID: c.myPlayerID})
}

func (c *Coordinator) submitChat(text string) {
	if text == "" || !c.store.Networked() {
		return
	}
	from := c.localName()
	if c.isHost {
		c.deliverChat(from, text)
		return
	}
	c.sendToHost(protocol.KindChat, protocol.ChatPayload{From: from, Message: text})
}

func (c *Coordinator) leave() {
	c.stopRefresher()
	if c.isHost {
		c.broadcast(protocol.KindGameOver, protocol.GameOverPayload{
			FinalScores: c.scoreboard(),
			FinalWord:   c.store.CurrentWord(),
			Reason:      protocol.OverReasonHostLeft,
		})
		if c.dir != nil {
			roomID := c.store.Room().RoomID
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := c.dir.DeleteRoom(ctx, roomID); err != nil {
					c.log.Warn().Err(err).Msg("no se pudo retirar la sala del directorio")
				}
			}()
		}
	} else if c.hostConn != nil {
		_ = c.hostConn.Close()
	}
	c.teardown()
}

// teardown drops every connection and resets the replica to the pre-session
// screen. Safe to call from any terminal path.
func (c *Coordinator) teardown() {
	c.stopRefresher()
	for conn := range c.conns {
		_ = conn.Close()
	}
	c.conns = make(map[transport.Conn]*connEntry)
	c.hostConn = nil
	c.isHost = false
	c.myPlayerID = -1
	c.store.ResetFullLocalStateForNewScreen()
}

// --- send helpers ---

func (c *Coordinator) sendTo(conn transport.Conn, kind protocol.Kind, payload any) {
	data, err := protocol.Encode(kind, payload)
	if err != nil {
		c.log.Error().Err(err).Str("tipo", string(kind)).Msg("no se pudo codificar el mensaje")
		return
	}
	if err := conn.Send(data); err != nil {
		c.log.Warn().Err(err).Str("remoto", conn.RemoteAddr()).Str("tipo", string(kind)).Msg("no se pudo enviar el mensaje")
	}
}

func (c *Coordinator) broadcast(kind protocol.Kind, payload any) {
	if len(c.conns) == 0 {
		return
	}
	data, err := protocol.Encode(kind, payload)
	if err != nil {
		c.log.Error().Err(err).Str("tipo", string(kind)).Msg("no se pudo codificar el mensaje")
		return
	}
	for conn, entry := range c.conns {
		if entry.status != statusActive {
			continue
		}
		if err := conn.Send(data); err != nil {
			c.log.Warn().Err(err).Str("remoto", conn.RemoteAddr()).Str("tipo", string(kind)).Msg("no se pudo enviar el mensaje")
		}
	}
}

// broadcastFullState pushes the authoritative snapshot to every peer. Clients
// overwrite their replica wholesale, so resending it is always safe.
func (c *Coordinator) broadcastFullState() {
	c.broadcast(protocol.KindFullGameState, c.store.Snapshot())
}

func (c *Coordinator) sendToHost(kind protocol.Kind, payload any) {
	if c.hostConn == nil {
		c.log.Warn().Str("tipo", string(kind)).Msg("sin conexión con el host")
		return
	}
	c.sendTo(c.hostConn, kind, payload)
}

func (c *Coordinator) deliverChat(from, text string) {
	c.broadcast(protocol.KindChat, protocol.ChatPayload{From: from, Message: text})
	c.cb.ChatReceived(from, text)
}

func (c *Coordinator) localName() string {
	if p, ok := c.store.PlayerByID(c.myPlayerID); ok {
		return p.Name
	}
	return "?"
}

func (c *Coordinator) gameStartedPayload(settings state.Settings) protocol.GameStartedPayload {
	return protocol.GameStartedPayload{
		Settings:         settings,
		WordLength:       len([]rune(c.store.NormalizedWord())),
		GuessedLetters:   c.store.GuessedLetters(),
		Players:          c.store.Players(),
		StartingPlayerID: c.store.CurrentPlayerID(),
	}
}

func (c *Coordinator) scoreboard() []rules.PlayerScore {
	players := c.store.Players()
	out := make([]rules.PlayerScore, 0, len(players))
	for _, p := range players {
		out = append(out, rules.PlayerScore{PlayerID: p.GameID, Name: p.Name, Score: p.Score})
	}
	return out
}
