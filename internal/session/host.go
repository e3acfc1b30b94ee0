package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignacio82/ahorcado/internal/protocol"
	"github.com/ignacio82/ahorcado/internal/relay"
	"github.com/ignacio82/ahorcado/internal/rules"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/transport"
)

// becomeHost seeds the authoritative room with this peer as player 0. The
// room id is the host's own transport address.
func (c *Coordinator) becomeHost(profile Profile, settings state.Settings) error {
	addr := c.LocalAddr()
	if addr == "" {
		return errors.New("el transporte no está inicializado")
	}
	c.store.SetNetworkRoomData(state.Room{
		RoomID:      addr,
		HostAddress: addr,
		MinPlayers:  DefaultMinPlayers,
		MaxPlayers:  DefaultMaxPlayers,
		Settings:    settings,
		State:       state.RoomLobby,
		Players: []state.Player{{
			GameID:      0,
			Addr:        addr,
			Name:        profile.Name,
			Icon:        profile.Icon,
			Color:       profile.Color,
			IsConnected: true,
		}},
	})
	c.isHost = true
	c.myPlayerID = 0
	c.log.Info().Str("sala", addr).Msg("sala creada, este peer es el host")
	return nil
}

func (c *Coordinator) handleHostMessage(conn transport.Conn, msg protocol.Message) {
	entry, ok := c.conns[conn]
	if !ok {
		c.log.Warn().Str("remoto", conn.RemoteAddr()).Msg("mensaje de una conexión desconocida")
		return
	}

	switch msg.Type {
	case protocol.KindJoinRequest:
		var p protocol.JoinRequestPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("joinRequest malformado")
			return
		}
		c.handleJoinRequest(entry, p)

	case protocol.KindPlayerReady:
		if entry.status != statusActive {
			return
		}
		var p protocol.PlayerReadyPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("playerReadyChanged malformado")
			return
		}
		c.setPlayerReady(entry.playerGameID, p.IsReady)

	case protocol.KindLetterGuess:
		if entry.status != statusActive {
			return
		}
		var p protocol.LetterGuessPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("letterGuess malformado")
			return
		}
		c.hostApplyGuess(entry.playerGameID, p.Letter, entry)

	case protocol.KindClueRequest:
		if entry.status != statusActive {
			return
		}
		c.hostApplyClue(entry.playerGameID, entry)

	case protocol.KindChat:
		if entry.status != statusActive {
			return
		}
		var p protocol.ChatPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("chatMessage malformado")
			return
		}
		from := "?"
		if pl, ok := c.store.PlayerByID(entry.playerGameID); ok {
			from = pl.Name
		}
		c.deliverChat(from, p.Message)

	default:
		c.log.Warn().Str("tipo", string(msg.Type)).Msg("mensaje inesperado para el host")
	}
}

func (c *Coordinator) handleJoinRequest(entry *connEntry, p protocol.JoinRequestPayload) {
	if entry.status != statusAwaitingRequest {
		// A second joinRequest on the same connection would mint a second
		// player sharing the address.
		c.log.Warn().Str("remoto", entry.conn.RemoteAddr()).Msg("joinRequest repetido, ignorado")
		return
	}
	if c.store.RoomState() != state.RoomLobby {
		c.reject(entry, protocol.RejectGameInProgress)
		return
	}
	room := c.store.Room()
	if len(room.Players) >= room.MaxPlayers {
		c.reject(entry, protocol.RejectRoomFull)
		return
	}

	id := c.store.AddPlayer(state.Player{
		Addr:        entry.conn.RemoteAddr(),
		Name:        p.Name,
		Icon:        p.Icon,
		Color:       p.Color,
		IsConnected: true,
	})
	entry.playerGameID = id
	entry.status = statusActive
	c.log.Info().Str("jugador", p.Name).Int("id", id).Msg("jugador admitido en la sala")

	c.sendTo(entry.conn, protocol.KindJoinAccepted, protocol.JoinAcceptedPayload{
		YourPlayerID: id,
		Snapshot:     c.store.Snapshot(),
	})
	c.broadcastFullState()
	c.cb.LobbyUpdated()

	n := len(c.store.Players())
	c.updateListing(relay.RoomUpdate{CurrentPlayers: &n})
}

func (c *Coordinator) reject(entry *connEntry, reason string) {
	c.log.Info().Str("motivo", reason).Str("remoto", entry.conn.RemoteAddr()).Msg("solicitud de ingreso rechazada")
	c.sendTo(entry.conn, protocol.KindJoinRejected, protocol.JoinRejectedPayload{Reason: reason})
	delete(c.conns, entry.conn)
	_ = entry.conn.Close()
}

func (c *Coordinator) setPlayerReady(id int, ready bool) {
	if !c.store.UpdatePlayer(id, func(p *state.Player) { p.IsReady = ready }) {
		return
	}
	c.broadcastFullState()
	c.cb.LobbyUpdated()
}

func (c *Coordinator) startNetworkedGame() error {
	if !c.isHost {
		return errors.New("solo el host puede iniciar la partida")
	}
	if c.store.RoomState() != state.RoomLobby {
		return errors.New("la sala no está en el lobby")
	}
	room := c.store.Room()
	if len(room.Players) < room.MinPlayers {
		return fmt.Errorf("se necesitan al menos %d jugadores", room.MinPlayers)
	}
	for _, p := range room.Players {
		if !p.IsReady {
			return fmt.Errorf("%s todavía no está listo", p.Name)
		}
	}

	if err := c.engine.InitializeRound(room.Players, room.Settings.Difficulty); err != nil {
		return fmt.Errorf("iniciando la ronda: %w", err)
	}
	c.log.Info().Int("jugadores", len(room.Players)).Str("dificultad", string(room.Settings.Difficulty)).Msg("partida iniciada")

	payload := c.gameStartedPayload(room.Settings)
	c.broadcast(protocol.KindGameStarted, payload)
	c.broadcastFullState()
	c.cb.GameStarted(payload)

	status := relay.RoomStatusPlaying
	c.updateListing(relay.RoomUpdate{Status: &status})
	return nil
}

// hostApplyGuess validates and applies one guess. A guess out of turn or
// outside an active round is discarded silently: the next snapshot broadcast
// corrects whatever stale view produced it.
func (c *Coordinator) hostApplyGuess(playerID int, letter string, from *connEntry) {
	if !c.store.GameActive() || c.store.CurrentPlayerID() != playerID {
		c.log.Debug().Int("jugador", playerID).Str("letra", letter).Msg("intento fuera de turno descartado")
		return
	}
	res, err := c.engine.ProcessGuess(letter)
	if err != nil {
		if errors.Is(err, rules.ErrInvalidLetter) {
			c.replyError(from, err.Error())
		}
		return
	}
	c.store.IncrementTurnCounter()

	c.broadcast(protocol.KindGuessResult, res)
	c.broadcastFullState()
	c.cb.GuessApplied(res)

	if res.GameOver {
		reason := protocol.OverReasonAttemptsOut
		if res.WordSolved {
			reason = protocol.OverReasonWordSolved
		}
		c.finishRound(reason)
	}
}

func (c *Coordinator) hostApplyClue(playerID int, from *connEntry) {
	if !c.store.GameActive() || c.store.CurrentPlayerID() != playerID {
		c.log.Debug().Int("jugador", playerID).Msg("pedido de pista fuera de turno descartado")
		return
	}
	clue, err := c.engine.RequestClue()
	if err != nil {
		c.replyError(from, err.Error())
		return
	}
	c.broadcast(protocol.KindClueProvided, protocol.ClueProvidedPayload{Clue: clue, ClueUsed: true})
	c.broadcastFullState()
	c.cb.ClueRevealed(clue)
}

// replyError surfaces a recoverable failure only to whoever caused it. A nil
// entry means the action was local.
func (c *Coordinator) replyError(entry *connEntry, message string) {
	if entry == nil {
		c.cb.NetworkError(message, false)
		return
	}
	c.sendTo(entry.conn, protocol.KindError, protocol.ErrorPayload{Message: message})
}

func (c *Coordinator) finishRound(reason string) {
	winners := c.engine.ComputeWinners(c.store.Players())
	payload := protocol.GameOverPayload{
		Winners:     winners.Winners,
		IsTie:       winners.IsTie,
		FinalScores: c.scoreboard(),
		FinalWord:   c.store.CurrentWord(),
		Reason:      reason,
	}
	c.broadcast(protocol.KindGameOver, payload)
	c.broadcastFullState()
	c.cb.GameOver(payload)

	if c.recorder != nil {
		names := make([]string, 0, len(winners.Winners))
		for _, w := range winners.Winners {
			names = append(names, w.Name)
		}
		if err := c.recorder.RecordResult(payload.FinalScores, names); err != nil {
			c.log.Warn().Err(err).Msg("no se pudo guardar el resultado de la partida")
		}
	}

	status := relay.RoomStatusOpen
	c.updateListing(relay.RoomUpdate{Status: &status})
}

// hostHandleDeparture removes the departed player, renumbers the rest densely
// and repairs whose turn it is. Player ids always stay 0..n-1 in turn order.
func (c *Coordinator) hostHandleDeparture(entry *connEntry) {
	if entry.playerGameID < 0 {
		return
	}
	curID := c.store.CurrentPlayerID()
	var curAddr string
	if p, ok := c.store.PlayerByID(curID); ok {
		curAddr = p.Addr
	}
	removed, ok := c.store.RemovePlayerByAddr(entry.conn.RemoteAddr())
	if !ok {
		return
	}
	c.log.Info().Str("jugador", removed.Name).Int("id", removed.GameID).Msg("jugador desconectado")

	wasActive := c.store.GameActive()
	players := c.store.Players()
	if wasActive && len(players) > 0 {
		if removed.Addr == curAddr {
			// The departed player held the turn: it passes to whoever now
			// occupies their old slot, wrapping at the end of the order.
			c.store.SetCurrentPlayerID(removed.GameID % len(players))
		} else if p, ok := c.store.PlayerByAddr(curAddr); ok {
			c.store.SetCurrentPlayerID(p.GameID)
		}
	}

	c.broadcast(protocol.KindPlayerLeft, protocol.PlayerLeftPayload{PlayerID: removed.GameID, Name: removed.Name})
	c.broadcastFullState()
	c.cb.LobbyUpdated()

	room := c.store.Room()
	if wasActive && len(players) < room.MinPlayers {
		c.log.Info().Int("restantes", len(players)).Msg("jugadores insuficientes, la ronda termina")
		c.store.SetGameActive(false)
		c.finishRound(protocol.OverReasonDisconnect)
	}

	n := len(players)
	c.updateListing(relay.RoomUpdate{CurrentPlayers: &n})
}
