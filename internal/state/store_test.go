package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRemovePlayersKeepsIDsDense(t *testing.T) {
	s := NewStore()

	id0 := s.AddPlayer(Player{Addr: "a", Name: "Ana"})
	id1 := s.AddPlayer(Player{Addr: "b", Name: "Beto"})
	id2 := s.AddPlayer(Player{Addr: "c", Name: "Carla"})
	assert.Equal(t, []int{0, 1, 2}, []int{id0, id1, id2})

	removed, ok := s.RemovePlayerByAddr("b")
	require.True(t, ok)
	assert.Equal(t, 1, removed.GameID)

	players := s.Players()
	require.Len(t, players, 2)
	assert.Equal(t, 0, players[0].GameID)
	assert.Equal(t, "Ana", players[0].Name)
	assert.Equal(t, 1, players[1].GameID)
	assert.Equal(t, "Carla", players[1].Name, "el orden relativo se conserva")

	_, ok = s.RemovePlayerByAddr("zz")
	assert.False(t, ok)
}

func TestSetCurrentWordDerivesNormalizedForm(t *testing.T) {
	s := NewStore()
	s.SetCurrentWord(" caMIÓn ", "vehículo de carga")

	assert.Equal(t, "CAMIÓN", s.CurrentWord())
	assert.Equal(t, "camion", s.NormalizedWord())
	assert.Equal(t, "vehículo de carga", s.Definition())

	s.SetCurrentWord("ARAÑA", "")
	assert.Equal(t, "araña", s.NormalizedWord(), "la ñ sobrevive la normalización")
}

func TestGuessedLettersDeduplicate(t *testing.T) {
	s := NewStore()

	assert.True(t, s.AddGuessedLetter("a"))
	assert.False(t, s.AddGuessedLetter("A"))
	assert.True(t, s.AddGuessedLetter("z"))
	assert.Equal(t, []string{"a", "z"}, s.GuessedLetters())

	s.SetGuessedLetters([]string{"B", "b", "", "c"})
	assert.Equal(t, []string{"b", "c"}, s.GuessedLetters())
}

func TestSetGameActiveDrivesRoomState(t *testing.T) {
	s := NewStore()
	s.SetNetworkRoomData(Room{RoomID: "r", HostAddress: "r", State: RoomLobby})

	s.SetGameActive(true)
	assert.Equal(t, RoomPlaying, s.RoomState())

	s.SetGameActive(false)
	assert.Equal(t, RoomGameOver, s.RoomState())

	s.ResetGameFlowState()
	assert.Equal(t, RoomLobby, s.RoomState())
	assert.Equal(t, -1, s.CurrentPlayerID())
}

func TestSnapshotRoundTrip(t *testing.T) {
	host := NewStore()
	host.SetNetworkRoomData(Room{
		RoomID:      "sala-1",
		HostAddress: "sala-1",
		MinPlayers:  2,
		MaxPlayers:  4,
		State:       RoomLobby,
		Players: []Player{
			{GameID: 0, Addr: "sala-1", Name: "Ana"},
			{GameID: 1, Addr: "p-2", Name: "Beto"},
		},
	})
	host.SetCurrentWord("GATO", "felino")
	host.SetGuessedLetters([]string{"g", "z"})
	host.SetClueUsed(true)
	host.SetCurrentPlayerID(1)
	host.SetGameActive(true)

	replica := NewStore()
	replica.ApplySnapshot(host.Snapshot())

	assert.True(t, replica.Networked())
	assert.Equal(t, RoomPlaying, replica.RoomState())
	assert.Equal(t, "GATO", replica.CurrentWord())
	assert.Equal(t, "gato", replica.NormalizedWord())
	assert.Equal(t, []string{"g", "z"}, replica.GuessedLetters())
	assert.True(t, replica.ClueUsed())
	assert.Equal(t, 1, replica.CurrentPlayerID())
	assert.True(t, replica.GameActive())
	assert.Equal(t, host.Players(), replica.Players())
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	s := NewStore()
	s.SetNetworkRoomData(Room{RoomID: "r", HostAddress: "r", State: RoomLobby,
		Players: []Player{{GameID: 0, Addr: "r", Name: "Ana"}}})
	s.SetGuessedLetters([]string{"a"})

	snap := s.Snapshot()
	snap.Room.Players[0].Name = "Mutada"
	snap.Game.GuessedLetters[0] = "x"

	assert.Equal(t, "Ana", s.Players()[0].Name)
	assert.Equal(t, []string{"a"}, s.GuessedLetters())
}

func TestResetFullLocalStateForNewScreen(t *testing.T) {
	s := NewStore()
	s.SetNetworkRoomData(Room{RoomID: "r", HostAddress: "r", State: RoomLobby,
		Players: []Player{{GameID: 0, Name: "Ana"}}})
	s.SetCurrentWord("GATO", "felino")
	s.SetGameActive(true)
	s.IncrementTurnCounter()

	s.ResetFullLocalStateForNewScreen()

	assert.Equal(t, RoomIdle, s.RoomState())
	assert.False(t, s.Networked())
	assert.Empty(t, s.Players())
	assert.Empty(t, s.CurrentWord())
	assert.False(t, s.GameActive())
	assert.Zero(t, s.TurnCounter())
}
