package relay

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/words"
)

func entry(id string) RoomEntry {
	return RoomEntry{
		RoomID:         id,
		HostAddress:    id,
		GameType:       "ahorcado",
		Status:         RoomStatusOpen,
		MaxPlayers:     4,
		CurrentPlayers: 1,
		Settings:       state.Settings{Difficulty: words.DifficultyEasy},
	}
}

func TestRoomStoreListOpenFilters(t *testing.T) {
	rs := NewRoomStore(time.Minute, zerolog.Nop())

	rs.Insert(entry("abierta"))

	jugando := entry("jugando")
	jugando.Status = RoomStatusPlaying
	rs.Insert(jugando)

	llena := entry("llena")
	llena.CurrentPlayers = 4
	rs.Insert(llena)

	otra := entry("otra")
	otra.GameType = "pizarreada"
	rs.Insert(otra)

	dificil := entry("dificil")
	dificil.Settings.Difficulty = words.DifficultyHard
	rs.Insert(dificil)

	got := rs.ListOpen("ahorcado", 0, words.DifficultyEasy)
	require.Len(t, got, 1)
	assert.Equal(t, "abierta", got[0].RoomID)

	// Zero values mean "any".
	assert.Len(t, rs.ListOpen("", 0, ""), 3)
}

func TestRoomStoreUpdateRefreshesTTL(t *testing.T) {
	rs := NewRoomStore(50*time.Millisecond, zerolog.Nop())
	rs.Insert(entry("r"))

	time.Sleep(30 * time.Millisecond)
	require.True(t, rs.Update("r", RoomUpdate{}))
	time.Sleep(30 * time.Millisecond)

	assert.Len(t, rs.ListOpen("ahorcado", 0, ""), 1, "el refresco corre la expiración")

	assert.False(t, rs.Update("inexistente", RoomUpdate{}))
}

func TestRoomStoreExpiry(t *testing.T) {
	rs := NewRoomStore(20*time.Millisecond, zerolog.Nop())
	rs.Insert(entry("r"))

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rs.ListOpen("ahorcado", 0, ""), "las salas vencidas no se listan")
	assert.Equal(t, 1, rs.DeleteExpired())
	assert.Zero(t, rs.DeleteExpired())
}

func TestRoomStoreUpdateFields(t *testing.T) {
	rs := NewRoomStore(time.Minute, zerolog.Nop())
	rs.Insert(entry("r"))

	status := RoomStatusPlaying
	n := 3
	require.True(t, rs.Update("r", RoomUpdate{Status: &status, CurrentPlayers: &n}))

	assert.Empty(t, rs.ListOpen("ahorcado", 0, ""), "una sala jugando deja de ofrecerse")

	abierta := RoomStatusOpen
	require.True(t, rs.Update("r", RoomUpdate{Status: &abierta}))
	got := rs.ListOpen("ahorcado", 0, "")
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].CurrentPlayers)
}
