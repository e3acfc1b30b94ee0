package directory

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignacio82/ahorcado/internal/relay"
	"github.com/ignacio82/ahorcado/internal/state"
	"github.com/ignacio82/ahorcado/internal/words"
)

func newDirectory(t *testing.T) *Client {
	t.Helper()
	rooms := relay.NewRoomStore(time.Minute, zerolog.Nop())
	srv := relay.NewServer(zerolog.Nop(), rooms)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, zerolog.Nop())
}

func TestClientRoomLifecycle(t *testing.T) {
	c := newDirectory(t)
	ctx := context.Background()

	err := c.InsertRoom(ctx, relay.RoomEntry{
		RoomID:         "sala-1",
		HostAddress:    "sala-1",
		GameType:       "ahorcado",
		Status:         relay.RoomStatusOpen,
		MaxPlayers:     4,
		CurrentPlayers: 1,
		Settings:       state.Settings{Difficulty: words.DifficultyMedium},
	})
	require.NoError(t, err)

	rooms, err := c.ListOpenRooms(ctx, "ahorcado", Filter{Difficulty: words.DifficultyMedium})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "sala-1", rooms[0].RoomID)
	assert.False(t, rooms[0].ExpiresAt.IsZero(), "el directorio estampa la expiración")

	rooms, err = c.ListOpenRooms(ctx, "ahorcado", Filter{Difficulty: words.DifficultyHard})
	require.NoError(t, err)
	assert.Empty(t, rooms)

	n := 2
	require.NoError(t, c.UpdateRoom(ctx, "sala-1", relay.RoomUpdate{CurrentPlayers: &n}))
	rooms, err = c.ListOpenRooms(ctx, "ahorcado", Filter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 2, rooms[0].CurrentPlayers)

	require.NoError(t, c.DeleteRoom(ctx, "sala-1"))
	rooms, err = c.ListOpenRooms(ctx, "ahorcado", Filter{})
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestClientUpdateMissingRoom(t *testing.T) {
	c := newDirectory(t)
	err := c.UpdateRoom(context.Background(), "fantasma", relay.RoomUpdate{})
	assert.Error(t, err)
}

func TestClientInsertRejectsIncompleteEntry(t *testing.T) {
	c := newDirectory(t)
	err := c.InsertRoom(context.Background(), relay.RoomEntry{GameType: "ahorcado"})
	assert.Error(t, err)
}

func TestClientDeleteExpired(t *testing.T) {
	c := newDirectory(t)
	require.NoError(t, c.DeleteExpired(context.Background()))
}
