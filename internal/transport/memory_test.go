package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, tr Transport, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-tr.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no llegó el evento %d", kind)
		}
	}
}

func TestMemTransportInitialize(t *testing.T) {
	net := NewNetwork()
	tr := net.NewTransport()

	addr, err := tr.Initialize(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	ev := waitEvent(t, tr, EventOpen)
	assert.Equal(t, addr, ev.Addr)

	// Idempotent: the second call reuses the address.
	again, err := tr.Initialize(context.Background(), "otro")
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestMemTransportConnectAndSend(t *testing.T) {
	net := NewNetwork()
	a, b := net.NewTransport(), net.NewTransport()

	addrA, err := a.Initialize(context.Background(), "")
	require.NoError(t, err)
	addrB, err := b.Initialize(context.Background(), "")
	require.NoError(t, err)

	conn, err := a.Connect(context.Background(), addrB)
	require.NoError(t, err)
	assert.Equal(t, addrB, conn.RemoteAddr())

	inc := waitEvent(t, b, EventIncomingConn)
	assert.Equal(t, addrA, inc.Conn.RemoteAddr())

	require.NoError(t, conn.Send([]byte("hola")))
	data := waitEvent(t, b, EventData)
	assert.Equal(t, []byte("hola"), data.Data)

	require.NoError(t, inc.Conn.Send([]byte("chau")))
	back := waitEvent(t, a, EventData)
	assert.Equal(t, []byte("chau"), back.Data)
}

func TestMemTransportClosePropagates(t *testing.T) {
	net := NewNetwork()
	a, b := net.NewTransport(), net.NewTransport()

	_, err := a.Initialize(context.Background(), "")
	require.NoError(t, err)
	addrB, err := b.Initialize(context.Background(), "")
	require.NoError(t, err)

	conn, err := a.Connect(context.Background(), addrB)
	require.NoError(t, err)
	inc := waitEvent(t, b, EventIncomingConn)

	require.NoError(t, conn.Close())
	waitEvent(t, b, EventClose)

	assert.Error(t, inc.Conn.Send([]byte("x")), "la conexión cerrada no envía")
	assert.NoError(t, conn.Close(), "cerrar dos veces es inocuo")
}

func TestMemTransportConnectUnknownPeer(t *testing.T) {
	net := NewNetwork()
	tr := net.NewTransport()
	_, err := tr.Initialize(context.Background(), "")
	require.NoError(t, err)

	_, err = tr.Connect(context.Background(), "nadie")
	assert.Error(t, err)
}
