package relay

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignacio82/ahorcado/internal/transport"
)

func startRelay(t *testing.T) string {
	t.Helper()
	srv := NewServer(zerolog.Nop(), NewRoomStore(time.Minute, zerolog.Nop()))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialPeer(t *testing.T, wsURL string) (*transport.WSTransport, string) {
	t.Helper()
	tr := transport.NewWSTransport(wsURL, zerolog.Nop())
	t.Cleanup(func() { _ = tr.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := tr.Initialize(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	return tr, addr
}

func awaitEvent(t *testing.T, tr transport.Transport, kind transport.EventKind) transport.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-tr.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no llegó el evento %d del relay", kind)
		}
	}
}

func TestRelayForwardsBetweenPeers(t *testing.T) {
	wsURL := startRelay(t)
	a, addrA := dialPeer(t, wsURL)
	b, addrB := dialPeer(t, wsURL)

	assert.NotEqual(t, addrA, addrB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := a.Connect(ctx, addrB)
	require.NoError(t, err)
	assert.Equal(t, addrB, conn.RemoteAddr())

	inc := awaitEvent(t, b, transport.EventIncomingConn)
	// The relay stamps the sender's address: a spoofed From never survives.
	assert.Equal(t, addrA, inc.Conn.RemoteAddr())

	require.NoError(t, conn.Send([]byte(`{"hola":true}`)))
	data := awaitEvent(t, b, transport.EventData)
	assert.JSONEq(t, `{"hola":true}`, string(data.Data))

	require.NoError(t, inc.Conn.Send([]byte(`{"chau":1}`)))
	back := awaitEvent(t, a, transport.EventData)
	assert.JSONEq(t, `{"chau":1}`, string(back.Data))
}

func TestRelayConnectUnknownPeer(t *testing.T) {
	wsURL := startRelay(t)
	a, _ := dialPeer(t, wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Connect(ctx, "p-inexistente")
	assert.Error(t, err)
}

func TestRelayNotifiesWhenPeerDrops(t *testing.T) {
	wsURL := startRelay(t)
	a, _ := dialPeer(t, wsURL)
	b, addrB := dialPeer(t, wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Connect(ctx, addrB)
	require.NoError(t, err)
	awaitEvent(t, b, transport.EventIncomingConn)

	// b se cae: el relay avisa a los pares enlazados.
	require.NoError(t, b.Close())
	ev := awaitEvent(t, a, transport.EventClose)
	assert.Equal(t, addrB, ev.Addr)
}

func TestTransportCloseWhileSending(t *testing.T) {
	wsURL := startRelay(t)
	a, _ := dialPeer(t, wsURL)
	b, addrB := dialPeer(t, wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := a.Connect(ctx, addrB)
	require.NoError(t, err)
	awaitEvent(t, b, transport.EventIncomingConn)

	// Envíos concurrentes con el cierre del transporte: ninguno debe entrar
	// en pánico, los posteriores al cierre devuelven error.
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				_ = conn.Send([]byte(`{"n":1}`))
			}
		}()
	}
	close(start)
	require.NoError(t, a.Close())
	wg.Wait()

	assert.Error(t, conn.Send([]byte(`{"n":2}`)))
}

func TestTransportInitializeRetriesAfterFailedDial(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tr := transport.NewWSTransport("ws://"+addr+"/ws", zerolog.Nop())
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = tr.Initialize(ctx, "")
	require.Error(t, err)

	// El relay aparece más tarde en la misma dirección: el mismo transporte
	// debe poder reintentar el saludo desde cero.
	srv := NewServer(zerolog.Nop(), NewRoomStore(time.Minute, zerolog.Nop()))
	l2, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	hs := &http.Server{Handler: srv.Router()}
	go func() { _ = hs.Serve(l2) }()
	t.Cleanup(func() { _ = hs.Close() })

	got, err := tr.Initialize(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, got)
}
