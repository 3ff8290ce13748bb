package transport

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgpd/message"
)

func TestDialAcceptRoundTripsOneMessage(t *testing.T) {
	ln, err := Listen(netip.MustParseAddrPort("127.0.0.1:0"), Config{})
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan *Connection, 1)
	errs := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errs <- err
			return
		}
		accepted <- conn
	}()

	tcpAddr := ln.ln.Addr().String()
	addrPort, err := netip.ParseAddrPort(tcpAddr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, Config{RemoteAddr: addrPort.Addr(), RemotePort: addrPort.Port()})
	require.NoError(t, err)
	defer client.Close()

	var server *Connection
	select {
	case server = <-accepted:
	case err := <-errs:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer server.Close()

	wire := message.Frame(message.TypeKeepalive, nil)
	require.NoError(t, client.WriteMessage(wire))

	server.SetDeadline(time.Now().Add(2 * time.Second))
	h, body, err := server.ReadMessage(message.StandardMaxLength)
	require.NoError(t, err)
	assert.Equal(t, message.TypeKeepalive, h.Type)
	assert.Empty(t, body)
}
