package relay_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/internal/metrics"
	"github.com/yaok-project/yaok-core/relay"
)

func startRelay(t *testing.T, rateLimit uint32) (*relay.Relay, net.Addr) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	r := relay.New(conn, relay.Config{MaxPacketSize: 1024, RateLimitPPS: rateLimit, PeerTTL: time.Minute}, metrics.NewRelayCollector())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Run(ctx)

	return r, conn.LocalAddr()
}

func dialClient(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelayFanOutExcludesSender(t *testing.T) {
	_, relayAddr := startRelay(t, 1000)

	a := dialClient(t)
	b := dialClient(t)

	// register both as known peers
	_, err := a.WriteTo([]byte("hello-a"), relayAddr)
	require.NoError(t, err)
	_, err = b.WriteTo([]byte("hello-b"), relayAddr)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	buf := make([]byte, 64)
	// a registered first, so b's registration datagram was fanned out to it
	a.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := a.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "hello-b", string(buf[:n]))

	_, err = a.WriteTo([]byte("ping"), relayAddr)
	require.NoError(t, err)

	b.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err = b.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	// a should not receive its own packet back
	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = a.ReadFrom(buf)
	require.Error(t, err)
}

func TestRelayRateLimiting(t *testing.T) {
	r, relayAddr := startRelay(t, 200)

	a := dialClient(t)
	for i := 0; i < 400; i++ {
		_, err := a.WriteTo([]byte("x"), relayAddr)
		require.NoError(t, err)
	}
	time.Sleep(300 * time.Millisecond)

	snapshot := r.Stats()
	require.EqualValues(t, 200, snapshot.DroppedRate)
	require.EqualValues(t, 400, snapshot.Received)
}
