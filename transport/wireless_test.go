package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/transport"
)

func TestWirelessSendPacketDeliversOverWebSocket(t *testing.T) {
	w := transport.NewWireless()

	received := make(chan *packet.Packet, 1)
	require.NoError(t, w.StartListening(context.Background(), func(p *packet.Packet, from string) {
		received <- p
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("/yaok/v1", w.ServeHTTP)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	address := strings.TrimPrefix(srv.URL, "http://")
	pkt := buildPacket(t, func(s string) (*message.Message, error) { return message.NewText(s, "hi there") })

	require.NoError(t, w.SendPacket(context.Background(), pkt, address))

	select {
	case got := <-received:
		require.Equal(t, pkt.MessageID, got.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivered packet")
	}

	require.NoError(t, w.StopListening())
}

func TestWirelessIsAlwaysAvailable(t *testing.T) {
	w := transport.NewWireless()
	require.True(t, w.IsAvailable(context.Background()))
}
