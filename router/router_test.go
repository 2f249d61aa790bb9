package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/router"
	"github.com/yaok-project/yaok-core/store"
	"github.com/yaok-project/yaok-core/transport"
)

func newTestRouter(t *testing.T) (*router.Router, *identity.Identity, *transport.Mock) {
	t.Helper()
	self, err := identity.New()
	require.NoError(t, err)
	st, err := store.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mgr := transport.NewManager()
	mock := transport.NewMock(transport.TypeWireless)
	mgr.Register(mock)

	return router.New(self, st, mgr), self, mock
}

func TestHandlePacketDedupsDuplicates(t *testing.T) {
	r, self, mock := newTestRouter(t)
	r.UpdatePeers([]transport.Peer{{ID: "peerA", Transport: transport.TypeWireless, Address: "addr-a"}})

	receiver, err := identity.New()
	require.NoError(t, err)
	msg, err := message.NewStatus(self.ID(), message.StatusOK)
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, self, receiver.X25519PublicBytes())
	require.NoError(t, err)

	require.NoError(t, r.HandlePacket(context.Background(), pkt))
	require.Equal(t, 1, mock.SentCount())

	require.NoError(t, r.HandlePacket(context.Background(), pkt))
	require.Equal(t, 1, mock.SentCount()) // second delivery deduped, no new send

	stats := r.GetStats()
	require.EqualValues(t, 1, stats.ProcessedPackets)
	require.EqualValues(t, 1, stats.DuplicatePackets)
}

func TestHandlePacketDropsExpired(t *testing.T) {
	r, self, mock := newTestRouter(t)
	receiver, err := identity.New()
	require.NoError(t, err)
	msg, err := message.NewStatus(self.ID(), message.StatusOK)
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, self, receiver.X25519PublicBytes())
	require.NoError(t, err)
	pkt.Hops = pkt.MaxHops

	require.NoError(t, r.HandlePacket(context.Background(), pkt))
	require.Equal(t, 0, mock.SentCount())
	require.EqualValues(t, 1, r.GetStats().DroppedPackets)
}

func TestFloodPacketStoresLocallyWithNoKnownPeers(t *testing.T) {
	r, self, _ := newTestRouter(t)
	receiver, err := identity.New()
	require.NoError(t, err)
	msg, err := message.NewText(self.ID(), "hi")
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, self, receiver.X25519PublicBytes())
	require.NoError(t, err)

	require.NoError(t, r.FloodPacket(context.Background(), pkt))
}

func TestSendAckMarksDelivered(t *testing.T) {
	self, err := identity.New()
	require.NoError(t, err)
	st, err := store.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	r := router.New(self, st, transport.NewManager())

	msg, err := message.NewStatus(self.ID(), message.StatusOK)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, st.StoreMessage(store.StoredMessage{ID: msg.ID, SenderID: self.ID(), MessageType: "status", Payload: []byte{0}, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}, false))

	require.NoError(t, r.SendAck(msg.ID, "peerB", store.AckDelivered))
	got, err := st.GetMessageByID(msg.ID)
	require.NoError(t, err)
	require.True(t, got.Delivered)
}
