package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/transport"
)

func buildPacket(t *testing.T, msgType func(sender string) (*message.Message, error)) *packet.Packet {
	t.Helper()
	alice, err := identity.New()
	require.NoError(t, err)
	bob, err := identity.New()
	require.NoError(t, err)
	msg, err := msgType(alice.ID())
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, alice, bob.X25519PublicBytes())
	require.NoError(t, err)
	return pkt
}

func TestManagerPrefersUDPForHighPriority(t *testing.T) {
	mgr := transport.NewManager()
	udp := transport.NewMock(transport.TypeUDP)
	wireless := transport.NewMock(transport.TypeWireless)
	mgr.Register(udp)
	mgr.Register(wireless)

	pkt := buildPacket(t, func(s string) (*message.Message, error) { return message.NewStatus(s, message.StatusOK) })
	require.Equal(t, packet.PriorityHigh, pkt.Priority)

	require.NoError(t, mgr.SendPacket(context.Background(), pkt, "dest"))
	require.Equal(t, 1, udp.SentCount())
	require.Equal(t, 0, wireless.SentCount())
}

func TestManagerFallsBackWhenPreferredUnavailable(t *testing.T) {
	mgr := transport.NewManager()
	udp := transport.NewMock(transport.TypeUDP)
	udp.SetAvailable(false)
	wireless := transport.NewMock(transport.TypeWireless)
	mgr.Register(udp)
	mgr.Register(wireless)

	pkt := buildPacket(t, func(s string) (*message.Message, error) { return message.NewStatus(s, message.StatusOK) })
	require.NoError(t, mgr.SendPacket(context.Background(), pkt, "dest"))
	require.Equal(t, 0, udp.SentCount())
	require.Equal(t, 1, wireless.SentCount())
}

func TestManagerReturnsErrorWhenNoneAvailable(t *testing.T) {
	mgr := transport.NewManager()
	pkt := buildPacket(t, func(s string) (*message.Message, error) { return message.NewStatus(s, message.StatusOK) })
	err := mgr.SendPacket(context.Background(), pkt, "dest")
	require.ErrorIs(t, err, transport.ErrNoTransportAvailable)
}

func TestMockDeliverInvokesHandler(t *testing.T) {
	m := transport.NewMock(transport.TypeShortRange)
	pkt := buildPacket(t, func(s string) (*message.Message, error) { return message.NewText(s, "hi") })

	var got *packet.Packet
	require.NoError(t, m.StartListening(context.Background(), func(p *packet.Packet, from string) {
		got = p
	}))
	m.Deliver(pkt, "peer-addr")
	require.Same(t, pkt, got)
}
