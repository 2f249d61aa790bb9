package packet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
)

func TestFromMessageAndDecryptRoundTrip(t *testing.T) {
	alice, err := identity.New()
	require.NoError(t, err)
	bob, err := identity.New()
	require.NoError(t, err)

	msg, err := message.NewStatus(alice.ID(), message.StatusOK)
	require.NoError(t, err)

	pkt, err := packet.FromMessage(msg, alice, bob.X25519PublicBytes())
	require.NoError(t, err)
	require.Equal(t, packet.PriorityHigh, pkt.Priority)
	require.True(t, pkt.CanBeForwarded())

	got, err := packet.Decrypt(pkt, bob)
	require.NoError(t, err)
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, msg.Status, got.Status)
}

func TestDecryptRejectsBitFlip(t *testing.T) {
	alice, err := identity.New()
	require.NoError(t, err)
	bob, err := identity.New()
	require.NoError(t, err)

	msg, err := message.NewText(alice.ID(), "hello there")
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, alice, bob.X25519PublicBytes())
	require.NoError(t, err)

	raw, err := packet.ToBytes(pkt)
	require.NoError(t, err)
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)/2] ^= 0xFF

	decoded, err := packet.FromBytes(tampered)
	if err != nil {
		return // malformed CBOR is an acceptable outcome of the flip
	}
	_, err = packet.Decrypt(decoded, bob)
	require.Error(t, err)
}

func TestWireRoundTrip(t *testing.T) {
	alice, err := identity.New()
	require.NoError(t, err)
	bob, err := identity.New()
	require.NoError(t, err)

	msg, err := message.NewText(alice.ID(), "hi")
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, alice, bob.X25519PublicBytes())
	require.NoError(t, err)

	raw, err := packet.ToBytes(pkt)
	require.NoError(t, err)

	decoded, err := packet.FromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, pkt.MessageID, decoded.MessageID)
	require.Equal(t, pkt.Signature, decoded.Signature)
}

func TestCanBeForwardedRespectsTTLAndHops(t *testing.T) {
	alice, err := identity.New()
	require.NoError(t, err)
	bob, err := identity.New()
	require.NoError(t, err)

	msg, err := message.NewStatus(alice.ID(), message.StatusOK)
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, alice, bob.X25519PublicBytes())
	require.NoError(t, err)

	require.True(t, pkt.CanBeForwarded())

	pkt.Hops = pkt.MaxHops
	require.False(t, pkt.CanBeForwarded())
	pkt.Hops = 0

	pkt.Timestamp = time.Now().Add(-2 * time.Hour)
	require.False(t, pkt.CanBeForwarded())
}

func TestFromMessageRejectsShortReceiverKey(t *testing.T) {
	alice, err := identity.New()
	require.NoError(t, err)
	msg, err := message.NewStatus(alice.ID(), message.StatusOK)
	require.NoError(t, err)

	_, err = packet.FromMessage(msg, alice, []byte{1, 2, 3})
	require.ErrorIs(t, err, packet.ErrInvalidReceiverKey)
}
