package gossip_test

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/gossip"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/store"
)

func openStores(t *testing.T) (*store.Store, *store.Store) {
	t.Helper()
	a, err := store.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := store.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return a, b
}

func TestFrameUnframeRoundTrip(t *testing.T) {
	msg := gossip.Message{Kind: gossip.KindDigestRequest, MaxCount: 10, Since: time.Now().UTC()}
	frame, err := gossip.Frame(msg)
	require.NoError(t, err)

	decoded, ok, err := gossip.Unframe(frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, gossip.KindDigestRequest, decoded.Kind)
}

func TestUnframeRejectsNonGossipFrame(t *testing.T) {
	_, ok, err := gossip.Unframe([]byte("not a gossip frame"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFullSyncExchangesMissingMessage(t *testing.T) {
	storeA, storeB := openStores(t)

	msg, err := message.NewText("alice", "hello from a")
	require.NoError(t, err)
	raw, err := cbor.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, storeA.StoreMessage(store.StoredMessage{
		ID: msg.ID, SenderID: msg.SenderID, MessageType: string(msg.Type),
		Payload: raw, CreatedAt: msg.Timestamp, ExpiresAt: msg.Timestamp.Add(time.Hour),
	}, false))

	// wire A's gossip sender directly into B's HandleMessage, and vice versa,
	// simulating a two-node loopback exchange over an in-memory channel.
	var protoA, protoB *gossip.Protocol
	protoA = gossip.New(storeA, func(ctx context.Context, address string, frame []byte) error {
		msg, ok, err := gossip.Unframe(frame)
		if err != nil || !ok {
			return err
		}
		return protoB.HandleMessage(ctx, msg, "a")
	})
	protoB = gossip.New(storeB, func(ctx context.Context, address string, frame []byte) error {
		msg, ok, err := gossip.Unframe(frame)
		if err != nil || !ok {
			return err
		}
		return protoA.HandleMessage(ctx, msg, "b")
	})

	require.NoError(t, protoB.SyncWithPeer(context.Background(), "a", "a"))

	got, err := storeB.GetMessageByID(msg.ID)
	require.NoError(t, err)
	require.Equal(t, msg.SenderID, got.SenderID)
}

func TestSyncWithPeerRespectsMinInterval(t *testing.T) {
	storeA, _ := openStores(t)
	calls := 0
	proto := gossip.New(storeA, func(ctx context.Context, address string, frame []byte) error {
		calls++
		return nil
	})

	require.NoError(t, proto.SyncWithPeer(context.Background(), "peer", "addr"))
	require.NoError(t, proto.SyncWithPeer(context.Background(), "peer", "addr"))
	require.Equal(t, 1, calls)
}
