package store_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMessage(id string) store.StoredMessage {
	now := time.Now().UTC()
	return store.StoredMessage{
		ID:          id,
		SenderID:    "alice",
		MessageType: "text",
		Payload:     []byte("hello"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestStoreMessageAndGetByID(t *testing.T) {
	s := openTestStore(t)
	id := uuid.NewString()
	require.NoError(t, s.StoreMessage(sampleMessage(id), false))

	got, err := s.GetMessageByID(id)
	require.NoError(t, err)
	require.Equal(t, "alice", got.SenderID)
	require.False(t, got.Delivered)
}

func TestGetMessageByIDRejectsNonUUID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetMessageByID("'; DROP TABLE messages;--")
	require.ErrorIs(t, err, store.ErrInvalidID)
}

func TestGetMessageByIDNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetMessageByID(uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkDeliveredRemovesFromPending(t *testing.T) {
	s := openTestStore(t)
	id := uuid.NewString()
	require.NoError(t, s.StoreMessage(sampleMessage(id), false))

	pending, err := s.GetPendingMessages()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkDelivered(id))

	pending, err = s.GetPendingMessages()
	require.NoError(t, err)
	require.Len(t, pending, 0)
}

func TestStoreFullRejectsInsert(t *testing.T) {
	s, err := store.Open(t.TempDir(), 1, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StoreMessage(sampleMessage(uuid.NewString()), false))
	err = s.StoreMessage(sampleMessage(uuid.NewString()), false)
	require.ErrorIs(t, err, store.ErrStoreFull)
}

func TestRecentMessagesOrderedNewestFirst(t *testing.T) {
	s := openTestStore(t)
	first := sampleMessage(uuid.NewString())
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := sampleMessage(uuid.NewString())

	require.NoError(t, s.StoreMessage(first, false))
	require.NoError(t, s.StoreMessage(second, false))

	recent, err := s.GetRecentMessages(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, second.ID, recent[0].ID)
}

func TestCleanupExpiredRemovesOldMessages(t *testing.T) {
	s := openTestStore(t)
	expired := sampleMessage(uuid.NewString())
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.StoreMessage(expired, false))

	n, err := s.CleanupExpired()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.GetMessageByID(expired.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeenMessageDedup(t *testing.T) {
	s := openTestStore(t)
	id := uuid.NewString()

	seen, err := s.IsMessageSeen(id)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, s.MarkMessageSeen(id))

	seen, err = s.IsMessageSeen(id)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestNonceReplayDetection(t *testing.T) {
	s := openTestStore(t)
	nonce := []byte("0123456789012345678901")

	used, err := s.IsNonceUsed(nonce, "alice")
	require.NoError(t, err)
	require.False(t, used)

	require.NoError(t, s.MarkNonceUsed(nonce, "alice"))

	used, err = s.IsNonceUsed(nonce, "alice")
	require.NoError(t, err)
	require.True(t, used)

	// different sender, same nonce bytes, is not a replay
	used, err = s.IsNonceUsed(nonce, "bob")
	require.NoError(t, err)
	require.False(t, used)
}

func TestAckDeliveredMarksMessageDelivered(t *testing.T) {
	s := openTestStore(t)
	id := uuid.NewString()
	require.NoError(t, s.StoreMessage(sampleMessage(id), false))

	require.NoError(t, s.StoreAck(id, "bob", store.AckReceived))
	require.NoError(t, s.StoreAck(id, "bob", store.AckDelivered))

	got, err := s.GetMessageByID(id)
	require.NoError(t, err)
	require.True(t, got.Delivered)

	acks, err := s.GetAcksForMessage(id)
	require.NoError(t, err)
	require.Len(t, acks, 2)
}

func TestGetStatsCounts(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.StoreMessage(sampleMessage(uuid.NewString()), false))
	require.NoError(t, s.MarkMessageSeen(uuid.NewString()))

	stats, err := s.GetStats()
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.TotalMessages)
	require.EqualValues(t, 1, stats.PendingMessages)
	require.EqualValues(t, 1, stats.SeenMessages)
}
