package router_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/identity"
	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/router"
)

func testPacket(t *testing.T, prio packet.Priority) *packet.Packet {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	receiver, err := identity.New()
	require.NoError(t, err)
	msg, err := message.NewStatus(id.ID(), message.StatusOK)
	require.NoError(t, err)
	pkt, err := packet.FromMessage(msg, id, receiver.X25519PublicBytes())
	require.NoError(t, err)
	pkt.Priority = prio
	return pkt
}

func TestEnqueueDequeueRespectsPriority(t *testing.T) {
	q := router.NewQueue()

	q.Enqueue(router.NewQueuedPacket(testPacket(t, packet.PriorityLow), ""))
	q.Enqueue(router.NewQueuedPacket(testPacket(t, packet.PriorityHigh), ""))
	q.Enqueue(router.NewQueuedPacket(testPacket(t, packet.PriorityMedium), ""))

	first := q.DequeueReady()
	require.NotNil(t, first)
	require.Equal(t, packet.PriorityHigh, first.Packet.Priority)

	second := q.DequeueReady()
	require.NotNil(t, second)
	require.Equal(t, packet.PriorityMedium, second.Packet.Priority)

	third := q.DequeueReady()
	require.NotNil(t, third)
	require.Equal(t, packet.PriorityLow, third.Packet.Priority)
}

func TestRetryBackoffWorks(t *testing.T) {
	qp := router.NewQueuedPacket(testPacket(t, packet.PriorityHigh), "")
	require.True(t, qp.CanRetry())

	qp.MarkAttempt()
	require.EqualValues(t, 1, qp.RetryCount)
	require.False(t, qp.CanRetry())
}

func TestCleanupRemovesExpired(t *testing.T) {
	q := router.NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(router.NewQueuedPacket(testPacket(t, packet.PriorityHigh), ""))
	}
	require.Equal(t, 5, q.TotalCount())

	removed := q.CleanupExpired()
	require.Equal(t, 0, removed)
	require.Equal(t, 5, q.TotalCount())

	expired := testPacket(t, packet.PriorityHigh)
	expired.Hops = expired.MaxHops
	q.Enqueue(router.NewQueuedPacket(expired, ""))
	require.Equal(t, 6, q.TotalCount())

	require.Equal(t, 1, q.CleanupExpired())
	require.Equal(t, 5, q.TotalCount())
}

func TestEnqueueDropsOldestWhenLaneFull(t *testing.T) {
	q := router.NewQueue()
	first := testPacket(t, packet.PriorityLow)
	q.Enqueue(router.NewQueuedPacket(first, ""))
	for i := 0; i < router.MaxQueueSizePerPriority; i++ {
		q.Enqueue(router.NewQueuedPacket(testPacket(t, packet.PriorityLow), ""))
	}
	require.Equal(t, router.MaxQueueSizePerPriority, q.TotalCount())
}
