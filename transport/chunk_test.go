package transport_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/transport"
)

func TestChunkAndReassembleSmallPayload(t *testing.T) {
	payload := []byte("Hello, world!")
	chunks := transport.ChunkPayload("msg1", payload)
	require.Len(t, chunks, 1)
	require.EqualValues(t, 1, chunks[0].TotalChunks)

	r := transport.NewReassembler()
	got, err := r.AddChunk(chunks[0])
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestChunkAndReassembleLargePayloadOutOfOrder(t *testing.T) {
	payload := make([]byte, transport.MaxChunkSize*3+100)
	for i := range payload {
		payload[i] = 42
	}
	chunks := transport.ChunkPayload("msg2", payload)
	require.Len(t, chunks, 4)

	r := transport.NewReassembler()
	for _, idx := range []int{2, 0, 3} {
		got, err := r.AddChunk(chunks[idx])
		require.NoError(t, err)
		require.Nil(t, got)
	}
	got, err := r.AddChunk(chunks[1])
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReassembleFailsOnChecksumMismatch(t *testing.T) {
	c := transport.Chunk{MessageID: "msg3", ChunkIndex: 0, TotalChunks: 1, Data: []byte{1, 2, 3}, Checksum: 999999}
	r := transport.NewReassembler()
	_, err := r.AddChunk(c)
	require.ErrorIs(t, err, transport.ErrChecksumMismatch)
}

func TestReassemblerPendingCount(t *testing.T) {
	chunks := transport.ChunkPayload("msg4", make([]byte, transport.MaxChunkSize*3))
	r := transport.NewReassembler()
	_, err := r.AddChunk(chunks[0])
	require.NoError(t, err)
	require.Equal(t, 1, r.PendingCount())
	require.Equal(t, 0, r.CleanupExpired())
}
