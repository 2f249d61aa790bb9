package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/transport"
)

type loopbackRadio struct {
	frames [][]byte
	sr     *transport.ShortRange
}

func (r *loopbackRadio) Available(ctx context.Context) bool { return true }

func (r *loopbackRadio) Write(ctx context.Context, frame []byte, destination string) error {
	r.frames = append(r.frames, frame)
	return r.sr.DeliverFrame(frame, destination)
}

func (r *loopbackRadio) Peers(ctx context.Context) ([]transport.Peer, error) { return nil, nil }

func TestShortRangeSendReassemblesOnLoopback(t *testing.T) {
	radio := &loopbackRadio{}
	sr := transport.NewShortRange(radio)
	radio.sr = sr

	var got *packet.Packet
	require.NoError(t, sr.StartListening(context.Background(), func(p *packet.Packet, from string) {
		got = p
	}))

	pkt := buildPacket(t, func(s string) (*message.Message, error) {
		return message.NewVoice(s, make([]byte, transport.MaxChunkSize*2+10))
	})

	require.NoError(t, sr.SendPacket(context.Background(), pkt, "peer-1"))
	require.NotNil(t, got)
	require.Equal(t, pkt.MessageID, got.MessageID)
	require.True(t, len(radio.frames) > 1)
}
