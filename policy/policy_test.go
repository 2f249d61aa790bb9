package policy_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/message"
	"github.com/yaok-project/yaok-core/packet"
	"github.com/yaok-project/yaok-core/policy"
	"github.com/yaok-project/yaok-core/transport"
)

func TestDefaultPolicyValues(t *testing.T) {
	p := policy.Default()
	require.Equal(t, 256, p.MaxTextSize)
	require.EqualValues(t, 7, p.MaxVoiceSeconds)
	require.Equal(t, 1000, p.MaxStoredMessages)
	require.False(t, p.PrioritizeStatus)
	require.EqualValues(t, 3600, p.MaxTTLSeconds)
	require.EqualValues(t, 10, p.MaxHops)
	require.True(t, p.IsTransportAllowed(transport.TypeUDP))
	require.True(t, p.IsTransportAllowed(transport.TypeSatellite))
}

func TestMilitaryPolicyValues(t *testing.T) {
	p := policy.Military()
	require.Equal(t, 128, p.MaxTextSize)
	require.EqualValues(t, 3, p.MaxVoiceSeconds)
	require.Equal(t, 100, p.MaxStoredMessages)
	require.True(t, p.PrioritizeStatus)
	require.False(t, p.IsTransportAllowed(transport.TypeUDP))
	require.False(t, p.IsTransportAllowed(transport.TypeWireless))
	require.True(t, p.IsTransportAllowed(transport.TypeShortRange))
	require.True(t, p.IsTransportAllowed(transport.TypeSatellite))
}

func TestCollapsePolicyValues(t *testing.T) {
	p := policy.Collapse()
	require.Equal(t, 64, p.MaxTextSize)
	require.EqualValues(t, 0, p.MaxVoiceSeconds)
	require.Equal(t, 50, p.MaxStoredMessages)
	require.False(t, p.EnableCompression)
	require.True(t, p.IsTransportAllowed(transport.TypeShortRange))
	require.False(t, p.IsTransportAllowed(transport.TypeWireless))
	require.False(t, p.IsTransportAllowed(transport.TypeUDP))
	require.False(t, p.IsTransportAllowed(transport.TypeSatellite))
}

func TestOfflinePolicyValues(t *testing.T) {
	p := policy.Offline()
	require.Equal(t, 500, p.MaxStoredMessages)
	require.True(t, p.IsTransportAllowed(transport.TypeShortRange))
	require.True(t, p.IsTransportAllowed(transport.TypeWireless))
	require.False(t, p.IsTransportAllowed(transport.TypeUDP))
	require.False(t, p.IsTransportAllowed(transport.TypeSatellite))
}

func TestValidateTextSize(t *testing.T) {
	p := policy.Collapse()
	require.NoError(t, p.ValidateTextSize(strings.Repeat("a", 64)))
	err := p.ValidateTextSize(strings.Repeat("a", 65))
	require.Error(t, err)
	require.IsType(t, policy.ErrTextTooLong{}, err)
}

func TestValidateVoiceLength(t *testing.T) {
	p := policy.Military()
	require.NoError(t, p.ValidateVoiceLength(3))
	err := p.ValidateVoiceLength(4)
	require.Error(t, err)
	require.IsType(t, policy.ErrVoiceTooLong{}, err)
}

func TestCollapseRejectsAnyVoice(t *testing.T) {
	p := policy.Collapse()
	require.Error(t, p.ValidateVoiceLength(1))
}

func TestShouldCleanupStorage(t *testing.T) {
	p := policy.Collapse()
	require.False(t, p.ShouldCleanupStorage(50))
	require.True(t, p.ShouldCleanupStorage(51))
}

func TestGetMessagePriority(t *testing.T) {
	p := policy.Default()
	require.Equal(t, packet.PriorityHigh, p.GetMessagePriority(message.TypeStatus))
	require.Equal(t, packet.PriorityMedium, p.GetMessagePriority(message.TypeText))
	require.Equal(t, packet.PriorityLow, p.GetMessagePriority(message.TypeVoice))
}

func TestValidateMessageDispatchesByType(t *testing.T) {
	p := policy.Collapse()

	status, err := message.NewStatus("sender", message.StatusOK)
	require.NoError(t, err)
	require.NoError(t, p.ValidateMessage(status))

	text, err := message.NewText("sender", strings.Repeat("a", 100))
	require.NoError(t, err)
	require.Error(t, p.ValidateMessage(text))
}

func TestManagerSwapsActivePolicy(t *testing.T) {
	m := policy.NewManager(policy.Default())
	require.Equal(t, policy.Default(), m.GetPolicy())

	m.SetPolicy(policy.Collapse())
	require.Equal(t, policy.Collapse(), m.GetPolicy())
	require.Error(t, m.ValidateTransport(transport.TypeUDP))
	require.NoError(t, m.ValidateTransport(transport.TypeShortRange))
}
