package message_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/message"
)

func TestNewStatusValid(t *testing.T) {
	m, err := message.NewStatus("alice", message.StatusOK)
	require.NoError(t, err)
	require.Equal(t, message.TypeStatus, m.Type)
	require.NotEmpty(t, m.ID)
}

func TestNewStatusInvalid(t *testing.T) {
	_, err := message.NewStatus("alice", message.StatusType("unknown"))
	require.ErrorIs(t, err, message.ErrInvalidStatus)
}

func TestNewTextValid(t *testing.T) {
	m, err := message.NewText("alice", "Hello, are you ok?")
	require.NoError(t, err)
	require.Equal(t, message.TypeText, m.Type)
}

func TestNewTextRejectsTooLong(t *testing.T) {
	_, err := message.NewText("alice", strings.Repeat("A", 257))
	require.ErrorIs(t, err, message.ErrTextTooLong)
}

func TestNewTextRejectsEmpty(t *testing.T) {
	_, err := message.NewText("alice", "")
	require.ErrorIs(t, err, message.ErrEmptyText)
}

func TestNewTextRejectsDisallowedChars(t *testing.T) {
	_, err := message.NewText("alice", "hello <script>")
	require.ErrorIs(t, err, message.ErrInvalidTextChar)
}

func TestNewVoiceValid(t *testing.T) {
	m, err := message.NewVoice("alice", make([]byte, 1024))
	require.NoError(t, err)
	require.Equal(t, message.TypeVoice, m.Type)
}

func TestNewVoiceRejectsTooLong(t *testing.T) {
	_, err := message.NewVoice("alice", make([]byte, message.MaxVoiceBytes+1))
	require.ErrorIs(t, err, message.ErrVoiceTooLong)
}

func TestNewVoiceRejectsEmpty(t *testing.T) {
	_, err := message.NewVoice("alice", nil)
	require.ErrorIs(t, err, message.ErrEmptyVoice)
}
