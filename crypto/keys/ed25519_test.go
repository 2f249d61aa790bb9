package keys_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/crypto/keys"
)

func TestGenerateEd25519KeyPairAndSignVerify(t *testing.T) {
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	require.Len(t, kp.ID(), 64) // hex of 32 bytes

	msg := []byte("ok")
	sig := kp.Sign(msg)
	require.Len(t, sig, 64)

	require.NoError(t, keys.Verify(kp.Public, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	sig := kp.Sign([]byte("ok"))
	err = keys.Verify(kp.Public, []byte("busy"), sig)
	require.Error(t, err)
}

func TestEd25519FromPrivateBytesRoundTrip(t *testing.T) {
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	restored, err := keys.Ed25519FromPrivateBytes(kp.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, kp.ID(), restored.ID())
}

func TestEd25519VerifierFromPublicBytesRejectsWrongLength(t *testing.T) {
	_, err := keys.Ed25519VerifierFromPublicBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
