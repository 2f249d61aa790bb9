package keys_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/crypto/keys"
)

func TestX25519ECDHAgreement(t *testing.T) {
	alice, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)
	bob, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)

	secretA, err := alice.ECDH(bob.PublicBytes())
	require.NoError(t, err)
	secretB, err := bob.ECDH(alice.PublicBytes())
	require.NoError(t, err)

	require.Equal(t, secretA, secretB)
	require.Len(t, secretA, 32)
}

func TestX25519FromPrivateBytesRoundTrip(t *testing.T) {
	kp, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)

	restored, err := keys.X25519FromPrivateBytes(kp.PrivateBytes())
	require.NoError(t, err)
	require.Equal(t, kp.PublicBytes(), restored.PublicBytes())
}

func TestX25519FromPrivateBytesRejectsWrongLength(t *testing.T) {
	_, err := keys.X25519FromPrivateBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
