package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yaok-project/yaok-core/identity"
)

func TestNewIdentityHasIndependentKeyPairs(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	require.Len(t, id.EdPublicBytes(), 32)
	require.Len(t, id.X25519PublicBytes(), 32)
	require.NotEqual(t, id.EdPublicBytes(), id.X25519PublicBytes())
	require.Len(t, id.ID(), 64)
}

func TestIdentitySignVerify(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	sig := id.Sign([]byte("ok"))
	require.NoError(t, id.Verify([]byte("ok"), sig))
	require.Error(t, id.Verify([]byte("busy"), sig))
}

func TestIdentitySaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	id, err := identity.New()
	require.NoError(t, err)
	require.NoError(t, id.Save(dir))
	require.True(t, identity.Exists(dir))

	loaded, regenerated, err := identity.Load(dir)
	require.NoError(t, err)
	require.False(t, regenerated)
	require.Equal(t, id.ID(), loaded.ID())
	require.Equal(t, id.X25519PublicBytes(), loaded.X25519PublicBytes())
}

func TestVerifierFromPublicBytesRejectsWrongLength(t *testing.T) {
	_, err := identity.VerifierFromPublicBytes([]byte{1, 2})
	require.Error(t, err)
}
