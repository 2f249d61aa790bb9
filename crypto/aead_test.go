package crypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	yaokcrypto "github.com/yaok-project/yaok-core/crypto"
	"github.com/yaok-project/yaok-core/crypto/keys"
)

func TestAEADRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := []byte("short status update")

	ciphertext, nonce, err := yaokcrypto.AEADEncrypt(key, plaintext)
	require.NoError(t, err)
	require.Len(t, nonce, yaokcrypto.NonceSize)

	got, err := yaokcrypto.AEADDecrypt(key, ciphertext, nonce)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestAEADDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	ciphertext, nonce, err := yaokcrypto.AEADEncrypt(key, []byte("ok"))
	require.NoError(t, err)

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	_, err = yaokcrypto.AEADDecrypt(key, tampered, nonce)
	require.ErrorIs(t, err, yaokcrypto.ErrDecryptionFailed)
}

func TestAEADDecryptRejectsWrongNonceLength(t *testing.T) {
	_, err := yaokcrypto.AEADDecrypt(bytes.Repeat([]byte{1}, 32), []byte("x"), []byte("short"))
	require.ErrorIs(t, err, yaokcrypto.ErrInvalidNonce)
}

// TestEncryptDecryptPayloadRoundTrip mirrors the §8 "round-trip crypto"
// property from the specification: for any message and key pairs (A,B),
// decrypting what A encrypted for B returns the original plaintext.
func TestEncryptDecryptPayloadRoundTrip(t *testing.T) {
	alice, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)
	bob, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)

	plaintext := []byte("serialized message bytes")

	ciphertext, nonce, err := yaokcrypto.EncryptPayload(alice.ECDH, bob.PublicBytes(), plaintext)
	require.NoError(t, err)

	got, err := yaokcrypto.DecryptPayload(bob.ECDH, alice.PublicBytes(), ciphertext, nonce)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestEncryptDecryptPayloadWrongKeyFails(t *testing.T) {
	alice, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)
	bob, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)
	eve, err := keys.GenerateX25519KeyPair()
	require.NoError(t, err)

	ciphertext, nonce, err := yaokcrypto.EncryptPayload(alice.ECDH, bob.PublicBytes(), []byte("secret"))
	require.NoError(t, err)

	_, err = yaokcrypto.DecryptPayload(eve.ECDH, alice.PublicBytes(), ciphertext, nonce)
	require.Error(t, err)
}
