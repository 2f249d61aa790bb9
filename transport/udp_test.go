package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUDPTLSConfigPinningAcceptsMatchingFingerprint(t *testing.T) {
	cert := []byte("fake-certificate-bytes")
	sum := sha256.Sum256(cert)

	u := NewUDP(UDPConfig{RelayAddress: "relay.example:40100", PinnedFingerprint: hex.EncodeToString(sum[:])})
	cfg := u.tlsConfig()
	require.NotNil(t, cfg.VerifyPeerCertificate)
	require.NoError(t, cfg.VerifyPeerCertificate([][]byte{cert}, nil))
}

func TestUDPTLSConfigPinningRejectsMismatch(t *testing.T) {
	u := NewUDP(UDPConfig{RelayAddress: "relay.example:40100", PinnedFingerprint: strings.Repeat("00", 32)})
	cfg := u.tlsConfig()
	err := cfg.VerifyPeerCertificate([][]byte{[]byte("some-other-cert")}, nil)
	require.Error(t, err)
}

func TestUDPTLSConfigNoPinningLeavesVerifierNil(t *testing.T) {
	u := NewUDP(UDPConfig{RelayAddress: "relay.example:40100"})
	cfg := u.tlsConfig()
	require.Nil(t, cfg.VerifyPeerCertificate)
}
