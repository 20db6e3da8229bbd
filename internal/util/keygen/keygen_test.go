package keygen

import (
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	block, _ := pem.Decode(keyPair.PrivateKey)
	require.NotNil(t, block)
	assert.Equal(t, "RSA PRIVATE KEY", block.Type)
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, 2048, priv.N.BitLen())

	assert.True(t, strings.HasPrefix(string(keyPair.PublicKey), "ssh-rsa "))
	_, _, _, _, err = ssh.ParseAuthorizedKey(keyPair.PublicKey)
	require.NoError(t, err)
}

func TestGenerateRSAKeyPair_Unique(t *testing.T) {
	t.Parallel()
	a, err := GenerateRSAKeyPair(1024)
	require.NoError(t, err)
	b, err := GenerateRSAKeyPair(1024)
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}

func TestFingerprint_IgnoresComment(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(1024)
	require.NoError(t, err)

	plain, err := Fingerprint(keyPair.PublicKey)
	require.NoError(t, err)
	commented := strings.TrimSpace(string(keyPair.PublicKey)) + " deploy@lab\n"
	withComment, err := Fingerprint([]byte(commented))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plain, "SHA256:"))
	assert.Equal(t, plain, withComment)

	normalized, err := Normalize([]byte(commented))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(string(keyPair.PublicKey)), normalized)
}

func TestFingerprint_Invalid(t *testing.T) {
	t.Parallel()
	_, err := Fingerprint([]byte("not a key"))
	assert.Error(t, err)
}

func TestWipe(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(1024)
	require.NoError(t, err)
	private := keyPair.PrivateKey

	keyPair.Wipe()

	assert.Nil(t, keyPair.PrivateKey)
	for _, b := range private {
		require.Zero(t, b)
	}
	var nilPair *KeyPair
	nilPair.Wipe()
}
