package author

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyPairPKCS1(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := x509.MarshalPKCS1PrivateKey(priv)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})

	kp, err := ParseKeyPair(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, priv.N, kp.priv.N)
}

func TestParseKeyPairPKCS8(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	kp, err := ParseKeyPair(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, priv.N, kp.priv.N)
}

func TestKeyPairSignVerifiesUnderItsOwnPublicKey(t *testing.T) {
	kp := newTestKeyPair(t)
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	data := []byte("payload")
	sig, err := kp.Sign(data)
	require.NoError(t, err)
	require.NoError(t, pub.Verify(data, sig))
}

func TestKeyPairEqualComparesPublicKeyMaterial(t *testing.T) {
	kp := newTestKeyPair(t)
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	ok, err := kp.Equal(pub)
	require.NoError(t, err)
	assert.True(t, ok)

	other := newTestKeyPair(t)
	otherPub, err := other.PublicKey()
	require.NoError(t, err)
	ok, err = kp.Equal(otherPub)
	require.NoError(t, err)
	assert.False(t, ok)
}
