package tuf

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	cjson "github.com/docker/go/canonical/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIDStableAcrossPEMReencoding(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	k1, err := NewRSAKey(&priv.PublicKey)
	require.NoError(t, err)
	id1, err := k1.KeyID()
	require.NoError(t, err)

	// Reparsing the same PEM text must yield the same keyid, since keyid
	// is derived from the decoded DER bytes via canonical JSON, not the
	// armor text itself.
	reparsed, err := ParseDecoded[PEM](k1.KeyVal.Public.String())
	require.NoError(t, err)
	k2 := Key{KeyType: k1.KeyType, Scheme: k1.Scheme, KeyVal: KeyVal{Public: reparsed}}
	id2, err := k2.KeyID()
	require.NoError(t, err)
	assert.Equal(t, id1.String(), id2.String())
}

func TestKeyEqualComparesDERNotPEMText(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	k, err := NewRSAKey(&priv.PublicKey)
	require.NoError(t, err)

	// Same key material, different armor text (CRLF line endings).
	other, err := ParseDecoded[PEM](strings.ReplaceAll(k.KeyVal.Public.String(), "\n", "\r\n"))
	require.NoError(t, err)
	assert.NotEqual(t, k.KeyVal.Public.String(), other.String())
	k2 := Key{KeyType: k.KeyType, Scheme: k.Scheme, KeyVal: KeyVal{Public: other}}
	assert.True(t, k.Equal(k2))
}

func TestKeyVerifyRejectsCorruptSignature(t *testing.T) {
	tk := generateTestKey(t)
	sig := tk.sign(t, "payload-marker")
	corrupt := append([]byte(nil), sig.Sig.Bytes()...)
	corrupt[0] ^= 0xFF

	data := canonicalOf(t, "payload-marker")
	err := tk.key.Verify(data, corrupt)
	assert.Error(t, err)
}

func canonicalOf(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := cjson.MarshalCanonical(v)
	require.NoError(t, err)
	return b
}
