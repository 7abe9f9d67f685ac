package tuf

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"
	"time"

	cjson "github.com/docker/go/canonical/json"
	"github.com/stretchr/testify/require"
)

// testKey generates an RSA key pair along with its wrapped Key and keyid,
// for use as a role signer in tests.
type testKey struct {
	priv  *rsa.PrivateKey
	key   Key
	keyid Decoded[Hex]
}

func generateTestKey(t *testing.T) testKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := NewRSAKey(&priv.PublicKey)
	require.NoError(t, err)
	keyid, err := key.KeyID()
	require.NoError(t, err)
	return testKey{priv: priv, key: key, keyid: keyid}
}

// sign produces a Signature over the canonical encoding of signed.
func (tk testKey) sign(t *testing.T, signed interface{}) Signature {
	t.Helper()
	data, err := cjson.MarshalCanonical(signed)
	require.NoError(t, err)
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, tk.priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	require.NoError(t, err)
	return Signature{KeyID: tk.keyid, Sig: NewHexDecoded(sig)}
}

// newSelfSignedRoot builds a Signed[Root] authorizing tk at threshold 1 for
// every role, signed by tk itself.
func newSelfSignedRoot(t *testing.T, tk testKey, version int, expires time.Time, consistentSnapshot bool) *Signed[Root] {
	t.Helper()
	root := Root{
		Type:               "root",
		SpecVersion:        "1.0.0",
		Version:            version,
		Expires:            expires,
		ConsistentSnapshot: consistentSnapshot,
		Keys:               map[string]Key{tk.keyid.String(): tk.key},
		Roles: map[Role]RoleKeys{
			RoleRoot:      {KeyIDs: []Decoded[Hex]{tk.keyid}, Threshold: 1},
			RoleSnapshot:  {KeyIDs: []Decoded[Hex]{tk.keyid}, Threshold: 1},
			RoleTargets:   {KeyIDs: []Decoded[Hex]{tk.keyid}, Threshold: 1},
			RoleTimestamp: {KeyIDs: []Decoded[Hex]{tk.keyid}, Threshold: 1},
		},
	}
	signed := &Signed[Root]{Signed: root}
	signed.Signatures = []Signature{tk.sign(t, root)}
	return signed
}
