package author

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/kolide/gotuf/tuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &KeyPair{priv: priv}
}

func TestInitRootSkeleton(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 123456789, time.UTC)
	editor := InitRoot(now)

	assert.Equal(t, 1, editor.Root.Version)
	assert.True(t, editor.Root.ConsistentSnapshot)
	assert.Empty(t, editor.Root.Keys)
	assert.Equal(t, 0, editor.Root.Expires.Nanosecond())

	for _, role := range []tuf.Role{tuf.RoleRoot, tuf.RoleSnapshot, tuf.RoleTargets, tuf.RoleTimestamp} {
		rk, ok := editor.Root.Roles[role]
		require.True(t, ok, "role %s missing", role)
		assert.Empty(t, rk.KeyIDs)
		assert.Equal(t, absurdThreshold, rk.Threshold)
	}
}

func TestSetExpiryTruncatesToSecond(t *testing.T) {
	editor := InitRoot(time.Now())
	withNanos := time.Date(2031, 6, 1, 0, 0, 0, 999999999, time.UTC)
	editor.SetExpiry(withNanos)
	assert.Equal(t, 0, editor.Root.Expires.Nanosecond())
	assert.Equal(t, withNanos.Truncate(time.Second), editor.Root.Expires)
}

func TestSetThreshold(t *testing.T) {
	editor := InitRoot(time.Now())
	editor.SetThreshold(tuf.RoleTargets, 3)
	assert.Equal(t, 3, editor.Root.Roles[tuf.RoleTargets].Threshold)
}

func TestAddKeyIsIdempotent(t *testing.T) {
	editor := InitRoot(time.Now())
	kp := newTestKeyPair(t)
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	require.NoError(t, editor.AddKey(tuf.RoleTargets, pub))
	keysAfterFirst := len(editor.Root.Keys)
	keyidsAfterFirst := append([]tuf.Decoded[tuf.Hex]{}, editor.Root.Roles[tuf.RoleTargets].KeyIDs...)

	require.NoError(t, editor.AddKey(tuf.RoleTargets, pub))
	assert.Equal(t, keysAfterFirst, len(editor.Root.Keys))
	assert.Equal(t, keyidsAfterFirst, editor.Root.Roles[tuf.RoleTargets].KeyIDs)
}

func TestAddKeyReusesKeyIDAcrossPEMReencoding(t *testing.T) {
	editor := InitRoot(time.Now())
	kp := newTestKeyPair(t)
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	require.NoError(t, editor.AddKey(tuf.RoleTargets, pub))

	// Same key material, different armor text (CRLF line endings).
	reparsed, err := tuf.ParseDecoded[tuf.PEM](strings.ReplaceAll(pub.KeyVal.Public.String(), "\n", "\r\n"))
	require.NoError(t, err)
	pub2 := tuf.Key{KeyType: pub.KeyType, Scheme: pub.Scheme, KeyVal: tuf.KeyVal{Public: reparsed}}

	require.NoError(t, editor.AddKey(tuf.RoleSnapshot, pub2))
	assert.Equal(t, 1, len(editor.Root.Keys))
}

// Two distinct keys actually colliding on SHA-256 is computationally
// infeasible to construct, so this test simulates the collision directly:
// it plants a different key under the candidate's keyid and checks that
// AddKey's duplicate-keyid guard, not its reuse-by-equality path, fires.
func TestAddKeyDetectsGenuineKeyidCollision(t *testing.T) {
	editor := InitRoot(time.Now())
	kp := newTestKeyPair(t)
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	other := newTestKeyPair(t)
	otherPub, err := other.PublicKey()
	require.NoError(t, err)
	otherKeyID, err := otherPub.KeyID()
	require.NoError(t, err)
	editor.Root.Keys[otherKeyID.String()] = pub

	err = editor.AddKey(tuf.RoleRoot, otherPub)
	require.Error(t, err)
	var dup *tuf.KeyDuplicateError
	assert.ErrorAs(t, err, &dup)
}
