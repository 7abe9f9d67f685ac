package tuf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodedHexRoundTrip(t *testing.T) {
	d, err := ParseDecoded[Hex]("DEADbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, d.Bytes())
	assert.Equal(t, "DEADbeef", d.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"DEADbeef"`, string(out))

	var back Decoded[Hex]
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, d.Equal(back))
	assert.Equal(t, d.String(), back.String())
}

func TestDecodedHexRejectsOddLength(t *testing.T) {
	_, err := ParseDecoded[Hex]("abc")
	assert.Error(t, err)
}

func TestDecodedHexRejectsNonHex(t *testing.T) {
	_, err := ParseDecoded[Hex]("zz")
	assert.Error(t, err)
}

func TestNewHexDecodedLowercase(t *testing.T) {
	d := NewHexDecoded([]byte{0xab, 0xcd})
	assert.Equal(t, "abcd", d.String())
}

func TestDecodedEqualIgnoresOriginalCase(t *testing.T) {
	a, err := ParseDecoded[Hex]("ABCD")
	require.NoError(t, err)
	b, err := ParseDecoded[Hex]("abcd")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.String(), b.String())
}
