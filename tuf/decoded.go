package tuf

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
)

// Encoding describes how a Decoded[E] value's wire text is turned into
// bytes. Implementations are unit types; the only required behavior is
// Parse.
type Encoding interface {
	Parse(s string) ([]byte, error)
}

// Hex decodes a case-insensitive hex string, as used for keyids and
// signatures.
type Hex struct{}

// Parse implements Encoding.
func (Hex) Parse(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("tuf: hex decode: %w", err)
	}
	return b, nil
}

// PEM decodes the body of a single RFC 7468 PEM block, as used for RSA
// public key material.
type PEM struct{}

// Parse implements Encoding.
func (PEM) Parse(s string) ([]byte, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("tuf: pem decode: no PEM block found")
	}
	return block.Bytes, nil
}

// Decoded carries both the textual encoding a peer produced and the bytes
// it decodes to. Equality and ordering are defined on the decoded bytes;
// serialization always emits the original text, so re-serializing a
// document a peer produced is byte-identical to what was signed even if
// the peer used non-canonical hex case or PEM line wrapping.
//
// See tough::serde::decoded::Decoded<T: Decode> in the original Rust
// implementation this is ported from.
type Decoded[E Encoding] struct {
	original string
	bytes    []byte
}

// NewHexDecoded builds a Decoded[Hex] from raw bytes, rendering the
// original text as lowercase hex. Used when this side computes a digest or
// signature itself (keyids, hashes, freshly produced signatures) rather
// than parsing one a peer sent.
func NewHexDecoded(b []byte) Decoded[Hex] {
	return Decoded[Hex]{original: hex.EncodeToString(b), bytes: b}
}

// ParseDecoded decodes original using E's Parse and, on success, returns a
// Decoded value that preserves original verbatim for serialization.
func ParseDecoded[E Encoding](original string) (Decoded[E], error) {
	var enc E
	b, err := enc.Parse(original)
	if err != nil {
		return Decoded[E]{}, err
	}
	return Decoded[E]{original: original, bytes: b}, nil
}

// Bytes returns the decoded bytes.
func (d Decoded[E]) Bytes() []byte { return d.bytes }

// String returns the original text.
func (d Decoded[E]) String() string { return d.original }

// Equal compares two Decoded values by their decoded bytes.
func (d Decoded[E]) Equal(other Decoded[E]) bool {
	return bytes.Equal(d.bytes, other.bytes)
}

// Compare orders two Decoded values by their decoded bytes.
func (d Decoded[E]) Compare(other Decoded[E]) int {
	return bytes.Compare(d.bytes, other.bytes)
}

// MarshalJSON emits the original text, never the decoded bytes.
func (d Decoded[E]) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.original)
}

// MarshalText implements encoding.TextMarshaler, again emitting the
// original text.
func (d Decoded[E]) MarshalText() ([]byte, error) {
	return []byte(d.original), nil
}

// UnmarshalJSON decodes a JSON string, validating it under E and recording
// both the original text and the decoded bytes.
func (d *Decoded[E]) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText validates text under E and records both the original text
// and the decoded bytes; UnmarshalJSON delegates to it.
func (d *Decoded[E]) UnmarshalText(text []byte) error {
	var enc E
	b, err := enc.Parse(string(text))
	if err != nil {
		return err
	}
	d.original = string(text)
	d.bytes = b
	return nil
}
