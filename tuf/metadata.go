package tuf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	cjson "github.com/docker/go/canonical/json"
)

// Metadata is implemented by each of the four signed payload types so that
// Signed[T] can generically find the right role-keys entry and expiry
// field.
type Metadata interface {
	role() Role
	expires() time.Time
}

// Signature pairs a keyid with the signature bytes it produced over the
// canonical encoding of a Signed[T]'s `signed` field.
type Signature struct {
	KeyID Decoded[Hex] `json:"keyid"`
	Sig   Decoded[Hex] `json:"sig"`
}

// RoleKeys authorizes a set of keyids to sign for a role, and the minimum
// count of distinct valid signatures required to trust it.
type RoleKeys struct {
	KeyIDs    []Decoded[Hex] `json:"keyids"`
	Threshold int            `json:"threshold"`
}

func (rk RoleKeys) authorizes(keyid Decoded[Hex]) bool {
	for _, id := range rk.KeyIDs {
		if id.Equal(keyid) {
			return true
		}
	}
	return false
}

// Authorizes reports whether keyid is one of rk's authorized signers.
func (rk RoleKeys) Authorizes(keyid Decoded[Hex]) bool {
	return rk.authorizes(keyid)
}

// Hashes carries the hash digests recorded for a file.
type Hashes struct {
	SHA256 Decoded[Hex] `json:"sha256"`
}

// Meta records the length, hashes, and version of a role metadata file as
// referenced from snapshot.json or timestamp.json.
type Meta struct {
	Hashes  Hashes `json:"hashes"`
	Length  int64  `json:"length"`
	Version int    `json:"version"`
}

// Target records the length, hashes, and free-form custom metadata of a
// target file as referenced from targets.json.
type Target struct {
	Length int64                  `json:"length"`
	Hashes Hashes                 `json:"hashes"`
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Root is the root role's signed content: the trust anchor for every other
// role's keys and thresholds.
type Root struct {
	Type        string    `json:"_type"`
	SpecVersion string    `json:"spec_version"`
	Version     int       `json:"version"`
	Expires     time.Time `json:"expires"`
	// Keys is keyed by the keyid's lowercase-hex text, per the TUF wire
	// format. Duplicate keys in the source JSON are rejected at parse
	// time (see unmarshalUniqueStringKeyedObject) rather than silently
	// overwritten, per the duplicate-keyid seed test.
	Keys               map[string]Key    `json:"keys"`
	Roles              map[Role]RoleKeys `json:"roles"`
	ConsistentSnapshot bool              `json:"consistent_snapshot"`
}

func (r Root) role() Role         { return RoleRoot }
func (r Root) expires() time.Time { return r.Expires }

// KeyByID looks up a key by its hex keyid string.
func (r *Root) KeyByID(keyid Decoded[Hex]) (Key, bool) {
	k, ok := r.Keys[keyid.String()]
	return k, ok
}

// ValidateKeyIDs checks that every key in r.Keys is stored under its own
// computed keyid: keyid must equal the SHA-256 of the canonical JSON of
// the key object.
func (r *Root) ValidateKeyIDs() error {
	for stored, key := range r.Keys {
		computed, err := key.KeyID()
		if err != nil {
			return fmt.Errorf("tuf: computing keyid: %w", err)
		}
		if computed.String() != stored {
			return fmt.Errorf("tuf: key stored under keyid %q but computes to %q", stored, computed.String())
		}
	}
	return nil
}

// rootAlias has the same JSON shape as Root but leaves Keys as a raw
// message so UnmarshalJSON can detect duplicate keyids before decoding it
// into a map (the default map decoder silently keeps only the last of two
// duplicate keys, which would hide the tampering the duplicate-keyid seed
// test checks for).
type rootAlias struct {
	Type               string            `json:"_type"`
	SpecVersion        string            `json:"spec_version"`
	Version            int               `json:"version"`
	Expires            time.Time         `json:"expires"`
	Keys               json.RawMessage   `json:"keys"`
	Roles              map[Role]RoleKeys `json:"roles"`
	ConsistentSnapshot bool              `json:"consistent_snapshot"`
}

// UnmarshalJSON decodes Root, rejecting a `keys` object containing two
// entries with the same keyid.
func (r *Root) UnmarshalJSON(data []byte) error {
	var alias rootAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	keys, err := unmarshalUniqueStringKeyedObject[Key](alias.Keys)
	if err != nil {
		return fmt.Errorf("tuf: decoding root keys: %w", err)
	}
	r.Type = alias.Type
	r.SpecVersion = alias.SpecVersion
	r.Version = alias.Version
	r.Expires = alias.Expires
	r.ConsistentSnapshot = alias.ConsistentSnapshot
	r.Keys = keys
	r.Roles = alias.Roles
	return nil
}

// unmarshalUniqueStringKeyedObject decodes a JSON object into a
// map[string]V, failing if any key appears more than once. encoding/json's
// default map decoding silently lets a later duplicate key overwrite an
// earlier one; callers that must detect tampering-via-duplicate-key (like
// root.json's keys map) need this instead.
func unmarshalUniqueStringKeyedObject[V any](data []byte) (map[string]V, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	seen := make(map[string]bool)
	result := make(map[string]V)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string object key")
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		var v V
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		result[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return result, nil
}

// Snapshot is the snapshot role's signed content: versions, hashes, and
// lengths of every other non-timestamp metadata file.
type Snapshot struct {
	Type        string          `json:"_type"`
	SpecVersion string          `json:"spec_version"`
	Version     int             `json:"version"`
	Expires     time.Time       `json:"expires"`
	Meta        map[string]Meta `json:"meta"`
}

func (s Snapshot) role() Role         { return RoleSnapshot }
func (s Snapshot) expires() time.Time { return s.Expires }

// Targets is the targets role's signed content: the index of target files
// this repository serves.
type Targets struct {
	Type        string            `json:"_type"`
	SpecVersion string            `json:"spec_version"`
	Version     int               `json:"version"`
	Expires     time.Time         `json:"expires"`
	Targets     map[string]Target `json:"targets"`
}

func (t Targets) role() Role         { return RoleTargets }
func (t Targets) expires() time.Time { return t.Expires }

// Timestamp is the timestamp role's signed content: a pointer to the
// current snapshot, resigned frequently to bound the staleness window.
type Timestamp struct {
	Type        string          `json:"_type"`
	SpecVersion string          `json:"spec_version"`
	Version     int             `json:"version"`
	Expires     time.Time       `json:"expires"`
	Meta        map[string]Meta `json:"meta"`
}

func (t Timestamp) role() Role         { return RoleTimestamp }
func (t Timestamp) expires() time.Time { return t.Expires }

// Signed wraps any of the four role payloads with the signatures covering
// its canonical encoding.
type Signed[T Metadata] struct {
	Signed     T           `json:"signed"`
	Signatures []Signature `json:"signatures"`
}

// canonicalSignedBytes returns the canonical JSON encoding of s.Signed --
// the exact bytes that are (or must be) signed.
func canonicalSignedBytes[T Metadata](s *Signed[T]) ([]byte, error) {
	return cjson.MarshalCanonical(s.Signed)
}

// Role returns the role of s.Signed.
func (s *Signed[T]) Role() Role {
	return s.Signed.role()
}

// CanonicalBytes returns the canonical JSON encoding of s.Signed -- the
// exact bytes a signature over this document covers.
func (s *Signed[T]) CanonicalBytes() ([]byte, error) {
	return canonicalSignedBytes(s)
}

// AddSignature appends sig to s.Signatures.
func (s *Signed[T]) AddSignature(sig Signature) {
	s.Signatures = append(s.Signatures, sig)
}
