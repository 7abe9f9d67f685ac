package author

import (
	"time"

	"github.com/kolide/gotuf/tuf"
	"github.com/pkg/errors"
)

// absurdThreshold is deliberately impractical so that `root init` output
// fails closed until an operator explicitly sets a real threshold for every
// role.
const absurdThreshold = 1507

// RootEditor provides the small imperative operations for evolving a
// root.json document across its lifetime: init, expiry, threshold, and key
// changes.
type RootEditor struct {
	Root *tuf.Root
}

// InitRoot builds a fresh root skeleton: version 1, consistent snapshots on,
// every role present with no authorized keys and an absurd threshold.
func InitRoot(now time.Time) *RootEditor {
	root := &tuf.Root{
		Type:               string(tuf.RoleRoot),
		SpecVersion:        "1.0.0",
		Version:            1,
		Expires:            roundToSecond(now),
		ConsistentSnapshot: true,
		Keys:               map[string]tuf.Key{},
		Roles: map[tuf.Role]tuf.RoleKeys{
			tuf.RoleRoot:      emptyRoleKeys(),
			tuf.RoleSnapshot:  emptyRoleKeys(),
			tuf.RoleTargets:   emptyRoleKeys(),
			tuf.RoleTimestamp: emptyRoleKeys(),
		},
	}
	return &RootEditor{Root: root}
}

func emptyRoleKeys() tuf.RoleKeys {
	return tuf.RoleKeys{KeyIDs: []tuf.Decoded[tuf.Hex]{}, Threshold: absurdThreshold}
}

// roundToSecond truncates to second precision, so expiries written to
// root.json carry no fractional seconds.
func roundToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// SetExpiry sets the root document's expiry, truncated to second precision.
func (e *RootEditor) SetExpiry(t time.Time) {
	e.Root.Expires = roundToSecond(t)
}

// SetThreshold sets role's signature threshold, creating the role's entry
// if absent.
func (e *RootEditor) SetThreshold(role tuf.Role, threshold int) {
	rk, ok := e.Root.Roles[role]
	if !ok {
		rk = emptyRoleKeys()
	}
	rk.Threshold = threshold
	e.Root.Roles[role] = rk
}

// AddKey authorizes key for role. If an equal key (by DER bytes) is already
// present in root.keys, its existing keyid is reused instead of computing a
// new one, so adding the same key twice is a no-op after the first call.
// Two distinct keys hashing to the same keyid is a fatal KeyDuplicateError.
func (e *RootEditor) AddKey(role tuf.Role, key tuf.Key) error {
	keyid, err := e.resolveKeyID(key)
	if err != nil {
		return err
	}

	rk, ok := e.Root.Roles[role]
	if !ok {
		rk = emptyRoleKeys()
	}
	for _, existing := range rk.KeyIDs {
		if existing.Equal(keyid) {
			e.Root.Roles[role] = rk
			return nil
		}
	}
	rk.KeyIDs = append(rk.KeyIDs, keyid)
	e.Root.Roles[role] = rk
	return nil
}

// resolveKeyID returns key's keyid, reusing an existing entry in root.keys
// whose key material is equal, and rejecting a genuine keyid collision
// between distinct key material.
func (e *RootEditor) resolveKeyID(key tuf.Key) (tuf.Decoded[tuf.Hex], error) {
	for stored, candidate := range e.Root.Keys {
		if candidate.Equal(key) {
			return tuf.ParseDecoded[tuf.Hex](stored)
		}
	}

	keyid, err := key.KeyID()
	if err != nil {
		return tuf.Decoded[tuf.Hex]{}, errors.Wrap(err, "computing keyid")
	}
	if _, exists := e.Root.Keys[keyid.String()]; exists {
		return tuf.Decoded[tuf.Hex]{}, &tuf.KeyDuplicateError{KeyID: keyid.String()}
	}
	e.Root.Keys[keyid.String()] = key
	return keyid, nil
}
