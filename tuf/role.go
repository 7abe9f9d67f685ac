package tuf

import (
	"encoding/json"
	"fmt"
)

// Role is one of the four TUF top-level roles.
type Role string

const (
	RoleRoot      Role = "root"
	RoleSnapshot  Role = "snapshot"
	RoleTargets   Role = "targets"
	RoleTimestamp Role = "timestamp"
)

func (r Role) String() string { return string(r) }

func (r Role) valid() bool {
	switch r {
	case RoleRoot, RoleSnapshot, RoleTargets, RoleTimestamp:
		return true
	default:
		return false
	}
}

// MarshalJSON renders a Role as its lowercase kebab-case string. All four
// roles are already lowercase single words, so this is the identity, but
// the explicit method documents the wire contract and rejects unknown
// values at encode time.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("tuf: %q is not a valid role", string(r))
	}
	return json.Marshal(string(r))
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.valid() {
		return fmt.Errorf("tuf: %q is not a valid role", s)
	}
	*r = role
	return nil
}

// MarshalText and UnmarshalText let Role serve as a map key under
// encoding/json (and the canonical JSON encoder, which shares its map-key
// handling): a named string type is otherwise serialized as its raw value
// without passing through MarshalJSON.
func (r Role) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("tuf: %q is not a valid role", string(r))
	}
	return []byte(r), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role := Role(text)
	if !role.valid() {
		return fmt.Errorf("tuf: %q is not a valid role", string(text))
	}
	*r = role
	return nil
}
