package tuf

import (
	"time"
)

// Verify checks s against the currently trusted root: s's role must have an
// authorization entry in root, and the set of distinct authorized keyids
// whose signature verifies over the canonical encoding of s.Signed must meet
// the role's threshold. Duplicate keyids among s.Signatures count once.
func (s *Signed[T]) Verify(root *Signed[Root]) error {
	role := s.Signed.role()
	roleKeys, ok := root.Signed.Roles[role]
	if !ok {
		return &MissingRoleError{Role: role}
	}

	data, err := canonicalSignedBytes(s)
	if err != nil {
		return err
	}

	valid := make(map[string]bool)
	for _, sig := range s.Signatures {
		if !roleKeys.authorizes(sig.KeyID) {
			continue
		}
		key, ok := root.Signed.KeyByID(sig.KeyID)
		if !ok {
			continue
		}
		if err := key.Verify(data, sig.Sig.Bytes()); err != nil {
			continue
		}
		valid[sig.KeyID.String()] = true
	}

	if len(valid) < roleKeys.Threshold {
		return &SignatureThresholdError{Role: role, Threshold: roleKeys.Threshold, Valid: len(valid)}
	}
	return nil
}

// CheckExpired fails with ExpiredMetadataError when now is at or after
// s.Signed's expires field.
func (s *Signed[T]) CheckExpired(now time.Time) error {
	expires := s.Signed.expires()
	if !now.Before(expires) {
		return &ExpiredMetadataError{Role: s.Signed.role(), Expires: expires.Format(time.RFC3339)}
	}
	return nil
}
