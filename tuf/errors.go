package tuf

import "fmt"

// MissingRoleError is returned when a root document has no RoleKeys entry
// for the role being verified.
type MissingRoleError struct {
	Role Role
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("root metadata has no keys for role %q", e.Role)
}

// SignatureThresholdError is returned when fewer than threshold distinct,
// valid signatures cover a signed document.
type SignatureThresholdError struct {
	Role      Role
	Threshold int
	Valid     int
}

func (e *SignatureThresholdError) Error() string {
	return fmt.Sprintf("role %q requires %d valid signatures, got %d", e.Role, e.Threshold, e.Valid)
}

// ExpiredMetadataError is returned when a document's expires field is at or
// before the current time.
type ExpiredMetadataError struct {
	Role    Role
	Expires string
}

func (e *ExpiredMetadataError) Error() string {
	return fmt.Sprintf("metadata for role %q expired at %s", e.Role, e.Expires)
}

// VersionRollbackError is returned when a candidate document's version is
// lower than the previously trusted version, or, during root rotation, is
// not exactly one more than the trusted root's version.
type VersionRollbackError struct {
	Role    Role
	Trusted int
	Got     int
}

func (e *VersionRollbackError) Error() string {
	return fmt.Sprintf("role %q version rollback: trusted version %d, got %d", e.Role, e.Trusted, e.Got)
}

// HashMismatchError is returned when a referring document's recorded hash
// does not match the bytes of the referenced file.
type HashMismatchError struct {
	File string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %q", e.File)
}

// LengthMismatchError is returned when a referring document's recorded
// length does not match the bytes of the referenced file.
type LengthMismatchError struct {
	File     string
	Expected int64
	Got      int64
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length mismatch for %q: expected %d, got %d", e.File, e.Expected, e.Got)
}

// TargetNotFoundError is returned when a requested target path has no entry
// in the trusted targets document.
type TargetNotFoundError struct {
	Name string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target %q not found", e.Name)
}

// KeyDuplicateError is returned when a key being added to root.json shares a
// keyid with a distinct key already present.
type KeyDuplicateError struct {
	KeyID string
}

func (e *KeyDuplicateError) Error() string {
	return fmt.Sprintf("a different key with id %q is already present", e.KeyID)
}

// DatastorePermissionsError is returned when a datastore directory or file
// is writable by group or other.
type DatastorePermissionsError struct {
	Path string
	Mode uint32
}

func (e *DatastorePermissionsError) Error() string {
	return fmt.Sprintf("%q has mode %#o, which is writable by group or other", e.Path, e.Mode)
}

// NotFoundError signals that a remote role document does not exist (HTTP
// 404 or equivalent). It is recovery-relevant only during root rotation;
// everywhere else the caller should treat it as fatal.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found on mirror", e.Name)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := Cause(err).(*NotFoundError)
	return ok
}

// causer mirrors github.com/pkg/errors.Cause without importing it, since
// plain errors may also need unwrapping via errors.Unwrap.
type causer interface {
	Cause() error
}

// Cause returns the deepest wrapped error, preferring pkg/errors-style
// Cause() and falling back to stdlib Unwrap().
func Cause(err error) error {
	type unwrapper interface {
		Unwrap() error
	}
	for err != nil {
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		if u, ok := err.(unwrapper); ok {
			next := u.Unwrap()
			if next == nil {
				break
			}
			err = next
			continue
		}
		break
	}
	return err
}
