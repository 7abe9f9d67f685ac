package tuf

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Datastore persists the locally trusted copy of each role's metadata file.
// Every read and write first checks that the target path is not writable by
// group or other, since a datastore writable outside its owner undermines
// the whole point of caching verified metadata locally.
type Datastore struct {
	dir string
}

// NewDatastore opens (without creating) a datastore rooted at dir.
func NewDatastore(dir string) (*Datastore, error) {
	if err := checkPermissions(dir); err != nil {
		return nil, err
	}
	return &Datastore{dir: dir}, nil
}

func checkPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %q", path)
	}
	mode := uint32(info.Mode().Perm())
	if mode&0o022 != 0 {
		return &DatastorePermissionsError{Path: path, Mode: mode}
	}
	return nil
}

// Reader opens file for reading, returning (nil, nil) if it does not exist.
func (d *Datastore) Reader(file string) (io.ReadCloser, error) {
	path := filepath.Join(d.dir, file)
	if err := checkPermissions(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	return f, nil
}

// Get reads the full contents of file, returning (nil, nil) if it does not
// exist.
func (d *Datastore) Get(file string) ([]byte, error) {
	r, err := d.Reader(file)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Create writes data to file atomically: it writes to a sibling temp file
// and renames it into place, so a crash or concurrent reader never observes
// a partially written role document.
func (d *Datastore) Create(file string, data []byte) (err error) {
	path := filepath.Join(d.dir, file)
	if err := checkPermissions(path); err != nil {
		return err
	}
	tmpPath := path + "." + uuid.NewString() + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrapf(err, "creating %q", tmpPath)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %q", tmpPath)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "syncing %q", tmpPath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %q", tmpPath)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "renaming %q to %q", tmpPath, path)
	}
	return nil
}

// Remove deletes file, treating a missing file as success.
func (d *Datastore) Remove(file string) error {
	path := filepath.Join(d.dir, file)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %q", path)
	}
	return nil
}
