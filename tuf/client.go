package tuf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"io"

	"github.com/WatchBeam/clock"
	"github.com/pkg/errors"
)

const (
	rootFile      = "root.json"
	snapshotFile  = "snapshot.json"
	targetsFile   = "targets.json"
	timestampFile = "timestamp.json"
)

// Client drives the metadata trust pipeline: it holds the currently trusted
// root, timestamp, snapshot, and targets documents and advances them
// forward, never backward, as Update is called.
type Client struct {
	datastore *Datastore
	fetcher   Fetcher
	clock     clock.Clock

	root      *Signed[Root]
	timestamp *Signed[Timestamp]
	snapshot  *Signed[Snapshot]
	targets   *Signed[Targets]
}

// NewClient bootstraps a Client from an operator-supplied trusted root
// document. The root must verify under its own keys and must not be
// expired; both checks run before anything is persisted.
func NewClient(datastore *Datastore, fetcher Fetcher, trustedRoot []byte, clk clock.Clock) (*Client, error) {
	if clk == nil {
		clk = clock.New()
	}
	var root Signed[Root]
	if err := json.Unmarshal(trustedRoot, &root); err != nil {
		return nil, errors.Wrap(err, "parsing trust anchor root")
	}
	if err := root.Signed.ValidateKeyIDs(); err != nil {
		return nil, err
	}
	if err := root.Verify(&root); err != nil {
		return nil, errors.Wrap(err, "trust anchor root does not verify under its own keys")
	}
	if err := root.CheckExpired(clk.Now()); err != nil {
		return nil, err
	}

	c := &Client{datastore: datastore, fetcher: fetcher, clock: clk, root: &root}
	if err := c.persist(rootFile, trustedRoot); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadTrusted restores previously trusted documents from the datastore
// without contacting the mirror, for a process that is resuming rather than
// bootstrapping. Any document absent from the datastore is left nil.
func (c *Client) LoadTrusted() error {
	if raw, err := c.datastore.Get(rootFile); err != nil {
		return err
	} else if raw != nil {
		var root Signed[Root]
		if err := json.Unmarshal(raw, &root); err != nil {
			return errors.Wrap(err, "parsing datastore root")
		}
		c.root = &root
	}
	if raw, err := c.datastore.Get(timestampFile); err != nil {
		return err
	} else if raw != nil {
		var ts Signed[Timestamp]
		if err := json.Unmarshal(raw, &ts); err != nil {
			return errors.Wrap(err, "parsing datastore timestamp")
		}
		c.timestamp = &ts
	}
	if raw, err := c.datastore.Get(snapshotFile); err != nil {
		return err
	} else if raw != nil {
		var ss Signed[Snapshot]
		if err := json.Unmarshal(raw, &ss); err != nil {
			return errors.Wrap(err, "parsing datastore snapshot")
		}
		c.snapshot = &ss
	}
	if raw, err := c.datastore.Get(targetsFile); err != nil {
		return err
	} else if raw != nil {
		var t Signed[Targets]
		if err := json.Unmarshal(raw, &t); err != nil {
			return errors.Wrap(err, "parsing datastore targets")
		}
		c.targets = &t
	}
	return nil
}

// Update advances the trust pipeline in order: root rotation, timestamp,
// snapshot, targets. It aborts on the first failed step, leaving the
// previously trusted on-disk state untouched.
func (c *Client) Update(ctx context.Context) error {
	if err := c.rotateRoot(ctx); err != nil {
		return errors.Wrap(err, "root")
	}
	if err := c.root.CheckExpired(c.clock.Now()); err != nil {
		return err
	}
	if err := c.updateTimestamp(ctx); err != nil {
		return errors.Wrap(err, "timestamp")
	}
	if err := c.updateSnapshot(ctx); err != nil {
		return errors.Wrap(err, "snapshot")
	}
	if err := c.updateTargets(ctx); err != nil {
		return errors.Wrap(err, "targets")
	}
	return nil
}

// rotateRoot walks N = trusted.version+1, trusted.version+2, ... fetching
// each candidate root and requiring it to be double-signed: once under the
// currently trusted root's threshold and once under its own threshold.
func (c *Client) rotateRoot(ctx context.Context) error {
	for {
		next := c.root.Signed.Version + 1
		name := fmt.Sprintf("%d.root.json", next)
		raw, err := fetchAll(ctx, c.fetcher, name)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		var candidate Signed[Root]
		if err := json.Unmarshal(raw, &candidate); err != nil {
			return errors.Wrapf(err, "parsing %s", name)
		}
		if err := candidate.Signed.ValidateKeyIDs(); err != nil {
			return err
		}
		if candidate.Signed.Version != next {
			return &VersionRollbackError{Role: RoleRoot, Trusted: c.root.Signed.Version, Got: candidate.Signed.Version}
		}
		if err := candidate.Verify(c.root); err != nil {
			return errors.Wrap(err, "candidate root does not verify under the currently trusted root")
		}
		if err := candidate.Verify(&candidate); err != nil {
			return errors.Wrap(err, "candidate root does not verify under its own keys")
		}

		c.root = &candidate
		if err := c.persist(rootFile, raw); err != nil {
			return err
		}
		if err := c.persist(name, raw); err != nil {
			return err
		}
	}
}

func (c *Client) updateTimestamp(ctx context.Context) error {
	raw, err := fetchAll(ctx, c.fetcher, timestampFile)
	if err != nil {
		return err
	}
	var candidate Signed[Timestamp]
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return errors.Wrap(err, "parsing timestamp.json")
	}
	if err := candidate.Verify(c.root); err != nil {
		return err
	}
	if c.timestamp != nil && candidate.Signed.Version < c.timestamp.Signed.Version {
		return &VersionRollbackError{Role: RoleTimestamp, Trusted: c.timestamp.Signed.Version, Got: candidate.Signed.Version}
	}
	if err := candidate.CheckExpired(c.clock.Now()); err != nil {
		return err
	}
	c.timestamp = &candidate
	return c.persist(timestampFile, raw)
}

func (c *Client) updateSnapshot(ctx context.Context) error {
	meta, ok := c.timestamp.Signed.Meta[snapshotFile]
	if !ok {
		return errors.Errorf("timestamp.json has no entry for %s", snapshotFile)
	}
	name := snapshotFile
	if c.root.Signed.ConsistentSnapshot {
		name = fmt.Sprintf("%d.%s", meta.Version, snapshotFile)
	}
	raw, err := fetchAll(ctx, c.fetcher, name)
	if err != nil {
		return err
	}
	if err := checkLengthAndHash(name, raw, meta); err != nil {
		return err
	}

	var candidate Signed[Snapshot]
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return errors.Wrapf(err, "parsing %s", name)
	}
	if err := candidate.Verify(c.root); err != nil {
		return err
	}
	if c.snapshot != nil {
		if candidate.Signed.Version < c.snapshot.Signed.Version {
			return &VersionRollbackError{Role: RoleSnapshot, Trusted: c.snapshot.Signed.Version, Got: candidate.Signed.Version}
		}
		for file, oldMeta := range c.snapshot.Signed.Meta {
			if newMeta, ok := candidate.Signed.Meta[file]; ok && newMeta.Version < oldMeta.Version {
				return &VersionRollbackError{Role: RoleSnapshot, Trusted: oldMeta.Version, Got: newMeta.Version}
			}
		}
	}
	if err := candidate.CheckExpired(c.clock.Now()); err != nil {
		return err
	}
	c.snapshot = &candidate
	return c.persist(snapshotFile, raw)
}

func (c *Client) updateTargets(ctx context.Context) error {
	meta, ok := c.snapshot.Signed.Meta[targetsFile]
	if !ok {
		return errors.Errorf("snapshot.json has no entry for %s", targetsFile)
	}
	name := targetsFile
	if c.root.Signed.ConsistentSnapshot {
		name = fmt.Sprintf("%d.%s", meta.Version, targetsFile)
	}
	raw, err := fetchAll(ctx, c.fetcher, name)
	if err != nil {
		return err
	}
	if err := checkLengthAndHash(name, raw, meta); err != nil {
		return err
	}

	var candidate Signed[Targets]
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return errors.Wrapf(err, "parsing %s", name)
	}
	if err := candidate.Verify(c.root); err != nil {
		return err
	}
	if c.targets != nil && candidate.Signed.Version < c.targets.Signed.Version {
		return &VersionRollbackError{Role: RoleTargets, Trusted: c.targets.Signed.Version, Got: candidate.Signed.Version}
	}
	if err := candidate.CheckExpired(c.clock.Now()); err != nil {
		return err
	}
	c.targets = &candidate
	return c.persist(targetsFile, raw)
}

// Target returns the trusted entry for name, or *TargetNotFoundError if
// targets.json has no such entry.
func (c *Client) Target(name string) (*Target, error) {
	if c.targets == nil {
		return nil, errors.New("targets.json not loaded; call Update first")
	}
	t, ok := c.targets.Signed.Targets[name]
	if !ok {
		return nil, &TargetNotFoundError{Name: name}
	}
	return &t, nil
}

// DownloadTarget streams the bytes of the target named name, verifying its
// length and sha256 against the trusted targets.json entry as it streams. A
// mismatch is a fatal trust failure and the returned reader yields no
// further bytes.
func (c *Client) DownloadTarget(ctx context.Context, name string) (io.ReadCloser, error) {
	target, err := c.Target(name)
	if err != nil {
		return nil, err
	}
	var mirrorPath string
	if c.root.Signed.ConsistentSnapshot {
		mirrorPath = fmt.Sprintf("targets/%s.%s", target.Hashes.SHA256.String(), name)
	} else {
		mirrorPath = "targets/" + name
	}
	rc, err := c.fetcher.Fetch(ctx, mirrorPath)
	if err != nil {
		return nil, err
	}
	return &verifyingReader{
		ReadCloser: rc,
		name:       name,
		hash:       sha256.New(),
		wantHash:   target.Hashes.SHA256.Bytes(),
		wantLen:    target.Length,
	}, nil
}

// verifyingReader wraps a mirror response, hashing and counting bytes as
// they are read and checking the total against the expected length and
// digest once the stream is exhausted.
type verifyingReader struct {
	io.ReadCloser
	name     string
	hash     hash.Hash
	wantHash []byte
	wantLen  int64
	n        int64
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.ReadCloser.Read(p)
	if n > 0 {
		v.hash.Write(p[:n])
		v.n += int64(n)
	}
	if err == io.EOF {
		if v.n != v.wantLen {
			return n, &LengthMismatchError{File: v.name, Expected: v.wantLen, Got: v.n}
		}
		if !bytes.Equal(v.hash.Sum(nil), v.wantHash) {
			return n, &HashMismatchError{File: v.name}
		}
	}
	return n, err
}

func checkLengthAndHash(name string, data []byte, meta Meta) error {
	if int64(len(data)) != meta.Length {
		return &LengthMismatchError{File: name, Expected: meta.Length, Got: int64(len(data))}
	}
	sum := sha256.Sum256(data)
	if !bytes.Equal(sum[:], meta.Hashes.SHA256.Bytes()) {
		return &HashMismatchError{File: name}
	}
	return nil
}

func (c *Client) persist(name string, data []byte) error {
	return c.datastore.Create(name, data)
}

func fetchAll(ctx context.Context, f Fetcher, name string) ([]byte, error) {
	rc, err := f.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
