package author

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/kolide/gotuf/tuf"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Copylike selects how an input file is placed into the output repository's
// targets directory.
type Copylike int

const (
	CopylikeSymlink Copylike = iota
	CopylikeCopy
	CopylikeHardlink
)

func (c Copylike) place(src, dst string) error {
	switch c {
	case CopylikeCopy:
		return copyFile(src, dst)
	case CopylikeHardlink:
		return os.Link(src, dst)
	default:
		return os.Symlink(src, dst)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// RoleParams carries a role document's version and expiry, supplied by the
// caller per build.
type RoleParams struct {
	Version int
	Expires time.Time
}

// BuildConfig configures a single repository build.
type BuildConfig struct {
	Root    *tuf.Signed[tuf.Root]
	RootRaw []byte // the exact on-disk bytes of Root, whose hash/length snapshot.json records

	InDir  string
	OutDir string

	Copylike Copylike
	Follow   bool
	Jobs     int // 0 = runtime.NumCPU() default

	Keys []*KeyPair

	Targets   RoleParams
	Snapshot  RoleParams
	Timestamp RoleParams
}

// Builder assembles a full on-disk repository: it copies the root, hashes
// and places every target file, then signs and writes targets.json,
// snapshot.json, and timestamp.json in that order.
type Builder struct {
	cfg BuildConfig
}

func NewBuilder(cfg BuildConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build runs the full repository creation algorithm: copy root, hash and
// place targets (in parallel), then assemble, sign, and write
// targets.json, snapshot.json, and timestamp.json.
func (b *Builder) Build(ctx context.Context) error {
	metaDir := filepath.Join(b.cfg.OutDir, "metadata")
	targetsDir := filepath.Join(b.cfg.OutDir, "targets")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return errors.Wrap(err, "creating metadata directory")
	}
	if err := os.MkdirAll(targetsDir, 0o755); err != nil {
		return errors.Wrap(err, "creating targets directory")
	}

	rootVersion := b.cfg.Root.Signed.Version
	rootDst := filepath.Join(metaDir, fmt.Sprintf("%d.root.json", rootVersion))
	if err := os.WriteFile(rootDst, b.cfg.RootRaw, 0o644); err != nil {
		return errors.Wrap(err, "writing root.json copy")
	}
	rootSum := sha256.Sum256(b.cfg.RootRaw)
	rootMeta := tuf.Meta{
		Hashes:  tuf.Hashes{SHA256: tuf.NewHexDecoded(rootSum[:])},
		Length:  int64(len(b.cfg.RootRaw)),
		Version: rootVersion,
	}

	targetEntries, err := b.buildTargets(ctx, targetsDir)
	if err != nil {
		return err
	}
	targets := tuf.Targets{
		Type:        string(tuf.RoleTargets),
		SpecVersion: "1.0.0",
		Version:     b.cfg.Targets.Version,
		Expires:     b.cfg.Targets.Expires,
		Targets:     targetEntries,
	}
	targetsMeta, err := writeMetadata(b, metaDir, "targets.json", b.cfg.Targets.Version, &tuf.Signed[tuf.Targets]{Signed: targets})
	if err != nil {
		return err
	}

	snapshot := tuf.Snapshot{
		Type:        string(tuf.RoleSnapshot),
		SpecVersion: "1.0.0",
		Version:     b.cfg.Snapshot.Version,
		Expires:     b.cfg.Snapshot.Expires,
		Meta: map[string]tuf.Meta{
			"root.json":    rootMeta,
			"targets.json": targetsMeta,
		},
	}
	snapshotMeta, err := writeMetadata(b, metaDir, "snapshot.json", b.cfg.Snapshot.Version, &tuf.Signed[tuf.Snapshot]{Signed: snapshot})
	if err != nil {
		return err
	}

	timestamp := tuf.Timestamp{
		Type:        string(tuf.RoleTimestamp),
		SpecVersion: "1.0.0",
		Version:     b.cfg.Timestamp.Version,
		Expires:     b.cfg.Timestamp.Expires,
		Meta: map[string]tuf.Meta{
			"snapshot.json": snapshotMeta,
		},
	}
	if _, err := writeMetadata(b, metaDir, "timestamp.json", b.cfg.Timestamp.Version, &tuf.Signed[tuf.Timestamp]{Signed: timestamp}); err != nil {
		return err
	}

	return nil
}

// buildTargets enumerates InDir and hashes every regular file, placing each
// into targetsDir under its consistent-snapshot-qualified name. Hashing of
// distinct files runs concurrently; an errgroup scoped to this call bounds
// concurrency to Jobs rather than mutating any process-wide worker pool.
func (b *Builder) buildTargets(ctx context.Context, targetsDir string) (map[string]tuf.Target, error) {
	var names []string
	err := godirwalk.Walk(b.cfg.InDir, &godirwalk.Options{
		FollowSymbolicLinks: b.cfg.Follow,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsRegular() {
				names = append(names, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking input directory")
	}

	jobs := b.cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	var mu sync.Mutex
	result := make(map[string]tuf.Target, len(names))

	for _, path := range names {
		path := path
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			name, target, err := b.processTarget(path, targetsDir)
			if err != nil {
				return err
			}
			mu.Lock()
			result[name] = target
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Builder) processTarget(path, targetsDir string) (string, tuf.Target, error) {
	rel, err := filepath.Rel(b.cfg.InDir, path)
	if err != nil {
		return "", tuf.Target{}, errors.Wrapf(err, "relativizing %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", tuf.Target{}, errors.Wrapf(err, "opening %q", path)
	}
	defer f.Close()

	h := sha256.New()
	length, err := io.Copy(h, f)
	if err != nil {
		return "", tuf.Target{}, errors.Wrapf(err, "hashing %q", path)
	}
	sum := h.Sum(nil)

	target := tuf.Target{
		Length: length,
		Hashes: tuf.Hashes{SHA256: tuf.NewHexDecoded(sum)},
	}

	var dst string
	if b.cfg.Root.Signed.ConsistentSnapshot {
		dst = filepath.Join(targetsDir, fmt.Sprintf("%s.%s", target.Hashes.SHA256.String(), rel))
	} else {
		dst = filepath.Join(targetsDir, rel)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", tuf.Target{}, errors.Wrapf(err, "creating %q", filepath.Dir(dst))
	}
	if err := b.cfg.Copylike.place(path, dst); err != nil {
		return "", tuf.Target{}, errors.Wrapf(err, "placing %q", dst)
	}
	return rel, target, nil
}

// writeMetadata signs signed with every configured key authorized for its
// role, canonicalizes and pretty-prints it, writes it to metaDir under its
// consistent-snapshot-qualified filename (never version-prefixed for
// timestamp.json), and returns the on-disk bytes' length and hash.
func writeMetadata[T tuf.Metadata](b *Builder, metaDir, filename string, version int, signed *tuf.Signed[T]) (tuf.Meta, error) {
	role := signed.Role()
	roleKeys, ok := b.cfg.Root.Signed.Roles[role]
	if !ok {
		return tuf.Meta{}, &tuf.MissingRoleError{Role: role}
	}

	data, err := signed.CanonicalBytes()
	if err != nil {
		return tuf.Meta{}, err
	}
	for _, k := range b.cfg.Keys {
		pub, err := k.PublicKey()
		if err != nil {
			return tuf.Meta{}, err
		}
		keyid, err := pub.KeyID()
		if err != nil {
			return tuf.Meta{}, err
		}
		if !roleKeys.Authorizes(keyid) {
			continue
		}
		sig, err := k.Sign(data)
		if err != nil {
			return tuf.Meta{}, err
		}
		signed.AddSignature(tuf.Signature{KeyID: keyid, Sig: tuf.NewHexDecoded(sig)})
	}

	buf, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return tuf.Meta{}, errors.Wrap(err, "marshaling metadata")
	}
	buf = append(buf, '\n')

	name := filename
	if role != tuf.RoleTimestamp && b.cfg.Root.Signed.ConsistentSnapshot {
		name = fmt.Sprintf("%d.%s", version, filename)
	}
	path := filepath.Join(metaDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return tuf.Meta{}, errors.Wrapf(err, "writing %q", path)
	}

	sum := sha256.Sum256(buf)
	return tuf.Meta{
		Hashes:  tuf.Hashes{SHA256: tuf.NewHexDecoded(sum[:])},
		Length:  int64(len(buf)),
		Version: version,
	}, nil
}
