package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/kolide/gotuf/author"
	"github.com/kolide/gotuf/tuf"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCreateCmd(logger log.Logger) *cobra.Command {
	var (
		rootPath         string
		inDir, outDir    string
		copyFiles        bool
		hardlink         bool
		follow           bool
		jobs             int
		keyPaths         []string
		targetsVersion   int
		targetsExpires   string
		snapshotVersion  int
		snapshotExpires  string
		timestampVersion int
		timestampExpires string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a full repository from a root.json and a directory of target files",
		RunE: func(cmd *cobra.Command, args []string) error {
			rootRaw, err := os.ReadFile(rootPath)
			if err != nil {
				return errors.Wrap(err, "reading root file")
			}
			var root tuf.Signed[tuf.Root]
			if err := json.Unmarshal(rootRaw, &root); err != nil {
				return errors.Wrap(err, "parsing root file")
			}

			keys := make([]*author.KeyPair, 0, len(keyPaths))
			for _, p := range keyPaths {
				raw, err := os.ReadFile(p)
				if err != nil {
					return errors.Wrapf(err, "reading key %q", p)
				}
				kp, err := author.ParseKeyPair(raw)
				if err != nil {
					return errors.Wrapf(err, "parsing key %q", p)
				}
				keys = append(keys, kp)
			}

			targetsExp, err := time.Parse(time.RFC3339, targetsExpires)
			if err != nil {
				return errors.Wrap(err, "parsing --targets-expires")
			}
			snapshotExp, err := time.Parse(time.RFC3339, snapshotExpires)
			if err != nil {
				return errors.Wrap(err, "parsing --snapshot-expires")
			}
			timestampExp, err := time.Parse(time.RFC3339, timestampExpires)
			if err != nil {
				return errors.Wrap(err, "parsing --timestamp-expires")
			}

			copylike := author.CopylikeSymlink
			switch {
			case copyFiles:
				copylike = author.CopylikeCopy
			case hardlink:
				copylike = author.CopylikeHardlink
			}

			builder := author.NewBuilder(author.BuildConfig{
				Root:      &root,
				RootRaw:   rootRaw,
				InDir:     inDir,
				OutDir:    outDir,
				Copylike:  copylike,
				Follow:    follow,
				Jobs:      jobs,
				Keys:      keys,
				Targets:   author.RoleParams{Version: targetsVersion, Expires: targetsExp},
				Snapshot:  author.RoleParams{Version: snapshotVersion, Expires: snapshotExp},
				Timestamp: author.RoleParams{Version: timestampVersion, Expires: timestampExp},
			})

			logger.Log("msg", "building repository", "indir", inDir, "outdir", outDir)
			if err := builder.Build(cmd.Context()); err != nil {
				return err
			}
			logger.Log("msg", "repository built", "outdir", outDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&rootPath, "root", "r", "", "path to the repository's root.json")
	flags.StringVar(&inDir, "indir", "", "directory of input target files")
	flags.StringVar(&outDir, "outdir", "", "repository output directory")
	flags.BoolVarP(&copyFiles, "copy", "c", false, "copy files into outdir instead of symlinking")
	flags.BoolVarP(&hardlink, "hardlink", "H", false, "hardlink files into outdir instead of symlinking")
	flags.BoolVarP(&follow, "follow", "f", false, "follow symbolic links in indir")
	flags.IntVarP(&jobs, "jobs", "j", 0, "number of target hashing workers (default: number of cores)")
	flags.StringArrayVarP(&keyPaths, "key", "k", nil, "path to a signing key (repeatable)")
	flags.IntVar(&targetsVersion, "targets-version", 1, "version of targets.json")
	flags.StringVar(&targetsExpires, "targets-expires", "", "expiry of targets.json, RFC3339")
	flags.IntVar(&snapshotVersion, "snapshot-version", 1, "version of snapshot.json")
	flags.StringVar(&snapshotExpires, "snapshot-expires", "", "expiry of snapshot.json, RFC3339")
	flags.IntVar(&timestampVersion, "timestamp-version", 1, "version of timestamp.json")
	flags.StringVar(&timestampExpires, "timestamp-expires", "", "expiry of timestamp.json, RFC3339")

	return cmd
}
