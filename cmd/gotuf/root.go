package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/kolide/gotuf/author"
	"github.com/kolide/gotuf/tuf"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRootOfTrustCmd(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Create and evolve a root.json document",
	}
	cmd.AddCommand(newRootInitCmd(logger))
	cmd.AddCommand(newRootExpireCmd(logger))
	cmd.AddCommand(newRootSetThresholdCmd(logger))
	cmd.AddCommand(newRootAddKeyCmd(logger))
	cmd.AddCommand(newGenRSAKeyCmd(logger))
	return cmd
}

func newRootInitCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init PATH",
		Short: "Create a new root.json skeleton",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := author.InitRoot(time.Now().UTC())
			signed := &tuf.Signed[tuf.Root]{Signed: *editor.Root}
			if err := writeRootFile(args[0], signed); err != nil {
				return err
			}
			logger.Log("msg", "root.json initialized", "path", args[0])
			return nil
		},
	}
}

func newRootExpireCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "expire PATH TIME",
		Short: "Set root.json's expiry, RFC3339",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := readRootFile(args[0])
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return errors.Wrap(err, "parsing expiry")
			}
			editor := &author.RootEditor{Root: &signed.Signed}
			editor.SetExpiry(t)
			if err := writeRootFile(args[0], signed); err != nil {
				return err
			}
			logger.Log("msg", "root.json expiry set", "path", args[0], "expires", editor.Root.Expires)
			return nil
		},
	}
}

func newRootSetThresholdCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set-threshold PATH ROLE N",
		Short: "Set a role's signature threshold",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := readRootFile(args[0])
			if err != nil {
				return err
			}
			role := tuf.Role(args[1])
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return errors.Wrap(err, "parsing threshold")
			}
			editor := &author.RootEditor{Root: &signed.Signed}
			editor.SetThreshold(role, n)
			if err := writeRootFile(args[0], signed); err != nil {
				return err
			}
			logger.Log("msg", "threshold set", "path", args[0], "role", role, "threshold", n)
			return nil
		},
	}
}

func newRootAddKeyCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "add-key PATH ROLE KEY_PATH",
		Short: "Add the public half of an RSA private key file to a role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := readRootFile(args[0])
			if err != nil {
				return err
			}
			role := tuf.Role(args[1])

			keyBytes, err := os.ReadFile(args[2])
			if err != nil {
				return errors.Wrapf(err, "reading key %q", args[2])
			}
			kp, err := author.ParseKeyPair(keyBytes)
			if err != nil {
				return errors.Wrapf(err, "parsing key %q", args[2])
			}
			pub, err := kp.PublicKey()
			if err != nil {
				return err
			}

			editor := &author.RootEditor{Root: &signed.Signed}
			if err := editor.AddKey(role, pub); err != nil {
				return err
			}
			if err := writeRootFile(args[0], signed); err != nil {
				return err
			}
			keyid, err := pub.KeyID()
			if err != nil {
				return err
			}
			logger.Log("msg", "key added", "path", args[0], "role", role, "keyid", keyid.String())
			return nil
		},
	}
}

func newGenRSAKeyCmd(logger log.Logger) *cobra.Command {
	var bits int
	var exp int
	cmd := &cobra.Command{
		Use:   "gen-rsa-key PATH ROLE KEYFILE",
		Short: "Generate a new RSA private key and add it to root.json's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := readRootFile(args[0])
			if err != nil {
				return err
			}
			role := tuf.Role(args[1])
			keyFile := args[2]

			gen := author.OpenSSLKeyGenerator{}
			pemBytes, err := gen.GenerateRSAKey(bits, exp)
			if err != nil {
				return err
			}
			if err := os.WriteFile(keyFile, pemBytes, 0o600); err != nil {
				return errors.Wrapf(err, "writing %q", keyFile)
			}

			kp, err := author.ParseKeyPair(pemBytes)
			if err != nil {
				return errors.Wrapf(err, "parsing generated key %q", keyFile)
			}
			pub, err := kp.PublicKey()
			if err != nil {
				return err
			}

			editor := &author.RootEditor{Root: &signed.Signed}
			if err := editor.AddKey(role, pub); err != nil {
				return err
			}
			if err := writeRootFile(args[0], signed); err != nil {
				return err
			}

			keyid, err := pub.KeyID()
			if err != nil {
				return err
			}
			logger.Log("msg", "rsa key generated and added", "path", args[0], "role", role, "keyfile", keyFile, "bits", bits, "exp", exp, "keyid", keyid.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size in bits")
	cmd.Flags().IntVar(&exp, "exp", 0, "RSA public exponent (0 uses openssl's default, 65537)")
	return cmd
}

func readRootFile(path string) (*tuf.Signed[tuf.Root], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	var signed tuf.Signed[tuf.Root]
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, errors.Wrapf(err, "parsing %q", path)
	}
	return &signed, nil
}

func writeRootFile(path string, signed *tuf.Signed[tuf.Root]) error {
	buf, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling root.json")
	}
	buf = append(buf, '\n')
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	return nil
}
