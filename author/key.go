// Package author implements the authoring side of the repository: building
// a signed repository from a directory of input files, and editing a
// root.json document as keys and policy evolve.
package author

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"os/exec"
	"strconv"

	"github.com/kolide/gotuf/tuf"
	"github.com/pkg/errors"
)

// KeyPair wraps an RSA private key so it can sign role documents and
// produce the Key object its signatures verify under.
type KeyPair struct {
	priv *rsa.PrivateKey
}

// ParseKeyPair parses a PEM-armored PKCS#1 or PKCS#8 RSA private key.
func ParseKeyPair(pemBytes []byte) (*KeyPair, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in key file")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &KeyPair{priv: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "key is neither PKCS#1 nor PKCS#8 RSA")
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an RSA private key")
	}
	return &KeyPair{priv: rsaKey}, nil
}

// Sign produces an RSASSA-PSS-SHA256 signature over data.
func (k *KeyPair) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, k.priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, errors.Wrap(err, "signing")
	}
	return sig, nil
}

// PublicKey returns the tuf.Key object this pair's signatures verify under.
func (k *KeyPair) PublicKey() (tuf.Key, error) {
	return tuf.NewRSAKey(&k.priv.PublicKey)
}

// Equal reports whether k's public key matches key's, per root.json
// add-key's key-equality rule (DER bytes of the public key, not PEM text).
func (k *KeyPair) Equal(key tuf.Key) (bool, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return false, err
	}
	return pub.Equal(key), nil
}

// KeyGenerator produces a new RSA private key, PEM-armored, for operators
// who want tuf to generate key material rather than supply their own. exp
// is the public exponent to use; callers pass 0 to accept the tool's
// default (65537).
type KeyGenerator interface {
	GenerateRSAKey(bits, exp int) ([]byte, error)
}

// OpenSSLKeyGenerator shells out to the system `openssl` binary, mirroring
// the common operational practice of keeping private key generation in a
// well-audited external tool rather than an in-process RNG call.
type OpenSSLKeyGenerator struct{}

// GenerateRSAKey runs `openssl genpkey`, which exposes the public exponent
// as a pkeyopt; `openssl genrsa` has no equivalent flag. An exp of 0 omits
// the pkeyopt and falls back to openssl's own default (65537).
func (OpenSSLKeyGenerator) GenerateRSAKey(bits, exp int) ([]byte, error) {
	args := []string{"genpkey", "-algorithm", "RSA", "-pkeyopt", "rsa_keygen_bits:" + strconv.Itoa(bits)}
	if exp != 0 {
		args = append(args, "-pkeyopt", "rsa_keygen_pubexp:"+strconv.Itoa(exp))
	}
	cmd := exec.Command("openssl", args...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "running openssl genpkey")
	}
	return out, nil
}
