package tuf

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	cjson "github.com/docker/go/canonical/json"
	"github.com/pkg/errors"
)

// Scheme names a signature scheme. Only RSASSA-PSS-SHA256 is supported,
// mirroring tuftool's KeyPair::public_key in the original implementation.
type Scheme string

const (
	SchemeRSASSAPSSSHA256 Scheme = "rsassa-pss-sha256"
)

// KeyType names the `keytype` discriminant on the wire.
type KeyType string

const (
	KeyTypeRSA KeyType = "rsa"
)

// Key is a polymorphic signing key. Only the RSA variant is populated
// today; the shape leaves room for future schemes without changing the
// wire format of existing documents.
type Key struct {
	KeyType KeyType        `json:"keytype"`
	Scheme  Scheme         `json:"scheme"`
	KeyVal  KeyVal         `json:"keyval"`
	rsaPub  *rsa.PublicKey // cached, parsed lazily
}

// KeyVal carries the key material. Public holds the PEM body (SubjectPublic
// KeyInfo DER, base64-armored) of an RSA public key.
type KeyVal struct {
	Public Decoded[PEM] `json:"public"`
}

// NewRSAKey builds a Key wrapping an RSA public key.
func NewRSAKey(pub *rsa.PublicKey) (Key, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return Key{}, errors.Wrap(err, "marshaling rsa public key")
	}
	original := pemArmor("PUBLIC KEY", der)
	decoded, err := ParseDecoded[PEM](original)
	if err != nil {
		return Key{}, errors.Wrap(err, "encoding rsa public key")
	}
	return Key{
		KeyType: KeyTypeRSA,
		Scheme:  SchemeRSASSAPSSSHA256,
		KeyVal:  KeyVal{Public: decoded},
		rsaPub:  pub,
	}, nil
}

// RSAPublicKey parses (and caches) the wrapped RSA public key.
func (k *Key) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.rsaPub != nil {
		return k.rsaPub, nil
	}
	if k.KeyType != KeyTypeRSA {
		return nil, errors.Errorf("key type %q is not rsa", k.KeyType)
	}
	pub, err := x509.ParsePKIXPublicKey(k.KeyVal.Public.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "parsing rsa public key")
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("key material is not an rsa public key")
	}
	k.rsaPub = rsaPub
	return rsaPub, nil
}

// Equal reports whether two keys wrap the same public key material,
// comparing DER bytes rather than PEM text (two distinct PEM encodings of
// the same public key are considered equal).
func (k Key) Equal(other Key) bool {
	if k.KeyType != other.KeyType || k.Scheme != other.Scheme {
		return false
	}
	return k.KeyVal.Public.Equal(other.KeyVal.Public)
}

// KeyID computes the key's identifier: the lowercase-hex SHA-256 of the
// canonical JSON encoding of the key object.
func (k Key) KeyID() (Decoded[Hex], error) {
	data, err := cjson.MarshalCanonical(k)
	if err != nil {
		return Decoded[Hex]{}, errors.Wrap(err, "canonicalizing key for keyid")
	}
	sum := sha256.Sum256(data)
	return NewHexDecoded(sum[:]), nil
}

// Verify checks sig over digest-of-data using this key's scheme.
func (k *Key) Verify(data []byte, sig []byte) error {
	switch k.Scheme {
	case SchemeRSASSAPSSSHA256:
		pub, err := k.RSAPublicKey()
		if err != nil {
			return err
		}
		digest := sha256.Sum256(data)
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
		if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, opts); err != nil {
			return errors.New("signature check failed")
		}
		return nil
	default:
		return errors.Errorf("unsupported signature scheme %q", k.Scheme)
	}
}

func pemArmor(label string, der []byte) string {
	block := &pem.Block{Type: label, Bytes: der}
	return string(pem.EncodeToMemory(block))
}
