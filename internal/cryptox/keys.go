package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
)

// DefaultRSABits is the modulus size for freshly generated user keypairs.
const DefaultRSABits = 2048

// KeyPair holds DER-encoded RSA key material: PKIX for the public half,
// PKCS#8 for the private half.
type KeyPair struct {
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

// GenerateKeyPair creates a new RSA keypair of the given size using
// crypto/rand.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: generate rsa key: %w", common.ErrCryptoFailure, err)
	}

	pub, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal public key: %w", common.ErrCryptoFailure, err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal private key: %w", common.ErrCryptoFailure, err)
	}

	return &KeyPair{PublicKey: pub, PrivateKey: der}, nil
}

// RSAPublicKey parses the public half.
func (k *KeyPair) RSAPublicKey() (*rsa.PublicKey, error) {
	return ParsePublicKey(k.PublicKey)
}

// RSAPrivateKey parses the private half.
func (k *KeyPair) RSAPrivateKey() (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(k.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", common.ErrCryptoFailure, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not rsa", common.ErrCryptoFailure)
	}
	return priv, nil
}

// Wipe zeroes the private key material.
func (k *KeyPair) Wipe() {
	common.WipeByteArray(k.PrivateKey)
}

// ParsePublicKey decodes a PKIX DER RSA public key.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", common.ErrCryptoFailure, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not rsa", common.ErrCryptoFailure)
	}
	return pub, nil
}

// Fingerprint returns a short hex digest of a public key, for logs.
func Fingerprint(publicKey []byte) string {
	h := sha256.Sum256(publicKey)
	return hex.EncodeToString(h[:8])
}
