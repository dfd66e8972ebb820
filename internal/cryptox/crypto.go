// Package cryptox implements the cryptographic primitives used to protect a
// user's identity: password based key derivation (argon2id), RSA keypairs
// and an AES-256-GCM envelope around serialized profile content.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KDFArgon2id is the only key derivation scheme currently supported.
	KDFArgon2id = "argon2id"

	// AESKeyLength256 is the symmetric key size used for profile envelopes.
	AESKeyLength256 = 256

	nonceSize = 12

	// Upper bounds for parameters read from stored envelopes.
	maxKDFTime      = 8
	maxKDFMemoryKiB = 256 * 1024
	maxKDFThreads   = 16
)

var (
	// ErrMalformedEnvelope is returned when the envelope cannot be decoded
	// or carries parameters that do not fit the key.
	ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", common.ErrCryptoFailure)

	// ErrDecryption is returned when authentication of the ciphertext fails,
	// which in practice means the key was derived from wrong credentials.
	ErrDecryption = fmt.Errorf("%w: decryption failed", common.ErrCryptoFailure)

	errUnsupportedKDF = errors.New("unsupported kdf")
)

// KDFParams describes how a symmetric key is derived from a password.
// The salt is derived from the PIN, so the same password+PIN pair always
// yields the same key.
type KDFParams struct {
	Algorithm string
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	Salt      []byte
}

// DefaultKDFParams returns the fixed argon2id cost parameters with the salt
// folded from pin and an output of bitLength bits.
func DefaultKDFParams(pin string, bitLength int) KDFParams {
	return KDFParams{
		Algorithm: KDFArgon2id,
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		KeyLen:    uint32(bitLength / 8),
		Salt:      PINSalt(pin),
	}
}

// PINSalt turns a PIN into fixed-size salt material.
func PINSalt(pin string) []byte {
	h := sha256.Sum256([]byte("hivekeeper/pin/" + pin))
	return h[:]
}

// Derive runs the key derivation for password. Only 256-bit output and
// bounded costs are accepted, since params may come from the network.
func (p KDFParams) Derive(password []byte) ([]byte, error) {
	if p.Algorithm != KDFArgon2id {
		return nil, fmt.Errorf("%w: %w %q", common.ErrCryptoFailure, errUnsupportedKDF, p.Algorithm)
	}
	if p.KeyLen != AESKeyLength256/8 {
		return nil, fmt.Errorf("%w: invalid key length %d", ErrMalformedEnvelope, p.KeyLen)
	}
	if p.Time == 0 || p.Threads == 0 || len(p.Salt) == 0 {
		return nil, fmt.Errorf("%w: incomplete kdf parameters", common.ErrCryptoFailure)
	}
	if p.Time > maxKDFTime || p.MemoryKiB > maxKDFMemoryKiB || p.Threads > maxKDFThreads {
		return nil, fmt.Errorf("%w: kdf cost t=%d m=%d p=%d out of range",
			ErrMalformedEnvelope, p.Time, p.MemoryKiB, p.Threads)
	}
	return argon2.IDKey(password, p.Salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen), nil
}

// Equal reports whether p and o describe the same derivation.
func (p KDFParams) Equal(o KDFParams) bool {
	return p.Algorithm == o.Algorithm &&
		p.Time == o.Time &&
		p.MemoryKiB == o.MemoryKiB &&
		p.Threads == o.Threads &&
		p.KeyLen == o.KeyLen &&
		bytes.Equal(p.Salt, o.Salt)
}

// DeriveSymmetricKey derives a bitLength-bit key from password and pin. It
// is deterministic for identical inputs.
func DeriveSymmetricKey(password, pin string, bitLength int) ([]byte, error) {
	return DefaultKDFParams(pin, bitLength).Derive([]byte(password))
}

// EncryptEnvelope seals plaintext with AES-GCM under key. A fresh random IV
// is generated on every call. params are stored alongside the ciphertext and
// authenticated as additional data, so they cannot be swapped undetected.
func EncryptEnvelope(plaintext, key []byte, params KDFParams) (*Envelope, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: iv: %w", common.ErrCryptoFailure, err)
	}

	env := &Envelope{IV: iv, KDF: params}
	env.Ciphertext = aesgcm.Seal(nil, iv, plaintext, env.KDF.marshal())

	return env, nil
}

// DecryptEnvelope opens env with key. A wrong key yields ErrDecryption, a
// structurally broken envelope yields ErrMalformedEnvelope; both match
// common.ErrCryptoFailure.
func DecryptEnvelope(env *Envelope, key []byte) ([]byte, error) {
	if env == nil || len(env.IV) != nonceSize || len(env.Ciphertext) == 0 {
		return nil, ErrMalformedEnvelope
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, env.IV, env.Ciphertext, env.KDF.marshal())
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCryptoFailure, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCryptoFailure, err)
	}
	return aesgcm, nil
}
