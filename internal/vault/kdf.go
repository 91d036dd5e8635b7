// Package vault holds the client-side credential vault: master key derivation,
// authenticated encryption of individual fields, the in-memory session that
// owns the derived key, and the record codec with its purge policy.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"runtime"

	"superid/internal/domain"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize  = 16
	KeyLength = 32

	MinPBKDF2Iterations     = 300_000
	DefaultPBKDF2Iterations = 310_000

	minArgon2Time      = 1
	minArgon2MemoryKiB = 19 * 1024
)

// Key is a derived AES-256 key. It must not outlive the session that owns it.
type Key struct {
	b []byte
}

func (k *Key) bytes() []byte {
	return k.b
}

// Wipe zeroes the key in place.
//
//go:noinline
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	for i := range k.b {
		k.b[i] = 0
	}
	runtime.KeepAlive(&k.b)
	k.b = nil
}

// DefaultKDFParams returns the parameters used for new accounts.
func DefaultKDFParams() domain.KDFParams {
	return domain.KDFParams{
		Version:    domain.KDFVersion,
		Algorithm:  domain.KDFPBKDF2SHA256,
		Iterations: DefaultPBKDF2Iterations,
		KeyLength:  KeyLength,
	}
}

// NewKeyMaterial generates a fresh salt with the default parameters.
func NewKeyMaterial() (domain.KeyMaterial, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return domain.KeyMaterial{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return domain.KeyMaterial{
		Salt: base64.StdEncoding.EncodeToString(salt),
		KDF:  DefaultKDFParams(),
	}, nil
}

// ValidateParams rejects parameter sets too weak to resist offline guessing.
func ValidateParams(p domain.KDFParams) error {
	if p.KeyLength != KeyLength {
		return fmt.Errorf("%w: key length %d", ErrWeakKDFParams, p.KeyLength)
	}

	switch p.Algorithm {
	case domain.KDFPBKDF2SHA256:
		if p.Iterations < MinPBKDF2Iterations {
			return fmt.Errorf("%w: %d iterations", ErrWeakKDFParams, p.Iterations)
		}
	case domain.KDFArgon2id:
		if p.Time < minArgon2Time || p.MemoryKiB < minArgon2MemoryKiB || p.Threads == 0 {
			return fmt.Errorf("%w: argon2id t=%d m=%d p=%d", ErrWeakKDFParams, p.Time, p.MemoryKiB, p.Threads)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKDF, p.Algorithm)
	}
	return nil
}

// DeriveKey stretches password with salt. The same inputs always produce the
// same key; whether the password is right is only known once a ciphertext
// verifies under it.
func DeriveKey(password, salt []byte, params domain.KDFParams) (*Key, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrWeakKDFParams)
	}

	var k []byte
	switch params.Algorithm {
	case domain.KDFPBKDF2SHA256:
		k = pbkdf2.Key(password, salt, params.Iterations, params.KeyLength, sha256.New)
	case domain.KDFArgon2id:
		k = argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Threads, uint32(params.KeyLength))
	}
	return &Key{b: k}, nil
}

// DeriveFromMaterial decodes the stored salt and derives the key.
func DeriveFromMaterial(password []byte, km domain.KeyMaterial) (*Key, error) {
	salt, err := base64.StdEncoding.DecodeString(km.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	return DeriveKey(password, salt, km.KDF)
}
