package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const NonceSize = 12

func newGCM(key *Key) (cipher.AEAD, error) {
	if key == nil || len(key.bytes()) != KeyLength {
		return nil, ErrSessionClosed
	}
	block, err := aes.NewCipher(key.bytes())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce and
// returns nonce || ciphertext || tag.
func Encrypt(plaintext []byte, key *Key) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt verifies and opens a blob produced by Encrypt. Nothing is returned
// unless the tag verifies.
func Decrypt(blob []byte, key *Key) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < NonceSize+aead.Overhead() {
		return nil, ErrAuthenticationFailure
	}

	plaintext, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// EncryptString encrypts s and encodes the blob with standard base64.
func EncryptString(s string, key *Key) (string, error) {
	blob, err := Encrypt([]byte(s), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptString reverses EncryptString. Bad base64 is reported as an
// authentication failure so callers cannot tell corruption kinds apart.
func DecryptString(encoded string, key *Key) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrAuthenticationFailure
	}
	plaintext, err := Decrypt(blob, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
