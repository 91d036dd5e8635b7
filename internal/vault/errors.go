package vault

import "errors"

var (
	// ErrAuthenticationFailure means a ciphertext did not verify under the key.
	// A wrong master password and a tampered record look exactly the same.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrVaultCorrupted means no record could be read under the current key.
	ErrVaultCorrupted = errors.New("vault unrecoverable under current key")

	ErrSessionClosed  = errors.New("session closed")
	ErrWeakKDFParams  = errors.New("key derivation parameters below minimum")
	ErrUnknownKDF     = errors.New("unknown key derivation algorithm")
	ErrSecretRequired = errors.New("secret is required")
)

// GenericCryptoMessage is the only text users see for any decryption problem.
const GenericCryptoMessage = "Unable to unlock data with the provided master password."

// PurgeNotice is shown once after unreadable records were discarded.
const PurgeNotice = "Your master password was reset. Passwords saved under the previous master password could not be recovered and were removed."

// UserMessage maps an error to user-facing text without leaking which
// cryptographic check failed.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationFailure), errors.Is(err, ErrVaultCorrupted):
		return GenericCryptoMessage
	case errors.Is(err, ErrSessionClosed):
		return "Session expired. Please log in again."
	case errors.Is(err, ErrSecretRequired):
		return "A password is required."
	default:
		return "Something went wrong. Please try again."
	}
}
