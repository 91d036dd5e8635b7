package domain

import "time"

const (
	KDFPBKDF2SHA256 = "pbkdf2-sha256"
	KDFArgon2id     = "argon2id"

	// KDFVersion is bumped whenever the default parameters for new accounts change.
	KDFVersion = 1
)

// KDFParams describes how a master password is stretched into the vault key.
// Stored next to the salt so older accounts keep deriving with their own parameters.
type KDFParams struct {
	Version    int    `json:"version" validate:"required,min=1"`
	Algorithm  string `json:"algorithm" validate:"required,oneof=pbkdf2-sha256 argon2id"`
	Iterations int    `json:"iterations,omitempty"`
	Time       uint32 `json:"time,omitempty"`
	MemoryKiB  uint32 `json:"memory_kib,omitempty"`
	Threads    uint8  `json:"threads,omitempty"`
	KeyLength  int    `json:"key_length" validate:"required,eq=32"`
}

// KeyMaterial is the per-account, non-secret input to key derivation.
type KeyMaterial struct {
	Salt string    `json:"salt" validate:"required,base64"`
	KDF  KDFParams `json:"kdf" validate:"required"`
}

type Account struct {
	ID          string      `json:"id"`
	Rev         string      `json:"_rev,omitempty"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Password    string      `json:"password,omitempty"` // bcrypt hash, cleared before leaving the service layer
	KeyMaterial KeyMaterial `json:"key_material"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type RegisterRequest struct {
	Email       string      `json:"email" validate:"required,email"`
	Name        string      `json:"name" validate:"required,min=1,max=100"`
	Password    string      `json:"password" validate:"required,min=8"`
	KeyMaterial KeyMaterial `json:"key_material" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         *Account    `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	KeyMaterial  KeyMaterial `json:"key_material"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type UpdateAccountRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// ChangeMasterPasswordRequest replaces the master password. New key material is
// required because every stored ciphertext becomes unreadable under the old key.
// Credentials carries the records already re-encrypted under the new key; they
// replace whatever the account held before.
type ChangeMasterPasswordRequest struct {
	CurrentPassword string                  `json:"current_password" validate:"required"`
	NewPassword     string                  `json:"new_password" validate:"required,min=8"`
	KeyMaterial     KeyMaterial             `json:"key_material" validate:"required"`
	Credentials     []SaveCredentialRequest `json:"credentials" validate:"dive"`
}

type ChangeMasterPasswordResponse struct {
	Stored    int `json:"stored_credentials"`
	Discarded int `json:"discarded_credentials"`
}
