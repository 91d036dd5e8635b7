package domain

import "time"

// CredentialDocument is the persisted form of a vault entry. Login and Secret hold
// base64(nonce || ciphertext || tag); the server never sees plaintext.
type CredentialDocument struct {
	ID          string    `json:"id"`
	Rev         string    `json:"_rev,omitempty"`
	UserID      string    `json:"user_id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Login       string    `json:"login,omitempty"`
	Secret      string    `json:"secret"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CredentialDraft is the plaintext a user types in before encryption.
type CredentialDraft struct {
	Category    string
	Name        string
	Login       string
	Secret      string
	Description string
}

type SaveCredentialRequest struct {
	Category    string `json:"category" validate:"required,max=100"`
	Name        string `json:"name" validate:"required,max=200"`
	Login       string `json:"login,omitempty" validate:"omitempty,base64"`
	Secret      string `json:"secret" validate:"required,base64"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// SaveRequest carries the stored fields of d, still sealed, back to the server.
func (d CredentialDocument) SaveRequest() SaveCredentialRequest {
	return SaveCredentialRequest{
		Category:    d.Category,
		Name:        d.Name,
		Login:       d.Login,
		Secret:      d.Secret,
		Description: d.Description,
	}
}
