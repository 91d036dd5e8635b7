package vault

import (
	"errors"
	"strings"
	"time"

	"superid/internal/domain"
)

// Credential is a decoded vault entry. A field that failed to decrypt is left
// empty and flagged instead of failing the whole record.
type Credential struct {
	ID          string
	Category    string
	Name        string
	Login       string
	Secret      string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	LoginUnreadable  bool
	SecretUnreadable bool
}

// Readable reports whether the mandatory secret decrypted.
func (c *Credential) Readable() bool {
	return !c.SecretUnreadable
}

// Draft returns the plaintext fields, e.g. to re-encrypt under a new key.
func (c *Credential) Draft() domain.CredentialDraft {
	return domain.CredentialDraft{
		Category:    c.Category,
		Name:        c.Name,
		Login:       c.Login,
		Secret:      c.Secret,
		Description: c.Description,
	}
}

// Encode encrypts a draft into its persisted form. Login is only encrypted when
// it is not blank; the secret is always encrypted.
func Encode(draft domain.CredentialDraft, s *Session) (domain.CredentialDocument, error) {
	if draft.Secret == "" {
		return domain.CredentialDocument{}, ErrSecretRequired
	}

	doc := domain.CredentialDocument{
		UserID:      s.UserID(),
		Category:    draft.Category,
		Name:        draft.Name,
		Description: draft.Description,
	}

	err := s.withKey(func(key *Key) error {
		var err error
		if strings.TrimSpace(draft.Login) != "" {
			if doc.Login, err = EncryptString(draft.Login, key); err != nil {
				return err
			}
		}
		doc.Secret, err = EncryptString(draft.Secret, key)
		return err
	})
	if err != nil {
		return domain.CredentialDocument{}, err
	}
	return doc, nil
}

// Decode decrypts every ciphertext field of doc. Field failures are reported on
// the returned Credential; the only error is a closed session.
func Decode(doc domain.CredentialDocument, s *Session) (Credential, error) {
	c := Credential{
		ID:          doc.ID,
		Category:    doc.Category,
		Name:        doc.Name,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}

	err := s.withKey(func(key *Key) error {
		if doc.Login != "" {
			login, err := DecryptString(doc.Login, key)
			switch {
			case errors.Is(err, ErrAuthenticationFailure):
				c.LoginUnreadable = true
			case err != nil:
				return err
			default:
				c.Login = login
			}
		}

		secret, err := DecryptString(doc.Secret, key)
		switch {
		case errors.Is(err, ErrAuthenticationFailure):
			c.SecretUnreadable = true
		case err != nil:
			return err
		default:
			c.Secret = secret
		}
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	return c, nil
}

// DecodeAll decodes a batch. allFailed is true when there was at least one
// record and none of the secrets decrypted, which means the vault was written
// under a different key.
func DecodeAll(docs []domain.CredentialDocument, s *Session) (creds []Credential, allFailed bool, err error) {
	creds = make([]Credential, 0, len(docs))
	readable := 0
	for _, doc := range docs {
		c, err := Decode(doc, s)
		if err != nil {
			return nil, false, err
		}
		if c.Readable() {
			readable++
		}
		creds = append(creds, c)
	}
	return creds, len(docs) > 0 && readable == 0, nil
}
