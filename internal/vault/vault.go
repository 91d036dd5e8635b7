package vault

import (
	"context"
	"errors"
	"fmt"

	"superid/internal/domain"
	"superid/internal/logging"
)

// RecordStore persists encrypted credential documents for the signed-in user.
type RecordStore interface {
	ListCredentials(ctx context.Context) ([]domain.CredentialDocument, error)
	CreateCredential(ctx context.Context, doc domain.CredentialDocument) (*domain.CredentialDocument, error)
	UpdateCredential(ctx context.Context, id string, doc domain.CredentialDocument) (*domain.CredentialDocument, error)
	DeleteCredential(ctx context.Context, id string) error
	PurgeCredentials(ctx context.Context) error
}

// ListResult is what a vault read returns. Notice is set only on the read that
// discarded an unrecoverable vault.
type ListResult struct {
	Credentials []Credential
	Purged      bool
	Notice      string
}

type Vault struct {
	store  RecordStore
	logger logging.Logger
}

func New(store RecordStore, logger logging.Logger) *Vault {
	return &Vault{store: store, logger: logger}
}

func (v *Vault) Add(ctx context.Context, s *Session, draft domain.CredentialDraft) (*Credential, error) {
	doc, err := Encode(draft, s)
	if err != nil {
		return nil, err
	}

	saved, err := v.store.CreateCredential(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	c, err := Decode(*saved, s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (v *Vault) Update(ctx context.Context, s *Session, id string, draft domain.CredentialDraft) (*Credential, error) {
	doc, err := Encode(draft, s)
	if err != nil {
		return nil, err
	}

	saved, err := v.store.UpdateCredential(ctx, id, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	c, err := Decode(*saved, s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (v *Vault) Delete(ctx context.Context, id string) error {
	return v.store.DeleteCredential(ctx, id)
}

// List reads and decrypts every credential. When none of the stored secrets
// decrypt, all records are purged and an empty result carrying the one-time
// notice is returned.
func (v *Vault) List(ctx context.Context, s *Session) (*ListResult, error) {
	docs, err := v.store.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	creds, allFailed, err := DecodeAll(docs, s)
	if err != nil {
		return nil, err
	}

	if !allFailed {
		return &ListResult{Credentials: creds}, nil
	}

	v.logger.Warn(ctx, "no credential decrypts under current key, purging vault",
		"user_id", s.UserID(), "records", len(docs))

	if err := v.store.PurgeCredentials(ctx); err != nil {
		return nil, errors.Join(ErrVaultCorrupted, fmt.Errorf("failed to purge credentials: %w", err))
	}

	return &ListResult{
		Credentials: []Credential{},
		Purged:      true,
		Notice:      PurgeNotice,
	}, nil
}

// Rekey re-encrypts the readable credentials under newSession and hands them
// to replace, which must store them in place of the old records. Rekey writes
// nothing itself: when replace fails the stored vault is left as it was and
// still opens under oldSession.
func (v *Vault) Rekey(ctx context.Context, oldSession, newSession *Session, replace func(ctx context.Context, docs []domain.CredentialDocument) error) (int, error) {
	docs, err := v.store.ListCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list credentials: %w", err)
	}

	creds, _, err := DecodeAll(docs, oldSession)
	if err != nil {
		return 0, err
	}

	sealed := make([]domain.CredentialDocument, 0, len(creds))
	for i := range creds {
		if !creds[i].Readable() {
			continue
		}
		draft := creds[i].Draft()
		if creds[i].LoginUnreadable {
			draft.Login = ""
		}
		doc, err := Encode(draft, newSession)
		if err != nil {
			return 0, fmt.Errorf("failed to re-encrypt credential %s: %w", creds[i].ID, err)
		}
		sealed = append(sealed, doc)
	}

	if err := replace(ctx, sealed); err != nil {
		return 0, err
	}

	v.logger.Info(ctx, "vault re-encrypted", "user_id", newSession.UserID(),
		"moved", len(sealed), "dropped", len(creds)-len(sealed))

	return len(sealed), nil
}
