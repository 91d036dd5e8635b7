package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/repository"
	"superid/internal/vault"
	"superid/internal/websocket"
	"superid/pkg/hash"

	"github.com/google/uuid"
)

type AccountService struct {
	accountRepo    repository.AccountRepository
	credentialRepo repository.CredentialRepository
	notifier       Notifier
	logger         logging.Logger
}

func NewAccountService(accountRepo repository.AccountRepository, credentialRepo repository.CredentialRepository, notifier Notifier, logger logging.Logger) *AccountService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &AccountService{
		accountRepo:    accountRepo,
		credentialRepo: credentialRepo,
		notifier:       notifier,
		logger:         logger.With("service", "account"),
	}
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Password = ""
	account.Rev = ""
	return account, nil
}

func (s *AccountService) UpdateName(ctx context.Context, userID, name string) (*domain.Account, error) {
	account, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	account.Name = name
	account.UpdatedAt = time.Now().UTC()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	account.Password = ""
	account.Rev = ""
	return account, nil
}

// ChangeMasterPassword swaps the password hash and key material and replaces
// the stored credentials with req.Credentials, which the client re-encrypted
// under the new key. The replacements are stored before the account changes,
// so a failure up to that point leaves the old vault intact.
func (s *AccountService) ChangeMasterPassword(ctx context.Context, userID string, req *domain.ChangeMasterPasswordRequest) (*domain.ChangeMasterPasswordResponse, error) {
	if err := vault.ValidateParams(req.KeyMaterial.KDF); err != nil {
		return nil, fmt.Errorf("invalid key material: %w", err)
	}

	account, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := hash.Compare(account.Password, req.CurrentPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	if req.KeyMaterial.Salt == account.KeyMaterial.Salt {
		return nil, fmt.Errorf("invalid key material: %w", ErrSaltReused)
	}

	hashedPassword, err := hash.Hash(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	replacements := newDocuments(userID, req.Credentials)
	if err := s.credentialRepo.CreateMany(ctx, replacements); err != nil {
		s.rollback(ctx, userID, replacements)
		return nil, fmt.Errorf("failed to store re-encrypted credentials: %w", err)
	}

	account.Password = hashedPassword
	account.KeyMaterial = req.KeyMaterial
	account.UpdatedAt = time.Now().UTC()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		s.rollback(ctx, userID, replacements)
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	resp := &domain.ChangeMasterPasswordResponse{Stored: len(replacements)}

	// The change is committed at this point. Leftover records only show up as
	// unreadable entries, so a failed cleanup is logged instead of returned.
	discarded, err := s.discardStale(ctx, userID, replacements)
	resp.Discarded = discarded
	if err != nil {
		s.logger.Error(ctx, "old credentials left behind after master password change",
			"user_id", userID, "error", err)
	}

	s.logger.Info(ctx, "master password changed", "user_id", userID,
		"stored", resp.Stored, "discarded", discarded)

	if err := s.notifier.NotifyUser(userID, websocket.TypeVaultPurged, websocket.VaultPurgedPayload{
		Deleted: discarded,
		Reason:  "master_password_changed",
	}); err != nil {
		s.logger.Warn(ctx, "notification failed", "error", err)
	}

	return resp, nil
}

// discardStale deletes every credential of userID that is not one of keep.
func (s *AccountService) discardStale(ctx context.Context, userID string, keep []*domain.CredentialDocument) (int, error) {
	current, err := s.credentialRepo.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	kept := make(map[string]bool, len(keep))
	for _, c := range keep {
		kept[c.ID] = true
	}

	stale := make([]*domain.CredentialDocument, 0, len(current))
	for _, c := range current {
		if !kept[c.ID] {
			stale = append(stale, c)
		}
	}

	return s.credentialRepo.DeleteMany(ctx, stale)
}

func (s *AccountService) rollback(ctx context.Context, userID string, created []*domain.CredentialDocument) {
	if _, err := s.credentialRepo.DeleteMany(ctx, created); err != nil {
		s.logger.Error(ctx, "failed to remove re-encrypted credentials", "user_id", userID, "error", err)
	}
}

// newDocuments turns the re-encrypted records into documents. Timestamps are
// spaced by a microsecond so the listing keeps the order they were sent in.
func newDocuments(userID string, reqs []domain.SaveCredentialRequest) []*domain.CredentialDocument {
	now := time.Now().UTC()
	docs := make([]*domain.CredentialDocument, 0, len(reqs))
	for i, req := range reqs {
		at := now.Add(time.Duration(i) * time.Microsecond)
		docs = append(docs, &domain.CredentialDocument{
			ID:          uuid.New().String(),
			UserID:      userID,
			Category:    req.Category,
			Name:        req.Name,
			Login:       req.Login,
			Secret:      req.Secret,
			Description: req.Description,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
	}
	return docs
}

func (s *AccountService) find(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}
