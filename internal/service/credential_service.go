package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/repository"
	"superid/internal/websocket"

	"github.com/google/uuid"
)

// CredentialService stores encrypted credential documents. It never sees
// plaintext: Login and Secret arrive already sealed by the client vault.
type CredentialService struct {
	repo     repository.CredentialRepository
	notifier Notifier
	logger   logging.Logger
}

func NewCredentialService(repo repository.CredentialRepository, notifier Notifier, logger logging.Logger) *CredentialService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CredentialService{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With("service", "credential"),
	}
}

func (s *CredentialService) List(ctx context.Context, userID string) ([]*domain.CredentialDocument, error) {
	creds, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range creds {
		c.Rev = ""
	}
	return creds, nil
}

func (s *CredentialService) Create(ctx context.Context, userID string, req *domain.SaveCredentialRequest) (*domain.CredentialDocument, error) {
	now := time.Now().UTC()
	cred := &domain.CredentialDocument{
		ID:          uuid.New().String(),
		UserID:      userID,
		Category:    req.Category,
		Name:        req.Name,
		Login:       req.Login,
		Secret:      req.Secret,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	s.notify(ctx, userID, websocket.TypeCredentialCreated, cred)

	cred.Rev = ""
	return cred, nil
}

// Update replaces the fields of a credential and keeps its CreatedAt.
func (s *CredentialService) Update(ctx context.Context, userID, id string, req *domain.SaveCredentialRequest) (*domain.CredentialDocument, error) {
	cred, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	cred.Category = req.Category
	cred.Name = req.Name
	cred.Login = req.Login
	cred.Secret = req.Secret
	cred.Description = req.Description
	cred.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	s.notify(ctx, userID, websocket.TypeCredentialUpdated, cred)

	cred.Rev = ""
	return cred, nil
}

func (s *CredentialService) Delete(ctx context.Context, userID, id string) error {
	cred, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	cred.UpdatedAt = time.Now().UTC()
	s.notify(ctx, userID, websocket.TypeCredentialDeleted, cred)
	return nil
}

// Purge deletes every credential of the user. Clients call it when nothing in
// the vault decrypts under the current key.
func (s *CredentialService) Purge(ctx context.Context, userID string) (int, error) {
	deleted, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return deleted, fmt.Errorf("failed to purge credentials: %w", err)
	}

	s.logger.Warn(ctx, "vault purged", "user_id", userID, "deleted", deleted)

	if err := s.notifier.NotifyUser(userID, websocket.TypeVaultPurged, websocket.VaultPurgedPayload{
		Deleted: deleted,
		Reason:  "unreadable_under_current_key",
	}); err != nil {
		s.logger.Warn(ctx, "notification failed", "error", err)
	}

	return deleted, nil
}

func (s *CredentialService) owned(ctx context.Context, userID, id string) (*domain.CredentialDocument, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	if cred.UserID != userID {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

func (s *CredentialService) notify(ctx context.Context, userID string, msgType websocket.MessageType, cred *domain.CredentialDocument) {
	err := s.notifier.NotifyUser(userID, msgType, websocket.CredentialPayload{
		CredentialID: cred.ID,
		Category:     cred.Category,
		UpdatedAt:    cred.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn(ctx, "notification failed", "type", msgType, "error", err)
	}
}
