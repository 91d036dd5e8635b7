package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"superid/internal/config"
	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/repository"
	"superid/internal/websocket"
	"superid/pkg/qrcode"
)

const (
	// 192 random bytes encode to exactly 256 base64url characters.
	loginTokenBytes  = 192
	LoginTokenLength = 256
)

// LoginTokenService runs the QR login protocol: partners issue tokens, a
// signed-in device binds one to its account, and the partner page polls until
// the token resolves or expires.
type LoginTokenService struct {
	tokens   repository.LoginTokenRepository
	partners repository.PartnerRepository
	notifier Notifier
	cfg      config.LoginTokenConfig
	logger   logging.Logger
	now      func() time.Time
}

func NewLoginTokenService(
	tokens repository.LoginTokenRepository,
	partners repository.PartnerRepository,
	notifier Notifier,
	cfg config.LoginTokenConfig,
	logger logging.Logger,
) *LoginTokenService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &LoginTokenService{
		tokens:   tokens,
		partners: partners,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("service", "login_token"),
		now:      time.Now,
	}
}

// Issue mints a fresh token for a registered partner and renders it as a QR
// code data URL.
func (s *LoginTokenService) Issue(ctx context.Context, apiKey, url string) (*domain.PerformAuthResponse, error) {
	partner, err := s.partners.FindByCredentials(ctx, apiKey, url)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn(ctx, "login token refused", "url", url)
		return nil, ErrUnauthorizedPartner
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up partner: %w", err)
	}

	raw, err := generateLoginToken()
	if err != nil {
		return nil, err
	}

	token := &domain.LoginToken{
		ID:            hashLoginToken(raw),
		PartnerAPIKey: partner.APIKey,
		CreatedAt:     s.now().UTC(),
		Attempts:      0,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store login token: %w", err)
	}

	qr, err := qrcode.DataURL(raw, s.cfg.QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	s.logger.Info(ctx, "login token issued", "partner", partner.Name, "token_id", token.ID[:12])

	return &domain.PerformAuthResponse{
		QRBase64:   qr,
		LoginToken: raw,
	}, nil
}

// Resolve is one poll from the partner page. It counts as an attempt whatever
// the outcome; a success consumes the token.
func (s *LoginTokenService) Resolve(ctx context.Context, raw string) (*domain.LoginStatus, error) {
	var status *domain.LoginStatus

	err := s.tokens.Mutate(ctx, hashLoginToken(raw), func(t *domain.LoginToken) (repository.Mutation, error) {
		if s.expired(t) {
			status = &domain.LoginStatus{Status: domain.LoginExpired}
			return repository.MutationDelete, nil
		}

		t.Attempts++

		if t.IsBound() {
			status = &domain.LoginStatus{Status: domain.LoginSuccess, UID: t.BoundUserID}
			return repository.MutationDelete, nil
		}

		if t.Attempts >= s.cfg.MaxAttempts {
			status = &domain.LoginStatus{Status: domain.LoginExpired}
			return repository.MutationDelete, nil
		}

		status = &domain.LoginStatus{Status: domain.LoginPending}
		return repository.MutationSave, nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve login token: %w", err)
	}

	if status.Status != domain.LoginPending {
		s.logger.Info(ctx, "login token resolved", "status", status.Status)
	}

	return status, nil
}

// Bind attaches the token to userID. Binding twice to the same account is a
// no-op; binding a token another account already claimed is refused.
func (s *LoginTokenService) Bind(ctx context.Context, raw, userID string) error {
	var (
		bindErr error
		partner string
		boundAt time.Time
	)

	err := s.tokens.Mutate(ctx, hashLoginToken(raw), func(t *domain.LoginToken) (repository.Mutation, error) {
		bindErr = nil
		boundAt = time.Time{}
		partner = t.PartnerAPIKey

		if s.expired(t) {
			bindErr = ErrTokenExpired
			return repository.MutationDelete, nil
		}

		if t.IsBound() {
			if t.BoundUserID != userID {
				return repository.MutationNone, ErrTokenAlreadyBound
			}
			return repository.MutationNone, nil
		}

		boundAt = s.now().UTC()
		t.BoundUserID = userID
		t.BoundAt = &boundAt
		return repository.MutationSave, nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		if errors.Is(err, ErrTokenAlreadyBound) {
			return err
		}
		return fmt.Errorf("failed to bind login token: %w", err)
	}
	if bindErr != nil {
		return bindErr
	}

	if !boundAt.IsZero() {
		s.logger.Info(ctx, "login token bound", "user_id", userID)
		if err := s.notifier.NotifyUser(userID, websocket.TypeLoginTokenBound, websocket.LoginTokenBoundPayload{
			Partner: partner,
			BoundAt: boundAt,
		}); err != nil {
			s.logger.Warn(ctx, "notification failed", "error", err)
		}
	}

	return nil
}

// Sweep deletes tokens whose TTL elapsed without a poll.
func (s *LoginTokenService) Sweep(ctx context.Context) (int, error) {
	deleted, err := s.tokens.DeleteCreatedBefore(ctx, s.now().Add(-s.cfg.TTL))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep login tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Debug(ctx, "expired login tokens swept", "deleted", deleted)
	}
	return deleted, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *LoginTokenService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "login token sweep failed", "error", err)
			}
		}
	}
}

func (s *LoginTokenService) expired(t *domain.LoginToken) bool {
	return s.now().Sub(t.CreatedAt) > s.cfg.TTL || t.Attempts >= s.cfg.MaxAttempts
}

func generateLoginToken() (string, error) {
	b := make([]byte, loginTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate login token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashLoginToken is the storage key of a raw token, so a database read does
// not reveal usable tokens.
func hashLoginToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
