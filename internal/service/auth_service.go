package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/repository"
	"superid/internal/vault"
	"superid/pkg/hash"
	"superid/pkg/jwt"

	"github.com/google/uuid"
)

type AuthService struct {
	accountRepo       repository.AccountRepository
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	logger            logging.Logger
}

func NewAuthService(accountRepo repository.AccountRepository, jwtSecret string, jwtExp, refreshExp time.Duration, logger logging.Logger) *AuthService {
	return &AuthService{
		accountRepo:       accountRepo,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		logger:            logger.With("service", "auth"),
	}
}

// Register stores the account with the key material generated on the client.
// The server only checks the KDF parameters are strong enough.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Account, error) {
	if err := vault.ValidateParams(req.KeyMaterial.KDF); err != nil {
		return nil, fmt.Errorf("invalid key material: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	emailExists, err := s.accountRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if emailExists {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:          uuid.New().String(),
		Email:       email,
		Name:        req.Name,
		Password:    hashedPassword,
		KeyMaterial: req.KeyMaterial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info(ctx, "account registered", "user_id", account.ID)

	account.Password = ""
	account.Rev = ""
	return account, nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	account, err := s.accountRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(ctx, "account lookup failed", "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := hash.Compare(account.Password, req.Password); err != nil {
		s.logger.Info(ctx, "login rejected", "user_id", account.ID)
		return nil, ErrInvalidCredentials
	}

	accessToken, err := jwt.GenerateToken(account.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(account.ID, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	account.Password = ""
	account.Rev = ""

	return &domain.LoginResponse{
		User:         account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
		KeyMaterial:  account.KeyMaterial,
	}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(req.RefreshToken, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if _, err := s.accountRepo.FindByID(ctx, claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
