package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
)

// Service is the main auth service with dependencies
type Service struct {
	repo       Repository
	tokens     TokenGenerator
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, tokens TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	account, err := s.repo.GetAccountByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			return AuthTokens{}, internal.ErrInvalidCredentials
		}
		return AuthTokens{}, internal.NewInternalError("failed to load account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Info("login rejected", "user_id", account.ID)
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if !account.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	s.logger.Info("user authenticated", "user_id", account.ID)
	return s.issue(account)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokens.Validate(refreshToken, TokenRefresh)
	if err != nil {
		return AuthTokens{}, err
	}

	account, err := s.activeAccount(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}
	return s.issue(account)
}

// Principal resolves an access token to the actor it stands for. The account
// is re-read so deactivation takes effect before the token expires.
func (s *Service) Principal(ctx context.Context, accessToken string) (permission.Principal, error) {
	claims, err := s.tokens.Validate(accessToken, TokenAccess)
	if err != nil {
		return permission.Principal{}, err
	}
	account, err := s.activeAccount(ctx, claims.UserID)
	if err != nil {
		return permission.Principal{}, err
	}
	return account.Principal(), nil
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) activeAccount(ctx context.Context, userID int64) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, internal.NewInternalError("failed to load account", err)
	}
	if !account.IsActive {
		return nil, internal.ErrUserInactive
	}
	return account, nil
}

func (s *Service) issue(account *Account) (AuthTokens, error) {
	access, expiresAt, err := s.tokens.Generate(account, TokenAccess)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}
	refresh, _, err := s.tokens.Generate(account, TokenRefresh)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}
	return AuthTokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
