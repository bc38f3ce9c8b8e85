package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/identity"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
	"familytree-backend/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrFirebaseDisabled   = errors.New("firebase login is not enabled")
)

type AuthTokens struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

// IDTokenVerifier exchanges an external identity token for an account.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*domain.User, error)
}

type authService struct {
	users    repository.UserRepository
	provider identity.Provider
	verifier IDTokenVerifier
	tokens   security.TokenManager
}

// NewAuthService wires password login against users and refresh against provider.
// verifier may be nil when Firebase is not in use.
func NewAuthService(users repository.UserRepository, provider identity.Provider, verifier IDTokenVerifier, tokens security.TokenManager) AuthService {
	return &authService{
		users:    users,
		provider: provider,
		verifier: verifier,
		tokens:   tokens,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	logger.EnterMethod("authService.Login", "email", email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Login for unknown email", "email", email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Login with wrong password", "userID", user.ID)
		return nil, ErrInvalidCredentials
	}

	logger.ExitMethod("authService.Login", "userID", user.ID)
	return s.issue(user)
}

// RefreshToken reloads the account so role changes take effect on refresh.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != security.TokenTypeRefresh {
		return nil, security.ErrWrongTokenType
	}

	user, err := s.provider.GetUser(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, security.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) FirebaseLogin(ctx context.Context, idToken string) (*AuthTokens, error) {
	if s.verifier == nil {
		return nil, ErrFirebaseDisabled
	}
	user, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		logger.Warn("Firebase ID token rejected", "error", err)
		return nil, security.ErrInvalidToken
	}
	return s.issue(user)
}

func (s *authService) issue(user *domain.User) (*AuthTokens, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Roles())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &AuthTokens{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
