// Package service provides the business logic for accounts, crops and leaf
// analysis, delegating persistence to repository interfaces and external
// work to injected collaborators.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/agritracker/internal/common"
	"github.com/atinyakov/agritracker/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// CreateUser stores a new user. A taken username yields common.ErrConflict.
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByUsername loads a user, or returns common.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	DummyVerify(password string)
}

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	IssueFor(identity string) (string, error)
	Verify(token string) (map[string]any, error)
}

// AuthService implements registration, login and token verification.
type AuthService struct {
	repo   AuthRepository
	hasher PasswordHasher
	tokens TokenIssuer
	log    *zap.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(repo AuthRepository, hasher PasswordHasher, tokens TokenIssuer, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, hasher: hasher, tokens: tokens, log: log}
}

// Register creates an account. A taken username returns common.ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return common.ErrConflict
		}
		s.log.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("%w: create user: %w", common.ErrDependency, err)
	}

	s.log.Info("user registered", zap.String("username", username))
	return nil
}

// Login checks the credentials and issues a session token.
//
// An unknown username and a wrong password both return
// common.ErrInvalidCredentials, and both spend one password verification, so
// neither the response nor its timing tells them apart.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.DummyVerify(password)
			return "", common.ErrInvalidCredentials
		}
		s.log.Error("failed to load user", zap.String("username", username), zap.Error(err))
		return "", fmt.Errorf("%w: load user: %w", common.ErrDependency, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", common.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueFor(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// VerifyToken returns the claims of a valid token or common.ErrUnauthenticated.
func (s *AuthService) VerifyToken(token string) (map[string]any, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, common.ErrUnauthenticated
	}
	return claims, nil
}
