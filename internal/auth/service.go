package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	repo   users.Repository
	tokens *TokenManager
}

// NewService constructs a new Service.
func NewService(repo users.Repository, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates credentials. login is a username, or an email when
// it contains "@". Inactive accounts never authenticate.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*users.User, error) {
	var (
		user *users.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.repo.GetByEmail(ctx, users.NormalizeEmail(login))
	} else {
		user, err = s.repo.GetByUsername(ctx, users.NormalizeUsername(login))
	}
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Issue(user)
}

// Refresh exchanges a refresh token for a new access token. The account must
// still exist and be active.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.tokens.Parse(refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	user, err := s.userFor(ctx, claims)
	if err != nil {
		return "", err
	}
	return s.tokens.Access(user)
}

// Verify reports whether token is a valid token of either type.
func (s *Service) Verify(token string) error {
	_, err := s.tokens.Parse(token, "")
	return err
}

// Principal resolves the account behind an access token.
func (s *Service) Principal(ctx context.Context, access string) (*shared.Principal, error) {
	claims, err := s.tokens.Parse(access, TokenAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.userFor(ctx, claims)
	if err != nil {
		return nil, err
	}
	return user.Principal(), nil
}

func (s *Service) userFor(ctx context.Context, claims *Claims) (*users.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidToken
	}
	return user, nil
}
