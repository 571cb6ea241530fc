package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Notifier enqueues account emails.
type Notifier interface {
	SendActivation(ctx context.Context, mc MailContext, recipients []string) error
}

// ServiceConfig toggles optional account behaviour.
type ServiceConfig struct {
	SendActivationEmail bool
}

// Service handles account business logic.
type Service struct {
	repo     Repository
	tokens   *TokenGenerator
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService builds Service instance.
func NewService(repo Repository, tokens *TokenGenerator, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, notifier: notifier, logger: logger, cfg: cfg}
}

// Registration is the validated input of the registration action.
type Registration struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// NormalizeUsername applies NFKC normalisation.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// NormalizeEmail applies NFKC normalisation and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(email)))
}

// Register creates an inactive account and enqueues its activation email.
// When activation emails are disabled the account is created active.
func (s *Service) Register(ctx context.Context, in Registration, mc MailContext) (*User, error) {
	user := User{
		Email:     NormalizeEmail(in.Email),
		Username:  NormalizeUsername(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      shared.RoleCustomer,
		IsActive:  !s.cfg.SendActivationEmail,
	}
	if user.Username == "" {
		user.Username, _, _ = strings.Cut(user.Email, "@")
	}

	taken, err := s.repo.EmailTaken(ctx, user.Email, 0)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, httpx.Invalid("email", "A user with this email is already registered.")
	}
	taken, err = s.repo.UsernameTaken(ctx, user.Username, 0)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, httpx.Invalid("username", "A user with that username already exists.")
	}
	if problems := ValidatePassword(in.Password, &user); len(problems) > 0 {
		return nil, httpx.Invalid("password", strings.Join(problems, " "))
	}
	user.PasswordHash, err = HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.cfg.SendActivationEmail && s.notifier != nil {
		mc.UserID = user.ID
		if err := s.notifier.SendActivation(ctx, mc, []string{user.Email}); err != nil {
			s.logger.Error("enqueue activation email", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return &user, nil
}

// Activate marks the account identified by uid active.
func (s *Service) Activate(ctx context.Context, uid, token string) error {
	user, err := s.userFromUID(ctx, uid)
	if err != nil {
		return err
	}
	if user.IsActive {
		return httpx.Denied("token", "Stale token for given user.")
	}
	if !s.tokens.Check(user, PurposeActivation, token) {
		return httpx.Invalid("token", "Invalid token for given user.")
	}
	if err := s.repo.SetActive(ctx, user.ID, true); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

// ResolveUID loads the account a mailed uid refers to.
func (s *Service) ResolveUID(ctx context.Context, uid string) (*User, error) {
	return s.userFromUID(ctx, uid)
}

func (s *Service) userFromUID(ctx context.Context, uid string) (*User, error) {
	id, err := DecodeUID(uid)
	if err != nil {
		return nil, httpx.Invalid("uid", "Invalid user id or user doesn't exist.")
	}
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, httpx.Invalid("uid", "Invalid user id or user doesn't exist.")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Search filters and orders accounts.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]User, error) {
	if len(q.Ordering) == 0 {
		q.Ordering = []string{"username", "-id"}
	}
	return s.repo.Search(ctx, q)
}

// Update applies changes to the account id.
func (s *Service) Update(ctx context.Context, id int64, changes Changes) (*User, error) {
	if changes.Email != nil {
		email := NormalizeEmail(*changes.Email)
		changes.Email = &email
		taken, err := s.repo.EmailTaken(ctx, email, id)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, httpx.Invalid("email", "A user with this email is already registered.")
		}
	}
	if changes.Username != nil {
		username := NormalizeUsername(*changes.Username)
		changes.Username = &username
		taken, err := s.repo.UsernameTaken(ctx, username, id)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return nil, httpx.Invalid("username", "A user with that username already exists.")
		}
	}
	if changes.PhoneNumber != nil && *changes.PhoneNumber != "" {
		taken, err := s.repo.PhoneTaken(ctx, *changes.PhoneNumber, id)
		if err != nil {
			return nil, fmt.Errorf("check phone: %w", err)
		}
		if taken {
			return nil, httpx.Invalid("phone_number", "Profile with this phone number already exists.")
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, changes)
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}
